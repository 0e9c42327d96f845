package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	App          AppConfig
	Service      ServiceConfig
	DB           DBConfig
	Redis        RedisConfig
	JWT          JWTConfig
	RateLimit    RateLimitConfig
	Verification VerificationConfig
	FeatureFlags FeatureFlagsConfig
	GCP          GCPConfig
	GCS          GCSConfig
	PubSub       PubSubConfig
	Stripe       StripeConfig
	Outbox       OutboxConfig
	Cron         CronConfig
	Sentry       SentryConfig
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process(EnvPrefix, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.DB.ensureDSN(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type AppConfig struct {
	Env          string `envconfig:"RAILX_APP_ENV" required:"true"`
	Port         string `envconfig:"RAILX_APP_PORT" required:"true"`
	LogLevel     string `envconfig:"RAILX_LOG_LEVEL" default:"info"`
	LogWarnStack bool   `envconfig:"RAILX_LOG_WARN_STACK" default:"false"`
	LogFormat    string `envconfig:"RAILX_LOG_FORMAT" default:"json"`
	CORSOrigins  string `envconfig:"RAILX_CORS_ORIGINS" default:"*"`
}

func (a AppConfig) IsDev() bool {
	return strings.EqualFold(a.Env, AppEnvDev)
}

func (a AppConfig) IsProd() bool {
	return strings.EqualFold(a.Env, AppEnvProd)
}

// AllowedOrigins splits the comma separated CORS origin list.
func (a AppConfig) AllowedOrigins() []string {
	var out []string
	for _, origin := range strings.Split(a.CORSOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			out = append(out, origin)
		}
	}
	return out
}

type ServiceConfig struct {
	Kind string `envconfig:"RAILX_SERVICE_KIND" default:"api"`
}

type DBConfig struct {
	DSN    string `envconfig:"RAILX_DB_DSN"`
	Driver string `envconfig:"RAILX_DB_DRIVER" default:"postgres"`

	LegacyHost     string `envconfig:"RAILX_DB_HOST"`
	LegacyPort     int    `envconfig:"RAILX_DB_PORT" default:"5432"`
	LegacyUser     string `envconfig:"RAILX_DB_USER"`
	LegacyPassword string `envconfig:"RAILX_DB_PASSWORD"`
	LegacyName     string `envconfig:"RAILX_DB_NAME"`
	LegacySSLMode  string `envconfig:"RAILX_DB_SSLMODE" default:"disable"`

	MaxOpenConns    int           `envconfig:"RAILX_DB_MAX_OPEN_CONNS" default:"20"`
	MaxIdleConns    int           `envconfig:"RAILX_DB_MAX_IDLE_CONNS" default:"10"`
	ConnMaxLifetime time.Duration `envconfig:"RAILX_DB_CONN_MAX_LIFETIME" default:"1h"`
	ConnMaxIdleTime time.Duration `envconfig:"RAILX_DB_CONN_MAX_IDLE_TIME" default:"10m"`
	SlowQuery       time.Duration `envconfig:"RAILX_DB_SLOW_QUERY" default:"250ms"`
}

type RedisConfig struct {
	URL          string        `envconfig:"RAILX_REDIS_URL" required:"true"`
	Address      string        `envconfig:"RAILX_REDIS_ADDR"`
	Password     string        `envconfig:"RAILX_REDIS_PASSWORD"`
	DB           int           `envconfig:"RAILX_REDIS_DB" default:"0"`
	PoolSize     int           `envconfig:"RAILX_REDIS_POOL_SIZE" default:"10"`
	MinIdleConns int           `envconfig:"RAILX_REDIS_MIN_IDLE_CONNS" default:"2"`
	DialTimeout  time.Duration `envconfig:"RAILX_REDIS_DIAL_TIMEOUT" default:"5s"`
	ReadTimeout  time.Duration `envconfig:"RAILX_REDIS_READ_TIMEOUT" default:"5s"`
	WriteTimeout time.Duration `envconfig:"RAILX_REDIS_WRITE_TIMEOUT" default:"5s"`
}

type JWTConfig struct {
	Secret            string `envconfig:"RAILX_JWT_SECRET" required:"true"`
	Issuer            string `envconfig:"RAILX_JWT_ISSUER" required:"true"`
	ExpirationMinutes int    `envconfig:"RAILX_JWT_EXPIRATION_MINUTES" default:"60"`
}

// RateLimitConfig holds the fixed-window budgets per route group.
type RateLimitConfig struct {
	Enabled      bool          `envconfig:"RAILX_RATE_LIMIT_ENABLED" default:"true"`
	Window       time.Duration `envconfig:"RAILX_RATE_LIMIT_WINDOW" default:"1m"`
	DefaultLimit int           `envconfig:"RAILX_RATE_LIMIT_DEFAULT" default:"120"`
	UploadLimit  int           `envconfig:"RAILX_RATE_LIMIT_UPLOADS" default:"20"`
	SubmitLimit  int           `envconfig:"RAILX_RATE_LIMIT_SUBMIT" default:"5"`
	AdminLimit   int           `envconfig:"RAILX_RATE_LIMIT_ADMIN" default:"300"`
	LocalBurst   int           `envconfig:"RAILX_RATE_LIMIT_LOCAL_BURST" default:"10"`
}

type VerificationConfig struct {
	MaxUploadBytes     int64         `envconfig:"RAILX_VERIFICATION_MAX_UPLOAD_BYTES" default:"10485760"`
	RenewalWindow      time.Duration `envconfig:"RAILX_VERIFICATION_RENEWAL_WINDOW" default:"336h"`
	TamperThreshold    float64       `envconfig:"RAILX_VERIFICATION_TAMPER_THRESHOLD" default:"0.6"`
	ExpiryBatchSize    int           `envconfig:"RAILX_VERIFICATION_EXPIRY_BATCH" default:"200"`
	AddOnDefaultPeriod time.Duration `envconfig:"RAILX_ADDON_DEFAULT_PERIOD" default:"720h"`
}

type FeatureFlagsConfig struct {
	UseSQLite   bool `envconfig:"RAILX_USE_SQLITE" default:"false"`
	AutoMigrate bool `envconfig:"RAILX_AUTO_MIGRATE" default:"false"`
	Metrics     bool `envconfig:"RAILX_METRICS_ENABLED" default:"true"`
}

type GCPConfig struct {
	ProjectID              string `envconfig:"RAILX_GCP_PROJECT_ID" required:"true"`
	CredentialsJSON        string `envconfig:"RAILX_GCP_CREDENTIALS_JSON"`
	ApplicationCredentials string `envconfig:"RAILX_GOOGLE_APPLICATION_CREDENTIALS"`
}

type GCSConfig struct {
	BucketName        string        `envconfig:"RAILX_GCS_BUCKET_NAME" required:"true"`
	UploadURLExpiry   time.Duration `envconfig:"RAILX_GCS_UPLOAD_URL_EXPIRY" default:"15m"`
	DownloadURLExpiry time.Duration `envconfig:"RAILX_GCS_DOWNLOAD_URL_EXPIRY" default:"5m"`
	SignerEmail       string        `envconfig:"RAILX_GCS_SIGNER_EMAIL"`
}

type PubSubConfig struct {
	NotificationTopic string `envconfig:"RAILX_PUBSUB_NOTIFICATION_TOPIC" default:"rx-notification-requests"`
	DomainTopic       string `envconfig:"RAILX_PUBSUB_DOMAIN_TOPIC" default:"rx-domain-events"`
}

type OutboxConfig struct {
	BatchSize      int           `envconfig:"RAILX_OUTBOX_PUBLISH_BATCH_SIZE" default:"50"`
	PollIntervalMS int           `envconfig:"RAILX_OUTBOX_PUBLISH_POLL_MS" default:"500"`
	MaxAttempts    int           `envconfig:"RAILX_OUTBOX_MAX_ATTEMPTS" default:"10"`
	Retention      time.Duration `envconfig:"RAILX_OUTBOX_RETENTION" default:"720h"`
}

type CronConfig struct {
	Interval time.Duration `envconfig:"RAILX_CRON_INTERVAL" default:"5m"`
	LockTTL  time.Duration `envconfig:"RAILX_CRON_LOCK_TTL" default:"4m"`
}

type StripeConfig struct {
	APIKey          string            `envconfig:"RAILX_STRIPE_API_KEY"`
	Secret          string            `envconfig:"RAILX_STRIPE_SECRET"`
	Env             string            `envconfig:"RAILX_STRIPE_ENV" default:"test"`
	TierPriceIDs    map[string]string `envconfig:"RAILX_STRIPE_TIER_PRICE_IDS"`
	AddOnPriceIDs   map[string]string `envconfig:"RAILX_STRIPE_ADDON_PRICE_IDS"`
	SuccessURL      string            `envconfig:"RAILX_STRIPE_SUCCESS_URL" default:"http://localhost:3000/verification/success"`
	CancelURL       string            `envconfig:"RAILX_STRIPE_CANCEL_URL" default:"http://localhost:3000/verification/cancel"`
	WebhookEventTTL time.Duration     `envconfig:"RAILX_STRIPE_WEBHOOK_EVENT_TTL" default:"168h"`
}

// Environment returns the normalized Stripe environment (test/live).
func (s StripeConfig) Environment() string {
	env := strings.TrimSpace(strings.ToLower(s.Env))
	if env == "" {
		return "test"
	}
	return env
}

type SentryConfig struct {
	DSN              string  `envconfig:"RAILX_SENTRY_DSN"`
	TracesSampleRate float64 `envconfig:"RAILX_SENTRY_TRACES_SAMPLE_RATE" default:"0"`
}

func (s SentryConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != ""
}

func (db *DBConfig) ensureDSN() error {
	if db.DSN != "" {
		return nil
	}

	legacyValues := map[string]string{
		EnvDBHost: db.LegacyHost,
		EnvDBUser: db.LegacyUser,
		EnvDBName: db.LegacyName,
	}
	var missing []string
	for _, env := range legacyDBEnvVars {
		if legacyValues[env] == "" {
			missing = append(missing, env)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("either %s or %s are required", EnvDBDSN, strings.Join(missing, ", "))
	}

	userInfo := url.User(db.LegacyUser)
	if db.LegacyPassword != "" {
		userInfo = url.UserPassword(db.LegacyUser, db.LegacyPassword)
	}

	u := &url.URL{
		Scheme: "postgres",
		User:   userInfo,
		Host:   fmt.Sprintf("%s:%d", db.LegacyHost, db.LegacyPort),
		Path:   db.LegacyName,
	}
	if db.LegacySSLMode != "" {
		q := u.Query()
		q.Set("sslmode", db.LegacySSLMode)
		u.RawQuery = q.Encode()
	}

	db.DSN = u.String()
	return nil
}
