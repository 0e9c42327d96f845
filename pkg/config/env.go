package config

const (
	EnvPrefix = "RAILX"

	AppEnvDev  = "dev"
	AppEnvTest = "test"
	AppEnvProd = "prod"

	EnvAppEnv       = "RAILX_APP_ENV"
	EnvPort         = "RAILX_APP_PORT"
	EnvDBDSN        = "RAILX_DB_DSN"
	EnvDBHost       = "RAILX_DB_HOST"
	EnvDBUser       = "RAILX_DB_USER"
	EnvDBName       = "RAILX_DB_NAME"
	EnvRedisURL     = "RAILX_REDIS_URL"
	EnvJWTSecret    = "RAILX_JWT_SECRET"
	EnvJWTIssuer    = "RAILX_JWT_ISSUER"
	EnvJWTExpMins   = "RAILX_JWT_EXPIRATION_MINUTES"
	EnvGCPProjectID = "RAILX_GCP_PROJECT_ID"
	EnvGCSBucket    = "RAILX_GCS_BUCKET_NAME"
	EnvStripeAPIKey = "RAILX_STRIPE_API_KEY"
	EnvStripeSecret = "RAILX_STRIPE_SECRET"
	EnvSentryDSN    = "RAILX_SENTRY_DSN"
)

var legacyDBEnvVars = []string{EnvDBHost, EnvDBUser, EnvDBName}
