// Package bootstrap is the shared start-up sequence of the binaries under
// cmd/: environment, config, logger, then the infrastructure clients. Clients
// opened through a Process are closed in reverse order by Close.
package bootstrap

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.uber.org/multierr"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/db"
	"github.com/angelmondragon/railexchange-backend/pkg/instance"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/migrate"
	"github.com/angelmondragon/railexchange-backend/pkg/pubsub"
	"github.com/angelmondragon/railexchange-backend/pkg/redis"
	"github.com/angelmondragon/railexchange-backend/pkg/storage/gcs"
)

type closer struct {
	name string
	c    io.Closer
}

// Process holds the config and logger of one running binary.
type Process struct {
	Config *config.Config
	Logger *logger.Logger

	closers []closer
	exit    func(int)
}

// Start loads .env when present, then the typed config. Failure to load the
// config ends the process.
func Start(kind string) *Process {
	boot := logger.New(logger.Options{ServiceName: kind})
	if err := godotenv.Load(); err != nil {
		boot.Debug(context.Background(), "no .env file, using process environment")
	}
	cfg, err := config.Load()
	if err != nil {
		boot.Error(context.Background(), "config.load_failed", err)
		os.Exit(1)
	}
	cfg.Service.Kind = kind
	return &Process{
		Config: cfg,
		Logger: logger.New(logger.Options{
			ServiceName: kind,
			Level:       logger.ParseLevel(cfg.App.LogLevel),
			WarnStack:   cfg.App.LogWarnStack,
			Format:      cfg.App.LogFormat,
		}),
		exit: os.Exit,
	}
}

// Must ends the process when err is set, closing whatever was opened first.
func (p *Process) Must(err error, what string) {
	if err == nil {
		return
	}
	p.Logger.Error(context.Background(), what, err)
	_ = p.Close()
	p.exit(1)
}

// Track registers c to be closed by Close.
func (p *Process) Track(name string, c io.Closer) {
	p.closers = append(p.closers, closer{name: name, c: c})
}

// Close shuts tracked clients down newest first and reports every failure.
func (p *Process) Close() error {
	var errs error
	for i := len(p.closers) - 1; i >= 0; i-- {
		cl := p.closers[i]
		if err := cl.c.Close(); err != nil {
			p.Logger.Error(p.Logger.WithField(context.Background(), "client", cl.name), "shutdown.close_failed", err)
			errs = multierr.Append(errs, fmt.Errorf("close %s: %w", cl.name, err))
		}
	}
	p.closers = nil
	return errs
}

// Database opens the pool and, in dev with auto-migrate on, applies pending
// migrations.
func (p *Process) Database(ctx context.Context) *db.Client {
	client, err := db.New(ctx, p.Config.DB, p.Logger)
	p.Must(err, "database.connect_failed")
	p.Track("database", client)
	p.Must(migrate.MaybeRunDev(ctx, p.Config, p.Logger, client), "database.migrate_failed")
	return client
}

func (p *Process) Redis(ctx context.Context) *redis.Client {
	client, err := redis.New(ctx, p.Config.Redis, p.Logger)
	p.Must(err, "redis.connect_failed")
	p.Track("redis", client)
	return client
}

func (p *Process) Storage(ctx context.Context) *gcs.Client {
	client, err := gcs.NewClient(ctx, p.Config.GCS, p.Config.GCP, p.Logger)
	p.Must(err, "gcs.connect_failed")
	p.Track("gcs", client)
	return client
}

func (p *Process) PubSub(ctx context.Context) *pubsub.Client {
	client, err := pubsub.NewClient(ctx, p.Config.GCP, p.Config.PubSub, p.Logger)
	p.Must(err, "pubsub.connect_failed")
	p.Track("pubsub", client)
	return client
}

// SignalContext is canceled on SIGINT or SIGTERM and carries the process
// identity as log fields.
func (p *Process) SignalContext(extra map[string]any) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	fields := map[string]any{
		"env":          p.Config.App.Env,
		"service_kind": p.Config.Service.Kind,
		"instance":     instance.GetID(),
	}
	for k, v := range extra {
		fields[k] = v
	}
	return p.Logger.WithFields(ctx, fields), stop
}
