package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/railexchange-backend/pkg/bootstrap"
	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/db"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/migrate"
)

type options struct {
	command  string
	dir      string
	embedded bool
	name     string
	version  string
}

func parseFlags() options {
	var opts options
	flag.StringVar(&opts.command, "cmd", "up", "up|down|status|version|create|validate")
	flag.StringVar(&opts.dir, "dir", migrate.DefaultDir, "migrations directory, used by create and when -embedded=false")
	flag.BoolVar(&opts.embedded, "embedded", true, "use the migrations compiled into the binary")
	flag.StringVar(&opts.name, "name", "", "migration name for -cmd=create")
	flag.StringVar(&opts.version, "version", "", "target version (YYYYMMDDHHMMSS) for -cmd=version")
	flag.Parse()
	return opts
}

func (o options) source() migrate.Source {
	if o.embedded {
		return migrate.Embedded()
	}
	return migrate.Dir(o.dir)
}

func main() {
	opts := parseFlags()
	_ = godotenv.Load()

	// create and validate only touch files.
	switch opts.command {
	case "create":
		if opts.name == "" {
			exitf("missing -name for create")
		}
		path, err := migrate.Scaffold(opts.dir, opts.name, time.Now())
		if err != nil {
			exitf("create migration: %v", err)
		}
		fmt.Println("created migration:", path)
		return
	case "validate":
		if err := migrate.Validate(opts.source()); err != nil {
			exitf("migration validation failed:\n%v", err)
		}
		fmt.Println("migrations valid:", opts.source())
		return
	}

	proc := bootstrap.Start("migrate")
	cfg, logg := proc.Config, proc.Logger
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":    cfg.App.Env,
		"cmd":    opts.command,
		"source": opts.source().String(),
	})

	if err := run(ctx, cfg, logg, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "migrate finished")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, opts options) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.SQL()
	if err != nil {
		return err
	}
	runner, err := migrate.NewRunner(sqlDB, opts.source(), logg)
	if err != nil {
		return err
	}

	if opts.command == "version" {
		if opts.version == "" {
			return fmt.Errorf("missing -version for version command")
		}
		return runner.MigrateTo(ctx, opts.version)
	}
	return runner.Run(ctx, opts.command)
}

func exitf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
