// Command outbox-publisher relays committed outbox rows to Pub/Sub.
package main

import (
	"context"
	"errors"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/railexchange-backend/pkg/bootstrap"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/registry"
)

func main() {
	proc := bootstrap.Start("outbox-publisher")
	defer proc.Close()

	boot := context.Background()
	dbClient := proc.Database(boot)
	pubsubClient := proc.PubSub(boot)

	events, err := registry.NewEventRegistry(proc.Config.PubSub)
	proc.Must(err, "outbox.registry_failed")

	service, err := NewService(ServiceParams{
		Config:        proc.Config,
		Logger:        proc.Logger,
		DB:            dbClient,
		PubSub:        pubsubClient,
		Repository:    outbox.NewRepository(dbClient.DB()),
		Registry:      events,
		DLQRepository: outbox.NewDLQRepository(dbClient.DB()),
		Metrics:       metrics.NewOutboxMetrics(prometheus.DefaultRegisterer),
	})
	proc.Must(err, "outbox.service_failed")

	ctx, stop := proc.SignalContext(nil)
	defer stop()
	proc.Logger.Info(ctx, "outbox.starting")

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		proc.Must(err, "outbox.stopped")
	}
	proc.Logger.Info(ctx, "outbox.stopped")
}
