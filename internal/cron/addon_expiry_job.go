package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

type addOnSweeper interface {
	SweepExpired(ctx context.Context, now time.Time, limit int) (int, error)
}

type AddOnExpiryJobParams struct {
	Logger    *logger.Logger
	AddOns    addOnSweeper
	BatchSize int
}

func NewAddOnExpiryJob(params AddOnExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.AddOns == nil {
		return nil, fmt.Errorf("addon service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	return &addOnExpiryJob{logg: params.Logger, svc: params.AddOns, batch: batch, now: time.Now}, nil
}

type addOnExpiryJob struct {
	logg  *logger.Logger
	svc   addOnSweeper
	batch int
	now   func() time.Time
}

func (j *addOnExpiryJob) Name() string { return "addon_expiry" }

func (j *addOnExpiryJob) Run(ctx context.Context) error {
	expired, err := j.svc.SweepExpired(ctx, j.now().UTC(), j.batch)
	j.logg.Info(j.logg.WithField(ctx, "expired", expired), "addon expiry sweep complete")
	if err != nil {
		return fmt.Errorf("addon expiry: %w", err)
	}
	return nil
}
