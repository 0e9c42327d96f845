package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

const (
	defaultOutboxRetention       = 30 * 24 * time.Hour
	defaultNotificationRetention = 90 * 24 * time.Hour
	retentionBatch               = 500
	retentionMaxBatches          = 20
)

// pruneFunc deletes at most limit rows older than cutoff and reports how many went.
type pruneFunc func(ctx context.Context, cutoff time.Time, limit int) (int64, error)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	Repository interface {
		DeletePublishedBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	}
	Retention time.Duration
}

// NewOutboxRetentionJob prunes outbox rows that were published before the retention.
// Unpublished and failed rows are left for the publisher and the DLQ.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return newRetentionJob("outbox_retention", params.Logger, params.Repository.DeletePublishedBefore, params.Retention, defaultOutboxRetention)
}

type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	Repository interface {
		DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
	}
	Retention time.Duration
}

// NewNotificationCleanupJob prunes read in-app notifications past the retention.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if params.Repository == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return newRetentionJob("notification_cleanup", params.Logger, params.Repository.DeleteReadBefore, params.Retention, defaultNotificationRetention)
}

func newRetentionJob(name string, logg *logger.Logger, prune pruneFunc, retention, fallback time.Duration) (*retentionJob, error) {
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if retention <= 0 {
		retention = fallback
	}
	return &retentionJob{
		name:      name,
		logg:      logg,
		prune:     prune,
		retention: retention,
		batch:     retentionBatch,
		now:       time.Now,
	}, nil
}

type retentionJob struct {
	name      string
	logg      *logger.Logger
	prune     pruneFunc
	retention time.Duration
	batch     int
	now       func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

// Run deletes in bounded batches until a short batch or the per-run cap, so a
// large backlog drains over several cycles instead of one long statement.
func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	batches := 0
	for batches < retentionMaxBatches {
		if err := ctx.Err(); err != nil {
			return err
		}
		rows, err := j.prune(ctx, cutoff, j.batch)
		batches++
		if err != nil {
			return fmt.Errorf("%s: %w", j.name, err)
		}
		deleted += rows
		if rows < int64(j.batch) {
			break
		}
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"retention":    j.retention.String(),
		"batches":      batches,
		"rows_deleted": deleted,
	}), "retention prune complete")
	return nil
}
