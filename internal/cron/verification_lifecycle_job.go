package cron

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

const (
	defaultBatchSize     = 200
	defaultRenewalWindow = 14 * 24 * time.Hour
)

type verificationLifecycle interface {
	ExpireDue(ctx context.Context, now time.Time, limit int) (int, error)
	RemindRenewals(ctx context.Context, now time.Time, window time.Duration, limit int) (int, error)
}

type VerificationLifecycleJobParams struct {
	Logger        *logger.Logger
	Verifications verificationLifecycle
	BatchSize     int
	RenewalWindow time.Duration
}

// NewVerificationLifecycleJob persists expiry for lapsed active records and
// sends one renewal reminder per record approaching its expiry.
func NewVerificationLifecycleJob(params VerificationLifecycleJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Verifications == nil {
		return nil, fmt.Errorf("verification service required")
	}
	batch := params.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	window := params.RenewalWindow
	if window <= 0 {
		window = defaultRenewalWindow
	}
	return &verificationLifecycleJob{
		logg:   params.Logger,
		svc:    params.Verifications,
		batch:  batch,
		window: window,
		now:    time.Now,
	}, nil
}

type verificationLifecycleJob struct {
	logg   *logger.Logger
	svc    verificationLifecycle
	batch  int
	window time.Duration
	now    func() time.Time
}

func (j *verificationLifecycleJob) Name() string { return "verification_lifecycle" }

func (j *verificationLifecycleJob) Run(ctx context.Context) error {
	now := j.now().UTC()

	expired, expireErr := j.svc.ExpireDue(ctx, now, j.batch)
	if expireErr != nil {
		expireErr = fmt.Errorf("expire due: %w", expireErr)
	}
	reminded, remindErr := j.svc.RemindRenewals(ctx, now, j.window, j.batch)
	if remindErr != nil {
		remindErr = fmt.Errorf("renewal reminders: %w", remindErr)
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"expired":        expired,
		"reminders_sent": reminded,
		"renewal_window": j.window.String(),
	}), "verification lifecycle complete")
	return multierr.Combine(expireErr, remindErr)
}
