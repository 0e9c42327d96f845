package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
)

const defaultInterval = 5 * time.Minute

type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.CronJobMetrics
	Interval time.Duration
}

// Service runs every registered job once per tick. Locks are per job, so a
// slow sweep on one replica does not hold back the other jobs elsewhere.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	held     map[string]Lock
	metrics  *metrics.CronJobMetrics
	interval time.Duration
}

func NewService(p ServiceParams) (*Service, error) {
	if p.Logger == nil {
		return nil, errors.New("logger required")
	}
	if p.Locks == nil {
		return nil, errors.New("lock factory required")
	}
	s := &Service{
		logg:     p.Logger,
		registry: p.Registry,
		locks:    p.Locks,
		held:     map[string]Lock{},
		metrics:  p.Metrics,
		interval: p.Interval,
	}
	if s.registry == nil {
		s.registry = &Registry{}
	}
	if s.interval <= 0 {
		s.interval = defaultInterval
	}
	return s, nil
}

// Run executes a cycle immediately, then on every tick until ctx ends.
func (s *Service) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		s.cycle(ctx)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (s *Service) cycle(ctx context.Context) {
	for _, job := range s.registry.Jobs() {
		if ctx.Err() != nil {
			return
		}
		s.attempt(ctx, job)
	}
}

// attempt runs job if this replica wins its lock.
func (s *Service) attempt(ctx context.Context, job Job) {
	name := job.Name()
	ctx = s.logg.WithField(ctx, "job", name)

	lock, err := s.lockFor(name)
	if err == nil {
		var won bool
		won, err = lock.Acquire(ctx)
		if err == nil && !won {
			s.logg.Debug(ctx, "cron.job_skipped")
			s.metrics.IncSkipped(name)
			return
		}
	}
	if err != nil {
		s.logg.Error(ctx, "cron.lock_failed", err)
		s.metrics.IncFailure(name)
		return
	}
	defer func() {
		// Release even when shutdown canceled ctx so the lock does not sit
		// until its TTL.
		if err := lock.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "cron.unlock_failed", err)
		}
	}()

	started := time.Now()
	err = s.execute(ctx, job)
	took := time.Since(started)
	s.metrics.ObserveDuration(name, took)

	ctx = s.logg.WithField(ctx, "duration_ms", took.Milliseconds())
	if err != nil {
		s.logg.Error(ctx, "cron.job_failed", err)
		s.metrics.IncFailure(name)
		return
	}
	s.logg.Info(ctx, "cron.job_done")
	s.metrics.IncSuccess(name)
}

// execute turns a panicking job into a failed run.
func (s *Service) execute(ctx context.Context, job Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job panicked: %v", rec)
		}
	}()
	return job.Run(ctx)
}

func (s *Service) lockFor(name string) (Lock, error) {
	if l, ok := s.held[name]; ok {
		return l, nil
	}
	l, err := s.locks(name)
	if err != nil {
		return nil, err
	}
	s.held[name] = l
	return l, nil
}
