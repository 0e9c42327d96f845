package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/registry"
)

const (
	defaultPublishTimeout = 15 * time.Second

	fallbackBatchSize   = 50
	fallbackMaxAttempts = 10
	fallbackPoll        = 500 * time.Millisecond

	// idle and failed polls double up to this ceiling
	backoffCeiling = 10 * time.Second
	pollJitter     = 250 * time.Millisecond
)

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pubSubClient interface {
	Ping(context.Context) error
	Publisher(name string) *gcppubsub.Publisher
}

type outboxRepository interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type dlqRepository interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type registryResolver interface {
	Resolve(models.OutboxEvent) (*registry.ResolvedEvent, error)
}

type publisherFactory func(topic string) publisher

type ServiceParams struct {
	Config           *config.Config
	Logger           *logger.Logger
	DB               dbClient
	PubSub           pubSubClient
	Repository       outboxRepository
	Registry         registryResolver
	PublisherFactory publisherFactory
	DLQRepository    dlqRepository
	Metrics          *metrics.OutboxMetrics
}

func (p ServiceParams) check() error {
	var err error
	need := func(ok bool, what string) {
		if !ok {
			err = multierr.Append(err, fmt.Errorf("%s is required", what))
		}
	}
	need(p.Config != nil, "config")
	need(p.Logger != nil, "logger")
	need(p.DB != nil, "database client")
	need(p.PubSub != nil, "pubsub client")
	need(p.Repository != nil, "outbox repository")
	need(p.Registry != nil, "event registry")
	need(p.DLQRepository != nil, "dlq repository")
	return err
}

// Service moves committed outbox rows onto Pub/Sub. A batch is one
// transaction: the claimed rows stay locked until each outcome is written.
type Service struct {
	logg             *logger.Logger
	db               dbClient
	repo             outboxRepository
	pubsub           pubSubClient
	registry         registryResolver
	dlq              dlqRepository
	publisherFactory publisherFactory
	metrics          *metrics.OutboxMetrics
	batchSize        int
	maxAttempts      int
	pollInterval     time.Duration
	now              func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	if err := p.check(); err != nil {
		return nil, err
	}
	factory := p.PublisherFactory
	if factory == nil {
		factory = cachedPublishers(p.PubSub)
	}
	cfg := p.Config.Outbox
	return &Service{
		logg:             p.Logger,
		db:               p.DB,
		repo:             p.Repository,
		pubsub:           p.PubSub,
		registry:         p.Registry,
		dlq:              p.DLQRepository,
		publisherFactory: factory,
		metrics:          p.Metrics,
		batchSize:        positiveOr(cfg.BatchSize, fallbackBatchSize),
		maxAttempts:      positiveOr(cfg.MaxAttempts, fallbackMaxAttempts),
		pollInterval:     positiveOr(time.Duration(cfg.PollIntervalMS)*time.Millisecond, fallbackPoll),
		now:              time.Now,
	}, nil
}

func positiveOr[T int | time.Duration](v, fallback T) T {
	if v > 0 {
		return v
	}
	return fallback
}

// Run relays until ctx ends. After a batch that settled rows it polls again
// at once; otherwise it waits, doubling the wait after each failed batch.
func (s *Service) Run(ctx context.Context) error {
	if err := s.preflight(ctx); err != nil {
		return err
	}

	wait := s.pollInterval
	for ctx.Err() == nil {
		settled, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox.batch_failed", err)
			wait = min(wait*2, backoffCeiling)
		case settled:
			wait = s.pollInterval
			continue
		default:
			wait = s.pollInterval
		}
		if err := pause(ctx, wait+rand.N(pollJitter)); err != nil {
			break
		}
	}
	s.logg.Info(ctx, "outbox.relay_stopped")
	return ctx.Err()
}

func (s *Service) preflight(ctx context.Context) error {
	if err := s.db.Ping(ctx); err != nil {
		return fmt.Errorf("database unreachable: %w", err)
	}
	if err := s.pubsub.Ping(ctx); err != nil {
		return fmt.Errorf("pubsub unreachable: %w", err)
	}
	return nil
}

func pause(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
