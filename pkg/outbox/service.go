package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

var errTxRequired = errors.New("transaction required")

// DomainEvent is what services hand to the outbox. Data is sealed into a
// versioned envelope before it is stored.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	Actor         *ActorRef
	Data          any
	Version       int
	OccurredAt    time.Time
	// DedupeKey makes EmitIfNotExists idempotent across retries and cron runs.
	DedupeKey string
}

func (e DomainEvent) check() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("invalid outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("invalid outbox aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return errors.New("outbox aggregate id required")
	}
	return nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit appends the event inside the caller's transaction so it commits or
// rolls back with the state change it describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	row, envelope, err := s.prepare(tx, event)
	if err != nil {
		return err
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return err
	}
	s.queued(ctx, event, envelope)
	return nil
}

// EmitIfNotExists is Emit keyed on DedupeKey. It reports false when an event
// with the same key is already stored.
func (s *Service) EmitIfNotExists(ctx context.Context, tx *gorm.DB, event DomainEvent) (bool, error) {
	if strings.TrimSpace(event.DedupeKey) == "" {
		return false, errors.New("dedupe key required")
	}
	row, envelope, err := s.prepare(tx, event)
	if err != nil {
		return false, err
	}
	inserted, err := s.repo.InsertUnlessDuplicate(tx, row)
	if err != nil || !inserted {
		return false, err
	}
	s.queued(ctx, event, envelope)
	return true, nil
}

func (s *Service) prepare(tx *gorm.DB, event DomainEvent) (models.OutboxEvent, PayloadEnvelope, error) {
	if tx == nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, errTxRequired
	}
	if err := event.check(); err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}
	envelope, err := seal(event, s.now())
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, err
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, PayloadEnvelope{}, fmt.Errorf("encode envelope: %w", err)
	}
	row := models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}
	if key := strings.TrimSpace(event.DedupeKey); key != "" {
		row.DedupeKey = &key
	}
	return row, envelope, nil
}

func (s *Service) queued(ctx context.Context, event DomainEvent, envelope PayloadEnvelope) {
	if s.logg == nil {
		return
	}
	s.logg.Debug(s.logg.WithFields(ctx, map[string]any{
		"event_id":     envelope.EventID,
		"event_type":   event.EventType,
		"aggregate_id": event.AggregateID.String(),
	}), "outbox.queued")
}
