package main

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/angelmondragon/railexchange-backend/pkg/metrics"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/registry"
)

// processBatch claims one batch and settles what it can. Once a row of an
// aggregate fails to publish, later rows of that aggregate are left untouched
// for the next poll so subscribers never see them out of order. It reports
// whether any row was settled, so a batch of pure failures backs off.
func (s *Service) processBatch(ctx context.Context) (bool, error) {
	settled := false
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		events, err := s.repo.FetchUnpublishedForPublish(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}

		blocked := map[uuid.UUID]bool{}
		for _, event := range events {
			if blocked[event.AggregateID] {
				s.metrics.Inc(string(event.EventType), metrics.OutboxDeferred)
				continue
			}
			ok, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			if !ok {
				blocked[event.AggregateID] = true
				continue
			}
			settled = true
		}
		return nil
	})
	return settled, err
}

// relay publishes one row and records the outcome. It reports false when the
// row is still pending afterwards.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (bool, error) {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"attempt_count":  event.AttemptCount,
	}

	resolved, err := s.registry.Resolve(event)
	if err != nil {
		return true, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, err, fields)
	}
	fields["topic"] = resolved.Descriptor.Topic
	fields["event_id"] = resolved.Envelope.EventID

	pubErr := s.publish(ctx, event, resolved)
	if pubErr == nil {
		if err := s.repo.MarkPublishedTx(tx, event.ID); err != nil {
			return false, fmt.Errorf("mark published %s: %w", event.ID, err)
		}
		s.metrics.Inc(string(event.EventType), metrics.OutboxPublished)
		s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
		return true, nil
	}

	var nonRetryable registry.NonRetryableError
	if errors.As(pubErr, &nonRetryable) {
		return true, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonNonRetryable, pubErr, fields)
	}

	attempt := event.AttemptCount + 1
	if attempt >= s.maxAttempts {
		return true, s.deadLetter(ctx, tx, event, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("max publish attempts reached: %w", pubErr), fields)
	}

	fields["attempt_count"] = attempt
	fields["error"] = pubErr.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox publish failed")
	s.metrics.Inc(string(event.EventType), metrics.OutboxRetried)
	if err := s.repo.MarkFailedTx(tx, event.ID, pubErr); err != nil {
		return false, fmt.Errorf("mark failure %s: %w", event.ID, err)
	}
	return false, nil
}

func (s *Service) deadLetter(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error, fields map[string]any) error {
	fields["error_reason"] = reason
	fields["error"] = cause.Error()
	s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event will not be retried")

	entry := models.DeadLetterFrom(event, reason, cause.Error(), s.now().UTC())
	if err := s.dlq.InsertTx(tx, entry); err != nil {
		return fmt.Errorf("insert dlq %s: %w", event.ID, err)
	}
	if err := s.repo.MarkTerminalTx(tx, event.ID, cause, s.maxAttempts); err != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, err)
	}
	s.metrics.Inc(string(event.EventType), metrics.OutboxDeadLet)
	return nil
}

func (s *Service) publish(ctx context.Context, event models.OutboxEvent, resolved *registry.ResolvedEvent) error {
	topic := resolved.Descriptor.Topic
	pub := s.publisherFactory(topic)
	if pub == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher not configured for topic %s", topic))
	}

	msg := &gcppubsub.Message{
		Data: event.Payload,
		// One record's transitions stay in commit order for subscribers.
		OrderingKey: event.AggregateID.String(),
		Attributes: map[string]string{
			"event_id":       resolved.Envelope.EventID,
			"event_type":     string(event.EventType),
			"aggregate_type": string(event.AggregateType),
			"aggregate_id":   event.AggregateID.String(),
			"created_at":     event.CreatedAt.Format(time.RFC3339Nano),
			"version":        strconv.Itoa(resolved.Envelope.Version),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, msg)
	if result == nil {
		return registry.NewNonRetryableError(fmt.Errorf("publisher returned nil for topic %s", topic))
	}
	_, err := result.Get(publishCtx)
	return err
}
