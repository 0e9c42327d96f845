package outbox

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
)

const envelopeVersion = 1

// ActorRef identifies who caused the event. Cron and webhook events carry a
// nil user id.
type ActorRef struct {
	UserID uuid.UUID `json:"userId"`
	Role   string    `json:"role,omitempty"`
}

// PayloadEnvelope is the JSON shape stored in outbox_events.payload and
// published verbatim as the message body.
type PayloadEnvelope struct {
	Version    int             `json:"version"`
	EventID    string          `json:"eventId"`
	OccurredAt time.Time       `json:"occurredAt"`
	Actor      *ActorRef       `json:"actor,omitempty"`
	Data       json.RawMessage `json:"data"`
}

// seal wraps the event data with a fresh event id.
func seal(event DomainEvent, now time.Time) (PayloadEnvelope, error) {
	if event.Data == nil {
		return PayloadEnvelope{}, errors.New("event data required")
	}
	data, err := json.Marshal(event.Data)
	if err != nil {
		return PayloadEnvelope{}, err
	}
	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = now
	}
	version := event.Version
	if version <= 0 {
		version = envelopeVersion
	}
	return PayloadEnvelope{
		Version:    version,
		EventID:    uuid.NewString(),
		OccurredAt: occurredAt.UTC(),
		Actor:      event.Actor,
		Data:       data,
	}, nil
}
