package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/api/validators"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

// DeadLetterReader exposes rows the outbox publisher gave up on.
type DeadLetterReader interface {
	Page(ctx context.Context, params pagination.Params) (pagination.Page[models.OutboxDLQ], error)
	Get(ctx context.Context, eventID uuid.UUID) (*models.OutboxDLQ, error)
}

type deadLetterDTO struct {
	EventID       uuid.UUID                  `json:"eventId"`
	EventType     enums.OutboxEventType      `json:"eventType"`
	AggregateType enums.OutboxAggregateType  `json:"aggregateType"`
	AggregateID   uuid.UUID                  `json:"aggregateId"`
	Reason        enums.OutboxDLQErrorReason `json:"reason"`
	Message       string                     `json:"message,omitempty"`
	Attempts      int                        `json:"attempts"`
	FailedAt      time.Time                  `json:"failedAt"`
	Payload       json.RawMessage            `json:"payload,omitempty"`
}

func toDeadLetterDTO(row models.OutboxDLQ, withPayload bool) deadLetterDTO {
	dto := deadLetterDTO{
		EventID:       row.EventID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Reason:        row.ErrorReason,
		Attempts:      row.AttemptCount,
		FailedAt:      row.FailedAt,
	}
	if row.ErrorMessage != nil {
		dto.Message = *row.ErrorMessage
	}
	if withPayload {
		dto.Payload = row.Payload
	}
	return dto
}

// AdminListDeadLetters pages dead-lettered outbox events, newest first.
func AdminListDeadLetters(repo DeadLetterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		params, err := validators.PageParams(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		page, err := repo.Page(r.Context(), params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]deadLetterDTO, 0, len(page.Items))
		for _, row := range page.Items {
			items = append(items, toDeadLetterDTO(row, false))
		}
		responses.WriteSuccess(w, pagination.Page[deadLetterDTO]{Items: items, NextCursor: page.NextCursor})
	}
}

// AdminGetDeadLetter returns one dead letter with its stored envelope.
func AdminGetDeadLetter(repo DeadLetterReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if repo == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "dead letter store unavailable"))
			return
		}
		id, err := uuidParam(r, "eventId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		row, err := repo.Get(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, toDeadLetterDTO(*row, true))
	}
}
