package notifications

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

// Request is a notification addressed to one owner.
type Request struct {
	OwnerID uuid.UUID
	Kind    enums.NotificationType
	Title   string
	Message string
	Link    string
}

// Emitter records a notification inside the caller's transaction.
type Emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, req Request) (*models.Notification, error)
}

// Service defines notification emit/list/read operations.
type Service interface {
	Emitter
	List(ctx context.Context, params ListParams) (*ListResult, error)
	MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type service struct {
	repo   Repository
	outbox outboxEmitter
	now    func() time.Time
}

// ListParams configures pagination for notifications.
type ListParams struct {
	OwnerID    uuid.UUID
	Limit      int
	Cursor     string
	UnreadOnly bool
}

// ListResult wraps returned notifications and the cursor for the next page.
type ListResult struct {
	Items  []models.Notification `json:"items"`
	Cursor string                `json:"cursor"`
}

// NewService wires notifications dependencies.
func NewService(repo Repository, events outboxEmitter) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifications repository required")
	}
	if events == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	}
	return &service{
		repo:   repo,
		outbox: events,
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Emit stores the in-app row and queues notification_requested for delivery.
// Both writes share tx so a rolled back transition never notifies.
func (s *service) Emit(ctx context.Context, tx *gorm.DB, req Request) (*models.Notification, error) {
	if tx == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "notification emit requires a transaction")
	}
	if req.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if !req.Kind.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid notification kind %q", req.Kind)
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "notification title required")
	}

	row := &models.Notification{
		ID:        uuid.New(),
		OwnerID:   req.OwnerID,
		Type:      req.Kind,
		Title:     title,
		Message:   strings.TrimSpace(req.Message),
		CreatedAt: s.now(),
	}
	if link := strings.TrimSpace(req.Link); link != "" {
		row.Link = &link
	}
	if err := s.repo.WithTx(tx).Create(ctx, row); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create notification")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventNotificationRequested,
		AggregateType: enums.AggregateNotification,
		AggregateID:   row.ID,
		OccurredAt:    row.CreatedAt,
		Data: payloads.NotificationRequestedEvent{
			NotificationID: row.ID,
			OwnerID:        row.OwnerID,
			Kind:           row.Type,
			Title:          row.Title,
			Message:        row.Message,
			Link:           strings.TrimSpace(req.Link),
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue notification")
	}
	return row, nil
}

func (s *service) List(ctx context.Context, params ListParams) (*ListResult, error) {
	if params.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	query := listNotificationsParams{
		OwnerID:    params.OwnerID,
		Limit:      pagination.LimitWithBuffer(params.Limit),
		UnreadOnly: params.UnreadOnly,
	}
	if params.Cursor != "" {
		cursor, err := pagination.ParseCursor(params.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		query.Cursor = cursor
	}

	rows, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list notifications")
	}

	page := pagination.BuildPage(rows, params.Limit, func(n models.Notification) pagination.Cursor {
		return pagination.Cursor{At: n.CreatedAt, ID: n.ID}
	})
	return &ListResult{
		Items:  page.Items,
		Cursor: page.NextCursor,
	}, nil
}

func (s *service) MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error {
	if ownerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}
	if notificationID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "notification id required")
	}

	result, err := s.repo.MarkRead(ctx, ownerID, notificationID, s.now())
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notification read")
	}
	if !result.Found {
		return pkgerrors.New(pkgerrors.CodeNotFound, "notification not found")
	}
	return nil
}

func (s *service) MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error) {
	if ownerID == uuid.Nil {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "owner id required")
	}

	count, err := s.repo.MarkAllRead(ctx, ownerID, s.now())
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark notifications read")
	}
	return count, nil
}
