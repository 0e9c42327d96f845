package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/railexchange-backend/api/responses"
	"github.com/angelmondragon/railexchange-backend/api/validators"
	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// Inbox is the read side of notifications an owner sees.
type Inbox interface {
	List(ctx context.Context, params notifications.ListParams) (*notifications.ListResult, error)
	MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID) error
	MarkAllRead(ctx context.Context, ownerID uuid.UUID) (int64, error)
}

type notificationDTO struct {
	ID        uuid.UUID  `json:"id"`
	Type      string     `json:"type"`
	Title     string     `json:"title"`
	Message   string     `json:"message"`
	Link      *string    `json:"link,omitempty"`
	ReadAt    *time.Time `json:"readAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
}

type inboxPage struct {
	Items      []notificationDTO `json:"items"`
	NextCursor string            `json:"nextCursor,omitempty"`
}

func toInboxPage(res *notifications.ListResult) inboxPage {
	page := inboxPage{Items: make([]notificationDTO, 0)}
	if res == nil {
		return page
	}
	page.NextCursor = res.Cursor
	for _, n := range res.Items {
		page.Items = append(page.Items, toNotificationDTO(n))
	}
	return page
}

func toNotificationDTO(n models.Notification) notificationDTO {
	return notificationDTO{
		ID:        n.ID,
		Type:      string(n.Type),
		Title:     n.Title,
		Message:   n.Message,
		Link:      n.Link,
		ReadAt:    n.ReadAt,
		CreatedAt: n.CreatedAt,
	}
}

// inboxHandler resolves the caller before handing off; every inbox route is
// owner-scoped.
func inboxHandler(inbox Inbox, logg *logger.Logger, next func(r *http.Request, ownerID uuid.UUID) (any, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if inbox == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "notifications unavailable"))
			return
		}
		ownerID, err := userIDFromRequest(r)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		out, err := next(r, ownerID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, out)
	}
}

// ListNotifications pages through the caller's inbox, newest first.
func ListNotifications(inbox Inbox, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(inbox, logg, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		page, err := validators.PageParams(r)
		if err != nil {
			return nil, err
		}
		unread, err := validators.ParseQueryBool(r, "unreadOnly")
		if err != nil {
			return nil, err
		}
		res, err := inbox.List(r.Context(), notifications.ListParams{
			OwnerID:    ownerID,
			Limit:      page.Limit,
			Cursor:     page.Cursor,
			UnreadOnly: unread,
		})
		if err != nil {
			return nil, err
		}
		return toInboxPage(res), nil
	})
}

func MarkNotificationRead(inbox Inbox, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(inbox, logg, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		id, err := uuidParam(r, "notificationId")
		if err != nil {
			return nil, err
		}
		if err := inbox.MarkRead(r.Context(), ownerID, id); err != nil {
			return nil, err
		}
		return map[string]bool{"read": true}, nil
	})
}

func MarkAllNotificationsRead(inbox Inbox, logg *logger.Logger) http.HandlerFunc {
	return inboxHandler(inbox, logg, func(r *http.Request, ownerID uuid.UUID) (any, error) {
		n, err := inbox.MarkAllRead(r.Context(), ownerID)
		if err != nil {
			return nil, err
		}
		return map[string]int64{"updated": n}, nil
	})
}
