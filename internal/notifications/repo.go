package notifications

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

const defaultPruneBatch = 500

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	Create(ctx context.Context, notification *models.Notification) error
	List(ctx context.Context, params listNotificationsParams) ([]models.Notification, error)
	MarkRead(ctx context.Context, ownerID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error)
	MarkAllRead(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error)
	DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error)
}

type listNotificationsParams struct {
	OwnerID    uuid.UUID
	Limit      int
	Cursor     *pagination.Cursor
	UnreadOnly bool
}

// notificationMarkResult separates "already read" (Found, not Updated) from
// "not yours or missing" (not Found).
type notificationMarkResult struct {
	Updated bool
	Found   bool
}

type gormRepository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &gormRepository{db: tx}
}

// inbox scopes a query to one owner's notifications.
func (r *gormRepository) inbox(ctx context.Context, ownerID uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.Notification{}).Where("owner_id = ?", ownerID)
}

func (r *gormRepository) Create(ctx context.Context, n *models.Notification) error {
	return r.db.WithContext(ctx).Create(n).Error
}

// List pages newest first. Callers pass a buffered limit.
func (r *gormRepository) List(ctx context.Context, p listNotificationsParams) ([]models.Notification, error) {
	q := r.inbox(ctx, p.OwnerID)
	if p.UnreadOnly {
		q = q.Where("read_at IS NULL")
	}
	var out []models.Notification
	err := q.Scopes(pagination.Seek("created_at", p.Cursor, pagination.Descending)).
		Limit(p.Limit).
		Find(&out).Error
	return out, err
}

func (r *gormRepository) MarkRead(ctx context.Context, ownerID, id uuid.UUID, now time.Time) (notificationMarkResult, error) {
	res := r.inbox(ctx, ownerID).
		Where("id = ? AND read_at IS NULL", id).
		UpdateColumn("read_at", now)
	if res.Error != nil {
		return notificationMarkResult{}, res.Error
	}
	if res.RowsAffected > 0 {
		return notificationMarkResult{Updated: true, Found: true}, nil
	}

	var n int64
	if err := r.inbox(ctx, ownerID).Where("id = ?", id).Count(&n).Error; err != nil {
		return notificationMarkResult{}, err
	}
	return notificationMarkResult{Found: n > 0}, nil
}

func (r *gormRepository) MarkAllRead(ctx context.Context, ownerID uuid.UUID, now time.Time) (int64, error) {
	res := r.inbox(ctx, ownerID).
		Where("read_at IS NULL").
		UpdateColumn("read_at", now)
	return res.RowsAffected, res.Error
}

// DeleteReadBefore prunes at most limit read rows created before cutoff,
// oldest first. Unread rows are kept regardless of age.
func (r *gormRepository) DeleteReadBefore(ctx context.Context, cutoff time.Time, limit int) (int64, error) {
	if limit <= 0 {
		limit = defaultPruneBatch
	}
	victims := r.db.WithContext(ctx).
		Model(&models.Notification{}).
		Select("id").
		Where("read_at IS NOT NULL AND created_at < ?", cutoff).
		Order("created_at ASC").
		Limit(limit)
	res := r.db.WithContext(ctx).Where("id IN (?)", victims).Delete(&models.Notification{})
	return res.RowsAffected, res.Error
}
