package addons

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// Repository persists add-on purchases. Rows are updated, never deleted.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, row *models.AddOnPurchase) error {
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.AddOnPurchase, error) {
	var row models.AddOnPurchase
	if err := r.db.WithContext(ctx).First(&row, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) FindByPaymentRef(ctx context.Context, ref string) (*models.AddOnPurchase, error) {
	var row models.AddOnPurchase
	if err := r.db.WithContext(ctx).First(&row, "payment_ref = ?", ref).Error; err != nil {
		return nil, err
	}
	return &row, nil
}

// ListForOwner returns every purchase the owner made, newest first.
func (r *Repository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.AddOnPurchase, error) {
	var rows []models.AddOnPurchase
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("purchased_at DESC, id ASC").
		Find(&rows).Error
	return rows, err
}

// ListLapsed returns active purchases whose expiry is at or before now.
func (r *Repository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]models.AddOnPurchase, error) {
	var rows []models.AddOnPurchase
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.AddOnStatusActive, now).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

// UpdateWhereStatus applies updates only while the row still holds status from.
func (r *Repository) UpdateWhereStatus(ctx context.Context, id uuid.UUID, from enums.AddOnStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.AddOnPurchase{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}
