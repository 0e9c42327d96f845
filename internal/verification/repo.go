package verification

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	"github.com/angelmondragon/railexchange-backend/pkg/pagination"
)

// Repository persists verification records and their status history.
type Repository struct {
	db *gorm.DB
}

// NewRepository binds the repository to db.
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

func (r *Repository) FindByOwnerPath(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ? AND path = ?", ownerID, path).
		First(&rec).Error
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.VerificationRecord, error) {
	var rec models.VerificationRecord
	if err := r.db.WithContext(ctx).First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// FindByIDForUpdate row-locks the record for the rest of the transaction on
// Postgres. Other dialects fall back to a plain read.
func (r *Repository) FindByIDForUpdate(ctx context.Context, id uuid.UUID) (*models.VerificationRecord, error) {
	query := r.db.WithContext(ctx)
	if r.db.Dialector != nil && r.db.Dialector.Name() == "postgres" {
		query = query.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var rec models.VerificationRecord
	if err := query.First(&rec, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &rec, nil
}

// ListForOwner returns every record the owner holds, one per path at most.
func (r *Repository) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.VerificationRecord, error) {
	var recs []models.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("path ASC").
		Find(&recs).Error
	return recs, err
}

func (r *Repository) Create(ctx context.Context, rec *models.VerificationRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// UpdateWhereStatus applies updates only while the record still holds status
// from. Zero affected rows means another writer moved it first.
func (r *Repository) UpdateWhereStatus(ctx context.Context, id uuid.UUID, from enums.VerificationStatus, updates map[string]any) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.VerificationRecord{}).
		Where("id = ? AND status = ?", id, from).
		Updates(updates)
	return result.RowsAffected, result.Error
}

func (r *Repository) AppendHistory(ctx context.Context, entry *models.VerificationStatusHistory) error {
	return r.db.WithContext(ctx).Create(entry).Error
}

// History returns the audit trail oldest first.
func (r *Repository) History(ctx context.Context, recordID uuid.UUID) ([]models.VerificationStatusHistory, error) {
	var rows []models.VerificationStatusHistory
	err := r.db.WithContext(ctx).
		Where("record_id = ?", recordID).
		Order("changed_at ASC, id ASC").
		Find(&rows).Error
	return rows, err
}

type listByStatusParams struct {
	Status enums.VerificationStatus
	Limit  int
	Cursor *pagination.Cursor
}

// ListByStatus pages the admin queue oldest first so the longest waiting
// records are reviewed first.
func (r *Repository) ListByStatus(ctx context.Context, params listByStatusParams) ([]models.VerificationRecord, error) {
	query := r.db.WithContext(ctx).
		Model(&models.VerificationRecord{}).
		Where("status = ?", params.Status)
	var recs []models.VerificationRecord
	err := query.Scopes(pagination.Seek("created_at", params.Cursor, pagination.Ascending)).
		Limit(params.Limit).
		Find(&recs).Error
	return recs, err
}

// ListLapsed returns active records whose expiry is at or before now.
func (r *Repository) ListLapsed(ctx context.Context, now time.Time, limit int) ([]models.VerificationRecord, error) {
	var recs []models.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.VerificationStatusActive, now).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}

// ListExpiringBetween returns active records expiring in (from, to].
func (r *Repository) ListExpiringBetween(ctx context.Context, from, to time.Time, limit int) ([]models.VerificationRecord, error) {
	var recs []models.VerificationRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND expires_at > ? AND expires_at <= ?", enums.VerificationStatusActive, from, to).
		Order("expires_at ASC, id ASC").
		Limit(limit).
		Find(&recs).Error
	return recs, err
}
