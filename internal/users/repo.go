package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
)

// snapshot column pairs per verification path: status, then expiry.
var snapshotCols = map[enums.VerificationPath][2]string{
	enums.VerificationPathSeller:     {"seller_verification_status", "seller_verified_expires_at"},
	enums.VerificationPathContractor: {"contractor_verification_status", "contractor_verified_expires_at"},
}

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	if tx == nil {
		return r
	}
	return &Repository{db: tx}
}

func (r *Repository) Create(ctx context.Context, dto CreateUserDTO) (*models.User, error) {
	u := dto.ToModel()
	if err := r.db.WithContext(ctx).Create(u).Error; err != nil {
		return nil, err
	}
	return u, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var u models.User
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&u).Error; err != nil {
		return nil, err
	}
	return &u, nil
}

func (r *Repository) row(ctx context.Context, id uuid.UUID) *gorm.DB {
	return r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id)
}

// UpdateSnapshot overwrites the mirrored status and expiry for one path.
func (r *Repository) UpdateSnapshot(ctx context.Context, id uuid.UUID, path enums.VerificationPath, status enums.VerificationStatus, expiresAt *time.Time) (int64, error) {
	cols := snapshotColumns(path)
	res := r.row(ctx, id).UpdateColumns(map[string]any{cols[0]: status, cols[1]: expiresAt})
	return res.RowsAffected, res.Error
}

// ExpireLapsedSnapshot flips a mirrored active status to expired once its
// expiry has passed. Rows that no longer hold the stale value are left alone.
func (r *Repository) ExpireLapsedSnapshot(ctx context.Context, id uuid.UUID, path enums.VerificationPath, now time.Time) (int64, error) {
	cols := snapshotColumns(path)
	res := r.row(ctx, id).
		Where(cols[0]+" = ?", enums.VerificationStatusActive).
		Where(cols[1]+" IS NOT NULL").
		Where(cols[1]+" <= ?", now).
		UpdateColumns(map[string]any{cols[0]: enums.VerificationStatusExpired, cols[1]: nil})
	return res.RowsAffected, res.Error
}

// snapshotColumns falls back to the seller columns for an unknown path.
func snapshotColumns(path enums.VerificationPath) [2]string {
	if cols, ok := snapshotCols[path]; ok {
		return cols
	}
	return snapshotCols[enums.VerificationPathSeller]
}
