package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/railexchange-backend/pkg/db"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// Service reads users and maintains the denormalized verification mirror.
type Service interface {
	Get(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error)
	RefreshSnapshot(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, path enums.VerificationPath, status enums.VerificationStatus, expiresAt *time.Time) error
}

type service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

// NewService wires the users service.
func NewService(repo *Repository, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "users repository required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &service{
		repo: repo,
		logg: logg,
		now:  func() time.Time { return time.Now().UTC() },
	}, nil
}

// Get loads the user and persists any mirror heal before returning the
// effective view.
func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := s.load(ctx, s.repo, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	for _, path := range lapsedPaths(*user, now) {
		if _, err := s.repo.ExpireLapsedSnapshot(ctx, id, path, now); err != nil {
			// The returned view is still healed; the next read retries the write.
			s.logg.Error(s.logg.WithFields(ctx, map[string]any{
				"user_id": id.String(),
				"path":    path,
			}), "users.snapshot_heal_failed", err)
			continue
		}
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"user_id": id.String(),
			"path":    path,
		}), "users.snapshot_healed")
	}
	effective := Effective(*user, now)
	return &effective, nil
}

// GetTx loads the user inside tx without persisting a heal.
func (s *service) GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error) {
	user, err := s.load(ctx, s.repo.WithTx(tx), id)
	if err != nil {
		return nil, err
	}
	effective := Effective(*user, s.now())
	return &effective, nil
}

// RefreshSnapshot mirrors a verification status onto the owner. The expiry is
// only kept while the status is active.
func (s *service) RefreshSnapshot(ctx context.Context, tx *gorm.DB, ownerID uuid.UUID, path enums.VerificationPath, status enums.VerificationStatus, expiresAt *time.Time) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeInternal, "snapshot refresh requires a transaction")
	}
	if !path.IsValid() || !status.IsValid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid snapshot path or status")
	}
	if status != enums.VerificationStatusActive {
		expiresAt = nil
	}
	rows, err := s.repo.WithTx(tx).UpdateSnapshot(ctx, ownerID, path, status, expiresAt)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "refresh user snapshot")
	}
	if rows == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
	}
	return nil
}

func (s *service) load(ctx context.Context, repo *Repository, id uuid.UUID) (*models.User, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	user, err := repo.FindByID(ctx, id)
	if err != nil {
		if dbpkg.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load user")
	}
	return user, nil
}
