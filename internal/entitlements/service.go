package entitlements

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
)

type userReader interface {
	GetTx(ctx context.Context, tx *gorm.DB, id uuid.UUID) (*models.User, error)
}

type verificationReader interface {
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.VerificationRecord, error)
}

type addOnReader interface {
	ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.AddOnPurchase, error)
}

// Service loads a user's inputs and resolves their capabilities.
type Service interface {
	ForUser(ctx context.Context, userID uuid.UUID) (Capabilities, error)
}

type service struct {
	users         userReader
	verifications verificationReader
	addons        addOnReader
	now           func() time.Time
}

// NewService wires the loader. Resolve itself is pure and judges expiry
// against now; the verification reader may self-heal lapsed records as it
// reads them, so ForUser sees either the healed or the raw row.
func NewService(users userReader, verifications verificationReader, addons addOnReader, now func() time.Time) (Service, error) {
	if users == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "user reader required")
	}
	if verifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verification reader required")
	}
	if addons == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "addon reader required")
	}
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{users: users, verifications: verifications, addons: addons, now: now}, nil
}

func (s *service) ForUser(ctx context.Context, userID uuid.UUID) (Capabilities, error) {
	if userID == uuid.Nil {
		return Capabilities{}, pkgerrors.New(pkgerrors.CodeValidation, "user id is required")
	}
	user, err := s.users.GetTx(ctx, nil, userID)
	if err != nil {
		return Capabilities{}, err
	}
	recs, err := s.verifications.ListForOwner(ctx, userID)
	if err != nil {
		return Capabilities{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load verification records")
	}
	purchases, err := s.addons.ListForOwner(ctx, userID)
	if err != nil {
		return Capabilities{}, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load add-ons")
	}
	return Resolve(ProfileFromUser(user), StatesFromRecords(recs), AddOnsFromPurchases(purchases), s.now()), nil
}
