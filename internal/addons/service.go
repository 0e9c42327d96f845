package addons

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/internal/notifications"
	dbpkg "github.com/angelmondragon/railexchange-backend/pkg/db"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox"
	"github.com/angelmondragon/railexchange-backend/pkg/outbox/payloads"
)

const (
	// DefaultPeriod is how long a non-permanent add-on runs when no period is configured.
	DefaultPeriod     = 30 * 24 * time.Hour
	defaultSweepLimit = 200
	defaultCurrency   = "usd"
)

// DefaultDuration is the purchase length for addOnType. Permanent types return 0.
func DefaultDuration(addOnType enums.AddOnType, period time.Duration) time.Duration {
	if addOnType.IsPermanent() {
		return 0
	}
	if period <= 0 {
		return DefaultPeriod
	}
	return period
}

// PurchaseInput describes a paid add-on. A zero Duration makes it permanent.
type PurchaseInput struct {
	OwnerID    uuid.UUID
	AddOnType  enums.AddOnType
	TargetID   *uuid.UUID
	Duration   time.Duration
	PaymentRef string
	AmountPaid decimal.Decimal
	Currency   string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type eventEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// ServiceParams wires the add-on service.
type ServiceParams struct {
	DB       txRunner
	Repo     *Repository
	Notifier notifications.Emitter
	Outbox   eventEmitter
	Logger   *logger.Logger
	Now      func() time.Time
}

// Service owns the add-on purchase lifecycle.
type Service struct {
	db       txRunner
	repo     *Repository
	notifier notifications.Emitter
	outbox   eventEmitter
	logg     *logger.Logger
	now      func() time.Time
}

func NewService(p ServiceParams) (*Service, error) {
	switch {
	case p.DB == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "db runner required")
	case p.Repo == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "addon repository required")
	case p.Notifier == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "notifier required")
	case p.Outbox == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "outbox service required")
	case p.Logger == nil:
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	now := p.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Service{
		db:       p.DB,
		repo:     p.Repo,
		notifier: p.Notifier,
		outbox:   p.Outbox,
		logg:     p.Logger,
		now:      now,
	}, nil
}

// Purchase creates an active add-on on tx, or in its own transaction when tx
// is nil. A PaymentRef that was already recorded returns the existing row.
func (s *Service) Purchase(ctx context.Context, tx *gorm.DB, in PurchaseInput) (*models.AddOnPurchase, error) {
	if in.OwnerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	if !in.AddOnType.IsValid() {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "invalid add-on type %q", in.AddOnType)
	}
	if in.Duration < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "duration cannot be negative")
	}
	if in.AmountPaid.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "amount paid cannot be negative")
	}
	if tx == nil {
		var out *models.AddOnPurchase
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			row, err := s.purchaseTx(ctx, tx, in)
			out = row
			return err
		})
		if err != nil {
			return nil, err
		}
		return out, nil
	}
	return s.purchaseTx(ctx, tx, in)
}

func (s *Service) purchaseTx(ctx context.Context, tx *gorm.DB, in PurchaseInput) (*models.AddOnPurchase, error) {
	repo := s.repo.WithTx(tx)
	ref := strings.TrimSpace(in.PaymentRef)
	if ref != "" {
		existing, err := repo.FindByPaymentRef(ctx, ref)
		if err == nil {
			return s.replayed(existing, in)
		}
		if !dbpkg.IsNotFound(err) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup add-on payment")
		}
	}

	purchasedAt := s.now().UTC()
	row := &models.AddOnPurchase{
		OwnerID:     in.OwnerID,
		TargetID:    in.TargetID,
		AddOnType:   in.AddOnType,
		Status:      enums.AddOnStatusActive,
		PurchasedAt: purchasedAt,
		AmountPaid:  in.AmountPaid,
		Currency:    defaultCurrency,
	}
	if cur := strings.ToLower(strings.TrimSpace(in.Currency)); cur != "" {
		row.Currency = cur
	}
	if in.Duration > 0 {
		expiresAt := purchasedAt.Add(in.Duration)
		row.ExpiresAt = &expiresAt
	}
	if ref != "" {
		row.PaymentRef = &ref
	}

	// Savepoint so a lost race on payment_ref leaves tx usable for the re-read.
	err := tx.Transaction(func(inner *gorm.DB) error {
		return s.repo.WithTx(inner).Create(ctx, row)
	})
	if err != nil {
		if ref != "" && dbpkg.IsUniqueViolation(err, "") {
			existing, findErr := repo.FindByPaymentRef(ctx, ref)
			if findErr != nil {
				return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, findErr, "lookup add-on payment")
			}
			return s.replayed(existing, in)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create add-on purchase")
	}

	event := outbox.DomainEvent{
		EventType:     enums.EventAddOnPurchased,
		AggregateType: enums.AggregateAddOn,
		AggregateID:   row.ID,
		Actor:         &outbox.ActorRef{UserID: row.OwnerID, Role: string(enums.RoleUser)},
		OccurredAt:    purchasedAt,
		Data: payloads.AddOnPurchasedEvent{
			PurchaseID: row.ID,
			OwnerID:    row.OwnerID,
			AddOnType:  row.AddOnType,
			ExpiresAt:  row.ExpiresAt,
			PaymentRef: ref,
		},
	}
	if err := s.outbox.Emit(ctx, tx, event); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "queue add-on event")
	}

	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"purchase_id": row.ID.String(),
		"owner_id":    row.OwnerID.String(),
		"addon_type":  row.AddOnType,
	}), "addons.purchased")
	return row, nil
}

func (s *Service) replayed(existing *models.AddOnPurchase, in PurchaseInput) (*models.AddOnPurchase, error) {
	if existing.OwnerID != in.OwnerID || existing.AddOnType != in.AddOnType {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "payment reference already used for a different add-on").
			WithDetails(map[string]any{"purchaseId": existing.ID})
	}
	return existing, nil
}

// viewAt reports a lapsed but unswept purchase as expired without writing.
func viewAt(row models.AddOnPurchase, now time.Time) models.AddOnPurchase {
	if row.Status == enums.AddOnStatusActive && !row.LiveAt(now) {
		row.Status = enums.AddOnStatusExpired
	}
	return row
}

// ListForOwner returns the owner's purchases with lazy expiry applied to the view.
func (s *Service) ListForOwner(ctx context.Context, ownerID uuid.UUID) ([]models.AddOnPurchase, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	rows, err := s.repo.ListForOwner(ctx, ownerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list add-ons")
	}
	now := s.now()
	for i := range rows {
		rows[i] = viewAt(rows[i], now)
	}
	return rows, nil
}

// Cancel stops an active purchase early. Lapsed purchases cannot be canceled.
func (s *Service) Cancel(ctx context.Context, ownerID, id uuid.UUID) (*models.AddOnPurchase, error) {
	if ownerID == uuid.Nil || id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner and add-on ids are required")
	}
	var out *models.AddOnPurchase
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		row, err := repo.FindByID(ctx, id)
		if err != nil {
			if dbpkg.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "add-on not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load add-on")
		}
		if row.OwnerID != ownerID {
			return pkgerrors.New(pkgerrors.CodeNotFound, "add-on not found")
		}
		now := s.now().UTC()
		if view := viewAt(*row, now); view.Status != enums.AddOnStatusActive {
			return pkgerrors.New(pkgerrors.CodeConflict, fmt.Sprintf("add-on is %s", view.Status)).
				WithDetails(map[string]any{"purchaseId": row.ID, "status": view.Status})
		}
		rows, err := repo.UpdateWhereStatus(ctx, row.ID, enums.AddOnStatusActive, map[string]any{
			"status":      enums.AddOnStatusCanceled,
			"canceled_at": now,
		})
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "cancel add-on")
		}
		if rows == 0 {
			return pkgerrors.New(pkgerrors.CodeConflict, "add-on changed concurrently")
		}
		out, err = repo.FindByID(ctx, row.ID)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload add-on")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"purchase_id": id.String(),
		"owner_id":    ownerID.String(),
	}), "addons.canceled")
	return out, nil
}

// SweepExpired persists active to expired for up to limit lapsed purchases
// and returns how many were moved. Per-row failures are collected.
func (s *Service) SweepExpired(ctx context.Context, now time.Time, limit int) (int, error) {
	if limit <= 0 {
		limit = defaultSweepLimit
	}
	rows, err := s.repo.ListLapsed(ctx, now, limit)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list lapsed add-ons")
	}
	var errs error
	expired := 0
	for i := range rows {
		row := rows[i]
		moved := false
		err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := s.repo.WithTx(tx).UpdateWhereStatus(ctx, row.ID, enums.AddOnStatusActive, map[string]any{
				"status": enums.AddOnStatusExpired,
			})
			if err != nil || n == 0 {
				return err
			}
			moved = true
			expiredAt := now.UTC()
			if row.ExpiresAt != nil {
				expiredAt = row.ExpiresAt.UTC()
			}
			if err := s.outbox.Emit(ctx, tx, outbox.DomainEvent{
				EventType:     enums.EventAddOnExpired,
				AggregateType: enums.AggregateAddOn,
				AggregateID:   row.ID,
				Actor:         &outbox.ActorRef{Role: "system"},
				OccurredAt:    now.UTC(),
				Data: payloads.AddOnExpiredEvent{
					PurchaseID: row.ID,
					OwnerID:    row.OwnerID,
					AddOnType:  row.AddOnType,
					ExpiredAt:  expiredAt,
				},
			}); err != nil {
				return err
			}
			_, err = s.notifier.Emit(ctx, tx, expiredNotification(row))
			return err
		})
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("expire add-on %s: %w", row.ID, err))
			continue
		}
		if moved {
			expired++
		}
	}
	return expired, errs
}

func expiredNotification(row models.AddOnPurchase) notifications.Request {
	return notifications.Request{
		OwnerID: row.OwnerID,
		Kind:    enums.NotificationAddOnExpired,
		Title:   fmt.Sprintf("Your %s add-on has ended", Label(row.AddOnType)),
		Message: "Renew it from the add-ons page to keep the benefit.",
		Link:    "/addons",
	}
}

// Label is the human name for an add-on type.
func Label(t enums.AddOnType) string {
	switch t {
	case enums.AddOnPlacementElite:
		return "Elite placement"
	case enums.AddOnPlacementPremium:
		return "Premium placement"
	case enums.AddOnPlacementFeatured:
		return "Featured placement"
	case enums.AddOnPlacementBoost:
		return "Boost placement"
	case enums.AddOnAnalytics:
		return "Analytics"
	case enums.AddOnVerifiedBadge:
		return "Verified badge"
	case enums.AddOnAIDescription:
		return "AI description"
	case enums.AddOnSpecSheet:
		return "Spec sheet"
	default:
		return string(t)
	}
}
