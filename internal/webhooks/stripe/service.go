package stripewebhook

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
	"gorm.io/gorm"

	"github.com/angelmondragon/railexchange-backend/internal/addons"
	"github.com/angelmondragon/railexchange-backend/internal/checkout"
	"github.com/angelmondragon/railexchange-backend/internal/verification"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
	stripeclient "github.com/angelmondragon/railexchange-backend/pkg/stripe"
)

type paymentConfirmer interface {
	ConfirmPayment(ctx context.Context, conf verification.PaymentConfirmation) (*models.VerificationRecord, error)
}

type addOnPurchaser interface {
	Purchase(ctx context.Context, tx *gorm.DB, in addons.PurchaseInput) (*models.AddOnPurchase, error)
}

type ServiceParams struct {
	Verifications paymentConfirmer
	AddOns        addOnPurchaser
	AddOnPeriod   time.Duration
	Logger        *logger.Logger
}

// Service turns paid checkout sessions into verification activations and add-on purchases.
type Service struct {
	verifications paymentConfirmer
	addons        addOnPurchaser
	addOnPeriod   time.Duration
	logg          *logger.Logger
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Verifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "verification service required")
	}
	if params.AddOns == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "addon service required")
	}
	if params.Logger == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger required")
	}
	return &Service{
		verifications: params.Verifications,
		addons:        params.AddOns,
		addOnPeriod:   params.AddOnPeriod,
		logg:          params.Logger,
	}, nil
}

// HandleEvent applies a verified Stripe event. Faults a redelivery cannot
// cure are logged and acknowledged so Stripe stops retrying; only transient
// failures come back as errors.
func (s *Service) HandleEvent(ctx context.Context, event *stripe.Event) error {
	if event == nil || event.Data == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "stripe event data required")
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		logCtx := s.logg.WithFields(ctx, map[string]any{"event_id": event.ID, "event_type": string(event.Type)})
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return s.acknowledge(logCtx, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode checkout session"))
		}
		if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			s.logg.Info(s.logg.WithFields(logCtx, map[string]any{
				"session_id":     sess.ID,
				"payment_status": sess.PaymentStatus,
			}), "stripe.session_unpaid")
			return nil
		}
		logCtx = s.logg.WithFields(logCtx, map[string]any{
			"session_id": sess.ID,
			"kind":       sess.Metadata[checkout.MetaKind],
		})
		return s.acknowledge(logCtx, s.handlePaidSession(logCtx, &sess))
	default:
		return nil
	}
}

// acknowledge swallows permanent faults after logging them.
func (s *Service) acknowledge(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	for _, code := range []pkgerrors.Code{pkgerrors.CodeValidation, pkgerrors.CodeConflict, pkgerrors.CodeNotFound} {
		if pkgerrors.IsCode(err, code) {
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"code":  string(code),
				"error": err.Error(),
			}), "stripe.session_not_applied")
			return nil
		}
	}
	return err
}

func (s *Service) handlePaidSession(ctx context.Context, sess *stripe.CheckoutSession) error {
	ownerID, err := metadataUUID(sess.Metadata, checkout.MetaOwnerID)
	if err != nil {
		return err
	}

	switch sess.Metadata[checkout.MetaKind] {
	case checkout.KindVerification:
		recordID, err := metadataUUID(sess.Metadata, checkout.MetaRecordID)
		if err != nil {
			return err
		}
		_, err = s.verifications.ConfirmPayment(ctx, verification.PaymentConfirmation{
			OwnerID:    ownerID,
			RecordID:   recordID,
			Tier:       sess.Metadata[checkout.MetaTier],
			PaymentRef: sess.ID,
		})
		return err
	case checkout.KindAddOn:
		addOnType, err := enums.ParseAddOnType(sess.Metadata[checkout.MetaAddOnType])
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout metadata addon_type")
		}
		_, err = s.addons.Purchase(ctx, nil, addons.PurchaseInput{
			OwnerID:    ownerID,
			AddOnType:  addOnType,
			Duration:   addons.DefaultDuration(addOnType, s.addOnPeriod),
			PaymentRef: sess.ID,
			AmountPaid: stripeclient.MajorUnits(sess.AmountTotal, sess.Currency),
			Currency:   string(sess.Currency),
		})
		return err
	default:
		s.logg.Warn(s.logg.WithField(ctx, "owner_id", ownerID.String()), "stripe.session_kind_unknown")
		return nil
	}
}

func metadataUUID(metadata map[string]string, key string) (uuid.UUID, error) {
	raw := strings.TrimSpace(metadata[key])
	if raw == "" {
		return uuid.Nil, pkgerrors.Newf(pkgerrors.CodeValidation, "checkout metadata %s missing", key)
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "checkout metadata "+key)
	}
	return id, nil
}
