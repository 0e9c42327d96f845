package checkout

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/db/models"
	"github.com/angelmondragon/railexchange-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/railexchange-backend/pkg/errors"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

// Metadata keys stamped on every checkout session and read back by the webhook.
const (
	MetaKind      = "kind"
	MetaOwnerID   = "owner_id"
	MetaRecordID  = "verification_record_id"
	MetaTier      = "tier"
	MetaAddOnType = "addon_type"

	KindVerification = "verification"
	KindAddOn        = "addon"
)

type sessionCreator interface {
	CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

type verificationReader interface {
	Get(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*models.VerificationRecord, error)
}

// Session is the hosted checkout the client redirects to.
type Session struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Service opens Stripe checkout sessions for verification tiers and add-ons.
type Service struct {
	stripe        sessionCreator
	verifications verificationReader
	cfg           config.StripeConfig
	logg          *logger.Logger
}

func NewService(stripeClient sessionCreator, verifications verificationReader, cfg config.StripeConfig, logg *logger.Logger) (*Service, error) {
	if stripeClient == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "stripe client required")
	}
	if verifications == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "verification reader required")
	}
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeDependency, "logger required")
	}
	return &Service{stripe: stripeClient, verifications: verifications, cfg: cfg, logg: logg}, nil
}

// CreateVerificationCheckout charges for the tier chosen on a record awaiting payment.
func (s *Service) CreateVerificationCheckout(ctx context.Context, ownerID uuid.UUID, path enums.VerificationPath) (*Session, error) {
	rec, err := s.verifications.Get(ctx, ownerID, path)
	if err != nil {
		return nil, err
	}
	if rec.Status != enums.VerificationStatusPendingPayment {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "verification is not awaiting payment").
			WithDetails(map[string]any{"status": rec.Status})
	}
	if rec.Tier == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "select a verification tier before checkout")
	}
	priceID, err := s.price(s.cfg.TierPriceIDs, string(*rec.Tier))
	if err != nil {
		return nil, err
	}
	return s.open(ctx, ownerID, priceID, map[string]string{
		MetaKind:     KindVerification,
		MetaOwnerID:  ownerID.String(),
		MetaRecordID: rec.ID.String(),
		MetaTier:     string(*rec.Tier),
	})
}

// CreateAddOnCheckout charges for one add-on of addOnType.
func (s *Service) CreateAddOnCheckout(ctx context.Context, ownerID uuid.UUID, addOnType string) (*Session, error) {
	if ownerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "owner id is required")
	}
	parsed, err := enums.ParseAddOnType(strings.TrimSpace(addOnType))
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid add-on type")
	}
	priceID, err := s.price(s.cfg.AddOnPriceIDs, string(parsed))
	if err != nil {
		return nil, err
	}
	return s.open(ctx, ownerID, priceID, map[string]string{
		MetaKind:      KindAddOn,
		MetaOwnerID:   ownerID.String(),
		MetaAddOnType: string(parsed),
	})
}

func (s *Service) price(prices map[string]string, key string) (string, error) {
	priceID := strings.TrimSpace(prices[key])
	if priceID == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "no stripe price configured").
			WithDetails(map[string]any{"product": key})
	}
	return priceID, nil
}

func (s *Service) open(ctx context.Context, ownerID uuid.UUID, priceID string, metadata map[string]string) (*Session, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(s.cfg.SuccessURL),
		CancelURL:         stripe.String(s.cfg.CancelURL),
		ClientReferenceID: stripe.String(ownerID.String()),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(priceID), Quantity: stripe.Int64(1)},
		},
		Metadata: metadata,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			Metadata: metadata,
		},
	}
	sess, err := s.stripe.CreateCheckoutSession(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create checkout session")
	}
	s.logg.Info(s.logg.WithFields(ctx, map[string]any{
		"session_id": sess.ID,
		"owner_id":   ownerID.String(),
		"kind":       metadata[MetaKind],
	}), "checkout.session_created")

	out := &Session{ID: sess.ID, URL: sess.URL}
	if sess.ExpiresAt > 0 {
		out.ExpiresAt = time.Unix(sess.ExpiresAt, 0).UTC()
	}
	return out, nil
}
