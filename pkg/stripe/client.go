// Package stripe holds the narrow Stripe surface the pipeline uses: hosted
// checkout sessions and signed webhook events.
package stripe

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/checkout/session"
	"github.com/stripe/stripe-go/v84/webhook"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/angelmondragon/railexchange-backend/pkg/logger"
)

var (
	errAPIKeyRequired = errors.New("stripe api key is required")
	errSecretRequired = errors.New("stripe webhook secret is required")
	errNotInitialized = errors.New("stripe client not initialized")
)

// keyPrefixes lists the secret and restricted key prefixes allowed per mode.
var keyPrefixes = map[string][]string{
	"test": {"sk_test_", "rk_test_"},
	"live": {"sk_live_", "rk_live_"},
}

// Client carries the credentials for one Stripe account mode.
type Client struct {
	mode          string
	signingSecret string
}

// NewClient refuses a key whose mode disagrees with the configured one so a
// live key never ends up in a test deployment.
func NewClient(ctx context.Context, cfg config.StripeConfig, logg *logger.Logger) (*Client, error) {
	mode := cfg.Environment()
	prefixes, ok := keyPrefixes[mode]
	if !ok {
		return nil, fmt.Errorf("stripe environment must be test or live, got %q", cfg.Env)
	}
	key := strings.TrimSpace(cfg.APIKey)
	if key == "" {
		return nil, errAPIKeyRequired
	}
	secret := strings.TrimSpace(cfg.Secret)
	if secret == "" {
		return nil, errSecretRequired
	}
	if !slices.ContainsFunc(prefixes, func(p string) bool { return strings.HasPrefix(key, p) }) {
		return nil, fmt.Errorf("stripe %s mode requires a key starting with %s", mode, strings.Join(prefixes, " or "))
	}

	stripe.Key = key
	if logg != nil {
		logg.Info(logg.WithField(ctx, "stripe_mode", mode), "stripe client initialized")
	}
	return &Client{mode: mode, signingSecret: secret}, nil
}

func (c *Client) SigningSecret() string {
	if c == nil {
		return ""
	}
	return c.signingSecret
}

// CreateCheckoutSession opens a hosted checkout session. Payment is confirmed
// later by webhook, never by this call.
func (c *Client) CreateCheckoutSession(ctx context.Context, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	if c == nil {
		return nil, errNotInitialized
	}
	if params == nil {
		return nil, errors.New("checkout session params required")
	}
	params.Context = ctx
	return session.New(params)
}

func (c *Client) VerifyEvent(payload []byte, signatureHeader string) (stripe.Event, error) {
	return VerifyEvent(payload, signatureHeader, c.SigningSecret())
}

// VerifyEvent checks the Stripe-Signature header within the default tolerance.
// Events rendered for a different API version are accepted; handlers only read
// the checkout session fields they need.
func VerifyEvent(payload []byte, signatureHeader, secret string) (stripe.Event, error) {
	if strings.TrimSpace(secret) == "" {
		return stripe.Event{}, errSecretRequired
	}
	return webhook.ConstructEventWithOptions(payload, signatureHeader, secret, webhook.ConstructEventOptions{
		Tolerance:                webhook.DefaultTolerance,
		IgnoreAPIVersionMismatch: true,
	})
}
