package stripe

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/angelmondragon/railexchange-backend/pkg/config"
	"github.com/stripe/stripe-go/v84"
)

func TestNewClientValidatesKeys(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.StripeConfig
		wantErr bool
	}{
		{name: "test key", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "test"}},
		{name: "restricted live key", cfg: config.StripeConfig{APIKey: "rk_live_123", Secret: "whsec_1", Env: "live"}},
		{name: "live key in test env", cfg: config.StripeConfig{APIKey: "sk_live_123", Secret: "whsec_1", Env: "test"}, wantErr: true},
		{name: "missing secret", cfg: config.StripeConfig{APIKey: "sk_test_123", Env: "test"}, wantErr: true},
		{name: "missing key", cfg: config.StripeConfig{Secret: "whsec_1"}, wantErr: true},
		{name: "bad env", cfg: config.StripeConfig{APIKey: "sk_test_123", Secret: "whsec_1", Env: "staging"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(context.Background(), tt.cfg, nil)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected error")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if client.SigningSecret() != "whsec_1" {
				t.Fatalf("unexpected secret %q", client.SigningSecret())
			}
		})
	}
}

func TestVerifyEvent(t *testing.T) {
	event := stripe.Event{
		ID:         "evt_1",
		Object:     "event",
		Type:       stripe.EventTypeCheckoutSessionCompleted,
		APIVersion: stripe.APIVersion,
		Data:       &stripe.EventData{Raw: json.RawMessage(`{"id":"cs_1"}`)},
	}
	payload, err := json.Marshal(event)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	got, err := VerifyEvent(payload, header, "whsec_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "evt_1" {
		t.Fatalf("unexpected event %s", got.ID)
	}

	if _, err := VerifyEvent(payload, header, "whsec_other"); err == nil {
		t.Fatalf("expected signature mismatch")
	}
	if _, err := VerifyEvent(payload, header, ""); err == nil {
		t.Fatalf("expected missing secret error")
	}
}

func TestVerifyEventAcceptsOtherAPIVersion(t *testing.T) {
	payload := []byte(`{"id":"evt_2","object":"event","type":"checkout.session.completed","api_version":"2020-08-27","data":{"object":{"id":"cs_2"}}}`)
	ts := time.Now().Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	got, err := VerifyEvent(payload, header, "whsec_test")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.ID != "evt_2" {
		t.Fatalf("unexpected event %s", got.ID)
	}
}

func TestVerifyEventRejectsStaleTimestamp(t *testing.T) {
	payload := []byte(`{"id":"evt_3","object":"event"}`)
	ts := time.Now().Add(-time.Hour).Unix()
	mac := hmac.New(sha256.New, []byte("whsec_test"))
	mac.Write([]byte(fmt.Sprintf("%d.%s", ts, payload)))
	header := fmt.Sprintf("t=%d,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))

	if _, err := VerifyEvent(payload, header, "whsec_test"); err == nil {
		t.Fatalf("expected stale signature to be rejected")
	}
}
