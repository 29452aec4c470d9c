package provider

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/competitiveumar/HopeBridge/model"
)

const testWebhookSecret = "whsec_test_secret"

// signPayload builds a Stripe-Signature header the same way Stripe
// signs deliveries: v1 = HMAC-SHA256(secret, "<ts>.<payload>").
func signPayload(payload []byte, ts time.Time, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	fmt.Fprintf(mac, "%d.%s", ts.Unix(), payload)
	return fmt.Sprintf("t=%d,v1=%s", ts.Unix(), hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifyWebhook(t *testing.T) {
	p := NewStripeProvider("sk_test_x", testWebhookSecret, 0)
	payload := []byte(`{"id":"evt_1","api_version":"2022-11-15","type":"payment_intent.succeeded","data":{"object":{"id":"pi_123"}}}`)

	t.Run("valid signature", func(t *testing.T) {
		event, err := p.VerifyWebhook(payload, signPayload(payload, time.Now(), testWebhookSecret))
		if err != nil {
			t.Fatalf("VerifyWebhook: %v", err)
		}
		if event.Type != EventIntentSucceeded {
			t.Errorf("type = %q, want %q", event.Type, EventIntentSucceeded)
		}
		if event.IntentID != "pi_123" {
			t.Errorf("intent id = %q, want pi_123", event.IntentID)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		_, err := p.VerifyWebhook(payload, signPayload(payload, time.Now(), "whsec_wrong"))
		var ae *model.AuthenticityError
		if !errors.As(err, &ae) {
			t.Fatalf("err = %v, want AuthenticityError", err)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		sig := signPayload(payload, time.Now(), testWebhookSecret)
		tampered := []byte(`{"id":"evt_1","type":"payment_intent.succeeded","data":{"object":{"id":"pi_999"}}}`)
		_, err := p.VerifyWebhook(tampered, sig)
		var ae *model.AuthenticityError
		if !errors.As(err, &ae) {
			t.Fatalf("err = %v, want AuthenticityError", err)
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		_, err := p.VerifyWebhook(payload, signPayload(payload, time.Now().Add(-time.Hour), testWebhookSecret))
		var ae *model.AuthenticityError
		if !errors.As(err, &ae) {
			t.Fatalf("err = %v, want AuthenticityError", err)
		}
	})

	t.Run("garbage header", func(t *testing.T) {
		_, err := p.VerifyWebhook(payload, "not-a-signature")
		var ae *model.AuthenticityError
		if !errors.As(err, &ae) {
			t.Fatalf("err = %v, want AuthenticityError", err)
		}
	})
}
