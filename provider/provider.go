// Package provider is the boundary to the external payment provider.
// The core never talks to Stripe directly; it goes through the
// Provider interface so reconciliation logic can be tested against a
// stub.
package provider

import "context"

// Intent statuses as the core understands them.
const (
	IntentSucceeded      = "succeeded"
	IntentRequiresAction = "requires_action"
	IntentProcessing     = "processing"
	IntentFailed         = "failed"
)

// Webhook event types delivered by the provider.
const (
	EventIntentSucceeded = "payment_intent.succeeded"
	EventIntentFailed    = "payment_intent.payment_failed"
)

type Intent struct {
	ID           string
	Status       string
	ClientSecret string
	AmountMinor  int64
	Currency     string
}

type CreateIntentInput struct {
	AmountMinor   int64
	Currency      string
	PaymentMethod string
	// Confirm asks the provider to attempt the charge synchronously.
	Confirm      bool
	ReceiptEmail string
	Metadata     map[string]string
}

// WebhookEvent is a verified provider notification.
type WebhookEvent struct {
	Type     string
	IntentID string
}

type Provider interface {
	CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error)
	RetrieveIntent(ctx context.Context, id string) (*Intent, error)
	// VerifyWebhook checks the shared-secret signature and decodes the
	// event. It must not be given an unverified payload's contents.
	VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error)
}
