package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
	"github.com/stripe/stripe-go/v74/webhook"

	"github.com/competitiveumar/HopeBridge/model"
)

// StripeProvider implements Provider on the Stripe API. The key and
// webhook secret are injected here, never set process-wide.
type StripeProvider struct {
	api           *client.API
	webhookSecret string
}

func NewStripeProvider(secretKey, webhookSecret string, timeout time.Duration) *StripeProvider {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	api := &client.API{}
	api.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))
	return &StripeProvider{api: api, webhookSecret: webhookSecret}
}

func (s *StripeProvider) CreateIntent(ctx context.Context, in CreateIntentInput) (*Intent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:   stripe.Int64(in.AmountMinor),
		Currency: stripe.String(strings.ToLower(in.Currency)),
	}
	params.Context = ctx
	if in.PaymentMethod != "" {
		params.PaymentMethod = stripe.String(in.PaymentMethod)
	}
	if in.Confirm {
		params.Confirm = stripe.Bool(true)
	}
	if in.ReceiptEmail != "" {
		params.ReceiptEmail = stripe.String(in.ReceiptEmail)
	}
	for k, v := range in.Metadata {
		params.AddMetadata(k, v)
	}

	pi, err := s.api.PaymentIntents.New(params)
	if err != nil {
		return nil, &model.ProviderError{Op: "create intent", Err: err}
	}
	return fromStripeIntent(pi), nil
}

func (s *StripeProvider) RetrieveIntent(ctx context.Context, id string) (*Intent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx
	pi, err := s.api.PaymentIntents.Get(id, params)
	if err != nil {
		return nil, &model.ProviderError{Op: "retrieve intent", Err: err}
	}
	return fromStripeIntent(pi), nil
}

func (s *StripeProvider) VerifyWebhook(payload []byte, sigHeader string) (*WebhookEvent, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, s.webhookSecret)
	if err != nil {
		return nil, &model.AuthenticityError{Err: err}
	}

	var obj struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(event.Data.Raw, &obj); err != nil {
		return nil, &model.AuthenticityError{Err: err}
	}
	return &WebhookEvent{Type: event.Type, IntentID: obj.ID}, nil
}

func fromStripeIntent(pi *stripe.PaymentIntent) *Intent {
	return &Intent{
		ID:           pi.ID,
		Status:       mapIntentStatus(pi.Status),
		ClientSecret: pi.ClientSecret,
		AmountMinor:  pi.Amount,
		Currency:     strings.ToUpper(string(pi.Currency)),
	}
}

func mapIntentStatus(st stripe.PaymentIntentStatus) string {
	switch st {
	case stripe.PaymentIntentStatusSucceeded:
		return IntentSucceeded
	case stripe.PaymentIntentStatusRequiresAction:
		return IntentRequiresAction
	case stripe.PaymentIntentStatusProcessing:
		return IntentProcessing
	default:
		return IntentFailed
	}
}
