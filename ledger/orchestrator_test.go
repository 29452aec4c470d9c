package ledger

import (
	"context"
	"errors"
	"regexp"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
)

func TestDonateCreatesIntentDonationAndPayment(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	project := seedProject(t, s.DB)

	fp.createFn = func(_ context.Context, in provider.CreateIntentInput) (*provider.Intent, error) {
		if in.AmountMinor != 10000 {
			t.Errorf("intent amount = %d, want 10000", in.AmountMinor)
		}
		if in.Metadata["project_id"] == "" {
			t.Error("project_id metadata missing")
		}
		return &provider.Intent{ID: "pi_donate", Status: provider.IntentProcessing, ClientSecret: "cs_donate"}, nil
	}

	result, err := s.Donate(ctx, DonateInput{
		ProjectID: project.ID,
		Amount:    decimal.RequireFromString("100.00"),
		Anonymous: true,
		Email:     "a@example.com",
	})
	if err != nil {
		t.Fatalf("Donate: %v", err)
	}
	if result.ClientSecret != "cs_donate" {
		t.Errorf("client secret = %q", result.ClientSecret)
	}
	if result.Donation.Status != model.DonationPending {
		t.Errorf("donation status = %s, want pending", result.Donation.Status)
	}
	if result.Donation.PaymentRef != "pi_donate" {
		t.Errorf("donation payment ref = %q", result.Donation.PaymentRef)
	}
	if result.Payment.PaymentIntentID != "pi_donate" {
		t.Errorf("payment intent id = %q", result.Payment.PaymentIntentID)
	}
	if !regexp.MustCompile(`^HB-\d+-[0-9A-Z]{6}$`).MatchString(result.Payment.ReferenceNumber) {
		t.Errorf("reference number %q has wrong format", result.Payment.ReferenceNumber)
	}
}

func TestDonateProviderFailureWritesNothing(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	project := seedProject(t, s.DB)

	fp.createFn = func(context.Context, provider.CreateIntentInput) (*provider.Intent, error) {
		return nil, &model.ProviderError{Op: "create intent", Err: errors.New("boom")}
	}

	_, err := s.Donate(ctx, DonateInput{
		ProjectID: project.ID,
		Amount:    decimal.NewFromInt(10),
		Email:     "a@example.com",
	})
	var pe *model.ProviderError
	if !errors.As(err, &pe) {
		t.Fatalf("err = %v, want ProviderError", err)
	}

	var donations, payments int64
	s.DB.Model(&model.Donation{}).Count(&donations)
	s.DB.Model(&model.Payment{}).Count(&payments)
	if donations != 0 || payments != 0 {
		t.Errorf("rows written despite provider failure: %d donations, %d payments", donations, payments)
	}
}

func TestDonateUnknownProject(t *testing.T) {
	s, _ := newTestService(t)
	_, err := s.Donate(context.Background(), DonateInput{
		ProjectID: 12345,
		Amount:    decimal.NewFromInt(10),
		Email:     "a@example.com",
	})
	var nf *model.NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("err = %v, want NotFoundError", err)
	}
}

func TestCreatePaymentIntentRequiresAction(t *testing.T) {
	s, fp := newTestService(t)
	fp.createFn = func(context.Context, provider.CreateIntentInput) (*provider.Intent, error) {
		return &provider.Intent{ID: "pi_3ds", Status: provider.IntentRequiresAction, ClientSecret: "cs_3ds"}, nil
	}

	result, err := s.CreatePaymentIntent(context.Background(), IntentInput{
		Amount:          decimal.NewFromInt(30),
		Currency:        "usd",
		PaymentMethodID: "pm_card",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if result.Status != model.PaymentRequiresAction {
		t.Errorf("status = %s, want requires_action", result.Status)
	}
	if result.ClientSecret != "cs_3ds" {
		t.Errorf("client secret = %q", result.ClientSecret)
	}

	// requires_action is not a dead end: the pending row must exist so
	// the reconciler can finish the job after client follow-up.
	var p model.Payment
	if err := s.DB.Where("payment_intent_id = ?", "pi_3ds").First(&p).Error; err != nil {
		t.Fatalf("payment row missing: %v", err)
	}
	if p.Status != model.PaymentRequiresAction {
		t.Errorf("stored status = %s, want requires_action", p.Status)
	}
}

func TestCreatePaymentIntentImmediateSuccessCompletesDonation(t *testing.T) {
	s, fp := newTestService(t)
	ctx := context.Background()
	project := seedProject(t, s.DB)

	d, err := s.CreateDonation(ctx, CreateDonationInput{
		ProjectID: &project.ID,
		Amount:    decimal.RequireFromString("45.00"),
		Email:     "a@example.com",
	})
	if err != nil {
		t.Fatalf("CreateDonation: %v", err)
	}

	fp.createFn = func(context.Context, provider.CreateIntentInput) (*provider.Intent, error) {
		return &provider.Intent{ID: "pi_sync", Status: provider.IntentSucceeded}, nil
	}

	result, err := s.CreatePaymentIntent(ctx, IntentInput{
		Amount:          decimal.RequireFromString("45.00"),
		PaymentMethodID: "pm_card",
		DonationID:      &d.ID,
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}
	if result.Status != model.PaymentCompleted {
		t.Errorf("status = %s, want completed", result.Status)
	}

	var got model.Donation
	s.DB.First(&got, d.ID)
	if got.Status != model.DonationCompleted {
		t.Errorf("donation status = %s, want completed", got.Status)
	}
	if r := raised(t, s.DB, project.ID); !r.Equal(decimal.RequireFromString("45.00")) {
		t.Errorf("raised = %s, want 45.00", r)
	}
}

func TestCreatePaymentIntentPreservesOriginalCurrency(t *testing.T) {
	s, fp := newTestService(t)
	var meta map[string]string
	fp.createFn = func(_ context.Context, in provider.CreateIntentInput) (*provider.Intent, error) {
		meta = in.Metadata
		return &provider.Intent{ID: "pi_fx", Status: provider.IntentProcessing}, nil
	}

	result, err := s.CreatePaymentIntent(context.Background(), IntentInput{
		Amount:          decimal.RequireFromString("92.00"),
		Currency:        "USD",
		DisplayAmount:   decimal.RequireFromString("84.64"),
		DisplayCurrency: "EUR",
		PaymentMethodID: "pm_card",
	})
	if err != nil {
		t.Fatalf("CreatePaymentIntent: %v", err)
	}

	if meta["original_currency"] != "EUR" {
		t.Errorf("original_currency = %q, want EUR", meta["original_currency"])
	}
	if meta["original_amount"] != "84.64" {
		t.Errorf("original_amount = %q, want 84.64", meta["original_amount"])
	}
	if result.Payment.Metadata["original_currency"] != "EUR" {
		t.Errorf("stored metadata missing original currency")
	}
}

func TestCreatePaymentIntentValidation(t *testing.T) {
	s, _ := newTestService(t)
	ctx := context.Background()

	t.Run("missing payment method", func(t *testing.T) {
		_, err := s.CreatePaymentIntent(ctx, IntentInput{Amount: decimal.NewFromInt(5)})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})

	t.Run("non-positive amount", func(t *testing.T) {
		_, err := s.CreatePaymentIntent(ctx, IntentInput{Amount: decimal.Zero, PaymentMethodID: "pm"})
		var ve *model.ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("err = %v, want ValidationError", err)
		}
	})
}
