package ledger

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/model"
	"github.com/competitiveumar/HopeBridge/provider"
)

type DonateInput struct {
	ProjectID uint
	Amount    decimal.Decimal
	Currency  string
	Owner     model.Owner
	Anonymous bool
	Message   string
	Email     string
	DonorName string
}

type DonateResult struct {
	ClientSecret string          `json:"client_secret"`
	Donation     *model.Donation `json:"donation"`
	Payment      *model.Payment  `json:"payment"`
}

// Donate creates one provider intent plus one pending donation and its
// payment mirror. The provider is called first: if it fails, nothing
// is written locally.
func (s *Service) Donate(ctx context.Context, in DonateInput) (*DonateResult, error) {
	if !in.Amount.IsPositive() {
		return nil, model.NewValidationError("invalid amount")
	}
	if in.Owner.UserID == nil && strings.TrimSpace(in.Email) == "" {
		return nil, model.NewValidationError("email is required for non-authenticated users")
	}
	currency := normalizeCurrency(in.Currency)

	var project model.Project
	if err := s.DB.WithContext(ctx).First(&project, in.ProjectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{Resource: "project"}
		}
		return nil, err
	}

	metadata := map[string]string{
		"project_id": strconv.FormatUint(uint64(in.ProjectID), 10),
	}
	if in.Owner.UserID != nil {
		metadata["user_id"] = strconv.FormatUint(uint64(*in.Owner.UserID), 10)
	} else {
		metadata["email"] = in.Email
	}

	intent, err := s.Provider.CreateIntent(ctx, provider.CreateIntentInput{
		AmountMinor:  minorUnits(in.Amount),
		Currency:     currency,
		ReceiptEmail: in.Email,
		Metadata:     metadata,
	})
	if err != nil {
		return nil, err
	}

	result := &DonateResult{ClientSecret: intent.ClientSecret}
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		d, err := buildDonation(CreateDonationInput{
			ProjectID:  &project.ID,
			Amount:     in.Amount,
			Owner:      in.Owner,
			Anonymous:  in.Anonymous,
			Message:    in.Message,
			Email:      in.Email,
			DonorName:  in.DonorName,
			PaymentRef: intent.ID,
		})
		if err != nil {
			return err
		}
		if err := tx.Create(d).Error; err != nil {
			return err
		}

		p := &model.Payment{
			UserID:          in.Owner.UserID,
			DonationID:      &d.ID,
			SessionID:       in.Owner.SessionID,
			PaymentIntentID: intent.ID,
			Amount:          in.Amount,
			Currency:        currency,
			Status:          model.PaymentPending,
			Method:          "stripe",
			BillingEmail:    in.Email,
			BillingName:     in.DonorName,
		}
		if err := createPayment(tx, p); err != nil {
			return err
		}

		result.Donation = d
		result.Payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

type IntentInput struct {
	Amount             decimal.Decimal
	Currency           string
	DisplayAmount      decimal.Decimal
	DisplayCurrency    string
	PaymentMethodID    string
	IsRecurring        bool
	RecurringFrequency string
	DonationID         *uint
	Email              string
	Name               string
	Owner              model.Owner
}

type IntentResult struct {
	Payment      *model.Payment      `json:"payment"`
	Status       model.PaymentStatus `json:"status"`
	ClientSecret string              `json:"client_secret,omitempty"`
}

// CreatePaymentIntent synchronously creates exactly one external
// intent and one Payment row linked 1:1, or neither. The intent is
// confirmed inline; requires_action comes back to the client with the
// secret it needs for the follow-up.
func (s *Service) CreatePaymentIntent(ctx context.Context, in IntentInput) (*IntentResult, error) {
	if !in.Amount.IsPositive() {
		return nil, model.NewValidationError("invalid amount")
	}
	if strings.TrimSpace(in.PaymentMethodID) == "" {
		return nil, model.NewValidationError("payment method is required")
	}
	currency := normalizeCurrency(in.Currency)

	metadata := map[string]string{
		"is_recurring": strconv.FormatBool(in.IsRecurring),
	}
	if in.IsRecurring && in.RecurringFrequency != "" {
		metadata["recurring_frequency"] = in.RecurringFrequency
	}
	if in.DonationID != nil {
		metadata["donation_id"] = strconv.FormatUint(uint64(*in.DonationID), 10)
	}
	// Keep the donor-facing currency for receipts when settlement
	// happens in a different one.
	if in.DisplayCurrency != "" && normalizeCurrency(in.DisplayCurrency) != currency {
		metadata["original_currency"] = normalizeCurrency(in.DisplayCurrency)
		metadata["original_amount"] = in.DisplayAmount.String()
	}

	intent, err := s.Provider.CreateIntent(ctx, provider.CreateIntentInput{
		AmountMinor:   minorUnits(in.Amount),
		Currency:      currency,
		PaymentMethod: in.PaymentMethodID,
		Confirm:       true,
		ReceiptEmail:  in.Email,
		Metadata:      metadata,
	})
	if err != nil {
		return nil, err
	}

	status := paymentStatusFor(intent.Status)
	p := &model.Payment{
		UserID:             in.Owner.UserID,
		DonationID:         in.DonationID,
		SessionID:          in.Owner.SessionID,
		PaymentIntentID:    intent.ID,
		PaymentMethodID:    in.PaymentMethodID,
		Amount:             in.Amount,
		Currency:           currency,
		Status:             status,
		Method:             "stripe",
		IsRecurring:        in.IsRecurring,
		RecurringFrequency: in.RecurringFrequency,
		BillingEmail:       in.Email,
		BillingName:        in.Name,
		Metadata:           metadataJSON(metadata, intent),
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := createPayment(tx, p); err != nil {
			return err
		}
		if status == model.PaymentCompleted && in.DonationID != nil {
			if _, err := applyCompletion(tx, *in.DonationID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if status == model.PaymentCompleted {
		s.invalidateProjects(ctx)
	}
	return &IntentResult{
		Payment:      p,
		Status:       status,
		ClientSecret: intent.ClientSecret,
	}, nil
}

// ConfirmPayment is the donor's own poll. It shares the reconciler's
// apply path, so racing it against the webhook still increments the
// ledger exactly once.
func (s *Service) ConfirmPayment(ctx context.Context, donationID uint) (*model.Donation, error) {
	var d model.Donation
	if err := s.DB.WithContext(ctx).First(&d, donationID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, &model.NotFoundError{Resource: "donation"}
		}
		return nil, err
	}

	intent, err := s.Provider.RetrieveIntent(ctx, d.PaymentRef)
	if err != nil {
		return nil, err
	}
	if intent.Status != provider.IntentSucceeded {
		return nil, model.NewValidationError("payment not completed")
	}

	if err := s.applyIntentSucceeded(ctx, d.PaymentRef); err != nil {
		return nil, err
	}
	if err := s.DB.WithContext(ctx).First(&d, donationID).Error; err != nil {
		return nil, err
	}
	return &d, nil
}

func paymentStatusFor(intentStatus string) model.PaymentStatus {
	switch intentStatus {
	case provider.IntentSucceeded:
		return model.PaymentCompleted
	case provider.IntentRequiresAction:
		return model.PaymentRequiresAction
	case provider.IntentProcessing:
		return model.PaymentPending
	default:
		return model.PaymentFailed
	}
}

func normalizeCurrency(c string) string {
	c = strings.ToUpper(strings.TrimSpace(c))
	if c == "" {
		return "USD"
	}
	return c
}

func metadataJSON(meta map[string]string, intent *provider.Intent) datatypes.JSONMap {
	m := datatypes.JSONMap{}
	for k, v := range meta {
		m[k] = v
	}
	m["provider_status"] = intent.Status
	return m
}
