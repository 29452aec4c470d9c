package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/ledger"
	"github.com/competitiveumar/HopeBridge/model"
)

type PaymentController struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

// CreateIntent is the direct payment endpoint: one external intent,
// one Payment row, or neither.
func (pc *PaymentController) CreateIntent(c *fiber.Ctx) error {
	var body struct {
		Amount             decimal.Decimal `json:"amount"`
		Currency           string          `json:"currency"`
		DisplayAmount      decimal.Decimal `json:"display_amount"`
		DisplayCurrency    string          `json:"display_currency"`
		PaymentMethodID    string          `json:"payment_method_id"`
		IsRecurring        bool            `json:"is_recurring"`
		RecurringFrequency string          `json:"recurring_frequency"`
		DonationID         *uint           `json:"donation_id"`
		Email              string          `json:"email"`
		Name               string          `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	result, err := pc.Ledger.CreatePaymentIntent(c.Context(), ledger.IntentInput{
		Amount:             body.Amount,
		Currency:           body.Currency,
		DisplayAmount:      body.DisplayAmount,
		DisplayCurrency:    body.DisplayCurrency,
		PaymentMethodID:    body.PaymentMethodID,
		IsRecurring:        body.IsRecurring,
		RecurringFrequency: body.RecurringFrequency,
		DonationID:         body.DonationID,
		Email:              body.Email,
		Name:               body.Name,
		Owner:              ownerFrom(c),
	})
	if err != nil {
		return fail(c, err)
	}

	switch result.Status {
	case model.PaymentRequiresAction:
		return c.JSON(fiber.Map{
			"requires_action":              true,
			"payment_intent_client_secret": result.ClientSecret,
			"payment_id":                   result.Payment.ID,
		})
	case model.PaymentFailed:
		return c.Status(400).JSON(fiber.Map{
			"error":      "payment failed",
			"payment_id": result.Payment.ID,
		})
	default:
		return c.JSON(fiber.Map{
			"success":          result.Status == model.PaymentCompleted,
			"status":           result.Status,
			"payment_id":       result.Payment.ID,
			"reference_number": result.Payment.ReferenceNumber,
		})
	}
}

func (pc *PaymentController) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}
	userID := c.Locals("user_id").(uint)

	var payment model.Payment
	err = pc.DB.WithContext(c.Context()).
		Where("id = ? AND user_id = ?", id, userID).
		First(&payment).Error
	if err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "payment not found"})
	}
	return c.JSON(payment)
}

// Webhook receives provider notifications. 400 means the provider
// should retry per its own policy; 200 always means "absorbed",
// including duplicates and unknown intents.
func (pc *PaymentController) Webhook(c *fiber.Ctx) error {
	err := pc.Ledger.HandleWebhook(c.Context(), c.Body(), c.Get("Stripe-Signature"))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{"success": true})
}
