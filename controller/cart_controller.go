package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/ledger"
	"github.com/competitiveumar/HopeBridge/model"
)

type CartController struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

func (cc *CartController) List(c *fiber.Ctx) error {
	owner := ownerFrom(c)
	if !owner.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "user must be authenticated or provide a session id"})
	}

	var items []model.CartItem
	if err := cc.ownerScope(c, owner).Order("created_at DESC").Find(&items).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch cart"})
	}
	if items == nil {
		items = []model.CartItem{}
	}
	return c.JSON(items)
}

func (cc *CartController) Add(c *fiber.Ctx) error {
	owner := ownerFrom(c)
	if !owner.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "user must be authenticated or provide a session id"})
	}

	var body struct {
		NonprofitID        uint            `json:"nonprofit_id"`
		Amount             decimal.Decimal `json:"amount"`
		Quantity           uint            `json:"quantity"`
		IsRecurring        bool            `json:"is_recurring"`
		RecurringFrequency string          `json:"recurring_frequency"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}
	if !body.Amount.IsPositive() {
		return c.Status(400).JSON(fiber.Map{"error": "amount must be greater than zero"})
	}
	if body.Quantity == 0 {
		body.Quantity = 1
	}
	if body.RecurringFrequency == "" {
		body.RecurringFrequency = "monthly"
	}

	item := model.CartItem{
		UserID:             owner.UserID,
		SessionID:          owner.SessionID,
		NonprofitID:        body.NonprofitID,
		Amount:             body.Amount,
		Quantity:           body.Quantity,
		IsRecurring:        body.IsRecurring,
		RecurringFrequency: body.RecurringFrequency,
	}
	if err := cc.DB.WithContext(c.Context()).Create(&item).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to add cart item"})
	}
	return c.Status(201).JSON(item)
}

func (cc *CartController) Delete(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}
	owner := ownerFrom(c)
	if !owner.Valid() {
		return c.Status(400).JSON(fiber.Map{"error": "user must be authenticated or provide a session id"})
	}

	var item model.CartItem
	if err := cc.ownerScope(c, owner).Where("id = ?", id).First(&item).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "cart item not found"})
	}
	if err := cc.DB.WithContext(c.Context()).Delete(&item).Error; err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to delete cart item"})
	}
	return c.SendStatus(204)
}

// Checkout turns the whole cart into one intent plus pending
// donations; on any failure the cart stays as it was.
func (cc *CartController) Checkout(c *fiber.Ctx) error {
	var body struct {
		PaymentMethod string `json:"payment_method"`
		Currency      string `json:"currency"`
		Email         string `json:"email"`
		Name          string `json:"name"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	result, err := cc.Ledger.Checkout(c.Context(), ledger.CheckoutInput{
		Owner:           ownerFrom(c),
		PaymentMethodID: body.PaymentMethod,
		Currency:        body.Currency,
		Email:           body.Email,
		Name:            body.Name,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"client_secret": result.ClientSecret,
		"donation_ids":  result.DonationIDs,
		"total":         result.Total,
		"net_payable":   result.NetPayable,
	})
}

// AttachGiftCard marks intended use only; the card is spent at
// redemption, not here.
func (cc *CartController) AttachGiftCard(c *fiber.Ctx) error {
	var body struct {
		GiftCardCode string `json:"gift_card_code"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	card, err := cc.Ledger.AttachGiftCard(c.Context(), ownerFrom(c), body.GiftCardCode)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "gift card " + card.Code + " applied to cart",
		"amount":  card.Amount,
	})
}

func (cc *CartController) ownerScope(c *fiber.Ctx, owner model.Owner) *gorm.DB {
	db := cc.DB.WithContext(c.Context())
	if owner.UserID != nil {
		return db.Where("user_id = ?", *owner.UserID)
	}
	return db.Where("session_id = ?", owner.SessionID)
}
