package controller

import (
	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/giftcards"
	"github.com/competitiveumar/HopeBridge/model"
)

type GiftCardController struct {
	DB      *gorm.DB
	Service *giftcards.Service
}

func (gc *GiftCardController) ListDesigns(c *fiber.Ctx) error {
	var designs []model.GiftCardDesign
	err := gc.DB.WithContext(c.Context()).
		Where("is_active = ?", true).
		Order("name").
		Find(&designs).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch designs"})
	}
	if designs == nil {
		designs = []model.GiftCardDesign{}
	}
	return c.JSON(designs)
}

func (gc *GiftCardController) Create(c *fiber.Ctx) error {
	var body struct {
		Amount         decimal.Decimal `json:"amount"`
		SenderName     string          `json:"sender_name"`
		SenderEmail    string          `json:"sender_email"`
		RecipientName  string          `json:"recipient_name"`
		RecipientEmail string          `json:"recipient_email"`
		Message        string          `json:"message"`
		DesignID       *uint           `json:"design_id"`
		CardType       string          `json:"card_type"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	owner := ownerFrom(c)
	card, err := gc.Service.Create(c.Context(), giftcards.CreateInput{
		Amount:         body.Amount,
		SenderName:     body.SenderName,
		SenderEmail:    body.SenderEmail,
		RecipientName:  body.RecipientName,
		RecipientEmail: body.RecipientEmail,
		Message:        body.Message,
		DesignID:       body.DesignID,
		CardType:       body.CardType,
		CreatedByID:    owner.UserID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(card)
}

func (gc *GiftCardController) Validate(c *fiber.Ctx) error {
	var body struct {
		Code string `json:"code"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	card, err := gc.Service.Validate(c.Context(), body.Code)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(card)
}

// Redeem spends a card against a nonprofit; a second attempt with the
// same code gets a conflict.
func (gc *GiftCardController) Redeem(c *fiber.Ctx) error {
	var body struct {
		Code          string          `json:"code"`
		NonprofitID   uint            `json:"nonprofit_id"`
		NonprofitName string          `json:"nonprofit_name"`
		Amount        decimal.Decimal `json:"amount"`
	}
	if err := c.BodyParser(&body); err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid payload"})
	}

	owner := ownerFrom(c)
	redemption, err := gc.Service.Redeem(c.Context(), giftcards.RedeemInput{
		Code:          body.Code,
		NonprofitID:   body.NonprofitID,
		NonprofitName: body.NonprofitName,
		Amount:        body.Amount,
		RedeemedByID:  owner.UserID,
	})
	if err != nil {
		return fail(c, err)
	}
	return c.Status(201).JSON(redemption)
}

func (gc *GiftCardController) ListUser(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	cards, err := gc.Service.ListCreated(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch gift cards"})
	}
	if cards == nil {
		cards = []model.GiftCard{}
	}
	return c.JSON(cards)
}

func (gc *GiftCardController) ListRedeemed(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)
	cards, err := gc.Service.ListRedeemed(c.Context(), userID)
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch gift cards"})
	}
	if cards == nil {
		cards = []model.GiftCard{}
	}
	return c.JSON(cards)
}
