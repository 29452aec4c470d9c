package controller

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"

	"github.com/competitiveumar/HopeBridge/ledger"
	"github.com/competitiveumar/HopeBridge/model"
)

type DonationController struct {
	DB     *gorm.DB
	Ledger *ledger.Service
}

func (dc *DonationController) List(c *fiber.Ctx) error {
	userID := c.Locals("user_id").(uint)

	var donations []model.Donation
	err := dc.DB.WithContext(c.Context()).
		Where("donor_id = ?", userID).
		Order("created_at DESC").
		Find(&donations).Error
	if err != nil {
		return c.Status(500).JSON(fiber.Map{"error": "failed to fetch donations"})
	}
	if donations == nil {
		donations = []model.Donation{}
	}
	return c.JSON(donations)
}

func (dc *DonationController) Get(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	var donation model.Donation
	if err := dc.DB.WithContext(c.Context()).First(&donation, id).Error; err != nil {
		return c.Status(404).JSON(fiber.Map{"error": "donation not found"})
	}
	return c.JSON(donation)
}

// ConfirmPayment is the donor-side poll; it may race the webhook on
// the same rows and the loser is a no-op.
func (dc *DonationController) ConfirmPayment(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	donation, err := dc.Ledger.ConfirmPayment(c.Context(), uint(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"status":   "payment confirmed",
		"donation": donation,
	})
}

// Refund is the explicit admin path from completed to refunded.
func (dc *DonationController) Refund(c *fiber.Ctx) error {
	id, err := strconv.Atoi(c.Params("id"))
	if err != nil {
		return c.Status(400).JSON(fiber.Map{"error": "invalid id"})
	}

	donation, err := dc.Ledger.Refund(c.Context(), uint(id))
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(donation)
}
