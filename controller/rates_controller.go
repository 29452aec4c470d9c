package controller

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/competitiveumar/HopeBridge/rates"
)

type RatesController struct {
	Cache *rates.Cache
}

func (rc *RatesController) Get(c *fiber.Ctx) error {
	base := strings.ToUpper(c.Params("base"))
	if len(base) != 3 {
		return c.Status(400).JSON(fiber.Map{"error": "invalid base currency"})
	}

	table, err := rc.Cache.Rates(c.Context(), base)
	if err != nil {
		return fail(c, err)
	}
	return c.JSON(fiber.Map{
		"base":  base,
		"rates": table,
	})
}
