package controller

import (
	"github.com/gofiber/fiber/v2"

	"github.com/competitiveumar/HopeBridge/model"
)

// ownerFrom reads the identity the middleware resolved: an
// authenticated user id, an anonymous session id, or neither.
func ownerFrom(c *fiber.Ctx) model.Owner {
	var owner model.Owner
	if v, ok := c.Locals("user_id").(uint); ok {
		owner.UserID = &v
	}
	if v, ok := c.Locals("session_id").(string); ok {
		owner.SessionID = v
	}
	return owner
}

func fail(c *fiber.Ctx, err error) error {
	return c.Status(model.HTTPStatus(err)).JSON(fiber.Map{"error": err.Error()})
}
