package middleware

import (
	"fmt"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
)

// Identity resolves the caller: a valid bearer token sets user_id, an
// anonymous caller may instead carry a session id. Donation paths
// accept both, so this middleware never rejects.
func Identity(secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if header := c.Get("Authorization"); header != "" {
			var tokenStr string
			fmt.Sscanf(header, "Bearer %s", &tokenStr)

			token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err == nil && token.Valid {
				claims := token.Claims.(jwt.MapClaims)
				if sub, ok := claims["sub"].(float64); ok {
					c.Locals("user_id", uint(sub))
				}
				if email, ok := claims["email"].(string); ok {
					c.Locals("user_email", email)
				}
				if role, ok := claims["role"].(string); ok {
					c.Locals("user_role", role)
				}
			}
		}

		if sid := c.Get("X-Session-ID"); sid != "" {
			c.Locals("session_id", sid)
		} else if sid := c.Query("session_id"); sid != "" {
			c.Locals("session_id", sid)
		}
		return c.Next()
	}
}

// AuthRequired rejects requests without a valid user identity.
func AuthRequired() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if c.Locals("user_id") == nil {
			return c.Status(401).JSON(fiber.Map{"error": "missing auth"})
		}
		return c.Next()
	}
}

func RoleRequired(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		userRole := c.Locals("user_role")
		if userRole == nil {
			return c.Status(403).JSON(fiber.Map{"error": "no role"})
		}

		role := userRole.(string)
		for _, r := range roles {
			if role == r {
				return c.Next()
			}
		}
		return c.Status(403).JSON(fiber.Map{"error": "forbidden"})
	}
}
