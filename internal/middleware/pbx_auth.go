package middleware

import (
	"crypto/subtle"
	"log"

	"github.com/gofiber/fiber/v2"
)

// PBXTokenArg is the callback argument carrying the shared webhook token
const PBXTokenArg = "token"

// ValidatePBXToken checks that a callback carries the shared webhook token.
// An empty token disables the check for local development.
func ValidatePBXToken(token string) fiber.Handler {
	if token == "" {
		log.Println("⚠️  PBX_WEBHOOK_TOKEN not set, PBX callbacks are not authenticated")
		return func(c *fiber.Ctx) error {
			return c.Next()
		}
	}

	return func(c *fiber.Ctx) error {
		got := c.Query(PBXTokenArg)
		if got == "" {
			got = c.FormValue(PBXTokenArg)
		}
		if got == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing PBX token",
			})
		}

		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid PBX token",
			})
		}

		return c.Next()
	}
}
