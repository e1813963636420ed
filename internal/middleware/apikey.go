package middleware

import (
	"log"

	"frontdesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// SupervisorAuthMiddleware guards the supervisor API with the X-API-Key header.
// Browsers cannot set headers on WebSocket upgrades, so an apiKey query
// parameter is accepted as well. A nil verifier disables the check.
func SupervisorAuthMiddleware(verifier *auth.APIKeyVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if verifier == nil {
			c.Locals("auth_type", "none")
			return c.Next()
		}

		apiKey := c.Get("X-API-Key")
		if apiKey == "" {
			apiKey = c.Query("apiKey")
		}
		if apiKey == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing API key. Include X-API-Key header.",
			})
		}

		if !verifier.Verify(apiKey) {
			log.Printf("❌ [APIKEY-AUTH] Invalid supervisor key from %s on %s", c.IP(), c.Path())
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid API key",
			})
		}

		c.Locals("auth_type", "api_key")
		return c.Next()
	}
}
