package middleware

import (
	"log"

	"frontdesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

// RoomTokenMiddleware verifies a room access token before a participant
// attaches to its room. The token comes from the Authorization header or,
// for browser WebSocket connections, the token query parameter.
func RoomTokenMiddleware(issuer *auth.RoomTokenIssuer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var token string

		if authHeader := c.Get("Authorization"); authHeader != "" {
			if extracted, err := auth.ExtractToken(authHeader); err == nil {
				token = extracted
			}
		}
		if token == "" {
			token = c.Query("token")
		}

		if token == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Missing or invalid room token",
			})
		}

		claims, err := issuer.Verify(token)
		if err != nil {
			log.Printf("❌ [ROOM-AUTH] Token rejected from %s: %v", c.IP(), err)
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"error": "Invalid or expired room token",
			})
		}

		c.Locals("room_claims", claims)
		c.Locals("identity", claims.Identity())
		return c.Next()
	}
}
