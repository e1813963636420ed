package handlers

import (
	"errors"
	"log"

	"frontdesk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// respondError maps service errors to HTTP statuses. Anything unclassified is
// logged and answered with fallback so internals never reach the client.
func respondError(c *fiber.Ctx, err error, fallback string) error {
	var validationErr *services.ValidationError
	var notFoundErr *services.NotFoundError
	var conflictErr *services.ConflictError
	var storeErr *services.StoreError

	switch {
	case errors.As(err, &validationErr):
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": validationErr.Message})
	case errors.As(err, &notFoundErr):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": notFoundErr.Error()})
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusConflict).JSON(fiber.Map{"error": conflictErr.Message})
	case errors.As(err, &storeErr):
		log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": storeErr.Message})
	}

	log.Printf("❌ [API] %s %s: %v", c.Method(), c.Path(), err)
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": fallback})
}
