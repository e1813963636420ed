package handlers

import (
	"frontdesk/internal/models"
	"frontdesk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// SessionHandler starts caller sessions
type SessionHandler struct {
	calls *services.CallService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(calls *services.CallService) *SessionHandler {
	return &SessionHandler{calls: calls}
}

// Start handles POST /api/session/start
func (h *SessionHandler) Start(c *fiber.Ctx) error {
	var req models.StartSessionRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	callerID := req.CallerID
	if callerID == "" {
		callerID = req.MobileNumber
	}

	resp, err := h.calls.StartSession(c.UserContext(), callerID)
	if err != nil {
		return respondError(c, err, "Failed to start session")
	}

	return c.JSON(resp)
}
