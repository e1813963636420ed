package handlers

import (
	"frontdesk/internal/models"
	"frontdesk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// HelpRequestHandler serves the supervisor's help request queue
type HelpRequestHandler struct {
	requests    *services.HelpRequestService
	escalations *services.EscalationService
}

// NewHelpRequestHandler creates a new help request handler
func NewHelpRequestHandler(requests *services.HelpRequestService, escalations *services.EscalationService) *HelpRequestHandler {
	return &HelpRequestHandler{
		requests:    requests,
		escalations: escalations,
	}
}

// GetPending returns pending help requests, newest first
// GET /api/help-requests/pending
func (h *HelpRequestHandler) GetPending(c *fiber.Ctx) error {
	reqs, err := h.requests.GetPending(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to fetch help requests")
	}
	return c.JSON(nonNil(reqs))
}

// GetHistory returns every help request, newest first
// GET /api/help-requests/history
func (h *HelpRequestHandler) GetHistory(c *fiber.Ctx) error {
	reqs, err := h.requests.GetAll(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to fetch history")
	}
	return c.JSON(nonNil(reqs))
}

// Get returns one help request
// GET /api/help-requests/:id
func (h *HelpRequestHandler) Get(c *fiber.Ctx) error {
	req, err := h.requests.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return respondError(c, err, "Failed to fetch help request")
	}
	return c.JSON(req)
}

// Resolve records the supervisor's answer and teaches it to the knowledge base
// POST /api/help-requests/:id/resolve
func (h *HelpRequestHandler) Resolve(c *fiber.Ctx) error {
	var body models.ResolveHelpRequestRequest
	if err := c.BodyParser(&body); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	resolved, err := h.escalations.Resolve(c.UserContext(), c.Params("id"), body.SupervisorAnswer)
	if err != nil {
		return respondError(c, err, "Failed to resolve help request")
	}

	return c.JSON(resolved)
}

func nonNil(reqs []models.HelpRequest) []models.HelpRequest {
	if reqs == nil {
		return []models.HelpRequest{}
	}
	return reqs
}
