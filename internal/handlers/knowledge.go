package handlers

import (
	"frontdesk/internal/models"
	"frontdesk/internal/services"

	"github.com/gofiber/fiber/v2"
)

// KnowledgeHandler exposes the knowledge base
type KnowledgeHandler struct {
	knowledge *services.KnowledgeService
}

// NewKnowledgeHandler creates a new knowledge handler
func NewKnowledgeHandler(knowledge *services.KnowledgeService) *KnowledgeHandler {
	return &KnowledgeHandler{knowledge: knowledge}
}

// GetLearnedAnswers handles GET /api/learned-answers
func (h *KnowledgeHandler) GetLearnedAnswers(c *fiber.Ctx) error {
	entries, err := h.knowledge.GetAllLearnedAnswers(c.UserContext())
	if err != nil {
		return respondError(c, err, "Failed to fetch learned answers")
	}
	if entries == nil {
		entries = []models.KnowledgeEntry{}
	}
	return c.JSON(entries)
}
