package handlers

import (
	"context"
	"time"

	"frontdesk/internal/session"

	"github.com/gofiber/fiber/v2"
)

// Pinger is a dependency whose reachability is part of health
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger
type PingFunc func(ctx context.Context) error

// Ping calls f
func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

// HealthHandler handles health check requests
type HealthHandler struct {
	sessions *session.Registry
	checks   map[string]Pinger
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(sessions *session.Registry) *HealthHandler {
	return &HealthHandler{sessions: sessions, checks: make(map[string]Pinger)}
}

// AddCheck registers a dependency to ping on every health request
func (h *HealthHandler) AddCheck(name string, p Pinger) {
	h.checks[name] = p
}

// Handle responds with server health status
func (h *HealthHandler) Handle(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
	defer cancel()

	status := "healthy"
	code := fiber.StatusOK
	deps := fiber.Map{}
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			deps[name] = err.Error()
			status = "degraded"
			code = fiber.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	return c.Status(code).JSON(fiber.Map{
		"status":         status,
		"activeSessions": h.sessions.Count(),
		"dependencies":   deps,
		"timestamp":      time.Now().Format(time.RFC3339),
	})
}
