package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"testing"

	"frontdesk/internal/session"

	"github.com/gofiber/fiber/v2"
)

func TestHealthHandler(t *testing.T) {
	tests := []struct {
		name       string
		pingErr    error
		wantStatus int
		wantBody   string
	}{
		{"healthy", nil, fiber.StatusOK, "healthy"},
		{"degraded", errors.New("connection refused"), fiber.StatusServiceUnavailable, "degraded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := NewHealthHandler(session.NewRegistry())
			handler.AddCheck("database", PingFunc(func(context.Context) error { return tt.pingErr }))

			app := fiber.New()
			app.Get("/health", handler.Handle)

			resp, err := app.Test(httptest.NewRequest("GET", "/health", nil))
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			if resp.StatusCode != tt.wantStatus {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}

			var body map[string]interface{}
			if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
				t.Fatalf("Failed to decode body: %v", err)
			}
			if body["status"] != tt.wantBody {
				t.Errorf("status field = %v, want %s", body["status"], tt.wantBody)
			}
			if body["activeSessions"].(float64) != 0 {
				t.Errorf("activeSessions = %v", body["activeSessions"])
			}
		})
	}
}
