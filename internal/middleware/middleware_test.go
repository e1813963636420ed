package middleware

import (
	"net/http/httptest"
	"testing"
	"time"

	"frontdesk/pkg/auth"

	"github.com/gofiber/fiber/v2"
)

func okHandler(c *fiber.Ctx) error {
	return c.SendString("ok")
}

func TestSupervisorAuthMiddleware(t *testing.T) {
	verifier, err := auth.NewAPIKeyVerifier("sup-secret")
	if err != nil {
		t.Fatalf("NewAPIKeyVerifier: %v", err)
	}

	app := fiber.New()
	app.Get("/api/help-requests/pending", SupervisorAuthMiddleware(verifier), okHandler)

	tests := []struct {
		name   string
		header string
		query  string
		want   int
	}{
		{"missing key", "", "", fiber.StatusUnauthorized},
		{"wrong key", "nope", "", fiber.StatusUnauthorized},
		{"header key", "sup-secret", "", fiber.StatusOK},
		{"query key", "", "?apiKey=sup-secret", fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/api/help-requests/pending"+tt.query, nil)
			if tt.header != "" {
				req.Header.Set("X-API-Key", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestSupervisorAuthMiddleware_Disabled(t *testing.T) {
	app := fiber.New()
	app.Get("/", SupervisorAuthMiddleware(nil), okHandler)

	resp, err := app.Test(httptest.NewRequest("GET", "/", nil))
	if err != nil {
		t.Fatalf("request failed: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("status = %d, want 200", resp.StatusCode)
	}
}

func TestRoomTokenMiddleware(t *testing.T) {
	issuer, err := auth.NewRoomTokenIssuer("room-secret", time.Hour)
	if err != nil {
		t.Fatalf("NewRoomTokenIssuer: %v", err)
	}
	token, err := issuer.Issue("+15550100", auth.RoomGrant{Room: "salon-session-1", RoomJoin: true})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	app := fiber.New()
	app.Get("/ws/room", RoomTokenMiddleware(issuer), func(c *fiber.Ctx) error {
		return c.SendString(c.Locals("identity").(string))
	})

	tests := []struct {
		name   string
		path   string
		header string
		want   int
	}{
		{"no token", "/ws/room", "", fiber.StatusUnauthorized},
		{"garbage token", "/ws/room?token=abc", "", fiber.StatusUnauthorized},
		{"query token", "/ws/room?token=" + token, "", fiber.StatusOK},
		{"bearer token", "/ws/room", "Bearer " + token, fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("request failed: %v", err)
			}
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestRateLimiter_Blocks(t *testing.T) {
	cfg := DefaultRateLimitConfig()
	cfg.SessionStartMax = 2

	app := fiber.New()
	app.Post("/api/session/start", SessionStartRateLimiter(cfg), okHandler)

	var last int
	for i := 0; i < 3; i++ {
		resp, err := app.Test(httptest.NewRequest("POST", "/api/session/start", nil))
		if err != nil {
			t.Fatalf("request failed: %v", err)
		}
		last = resp.StatusCode
	}
	if last != fiber.StatusTooManyRequests {
		t.Errorf("third request status = %d, want 429", last)
	}
}

func TestLoadRateLimitConfig_Env(t *testing.T) {
	t.Setenv("ENVIRONMENT", "production")
	t.Setenv("RATE_LIMIT_SESSION_START", "7")
	t.Setenv("RATE_LIMIT_WEBSOCKET", "bogus")

	cfg := LoadRateLimitConfig()
	if cfg.SessionStartMax != 7 {
		t.Errorf("SessionStartMax = %d, want 7", cfg.SessionStartMax)
	}
	if cfg.WebSocketMax != DefaultRateLimitConfig().WebSocketMax {
		t.Errorf("WebSocketMax = %d, want default", cfg.WebSocketMax)
	}
}
