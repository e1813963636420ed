package middleware

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
)

// RateLimitConfig holds rate limiting settings
type RateLimitConfig struct {
	// Global limits (per IP) for everything under /api
	GlobalAPIMax        int
	GlobalAPIExpiration time.Duration

	// Session start (per IP). Every start spins up an agent participant.
	SessionStartMax        int
	SessionStartExpiration time.Duration

	// WebSocket connection attempts (per IP)
	WebSocketMax        int
	WebSocketExpiration time.Duration
}

// DefaultRateLimitConfig returns production-safe defaults
func DefaultRateLimitConfig() *RateLimitConfig {
	return &RateLimitConfig{
		GlobalAPIMax:        200,
		GlobalAPIExpiration: 1 * time.Minute,

		SessionStartMax:        10,
		SessionStartExpiration: 1 * time.Minute,

		WebSocketMax:        20,
		WebSocketExpiration: 1 * time.Minute,
	}
}

// LoadRateLimitConfig loads config from environment variables with defaults
func LoadRateLimitConfig() *RateLimitConfig {
	config := DefaultRateLimitConfig()

	overrideInt(&config.GlobalAPIMax, "RATE_LIMIT_GLOBAL_API")
	overrideInt(&config.SessionStartMax, "RATE_LIMIT_SESSION_START")
	overrideInt(&config.WebSocketMax, "RATE_LIMIT_WEBSOCKET")

	// Development mode: more lenient limits
	if os.Getenv("ENVIRONMENT") == "development" {
		config.GlobalAPIMax = 1000
		config.SessionStartMax = 100
		config.WebSocketMax = 100
		log.Println("⚠️  [RATE-LIMIT] Development mode: using relaxed rate limits")
	}

	return config
}

func overrideInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
}

func ipLimiter(prefix string, max int, expiration time.Duration, message string) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        max,
		Expiration: expiration,
		KeyGenerator: func(c *fiber.Ctx) string {
			return prefix + ":" + c.IP()
		},
		LimitReached: func(c *fiber.Ctx) error {
			log.Printf("🚫 [RATE-LIMIT] %s limit reached for IP: %s on %s", prefix, c.IP(), c.Path())
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":       message,
				"retry_after": int(expiration.Seconds()),
			})
		},
	})
}

// GlobalAPIRateLimiter creates a rate limiter for all API requests
func GlobalAPIRateLimiter(config *RateLimitConfig) fiber.Handler {
	return ipLimiter("global", config.GlobalAPIMax, config.GlobalAPIExpiration,
		"Too many requests. Please slow down.")
}

// SessionStartRateLimiter limits how often one IP can open call sessions
func SessionStartRateLimiter(config *RateLimitConfig) fiber.Handler {
	return ipLimiter("session", config.SessionStartMax, config.SessionStartExpiration,
		"Too many calls started. Please wait before calling again.")
}

// WebSocketRateLimiter for WebSocket connection attempts
func WebSocketRateLimiter(config *RateLimitConfig) fiber.Handler {
	return ipLimiter("ws", config.WebSocketMax, config.WebSocketExpiration,
		"Too many connection attempts. Please wait before reconnecting.")
}
