package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all application configuration
type Config struct {
	Port        string
	Environment string

	// Storage. MongoDB wins when set; otherwise DatabaseURL (mysql:// or a SQLite path).
	MongoDBURI          string
	MongoDBTransactions bool
	DatabaseURL         string
	RedisURL            string

	// Rooms
	RoomTokenSecret string
	RoomTokenTTL    time.Duration
	RoomWSURL       string
	RoomSendTimeout time.Duration

	// Sessions
	AgentIdentity      string
	CallerJoinTimeout  time.Duration
	CallerMessageRate  float64
	CallerMessageBurst int

	// Knowledge and escalations
	EscalationDedupe    string
	KnowledgeCacheTTL   time.Duration
	KnowledgeSeedFile   string
	ReconcileInterval   time.Duration
	StaleEscalationAge  time.Duration
	StaleReportInterval time.Duration

	// Supervisor API
	SupervisorAPIKey string
	AllowedOrigins   string
}

// Load reads configuration from the environment
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "3000"),
		Environment: getEnv("ENVIRONMENT", "development"),

		MongoDBURI:          getEnv("MONGODB_URI", ""),
		MongoDBTransactions: getBoolEnv("MONGODB_TRANSACTIONS", false),
		DatabaseURL:         getEnv("DATABASE_URL", "frontdesk.db"),
		RedisURL:            getEnv("REDIS_URL", ""),

		RoomTokenSecret: getEnv("ROOM_TOKEN_SECRET", ""),
		RoomTokenTTL:    getDurationEnv("ROOM_TOKEN_TTL", time.Hour),
		RoomWSURL:       getEnv("ROOM_WS_URL", ""),
		RoomSendTimeout: getDurationEnv("ROOM_SEND_TIMEOUT", 5*time.Second),

		AgentIdentity:      getEnv("AGENT_IDENTITY", "salon-ai-agent"),
		CallerJoinTimeout:  getDurationEnv("CALLER_JOIN_TIMEOUT", 2*time.Minute),
		CallerMessageRate:  getFloatEnv("CALLER_MESSAGE_RATE", 5),
		CallerMessageBurst: getIntEnv("CALLER_MESSAGE_BURST", 10),

		EscalationDedupe:    getEnv("ESCALATION_DEDUPE", "none"),
		KnowledgeCacheTTL:   getDurationEnv("KNOWLEDGE_CACHE_TTL", 5*time.Second),
		KnowledgeSeedFile:   getEnv("KNOWLEDGE_SEED_FILE", ""),
		ReconcileInterval:   getDurationEnv("RECONCILE_INTERVAL", time.Minute),
		StaleEscalationAge:  getDurationEnv("STALE_ESCALATION_AGE", 30*time.Minute),
		StaleReportInterval: getDurationEnv("STALE_REPORT_INTERVAL", 15*time.Minute),

		SupervisorAPIKey: getEnv("SUPERVISOR_API_KEY", ""),
		AllowedOrigins:   getEnv("ALLOWED_ORIGINS", ""),
	}
}

// IsProduction reports whether ENVIRONMENT is production
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		parsed, err := strconv.ParseFloat(value, 64)
		if err == nil && parsed > 0 {
			return parsed
		}
	}
	return defaultValue
}

// getDurationEnv accepts Go durations ("90s") or a bare number of seconds.
// Zero is allowed so caches and timeouts can be switched off.
func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if parsed, err := time.ParseDuration(value); err == nil && parsed >= 0 {
		return parsed
	}
	if secs, err := strconv.Atoi(value); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}
