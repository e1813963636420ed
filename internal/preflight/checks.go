package preflight

import (
	"context"
	"fmt"
	"log"
	"time"

	"frontdesk/internal/config"
	"frontdesk/internal/database"
	"frontdesk/internal/services"
)

// CheckResult represents the result of a preflight check
type CheckResult struct {
	Name    string
	Status  string // "pass", "fail", "warning"
	Message string
	Error   error
}

// Checker performs pre-flight checks before server starts
type Checker struct {
	cfg  *config.Config
	ping func(ctx context.Context) error
	// db is nil when the Mongo backend is in use
	db *database.DB
}

// NewChecker creates a new preflight checker
func NewChecker(cfg *config.Config, ping func(ctx context.Context) error, db *database.DB) *Checker {
	return &Checker{cfg: cfg, ping: ping, db: db}
}

// RunAll runs all preflight checks and returns results
func (c *Checker) RunAll() []CheckResult {
	log.Println("🔍 Running pre-flight checks...")

	results := []CheckResult{
		c.checkStoreConnection(),
		c.checkDatabaseSchema(),
		c.checkRoomTokenSecret(),
		c.checkSupervisorKey(),
		c.checkEscalationPolicy(),
		c.checkSeedKnowledge(),
	}

	passed := 0
	failed := 0
	warnings := 0

	for _, result := range results {
		switch result.Status {
		case "pass":
			log.Printf("   ✅ %s: %s", result.Name, result.Message)
			passed++
		case "fail":
			log.Printf("   ❌ %s: %s", result.Name, result.Message)
			if result.Error != nil {
				log.Printf("      Error: %v", result.Error)
			}
			failed++
		case "warning":
			log.Printf("   ⚠️  %s: %s", result.Name, result.Message)
			warnings++
		}
	}

	log.Printf("📊 Pre-flight summary: %d passed, %d failed, %d warnings", passed, failed, warnings)

	return results
}

// HasFailures returns true if any check failed
func HasFailures(results []CheckResult) bool {
	for _, result := range results {
		if result.Status == "fail" {
			return true
		}
	}
	return false
}

func (c *Checker) checkStoreConnection() CheckResult {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.ping(ctx); err != nil {
		return CheckResult{
			Name:    "Store Connection",
			Status:  "fail",
			Message: "Cannot reach the store",
			Error:   err,
		}
	}

	return CheckResult{
		Name:    "Store Connection",
		Status:  "pass",
		Message: "Store connection successful",
	}
}

// checkDatabaseSchema verifies the SQL tables exist
func (c *Checker) checkDatabaseSchema() CheckResult {
	if c.db == nil {
		return CheckResult{
			Name:    "Database Schema",
			Status:  "pass",
			Message: "MongoDB collections are created on demand",
		}
	}

	requiredTables := []string{"knowledge", "help_requests"}

	query := "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?"
	if c.db.Dialect == database.DialectMySQL {
		query = "SELECT COUNT(*) FROM INFORMATION_SCHEMA.TABLES WHERE TABLE_SCHEMA = DATABASE() AND TABLE_NAME = ?"
	}

	for _, table := range requiredTables {
		var count int
		err := c.db.QueryRow(query, table).Scan(&count)
		if err != nil || count == 0 {
			return CheckResult{
				Name:    "Database Schema",
				Status:  "fail",
				Message: fmt.Sprintf("Required table '%s' not found", table),
				Error:   err,
			}
		}
	}

	return CheckResult{
		Name:    "Database Schema",
		Status:  "pass",
		Message: fmt.Sprintf("All %d required tables exist", len(requiredTables)),
	}
}

func (c *Checker) checkRoomTokenSecret() CheckResult {
	const name = "Room Token Secret"

	switch {
	case c.cfg.RoomTokenSecret == "" && c.cfg.IsProduction():
		return CheckResult{Name: name, Status: "fail", Message: "ROOM_TOKEN_SECRET is required in production"}
	case c.cfg.RoomTokenSecret == "":
		return CheckResult{Name: name, Status: "warning", Message: "ROOM_TOKEN_SECRET not set, tokens will not survive a restart"}
	case len(c.cfg.RoomTokenSecret) < 32:
		return CheckResult{Name: name, Status: "warning", Message: "ROOM_TOKEN_SECRET is shorter than 32 characters"}
	}
	return CheckResult{Name: name, Status: "pass", Message: "Configured"}
}

func (c *Checker) checkSupervisorKey() CheckResult {
	const name = "Supervisor API Key"

	if c.cfg.SupervisorAPIKey == "" {
		if c.cfg.IsProduction() {
			return CheckResult{Name: name, Status: "warning", Message: "SUPERVISOR_API_KEY not set, supervisor routes are open"}
		}
		return CheckResult{Name: name, Status: "pass", Message: "Not required outside production"}
	}
	return CheckResult{Name: name, Status: "pass", Message: "Configured"}
}

func (c *Checker) checkEscalationPolicy() CheckResult {
	const name = "Escalation Dedupe"

	policy, err := services.ParseDedupePolicy(c.cfg.EscalationDedupe)
	if err != nil {
		return CheckResult{Name: name, Status: "fail", Message: "Invalid ESCALATION_DEDUPE", Error: err}
	}
	return CheckResult{Name: name, Status: "pass", Message: string(policy)}
}

func (c *Checker) checkSeedKnowledge() CheckResult {
	const name = "Seed Knowledge"

	seed, err := services.LoadSeedKnowledge(c.cfg.KnowledgeSeedFile)
	if err != nil {
		return CheckResult{Name: name, Status: "fail", Message: "Cannot load seed knowledge", Error: err}
	}

	source := "built-in list"
	if c.cfg.KnowledgeSeedFile != "" {
		source = c.cfg.KnowledgeSeedFile
	}
	return CheckResult{Name: name, Status: "pass", Message: fmt.Sprintf("%d entries from %s", len(seed), source)}
}
