package services

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"frontdesk/internal/database"
	"frontdesk/internal/models"
	"frontdesk/internal/store"
)

const hoursAnswer = "We are open Tuesday to Saturday, from 9 AM to 6 PM."

func newSQLStores(t *testing.T) store.Stores {
	t.Helper()

	db, err := database.New(filepath.Join(t.TempDir(), "services_test.db"))
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.Initialize(); err != nil {
		t.Fatalf("Failed to initialize schema: %v", err)
	}
	return store.NewSQLStores(db)
}

func defaultSeed(t *testing.T) []models.SeedEntry {
	t.Helper()
	seed, err := LoadSeedKnowledge("")
	if err != nil {
		t.Fatalf("Failed to load built-in seed: %v", err)
	}
	return seed
}

// newSeededKnowledge returns a knowledge service over stores with the built-in
// seed already inserted and caching disabled.
func newSeededKnowledge(t *testing.T, stores store.Stores) *KnowledgeService {
	t.Helper()
	k := NewKnowledgeService(stores.Knowledge, defaultSeed(t), 0)
	if err := k.Initialize(context.Background()); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	return k
}

// failingUpsert wraps a KnowledgeStore so Upsert fails while fail is set
type failingUpsert struct {
	store.KnowledgeStore
	fail bool
}

func (f *failingUpsert) Upsert(ctx context.Context, pattern, answer string, at time.Time) error {
	if f.fail {
		return context.DeadlineExceeded
	}
	return f.KnowledgeStore.Upsert(ctx, pattern, answer, at)
}

type recordingNotifier struct {
	requests []*models.HelpRequest
}

func (n *recordingNotifier) FollowUp(_ context.Context, req *models.HelpRequest) {
	n.requests = append(n.requests, req)
}
