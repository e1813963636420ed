package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"frontdesk/internal/models"
)

func TestKnowledgeService_ApplySeed(t *testing.T) {
	ctx := context.Background()
	stores := newSQLStores(t)
	k := newSeededKnowledge(t, stores)

	seed := defaultSeed(t)
	changed, err := k.ApplySeed(ctx, seed)
	if err != nil {
		t.Fatalf("ApplySeed failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("re-applying the same seed changed %d entries", changed)
	}

	updated := append([]models.SeedEntry{}, seed...)
	updated[0].Answer = "We are open every day from 8 AM."
	updated = append(updated, models.SeedEntry{Patterns: "parking|car", Answer: "Street parking is free."})

	changed, err = k.ApplySeed(ctx, updated)
	if err != nil {
		t.Fatalf("ApplySeed failed: %v", err)
	}
	if changed != 2 {
		t.Errorf("changed = %d, want 2", changed)
	}

	answer, found, _ := k.FindAnswer(ctx, "When are you open?")
	if !found || answer != "We are open every day from 8 AM." {
		t.Errorf("hours answer = %q, %v", answer, found)
	}
	answer, found, _ = k.FindAnswer(ctx, "where do I leave my car")
	if !found || answer != "Street parking is free." {
		t.Errorf("parking answer = %q, %v", answer, found)
	}
}

func TestWatchSeedFile_ReloadsOnWrite(t *testing.T) {
	stores := newSQLStores(t)
	k := newSeededKnowledge(t, stores)

	path := filepath.Join(t.TempDir(), "seed.yaml")
	if err := os.WriteFile(path, []byte("entries: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- WatchSeedFile(ctx, path, k) }()
	defer func() {
		cancel()
		<-done
	}()

	// Give the watcher a moment to register before writing.
	time.Sleep(100 * time.Millisecond)

	data := "entries:\n  - patterns: \"gift card|voucher\"\n    answer: \"Gift cards are sold at the desk.\"\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		answer, found, err := k.FindAnswer(context.Background(), "do you sell a gift card?")
		if err == nil && found && answer == "Gift cards are sold at the desk." {
			return
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatal("seed change was not applied")
}

func TestKnowledgeService_SeedPatternsStoredLowercase(t *testing.T) {
	ctx := context.Background()
	stores := newSQLStores(t)
	k := NewKnowledgeService(stores.Knowledge, []models.SeedEntry{
		{Patterns: "Hours|OPEN", Answer: hoursAnswer},
	}, 0)
	if err := k.Initialize(ctx); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}

	entries, err := k.GetAllLearnedAnswers(ctx)
	if err != nil {
		t.Fatalf("GetAllLearnedAnswers failed: %v", err)
	}
	if len(entries) != 1 || entries[0].QuestionPattern != "hours|open" {
		t.Fatalf("unexpected entries %+v", entries)
	}

	// A case-only edit is the same entry, not a new one
	changed, err := k.ApplySeed(ctx, []models.SeedEntry{{Patterns: "hours| Open", Answer: hoursAnswer}})
	if err != nil {
		t.Fatalf("ApplySeed failed: %v", err)
	}
	if changed != 0 {
		t.Errorf("case-only edit changed %d entries", changed)
	}
	if n, _ := stores.Knowledge.Count(ctx); n != 1 {
		t.Errorf("Count = %d, want 1", n)
	}
}
