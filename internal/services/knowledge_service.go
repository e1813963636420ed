package services

import (
	"context"
	"errors"
	"log"
	"time"

	"frontdesk/internal/models"
	"frontdesk/internal/store"

	"github.com/patrickmn/go-cache"
)

const knowledgeCacheKey = "knowledge:entries"

// KnowledgeService answers caller questions from the knowledge base and
// records supervisor answers into it.
type KnowledgeService struct {
	store   store.KnowledgeStore
	seed    []models.SeedEntry
	cache   *cache.Cache
	metrics *Metrics
	events  *EventBus
	now     func() time.Time
}

// NewKnowledgeService creates a knowledge service. cacheTTL of zero disables
// the in-process entry cache.
func NewKnowledgeService(s store.KnowledgeStore, seed []models.SeedEntry, cacheTTL time.Duration) *KnowledgeService {
	svc := &KnowledgeService{
		store: s,
		seed:  seed,
		now:   time.Now,
	}
	if cacheTTL > 0 {
		svc.cache = cache.New(cacheTTL, 2*cacheTTL)
	}
	return svc
}

// SetMetrics sets the metrics sink
func (s *KnowledgeService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// SetEventBus sets the bus used to announce knowledge writes
func (s *KnowledgeService) SetEventBus(bus *EventBus) {
	s.events = bus
}

// Initialize seeds the knowledge base if it is empty
func (s *KnowledgeService) Initialize(ctx context.Context) error {
	count, err := s.store.Count(ctx)
	if err != nil {
		return &StoreError{Message: "Failed to count knowledge entries", Cause: err}
	}
	if count > 0 {
		log.Printf("📚 [KNOWLEDGE] Knowledge base already has %d entries, skipping seed", count)
		return nil
	}

	now := s.now()
	entries := make([]models.KnowledgeEntry, 0, len(s.seed))
	for _, e := range s.seed {
		entries = append(entries, models.KnowledgeEntry{
			QuestionPattern: NormalizePattern(e.Patterns),
			Answer:          e.Answer,
			LearnedAt:       now,
		})
	}
	if err := s.store.InsertMany(ctx, entries); err != nil {
		return &StoreError{Message: "Failed to seed knowledge base", Cause: err}
	}

	s.Invalidate()
	log.Printf("✅ [KNOWLEDGE] Seeded knowledge base with %d entries", len(entries))
	return nil
}

func (s *KnowledgeService) entries(ctx context.Context) ([]models.KnowledgeEntry, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(knowledgeCacheKey); ok {
			return cached.([]models.KnowledgeEntry), nil
		}
	}

	entries, err := s.store.List(ctx)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		s.cache.SetDefault(knowledgeCacheKey, entries)
	}
	return entries, nil
}

// FindAnswer returns the answer of the first entry matching question
func (s *KnowledgeService) FindAnswer(ctx context.Context, question string) (string, bool, error) {
	entries, err := s.entries(ctx)
	if err != nil {
		s.metrics.RecordLookup("error")
		return "", false, &StoreError{Message: "Failed to load knowledge base", Cause: err}
	}

	answer, found := MatchAnswer(entries, question)
	if found {
		s.metrics.RecordLookup("hit")
	} else {
		s.metrics.RecordLookup("miss")
	}
	return answer, found, nil
}

// AddLearnedAnswer stores answer under the normalized question, overwriting any
// previous answer for the same question
func (s *KnowledgeService) AddLearnedAnswer(ctx context.Context, question, answer string) error {
	key := NormalizeQuestion(question)
	if key == "" {
		return &ValidationError{Message: "Question is required"}
	}
	if err := s.store.Upsert(ctx, key, answer, s.now()); err != nil {
		return &StoreError{Message: "Failed to save learned answer", Cause: err}
	}
	s.Changed(key)
	return nil
}

// GetAllLearnedAnswers returns every entry, most recently learned first
func (s *KnowledgeService) GetAllLearnedAnswers(ctx context.Context) ([]models.KnowledgeEntry, error) {
	entries, err := s.store.ListRecentlyLearned(ctx)
	if err != nil {
		return nil, &StoreError{Message: "Failed to fetch learned answers", Cause: err}
	}
	return entries, nil
}

// Changed flushes the local cache and tells other instances to flush theirs
func (s *KnowledgeService) Changed(pattern string) {
	s.Invalidate()
	if s.events != nil {
		s.events.Publish(models.Event{
			Type:      models.EventKnowledgeUpdated,
			Pattern:   pattern,
			Timestamp: s.now(),
		})
	}
}

// Invalidate drops the cached entry list
func (s *KnowledgeService) Invalidate() {
	if s.cache != nil {
		s.cache.Delete(knowledgeCacheKey)
	}
}

// ApplySeed writes seed entries whose normalized pattern is missing or whose answer
// differs from what is stored. Entries already in the store keep their
// position so match order does not shift. Returns how many entries changed.
func (s *KnowledgeService) ApplySeed(ctx context.Context, seed []models.SeedEntry) (int, error) {
	changed := 0
	now := s.now()
	for _, e := range seed {
		pattern := NormalizePattern(e.Patterns)
		existing, err := s.store.Get(ctx, pattern)
		if err != nil && !errors.Is(err, store.ErrNotFound) {
			return changed, &StoreError{Message: "Failed to read knowledge entry", Cause: err}
		}
		if existing != nil && existing.Answer == e.Answer {
			continue
		}
		if err := s.store.Upsert(ctx, pattern, e.Answer, now); err != nil {
			return changed, &StoreError{Message: "Failed to apply seed entry", Cause: err}
		}
		changed++
	}

	if changed > 0 {
		s.Changed("")
	}
	return changed, nil
}
