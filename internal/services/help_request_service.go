package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"frontdesk/internal/models"
	"frontdesk/internal/store"
)

// DedupePolicy decides what happens when a caller repeats a question that is
// already waiting for a supervisor.
type DedupePolicy string

const (
	// DedupeNone records every escalation
	DedupeNone DedupePolicy = "none"
	// DedupePending reuses the caller's pending request for the same question
	DedupePending DedupePolicy = "pending"
)

// ParseDedupePolicy maps a config value to a policy
func ParseDedupePolicy(v string) (DedupePolicy, error) {
	switch DedupePolicy(strings.ToLower(strings.TrimSpace(v))) {
	case "", DedupeNone:
		return DedupeNone, nil
	case DedupePending:
		return DedupePending, nil
	}
	return "", fmt.Errorf("unknown escalation dedupe policy %q", v)
}

// HelpRequestService manages the queue of escalated questions
type HelpRequestService struct {
	store   store.HelpRequestStore
	policy  DedupePolicy
	metrics *Metrics
	events  *EventBus
	now     func() time.Time
}

// NewHelpRequestService creates a help request service
func NewHelpRequestService(s store.HelpRequestStore, policy DedupePolicy) *HelpRequestService {
	if policy == "" {
		policy = DedupeNone
	}
	return &HelpRequestService{
		store:  s,
		policy: policy,
		now:    time.Now,
	}
}

// SetMetrics sets the metrics sink
func (s *HelpRequestService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// SetEventBus sets the bus used to announce new escalations
func (s *HelpRequestService) SetEventBus(bus *EventBus) {
	s.events = bus
}

// CreateHelpRequest records question as pending for callerID
func (s *HelpRequestService) CreateHelpRequest(ctx context.Context, callerID, question string) (*models.HelpRequest, error) {
	req := &models.HelpRequest{
		CallerID:           callerID,
		Question:           question,
		NormalizedQuestion: NormalizeQuestion(question),
		Status:             models.HelpRequestPending,
		CreatedAt:          s.now(),
	}

	created := true
	if s.policy == DedupePending {
		var err error
		req, created, err = s.store.CreateUnlessPending(ctx, req)
		if err != nil {
			return nil, &StoreError{Message: "Failed to create help request", Cause: err}
		}
	} else if err := s.store.Create(ctx, req); err != nil {
		return nil, &StoreError{Message: "Failed to create help request", Cause: err}
	}

	if !created {
		log.Printf("🔁 [HELP-REQUEST] Reusing pending request %s for caller %s", req.ID, callerID)
		return req, nil
	}

	log.Printf("🆘 [HELP-REQUEST] Created %s for caller %s: %q", req.ID, callerID, question)
	s.metrics.RecordEscalation()
	if s.events != nil {
		s.events.Publish(models.Event{
			Type:        models.EventEscalationCreated,
			HelpRequest: req,
			Timestamp:   req.CreatedAt,
		})
	}
	return req, nil
}

// GetPending returns pending requests, newest first
func (s *HelpRequestService) GetPending(ctx context.Context) ([]models.HelpRequest, error) {
	requests, err := s.store.ListPending(ctx)
	if err != nil {
		return nil, &StoreError{Message: "Failed to fetch pending requests", Cause: err}
	}
	return requests, nil
}

// GetAll returns every request, newest first
func (s *HelpRequestService) GetAll(ctx context.Context) ([]models.HelpRequest, error) {
	requests, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, &StoreError{Message: "Failed to fetch request history", Cause: err}
	}
	return requests, nil
}

// Get returns one request
func (s *HelpRequestService) Get(ctx context.Context, id string) (*models.HelpRequest, error) {
	req, err := s.store.Get(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, &NotFoundError{Resource: "Help request", ID: id}
		}
		return nil, &StoreError{Message: "Failed to fetch help request", Cause: err}
	}
	return req, nil
}

// CountStale returns how many requests have been pending since before cutoff
func (s *HelpRequestService) CountStale(ctx context.Context, cutoff time.Time) (int64, error) {
	n, err := s.store.CountPendingOlderThan(ctx, cutoff)
	if err != nil {
		return 0, &StoreError{Message: "Failed to count stale requests", Cause: err}
	}
	return n, nil
}
