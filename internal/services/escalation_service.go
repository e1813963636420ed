package services

import (
	"context"
	"errors"
	"log"
	"strings"
	"time"

	"frontdesk/internal/models"
	"frontdesk/internal/store"
)

// FollowUpNotifier tells a caller that their escalated question was answered
type FollowUpNotifier interface {
	FollowUp(ctx context.Context, req *models.HelpRequest)
}

// EscalationService resolves help requests and teaches the knowledge base
type EscalationService struct {
	helpRequests store.HelpRequestStore
	knowledge    store.KnowledgeStore
	tx           store.Transactor
	cache        *KnowledgeService
	notifier     FollowUpNotifier
	metrics      *Metrics
	events       *EventBus
	now          func() time.Time
}

// NewEscalationService creates an escalation service. With a nil Transactor the
// resolve and learn writes are separate and the reconciliation job repairs a
// learn step that failed in between.
func NewEscalationService(stores store.Stores, knowledge *KnowledgeService) *EscalationService {
	return &EscalationService{
		helpRequests: stores.HelpRequests,
		knowledge:    stores.Knowledge,
		tx:           stores.Tx,
		cache:        knowledge,
		now:          time.Now,
	}
}

// SetNotifier sets the caller follow-up notifier
func (s *EscalationService) SetNotifier(n FollowUpNotifier) {
	s.notifier = n
}

// SetMetrics sets the metrics sink
func (s *EscalationService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// SetEventBus sets the bus used to announce resolutions
func (s *EscalationService) SetEventBus(bus *EventBus) {
	s.events = bus
}

func learnKey(req *models.HelpRequest) string {
	if req.NormalizedQuestion != "" {
		return req.NormalizedQuestion
	}
	return NormalizeQuestion(req.Question)
}

// Resolve records the supervisor's answer on a pending request and writes it
// into the knowledge base under the request's normalized question
func (s *EscalationService) Resolve(ctx context.Context, requestID, supervisorAnswer string) (*models.HelpRequest, error) {
	if strings.TrimSpace(supervisorAnswer) == "" {
		return nil, &ValidationError{Message: "Supervisor answer is required"}
	}

	now := s.now()
	var resolved *models.HelpRequest
	synced := false

	learn := func(ctx context.Context, req *models.HelpRequest) error {
		if err := s.knowledge.Upsert(ctx, learnKey(req), req.SupervisorAnswer, now); err != nil {
			return err
		}
		return s.helpRequests.MarkKnowledgeSynced(ctx, req.ID, now)
	}

	if s.tx != nil {
		err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			req, err := s.helpRequests.Resolve(ctx, requestID, supervisorAnswer, now)
			if err != nil {
				return err
			}
			resolved = req
			return learn(ctx, req)
		})
		if err != nil {
			return nil, resolveError(requestID, err)
		}
		synced = true
	} else {
		req, err := s.helpRequests.Resolve(ctx, requestID, supervisorAnswer, now)
		if err != nil {
			return nil, resolveError(requestID, err)
		}
		resolved = req
		if err := learn(ctx, req); err != nil {
			// The request stays resolved; knowledge_reconcile replays the learn step
			log.Printf("⚠️ [ESCALATION] Learn step failed for %s, leaving it to reconciliation: %v", requestID, err)
		} else {
			synced = true
		}
	}

	if synced {
		resolved.KnowledgeSyncedAt = &now
		s.knowledgeChanged(learnKey(resolved))
	}

	log.Printf("✅ [ESCALATION] Resolved %s for caller %s", resolved.ID, resolved.CallerID)
	s.metrics.RecordResolution(now.Sub(resolved.CreatedAt).Seconds())

	if s.events != nil {
		s.events.Publish(models.Event{
			Type:        models.EventEscalationResolved,
			HelpRequest: resolved,
			Timestamp:   now,
		})
	}
	if s.notifier != nil {
		s.notifier.FollowUp(ctx, resolved)
	}
	return resolved, nil
}

func resolveError(requestID string, err error) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return &NotFoundError{Resource: "Help request", ID: requestID}
	case errors.Is(err, store.ErrAlreadyResolved):
		return &ConflictError{Message: "Help request already resolved"}
	}
	return &StoreError{Message: "Failed to resolve help request", Cause: err}
}

func (s *EscalationService) knowledgeChanged(pattern string) {
	if s.cache != nil {
		s.cache.Changed(pattern)
	}
}

// ReconcileKnowledge replays the learn step for resolved requests that never
// reached the knowledge base. A knowledge entry written after the request was
// resolved is newer information and is left alone. Returns how many requests
// were repaired.
func (s *EscalationService) ReconcileKnowledge(ctx context.Context, limit int) (int, error) {
	pending, err := s.helpRequests.ListUnsynced(ctx, limit)
	if err != nil {
		return 0, &StoreError{Message: "Failed to list unsynced help requests", Cause: err}
	}

	repaired := 0
	for i := range pending {
		req := &pending[i]
		if err := ctx.Err(); err != nil {
			return repaired, err
		}

		key := learnKey(req)
		resolvedAt := s.now()
		if req.ResolvedAt != nil {
			resolvedAt = *req.ResolvedAt
		}

		existing, err := s.knowledge.Get(ctx, key)
		switch {
		case err == nil && !existing.LearnedAt.Before(resolvedAt):
			// Superseded by a later write
		case err == nil || errors.Is(err, store.ErrNotFound):
			if err := s.knowledge.Upsert(ctx, key, req.SupervisorAnswer, resolvedAt); err != nil {
				log.Printf("⚠️ [RECONCILE] Failed to learn answer for %s: %v", req.ID, err)
				continue
			}
			s.knowledgeChanged(key)
		default:
			log.Printf("⚠️ [RECONCILE] Failed to read knowledge for %s: %v", req.ID, err)
			continue
		}

		if err := s.helpRequests.MarkKnowledgeSynced(ctx, req.ID, s.now()); err != nil {
			log.Printf("⚠️ [RECONCILE] Failed to mark %s synced: %v", req.ID, err)
			continue
		}
		repaired++
	}
	return repaired, nil
}
