package session

import (
	"context"
	"sort"
	"sync"
)

// Registry is the process-wide table of live sessions keyed by room id.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register stores s under roomID. A session already registered under the same
// room is disconnected first.
func (r *Registry) Register(roomID string, s *Session) {
	r.mu.Lock()
	old := r.sessions[roomID]
	r.sessions[roomID] = s
	r.mu.Unlock()

	if old != nil && old != s {
		old.Disconnect()
	}
}

// Remove drops whatever session is registered under roomID.
func (r *Registry) Remove(roomID string) {
	r.mu.Lock()
	delete(r.sessions, roomID)
	r.mu.Unlock()
}

// release drops s only if it is still the registered session for roomID, so a
// replaced session that ends late cannot evict its successor.
func (r *Registry) release(roomID string, s *Session) {
	r.mu.Lock()
	if r.sessions[roomID] == s {
		delete(r.sessions, roomID)
	}
	r.mu.Unlock()
}

// Get returns the session registered under roomID.
func (r *Registry) Get(roomID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[roomID]
	return s, ok
}

// Count returns the number of live sessions.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// FindByCaller returns the live sessions of callerID, newest first.
func (r *Registry) FindByCaller(callerID string) []*Session {
	r.mu.RLock()
	var out []*Session
	for _, s := range r.sessions {
		if s.callerIdentity == callerID {
			out = append(out, s)
		}
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		return out[i].createdAt.After(out[j].createdAt)
	})
	return out
}

// Observe wraps next so that ended or failed sessions are released from the
// registry before next is told.
func (r *Registry) Observe(next Observer) Observer {
	return &registryObserver{registry: r, next: next}
}

// Close disconnects every session and waits for them to end or for ctx.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	all := make([]*Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		all = append(all, s)
	}
	r.sessions = make(map[string]*Session)
	r.mu.Unlock()

	for _, s := range all {
		s.Disconnect()
	}
	for _, s := range all {
		select {
		case <-s.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

type registryObserver struct {
	registry *Registry
	next     Observer
}

func (o *registryObserver) OnReady(s *Session) {
	if o.next != nil {
		o.next.OnReady(s)
	}
}

func (o *registryObserver) OnEnded(s *Session, reason string) {
	o.registry.release(s.RoomID(), s)
	if o.next != nil {
		o.next.OnEnded(s, reason)
	}
}

func (o *registryObserver) OnError(s *Session, err error) {
	o.registry.release(s.RoomID(), s)
	if o.next != nil {
		o.next.OnError(s, err)
	}
}

func (o *registryObserver) OnEscalated(s *Session, e Escalation) {
	if o.next != nil {
		o.next.OnEscalated(s, e)
	}
}
