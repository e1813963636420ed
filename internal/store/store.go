// Package store persists the knowledge base and the help-request queue.
// Two backends implement the same interfaces: MongoDB (primary) and SQL
// (MySQL or SQLite) for deployments without Mongo.
package store

import (
	"context"
	"errors"
	"time"

	"frontdesk/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the given id. Malformed ids
	// are reported the same way.
	ErrNotFound = errors.New("record not found")

	// ErrAlreadyResolved is returned when a resolve targets a request that has
	// already left the pending state.
	ErrAlreadyResolved = errors.New("help request already resolved")
)

// KnowledgeStore holds pattern-set -> answer entries.
type KnowledgeStore interface {
	Count(ctx context.Context) (int64, error)
	InsertMany(ctx context.Context, entries []models.KnowledgeEntry) error

	// List returns every entry in insertion order. The matcher depends on this
	// order being stable so the first matching entry is deterministic.
	List(ctx context.Context) ([]models.KnowledgeEntry, error)

	// ListRecentlyLearned returns every entry, most recently written first.
	ListRecentlyLearned(ctx context.Context) ([]models.KnowledgeEntry, error)

	// Get returns the entry stored under exactly this pattern.
	Get(ctx context.Context, pattern string) (*models.KnowledgeEntry, error)

	// Upsert creates or overwrites the entry keyed by pattern.
	Upsert(ctx context.Context, pattern, answer string, learnedAt time.Time) error
}

// HelpRequestStore holds escalated questions.
type HelpRequestStore interface {
	Create(ctx context.Context, req *models.HelpRequest) error

	// CreateUnlessPending returns the existing pending request for the same caller
	// and normalized question if there is one, otherwise it creates req. The bool
	// reports whether req was inserted.
	CreateUnlessPending(ctx context.Context, req *models.HelpRequest) (*models.HelpRequest, bool, error)

	Get(ctx context.Context, id string) (*models.HelpRequest, error)
	ListPending(ctx context.Context) ([]models.HelpRequest, error)
	ListAll(ctx context.Context) ([]models.HelpRequest, error)

	// Resolve moves a pending request to resolved in a single conditional write.
	Resolve(ctx context.Context, id, answer string, resolvedAt time.Time) (*models.HelpRequest, error)

	MarkKnowledgeSynced(ctx context.Context, id string, at time.Time) error

	// ListUnsynced returns resolved requests whose answer has not been written to
	// the knowledge base yet, oldest resolution first.
	ListUnsynced(ctx context.Context, limit int) ([]models.HelpRequest, error)

	CountPendingOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Transactor runs fn so that every store call made with the ctx it receives
// commits or rolls back together.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Stores bundles one backend's implementations. Tx is nil when the backend
// cannot run multi-document transactions.
type Stores struct {
	Knowledge    KnowledgeStore
	HelpRequests HelpRequestStore
	Tx           Transactor
}
