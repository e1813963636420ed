package models

import "time"

// HelpRequestStatus is the lifecycle state of an escalated question.
// The only legal transition is pending -> resolved.
type HelpRequestStatus string

const (
	HelpRequestPending  HelpRequestStatus = "pending"
	HelpRequestResolved HelpRequestStatus = "resolved"
)

// HelpRequest is a caller question the agent could not answer. It is never deleted
// so the collection doubles as the supervisor's audit history.
type HelpRequest struct {
	ID                 string            `bson:"-" json:"id"`
	CallerID           string            `bson:"callerId" json:"callerId"`
	Question           string            `bson:"question" json:"question"`
	NormalizedQuestion string            `bson:"normalizedQuestion" json:"normalizedQuestion"`
	Status             HelpRequestStatus `bson:"status" json:"status"`
	SupervisorAnswer   string            `bson:"supervisorAnswer,omitempty" json:"supervisorAnswer,omitempty"`
	CreatedAt          time.Time         `bson:"createdAt" json:"createdAt"`
	ResolvedAt         *time.Time        `bson:"resolvedAt,omitempty" json:"resolvedAt,omitempty"`

	// KnowledgeSyncedAt is stamped once the supervisor answer has been written to the
	// knowledge base. A resolved request without it still owes a learn step.
	KnowledgeSyncedAt *time.Time `bson:"knowledgeSyncedAt,omitempty" json:"knowledgeSyncedAt,omitempty"`
}

// IsResolved reports whether the request has been answered by a supervisor.
func (r *HelpRequest) IsResolved() bool {
	return r.Status == HelpRequestResolved
}

// ResolveHelpRequestRequest is the body of POST /api/help-requests/:id/resolve.
type ResolveHelpRequestRequest struct {
	SupervisorAnswer string `json:"supervisorAnswer"`
}
