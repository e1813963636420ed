package models

import "time"

// RoomClientMessage is a frame sent by a browser participant over /ws/room.
type RoomClientMessage struct {
	Type    string `json:"type"` // "data" or "ping"
	Payload string `json:"payload,omitempty"`
	Lossy   bool   `json:"lossy,omitempty"` // publish as droppable instead of reliable
}

// RoomServerMessage is a frame sent to a browser participant over /ws/room.
type RoomServerMessage struct {
	Type     string `json:"type"` // "connected", "data", "participant_joined", "participant_left", "pong", "error"
	RoomID   string `json:"roomId,omitempty"`
	From     string `json:"from,omitempty"`
	Identity string `json:"identity,omitempty"`
	Payload  string `json:"payload,omitempty"`

	ErrorCode    string `json:"code,omitempty"`
	ErrorMessage string `json:"message,omitempty"`
}

// Event types carried on the event bus and mirrored over Redis.
const (
	EventEscalationCreated  = "escalation_created"
	EventEscalationResolved = "escalation_resolved"
	EventKnowledgeUpdated   = "knowledge_updated"
)

// Event is a notification about help requests or the knowledge base, streamed to
// supervisors over /ws/supervisor.
type Event struct {
	Type        string       `json:"type"`
	HelpRequest *HelpRequest `json:"helpRequest,omitempty"`
	RoomID      string       `json:"roomId,omitempty"`
	Pattern     string       `json:"pattern,omitempty"`
	InstanceID  string       `json:"instanceId,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}
