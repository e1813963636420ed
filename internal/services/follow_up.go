package services

import (
	"context"
	"fmt"
	"log"

	"frontdesk/internal/models"
	"frontdesk/internal/session"
)

// CallerFollowUp delivers a supervisor's answer back to the caller. SMS is
// simulated with a log line; callers still connected to this instance also get
// the answer in their room.
type CallerFollowUp struct {
	sessions *session.Registry
}

// NewCallerFollowUp creates a follow-up notifier backed by the live session registry
func NewCallerFollowUp(sessions *session.Registry) *CallerFollowUp {
	return &CallerFollowUp{sessions: sessions}
}

// FollowUp implements FollowUpNotifier
func (f *CallerFollowUp) FollowUp(_ context.Context, req *models.HelpRequest) {
	log.Printf("📱 [FOLLOW-UP] SMS to %s (simulated): regarding your question %q, our supervisor says %q",
		req.CallerID, req.Question, req.SupervisorAnswer)

	f.PushToRoom(req)
}

// PushToRoom sends the answer to every live session of the caller on this
// instance. Resolutions made on other instances arrive here through pub/sub.
func (f *CallerFollowUp) PushToRoom(req *models.HelpRequest) int {
	if f.sessions == nil || req == nil {
		return 0
	}
	sessions := f.sessions.FindByCaller(req.CallerID)
	for _, s := range sessions {
		s.SendToClient(FollowUpMessage(req))
	}
	return len(sessions)
}

// FollowUpMessage is the text pushed into a live room when a question is answered
func FollowUpMessage(req *models.HelpRequest) string {
	return fmt.Sprintf("About your question \"%s\": %s", req.Question, req.SupervisorAnswer)
}
