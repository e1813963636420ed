package services

import (
	"context"
	"log"
	"strings"
	"time"

	"frontdesk/internal/models"
	"frontdesk/internal/room"
	"frontdesk/internal/session"
	"frontdesk/pkg/auth"
)

// CallServiceConfig holds the per-session settings handed to every new session
type CallServiceConfig struct {
	AgentIdentity string
	JoinTimeout   time.Duration
	MessageRate   float64
	MessageBurst  int
	// WSURL is returned to callers so they know where to attach to their room
	WSURL string
}

// CallService starts caller sessions and observes their lifecycle
type CallService struct {
	hub       *room.Hub
	registry  *session.Registry
	tokens    *auth.RoomTokenIssuer
	answerer  session.Answerer
	escalator session.Escalator
	metrics   *Metrics
	cfg       CallServiceConfig
	now       func() time.Time
}

// NewCallService creates a call service
func NewCallService(hub *room.Hub, registry *session.Registry, tokens *auth.RoomTokenIssuer,
	answerer session.Answerer, escalator session.Escalator, cfg CallServiceConfig) *CallService {
	if cfg.AgentIdentity == "" {
		cfg.AgentIdentity = session.DefaultAgentIdentity
	}
	return &CallService{
		hub:       hub,
		registry:  registry,
		tokens:    tokens,
		answerer:  answerer,
		escalator: escalator,
		cfg:       cfg,
		now:       time.Now,
	}
}

// SetMetrics sets the metrics sink
func (s *CallService) SetMetrics(m *Metrics) {
	s.metrics = m
}

// StartSession creates a room for callerID, puts the agent in it and returns
// the caller's access token
func (s *CallService) StartSession(ctx context.Context, callerID string) (*models.StartSessionResponse, error) {
	callerID = strings.TrimSpace(callerID)
	if callerID == "" {
		return nil, &ValidationError{Message: "Mobile number is required"}
	}
	if callerID == s.cfg.AgentIdentity {
		return nil, &ValidationError{Message: "Mobile number is not valid"}
	}

	roomID := session.NewRoomID(s.now())

	token, err := s.tokens.Issue(callerID, auth.RoomGrant{
		Room:           roomID,
		RoomJoin:       true,
		CanPublishData: true,
		CanSubscribe:   true,
	})
	if err != nil {
		return nil, err
	}

	sess := session.New(session.Config{
		RoomID:         roomID,
		CallerIdentity: callerID,
		AgentIdentity:  s.cfg.AgentIdentity,
		Connector:      s.hub,
		Answerer:       s.answerer,
		Escalator:      s.escalator,
		Observer:       s.registry.Observe(s),
		JoinTimeout:    s.cfg.JoinTimeout,
		MessageRate:    s.cfg.MessageRate,
		MessageBurst:   s.cfg.MessageBurst,
	})
	s.registry.Register(roomID, sess)
	// The session outlives the HTTP request
	sess.Start(context.WithoutCancel(ctx))

	s.metrics.RecordSessionStarted()
	log.Printf("📞 [CALL] Started session %s for caller %s", roomID, callerID)

	return &models.StartSessionResponse{
		RoomID:   roomID,
		Token:    token,
		CallerID: callerID,
		WSURL:    s.cfg.WSURL,
	}, nil
}

// ActiveSessions returns the number of live sessions
func (s *CallService) ActiveSessions() int {
	return s.registry.Count()
}

// OnReady implements session.Observer
func (s *CallService) OnReady(sess *session.Session) {
	log.Printf("🤖 [CALL] Agent ready in %s", sess.RoomID())
}

// OnEnded implements session.Observer
func (s *CallService) OnEnded(sess *session.Session, reason string) {
	s.metrics.RecordSessionEnded(reason)
	log.Printf("👋 [CALL] Cleaned up session for room %s (%s)", sess.RoomID(), reason)
}

// OnError implements session.Observer
func (s *CallService) OnError(sess *session.Session, err error) {
	s.metrics.RecordSessionError()
	log.Printf("❌ [CALL] Error in session %s: %v", sess.RoomID(), err)
}

// OnEscalated implements session.Observer
func (s *CallService) OnEscalated(sess *session.Session, e session.Escalation) {
	log.Printf("🆘 [CALL] Room %s escalated %q as %s", e.RoomID, e.Question, e.RequestID)
}
