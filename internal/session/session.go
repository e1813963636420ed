// Package session runs the automated front-desk agent for one caller conversation.
// A Session owns an agent participant in the caller's room, answers questions from
// the knowledge base and escalates the ones it cannot answer.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"frontdesk/internal/logging"
	"frontdesk/internal/models"
	"frontdesk/internal/room"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// EscalationNotice is sent to the caller whenever a question is escalated.
const EscalationNotice = "I'm not sure about that. Let me check with my supervisor and we'll get back to you."

// DefaultAgentIdentity is the room identity of the automated agent.
const DefaultAgentIdentity = "salon-ai-agent"

// State is a session's lifecycle position.
type State int

const (
	StateCreated State = iota
	StateConnecting
	StateActive
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateCreated:
		return "created"
	case StateConnecting:
		return "connecting"
	case StateActive:
		return "active"
	case StateEnded:
		return "ended"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Connector joins a room. *room.Hub implements it.
type Connector interface {
	Join(ctx context.Context, roomID, identity string, grants room.Grants) (*room.Participant, error)
}

// Answerer looks a question up in the knowledge base.
type Answerer interface {
	FindAnswer(ctx context.Context, question string) (string, bool, error)
}

// Escalator records a question for a human supervisor.
type Escalator interface {
	CreateHelpRequest(ctx context.Context, callerID, question string) (*models.HelpRequest, error)
}

// Escalation describes a question handed to a supervisor.
type Escalation struct {
	RoomID    string
	CallerID  string
	Question  string
	RequestID string
}

// Observer is told about lifecycle changes. OnEnded fires exactly once for a
// session that reached Active or was disconnected before joining; a session
// whose room join fails gets OnError instead.
type Observer interface {
	OnReady(s *Session)
	OnEnded(s *Session, reason string)
	OnError(s *Session, err error)
	OnEscalated(s *Session, e Escalation)
}

// TransportError reports a room connection failure. Sessions do not retry.
type TransportError struct {
	RoomID string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("room %s: transport error: %v", e.RoomID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Config holds a session's collaborators and tunables.
type Config struct {
	RoomID         string
	CallerIdentity string
	AgentIdentity  string

	Connector Connector
	Answerer  Answerer
	Escalator Escalator
	Observer  Observer

	// JoinTimeout ends the session if the caller has not joined by then. Zero disables it.
	JoinTimeout time.Duration
	// MessageRate limits inbound caller messages per second. Zero disables it.
	MessageRate  float64
	MessageBurst int
	// LookupTimeout bounds the handling of a single caller message.
	LookupTimeout time.Duration

	Logger *slog.Logger
}

// Session is one caller conversation.
type Session struct {
	roomID         string
	callerIdentity string
	agentIdentity  string

	connector Connector
	answerer  Answerer
	escalator Escalator
	observer  Observer

	joinTimeout   time.Duration
	lookupTimeout time.Duration
	limiter       *rate.Limiter
	logger        *slog.Logger
	createdAt     time.Time

	mu          sync.Mutex
	state       State
	started     bool
	participant *room.Participant

	ctx      context.Context
	cancel   context.CancelFunc
	stop     chan struct{}
	stopOnce sync.Once
	endOnce  sync.Once
	done     chan struct{}
}

// New creates a session in the Connecting state. Call Start to join the room.
func New(cfg Config) *Session {
	if cfg.AgentIdentity == "" {
		cfg.AgentIdentity = DefaultAgentIdentity
	}
	if cfg.LookupTimeout <= 0 {
		cfg.LookupTimeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = logging.WithSession(cfg.RoomID, cfg.CallerIdentity)
	}

	var limiter *rate.Limiter
	if cfg.MessageRate > 0 {
		burst := cfg.MessageBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.MessageRate), burst)
	}

	ctx, cancel := context.WithCancel(context.Background())

	s := &Session{
		roomID:         cfg.RoomID,
		callerIdentity: cfg.CallerIdentity,
		agentIdentity:  cfg.AgentIdentity,
		connector:      cfg.Connector,
		answerer:       cfg.Answerer,
		escalator:      cfg.Escalator,
		observer:       cfg.Observer,
		joinTimeout:    cfg.JoinTimeout,
		lookupTimeout:  cfg.LookupTimeout,
		limiter:        limiter,
		logger:         logger,
		createdAt:      time.Now(),
		state:          StateCreated,
		ctx:            ctx,
		cancel:         cancel,
		stop:           make(chan struct{}),
		done:           make(chan struct{}),
	}
	s.state = StateConnecting
	return s
}

// NewRoomID returns a room id unique to this conversation.
func NewRoomID(now time.Time) string {
	return fmt.Sprintf("salon-session-%d-%s", now.UnixMilli(), uuid.New().String()[:8])
}

func (s *Session) RoomID() string         { return s.roomID }
func (s *Session) CallerIdentity() string { return s.callerIdentity }
func (s *Session) AgentIdentity() string  { return s.agentIdentity }
func (s *Session) CreatedAt() time.Time   { return s.createdAt }

// State returns the current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Done is closed when the session has ended.
func (s *Session) Done() <-chan struct{} { return s.done }

// Start joins the room in the background and then serves inbound events until
// the session ends. ctx only bounds the join.
func (s *Session) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.state != StateConnecting {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run(ctx)
}

func (s *Session) run(ctx context.Context) {
	p, err := s.connector.Join(ctx, s.roomID, s.agentIdentity, room.DefaultGrants())
	if err != nil {
		s.fail(&TransportError{RoomID: s.roomID, Err: err})
		return
	}

	s.mu.Lock()
	select {
	case <-s.stop:
		// Disconnected while joining
		s.mu.Unlock()
		p.Disconnect()
		s.end("disconnected")
		return
	default:
	}
	s.participant = p
	s.state = StateActive
	s.mu.Unlock()

	s.logger.Info("agent joined room", "agent", s.agentIdentity)
	if s.observer != nil {
		s.observer.OnReady(s)
	}

	s.serve(p)
}

func (s *Session) serve(p *room.Participant) {
	var joinTimer <-chan time.Time
	if s.joinTimeout > 0 {
		t := time.NewTimer(s.joinTimeout)
		defer t.Stop()
		joinTimer = t.C
	}

	for {
		select {
		case <-s.stop:
			s.end("disconnected")
			return
		case <-p.Done():
			s.end(s.transportEndReason())
			return
		case <-joinTimer:
			s.end("caller did not join")
			return
		case ev := <-p.Events():
			switch ev.Type {
			case room.EventParticipantJoined:
				if ev.Identity == s.callerIdentity {
					joinTimer = nil
					s.logger.Info("caller joined room")
				}
			case room.EventParticipantLeft:
				if ev.Identity == s.callerIdentity {
					s.end("caller left")
					return
				}
			case room.EventDisconnected:
				s.end(s.transportEndReason())
				return
			case room.EventDataReceived:
				if s.limiter != nil && ev.From == s.callerIdentity {
					if err := s.limiter.Wait(s.ctx); err != nil {
						continue
					}
				}
				s.handle(string(ev.Data), ev.From)
			}
		}
	}
}

// handle runs one message detached from session cancellation so a reply that
// races a disconnect finishes its store writes; the send itself is a no-op by then.
func (s *Session) handle(text, from string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(s.ctx), s.lookupTimeout)
	defer cancel()
	s.HandleInboundText(ctx, text, from)
}

// HandleInboundText answers or escalates one message. Messages from anyone but
// the caller and blank messages are ignored.
func (s *Session) HandleInboundText(ctx context.Context, text, from string) {
	if from != s.callerIdentity {
		s.logger.Debug("ignoring message from non-caller participant", "from", from)
		return
	}
	if strings.TrimSpace(text) == "" {
		return
	}

	answer, found, err := s.answerer.FindAnswer(ctx, text)
	if err != nil {
		s.logger.Error("knowledge lookup failed, escalating", "error", err)
		found = false
	}
	if found {
		s.logger.Info("answered from knowledge base", "question", text)
		s.SendToClient(answer)
		return
	}

	s.SendToClient(EscalationNotice)

	req, err := s.escalator.CreateHelpRequest(ctx, s.callerIdentity, text)
	if err != nil {
		s.logger.Error("failed to create help request", "question", text, "error", err)
		return
	}

	logging.WithHelpRequest(s.logger, req.ID).Info("question escalated to supervisor", "question", text)
	if s.observer != nil {
		s.observer.OnEscalated(s, Escalation{
			RoomID:    s.roomID,
			CallerID:  s.callerIdentity,
			Question:  text,
			RequestID: req.ID,
		})
	}
}

// SendToClient publishes text to the room reliably. It does nothing before the
// agent has joined or after the session has ended.
func (s *Session) SendToClient(text string) {
	s.mu.Lock()
	p := s.participant
	state := s.state
	s.mu.Unlock()

	if p == nil || state == StateEnded {
		return
	}
	if err := p.Send([]byte(text), room.Reliable); err != nil {
		s.logger.Warn("failed to send message to caller", "error", err)
	}
}

// Disconnect ends the session. Safe to call any number of times.
func (s *Session) Disconnect() {
	s.stopOnce.Do(func() {
		close(s.stop)
		s.cancel()
	})

	s.mu.Lock()
	p := s.participant
	started := s.started
	s.mu.Unlock()

	if p != nil {
		p.Disconnect()
	}
	if !started {
		s.end("disconnected before start")
	}
}

// transportEndReason names a participant teardown. Disconnect tears the
// participant down itself, so a closed stop channel means it was explicit.
func (s *Session) transportEndReason() string {
	select {
	case <-s.stop:
		return "disconnected"
	default:
		return "transport disconnected"
	}
}

func (s *Session) end(reason string) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.state = StateEnded
		p := s.participant
		s.mu.Unlock()

		s.cancel()
		if p != nil {
			p.Disconnect()
		}
		close(s.done)

		s.logger.Info("session ended", "reason", reason)
		if s.observer != nil {
			s.observer.OnEnded(s, reason)
		}
	})
}

func (s *Session) fail(err error) {
	s.endOnce.Do(func() {
		s.mu.Lock()
		s.state = StateEnded
		s.mu.Unlock()

		s.cancel()
		close(s.done)

		s.logger.Error("session failed", "error", err)
		if s.observer != nil {
			s.observer.OnError(s, err)
		}
	})
}
