// Package room is an in-process real-time room transport. Participants join a
// named room with an identity and a set of grants, publish data messages to
// everyone else in the room, and receive presence and data events on a channel.
package room

import (
	"context"
	"errors"
	"sync"
	"time"
)

var (
	ErrJoinNotPermitted    = errors.New("room: token does not grant room join")
	ErrPublishNotPermitted = errors.New("room: token does not grant data publishing")
	ErrIdentityTaken       = errors.New("room: identity already connected to this room")
	ErrInvalidJoin         = errors.New("room: room id and identity are required")
	ErrHubClosed           = errors.New("room: hub closed")
	ErrNotConnected        = errors.New("room: participant disconnected")
	ErrSendTimeout         = errors.New("room: timed out waiting for a receiver")
)

// Reliability selects the delivery guarantee of a data message.
type Reliability int

const (
	// Reliable messages are delivered in order and wait for buffer space.
	Reliable Reliability = iota
	// Lossy messages are dropped for receivers whose buffer is full.
	Lossy
)

// EventType identifies what happened in a room.
type EventType string

const (
	EventConnected         EventType = "connected"
	EventDisconnected      EventType = "disconnected"
	EventParticipantJoined EventType = "participant_joined"
	EventParticipantLeft   EventType = "participant_left"
	EventDataReceived      EventType = "data_received"
)

// Event is delivered to a participant. Identity is set for presence events;
// Data and From are set for EventDataReceived.
type Event struct {
	Type     EventType
	Identity string
	Data     []byte
	From     string
}

// Grants are the permissions a participant joins with.
type Grants struct {
	RoomJoin       bool
	CanPublishData bool
	CanSubscribe   bool
}

// DefaultGrants lets a participant join, publish and subscribe.
func DefaultGrants() Grants {
	return Grants{RoomJoin: true, CanPublishData: true, CanSubscribe: true}
}

// Options tune a Hub.
type Options struct {
	// BufferSize is the per-participant event buffer.
	BufferSize int
	// SendTimeout bounds how long a reliable send waits on a full receiver.
	SendTimeout time.Duration
}

// Hub tracks rooms and their participants.
type Hub struct {
	opts Options

	mu     sync.Mutex
	rooms  map[string]map[string]*Participant
	closed bool
}

// NewHub creates an empty hub.
func NewHub(opts Options) *Hub {
	if opts.BufferSize <= 0 {
		opts.BufferSize = 64
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	return &Hub{
		opts:  opts,
		rooms: make(map[string]map[string]*Participant),
	}
}

// Join adds identity to roomID, creating the room if needed. The returned
// participant's first event is EventConnected, followed by one
// EventParticipantJoined per participant already present.
func (h *Hub) Join(ctx context.Context, roomID, identity string, grants Grants) (*Participant, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if roomID == "" || identity == "" {
		return nil, ErrInvalidJoin
	}
	if !grants.RoomJoin {
		return nil, ErrJoinNotPermitted
	}

	p := &Participant{
		hub:      h,
		roomID:   roomID,
		identity: identity,
		grants:   grants,
		events:   make(chan Event, h.opts.BufferSize),
		done:     make(chan struct{}),
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrHubClosed
	}
	members := h.rooms[roomID]
	if members == nil {
		members = make(map[string]*Participant)
		h.rooms[roomID] = members
	}
	if _, taken := members[identity]; taken {
		h.mu.Unlock()
		return nil, ErrIdentityTaken
	}
	others := make([]*Participant, 0, len(members))
	for _, other := range members {
		others = append(others, other)
	}
	members[identity] = p
	h.mu.Unlock()

	h.deliver(p, Event{Type: EventConnected})
	for _, other := range others {
		h.deliver(p, Event{Type: EventParticipantJoined, Identity: other.identity})
		h.deliver(other, Event{Type: EventParticipantJoined, Identity: identity})
	}
	return p, nil
}

// deliver waits up to SendTimeout for buffer space in p.
func (h *Hub) deliver(p *Participant, ev Event) error {
	select {
	case p.events <- ev:
		return nil
	case <-p.done:
		return nil
	default:
	}

	timer := time.NewTimer(h.opts.SendTimeout)
	defer timer.Stop()
	select {
	case p.events <- ev:
		return nil
	case <-p.done:
		return nil
	case <-timer.C:
		return ErrSendTimeout
	}
}

// members returns the other participants of p's room.
func (h *Hub) members(p *Participant) []*Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[p.roomID]
	out := make([]*Participant, 0, len(room))
	for id, other := range room {
		if id != p.identity {
			out = append(out, other)
		}
	}
	return out
}

func (h *Hub) remove(p *Participant) []*Participant {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := h.rooms[p.roomID]
	if room[p.identity] != p {
		return nil
	}
	delete(room, p.identity)
	if len(room) == 0 {
		delete(h.rooms, p.roomID)
		return nil
	}
	out := make([]*Participant, 0, len(room))
	for _, other := range room {
		out = append(out, other)
	}
	return out
}

// RoomCount returns the number of non-empty rooms.
func (h *Hub) RoomCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms)
}

// ParticipantCount returns the number of participants in roomID.
func (h *Hub) ParticipantCount(roomID string) int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.rooms[roomID])
}

// Close disconnects every participant and rejects further joins.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	var all []*Participant
	for _, room := range h.rooms {
		for _, p := range room {
			all = append(all, p)
		}
	}
	h.mu.Unlock()

	for _, p := range all {
		p.Disconnect()
	}
}

// Participant is one identity's connection to a room.
type Participant struct {
	hub      *Hub
	roomID   string
	identity string
	grants   Grants

	events chan Event
	done   chan struct{}

	// sendMu keeps this participant's messages in order and orders its
	// departure after its last message.
	sendMu    sync.Mutex
	leaveOnce sync.Once
}

func (p *Participant) Identity() string { return p.identity }
func (p *Participant) RoomID() string   { return p.roomID }

// Events returns the participant's event stream. The channel is never closed;
// select on Done to detect disconnection.
func (p *Participant) Events() <-chan Event { return p.events }

// Done is closed once the participant has left the room.
func (p *Participant) Done() <-chan struct{} { return p.done }

// Send publishes data to every other subscribed participant in the room.
// A reliable send returns ErrSendTimeout if some receiver stayed full for the
// whole send timeout; the other receivers still get the message.
func (p *Participant) Send(data []byte, reliability Reliability) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	select {
	case <-p.done:
		return ErrNotConnected
	default:
	}
	if !p.grants.CanPublishData {
		return ErrPublishNotPermitted
	}

	payload := make([]byte, len(data))
	copy(payload, data)

	var sendErr error
	for _, other := range p.hub.members(p) {
		if !other.grants.CanSubscribe {
			continue
		}
		ev := Event{Type: EventDataReceived, Data: payload, From: p.identity}

		if reliability == Lossy {
			select {
			case other.events <- ev:
			default:
			}
			continue
		}
		if err := p.hub.deliver(other, ev); err != nil && sendErr == nil {
			sendErr = err
		}
	}
	return sendErr
}

// Disconnect leaves the room. It is safe to call more than once.
func (p *Participant) Disconnect() {
	p.leaveOnce.Do(func() {
		p.sendMu.Lock()
		others := p.hub.remove(p)
		select {
		case p.events <- Event{Type: EventDisconnected}:
		default:
		}
		close(p.done)
		p.sendMu.Unlock()

		for _, other := range others {
			p.hub.deliver(other, Event{Type: EventParticipantLeft, Identity: p.identity})
		}
	})
}
