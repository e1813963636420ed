package room

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func next(t *testing.T, p *Participant) Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(time.Second):
		t.Fatalf("%s: timed out waiting for event", p.Identity())
		return Event{}
	}
}

func expect(t *testing.T, p *Participant, typ EventType, identity string) Event {
	t.Helper()
	ev := next(t, p)
	if ev.Type != typ {
		t.Fatalf("%s: got event %s, want %s", p.Identity(), ev.Type, typ)
	}
	if identity != "" && ev.Identity != identity && ev.From != identity {
		t.Fatalf("%s: got event for %q/%q, want %q", p.Identity(), ev.Identity, ev.From, identity)
	}
	return ev
}

func TestHub_JoinAndPresence(t *testing.T) {
	h := NewHub(Options{})
	defer h.Close()
	ctx := context.Background()

	agent, err := h.Join(ctx, "room-1", "agent", DefaultGrants())
	if err != nil {
		t.Fatalf("Join agent failed: %v", err)
	}
	expect(t, agent, EventConnected, "")

	caller, err := h.Join(ctx, "room-1", "caller", DefaultGrants())
	if err != nil {
		t.Fatalf("Join caller failed: %v", err)
	}
	expect(t, caller, EventConnected, "")
	expect(t, caller, EventParticipantJoined, "agent")
	expect(t, agent, EventParticipantJoined, "caller")

	if got := h.ParticipantCount("room-1"); got != 2 {
		t.Errorf("ParticipantCount = %d, want 2", got)
	}

	caller.Disconnect()
	caller.Disconnect()
	expect(t, agent, EventParticipantLeft, "caller")

	select {
	case <-caller.Done():
	default:
		t.Error("Done should be closed after Disconnect")
	}

	agent.Disconnect()
	if h.RoomCount() != 0 {
		t.Errorf("Empty room should be removed, RoomCount = %d", h.RoomCount())
	}
}

func TestHub_JoinErrors(t *testing.T) {
	h := NewHub(Options{})
	defer h.Close()
	ctx := context.Background()

	if _, err := h.Join(ctx, "r", "a", Grants{CanPublishData: true}); !errors.Is(err, ErrJoinNotPermitted) {
		t.Errorf("Join without RoomJoin: err = %v", err)
	}
	if _, err := h.Join(ctx, "", "a", DefaultGrants()); !errors.Is(err, ErrInvalidJoin) {
		t.Errorf("Join without room: err = %v", err)
	}
	if _, err := h.Join(ctx, "r", "a", DefaultGrants()); err != nil {
		t.Fatalf("Join failed: %v", err)
	}
	if _, err := h.Join(ctx, "r", "a", DefaultGrants()); !errors.Is(err, ErrIdentityTaken) {
		t.Errorf("Duplicate identity: err = %v", err)
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := h.Join(cancelled, "r", "b", DefaultGrants()); !errors.Is(err, context.Canceled) {
		t.Errorf("Join with cancelled ctx: err = %v", err)
	}

	h.Close()
	if _, err := h.Join(ctx, "r2", "c", DefaultGrants()); !errors.Is(err, ErrHubClosed) {
		t.Errorf("Join after Close: err = %v", err)
	}
}

func TestHub_ReliableOrdering(t *testing.T) {
	h := NewHub(Options{BufferSize: 4, SendTimeout: 2 * time.Second})
	defer h.Close()
	ctx := context.Background()

	sender, _ := h.Join(ctx, "r", "sender", DefaultGrants())
	receiver, _ := h.Join(ctx, "r", "receiver", DefaultGrants())
	expect(t, receiver, EventConnected, "")
	expect(t, receiver, EventParticipantJoined, "sender")

	const n = 50
	errc := make(chan error, 1)
	go func() {
		for i := 0; i < n; i++ {
			if err := sender.Send([]byte(fmt.Sprintf("msg-%d", i)), Reliable); err != nil {
				errc <- err
				return
			}
		}
		errc <- nil
	}()

	// Buffer is smaller than n so the sender has to wait on us
	for i := 0; i < n; i++ {
		ev := expect(t, receiver, EventDataReceived, "sender")
		if want := fmt.Sprintf("msg-%d", i); string(ev.Data) != want {
			t.Fatalf("message %d = %q, want %q", i, ev.Data, want)
		}
	}
	if err := <-errc; err != nil {
		t.Fatalf("Send failed: %v", err)
	}
}

func TestHub_SendSemantics(t *testing.T) {
	h := NewHub(Options{BufferSize: 2, SendTimeout: 20 * time.Millisecond})
	defer h.Close()
	ctx := context.Background()

	sender, _ := h.Join(ctx, "r", "sender", DefaultGrants())
	listener, _ := h.Join(ctx, "r", "listener", DefaultGrants())
	mute, _ := h.Join(ctx, "r", "mute", Grants{RoomJoin: true, CanSubscribe: true})
	deaf, _ := h.Join(ctx, "r", "deaf", Grants{RoomJoin: true, CanPublishData: true})

	drain := func(p *Participant) {
		for {
			select {
			case <-p.Events():
			default:
				return
			}
		}
	}
	for _, p := range []*Participant{sender, listener, mute, deaf} {
		drain(p)
	}

	if err := mute.Send([]byte("hi"), Reliable); !errors.Is(err, ErrPublishNotPermitted) {
		t.Errorf("Send without CanPublishData: err = %v", err)
	}

	// deaf never receives data
	if err := sender.Send([]byte("one"), Reliable); err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	select {
	case ev := <-deaf.Events():
		t.Errorf("participant without CanSubscribe received %v", ev.Type)
	default:
	}
	drain(listener)
	drain(mute)

	// Lossy drops once the listener's buffer is full
	for i := 0; i < 5; i++ {
		if err := sender.Send([]byte("lossy"), Lossy); err != nil {
			t.Fatalf("Lossy send failed: %v", err)
		}
	}
	if got := len(listener.Events()); got != 2 {
		t.Errorf("listener buffered %d lossy messages, want 2", got)
	}

	// Reliable gives up after the send timeout
	if err := sender.Send([]byte("stuck"), Reliable); !errors.Is(err, ErrSendTimeout) {
		t.Errorf("Reliable send to full buffer: err = %v, want ErrSendTimeout", err)
	}

	sender.Disconnect()
	if err := sender.Send([]byte("late"), Reliable); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send after Disconnect: err = %v", err)
	}
}

func TestHub_CloseDisconnectsEveryone(t *testing.T) {
	h := NewHub(Options{})
	ctx := context.Background()

	a, _ := h.Join(ctx, "r1", "a", DefaultGrants())
	b, _ := h.Join(ctx, "r2", "b", DefaultGrants())

	h.Close()

	for _, p := range []*Participant{a, b} {
		select {
		case <-p.Done():
		case <-time.After(time.Second):
			t.Fatalf("%s not disconnected by Close", p.Identity())
		}
	}
	if h.RoomCount() != 0 {
		t.Errorf("RoomCount after Close = %d", h.RoomCount())
	}
}
