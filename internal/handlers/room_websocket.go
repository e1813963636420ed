package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"frontdesk/internal/models"
	"frontdesk/internal/room"
	"frontdesk/internal/services"
	"frontdesk/pkg/auth"

	"github.com/gofiber/contrib/websocket"
)

const (
	roomEndpoint = "room"
	pingInterval = 30 * time.Second
)

// RoomWebSocketHandler attaches browser participants to hub rooms over /ws/room
type RoomWebSocketHandler struct {
	hub     *room.Hub
	metrics *services.Metrics
}

// NewRoomWebSocketHandler creates a new room WebSocket handler
func NewRoomWebSocketHandler(hub *room.Hub) *RoomWebSocketHandler {
	return &RoomWebSocketHandler{hub: hub}
}

// SetMetrics sets the metrics sink
func (h *RoomWebSocketHandler) SetMetrics(m *services.Metrics) {
	h.metrics = m
}

// Handle is the WebSocket handler for /ws/room. RoomTokenMiddleware has
// already verified the token and stored its claims.
func (h *RoomWebSocketHandler) Handle(c *websocket.Conn) {
	claims, ok := c.Locals("room_claims").(*auth.RoomClaims)
	if !ok || claims == nil {
		log.Printf("[ROOM-WS] Connection rejected: missing room claims")
		c.WriteJSON(models.RoomServerMessage{Type: "error", ErrorCode: "unauthorized", ErrorMessage: "unauthorized"})
		return
	}

	identity := claims.Identity()
	roomID := claims.Grant.Room

	p, err := h.hub.Join(context.Background(), roomID, identity, room.Grants{
		RoomJoin:       claims.Grant.RoomJoin,
		CanPublishData: claims.Grant.CanPublishData,
		CanSubscribe:   claims.Grant.CanSubscribe,
	})
	if err != nil {
		log.Printf("[ROOM-WS] %s could not join %s: %v", identity, roomID, err)
		c.WriteJSON(models.RoomServerMessage{Type: "error", RoomID: roomID, ErrorCode: joinErrorCode(err), ErrorMessage: err.Error()})
		return
	}

	h.metrics.RecordWebSocketConnect(roomEndpoint)
	log.Printf("[ROOM-WS] %s joined %s", identity, roomID)

	var writeMu sync.Mutex
	write := func(msg models.RoomServerMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(msg)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup

	// Room events → WebSocket
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-done:
				return
			case <-p.Done():
				// Closing the socket unblocks the read loop
				c.Close()
				return
			case ev := <-p.Events():
				msg, ok := serverMessage(roomID, ev)
				if !ok {
					continue
				}
				if err := write(msg); err != nil {
					log.Printf("[ROOM-WS] Write error for %s: %v", identity, err)
					c.Close()
					return
				}
			}
		}
	}()

	// Keepalive pings
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				writeMu.Lock()
				err := c.WriteMessage(websocket.PingMessage, nil)
				writeMu.Unlock()
				if err != nil {
					return
				}
			}
		}
	}()

	defer func() {
		close(done)
		p.Disconnect()
		wg.Wait()
		h.metrics.RecordWebSocketDisconnect(roomEndpoint)
		log.Printf("[ROOM-WS] %s left %s", identity, roomID)
	}()

	for {
		_, raw, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[ROOM-WS] Read error for %s: %v", identity, err)
			}
			return
		}

		var msg models.RoomClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			write(models.RoomServerMessage{Type: "error", ErrorCode: "bad_message", ErrorMessage: "invalid JSON frame"})
			continue
		}

		switch msg.Type {
		case "ping":
			write(models.RoomServerMessage{Type: "pong"})
		case "data":
			reliability := room.Reliable
			if msg.Lossy {
				reliability = room.Lossy
			}
			if err := p.Send([]byte(msg.Payload), reliability); err != nil {
				if errors.Is(err, room.ErrNotConnected) {
					return
				}
				write(models.RoomServerMessage{Type: "error", ErrorCode: sendErrorCode(err), ErrorMessage: err.Error()})
			}
		default:
			write(models.RoomServerMessage{Type: "error", ErrorCode: "bad_message", ErrorMessage: "unknown message type"})
		}
	}
}

// serverMessage converts a room event into the browser frame. Disconnected
// is not forwarded; the socket is closed instead.
func serverMessage(roomID string, ev room.Event) (models.RoomServerMessage, bool) {
	switch ev.Type {
	case room.EventConnected:
		return models.RoomServerMessage{Type: "connected", RoomID: roomID}, true
	case room.EventParticipantJoined:
		return models.RoomServerMessage{Type: "participant_joined", RoomID: roomID, Identity: ev.Identity}, true
	case room.EventParticipantLeft:
		return models.RoomServerMessage{Type: "participant_left", RoomID: roomID, Identity: ev.Identity}, true
	case room.EventDataReceived:
		return models.RoomServerMessage{Type: "data", RoomID: roomID, From: ev.From, Payload: string(ev.Data)}, true
	}
	return models.RoomServerMessage{}, false
}

func joinErrorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrJoinNotPermitted):
		return "join_not_permitted"
	case errors.Is(err, room.ErrIdentityTaken):
		return "identity_taken"
	case errors.Is(err, room.ErrHubClosed):
		return "unavailable"
	}
	return "join_failed"
}

func sendErrorCode(err error) string {
	switch {
	case errors.Is(err, room.ErrPublishNotPermitted):
		return "publish_not_permitted"
	case errors.Is(err, room.ErrSendTimeout):
		return "send_timeout"
	}
	return "send_failed"
}
