package handlers

import (
	"log"
	"sync"
	"time"

	"frontdesk/internal/models"
	"frontdesk/internal/services"

	"github.com/gofiber/contrib/websocket"
	"github.com/google/uuid"
)

const supervisorEndpoint = "supervisor"

// SupervisorWebSocketHandler streams escalation and knowledge events to
// supervisor dashboards over /ws/supervisor
type SupervisorWebSocketHandler struct {
	bus     *services.EventBus
	metrics *services.Metrics
}

// NewSupervisorWebSocketHandler creates a new supervisor WebSocket handler
func NewSupervisorWebSocketHandler(bus *services.EventBus) *SupervisorWebSocketHandler {
	return &SupervisorWebSocketHandler{bus: bus}
}

// SetMetrics sets the metrics sink
func (h *SupervisorWebSocketHandler) SetMetrics(m *services.Metrics) {
	h.metrics = m
}

// Handle is the WebSocket handler for /ws/supervisor. Events raised while no
// supervisor was connected are replayed first.
func (h *SupervisorWebSocketHandler) Handle(c *websocket.Conn) {
	connID := uuid.New().String()
	events := h.bus.Subscribe(connID, 100)

	h.metrics.RecordWebSocketConnect(supervisorEndpoint)
	log.Printf("[SUPERVISOR-WS] Connection opened: %s", connID)

	done := make(chan struct{})
	var writeMu sync.Mutex
	var wg sync.WaitGroup

	write := func(ev models.Event) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(ev)
	}

	defer func() {
		close(done)
		h.bus.Unsubscribe(connID)
		wg.Wait()
		h.metrics.RecordWebSocketDisconnect(supervisorEndpoint)
		log.Printf("[SUPERVISOR-WS] Connection closed: %s", connID)
	}()

	for _, ev := range h.bus.DrainPending() {
		if err := write(ev); err != nil {
			return
		}
	}

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
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := write(ev); err != nil {
					log.Printf("[SUPERVISOR-WS] Write error for %s: %v", connID, err)
					c.Close()
					return
				}
			}
		}
	}()

	// Supervisors only listen; reading drains control frames and notices the close
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}
