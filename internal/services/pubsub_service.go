package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	"frontdesk/internal/models"

	"github.com/redis/go-redis/v9"
)

// EventsChannel is the Redis channel that carries front-desk events between instances
const EventsChannel = "frontdesk:events"

// PubSubService mirrors events between instances over Redis pub/sub
type PubSubService struct {
	redis      *RedisService
	pubsub     *redis.PubSub
	handlers   []EventHandler
	mu         sync.RWMutex
	instanceID string
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

// EventHandler is called for every event published by another instance
type EventHandler func(event models.Event)

// NewPubSubService creates a new pub/sub service
func NewPubSubService(redisService *RedisService, instanceID string) *PubSubService {
	ctx, cancel := context.WithCancel(context.Background())
	return &PubSubService{
		redis:      redisService,
		instanceID: instanceID,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// InstanceID identifies this process on the channel
func (s *PubSubService) InstanceID() string {
	return s.instanceID
}

// OnEvent registers a handler for remote events
func (s *PubSubService) OnEvent(handler EventHandler) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handlers = append(s.handlers, handler)
}

// Start begins listening for pub/sub messages
func (s *PubSubService) Start() error {
	s.pubsub = s.redis.Subscribe(s.ctx, EventsChannel)

	// Wait for subscription confirmation
	if _, err := s.pubsub.Receive(s.ctx); err != nil {
		s.pubsub.Close()
		return fmt.Errorf("failed to subscribe to %s: %w", EventsChannel, err)
	}

	s.wg.Add(1)
	go s.processMessages()

	log.Printf("✅ [PUBSUB] Listening on %s (instance: %s)", EventsChannel, s.instanceID)
	return nil
}

func (s *PubSubService) processMessages() {
	defer s.wg.Done()
	ch := s.pubsub.Channel()

	for {
		select {
		case <-s.ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			s.handleMessage([]byte(msg.Payload))
		}
	}
}

func (s *PubSubService) handleMessage(payload []byte) {
	var event models.Event
	if err := json.Unmarshal(payload, &event); err != nil {
		log.Printf("⚠️ [PUBSUB] Failed to unmarshal event: %v", err)
		return
	}

	// Skip messages from this instance (avoid loops)
	if event.InstanceID == s.instanceID {
		return
	}

	s.mu.RLock()
	handlers := append([]EventHandler(nil), s.handlers...)
	s.mu.RUnlock()

	for _, handler := range handlers {
		handler(event)
	}
}

// Publish stamps the event with this instance's id and sends it to every instance
func (s *PubSubService) Publish(ctx context.Context, event models.Event) error {
	event.InstanceID = s.instanceID

	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return s.redis.Publish(ctx, EventsChannel, data)
}

// Stop stops the pub/sub service
func (s *PubSubService) Stop() error {
	s.cancel()
	var err error
	if s.pubsub != nil {
		err = s.pubsub.Close()
	}
	s.wg.Wait()
	return err
}
