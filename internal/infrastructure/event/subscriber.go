package event

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/godown/backend/internal/domain/shared"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// DefaultEventChannel is the Redis channel upstream systems publish to.
const DefaultEventChannel = "godown.events"

// Envelope is the wire format for inbound events. The payload is the JSON
// serialization of the domain event named by Type.
type Envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Subscriber consumes operational events from a Redis channel and dispatches
// them onto the local event bus. Upstream subsystems (arrival, loading,
// crossover, delivery) publish envelopes; the ledger only ever consumes.
type Subscriber struct {
	client     *redis.Client
	channel    string
	serializer *EventSerializer
	bus        shared.EventBus
	logger     *zap.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSubscriber creates a subscriber reading from the given channel.
// An empty channel name falls back to DefaultEventChannel.
func NewSubscriber(client *redis.Client, channel string, serializer *EventSerializer, bus shared.EventBus, logger *zap.Logger) *Subscriber {
	if channel == "" {
		channel = DefaultEventChannel
	}
	return &Subscriber{
		client:     client,
		channel:    channel,
		serializer: serializer,
		bus:        bus,
		logger:     logger,
	}
}

// Start begins consuming in a background goroutine. It returns once the
// subscription is established.
func (s *Subscriber) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return fmt.Errorf("subscriber already started")
	}

	runCtx, cancel := context.WithCancel(ctx)
	sub := s.client.Subscribe(runCtx, s.channel)

	// Wait for the subscription confirmation so publishers after Start
	// are never missed.
	if _, err := sub.Receive(runCtx); err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to %s: %w", s.channel, err)
	}

	s.cancel = cancel
	s.done = make(chan struct{})

	go s.run(runCtx, sub)

	s.logger.Info("event subscriber started", zap.String("channel", s.channel))
	return nil
}

// Stop cancels the subscription and waits for the consume loop to exit.
func (s *Subscriber) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("event subscriber stopped")
}

func (s *Subscriber) run(ctx context.Context, sub *redis.PubSub) {
	defer close(s.done)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			if err := s.dispatch(ctx, msg.Payload); err != nil {
				s.logger.Error("failed to dispatch inbound event", zap.Error(err))
			}
		}
	}
}

func (s *Subscriber) dispatch(ctx context.Context, raw string) error {
	var envelope Envelope
	if err := json.Unmarshal([]byte(raw), &envelope); err != nil {
		return fmt.Errorf("malformed envelope: %w", err)
	}

	domainEvent, err := s.serializer.Deserialize(envelope.Type, envelope.Payload)
	if err != nil {
		return err
	}

	s.logger.Debug("inbound event received",
		zap.String("event_type", envelope.Type),
		zap.String("event_id", domainEvent.EventID().String()),
	)

	return s.bus.Publish(ctx, domainEvent)
}
