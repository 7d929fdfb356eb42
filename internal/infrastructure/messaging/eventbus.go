// Package messaging implements event bus functionality for the
// Chrono Performance Hub. It provides an in-memory bus for
// single-instance deployments and a Redis Pub/Sub bus for
// distributed ones.
package messaging

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/semaphore"

	"github.com/chrono-hub/chrono-performance-hub/internal/domain/shared"
)

var (
	// ErrEventBusClosed is returned when publishing or subscribing on a
	// closed bus.
	ErrEventBusClosed = errors.New("event bus is closed")

	errNilEvent   = errors.New("event cannot be nil")
	errNilHandler = errors.New("handler cannot be nil")
)

// ══════════════════════════════════════════════════════════════════════════════
// IN-MEMORY EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// InMemoryEventBusConfig tunes the in-process bus.
type InMemoryEventBusConfig struct {
	// AsyncMode delivers events on background goroutines. Synchronous
	// delivery is mainly for tests, where ordering matters.
	AsyncMode bool

	// WorkerPoolSize caps concurrent handler executions in async mode.
	WorkerPoolSize int

	// Logger for delivery failures.
	Logger *slog.Logger
}

// DefaultInMemoryEventBusConfig is async with ten workers.
func DefaultInMemoryEventBusConfig() InMemoryEventBusConfig {
	return InMemoryEventBusConfig{
		AsyncMode:      true,
		WorkerPoolSize: 10,
	}
}

// InMemoryEventBus routes domain events to handlers within one process.
// It implements shared.EventBus. Handler errors are logged and never
// reach the publisher.
type InMemoryEventBus struct {
	async   bool
	slots   *semaphore.Weighted
	logger  *slog.Logger
	lifectx context.Context
	halt    context.CancelFunc

	mu       sync.RWMutex
	byType   map[shared.EventType][]shared.EventHandler
	wildcard []shared.EventHandler
	closed   bool
	inflight sync.WaitGroup
}

// NewInMemoryEventBus builds a bus from config, filling zero values with
// defaults.
func NewInMemoryEventBus(config InMemoryEventBusConfig) *InMemoryEventBus {
	if config.Logger == nil {
		config.Logger = slog.Default()
	}
	if config.WorkerPoolSize <= 0 {
		config.WorkerPoolSize = 10
	}

	lifectx, halt := context.WithCancel(context.Background())
	return &InMemoryEventBus{
		async:   config.AsyncMode,
		slots:   semaphore.NewWeighted(int64(config.WorkerPoolSize)),
		logger:  config.Logger,
		lifectx: lifectx,
		halt:    halt,
		byType:  make(map[shared.EventType][]shared.EventHandler),
	}
}

// Subscribe registers a handler for one event type.
func (b *InMemoryEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.byType[eventType] = append(b.byType[eventType], handler)
	b.logger.Debug("subscribed handler", "event_type", eventType)
	return nil
}

// SubscribeAll registers a handler that sees every event.
func (b *InMemoryEventBus) SubscribeAll(handler shared.EventHandler) error {
	if handler == nil {
		return errNilHandler
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return ErrEventBusClosed
	}

	b.wildcard = append(b.wildcard, handler)
	b.logger.Debug("subscribed global handler")
	return nil
}

// Publish delivers the event to matching handlers plus the wildcards.
func (b *InMemoryEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrEventBusClosed
	}
	targets := append([]shared.EventHandler{}, b.byType[event.EventType()]...)
	targets = append(targets, b.wildcard...)
	b.mu.RUnlock()

	if len(targets) == 0 {
		b.logger.Debug("no handlers for event", "event_type", event.EventType())
		return nil
	}

	for _, handler := range targets {
		if b.async {
			b.deliverAsync(event, handler)
			continue
		}
		if err := handler(event); err != nil {
			b.logger.Error("handler error", "event_type", event.EventType(), "error", err)
		}
	}
	return nil
}

// deliverAsync runs the handler on its own goroutine, bounded by the
// worker semaphore. Delivery is abandoned when the bus is closing.
func (b *InMemoryEventBus) deliverAsync(event shared.Event, handler shared.EventHandler) {
	b.inflight.Add(1)
	go func() {
		defer b.inflight.Done()

		if err := b.slots.Acquire(b.lifectx, 1); err != nil {
			return
		}
		defer b.slots.Release(1)

		started := time.Now()
		if err := handler(event); err != nil {
			b.logger.Error("async handler error",
				"event_type", event.EventType(),
				"duration", time.Since(started),
				"error", err,
			)
		}
	}()
}

// Close stops accepting events and waits for in-flight deliveries.
// Subsequent calls are no-ops.
func (b *InMemoryEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.halt()
	b.inflight.Wait()

	b.logger.Info("event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// REDIS EVENT BUS
// ══════════════════════════════════════════════════════════════════════════════

// DefaultEventsChannel is the Redis Pub/Sub channel for domain events.
const DefaultEventsChannel = "chrono-hub:events"

// RedisEventBusConfig wires the distributed bus.
type RedisEventBusConfig struct {
	// Client is the go-redis client to publish and subscribe on.
	Client *redis.Client

	// ChannelName overrides DefaultEventsChannel.
	ChannelName string

	// InstanceID tags outgoing envelopes so an instance can skip its own
	// events when they come back over Pub/Sub.
	InstanceID string

	// LocalBusConfig configures the embedded in-memory bus.
	LocalBusConfig InMemoryEventBusConfig

	// Logger for transport failures.
	Logger *slog.Logger
}

// RedisEventBus mirrors every published event onto a Redis Pub/Sub channel
// so the API and the worker see each other's events. Local handlers receive
// the event directly; a single-instance deployment behaves exactly like the
// in-memory bus.
type RedisEventBus struct {
	client     *redis.Client
	local      *InMemoryEventBus
	channel    string
	instanceID string
	logger     *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.RWMutex
	closed bool
}

// NewRedisEventBus connects the bus and starts its subscription listener.
func NewRedisEventBus(config RedisEventBusConfig) (*RedisEventBus, error) {
	if config.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if config.ChannelName == "" {
		config.ChannelName = DefaultEventsChannel
	}
	if config.InstanceID == "" {
		config.InstanceID = uuid.NewString()
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	ctx, cancel := context.WithCancel(context.Background())
	bus := &RedisEventBus{
		client:     config.Client,
		local:      NewInMemoryEventBus(config.LocalBusConfig),
		channel:    config.ChannelName,
		instanceID: config.InstanceID,
		logger:     config.Logger,
		ctx:        ctx,
		cancel:     cancel,
	}

	pubsub := bus.client.Subscribe(ctx, bus.channel)
	bus.wg.Add(1)
	go func() {
		defer bus.wg.Done()
		defer pubsub.Close()
		bus.listen(pubsub.Channel())
	}()

	return bus, nil
}

// Subscribe registers a handler for one event type.
func (b *RedisEventBus) Subscribe(eventType shared.EventType, handler shared.EventHandler) error {
	return b.local.Subscribe(eventType, handler)
}

// SubscribeAll registers a handler that sees every event.
func (b *RedisEventBus) SubscribeAll(handler shared.EventHandler) error {
	return b.local.SubscribeAll(handler)
}

// Publish delivers locally and broadcasts to the channel. A Redis outage
// degrades to local-only delivery rather than failing the publish.
func (b *RedisEventBus) Publish(event shared.Event) error {
	if event == nil {
		return errNilEvent
	}

	b.mu.RLock()
	closed := b.closed
	b.mu.RUnlock()
	if closed {
		return ErrEventBusClosed
	}

	data, err := encodeEnvelope(b.instanceID, event)
	if err != nil {
		return err
	}
	if err := b.client.Publish(b.ctx, b.channel, data).Err(); err != nil {
		b.logger.Error("failed to publish to redis", "error", err)
	}

	return b.local.Publish(event)
}

// listen feeds remote envelopes into the local bus until the bus closes.
func (b *RedisEventBus) listen(messages <-chan *redis.Message) {
	for {
		select {
		case <-b.ctx.Done():
			return
		case msg, ok := <-messages:
			if !ok {
				return
			}

			remote, err := decodeEnvelope([]byte(msg.Payload))
			if err != nil {
				b.logger.Error("failed to decode event envelope", "error", err)
				continue
			}
			if remote.origin == b.instanceID {
				continue
			}
			if err := b.local.Publish(remote); err != nil {
				b.logger.Error("failed to deliver remote event", "error", err)
			}
		}
	}
}

// Close stops the listener and drains the local bus.
func (b *RedisEventBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.cancel()
	b.wg.Wait()

	if err := b.local.Close(); err != nil {
		b.logger.Error("failed to close local bus", "error", err)
	}

	b.logger.Info("redis event bus closed")
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// WIRE FORMAT
// ══════════════════════════════════════════════════════════════════════════════

// eventEnvelope carries an event across Redis together with its origin
// instance and enough metadata to rebuild a shared.Event on the other side.
type eventEnvelope struct {
	InstanceID  string           `json:"instance_id"`
	EventType   shared.EventType `json:"event_type"`
	AggregateID string           `json:"aggregate_id"`
	OccurredAt  time.Time        `json:"occurred_at"`
	Payload     json.RawMessage  `json:"payload"`
}

func encodeEnvelope(instanceID string, event shared.Event) ([]byte, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	data, err := json.Marshal(eventEnvelope{
		InstanceID:  instanceID,
		EventType:   event.EventType(),
		AggregateID: event.AggregateID(),
		OccurredAt:  event.OccurredAt(),
		Payload:     payload,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

func decodeEnvelope(data []byte) (*remoteEvent, error) {
	var env eventEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return &remoteEvent{
		origin:      env.InstanceID,
		eventType:   env.EventType,
		aggregateID: env.AggregateID,
		occurredAt:  env.OccurredAt,
		payload:     env.Payload,
	}, nil
}

// remoteEvent is an event received from another instance. The concrete
// payload stays as raw JSON; handlers that need it unmarshal into the
// matching typed event using RawPayload.
type remoteEvent struct {
	origin      string
	eventType   shared.EventType
	aggregateID string
	occurredAt  time.Time
	payload     json.RawMessage
}

func (e *remoteEvent) EventType() shared.EventType { return e.eventType }
func (e *remoteEvent) AggregateID() string         { return e.aggregateID }
func (e *remoteEvent) OccurredAt() time.Time       { return e.occurredAt }

// RawPayload returns the serialized form of the original event.
func (e *remoteEvent) RawPayload() json.RawMessage { return e.payload }
