package memory

import (
	"context"
	"sync"

	"github.com/aescanero/chatrelay/pkg/domain"
	"github.com/aescanero/chatrelay/pkg/ports"
	"go.uber.org/zap"
)

// subscriptionBuffer is how many events may wait for a slow handler before
// new ones are dropped
const subscriptionBuffer = 256

type delivery struct {
	ctx   context.Context
	event domain.Event
}

// subscription delivers events to its handler in publish order
type subscription struct {
	id      uint64
	topic   string
	handler ports.EventHandler
	queue   chan delivery
}

// InMemoryEventBus implements EventBus using in-process handlers
type InMemoryEventBus struct {
	subscribers map[string][]*subscription
	nextID      uint64
	logger      *zap.Logger
	mu          sync.RWMutex
}

// NewInMemoryEventBus creates a new in-memory event bus
func NewInMemoryEventBus(logger *zap.Logger) *InMemoryEventBus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryEventBus{
		subscribers: make(map[string][]*subscription),
		logger:      logger,
	}
}

// Publish queues an event for every subscriber of a topic. It never blocks:
// a subscriber whose queue is full misses the event.
func (e *InMemoryEventBus) Publish(ctx context.Context, topic string, event domain.Event) error {
	e.mu.RLock()
	defer e.mu.RUnlock()

	// Handlers outlive the publishing request
	d := delivery{ctx: context.WithoutCancel(ctx), event: event}
	for _, sub := range e.subscribers[topic] {
		select {
		case sub.queue <- d:
		default:
			e.logger.Warn("event dropped for slow subscriber",
				zap.String("topic", topic),
				zap.String("event_id", event.ID),
				zap.Uint64("subscription_id", sub.id))
		}
	}

	return nil
}

// Subscribe registers a handler on a topic until ctx is cancelled
func (e *InMemoryEventBus) Subscribe(ctx context.Context, topic string, handler ports.EventHandler) error {
	e.mu.Lock()
	e.nextID++
	sub := &subscription{
		id:      e.nextID,
		topic:   topic,
		handler: handler,
		queue:   make(chan delivery, subscriptionBuffer),
	}
	e.subscribers[topic] = append(e.subscribers[topic], sub)
	e.mu.Unlock()

	go e.deliver(sub)
	go func() {
		<-ctx.Done()
		e.unsubscribe(topic, sub.id)
	}()

	return nil
}

// deliver runs a subscription's handler for each queued event until the
// subscription is removed
func (e *InMemoryEventBus) deliver(sub *subscription) {
	for d := range sub.queue {
		if err := sub.handler(d.ctx, d.event); err != nil {
			e.logger.Debug("event handler failed",
				zap.String("topic", sub.topic),
				zap.String("event_id", d.event.ID),
				zap.Error(err))
		}
	}
}

// Subscribers returns the number of handlers registered on a topic
func (e *InMemoryEventBus) Subscribers(topic string) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.subscribers[topic])
}

// Close drops all subscribers
func (e *InMemoryEventBus) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, subs := range e.subscribers {
		for _, sub := range subs {
			close(sub.queue)
		}
	}
	e.subscribers = make(map[string][]*subscription)
	return nil
}

func (e *InMemoryEventBus) unsubscribe(topic string, id uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	subs := e.subscribers[topic]
	for i, sub := range subs {
		if sub.id == id {
			close(sub.queue)
			e.subscribers[topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	if len(e.subscribers[topic]) == 0 {
		delete(e.subscribers, topic)
	}
}
