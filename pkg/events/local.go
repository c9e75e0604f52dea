package events

import (
	"context"
	"errors"
	"sync"

	"github.com/expenseflow-go/pkg/logger"
)

var ErrBusClosed = errors.New("event bus is closed")

// LocalEventBus delivers events in process. Publish calls every handler for
// the topic synchronously, in subscription order.
type LocalEventBus struct {
	mu       sync.RWMutex
	handlers map[string][]*localSubscription
	nextID   int
	closed   bool
	logger   logger.Logger
}

type localSubscription struct {
	id      int
	topic   string
	handler EventHandler
	bus     *LocalEventBus
}

func NewLocalEventBus(log logger.Logger) *LocalEventBus {
	if log == nil {
		log = logger.NewNop()
	}
	return &LocalEventBus{
		handlers: make(map[string][]*localSubscription),
		logger:   log,
	}
}

func (b *LocalEventBus) Publish(ctx context.Context, event Event) error {
	event = prepare(event)

	b.mu.RLock()
	if b.closed {
		b.mu.RUnlock()
		return ErrBusClosed
	}
	subs := append([]*localSubscription(nil), b.handlers[event.Type]...)
	b.mu.RUnlock()

	for _, sub := range subs {
		if err := sub.handler(ctx, event); err != nil {
			b.logger.Warn("Failed to handle event", "error", err, "type", event.Type, "id", event.ID)
		}
	}
	return nil
}

func (b *LocalEventBus) Subscribe(topic string, handler EventHandler) (Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, ErrBusClosed
	}

	b.nextID++
	sub := &localSubscription{id: b.nextID, topic: topic, handler: handler, bus: b}
	b.handlers[topic] = append(b.handlers[topic], sub)
	return sub, nil
}

// Subscribers returns the number of handlers registered for topic.
func (b *LocalEventBus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.handlers[topic])
}

func (b *LocalEventBus) Close() error {
	b.mu.Lock()
	b.closed = true
	b.handlers = make(map[string][]*localSubscription)
	b.mu.Unlock()
	return nil
}

func (s *localSubscription) Unsubscribe() error {
	b := s.bus
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.handlers[s.topic]
	for i, other := range subs {
		if other.id == s.id {
			b.handlers[s.topic] = append(subs[:i:i], subs[i+1:]...)
			break
		}
	}
	return nil
}
