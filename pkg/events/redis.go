package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"

	"github.com/expenseflow-go/pkg/logger"
)

// RedisEventBus publishes events on Redis pub/sub channels named after the
// event type.
type RedisEventBus struct {
	client *redis.Client
	prefix string
	logger logger.Logger

	mu   sync.Mutex
	subs map[*redisSubscription]struct{}
}

type redisSubscription struct {
	pubsub *redis.PubSub
	done   chan struct{}
	bus    *RedisEventBus
	once   sync.Once
}

func NewRedisEventBus(client *redis.Client, prefix string, log logger.Logger) *RedisEventBus {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisEventBus{
		client: client,
		prefix: prefix,
		logger: log,
		subs:   make(map[*redisSubscription]struct{}),
	}
}

func (r *RedisEventBus) channel(topic string) string {
	if r.prefix == "" {
		return topic
	}
	return r.prefix + ":" + topic
}

func (r *RedisEventBus) Publish(ctx context.Context, event Event) error {
	event = prepare(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := r.client.Publish(ctx, r.channel(event.Type), data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}
	return nil
}

// Subscribe returns once Redis has confirmed the subscription, so events
// published afterwards are delivered.
func (r *RedisEventBus) Subscribe(topic string, handler EventHandler) (Subscription, error) {
	ctx := context.Background()
	pubsub := r.client.Subscribe(ctx, r.channel(topic))

	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to %s: %w", topic, err)
	}

	sub := &redisSubscription{
		pubsub: pubsub,
		done:   make(chan struct{}),
		bus:    r,
	}

	r.mu.Lock()
	r.subs[sub] = struct{}{}
	r.mu.Unlock()

	go r.consume(sub, handler)

	return sub, nil
}

func (r *RedisEventBus) consume(sub *redisSubscription, handler EventHandler) {
	defer close(sub.done)

	for msg := range sub.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			r.logger.Warn("Failed to unmarshal event", "error", err, "channel", msg.Channel)
			continue
		}

		if err := handler(context.Background(), event); err != nil {
			r.logger.Warn("Failed to handle event", "error", err, "type", event.Type, "id", event.ID)
		}
	}
}

func (r *RedisEventBus) Close() error {
	r.mu.Lock()
	subs := make([]*redisSubscription, 0, len(r.subs))
	for sub := range r.subs {
		subs = append(subs, sub)
	}
	r.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			return err
		}
	}
	return nil
}

func (s *redisSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		err = s.pubsub.Close()
		<-s.done

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
