package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/expenseflow-go/pkg/logger"
)

type KafkaConfig struct {
	Brokers     []string
	TopicPrefix string

	// ConsumerGroup prefixes the per-instance group id
	ConsumerGroup string
}

// KafkaEventBus writes each event to the topic named after its type. Each bus
// reads with its own consumer group, so every instance sees every event.
type KafkaEventBus struct {
	config  KafkaConfig
	groupID string
	writer  *kafka.Writer
	logger  logger.Logger

	mu   sync.Mutex
	subs map[*kafkaSubscription]struct{}
}

type kafkaSubscription struct {
	reader *kafka.Reader
	cancel context.CancelFunc
	done   chan struct{}
	bus    *KafkaEventBus
	once   sync.Once
}

func NewKafkaEventBus(config KafkaConfig, log logger.Logger) (*KafkaEventBus, error) {
	if len(config.Brokers) == 0 {
		return nil, errors.New("kafka brokers are required")
	}
	if log == nil {
		log = logger.NewNop()
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(config.Brokers...),
		Balancer:     &kafka.LeastBytes{},
		BatchSize:    100,
		BatchTimeout: 10 * time.Millisecond,
	}

	groupID := uuid.NewString()
	if config.ConsumerGroup != "" {
		groupID = config.ConsumerGroup + "-" + groupID
	}

	return &KafkaEventBus{
		config:  config,
		groupID: groupID,
		writer:  writer,
		logger:  log,
		subs:    make(map[*kafkaSubscription]struct{}),
	}, nil
}

// GroupID returns the consumer group this instance reads with.
func (k *KafkaEventBus) GroupID() string {
	return k.groupID
}

func (k *KafkaEventBus) topic(eventType string) string {
	if k.config.TopicPrefix == "" {
		return eventType
	}
	return k.config.TopicPrefix + "." + eventType
}

func (k *KafkaEventBus) Publish(ctx context.Context, event Event) error {
	event = prepare(event)

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	msg := kafka.Message{
		Topic: k.topic(event.Type),
		Key:   []byte(event.Subject),
		Value: data,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(event.Type)},
			{Key: "trace-id", Value: []byte(event.Metadata.TraceID)},
			{Key: "correlation-id", Value: []byte(event.Metadata.CorrelationID)},
		},
	}

	return k.writer.WriteMessages(ctx, msg)
}

func (k *KafkaEventBus) Subscribe(topic string, handler EventHandler) (Subscription, error) {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     k.config.Brokers,
		Topic:       k.topic(topic),
		GroupID:     k.groupID,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.LastOffset,
		MaxWait:     1 * time.Second,
	})

	ctx, cancel := context.WithCancel(context.Background())
	sub := &kafkaSubscription{
		reader: reader,
		cancel: cancel,
		done:   make(chan struct{}),
		bus:    k,
	}

	k.mu.Lock()
	k.subs[sub] = struct{}{}
	k.mu.Unlock()

	go k.consume(ctx, sub, handler)

	return sub, nil
}

func (k *KafkaEventBus) consume(ctx context.Context, sub *kafkaSubscription, handler EventHandler) {
	defer close(sub.done)

	for {
		msg, err := sub.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			k.logger.Warn("Failed to read message", "error", err, "topic", sub.reader.Config().Topic)
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			k.logger.Warn("Failed to unmarshal event", "error", err, "topic", msg.Topic)
			continue
		}

		if err := handler(ctx, event); err != nil {
			k.logger.Warn("Failed to handle event", "error", err, "type", event.Type, "id", event.ID)
		}
	}
}

func (k *KafkaEventBus) Close() error {
	k.mu.Lock()
	subs := make([]*kafkaSubscription, 0, len(k.subs))
	for sub := range k.subs {
		subs = append(subs, sub)
	}
	k.mu.Unlock()

	for _, sub := range subs {
		if err := sub.Unsubscribe(); err != nil {
			return err
		}
	}

	if err := k.writer.Close(); err != nil {
		return fmt.Errorf("failed to close writer: %w", err)
	}
	return nil
}

func (s *kafkaSubscription) Unsubscribe() error {
	var err error
	s.once.Do(func() {
		s.cancel()
		<-s.done
		if cerr := s.reader.Close(); cerr != nil {
			err = fmt.Errorf("failed to close reader: %w", cerr)
		}

		s.bus.mu.Lock()
		delete(s.bus.subs, s)
		s.bus.mu.Unlock()
	})
	return err
}
