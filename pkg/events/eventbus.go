package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Subject   string                 `json:"subject,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	UserID    string                 `json:"userId,omitempty"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	Metadata  EventMetadata          `json:"metadata"`
}

type EventMetadata struct {
	CorrelationID string `json:"correlationId,omitempty"`
	TraceID       string `json:"traceId,omitempty"`
}

type EventHandler func(ctx context.Context, event Event) error

// Subscription is an active handler registration.
type Subscription interface {
	Unsubscribe() error
}

type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

type Subscriber interface {
	Subscribe(topic string, handler EventHandler) (Subscription, error)
}

// EventBus routes events to subscribers by event type.
type EventBus interface {
	Publisher
	Subscriber
	Close() error
}

// prepare fills in the ID and timestamp of an outgoing event.
func prepare(event Event) Event {
	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	return event
}

// Event builder helper
type EventBuilder struct {
	event Event
}

func NewEventBuilder(eventType string) *EventBuilder {
	return &EventBuilder{
		event: Event{
			ID:        uuid.New().String(),
			Type:      eventType,
			Timestamp: time.Now().UTC(),
			Payload:   make(map[string]interface{}),
		},
	}
}

func (b *EventBuilder) WithSubject(subject string) *EventBuilder {
	b.event.Subject = subject
	return b
}

func (b *EventBuilder) WithUserID(userID string) *EventBuilder {
	b.event.UserID = userID
	return b
}

func (b *EventBuilder) WithPayload(key string, value interface{}) *EventBuilder {
	b.event.Payload[key] = value
	return b
}

func (b *EventBuilder) WithCorrelationID(id string) *EventBuilder {
	b.event.Metadata.CorrelationID = id
	return b
}

func (b *EventBuilder) WithTraceID(id string) *EventBuilder {
	b.event.Metadata.TraceID = id
	return b
}

func (b *EventBuilder) Build() Event {
	return b.event
}

// Common event types
const (
	// RoleUpdated signals that the server-side role may have changed. It
	// carries no payload; receivers reload from storage.
	RoleUpdated = "role.updated"

	UserLoggedIn  = "user.logged_in"
	UserLoggedOut = "user.logged_out"
)
