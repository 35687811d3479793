package messaging

import (
	"context"

	"github.com/solemates/commerce-backend/internal/entity"
)

// TopicOrderEvents carries order lifecycle events, partitioned by order id so
// events for the same order stay ordered.
const TopicOrderEvents = "orders.events"

// Handler processes one consumed event. Handlers must be idempotent: the
// broker delivers at least once.
type Handler func(ctx context.Context, eventType string, payload []byte) error

// Publisher publishes domain events to a topic.
type Publisher interface {
	PublishEvent(ctx context.Context, topic string, key string, event entity.Event) error
}

// Subscriber consumes a topic, invoking the handler per message. Consume
// blocks until ctx is cancelled.
type Subscriber interface {
	Consume(ctx context.Context, topic string, handler Handler) error
}
