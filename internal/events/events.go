// Package events carries relay lifecycle events (connections opening
// and closing, roles being bound, messages flowing) over an internal
// message bus. The bus is observability plumbing: envelope delivery to
// subscribers never touches it.
package events

import (
	"context"
)

// Bus topics published by the relay.
const (
	TopicConnectionOpened = "relay.connection.opened"
	TopicConnectionClosed = "relay.connection.closed"
	TopicPublisherBound   = "relay.publisher.bound"
	TopicSubscriberBound  = "relay.subscriber.bound"
	TopicMessagePublished = "relay.message.published"
)

// Topics lists every relay topic, in the order the monitor subscribes.
func Topics() []string {
	return []string{
		TopicConnectionOpened,
		TopicConnectionClosed,
		TopicPublisherBound,
		TopicSubscriberBound,
		TopicMessagePublished,
	}
}

// Event is the structure passed between components on the bus.
type Event struct {
	// Topic identifies the lifecycle channel the event belongs to.
	Topic string
	// ConnectionID identifies the connection that produced the event.
	ConnectionID string
	// Payload contains optional event data (e.g., the bound name).
	Payload []byte
	// Metadata can contain arbitrary key-value pairs for context.
	Metadata map[string]string
}

// Handler defines the function signature for processing a received event.
type Handler func(ctx context.Context, evt Event) error

// Publisher defines the contract for sending events to the bus.
type Publisher interface {
	Publish(ctx context.Context, evt Event) error
	Close() error
}

// Subscriber defines the contract for receiving events from the bus.
type Subscriber interface {
	// Subscribe starts listening to the given topic, processing events
	// with the handler. It returns once the subscription is active.
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}
