package events

import (
	"context"
	"log/slog"
	"sync/atomic"
)

// Monitor consumes every relay topic and keeps running totals, logging
// each event as it arrives. It is the only default consumer of the bus.
type Monitor struct {
	connectionsOpened atomic.Int64
	connectionsClosed atomic.Int64
	publishersBound   atomic.Int64
	subscribersBound  atomic.Int64
	messagesPublished atomic.Int64
}

// NewMonitor creates a monitor; call Start to attach it to the bus.
func NewMonitor() *Monitor {
	return &Monitor{}
}

// Start subscribes the monitor to all relay topics.
func (m *Monitor) Start(ctx context.Context, sub Subscriber) error {
	for _, topic := range Topics() {
		if err := sub.Subscribe(ctx, topic, m.handle); err != nil {
			return err
		}
	}
	return nil
}

func (m *Monitor) handle(_ context.Context, evt Event) error {
	switch evt.Topic {
	case TopicConnectionOpened:
		m.connectionsOpened.Add(1)
	case TopicConnectionClosed:
		m.connectionsClosed.Add(1)
	case TopicPublisherBound:
		m.publishersBound.Add(1)
	case TopicSubscriberBound:
		m.subscribersBound.Add(1)
	case TopicMessagePublished:
		m.messagesPublished.Add(1)
		// Message traffic is too chatty for per-event logging.
		return nil
	}

	slog.Info("Relay lifecycle event",
		"topic", evt.Topic,
		"connection_id", evt.ConnectionID,
		"payload", string(evt.Payload),
		"active_connections", m.Active(),
	)
	return nil
}

// Active returns the number of connections currently open.
func (m *Monitor) Active() int64 {
	return m.connectionsOpened.Load() - m.connectionsClosed.Load()
}

// MessagesPublished returns the total number of envelopes published.
func (m *Monitor) MessagesPublished() int64 {
	return m.messagesPublished.Load()
}

// PublishersBound returns how many connections bound a publisher name.
func (m *Monitor) PublishersBound() int64 {
	return m.publishersBound.Load()
}

// SubscribersBound returns how many connections entered a subscription.
func (m *Monitor) SubscribersBound() int64 {
	return m.subscribersBound.Load()
}
