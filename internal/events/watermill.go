package events

import (
	"context"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// WatermillBridge implements the Publisher and Subscriber interfaces
// using watermill's in-memory GoChannel.
type WatermillBridge struct {
	pub    message.Publisher
	sub    message.Subscriber
	logger watermill.LoggerAdapter
}

const (
	// Metadata keys used to transfer Event fields through watermill's message.
	metaKeyConnectionID = "connection_id"
	metaKeyTopic        = "topic"
)

// NewWatermillBridge initializes the in-memory lifecycle bus.
func NewWatermillBridge() *WatermillBridge {
	logger := watermill.NewStdLogger(false, false)
	goChannel := gochannel.NewGoChannel(
		gochannel.Config{},
		logger,
	)

	return &WatermillBridge{
		pub:    goChannel,
		sub:    goChannel,
		logger: logger,
	}
}

func mapToWatermillMessage(evt Event) *message.Message {
	wmMsg := message.NewMessage(watermill.NewUUID(), evt.Payload)
	wmMsg.Metadata.Set(metaKeyConnectionID, evt.ConnectionID)
	wmMsg.Metadata.Set(metaKeyTopic, evt.Topic)
	for k, v := range evt.Metadata {
		wmMsg.Metadata.Set(k, v)
	}
	return wmMsg
}

func mapToEvent(wmMsg *message.Message) Event {
	connectionID := wmMsg.Metadata.Get(metaKeyConnectionID)
	topic := wmMsg.Metadata.Get(metaKeyTopic)

	metadata := make(map[string]string)
	for k, v := range wmMsg.Metadata {
		if k != metaKeyConnectionID && k != metaKeyTopic {
			metadata[k] = v
		}
	}

	return Event{
		Topic:        topic,
		ConnectionID: connectionID,
		Payload:      wmMsg.Payload,
		Metadata:     metadata,
	}
}

// Publish implements the Publisher interface.
func (wb *WatermillBridge) Publish(ctx context.Context, evt Event) error {
	return wb.pub.Publish(evt.Topic, mapToWatermillMessage(evt))
}

// Subscribe implements the Subscriber interface. Event processing runs
// in a background goroutine so Subscribe itself does not block.
func (wb *WatermillBridge) Subscribe(ctx context.Context, topic string, handler Handler) error {
	messages, err := wb.sub.Subscribe(ctx, topic)
	if err != nil {
		return err
	}

	go func() {
		for wmMsg := range messages {
			evt := mapToEvent(wmMsg)
			if err := handler(ctx, evt); err != nil {
				slog.Error("Failed to handle lifecycle event", "topic", topic, "msg_id", wmMsg.UUID, "error", err)
				wmMsg.Nack()
			} else {
				wmMsg.Ack()
			}
		}
		slog.Debug("Lifecycle event loop ended", "topic", topic)
	}()

	return nil
}

// Close shuts down the bridge and stops event consumption.
func (wb *WatermillBridge) Close() error {
	return wb.sub.Close()
}
