// Package relay implements the per-connection protocol: the handshake
// state machine, the publish path into the hub, and the send/receive
// coordinator that drives a subscribing connection until either side
// ends it.
package relay

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New()

// PublishedMessage is the opaque payload a publisher sends. Data is
// forwarded verbatim and never interpreted by the relay.
type PublishedMessage struct {
	Topic string `json:"topic" validate:"required"`
	Data  string `json:"data"`
}

// Envelope is the unit carried on the hub: a published message tagged
// with the name of the publisher that produced it. The name is bound
// once, when the connection becomes a publisher, and never changes.
type Envelope struct {
	PublisherName string
	Message       PublishedMessage
}

// SubscriptionFilter selects which envelopes a subscriber receives.
// Matching is exact-string on both fields: no wildcards, case-sensitive.
type SubscriptionFilter struct {
	PublisherName string `json:"publisher" validate:"required"`
	Topic         string `json:"topic" validate:"required"`
}

// Matches reports whether the envelope should be delivered under this filter.
func (f SubscriptionFilter) Matches(env Envelope) bool {
	return env.PublisherName == f.PublisherName && env.Message.Topic == f.Topic
}

// ParsePublishedMessage deserializes and validates a publish frame.
func ParsePublishedMessage(data []byte) (PublishedMessage, error) {
	var msg PublishedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return PublishedMessage{}, err
	}
	if err := validate.Struct(msg); err != nil {
		return PublishedMessage{}, fmt.Errorf("missing required field: %w", err)
	}
	return msg, nil
}

// ParseSubscriptionFilter deserializes and validates a subscribe frame.
func ParseSubscriptionFilter(data []byte) (SubscriptionFilter, error) {
	var filter SubscriptionFilter
	if err := json.Unmarshal(data, &filter); err != nil {
		return SubscriptionFilter{}, err
	}
	if err := validate.Struct(filter); err != nil {
		return SubscriptionFilter{}, fmt.Errorf("missing required field: %w", err)
	}
	return filter, nil
}
