package relay

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/nfrund/courier/internal/config"
	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/hub"
)

// Session drives one WebSocket connection through the handshake state
// machine and then through whichever terminal role it resolves to. All
// work is strictly sequential until the Subscribing transition; only
// the coordinator introduces concurrency.
type Session struct {
	id      string
	remote  string
	conn    *websocket.Conn
	hub     *hub.Hub[Envelope]
	machine *Machine
	bus     events.Publisher
	lag     config.LagPolicy
	log     *slog.Logger

	// lastParseError holds the detail of the most recent publish parse
	// failure, surfaced in the close reason.
	lastParseError string
}

// NewSession wraps an accepted connection. The hub and event bus are
// process-wide; the session only borrows them.
func NewSession(conn *websocket.Conn, remote string, h *hub.Hub[Envelope], m *Machine, bus events.Publisher, lag config.LagPolicy) *Session {
	id := uuid.NewString()
	return &Session{
		id:      id,
		remote:  remote,
		conn:    conn,
		hub:     h,
		machine: m,
		bus:     bus,
		lag:     lag,
		log:     slog.Default().With("connection_id", id, "remote", remote),
	}
}

// Run owns the connection until it terminates. It always closes the
// socket before returning.
func (s *Session) Run(ctx context.Context) {
	s.publishEvent(events.TopicConnectionOpened, nil)
	defer s.publishEvent(events.TopicConnectionClosed, nil)
	defer s.conn.CloseNow()
	defer s.log.Info("Connection context destroyed")

	role := Role{Kind: RolePending}
	for {
		typ, data, err := s.conn.Read(ctx)
		if err != nil {
			s.logReadEnd(err)
			return
		}
		if typ != websocket.MessageText {
			s.closeInvalid(ctx, reasonInvalidMessage)
			return
		}
		s.log.Debug("Frame received", "text", string(data))

		switch role.Kind {
		case RolePending, RoleAuthenticated:
			next, err := s.machine.Advance(ctx, role, string(data))
			if err != nil {
				var violation *Violation
				if errors.As(err, &violation) {
					s.closeInvalid(ctx, violation.Reason)
				} else {
					s.log.Error("Handshake failed", "error", err)
					s.close(ctx, websocket.StatusInternalError, "Internal error")
				}
				return
			}
			role = next
			switch role.Kind {
			case RolePublishing:
				s.publishEvent(events.TopicPublisherBound, []byte(role.Name))
			case RoleSubscribing:
				s.runSubscriber(ctx, role.Filter)
				return
			}

		case RolePublishing:
			if !s.publish(role.Name, data) {
				s.closeInvalid(ctx, "Invalid JSON: "+s.lastParseError)
				return
			}
		}
	}
}

// publish is the publish path: validate the payload, wrap it in an
// envelope and hand it to the hub. The hub's verdict is not surfaced to
// the publisher; the relay is best-effort from its point of view.
func (s *Session) publish(name string, data []byte) bool {
	msg, err := ParsePublishedMessage(data)
	if err != nil {
		s.lastParseError = err.Error()
		return false
	}
	if err := s.hub.Publish(Envelope{PublisherName: name, Message: msg}); err != nil {
		// Only possible when the hub is shutting the process down.
		s.log.Error("Hub rejected envelope", "error", err)
	}
	s.publishEvent(events.TopicMessagePublished, []byte(msg.Topic))
	return true
}

// runSubscriber is the send/receive coordinator: a forward loop drains
// the hub onto the socket while a watchdog loop watches the socket for
// the peer going away. Whichever loop finishes first cancels the other;
// both are joined before the subscription handle is released.
func (s *Session) runSubscriber(ctx context.Context, filter SubscriptionFilter) {
	sub := s.hub.Subscribe()
	defer sub.Close()
	s.publishEvent(events.TopicSubscriberBound, []byte(filter.PublisherName+"/"+filter.Topic))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	forwarded := make(chan int, 1)
	go func() {
		forwarded <- s.forward(ctx, sub, filter)
	}()

	watchdog := make(chan struct{}, 1)
	go func() {
		// A single read suffices: any inbound frame, close, or error
		// means the subscriber is done. Pings are answered by the
		// transport and never surface here.
		_, _, _ = s.conn.Read(ctx)
		watchdog <- struct{}{}
	}()

	select {
	case count := <-forwarded:
		cancel()
		<-watchdog
		s.log.Info("Forward loop ended", "messages_sent", count)
	case <-watchdog:
		cancel()
		count := <-forwarded
		s.log.Info("Subscriber hung up", "messages_sent", count)
	}
}

// forward drains the hub and writes matching envelopes to the socket.
// It returns the number of messages delivered.
func (s *Session) forward(ctx context.Context, sub *hub.Subscription[Envelope], filter SubscriptionFilter) int {
	count := 0
	for {
		env, err := sub.Next(ctx)
		if err != nil {
			var lagged *hub.LaggedError
			switch {
			case errors.As(err, &lagged):
				s.log.Warn("Subscriber lagged", "missed", lagged.Missed, "policy", s.lag)
				if s.lag == config.LagDisconnect {
					s.close(ctx, websocket.StatusPolicyViolation, "Subscriber lagged")
					return count
				}
				continue
			case errors.Is(err, hub.ErrClosed):
				s.log.Info("Hub closed, ending forward loop")
			}
			return count
		}
		if !filter.Matches(env) {
			continue
		}
		if err := s.conn.Write(ctx, websocket.MessageText, []byte(env.Message.Data)); err != nil {
			s.log.Info("Subscriber abruptly disconnected", "error", err)
			return count
		}
		count++
	}
}

func (s *Session) logReadEnd(err error) {
	switch status := websocket.CloseStatus(err); {
	case status == websocket.StatusNormalClosure || status == websocket.StatusGoingAway:
		s.log.Info("Peer closed the connection", "status", status)
	case status != -1:
		s.log.Info("Peer closed the connection with status", "status", status)
	case errors.Is(err, io.EOF) || errors.Is(err, context.Canceled):
		s.log.Info("Connection ended", "error", err)
	default:
		s.log.Warn("Read failed", "error", err)
	}
}

func (s *Session) closeInvalid(ctx context.Context, reason string) {
	s.close(ctx, websocket.StatusInvalidFramePayloadData, reason)
}

func (s *Session) close(_ context.Context, status websocket.StatusCode, reason string) {
	// Close frames carry at most 123 bytes of reason.
	if len(reason) > 123 {
		reason = reason[:123]
	}
	if err := s.conn.Close(status, reason); err != nil {
		s.log.Info("Could not send close frame, peer probably gone", "error", err)
	}
}

func (s *Session) publishEvent(topic string, payload []byte) {
	evt := events.Event{
		Topic:        topic,
		ConnectionID: s.id,
		Payload:      payload,
		Metadata:     map[string]string{"remote": s.remote},
	}
	if err := s.bus.Publish(context.Background(), evt); err != nil {
		s.log.Error("Failed to publish lifecycle event", "topic", topic, "error", err)
	}
}
