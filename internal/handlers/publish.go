package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/courier/internal/auth"
	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/hub"
	"github.com/nfrund/courier/internal/relay"
)

// PublisherNameHeader names the publisher on bearer-token requests,
// where the token itself carries no identity the relay can use.
const PublisherNameHeader = "X-Publisher-Name"

// PublishHandler is the HTTP ingress: an authenticated POST that injects
// one envelope into the hub without holding a WebSocket open.
type PublishHandler struct {
	authenticator auth.Authenticator
	hub           *hub.Hub[relay.Envelope]
	bus           events.Publisher
}

// NewPublishHandler wires the HTTP publish endpoint.
func NewPublishHandler(authenticator auth.Authenticator, h *hub.Hub[relay.Envelope], bus events.Publisher) *PublishHandler {
	return &PublishHandler{authenticator: authenticator, hub: h, bus: bus}
}

// Publish handles POST /publish.
func (h *PublishHandler) Publish(c echo.Context) error {
	creds, ok := h.credentials(c)
	if !ok {
		return c.String(http.StatusUnauthorized, "Missing or unsupported credentials")
	}

	if err := h.authenticator.Authenticate(c.Request().Context(), creds); err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			return c.String(http.StatusUnauthorized, "Invalid password")
		}
		return c.String(http.StatusBadGateway, "Authentication backend unavailable")
	}

	var req PublishRequest
	if err := c.Bind(&req); err != nil {
		return c.String(http.StatusBadRequest, "Invalid JSON")
	}
	if err := c.Validate(&req); err != nil {
		return c.String(http.StatusBadRequest, "Missing required field: topic")
	}

	envelope := relay.Envelope{
		PublisherName: creds.Name,
		Message:       relay.PublishedMessage{Topic: req.Topic, Data: req.Data},
	}
	if err := h.hub.Publish(envelope); err != nil {
		return c.String(http.StatusServiceUnavailable, "Relay is shutting down")
	}

	evt := events.Event{
		Topic:        events.TopicMessagePublished,
		ConnectionID: "http",
		Payload:      []byte(req.Topic),
		Metadata:     map[string]string{"remote": c.RealIP()},
	}
	if err := h.bus.Publish(c.Request().Context(), evt); err != nil {
		c.Logger().Error(err)
	}

	return c.NoContent(http.StatusAccepted)
}

// credentials extracts publisher identity from the request. Basic auth
// carries both name and secret; bearer tokens need the name header.
func (h *PublishHandler) credentials(c echo.Context) (auth.Credentials, bool) {
	if name, secret, ok := c.Request().BasicAuth(); ok {
		return auth.Credentials{Name: name, Secret: secret}, name != ""
	}

	header := c.Request().Header.Get(echo.HeaderAuthorization)
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		name := c.Request().Header.Get(PublisherNameHeader)
		return auth.Credentials{Name: name, Secret: token}, name != ""
	}

	return auth.Credentials{}, false
}
