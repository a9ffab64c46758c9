package handlers

import (
	"context"
	"log/slog"

	"github.com/coder/websocket"
	"github.com/labstack/echo/v4"

	"github.com/nfrund/courier/internal/config"
	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/hub"
	"github.com/nfrund/courier/internal/relay"
)

// RelayHandler upgrades HTTP requests to WebSocket connections and hands
// them to relay sessions. Sessions live on the base context, not the
// request context, so they survive the upgrade request and end together
// at shutdown.
type RelayHandler struct {
	base    context.Context
	hub     *hub.Hub[relay.Envelope]
	machine *relay.Machine
	bus     events.Publisher
	lag     config.LagPolicy
}

// NewRelayHandler wires the relay entry point. base is canceled when the
// server shuts down.
func NewRelayHandler(base context.Context, h *hub.Hub[relay.Envelope], m *relay.Machine, bus events.Publisher, lag config.LagPolicy) *RelayHandler {
	return &RelayHandler{base: base, hub: h, machine: m, bus: bus, lag: lag}
}

// Serve handles the WebSocket upgrade on GET /ws.
func (h *RelayHandler) Serve(c echo.Context) error {
	userAgent := c.Request().UserAgent()
	if userAgent == "" {
		userAgent = "Unknown browser"
	}
	slog.Info("New connection", "remote", c.RealIP(), "user_agent", userAgent)

	conn, err := websocket.Accept(c.Response(), c.Request(), &websocket.AcceptOptions{
		InsecureSkipVerify: true, // In production, check origin.
	})
	if err != nil {
		slog.Error("Failed to upgrade connection to WebSocket", "error", err)
		return err
	}

	session := relay.NewSession(conn, c.RealIP(), h.hub, h.machine, h.bus, h.lag)
	go session.Run(h.base)

	return nil
}
