// Package server assembles the relay: configuration, the hub, the
// lifecycle event bus and the Echo HTTP surface.
package server

import (
	"context"
	"log/slog"
	"os"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/nfrund/courier/internal/auth"
	"github.com/nfrund/courier/internal/config"
	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/internal/handlers"
	"github.com/nfrund/courier/internal/hub"
	"github.com/nfrund/courier/internal/logging"
	custommw "github.com/nfrund/courier/internal/middleware"
	"github.com/nfrund/courier/internal/relay"
)

// Server holds the dependencies for the relay process.
type Server struct {
	E       *echo.Echo
	Cfg     *config.Config
	Hub     *hub.Hub[relay.Envelope]
	Bridge  *events.WatermillBridge
	Monitor *events.Monitor

	machine *relay.Machine
	// sessions is the base context for WebSocket sessions; canceling it
	// ends every open connection at shutdown.
	sessions       context.Context
	cancelSessions context.CancelFunc
}

// New creates a fully wired Server instance.
func New() *Server {
	logging.New()
	cfg := config.New()

	h := hub.New[relay.Envelope](cfg.HubCapacity)

	bridge := events.NewWatermillBridge()
	monitor := events.NewMonitor()
	if err := monitor.Start(context.Background(), bridge); err != nil {
		slog.Error("Failed to start relay monitor", "error", err)
		os.Exit(1)
	}

	machine := relay.NewMachine(auth.NewSecretAuthenticator(cfg.Secret))

	e := echo.New()
	e.HideBanner = true
	e.Validator = handlers.NewValidator()
	e.Use(middleware.RequestID())
	e.Use(custommw.Logger)
	e.Use(middleware.Recover())

	sessions, cancelSessions := context.WithCancel(context.Background())

	return &Server{
		E:              e,
		Cfg:            cfg,
		Hub:            h,
		Bridge:         bridge,
		Monitor:        monitor,
		machine:        machine,
		sessions:       sessions,
		cancelSessions: cancelSessions,
	}
}

// httpAuthenticator picks the credential check for the HTTP publish
// endpoint: the bearer oracle when configured, the shared secret
// otherwise.
func (s *Server) httpAuthenticator() auth.Authenticator {
	if s.Cfg.AuthURL != "" {
		return auth.NewRemoteAuthenticator(s.Cfg.AuthURL)
	}
	return auth.NewSecretAuthenticator(s.Cfg.Secret)
}
