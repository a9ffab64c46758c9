package server

import (
	"github.com/nfrund/courier/internal/handlers"
	"github.com/nfrund/courier/internal/middleware"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	relayHandler := handlers.NewRelayHandler(s.sessions, s.Hub, s.machine, s.Bridge, s.Cfg.Lag)
	publishHandler := handlers.NewPublishHandler(s.httpAuthenticator(), s.Hub, s.Bridge)
	infoHandler := handlers.NewInfoHandler(s.Cfg.ShowRepoPage, s.Monitor)
	rateLimiter := middleware.RateLimiter()

	s.E.GET("/", infoHandler.Root)
	s.E.GET("/ws", relayHandler.Serve)
	s.E.POST("/publish", publishHandler.Publish, rateLimiter)
	s.E.GET("/health", infoHandler.Health)

	s.E.RouteNotFound("/*", infoHandler.NotFound)
}
