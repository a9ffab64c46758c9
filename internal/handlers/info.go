package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/nfrund/courier/internal/events"
	"github.com/nfrund/courier/web/pages"
)

// RepoURL is where "/" points when the redirect is enabled.
const RepoURL = "https://github.com/nfrund/courier"

// InfoHandler serves the non-relay surface: the landing route, the
// health check and the catch-all.
type InfoHandler struct {
	showRepoPage bool
	monitor      *events.Monitor
}

// NewInfoHandler wires the informational routes.
func NewInfoHandler(showRepoPage bool, monitor *events.Monitor) *InfoHandler {
	return &InfoHandler{showRepoPage: showRepoPage, monitor: monitor}
}

// Root handles GET /.
func (h *InfoHandler) Root(c echo.Context) error {
	if h.showRepoPage {
		return c.Redirect(http.StatusSeeOther, RepoURL)
	}
	c.Response().Header().Set(echo.HeaderContentType, echo.MIMETextHTMLCharsetUTF8)
	c.Response().WriteHeader(http.StatusOK)
	return pages.Info(RepoURL).Render(c.Response())
}

// Health handles GET /health with a snapshot of the relay counters.
func (h *InfoHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]any{
		"status":             "ok",
		"active_connections": h.monitor.Active(),
		"publishers_bound":   h.monitor.PublishersBound(),
		"subscribers_bound":  h.monitor.SubscribersBound(),
		"messages_published": h.monitor.MessagesPublished(),
	})
}

// NotFound is the fallback for every unknown path.
func (h *InfoHandler) NotFound(c echo.Context) error {
	return c.String(http.StatusNotFound, "nothing to see here")
}
