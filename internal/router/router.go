package router // package router defines how HTTP routes are registered for the API

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication:
// liveness and readiness probes and, when metrics is non-nil, the
// Prometheus scrape endpoint.
func RegisterRoutes(e *echo.Echo, h *handler.HealthHandler, metrics http.Handler) {
	e.GET("/healthz", h.Live)
	e.GET("/readyz", h.Ready)
	if metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics))
	}
}

// V1 returns the /v1 group.  Every route on it requires a valid access
// token signed with jwtSecret.
func V1(e *echo.Echo, jwtSecret string) *echo.Group {
	g := e.Group("/v1")
	g.Use(middleware.JWTAuth(jwtSecret))
	return g
}
