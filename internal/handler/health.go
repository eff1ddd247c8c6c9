package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// HealthHandler answers liveness and readiness probes.  DB is nil for
// the in-memory store.
type HealthHandler struct {
	DB *sql.DB
}

// Live is a simple health-check endpoint used by load balancers to verify
// that the process is serving.  It returns "ok" with 200.
func (h *HealthHandler) Live(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready additionally pings the database and returns 503 when it is
// unreachable.
func (h *HealthHandler) Ready(c echo.Context) error {
	if h.DB != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := h.DB.PingContext(ctx); err != nil {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{"status": "unavailable", "error": "database unreachable"})
		}
	}
	return c.JSON(http.StatusOK, echo.Map{"status": "ready"})
}
