package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"
	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/model"
)

// RegisterReservations mounts booking, review and history endpoints.
// limiter guards the write that creates reservations.  Edits and status
// changes are admin only; cancel and reads are checked per reservation by
// the scheduler.
func RegisterReservations(g *echo.Group, h *handler.ReservationHandler, limiter echo.MiddlewareFunc) {
	adminOnly := middleware.RequireRole(model.RoleAdmin)

	g.POST("/reservations/validate", h.Validate)
	g.POST("/reservations", h.Create, limiter)
	g.GET("/reservations", h.List)
	g.GET("/reservations/:id", h.Get)
	g.PUT("/reservations/:id", h.Update, adminOnly)
	g.PATCH("/reservations/:id/status", h.SetStatus, adminOnly)
	g.DELETE("/reservations/:id", h.Cancel)
}
