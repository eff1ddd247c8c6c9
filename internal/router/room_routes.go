package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/handler"
)

// RegisterRooms mounts the room directory and availability search.  cache
// wraps the directory reads only; availability must always be live.
func RegisterRooms(g *echo.Group, h *handler.RoomHandler, cache echo.MiddlewareFunc) {
	g.GET("/rooms", h.ListRooms, cache)
	g.GET("/rooms/available", h.Available)
	g.GET("/rooms/:id", h.GetRoom, cache)
}
