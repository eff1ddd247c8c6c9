package handler

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// RoomHandler serves the room directory and availability search.
type RoomHandler struct {
	Scheduler *scheduler.Scheduler
	Location  *time.Location // zone for offset-less query times
	Log       *slog.Logger
}

// NewRoomHandler constructs a RoomHandler and panics if the scheduler is nil.
func NewRoomHandler(s *scheduler.Scheduler, loc *time.Location, log *slog.Logger) *RoomHandler {
	if s == nil {
		panic("nil scheduler passed to NewRoomHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &RoomHandler{Scheduler: s, Location: loc, Log: log}
}

// roomFilter reads sector, minCapacity, name and includeUnavailable.
func roomFilter(c echo.Context, fields map[string]string) model.RoomFilter {
	f := model.RoomFilter{
		Sector:       strings.TrimSpace(c.QueryParam("sector")),
		NameContains: strings.TrimSpace(c.QueryParam("name")),
	}
	if raw := c.QueryParam("minCapacity"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			fields["minCapacity"] = "must be a non-negative integer"
		}
		f.MinCapacity = n
	}
	if raw := c.QueryParam("includeUnavailable"); raw != "" {
		b, err := strconv.ParseBool(raw)
		if err != nil {
			fields["includeUnavailable"] = "must be true or false"
		}
		f.IncludeUnavailable = b
	}
	return f
}

// ListRooms handles GET /v1/rooms.  includeUnavailable only takes effect
// for admins.
func (h *RoomHandler) ListRooms(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	fields := map[string]string{}
	f := roomFilter(c, fields)
	if len(fields) > 0 {
		return badRequest(c, fields)
	}
	rooms, err := h.Scheduler.ListRooms(c.Request().Context(), f, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"rooms": rooms})
}

// GetRoom handles GET /v1/rooms/:id.
func (h *RoomHandler) GetRoom(c echo.Context) error {
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, map[string]string{"id": "must be a positive integer"})
	}
	room, err := h.Scheduler.GetRoom(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, room)
}

// Available handles GET /v1/rooms/available.  The window is given as
// start plus either end or duration.
func (h *RoomHandler) Available(c echo.Context) error {
	fields := map[string]string{}
	f := roomFilter(c, fields)
	f.IncludeUnavailable = false

	start, err := parseTime(c.QueryParam("start"), h.Location)
	if err != nil {
		fields["start"] = err.Error()
	}
	var end time.Time
	switch rawEnd, rawDur := c.QueryParam("end"), c.QueryParam("duration"); {
	case rawEnd != "" && rawDur != "":
		fields["end"] = "give either end or duration, not both"
	case rawEnd != "":
		if end, err = parseTime(rawEnd, h.Location); err != nil {
			fields["end"] = err.Error()
		}
	case rawDur != "":
		d, err := parseDuration(rawDur)
		if err != nil {
			fields["duration"] = err.Error()
		}
		end = start.Add(d)
	default:
		fields["end"] = "end or duration is required"
	}
	if len(fields) > 0 {
		return badRequest(c, fields)
	}

	rooms, err := h.Scheduler.FindAvailable(c.Request().Context(), start, end, f)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"start": start,
		"end":   end,
		"rooms": rooms,
	})
}
