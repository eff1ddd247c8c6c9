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

// ReservationHandler exposes booking, review and history endpoints.  All
// methods assume JWTAuth already ran; the scheduler enforces who may do
// what, so handlers only decode input and pass the caller along.
type ReservationHandler struct {
	Scheduler *scheduler.Scheduler
	Location  *time.Location
	Log       *slog.Logger
}

// NewReservationHandler constructs a ReservationHandler and panics if the
// scheduler is nil.
func NewReservationHandler(s *scheduler.Scheduler, loc *time.Location, log *slog.Logger) *ReservationHandler {
	if s == nil {
		panic("nil scheduler passed to NewReservationHandler")
	}
	if log == nil {
		log = slog.Default()
	}
	return &ReservationHandler{Scheduler: s, Location: loc, Log: log}
}

type windowBody struct {
	RoomID uint64 `json:"room_id"`
	Start  string `json:"start"`
	End    string `json:"end"`
}

type bookingBody struct {
	windowBody
	Purpose string `json:"purpose"`
}

type editBody struct {
	RoomID  *uint64 `json:"room_id"`
	Start   *string `json:"start"`
	End     *string `json:"end"`
	Purpose *string `json:"purpose"`
}

type statusBody struct {
	Status string `json:"status"`
}

func (h *ReservationHandler) window(b windowBody, fields map[string]string) (time.Time, time.Time) {
	if b.RoomID == 0 {
		fields["room_id"] = "is required"
	}
	start, err := parseTime(b.Start, h.Location)
	if err != nil {
		fields["start"] = err.Error()
	}
	end, err := parseTime(b.End, h.Location)
	if err != nil {
		fields["end"] = err.Error()
	}
	return start, end
}

// Validate handles POST /v1/reservations/validate.  It reports whether
// the window could be booked right now without creating anything.
func (h *ReservationHandler) Validate(c echo.Context) error {
	if _, ok := actor(c); !ok {
		return nil
	}
	var body windowBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, map[string]string{"body": "invalid request body"})
	}
	fields := map[string]string{}
	start, end := h.window(body, fields)
	if len(fields) > 0 {
		return badRequest(c, fields)
	}
	if err := h.Scheduler.ValidateRequest(c.Request().Context(), body.RoomID, start, end); err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"ok": true})
}

// Create handles POST /v1/reservations.  The reservation is created as
// Pending for the caller and returned with 201.
func (h *ReservationHandler) Create(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	var body bookingBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, map[string]string{"body": "invalid request body"})
	}
	fields := map[string]string{}
	start, end := h.window(body.windowBody, fields)
	if len(fields) > 0 {
		return badRequest(c, fields)
	}
	res, err := h.Scheduler.CreateReservation(c.Request().Context(), scheduler.BookingRequest{
		RoomID:  body.RoomID,
		UserID:  a.UserID,
		Start:   start,
		End:     end,
		Purpose: body.Purpose,
	})
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, res)
}

// List handles GET /v1/reservations?status=&room_id=&user_id=&page=&pageSize=.
// Non-admin callers only see their own reservations.
func (h *ReservationHandler) List(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	fields := map[string]string{}
	var f model.ReservationFilter
	if raw := c.QueryParam("status"); raw != "" {
		st, ok := model.ParseStatus(raw)
		if !ok {
			fields["status"] = "must be Pending, Approved, Rejected or Cancelled"
		}
		f.Status = st
	}
	f.RoomID = queryUint(c, "room_id", fields)
	f.UserID = queryUint(c, "user_id", fields)
	f.Page = queryInt(c, "page", fields)
	f.PageSize = queryInt(c, "pageSize", fields)
	if len(fields) > 0 {
		return badRequest(c, fields)
	}
	f = f.Normalize()

	items, total, err := h.Scheduler.ListReservations(c.Request().Context(), f, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"items":    items,
		"total":    total,
		"page":     f.Page,
		"pageSize": f.PageSize,
	})
}

// Get handles GET /v1/reservations/:id for the owner or an admin.
func (h *ReservationHandler) Get(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, map[string]string{"id": "must be a positive integer"})
	}
	res, err := h.Scheduler.GetReservation(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// Update handles PUT /v1/reservations/:id.  room_id must always be sent
// as a resolved id; start, end and purpose are optional.
func (h *ReservationHandler) Update(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, map[string]string{"id": "must be a positive integer"})
	}
	var body editBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, map[string]string{"body": "invalid request body"})
	}
	fields := map[string]string{}
	patch := model.ReservationPatch{RoomID: body.RoomID, Purpose: body.Purpose}
	if body.RoomID == nil || *body.RoomID == 0 {
		fields["room_id"] = "is required"
	}
	if body.Start != nil {
		t, err := parseTime(*body.Start, h.Location)
		if err != nil {
			fields["start"] = err.Error()
		}
		patch.Start = &t
	}
	if body.End != nil {
		t, err := parseTime(*body.End, h.Location)
		if err != nil {
			fields["end"] = err.Error()
		}
		patch.End = &t
	}
	if len(fields) > 0 {
		return badRequest(c, fields)
	}
	res, err := h.Scheduler.UpdateReservation(c.Request().Context(), id, patch, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

// SetStatus handles PATCH /v1/reservations/:id/status.  Approving returns
// the approved reservation together with every request it auto-rejected.
func (h *ReservationHandler) SetStatus(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, map[string]string{"id": "must be a positive integer"})
	}
	var body statusBody
	if err := c.Bind(&body); err != nil {
		return badRequest(c, map[string]string{"body": "invalid request body"})
	}
	to, ok := model.ParseStatus(body.Status)
	if !ok {
		return badRequest(c, map[string]string{"status": "must be Approved, Rejected or Cancelled"})
	}

	ctx := c.Request().Context()
	switch to {
	case model.StatusApproved:
		out, err := h.Scheduler.Approve(ctx, id, a)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, out)
	case model.StatusRejected:
		res, err := h.Scheduler.Reject(ctx, id, a)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, res)
	case model.StatusCancelled:
		res, err := h.Scheduler.Cancel(ctx, id, a)
		if err != nil {
			return writeError(c, h.Log, err)
		}
		return c.JSON(http.StatusOK, res)
	}
	return writeError(c, h.Log, &scheduler.Error{
		Kind: scheduler.KindInvalidTransition,
		Op:   "set_status",
		Msg:  "reservations never return to " + string(to),
	})
}

// Cancel handles DELETE /v1/reservations/:id.  The reservation is kept
// with status Cancelled.
func (h *ReservationHandler) Cancel(c echo.Context) error {
	a, ok := actor(c)
	if !ok {
		return nil
	}
	id, ok := pathID(c)
	if !ok {
		return badRequest(c, map[string]string{"id": "must be a positive integer"})
	}
	res, err := h.Scheduler.Cancel(c.Request().Context(), id, a)
	if err != nil {
		return writeError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, res)
}

func queryUint(c echo.Context, name string, fields map[string]string) uint64 {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil || n == 0 {
		fields[name] = "must be a positive integer"
	}
	return n
}

func queryInt(c echo.Context, name string, fields map[string]string) int {
	raw := strings.TrimSpace(c.QueryParam(name))
	if raw == "" {
		return 0
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		fields[name] = "must be a positive integer"
	}
	return n
}
