package handler // handler translates HTTP requests into scheduler calls

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/middleware"
	"github.com/iliyamo/room-reservation/internal/model"
	"github.com/iliyamo/room-reservation/internal/scheduler"
)

// localLayouts are accepted for timestamps without a UTC offset.  They are
// read in the configured application timezone.
var localLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// parseTime reads an RFC3339 timestamp, or an offset-less local timestamp
// in loc, and returns it in UTC.
func parseTime(raw string, loc *time.Location) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, errors.New("is required")
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t.UTC(), nil
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range localLayouts {
		if t, err := time.ParseInLocation(layout, raw, loc); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("must be RFC3339 or YYYY-MM-DDTHH:MM[:SS], got %q", raw)
}

// maxSearchDuration bounds the availability search window.
const maxSearchDuration = 7 * 24 * time.Hour

// parseDuration accepts a Go duration ("90m", "1h30m") or whole minutes,
// up to maxSearchDuration.
func parseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n <= 0 {
			return 0, errors.New("must be positive")
		}
		if n > int64(maxSearchDuration/time.Minute) {
			return 0, fmt.Errorf("must be at most %s", maxSearchDuration)
		}
		return time.Duration(n) * time.Minute, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("must be a duration like 90m or a number of minutes, got %q", raw)
	}
	if d <= 0 {
		return 0, errors.New("must be positive")
	}
	if d > maxSearchDuration {
		return 0, fmt.Errorf("must be at most %s", maxSearchDuration)
	}
	return d, nil
}

// pathID parses the :id route parameter.
func pathID(c echo.Context) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	return id, err == nil && id > 0
}

// actor returns the authenticated caller or writes 401.
func actor(c echo.Context) (model.Actor, bool) {
	a, ok := middleware.ActorFrom(c)
	if !ok {
		_ = c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "authentication required"})
	}
	return a, ok
}

// badRequest writes a 400 validation body for problems found while
// decoding the request.
func badRequest(c echo.Context, fields map[string]string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{
		"error":   scheduler.KindValidation.String(),
		"message": "invalid request",
		"fields":  fields,
	})
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k scheduler.Kind) int {
	switch k {
	case scheduler.KindValidation:
		return http.StatusBadRequest
	case scheduler.KindForbidden:
		return http.StatusForbidden
	case scheduler.KindNotFound:
		return http.StatusNotFound
	case scheduler.KindConflict, scheduler.KindInvalidState, scheduler.KindInvalidTransition:
		return http.StatusConflict
	case scheduler.KindBusy:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders a scheduler error.  Unclassified errors are logged
// and reported without detail.
func writeError(c echo.Context, log *slog.Logger, err error) error {
	kind := scheduler.KindOf(err)
	status := statusFor(kind)
	if status == http.StatusInternalServerError {
		log.Error("request failed", "method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(status, echo.Map{"error": "internal", "message": "internal error"})
	}
	body := echo.Map{"error": kind.String(), "message": err.Error()}
	if fields := scheduler.FieldsOf(err); len(fields) > 0 {
		body["fields"] = fields
	}
	if ids := scheduler.ConflictsOf(err); len(ids) > 0 {
		body["conflicts"] = ids
	}
	if kind == scheduler.KindBusy {
		c.Response().Header().Set("Retry-After", "1")
		log.Warn("store busy", "path", c.Path(), "err", err)
	}
	return c.JSON(status, body)
}
