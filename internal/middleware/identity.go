package middleware

// identity.go exposes the caller identity JWTAuth stored in the Echo
// context, both as a model.Actor for handlers and as string keys for the
// cache and rate limiter.

import (
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
)

// ActorFrom returns the authenticated caller.  ok is false when JWTAuth did
// not run or rejected the request.
func ActorFrom(c echo.Context) (model.Actor, bool) {
	uid, ok := c.Get(ctxUserID).(uint64)
	if !ok || uid == 0 {
		return model.Actor{}, false
	}
	role, ok := c.Get(ctxRole).(model.Role)
	if !ok {
		return model.Actor{}, false
	}
	return model.Actor{UserID: uid, Role: role}, true
}

// userID returns the caller's id as a string, or "guest".
func userID(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return strconv.FormatUint(a.UserID, 10)
	}
	return "guest"
}

// roleName returns the caller's role, or "guest".
func roleName(c echo.Context) string {
	if a, ok := ActorFrom(c); ok {
		return string(a.Role)
	}
	return "guest"
}
