package middleware // reusable HTTP middleware: auth, caching, rate limiting, logging

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/room-reservation/internal/model"
)

// Context keys set by JWTAuth.
const (
	ctxUserID = "user_id"
	ctxRole   = "role"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// injects the token's subject and role claims into the request context.  The
// provided secret must match the one used by the identity provider when
// issuing tokens.  Handlers read the caller through ActorFrom.
func JWTAuth(secret string) echo.MiddlewareFunc {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	)
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims := jwt.MapClaims{}
			tok, err := parser.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
				return []byte(secret), nil
			})
			if err != nil || !tok.Valid {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token"})
			}

			uid, err := subject(claims["sub"])
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}
			roleClaim, _ := claims["role"].(string)
			role, ok := model.ParseRole(roleClaim)
			if !ok {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid claims"})
			}

			c.Set(ctxUserID, uid)
			c.Set(ctxRole, role)
			return next(c)
		}
	}
}

// subject accepts the numeric forms a JSON "sub" claim takes in practice.
func subject(v interface{}) (uint64, error) {
	var (
		id  uint64
		err error
	)
	switch s := v.(type) {
	case float64:
		if s <= 0 || s != float64(uint64(s)) {
			return 0, fmt.Errorf("sub %v is not a positive integer", s)
		}
		id = uint64(s)
	case json.Number:
		id, err = strconv.ParseUint(s.String(), 10, 64)
	case string:
		id, err = strconv.ParseUint(s, 10, 64)
	default:
		return 0, fmt.Errorf("unsupported sub type %T", v)
	}
	if err != nil {
		return 0, err
	}
	if id == 0 {
		return 0, fmt.Errorf("sub must not be zero")
	}
	return id, nil
}
