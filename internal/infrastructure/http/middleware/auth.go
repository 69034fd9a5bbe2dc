package middleware

import (
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"
)

// TokenClaims is the shape of the OOMOL_TOKEN the remote task API and
// its callers share: a bearer JWT identifying which session is allowed
// to submit and poll jobs against this daemon.
type TokenClaims struct {
	SessionID string `json:"session_id,omitempty"`
	jwt.RegisteredClaims
}

// BearerAuth validates the OOMOL_TOKEN presented as a Bearer header
// against secret, skipping /health and /metrics. An empty secret
// disables auth entirely, the local-dev default.
func BearerAuth(secret string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			path := c.Path()
			if secret == "" || path == "/health" || path == "/metrics" {
				return next(c)
			}

			authHeader := c.Request().Header.Get("Authorization")
			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || parts[0] != "Bearer" {
				return echo.NewHTTPError(http.StatusUnauthorized, "missing or malformed OOMOL_TOKEN")
			}

			claims := &TokenClaims{}
			token, err := jwt.ParseWithClaims(parts[1], claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, echo.NewHTTPError(http.StatusUnauthorized, "unexpected signing method")
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid OOMOL_TOKEN")
			}

			c.Set("session_id", claims.SessionID)
			return next(c)
		}
	}
}
