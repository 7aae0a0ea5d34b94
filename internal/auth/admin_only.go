package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"github.com/Skotchmaster/product_catalog/pkg/logging"
	"github.com/Skotchmaster/product_catalog/pkg/tokens"
)

const (
	AccessCookie = "accessToken"

	ctxSubject = "subject"
	ctxRole    = "role"
)

func bearer(c echo.Context) string {
	h := c.Request().Header.Get(echo.HeaderAuthorization)
	if after, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(after)
	}
	if ck, err := c.Cookie(AccessCookie); err == nil {
		return ck.Value
	}
	return ""
}

// RequireAdmin lets a request through only with an HS256 access token whose
// role is admin, read from the Authorization header or the access cookie.
// An empty secret disables the guard.
func RequireAdmin(secret []byte) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		if len(secret) == 0 {
			return next
		}
		return func(c echo.Context) error {
			l := logging.FromContext(c.Request().Context()).With("middleware", "require_admin")

			raw := bearer(c)
			if raw == "" {
				l.Warn("auth_rejected", "status", http.StatusUnauthorized, "reason", "missing_token")
				return echo.NewHTTPError(http.StatusUnauthorized, "missing token")
			}

			claims, err := tokens.AccessClaimsFromToken(raw, secret)
			if err != nil {
				reason := "invalid_token"
				if errors.Is(err, jwt.ErrTokenExpired) {
					reason = "token_expired"
				}
				l.Warn("auth_rejected", "status", http.StatusUnauthorized, "reason", reason)
				return echo.NewHTTPError(http.StatusUnauthorized, "invalid token")
			}
			if claims.Role != tokens.RoleAdmin {
				l.Warn("auth_rejected", "status", http.StatusForbidden, "reason", "role", "subject", claims.Subject)
				return echo.NewHTTPError(http.StatusForbidden, "not enough rights")
			}

			c.Set(ctxSubject, claims.Subject)
			c.Set(ctxRole, claims.Role)
			return next(c)
		}
	}
}

// Subject returns the token subject set by RequireAdmin.
func Subject(c echo.Context) string {
	s, _ := c.Get(ctxSubject).(string)
	return s
}
