// Package middleware provides shared request processing for handlers.
package middleware

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/subashmuthub/lab-management-system/internal/session"
)

// CookieName is the session cookie issued on login. HttpOnly and
// SameSite=Lax; the browser never exposes the token to scripts.
const CookieName = "session_token"

// Context keys populated for downstream handlers.
const (
	CtxUserID = "user_id"
	CtxEmail  = "email"
	CtxRole   = "role"
)

// SessionAuth returns a middleware that resolves the session cookie
// through the store and injects the identity snapshot into the
// request context. A missing, unknown or expired token yields 401;
// the store already treats expiry as absence, so there is a single
// negative path.
func SessionAuth(store session.Store) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			cookie, err := c.Cookie(CookieName)
			if err != nil || cookie.Value == "" {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			data, err := store.Get(c.Request().Context(), cookie.Value)
			if err != nil {
				return c.JSON(http.StatusInternalServerError, echo.Map{"error": "session lookup failed"})
			}
			if data == nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "authentication required"})
			}
			c.Set(CtxUserID, data.UserID)
			c.Set(CtxEmail, data.Email)
			c.Set(CtxRole, data.Role)
			return next(c)
		}
	}
}
