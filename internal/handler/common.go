package handler

import (
	"errors"

	"github.com/labstack/echo/v4"

	"github.com/subashmuthub/lab-management-system/internal/middleware"
)

var errUnauthorized = errors.New("unauthorized")

// getUserID extracts the authenticated user's ID stored by the
// session middleware.
func getUserID(c echo.Context) (uint64, error) {
	id, ok := c.Get(middleware.CtxUserID).(uint64)
	if !ok || id == 0 {
		return 0, errUnauthorized
	}
	return id, nil
}
