package middleware

import (
	"strconv"

	"github.com/labstack/echo/v4"
)

// userID returns the authenticated staff id as a string for use in Redis
// keys, or "anon" when the request carries no identity.
func userID(c echo.Context) string {
	if id, ok := c.Get(ContextUserID).(uint64); ok && id > 0 {
		return strconv.FormatUint(id, 10)
	}
	return "anon"
}
