package handler // handler holds the HTTP handlers of the rental API

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/database"
)

// HealthHandler reports liveness together with a store ping, so a load
// balancer stops routing to an instance that lost its database.
type HealthHandler struct {
	Store *database.Store
}

// Health returns 200 "ok" when the store answers and 503 otherwise.
func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()
	if err := h.Store.DB.PingContext(ctx); err != nil {
		return c.String(http.StatusServiceUnavailable, "store unavailable")
	}
	return c.String(http.StatusOK, "ok")
}
