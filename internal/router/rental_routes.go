package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/handler"
)

// RegisterRentals registers the ledger endpoints. Opening and returning a
// rental are staff writes; the consistency check is for managers.
func RegisterRentals(e *echo.Echo, h *handler.RentalHandler, g guards) {
	e.GET("/v1/rentals", h.ListRentals, g.cached...)
	e.GET("/v1/rentals/active", h.ListActive, g.cached...)
	e.GET("/v1/rentals/:id", h.GetRental, g.cached...)

	e.POST("/v1/rentals", h.OpenRental, g.staff...)
	e.POST("/v1/rentals/:id/return", h.CloseRental, g.staff...)

	// The check reads live state, so it bypasses the cache.
	e.GET("/v1/ledger/check", h.CheckLedger, g.managerRead...)
}
