package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/handler"
)

// RegisterCustomers registers the customer endpoints. Staff create and edit
// customers; only a manager may delete one.
func RegisterCustomers(e *echo.Echo, h *handler.CustomerHandler, g guards) {
	e.GET("/v1/customers", h.ListCustomers, g.cached...)
	e.GET("/v1/customers/:id", h.GetCustomer, g.cached...)
	e.GET("/v1/customers/:id/rentals", h.History, g.cached...)

	e.POST("/v1/customers", h.CreateCustomer, g.staff...)
	e.PUT("/v1/customers/:id", h.UpdateCustomer, g.staff...)
	e.DELETE("/v1/customers/:id", h.DeleteCustomer, g.manager...)
}
