package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/handler"
)

// RegisterCatalog registers the title endpoints. Browsing is public and
// cached; adding a title needs a staff token.
func RegisterCatalog(e *echo.Echo, h *handler.CatalogHandler, g guards) {
	e.GET("/v1/titles", h.ListTitles, g.cached...)
	e.GET("/v1/titles/available", h.ListAvailable, g.cached...)
	e.GET("/v1/titles/:id", h.GetTitle, g.cached...)

	e.POST("/v1/titles", h.CreateTitle, g.staff...)
}
