package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/repository"
)

// CatalogHandler serves the title catalog. Reads are public; creating a
// title requires a staff token.
type CatalogHandler struct {
	Titles *repository.TitleRepo
	Log    *slog.Logger
}

func NewCatalogHandler(titles *repository.TitleRepo, logger *slog.Logger) *CatalogHandler {
	if titles == nil {
		panic("nil title repository passed to NewCatalogHandler")
	}
	return &CatalogHandler{Titles: titles, Log: orDefault(logger)}
}

type createTitleReq struct {
	Name     string  `json:"name" validate:"required,max=255"`
	Category *string `json:"category" validate:"omitempty,max=100"`
	Year     *int    `json:"year"`
}

// CreateTitle adds a title to the catalog. New titles start available.
func (h *CatalogHandler) CreateTitle(c echo.Context) error {
	var req createTitleReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err)
	}
	t, err := h.Titles.Create(c.Request().Context(), req.Name, req.Category, req.Year)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, t)
}

// ListTitles returns every title ordered by name, ties broken by id.
func (h *CatalogHandler) ListTitles(c echo.Context) error {
	items, err := h.Titles.List(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListAvailable returns the titles that can be rented right now.
func (h *CatalogHandler) ListAvailable(c echo.Context) error {
	items, err := h.Titles.ListAvailable(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// GetTitle returns one title.
func (h *CatalogHandler) GetTitle(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "title")
	}
	t, err := h.Titles.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, t)
}
