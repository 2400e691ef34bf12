package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/repository"
	"github.com/iliyamo/video-rental/internal/service"
)

// RentalHandler opens and closes rentals through the ledger and serves the
// joined rental views.
type RentalHandler struct {
	Ledger  *service.Ledger
	Rentals *repository.RentalRepo
	Query   *repository.RentalQuery
	Log     *slog.Logger
}

func NewRentalHandler(ledger *service.Ledger, rentals *repository.RentalRepo, query *repository.RentalQuery, logger *slog.Logger) *RentalHandler {
	if ledger == nil || rentals == nil || query == nil {
		panic("nil dependency passed to NewRentalHandler")
	}
	return &RentalHandler{Ledger: ledger, Rentals: rentals, Query: query, Log: orDefault(logger)}
}

type openRentalReq struct {
	CustomerID uint64 `json:"customer_id" validate:"required,gt=0"`
	TitleID    uint64 `json:"title_id" validate:"required,gt=0"`
}

// OpenRental rents a title to a customer. 409 means the title is out.
func (h *RentalHandler) OpenRental(c echo.Context) error {
	var req openRentalReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err)
	}
	r, err := h.Ledger.OpenRental(c.Request().Context(), req.CustomerID, req.TitleID)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// CloseRental returns the title of an open rental. Returning the same rental
// twice yields 404.
func (h *RentalHandler) CloseRental(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "rental")
	}
	ret, err := h.Ledger.CloseRental(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, ret)
}

func (h *RentalHandler) GetRental(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "rental")
	}
	r, err := h.Rentals.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, r)
}

// ListRentals returns every rental, newest first.
func (h *RentalHandler) ListRentals(c echo.Context) error {
	items, err := h.Query.All(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// ListActive returns the rentals that are still open.
func (h *RentalHandler) ListActive(c echo.Context) error {
	items, err := h.Query.Active(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

// CheckLedger reports titles whose availability disagrees with their open
// rentals. An empty list means the ledger is consistent.
func (h *RentalHandler) CheckLedger(c echo.Context) error {
	ids, err := h.Ledger.CheckConsistency(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"consistent": len(ids) == 0, "title_ids": ids})
}
