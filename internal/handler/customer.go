package handler

import (
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/repository"
)

// CustomerHandler manages renters and exposes their rental history.
type CustomerHandler struct {
	Customers *repository.CustomerRepo
	Rentals   *repository.RentalQuery
	Log       *slog.Logger
}

func NewCustomerHandler(customers *repository.CustomerRepo, rentals *repository.RentalQuery, logger *slog.Logger) *CustomerHandler {
	if customers == nil || rentals == nil {
		panic("nil repository passed to NewCustomerHandler")
	}
	return &CustomerHandler{Customers: customers, Rentals: rentals, Log: orDefault(logger)}
}

type customerReq struct {
	Name    string `json:"name" validate:"required,max=255"`
	Contact string `json:"contact" validate:"required,max=255"`
}

// CreateCustomer registers a customer. The contact must be an e-mail
// address not used by another customer.
func (h *CustomerHandler) CreateCustomer(c echo.Context) error {
	var req customerReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err)
	}
	cust, err := h.Customers.Create(c.Request().Context(), req.Name, req.Contact)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusCreated, cust)
}

func (h *CustomerHandler) ListCustomers(c echo.Context) error {
	items, err := h.Customers.List(c.Request().Context())
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}

func (h *CustomerHandler) GetCustomer(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "customer")
	}
	cust, err := h.Customers.GetByID(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// UpdateCustomer replaces name and contact.
func (h *CustomerHandler) UpdateCustomer(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "customer")
	}
	var req customerReq
	if err := bindAndValidate(c, &req); err != nil {
		return badRequest(c, err)
	}
	cust, err := h.Customers.Update(c.Request().Context(), id, req.Name, req.Contact)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, cust)
}

// DeleteCustomer removes a customer and their closed rentals. A customer
// who still holds a title cannot be deleted.
func (h *CustomerHandler) DeleteCustomer(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "customer")
	}
	if err := h.Customers.Delete(c.Request().Context(), id); err != nil {
		return respondError(c, h.Log, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// History lists a customer's rentals, newest first.
func (h *CustomerHandler) History(c echo.Context) error {
	id, ok := parseID(c, "id")
	if !ok {
		return invalidID(c, "customer")
	}
	items, err := h.Rentals.CustomerHistory(c.Request().Context(), id)
	if err != nil {
		return respondError(c, h.Log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": items})
}
