package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/video-rental/internal/repository"
)

// statusFor maps an error kind onto the HTTP status returned to clients.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrValidation):
		return http.StatusBadRequest, "validation"
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrConflict):
		return http.StatusConflict, "conflict"
	}
	return http.StatusInternalServerError, "storage"
}

// respondError writes err as {"error": ..., "kind": ...}. Storage failures
// are logged and their detail is not sent to the client.
func respondError(c echo.Context, logger *slog.Logger, err error) error {
	status, kind := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.ErrorContext(c.Request().Context(), "request failed",
			"method", c.Request().Method, "path", c.Path(), "err", err)
		return c.JSON(status, echo.Map{"error": "internal error", "kind": kind})
	}
	msg := err.Error()
	var re *repository.Error
	if errors.As(err, &re) && re.Detail != "" {
		msg = re.Detail
	}
	return c.JSON(status, echo.Map{"error": msg, "kind": kind})
}

// bindAndValidate decodes the JSON body into req and runs the struct tags
// through the echo validator. The returned error is safe to show clients.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return errors.New("invalid body")
	}
	return c.Validate(req)
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error(), "kind": "validation"})
}

// parseID reads a positive numeric path parameter.
func parseID(c echo.Context, name string) (uint64, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

func invalidID(c echo.Context, what string) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid " + what + " id", "kind": "validation"})
}

func orDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
