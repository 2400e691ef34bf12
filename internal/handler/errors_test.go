package handler

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/video-rental/internal/repository"
)

func Test_RespondError_MapsKinds(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", repository.ValidationError("addTitle", "name is required"), http.StatusBadRequest, `"name is required"`},
		{"not found", repository.ErrTitleNotFound, http.StatusNotFound, `"title not found"`},
		{"conflict", repository.ConflictError("openRental", "title %d already rented", 3), http.StatusConflict, `"title 3 already rented"`},
		{"storage", repository.StorageError("listTitles", errors.New("disk I/O error")), http.StatusInternalServerError, `"internal error"`},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, `"internal error"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

			require.NoError(t, respondError(c, logger, tt.err))
			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.body)
			assert.NotContains(t, rec.Body.String(), "disk I/O")
		})
	}
}

func Test_ParseID(t *testing.T) {
	e := echo.New()
	for raw, want := range map[string]bool{"1": true, "42": true, "0": false, "-1": false, "x": false, "": false} {
		c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())
		c.SetParamNames("id")
		c.SetParamValues(raw)
		_, ok := parseID(c, "id")
		assert.Equal(t, want, ok, "id=%q", raw)
	}
}
