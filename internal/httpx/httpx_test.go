package httpx

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AOSC-Dev/buildit/internal/apierr"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestPagination(t *testing.T) {
	cases := []struct {
		name         string
		query        string
		wantPage     int64
		wantPerPage  int64
		wantErr      bool
	}{
		{"defaults", "", 1, 20, false},
		{"explicit page and size", "page=3&items_per_page=50", 3, 50, false},
		{"items_per_page=-1 means all", "items_per_page=-1", 1, 1 << 30, false},
		{"zero items_per_page is invalid", "items_per_page=0", 0, 0, true},
		{"negative page is invalid", "page=-2", 0, 0, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodGet, "/?"+c.query, nil)
			page, perPage, err := Pagination(r)
			if c.wantErr {
				assert.Error(t, err)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, c.wantPage, page)
			assert.Equal(t, c.wantPerPage, perPage)
		})
	}
}

func TestWriteError_MapsKindToStatus(t *testing.T) {
	cases := []struct {
		kind       apierr.Kind
		wantStatus int
	}{
		{apierr.Unauthorised, http.StatusUnauthorized},
		{apierr.NotFound, http.StatusNotFound},
		{apierr.Conflict, http.StatusConflict},
		{apierr.Validation, http.StatusBadRequest},
		{apierr.Upstream, http.StatusBadGateway},
		{apierr.Internal, http.StatusInternalServerError},
	}

	for _, c := range cases {
		t.Run(string(c.kind), func(t *testing.T) {
			rec := httptest.NewRecorder()
			WriteError(rec, discardLogger(), apierr.New(c.kind, "boom"))
			assert.Equal(t, c.wantStatus, rec.Code)
		})
	}
}

func TestWriteError_UnclassifiedDefaultsToInternal(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, discardLogger(), errors.New("boom"))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}
