// Package httpx is the small JSON-response helper layer the API
// handlers share, generalized from the JSONError helper pattern seen
// across the retrieval pack's hand-written net/http servers into one
// that also maps apierr.Kind to a status code.
package httpx

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/AOSC-Dev/buildit/internal/apierr"
)

// WriteJSON encodes v as the response body with a 200 status.
func WriteJSON(w http.ResponseWriter, v any) {
	WriteJSONStatus(w, http.StatusOK, v)
}

// WriteJSONStatus encodes v as the response body with the given status.
func WriteJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Default().Error("httpx: encode response failed", "error", err)
	}
}

// errorBody is the JSON shape every error response carries.
type errorBody struct {
	Error string `json:"error"`
	Kind  string `json:"kind"`
}

// WriteError maps err to the right HTTP status via apierr.Kind and
// writes it as JSON. Errors that are not *apierr.Error are treated as
// Internal, since an unclassified failure should default to the most
// conservative status rather than leak internals through a 4xx guess.
func WriteError(w http.ResponseWriter, logger *slog.Logger, err error) {
	ae, ok := apierr.As(err)
	if !ok {
		logger.Error("httpx: unclassified error", "error", err)
		WriteJSONStatus(w, http.StatusInternalServerError, errorBody{Error: "internal error", Kind: string(apierr.Internal)})
		return
	}

	status := statusForKind(ae.Kind)
	if status >= http.StatusInternalServerError {
		logger.Error("httpx: request failed", "kind", ae.Kind, "message", ae.Message, "cause", ae.Cause)
	}
	WriteJSONStatus(w, status, errorBody{Error: ae.Message, Kind: string(ae.Kind)})
}

func statusForKind(k apierr.Kind) int {
	switch k {
	case apierr.Unauthorised:
		return http.StatusUnauthorized
	case apierr.NotFound:
		return http.StatusNotFound
	case apierr.Conflict:
		return http.StatusConflict
	case apierr.Validation:
		return http.StatusBadRequest
	case apierr.Upstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// Pagination parses page/items_per_page query parameters:
// items_per_page=-1 means "all" (represented as a very large page size
// to the repository layer); anything else <= 0 is a validation error.
func Pagination(r *http.Request) (page, itemsPerPage int64, err error) {
	page = queryInt(r, "page", 1)
	itemsPerPage = queryInt(r, "items_per_page", 20)
	if itemsPerPage == -1 {
		itemsPerPage = 1 << 30
		return page, itemsPerPage, nil
	}
	if itemsPerPage <= 0 {
		return 0, 0, apierr.New(apierr.Validation, "items_per_page must be positive or -1")
	}
	if page <= 0 {
		return 0, 0, apierr.New(apierr.Validation, "page must be positive")
	}
	return page, itemsPerPage, nil
}

func queryInt(r *http.Request, key string, def int64) int64 {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}
