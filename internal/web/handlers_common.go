package web

// Helpers shared by the handlers.

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/dummycsv/internal/core"
)

// maxBodySize caps JSON request bodies (1MB).
const maxBodySize = 1 << 20

// parseIntParam parses an integer query parameter with a default value.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	val := r.URL.Query().Get(name)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil || i < 1 {
		return defaultVal
	}
	return i
}

// parsePage reads limit and offset query parameters.
func parsePage(r *http.Request) core.Page {
	return core.Page{
		Limit:  parseIntParam(r, "limit", core.DefaultPageSize),
		Offset: parseIntParam(r, "offset", 0),
	}.Normalize()
}

// idParam parses a numeric URL parameter. A malformed id cannot name any
// row, so it is reported as notFound.
func idParam(r *http.Request, name string, notFound error) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, notFound
	}
	return id, nil
}
