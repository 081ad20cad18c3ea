package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/okian/bookrec/internal/domain/types"
)

// SearchDependencies defines the interface for catalog search.
type SearchDependencies interface {
	Search(ctx context.Context, q string, startIndex int) ([]types.SearchResult, error)
}

// SearchHandler handles search requests.
type SearchHandler struct {
	deps SearchDependencies
}

// NewSearchHandler creates a new search handler.
func NewSearchHandler(deps SearchDependencies) *SearchHandler {
	return &SearchHandler{deps: deps}
}

// HandleSearch handles GET /search?q=&startIndex= requests.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	const op = "api.search"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "q is required")
		return
	}
	startIndex := 0
	if raw := r.URL.Query().Get("startIndex"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "bad_request", "startIndex must be a non-negative integer")
			return
		}
		startIndex = n
	}

	results, err := h.deps.Search(r.Context(), q, startIndex)
	if err != nil {
		respondError(r.Context(), w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, results)
}
