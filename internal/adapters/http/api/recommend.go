package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/okian/bookrec/internal/domain/types"
)

// RecommendDependencies defines the interface for recommendation operations.
type RecommendDependencies interface {
	Recommend(ctx context.Context, userID string) ([]types.Recommendation, error)
	RecommendSimilar(ctx context.Context, userID, q string) ([]types.Recommendation, error)
	ListRecommendations(ctx context.Context, userID string) ([]types.StoredRecommendation, error)
}

// RecommendHandler handles recommendation requests.
type RecommendHandler struct {
	deps RecommendDependencies
}

// NewRecommendHandler creates a new recommendation handler.
func NewRecommendHandler(deps RecommendDependencies) *RecommendHandler {
	return &RecommendHandler{deps: deps}
}

// HandleRecommend handles GET /recommend requests.
func (h *RecommendHandler) HandleRecommend(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := requireUser(r.Context(), w, op)
	if !ok {
		return
	}
	recs, err := h.deps.Recommend(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleSimilar handles GET /recommend/similar?q= requests.
func (h *RecommendHandler) HandleSimilar(w http.ResponseWriter, r *http.Request) {
	const op = "api.recommend_similar"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := requireUser(r.Context(), w, op)
	if !ok {
		return
	}
	q := strings.TrimSpace(r.URL.Query().Get("q"))
	if q == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "q is required")
		return
	}
	recs, err := h.deps.RecommendSimilar(r.Context(), userID, q)
	if err != nil {
		respondError(r.Context(), w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}

// HandleList handles GET /user/recommendations requests.
func (h *RecommendHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_recommendations"
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	userID, ok := requireUser(r.Context(), w, op)
	if !ok {
		return
	}
	recs, err := h.deps.ListRecommendations(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, recs)
}
