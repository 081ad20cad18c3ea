package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/okian/bookrec/internal/domain/types"
)

// HistoryDependencies defines the interface for reading history operations.
type HistoryDependencies interface {
	RecordHistory(ctx context.Context, userID string, req types.HistoryRequest) (types.HistoryEvent, error)
	ListHistory(ctx context.Context, userID string) ([]types.HistoryEvent, error)
}

// HistoryHandler handles history requests.
type HistoryHandler struct {
	deps HistoryDependencies
}

// NewHistoryHandler creates a new history handler.
func NewHistoryHandler(deps HistoryDependencies) *HistoryHandler {
	return &HistoryHandler{deps: deps}
}

// HandleHistory dispatches POST and GET /history.
func (h *HistoryHandler) HandleHistory(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.handlePost(w, r)
	case http.MethodGet:
		h.handleList(w, r)
	default:
		http.NotFound(w, r)
	}
}

func (h *HistoryHandler) handlePost(w http.ResponseWriter, r *http.Request) {
	const op = "api.post_history"
	userID, ok := requireUser(r.Context(), w, op)
	if !ok {
		return
	}
	var req types.HistoryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "request body must be a JSON object")
		return
	}
	if err := validateStruct(&req); err != nil {
		respondError(r.Context(), w, op, WrapKind(op, ErrBadRequest, err))
		return
	}
	ev, err := h.deps.RecordHistory(r.Context(), userID, req)
	if err != nil {
		respondError(r.Context(), w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

func (h *HistoryHandler) handleList(w http.ResponseWriter, r *http.Request) {
	const op = "api.list_history"
	userID, ok := requireUser(r.Context(), w, op)
	if !ok {
		return
	}
	evs, err := h.deps.ListHistory(r.Context(), userID)
	if err != nil {
		respondError(r.Context(), w, op, Wrap(op, err))
		return
	}
	writeJSON(w, http.StatusOK, evs)
}
