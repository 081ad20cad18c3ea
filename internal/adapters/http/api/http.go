// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/okian/bookrec/pkg/logger"
)

// maxBodyBytes bounds request bodies.
const maxBodyBytes = 64 << 10

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	SearchDependencies
	RecommendDependencies
	HistoryDependencies
	StatsProvider
}

// Server wires HTTP routes for the business API.
type Server struct {
	auth             *Authenticator
	healthHandler    *HealthHandler
	statsHandler     *StatsHandler
	searchHandler    *SearchHandler
	recommendHandler *RecommendHandler
	historyHandler   *HistoryHandler
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, auth *Authenticator) *Server {
	return &Server{
		auth:             auth,
		healthHandler:    NewHealthHandler(),
		statsHandler:     NewStatsHandler(deps),
		searchHandler:    NewSearchHandler(deps),
		recommendHandler: NewRecommendHandler(deps),
		historyHandler:   NewHistoryHandler(deps),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/search", s.public(s.searchHandler.HandleSearch, "search"))
	mux.HandleFunc("/recommend", s.private(s.recommendHandler.HandleRecommend, "recommend"))
	mux.HandleFunc("/recommend/similar", s.private(s.recommendHandler.HandleSimilar, "recommend_similar"))
	mux.HandleFunc("/user/recommendations", s.private(s.recommendHandler.HandleList, "user_recommendations"))
	mux.HandleFunc("/history", s.private(s.historyHandler.HandleHistory, "history"))
}

func (s *Server) public(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return RequestIDMiddleware(MetricsMiddleware(h, endpoint))
}

func (s *Server) private(h http.HandlerFunc, endpoint string) http.HandlerFunc {
	return RequestIDMiddleware(MetricsMiddleware(s.auth.Middleware(h), endpoint))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	if message == "" {
		message = http.StatusText(status)
	}
	writeJSON(w, status, errorResponse{Code: code, Message: message})
}

// writeFailure renders err with the status and code its kind maps to.
func writeFailure(w http.ResponseWriter, err error) {
	f := classify(err)
	writeError(w, f.status, f.code, f.message)
}

// respondError logs server side failures with op and renders err.
func respondError(ctx context.Context, w http.ResponseWriter, op string, err error) {
	f := classify(err)
	if f.status >= http.StatusInternalServerError {
		logger.Get().Error(ctx, "request failed", logger.String("op", op), logger.Error(err))
	}
	writeError(w, f.status, f.code, f.message)
}

// requireUser returns the authenticated caller or writes 401.
func requireUser(ctx context.Context, w http.ResponseWriter, op string) (string, bool) {
	id, ok := UserID(ctx)
	if !ok {
		writeFailure(w, NewKind(op, ErrUnauthorized))
	}
	return id, ok
}
