// Package types contains the JSON shapes exchanged over the HTTP API.
package types

import (
	"time"

	"github.com/okian/bookrec/internal/domain/model"
)

// SearchResult is one catalog hit returned by GET /search.
type SearchResult struct {
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description"`
	Thumbnail   string `json:"thumbnail"`
	PreviewLink string `json:"preview_link"`
}

// Recommendation is one ranked item returned by the recommend routes.
type Recommendation struct {
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Description string   `json:"description"`
	Categories  []string `json:"categories"`
	Score       float64  `json:"score"`
	Thumbnail   string   `json:"thumbnail"`
	PreviewLink string   `json:"preview_link"`
}

// StoredRecommendation is a persisted recommendation record.
type StoredRecommendation struct {
	ID          int64     `json:"id"`
	Title       string    `json:"book_title"`
	Author      string    `json:"author"`
	Description string    `json:"description"`
	Categories  []string  `json:"categories"`
	Score       float64   `json:"score"`
	Thumbnail   string    `json:"thumbnail"`
	PreviewLink string    `json:"preview_link"`
	ExternalID  string    `json:"external_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// HistoryRequest is the body of POST /history.
type HistoryRequest struct {
	BookTitle   string `json:"book_title" validate:"required,max=255"`
	Description string `json:"description,omitempty"`
}

// HistoryEvent is one reading-history entry.
type HistoryEvent struct {
	ID          int64     `json:"id"`
	BookTitle   string    `json:"book_title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// Stats summarizes the running service.
type Stats struct {
	UptimeSeconds   float64 `json:"uptime_seconds"`
	EmbedderBackend string  `json:"embedder_backend"`
	Dimensions      int     `json:"dimensions"`
	Similarity      string  `json:"similarity"`
	SignalSource    string  `json:"signal_source"`
	Served          int64   `json:"recommendations_served"`
	HistoryEvents   int64   `json:"history_events"`
}

// NewSearchResults converts catalog items for GET /search.
func NewSearchResults(items []model.CandidateItem) []SearchResult {
	out := make([]SearchResult, 0, len(items))
	for _, it := range items {
		out = append(out, SearchResult{
			Title:       it.Title,
			Author:      it.Author,
			Description: it.Description,
			Thumbnail:   it.Thumbnail,
			PreviewLink: it.PreviewLink,
		})
	}
	return out
}

// NewRecommendations converts a ranked list, preserving order.
func NewRecommendations(ranked []model.RankedRecommendation) []Recommendation {
	out := make([]Recommendation, 0, len(ranked))
	for _, r := range ranked {
		cats := r.Categories
		if cats == nil {
			cats = []string{}
		}
		out = append(out, Recommendation{
			Title:       r.Title,
			Author:      r.Author,
			Description: r.Description,
			Categories:  cats,
			Score:       r.Score,
			Thumbnail:   r.Thumbnail,
			PreviewLink: r.PreviewLink,
		})
	}
	return out
}

// NewStoredRecommendations converts persisted records.
func NewStoredRecommendations(recs []model.RecommendationRecord) []StoredRecommendation {
	out := make([]StoredRecommendation, 0, len(recs))
	for _, r := range recs {
		cats := r.Categories
		if cats == nil {
			cats = []string{}
		}
		out = append(out, StoredRecommendation{
			ID:          r.ID,
			Title:       r.Title,
			Author:      r.Author,
			Description: r.Description,
			Categories:  cats,
			Score:       r.Score,
			Thumbnail:   r.Thumbnail,
			PreviewLink: r.PreviewLink,
			ExternalID:  r.ExternalID,
			CreatedAt:   r.CreatedAt,
			UpdatedAt:   r.UpdatedAt,
		})
	}
	return out
}

// NewHistoryEvent converts one signal event.
func NewHistoryEvent(ev model.SignalEvent) HistoryEvent {
	return HistoryEvent{
		ID:          ev.ID,
		BookTitle:   ev.Subject,
		Description: ev.Description,
		CreatedAt:   ev.CreatedAt,
	}
}

// NewHistoryEvents converts signal events, preserving order.
func NewHistoryEvents(evs []model.SignalEvent) []HistoryEvent {
	out := make([]HistoryEvent, 0, len(evs))
	for _, ev := range evs {
		out = append(out, NewHistoryEvent(ev))
	}
	return out
}
