// Package model contains domain models passed between layers.
package model

import (
	"strings"
	"time"
)

// Embedding is a fixed-width text vector. The width is constant for the
// lifetime of the loaded encoder.
type Embedding []float32

// SignalEvent is one observed reading interest of a user. Events are
// append-only and never mutated once stored.
type SignalEvent struct {
	ID          int64
	UserID      string
	Subject     string    // book title the user interacted with
	Description string    // optional free text
	Embedding   Embedding // optional cached encoding of Text()
	CreatedAt   time.Time
}

// Text returns the representative text fed to the encoder.
func (e SignalEvent) Text() string {
	return joinText(e.Subject, e.Description)
}

// CandidateItem is one catalog volume returned for a query.
// Absent upstream fields are zero values.
type CandidateItem struct {
	ExternalID    string
	Title         string
	Author        string // authors joined with ", "
	Description   string
	Categories    []string
	Thumbnail     string
	PreviewLink   string
	PublishedDate string
	PageCount     int
	AverageRating float64
}

// Key returns the identity key used for deduplication and persistence.
func (c CandidateItem) Key() string {
	return ItemKey(c.Title)
}

// Scoreable reports whether the item has text to embed.
func (c CandidateItem) Scoreable() bool {
	return strings.TrimSpace(c.Description) != ""
}

// ItemKey normalizes a title into an identity key.
func ItemKey(title string) string {
	return strings.ToLower(strings.TrimSpace(title))
}

// Scored pairs a candidate with its embedding.
type Scored struct {
	Item      CandidateItem
	Embedding Embedding
}

// RankedRecommendation is a candidate with its similarity to the query.
type RankedRecommendation struct {
	CandidateItem
	Score float64
}

// RecommendationRecord is the persisted per-user state of one recommended item.
// At most one record exists per (UserID, ItemKey).
type RecommendationRecord struct {
	ID          int64
	UserID      string
	ItemKey     string
	Title       string
	Author      string
	Description string
	Thumbnail   string
	PreviewLink string
	ExternalID  string
	Categories  []string
	Score       float64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Text returns the representative text of a past recommendation.
func (r RecommendationRecord) Text() string {
	return joinText(r.Title, r.Description)
}

// NewRecord builds the record to upsert for a ranked item.
func NewRecord(userID string, r RankedRecommendation) RecommendationRecord {
	return RecommendationRecord{
		UserID:      userID,
		ItemKey:     r.Key(),
		Title:       r.Title,
		Author:      r.Author,
		Description: r.Description,
		Thumbnail:   r.Thumbnail,
		PreviewLink: r.PreviewLink,
		ExternalID:  r.ExternalID,
		Categories:  r.Categories,
		Score:       r.Score,
	}
}

func joinText(subject, description string) string {
	subject = strings.TrimSpace(subject)
	description = strings.TrimSpace(description)
	if description == "" {
		return subject
	}
	if subject == "" {
		return description
	}
	return subject + " " + description
}
