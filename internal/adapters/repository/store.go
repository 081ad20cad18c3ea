// Package repository defines the persistence contract for reading history
// and per-user recommendation records.
package repository

import (
	"context"
	"strings"
	"time"

	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/pkg/metrics"
)

// Driver names.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Store persists signal events and recommendation records.
type Store interface {
	// Upsert inserts rec or, when (UserID, ItemKey) already exists, updates
	// its score, preview link, thumbnail and update time in one statement.
	// The creation time of an existing record is never changed.
	Upsert(ctx context.Context, rec model.RecommendationRecord) (model.RecommendationRecord, error)

	// ListRecommendations returns the user's records, most recently updated first.
	ListRecommendations(ctx context.Context, userID string, limit int) ([]model.RecommendationRecord, error)

	// AppendSignal stores a new signal event.
	AppendSignal(ctx context.Context, ev model.SignalEvent) (model.SignalEvent, error)

	// RecentSignals returns the user's events, newest first.
	RecentSignals(ctx context.Context, userID string, limit int) ([]model.SignalEvent, error)

	// Migrate applies the embedded schema. It is idempotent.
	Migrate(ctx context.Context) error

	Close() error
}

// ValidateRecord checks the fields the uniqueness constraint depends on.
func ValidateRecord(rec model.RecommendationRecord) error {
	if strings.TrimSpace(rec.UserID) == "" {
		return ErrMissingUser
	}
	if rec.ItemKey == "" {
		return ErrMissingItemKey
	}
	return nil
}

// ValidateSignal checks a signal event before insert.
func ValidateSignal(ev model.SignalEvent) error {
	if strings.TrimSpace(ev.UserID) == "" {
		return ErrMissingUser
	}
	if strings.TrimSpace(ev.Subject) == "" {
		return ErrMissingSubject
	}
	return nil
}

// ValidateLimit rejects non-positive limits.
func ValidateLimit(limit int) error {
	if limit <= 0 {
		return ErrInvalidLimit
	}
	return nil
}

// Statements splits a schema script into individual statements.
func Statements(script string) []string {
	parts := strings.Split(script, ";")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(p); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// ObserveQuery records the latency of a store operation.
func ObserveQuery(op string, start time.Time) {
	metrics.RecordRepositoryQueryLatency(op, float64(time.Since(start).Microseconds())/1000)
}

// ObserveUpsert records the outcome of an upsert.
func ObserveUpsert(err error) {
	if err != nil {
		metrics.RecordRepositoryUpsert("error")
		metrics.RecordErrorByComponent("repository", "upsert_failed")
		return
	}
	metrics.RecordRepositoryUpsert("ok")
}
