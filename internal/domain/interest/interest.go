// Package interest reduces a user's recent signals to one query embedding.
package interest

import (
	"context"
	"errors"
	"fmt"

	"github.com/okian/bookrec/internal/domain/model"
)

// Signal sources.
const (
	SourceHistory         = "history"
	SourceRecommendations = "recommendations"
)

// DefaultWindow is the number of recent signals considered.
const DefaultWindow = 3

// ErrNoSignal is returned when the user has no eligible signal.
var ErrNoSignal = errors.New("no reading history yet")

// HistoryReader lists a user's signal events, newest first.
type HistoryReader interface {
	RecentSignals(ctx context.Context, userID string, limit int) ([]model.SignalEvent, error)
}

// RecommendationReader lists a user's persisted recommendations, newest first.
type RecommendationReader interface {
	ListRecommendations(ctx context.Context, userID string, limit int) ([]model.RecommendationRecord, error)
}

// Encoder maps texts to embeddings.
type Encoder interface {
	Encode(ctx context.Context, texts []string) ([]model.Embedding, error)
	Dimensions() int
}

// Aggregator builds a query from recent signals.
type Aggregator struct {
	encoder Encoder
	history HistoryReader
	recs    RecommendationReader
	source  string
	window  int
}

// Option applies a configuration option to the Aggregator.
type Option func(*Aggregator)

// WithWindow sets how many recent signals are used.
func WithWindow(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.window = n
		}
	}
}

// WithSource selects SourceHistory or SourceRecommendations.
func WithSource(source string) Option {
	return func(a *Aggregator) {
		if source != "" {
			a.source = source
		}
	}
}

// WithRecommendations sets the reader used by SourceRecommendations.
func WithRecommendations(r RecommendationReader) Option {
	return func(a *Aggregator) {
		a.recs = r
	}
}

// New creates an Aggregator reading history events.
func New(enc Encoder, history HistoryReader, opts ...Option) *Aggregator {
	a := &Aggregator{
		encoder: enc,
		history: history,
		source:  SourceHistory,
		window:  DefaultWindow,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Source returns the configured signal source.
func (a *Aggregator) Source() string { return a.source }

// Aggregate returns the representative texts of the user's most recent
// signals (newest first) and their component-wise mean embedding.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) ([]string, model.Embedding, error) {
	texts, cached, err := a.signals(ctx, userID)
	if err != nil {
		return nil, nil, err
	}
	if len(texts) == 0 {
		return nil, nil, ErrNoSignal
	}

	vecs, err := a.embed(ctx, texts, cached)
	if err != nil {
		return nil, nil, err
	}
	return texts, Mean(vecs), nil
}

func (a *Aggregator) signals(ctx context.Context, userID string) ([]string, []model.Embedding, error) {
	switch a.source {
	case SourceHistory:
		evs, err := a.history.RecentSignals(ctx, userID, a.window)
		if err != nil {
			return nil, nil, fmt.Errorf("read history: %w", err)
		}
		texts := make([]string, 0, len(evs))
		cached := make([]model.Embedding, 0, len(evs))
		for _, ev := range evs {
			texts = append(texts, ev.Text())
			cached = append(cached, ev.Embedding)
		}
		return texts, cached, nil
	case SourceRecommendations:
		if a.recs == nil {
			return nil, nil, fmt.Errorf("signal source %q: no recommendation reader", a.source)
		}
		recs, err := a.recs.ListRecommendations(ctx, userID, a.window)
		if err != nil {
			return nil, nil, fmt.Errorf("read recommendations: %w", err)
		}
		texts := make([]string, 0, len(recs))
		for _, r := range recs {
			texts = append(texts, r.Text())
		}
		return texts, make([]model.Embedding, len(texts)), nil
	default:
		return nil, nil, fmt.Errorf("unknown signal source %q", a.source)
	}
}

// embed fills in embeddings that are not cached at the encoder's width.
func (a *Aggregator) embed(ctx context.Context, texts []string, cached []model.Embedding) ([]model.Embedding, error) {
	dim := a.encoder.Dimensions()
	out := make([]model.Embedding, len(texts))
	var missing []string
	var idx []int
	for i := range texts {
		if len(cached[i]) == dim && dim > 0 {
			out[i] = cached[i]
			continue
		}
		missing = append(missing, texts[i])
		idx = append(idx, i)
	}

	vecs, err := a.encoder.Encode(ctx, missing)
	if err != nil {
		return nil, fmt.Errorf("encode signals: %w", err)
	}
	if len(vecs) != len(missing) {
		return nil, fmt.Errorf("encode signals: got %d embeddings for %d texts", len(vecs), len(missing))
	}
	for j, i := range idx {
		out[i] = vecs[j]
	}
	return out, nil
}

// Mean returns the component-wise arithmetic mean. The mean of one vector is
// that vector. Vectors are assumed to share one width.
func Mean(vecs []model.Embedding) model.Embedding {
	if len(vecs) == 0 {
		return nil
	}
	if len(vecs) == 1 {
		return vecs[0]
	}
	sum := make([]float64, len(vecs[0]))
	for _, v := range vecs {
		for i := range sum {
			sum[i] += float64(v[i])
		}
	}
	out := make(model.Embedding, len(sum))
	n := float64(len(vecs))
	for i, s := range sum {
		out[i] = float32(s / n)
	}
	return out
}
