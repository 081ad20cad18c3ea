// Package scoring defines the similarity metrics used to score candidate
// embeddings against a query embedding.
package scoring

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/okian/bookrec/internal/domain/model"
)

// Metric names accepted by configuration.
const (
	MetricDot    = "dot"
	MetricCosine = "cosine"
)

var (
	// ErrUnknownMetric is returned for an unsupported metric name.
	ErrUnknownMetric = errors.New("unknown similarity metric")
	// ErrDimensionMismatch is returned when two embeddings differ in width.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")
)

// Metric computes the similarity of two equal-width embeddings.
type Metric func(a, b model.Embedding) float64

// Dot returns the unnormalized dot product. Magnitude is not factored out.
func Dot(a, b model.Embedding) float64 {
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}

// Cosine returns the cosine similarity; zero vectors score 0.
func Cosine(a, b model.Embedding) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// MetricByName resolves a configured metric name.
func MetricByName(name string) (Metric, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", MetricDot:
		return Dot, nil
	case MetricCosine:
		return Cosine, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownMetric, name)
	}
}

// Scorer scores embeddings with a fixed metric.
type Scorer struct {
	name   string
	metric Metric
}

// Option applies a configuration option to the Scorer.
type Option func(*Scorer) error

// WithMetric selects the metric by name.
func WithMetric(name string) Option {
	return func(s *Scorer) error {
		m, err := MetricByName(name)
		if err != nil {
			return err
		}
		s.metric = m
		s.name = strings.ToLower(strings.TrimSpace(name))
		if s.name == "" {
			s.name = MetricDot
		}
		return nil
	}
}

// NewScorer creates a Scorer using the dot product unless overridden.
func NewScorer(opts ...Option) (*Scorer, error) {
	s := &Scorer{name: MetricDot, metric: Dot}
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Name returns the metric name.
func (s *Scorer) Name() string { return s.name }

// Score returns metric(candidate, query).
func (s *Scorer) Score(query, candidate model.Embedding) (float64, error) {
	if len(query) != len(candidate) {
		return 0, fmt.Errorf("%w: query %d, candidate %d", ErrDimensionMismatch, len(query), len(candidate))
	}
	return s.metric(candidate, query), nil
}
