// Package ranking orders scored candidates by similarity to a query.
package ranking

import (
	"sort"

	"github.com/okian/bookrec/internal/domain/dedupe"
	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/internal/domain/scoring"
)

// Default truncation sizes.
const (
	TopKSingle = 5
	TopKMulti  = 15
)

// Report describes what Rank discarded.
type Report struct {
	Skipped    int // candidates without a usable embedding
	Duplicates int // later candidates sharing an identity key
}

// Ranker scores, deduplicates, sorts and truncates candidates.
type Ranker struct {
	scorer *scoring.Scorer
	k      int
}

// Option applies a configuration option to the Ranker.
type Option func(*Ranker)

// WithTopK sets the truncation size. Non-positive values are ignored.
func WithTopK(k int) Option {
	return func(r *Ranker) {
		if k > 0 {
			r.k = k
		}
	}
}

// WithScorer sets the similarity scorer.
func WithScorer(s *scoring.Scorer) Option {
	return func(r *Ranker) {
		if s != nil {
			r.scorer = s
		}
	}
}

// New creates a Ranker. Without options it uses the dot product and TopKMulti.
func New(opts ...Option) *Ranker {
	r := &Ranker{k: TopKMulti}
	for _, opt := range opts {
		opt(r)
	}
	if r.scorer == nil {
		r.scorer, _ = scoring.NewScorer()
	}
	return r
}

// K returns the truncation size.
func (r *Ranker) K() int { return r.k }

// Rank returns at most K recommendations sorted by descending score, ties in
// input order. Of several candidates with one identity key only the first
// encountered survives, even when a later one would score higher.
func (r *Ranker) Rank(query model.Embedding, candidates []model.Scored) []model.RankedRecommendation {
	out, _ := r.RankWithReport(query, candidates)
	return out
}

// RankWithReport is Rank plus counts of discarded candidates.
func (r *Ranker) RankWithReport(query model.Embedding, candidates []model.Scored) ([]model.RankedRecommendation, Report) {
	var rep Report
	scored := make([]model.RankedRecommendation, 0, len(candidates))
	for _, c := range candidates {
		if len(c.Embedding) == 0 {
			rep.Skipped++
			continue
		}
		s, err := r.scorer.Score(query, c.Embedding)
		if err != nil {
			rep.Skipped++
			continue
		}
		scored = append(scored, model.RankedRecommendation{CandidateItem: c.Item, Score: s})
	}

	scored, rep.Duplicates = dedupe.FirstWins(scored, func(rr model.RankedRecommendation) string {
		return rr.Key()
	})

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > r.k {
		scored = scored[:r.k]
	}
	return scored, rep
}
