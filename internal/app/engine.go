package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/okian/bookrec/internal/domain/interest"
	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/internal/domain/ranking"
	"github.com/okian/bookrec/pkg/logger"
	"github.com/okian/bookrec/pkg/metrics"
)

// Pipeline variants, used as metric labels.
const (
	variantMulti  = "multi"
	variantSingle = "single"
)

// recommendFromHistory aggregates the user's recent signals, fans the
// signal texts out to the catalog and ranks the pooled candidates.
func (s *Service) recommendFromHistory(ctx context.Context, userID string) ([]model.RankedRecommendation, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	texts, query, err := s.aggregator.Aggregate(ctx, userID)
	if err != nil {
		return nil, s.fail(ctx, variantMulti, aggregateError(ctx, err))
	}

	candidates, err := s.catalog.SearchMany(ctx, texts, s.maxResults)
	if err != nil {
		return nil, s.fail(ctx, variantMulti, upstream(err))
	}

	ranked, err := s.rankAndPersist(ctx, userID, query, candidates, s.multiRanker)
	if err != nil {
		return nil, s.fail(ctx, variantMulti, err)
	}
	s.served.Add(1)
	metrics.RecordRecommendationServed(variantMulti)
	metrics.RecordPipelineLatency(variantMulti, float64(time.Since(start).Milliseconds()))
	return ranked, nil
}

// recommendFromQuery ranks the catalog hits of one free-text query against
// the embedding of that query.
func (s *Service) recommendFromQuery(ctx context.Context, userID, q string) ([]model.RankedRecommendation, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	vecs, err := s.embedder.Encode(ctx, []string{q})
	if err != nil {
		return nil, s.fail(ctx, variantSingle, upstream(err))
	}

	candidates, err := s.catalog.Search(ctx, q, s.maxResults, 0)
	if err != nil {
		return nil, s.fail(ctx, variantSingle, upstream(err))
	}

	ranked, err := s.rankAndPersist(ctx, userID, vecs[0], candidates, s.singleRanker)
	if err != nil {
		return nil, s.fail(ctx, variantSingle, err)
	}
	s.served.Add(1)
	metrics.RecordRecommendationServed(variantSingle)
	metrics.RecordPipelineLatency(variantSingle, float64(time.Since(start).Milliseconds()))
	return ranked, nil
}

// rankAndPersist drops candidates without a description or a title, embeds the rest,
// ranks them and upserts every returned item for the user. Any failure
// fails the whole request.
func (s *Service) rankAndPersist(
	ctx context.Context,
	userID string,
	query model.Embedding,
	candidates []model.CandidateItem,
	r *ranking.Ranker,
) ([]model.RankedRecommendation, error) {
	metrics.RecordCandidatesFetched(len(candidates))
	if len(candidates) == 0 {
		return nil, ErrEmptyCandidates
	}

	usable := make([]model.CandidateItem, 0, len(candidates))
	texts := make([]string, 0, len(candidates))
	for _, c := range candidates {
		if !c.Scoreable() || c.Key() == "" {
			continue
		}
		usable = append(usable, c)
		texts = append(texts, c.Description)
	}
	metrics.RecordCandidatesExcluded(len(candidates) - len(usable))
	if len(usable) == 0 {
		return nil, ErrNoDescription
	}

	vecs, err := s.embedder.Encode(ctx, texts)
	if err != nil {
		return nil, upstream(err)
	}
	if len(vecs) != len(usable) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d candidates", ErrUpstream, len(vecs), len(usable))
	}
	scored := make([]model.Scored, len(usable))
	for i := range usable {
		scored[i] = model.Scored{Item: usable[i], Embedding: vecs[i]}
	}

	ranked, rep := r.RankWithReport(query, scored)
	for range rep.Duplicates {
		metrics.RecordCandidateDuplicate()
	}
	if rep.Skipped > 0 {
		s.logger.Warn(ctx, "candidates skipped during ranking", logger.Int("skipped", rep.Skipped))
	}

	for _, rr := range ranked {
		if err := ctx.Err(); err != nil {
			return nil, upstream(err)
		}
		if _, err := s.store.Upsert(ctx, model.NewRecord(userID, rr)); err != nil {
			return nil, fmt.Errorf("persist recommendation: %w", err)
		}
	}
	return ranked, nil
}

func (s *Service) fail(ctx context.Context, variant string, err error) error {
	reason := "internal"
	switch {
	case errors.Is(err, ErrNoSignal):
		reason = "no_signal"
	case errors.Is(err, ErrEmptyCandidates):
		reason = "empty_candidates"
	case errors.Is(err, ErrNoDescription):
		reason = "no_description"
	case errors.Is(err, ErrUpstream):
		reason = "upstream"
	}
	metrics.RecordRecommendationFailed(reason)
	if reason == "internal" || reason == "upstream" {
		s.logger.Error(ctx, "recommendation pipeline failed",
			logger.String("variant", variant),
			logger.Error(err),
		)
	}
	return err
}

func aggregateError(ctx context.Context, err error) error {
	if errors.Is(err, interest.ErrNoSignal) {
		return ErrNoSignal
	}
	if ctx.Err() != nil {
		return upstream(err)
	}
	return fmt.Errorf("aggregate signals: %w", err)
}

// upstream tags err as an upstream failure, keeping the cause for errors.Is.
func upstream(err error) error {
	if errors.Is(err, ErrUpstream) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrUpstream, err)
}
