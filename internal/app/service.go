// Package service provides the recommendation service that implements the
// dependencies required by the HTTP API.
package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/bookrec/internal/domain/interest"
	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/internal/domain/ranking"
	"github.com/okian/bookrec/internal/domain/scoring"
	"github.com/okian/bookrec/internal/domain/types"
	"github.com/okian/bookrec/pkg/logger"
	"github.com/okian/bookrec/pkg/metrics"
)

// Catalog searches the external book catalog.
type Catalog interface {
	Search(ctx context.Context, query string, maxResults, startIndex int) ([]model.CandidateItem, error)
	SearchMany(ctx context.Context, queries []string, maxResults int) ([]model.CandidateItem, error)
}

// Embedder maps texts to embeddings.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([]model.Embedding, error)
	Dimensions() int
	Backend() string
}

// Store persists history and recommendation state.
type Store interface {
	interest.HistoryReader
	interest.RecommendationReader
	Upsert(ctx context.Context, rec model.RecommendationRecord) (model.RecommendationRecord, error)
	AppendSignal(ctx context.Context, ev model.SignalEvent) (model.SignalEvent, error)
}

// Service runs the per-request recommendation pipeline.
type Service struct {
	mu sync.RWMutex

	// Collaborators
	catalog  Catalog
	embedder Embedder
	store    Store

	// Pipeline components, built on Start
	aggregator   *interest.Aggregator
	multiRanker  *ranking.Ranker
	singleRanker *ranking.Ranker

	// Configuration
	requestTimeout time.Duration
	maxResults     int
	historyWindow  int
	signalSource   string
	similarity     string
	topKSingle     int
	topKMulti      int
	listLimit      int

	// State
	started   bool
	startedAt time.Time
	served    atomic.Int64
	history   atomic.Int64

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithCatalog sets the catalog client.
func WithCatalog(c Catalog) Option {
	return func(s *Service) { s.catalog = c }
}

// WithEmbedder sets the text embedder.
func WithEmbedder(e Embedder) Option {
	return func(s *Service) { s.embedder = e }
}

// WithStore sets the persistence layer.
func WithStore(st Store) Option {
	return func(s *Service) { s.store = st }
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithRequestTimeout bounds a whole pipeline run.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithMaxResults sets the catalog page size per query.
func WithMaxResults(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxResults = n
		}
	}
}

// WithHistoryWindow sets how many recent signals feed the query.
func WithHistoryWindow(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.historyWindow = n
		}
	}
}

// WithSignalSource selects history events or prior recommendations.
func WithSignalSource(source string) Option {
	return func(s *Service) {
		if source != "" {
			s.signalSource = source
		}
	}
}

// WithSimilarity selects the similarity metric by name.
func WithSimilarity(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.similarity = name
		}
	}
}

// WithTopK sets the truncation sizes of the single- and multi-query variants.
func WithTopK(single, multi int) Option {
	return func(s *Service) {
		if single > 0 {
			s.topKSingle = single
		}
		if multi > 0 {
			s.topKMulti = multi
		}
	}
}

// WithListLimit caps list endpoints.
func WithListLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.listLimit = n
		}
	}
}

// New constructs a new Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		requestTimeout: 15 * time.Second,
		maxResults:     40,
		historyWindow:  interest.DefaultWindow,
		signalSource:   interest.SourceHistory,
		similarity:     scoring.MetricDot,
		topKSingle:     ranking.TopKSingle,
		topKMulti:      ranking.TopKMulti,
		listLimit:      100,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start validates collaborators and builds the pipeline components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}
	switch {
	case s.catalog == nil:
		return fmt.Errorf("start service: catalog is required")
	case s.embedder == nil:
		return fmt.Errorf("start service: embedder is required")
	case s.store == nil:
		return fmt.Errorf("start service: store is required")
	}

	scorer, err := scoring.NewScorer(scoring.WithMetric(s.similarity))
	if err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	s.aggregator = interest.New(s.embedder, s.store,
		interest.WithSource(s.signalSource),
		interest.WithRecommendations(s.store),
		interest.WithWindow(s.historyWindow),
	)
	s.multiRanker = ranking.New(ranking.WithScorer(scorer), ranking.WithTopK(s.topKMulti))
	s.singleRanker = ranking.New(ranking.WithScorer(scorer), ranking.WithTopK(s.topKSingle))

	s.started = true
	s.startedAt = time.Now()
	s.logger.Info(ctx, "recommendation service started",
		logger.String("embedder", s.embedder.Backend()),
		logger.Int("dimensions", s.embedder.Dimensions()),
		logger.String("similarity", scorer.Name()),
		logger.String("signalSource", s.signalSource),
		logger.Int("topKSingle", s.topKSingle),
		logger.Int("topKMulti", s.topKMulti),
	)
	return nil
}

// Stop marks the service stopped. Collaborators are owned by the caller.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	s.started = false
	s.logger.Info(context.Background(), "recommendation service stopped")
}

func (s *Service) running() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return ErrNotStarted
	}
	return nil
}

// Search returns catalog hits for q.
func (s *Service) Search(ctx context.Context, q string, startIndex int) ([]types.SearchResult, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: q is required", ErrValidation)
	}
	if startIndex < 0 {
		return nil, fmt.Errorf("%w: startIndex must not be negative", ErrValidation)
	}
	ctx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	defer cancel()

	items, err := s.catalog.Search(ctx, q, s.maxResults, startIndex)
	if err != nil {
		return nil, upstream(err)
	}
	metrics.RecordCandidatesFetched(len(items))
	return types.NewSearchResults(items), nil
}

// Recommend runs the history-aggregated pipeline for userID.
func (s *Service) Recommend(ctx context.Context, userID string) ([]types.Recommendation, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	ranked, err := s.recommendFromHistory(ctx, userID)
	if err != nil {
		return nil, err
	}
	return types.NewRecommendations(ranked), nil
}

// RecommendSimilar runs the single-query pipeline for q.
func (s *Service) RecommendSimilar(ctx context.Context, userID, q string) ([]types.Recommendation, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(q) == "" {
		return nil, fmt.Errorf("%w: q is required", ErrValidation)
	}
	ranked, err := s.recommendFromQuery(ctx, userID, q)
	if err != nil {
		return nil, err
	}
	return types.NewRecommendations(ranked), nil
}

// ListRecommendations returns the caller's persisted records, newest first.
func (s *Service) ListRecommendations(ctx context.Context, userID string) ([]types.StoredRecommendation, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	recs, err := s.store.ListRecommendations(ctx, userID, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("list recommendations: %w", err)
	}
	return types.NewStoredRecommendations(recs), nil
}

// RecordHistory appends one reading signal. The representative text is
// encoded up front so later aggregations can reuse it.
func (s *Service) RecordHistory(ctx context.Context, userID string, req types.HistoryRequest) (types.HistoryEvent, error) {
	if err := s.running(); err != nil {
		return types.HistoryEvent{}, err
	}
	if strings.TrimSpace(req.BookTitle) == "" {
		return types.HistoryEvent{}, fmt.Errorf("%w: book_title is required", ErrValidation)
	}
	ev := model.SignalEvent{
		UserID:      userID,
		Subject:     strings.TrimSpace(req.BookTitle),
		Description: strings.TrimSpace(req.Description),
	}
	encCtx, cancel := context.WithTimeout(ctx, s.requestTimeout)
	vecs, err := s.embedder.Encode(encCtx, []string{ev.Text()})
	cancel()
	if err != nil {
		s.logger.Warn(ctx, "history embedding skipped", logger.Error(err))
	} else {
		ev.Embedding = vecs[0]
	}

	stored, err := s.store.AppendSignal(ctx, ev)
	if err != nil {
		return types.HistoryEvent{}, fmt.Errorf("record history: %w", err)
	}
	s.history.Add(1)
	metrics.RecordHistoryEvent()
	return types.NewHistoryEvent(stored), nil
}

// ListHistory returns the caller's signal events, newest first.
func (s *Service) ListHistory(ctx context.Context, userID string) ([]types.HistoryEvent, error) {
	if err := s.running(); err != nil {
		return nil, err
	}
	evs, err := s.store.RecentSignals(ctx, userID, s.listLimit)
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	return types.NewHistoryEvents(evs), nil
}

// Stats returns service statistics for monitoring.
func (s *Service) Stats(_ context.Context) types.Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st := types.Stats{
		Similarity:    s.similarity,
		SignalSource:  s.signalSource,
		Served:        s.served.Load(),
		HistoryEvents: s.history.Load(),
	}
	if s.embedder != nil {
		st.EmbedderBackend = s.embedder.Backend()
		st.Dimensions = s.embedder.Dimensions()
	}
	if s.started {
		st.UptimeSeconds = time.Since(s.startedAt).Seconds()
	}
	return st
}
