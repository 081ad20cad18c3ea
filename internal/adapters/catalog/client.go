// Package catalog queries the Google Books volumes API and normalizes its
// items into candidate records.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/pkg/logger"
	"github.com/okian/bookrec/pkg/metrics"
)

// MaxPageSize is the largest maxResults the volumes API accepts.
const MaxPageSize = 40

// AuthorSeparator joins multiple authors into one display string.
const AuthorSeparator = ", "

const (
	defaultTimeout          = 5 * time.Second
	defaultBurst            = 1
	defaultConcurrency      = 3
	defaultFailureThreshold = 5
	defaultOpenTimeout      = 30 * time.Second
	maxBodyBytes            = 8 << 20
)

// Client is a Google Books volumes client. It holds no per-request state.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	timeout time.Duration

	ratePerSec float64
	burst      int
	limiter    *rate.Limiter

	concurrency      int
	failureThreshold uint32
	openTimeout      time.Duration
	breaker          *gobreaker.CircuitBreaker[[]model.CandidateItem]

	log logger.Logger
}

// New creates a client for baseURL, e.g. "https://www.googleapis.com/books/v1".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:          strings.TrimRight(baseURL, "/"),
		http:             &http.Client{},
		timeout:          defaultTimeout,
		burst:            defaultBurst,
		concurrency:      defaultConcurrency,
		failureThreshold: defaultFailureThreshold,
		openTimeout:      defaultOpenTimeout,
		log:              logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}

	limit := rate.Inf
	if c.ratePerSec > 0 {
		limit = rate.Limit(c.ratePerSec)
	}
	c.limiter = rate.NewLimiter(limit, c.burst)

	threshold := c.failureThreshold
	c.breaker = gobreaker.NewCircuitBreaker[[]model.CandidateItem](gobreaker.Settings{
		Name:    "catalog",
		Timeout: c.openTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, context.Canceled) || errors.Is(err, errCallerDone)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			metrics.UpdateCatalogBreakerState(breakerGauge(to))
			c.log.Warn(context.Background(), "catalog circuit state changed",
				logger.String("from", from.String()),
				logger.String("to", to.String()),
			)
		},
	})
	return c
}

func breakerGauge(s gobreaker.State) float64 {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}

// Search returns the catalog items matching query. maxResults is clamped to
// [1, MaxPageSize] and a negative startIndex is treated as 0. Any non-2xx
// response fails the whole call with ErrUpstream.
func (c *Client) Search(ctx context.Context, query string, maxResults, startIndex int) ([]model.CandidateItem, error) {
	start := time.Now()
	items, err := c.breaker.Execute(func() ([]model.CandidateItem, error) {
		items, err := c.search(ctx, query, maxResults, startIndex)
		if err != nil && ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %w", errCallerDone, err)
		}
		return items, err
	})
	metrics.RecordCatalogLatency(float64(time.Since(start).Milliseconds()))

	switch {
	case err == nil:
		metrics.RecordCatalogRequest("ok")
		return items, nil
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		metrics.RecordCatalogRequest("rejected")
		metrics.RecordErrorByComponent("catalog", "breaker_open")
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	default:
		metrics.RecordCatalogRequest("error")
		metrics.RecordErrorByComponent("catalog", "request_failed")
		c.log.Warn(ctx, "catalog search failed", logger.String("query", query), logger.Error(err))
		return nil, err
	}
}

// SearchMany runs Search for every query with bounded parallelism and
// returns the results concatenated in query order. One failure fails all.
func (c *Client) SearchMany(ctx context.Context, queries []string, maxResults int) ([]model.CandidateItem, error) {
	results := make([][]model.CandidateItem, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, q := range queries {
		g.Go(func() error {
			items, err := c.Search(gctx, q, maxResults, 0)
			if err != nil {
				return err
			}
			results[i] = items
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var total int
	for _, r := range results {
		total += len(r)
	}
	out := make([]model.CandidateItem, 0, total)
	for _, r := range results {
		out = append(out, r...)
	}
	return out, nil
}

func (c *Client) search(ctx context.Context, query string, maxResults, startIndex int) ([]model.CandidateItem, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limit wait: %w", ErrUpstream, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.volumesURL(query, maxResults, startIndex), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", ErrUpstream, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var body volumesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return nil, fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}

	items := make([]model.CandidateItem, 0, len(body.Items))
	for _, v := range body.Items {
		items = append(items, v.candidate())
	}
	return items, nil
}

func (c *Client) volumesURL(query string, maxResults, startIndex int) string {
	q := url.Values{}
	q.Set("q", query)
	q.Set("maxResults", strconv.Itoa(ClampPageSize(maxResults)))
	q.Set("startIndex", strconv.Itoa(max(startIndex, 0)))
	if c.apiKey != "" {
		q.Set("key", c.apiKey)
	}
	return c.baseURL + "/volumes?" + q.Encode()
}

// ClampPageSize bounds n to [1, MaxPageSize].
func ClampPageSize(n int) int {
	return min(max(n, 1), MaxPageSize)
}

type volumesResponse struct {
	TotalItems int      `json:"totalItems"`
	Items      []volume `json:"items"`
}

type volume struct {
	ID         string     `json:"id"`
	VolumeInfo volumeInfo `json:"volumeInfo"`
}

type volumeInfo struct {
	Title         string      `json:"title"`
	Authors       []string    `json:"authors"`
	Description   string      `json:"description"`
	Categories    []string    `json:"categories"`
	ImageLinks    *imageLinks `json:"imageLinks"`
	PreviewLink   string      `json:"previewLink"`
	PublishedDate string      `json:"publishedDate"`
	PageCount     int         `json:"pageCount"`
	AverageRating float64     `json:"averageRating"`
}

type imageLinks struct {
	Thumbnail string `json:"thumbnail"`
}

func (v volume) candidate() model.CandidateItem {
	info := v.VolumeInfo
	item := model.CandidateItem{
		ExternalID:    v.ID,
		Title:         info.Title,
		Author:        strings.Join(info.Authors, AuthorSeparator),
		Description:   info.Description,
		Categories:    info.Categories,
		PreviewLink:   info.PreviewLink,
		PublishedDate: info.PublishedDate,
		PageCount:     info.PageCount,
		AverageRating: info.AverageRating,
	}
	if item.Categories == nil {
		item.Categories = []string{}
	}
	if info.ImageLinks != nil {
		item.Thumbnail = info.ImageLinks.Thumbnail
	}
	return item
}
