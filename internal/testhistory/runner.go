package testhistory

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/okian/bookrec/internal/adapters/http/api"
	"github.com/okian/bookrec/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// ErrVerification is returned when any user's recommendations break an
// ordering or uniqueness guarantee.
var ErrVerification = errors.New("recommendation verification failed")

type counters struct {
	posted, postFailed         atomic.Int64
	served, failed, empty, bad atomic.Int64
}

// Run seeds reading history for synthetic users and verifies /recommend.
func Run(ctx context.Context, config *Config) error {
	stats := &Stats{StartTime: time.Now(), Users: config.Users}

	logger.Get().Info(ctx, "starting bookrec history test",
		logger.String("baseURL", config.BaseURL),
		logger.Int("users", config.Users),
		logger.Int("workers", config.Workers),
		logger.Duration("timeout", config.Timeout))

	auth, err := api.NewAuthenticator(config.JWTSecret)
	if err != nil {
		return fmt.Errorf("token minting: %w", err)
	}

	// Step 1: Check service health
	if err := checkServiceHealth(ctx, config); err != nil {
		return fmt.Errorf("service health check failed: %w", err)
	}

	// Step 2: Generate readers
	readers := generateReaders(ctx, config)

	// Step 3: Seed history and fetch recommendations concurrently
	var c counters
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(config.Workers, 1))
	for _, rd := range readers {
		g.Go(func() error {
			token, err := auth.Sign(rd.UserID, tokenTTLMinutes*time.Minute)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			exerciseReader(gctx, config, newHTTPClient(config.Timeout, token), rd, &c)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	stats.HistoryPosted = int(c.posted.Load())
	stats.HistoryFailed = int(c.postFailed.Load())
	stats.Recommendations = int(c.served.Load())
	stats.RecommendFailed = int(c.failed.Load())
	stats.EmptyResponses = int(c.empty.Load())
	stats.VerificationFails = int(c.bad.Load())
	stats.EndTime = time.Now()
	stats.Duration = stats.EndTime.Sub(stats.StartTime)
	displayFinalStats(stats)

	if stats.VerificationFails > 0 {
		return fmt.Errorf("%w: %d users", ErrVerification, stats.VerificationFails)
	}
	logger.Get().Info(ctx, "test completed successfully")
	return nil
}

// exerciseReader posts a reader's books then checks its recommendations.
func exerciseReader(ctx context.Context, config *Config, client *HTTPClient, rd Reader, c *counters) {
	ctx = logger.WithUserID(ctx, rd.UserID)
	for _, b := range rd.Books {
		if err := postHistory(ctx, client, config.BaseURL, b); err != nil {
			c.postFailed.Add(1)
			logger.Get().Warn(ctx, "history post failed", logger.String("title", b.Title), logger.Error(err))
			continue
		}
		c.posted.Add(1)
	}

	recs, status, err := fetchRecommendations(ctx, client, config.BaseURL)
	switch {
	case err != nil:
		c.failed.Add(1)
		logger.Get().Warn(ctx, "recommend failed", logger.Error(err))
		return
	case status == http.StatusNotFound:
		c.empty.Add(1)
		return
	}
	c.served.Add(1)

	limit := config.MaxResults
	if limit <= 0 {
		limit = DefaultMaxResults
	}
	if err := VerifyRecommendations(recs, limit); err != nil {
		c.bad.Add(1)
		logger.Get().Error(ctx, "recommendations violate guarantees", logger.Error(err))
		return
	}
	if config.Verbose {
		titles := make([]string, len(recs))
		for i, r := range recs {
			titles[i] = r.Title
		}
		logger.Get().Info(ctx, "recommendations", logger.Any("titles", titles))
	}
}

func postHistory(ctx context.Context, client *HTTPClient, baseURL string, b Book) error {
	resp, err := client.Post(ctx, baseURL+"/history", b)
	if err != nil {
		return err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return err
	}
	if resp.StatusCode != StatusCreated {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
	return nil
}

// fetchRecommendations returns the decoded list for 200 and the status for
// any other answer the service documents.
func fetchRecommendations(ctx context.Context, client *HTTPClient, baseURL string) ([]Recommendation, int, error) {
	resp, err := client.Get(ctx, baseURL+"/recommend")
	if err != nil {
		return nil, 0, err
	}
	body, err := readResponseBody(resp)
	if err != nil {
		return nil, resp.StatusCode, err
	}
	switch resp.StatusCode {
	case StatusOK:
		var recs []Recommendation
		if err := json.Unmarshal(body, &recs); err != nil {
			return nil, resp.StatusCode, fmt.Errorf("decode recommendations: %w", err)
		}
		return recs, resp.StatusCode, nil
	case http.StatusNotFound:
		return nil, resp.StatusCode, nil
	default:
		return nil, resp.StatusCode, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, body)
	}
}

// checkServiceHealth verifies the service is running.
func checkServiceHealth(ctx context.Context, config *Config) error {
	logger.Get().Info(ctx, "checking service health")

	resp, err := newHTTPClient(config.Timeout, "").Get(ctx, config.BaseURL+"/healthz")
	if err != nil {
		return fmt.Errorf("failed to connect to service: %w", err)
	}
	if _, err := readResponseBody(resp); err != nil {
		return err
	}
	// Any 200 is healthy; the body is the Prometheus exposition.
	if resp.StatusCode != StatusOK {
		return fmt.Errorf("service health check failed with status: %d", resp.StatusCode)
	}

	logger.Get().Info(ctx, "service is healthy")
	return nil
}

// displayFinalStats logs the final test statistics.
func displayFinalStats(stats *Stats) {
	var usersPerSecond float64
	if stats.Duration > 0 {
		usersPerSecond = float64(stats.Users) / stats.Duration.Seconds()
	}

	logger.Get().Info(context.Background(), "final statistics",
		logger.Int("users", stats.Users),
		logger.Int("historyPosted", stats.HistoryPosted),
		logger.Int("historyFailed", stats.HistoryFailed),
		logger.Int("recommendations", stats.Recommendations),
		logger.Int("recommendFailed", stats.RecommendFailed),
		logger.Int("emptyResponses", stats.EmptyResponses),
		logger.Int("verificationFails", stats.VerificationFails),
		logger.Duration("duration", stats.Duration),
		logger.Float64("usersPerSecond", usersPerSecond))
}
