// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Keys are flat snake_case names shared by YAML files and BOOKREC_* env vars.
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import "time"

// Embedder providers.
const (
	EmbedderLocal  = "local"
	EmbedderOpenAI = "openai"
)

// Signal sources for interest aggregation.
const (
	SignalHistory         = "history"
	SignalRecommendations = "recommendations"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level" validate:"omitempty,oneof=debug info warn warning error"`

	// LogFormat selects text or json log lines.
	LogFormat string `koanf:"log_format" validate:"omitempty,oneof=text json"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// RequestTimeoutMS bounds one recommendation pipeline run.
	RequestTimeoutMS int `koanf:"request_timeout_ms" validate:"gt=0"`

	// DatabaseDriver is sqlite or postgres; DatabaseDSN is driver specific.
	DatabaseDriver string `koanf:"database_driver" validate:"oneof=sqlite postgres"`
	DatabaseDSN    string `koanf:"database_dsn" validate:"required"`

	// JWTSecret verifies HS256 bearer tokens issued by the identity provider.
	JWTSecret string `koanf:"jwt_secret"`

	// Catalog (Google Books volumes API).
	CatalogBaseURL    string  `koanf:"catalog_base_url" validate:"required,url"`
	CatalogAPIKey     string  `koanf:"catalog_api_key"`
	CatalogMaxResults int     `koanf:"catalog_max_results" validate:"gte=1,lte=40"`
	CatalogTimeoutMS  int     `koanf:"catalog_timeout_ms" validate:"gt=0"`
	CatalogRatePerSec float64 `koanf:"catalog_rate_per_sec" validate:"gte=0"`
	CatalogBurst      int     `koanf:"catalog_burst" validate:"gte=1"`
	CatalogParallel   int     `koanf:"catalog_concurrency" validate:"gte=1"`

	// Embedder selects the text encoder backend.
	EmbedderProvider string `koanf:"embedder_provider" validate:"oneof=local openai"`
	VocabPath        string `koanf:"vocab_path" validate:"required_if=EmbedderProvider local"`
	WeightsPath      string `koanf:"weights_path" validate:"required_if=EmbedderProvider local"`
	OpenAIAPIKey     string `koanf:"openai_api_key" validate:"required_if=EmbedderProvider openai"`
	OpenAIBaseURL    string `koanf:"openai_base_url"`
	OpenAIModel      string `koanf:"openai_model"`

	// HistoryWindow is how many recent signals feed the query embedding.
	HistoryWindow int `koanf:"history_window" validate:"gte=1"`

	// SignalSource picks history events or prior recommendations.
	SignalSource string `koanf:"signal_source" validate:"oneof=history recommendations"`

	// Similarity is dot (unnormalized) or cosine.
	Similarity string `koanf:"similarity" validate:"oneof=dot cosine"`

	// TopKSingle and TopKMulti truncate the single-query and history variants.
	TopKSingle int `koanf:"top_k_single" validate:"gte=1"`
	TopKMulti  int `koanf:"top_k_multi" validate:"gte=1"`

	// ListLimit caps GET /history and GET /user/recommendations.
	ListLimit int `koanf:"list_limit" validate:"gte=1"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:          "info",
		LogFormat:         "text",
		Addr:              ":9080",
		RequestTimeoutMS:  15_000,
		DatabaseDriver:    "sqlite",
		DatabaseDSN:       "bookrec.db",
		CatalogBaseURL:    "https://www.googleapis.com/books/v1",
		CatalogMaxResults: 40,
		CatalogTimeoutMS:  5_000,
		CatalogRatePerSec: 10,
		CatalogBurst:      5,
		CatalogParallel:   3,
		EmbedderProvider:  EmbedderLocal,
		VocabPath:         "model/vocab.json",
		WeightsPath:       "model/weights.json",
		OpenAIModel:       "text-embedding-3-small",
		HistoryWindow:     3,
		SignalSource:      SignalHistory,
		Similarity:        "dot",
		TopKSingle:        5,
		TopKMulti:         15,
		ListLimit:         100,
	}
}

// RequestTimeout returns RequestTimeoutMS as a duration.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMS) * time.Millisecond
}

// CatalogTimeout returns CatalogTimeoutMS as a duration.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.CatalogTimeoutMS) * time.Millisecond
}
