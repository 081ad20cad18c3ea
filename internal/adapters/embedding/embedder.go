// Package embedding maps free text into the shared embedding space used to
// compare reading signals with catalog candidates.
package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/pkg/metrics"
)

// Backend names.
const (
	BackendLocal  = "local"
	BackendOpenAI = "openai"
)

// Embedder encodes texts into fixed-width embeddings, one per input, in
// input order. Implementations are safe for concurrent use.
type Embedder interface {
	Encode(ctx context.Context, texts []string) ([]model.Embedding, error)
	Dimensions() int
	Backend() string
}

// Local runs the tokenizer and embedding table in process.
type Local struct {
	tokenizer *Tokenizer
	table     *Table
}

// NewLocal pairs a tokenizer with a table. Every vocabulary index must have
// a row in the table.
func NewLocal(tok *Tokenizer, table *Table) (*Local, error) {
	if tok == nil || table == nil {
		return nil, fmt.Errorf("%w: tokenizer and table are required", ErrLoadModel)
	}
	if tok.MaxIndex() >= table.Rows() {
		return nil, fmt.Errorf("%w: vocabulary index %d exceeds table rows %d",
			ErrLoadModel, tok.MaxIndex(), table.Rows())
	}
	return &Local{tokenizer: tok, table: table}, nil
}

// LoadLocal reads the vocabulary and weights files.
func LoadLocal(vocabPath, weightsPath string) (*Local, error) {
	tok, err := LoadTokenizer(vocabPath)
	if err != nil {
		return nil, err
	}
	table, err := LoadTable(weightsPath)
	if err != nil {
		return nil, err
	}
	return NewLocal(tok, table)
}

// Encode returns one embedding per text. An empty input returns an empty
// result without touching the model.
func (l *Local) Encode(ctx context.Context, texts []string) ([]model.Embedding, error) {
	if len(texts) == 0 {
		return []model.Embedding{}, nil
	}
	start := time.Now()
	out := make([]model.Embedding, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrEncode, err)
		}
		out[i] = l.table.Encode(l.tokenizer.Tokenize(text))
	}
	metrics.RecordEmbeddingLatency(float64(time.Since(start).Milliseconds()), len(texts))
	return out, nil
}

// Dimensions returns the embedding width.
func (l *Local) Dimensions() int { return l.table.Dimensions() }

// Backend returns BackendLocal.
func (l *Local) Backend() string { return BackendLocal }

// Options selects and configures a backend for New.
type Options struct {
	Provider    string
	VocabPath   string
	WeightsPath string
	APIKey      string
	BaseURL     string
	Model       string
	Dimensions  int
}

// New loads the configured backend. Any error is fatal to startup.
func New(ctx context.Context, opts Options) (Embedder, error) {
	switch opts.Provider {
	case "", BackendLocal:
		return LoadLocal(opts.VocabPath, opts.WeightsPath)
	case BackendOpenAI:
		return NewOpenAI(ctx, opts.APIKey,
			WithBaseURL(opts.BaseURL),
			WithModel(opts.Model),
			WithDimensions(opts.Dimensions),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, opts.Provider)
	}
}
