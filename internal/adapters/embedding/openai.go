package embedding

import (
	"context"
	"fmt"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/okian/bookrec/internal/domain/model"
	"github.com/okian/bookrec/pkg/metrics"
)

const defaultOpenAIModel = "text-embedding-3-small"

// OpenAI encodes texts with an OpenAI-compatible embeddings endpoint.
type OpenAI struct {
	client     *openai.Client
	model      string
	baseURL    string
	dimensions int

	// requested is sent with every call; zero leaves the width to the model.
	requested int
}

// OpenAIOption applies a configuration option to the OpenAI backend.
type OpenAIOption func(*OpenAI)

// WithBaseURL points the client at a compatible provider.
func WithBaseURL(url string) OpenAIOption {
	return func(o *OpenAI) {
		if url != "" {
			o.baseURL = url
		}
	}
}

// WithModel sets the embedding model name.
func WithModel(name string) OpenAIOption {
	return func(o *OpenAI) {
		if name != "" {
			o.model = name
		}
	}
}

// WithDimensions requests a fixed output width.
func WithDimensions(n int) OpenAIOption {
	return func(o *OpenAI) {
		if n > 0 {
			o.requested = n
		}
	}
}

// NewOpenAI creates the backend. When no width is configured one sample
// request is made to learn it, so the width is fixed before serving.
func NewOpenAI(ctx context.Context, apiKey string, opts ...OpenAIOption) (*OpenAI, error) {
	o := &OpenAI{model: defaultOpenAIModel}
	for _, opt := range opts {
		opt(o)
	}

	cfg := openai.DefaultConfig(apiKey)
	if o.baseURL != "" {
		cfg.BaseURL = o.baseURL
	}
	o.client = openai.NewClientWithConfig(cfg)

	o.dimensions = o.requested
	if o.dimensions == 0 {
		vecs, err := o.create(ctx, []string{"width sample"})
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrLoadModel, err)
		}
		o.dimensions = len(vecs[0])
	}
	return o, nil
}

// Encode returns one embedding per text; empty input makes no request.
func (o *OpenAI) Encode(ctx context.Context, texts []string) ([]model.Embedding, error) {
	if len(texts) == 0 {
		return []model.Embedding{}, nil
	}
	start := time.Now()
	out, err := o.create(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrEncode, err)
	}
	for i, v := range out {
		if len(v) != o.dimensions {
			return nil, fmt.Errorf("%w: item %d has width %d, want %d", ErrEncode, i, len(v), o.dimensions)
		}
	}
	metrics.RecordEmbeddingLatency(float64(time.Since(start).Milliseconds()), len(texts))
	return out, nil
}

func (o *OpenAI) create(ctx context.Context, texts []string) ([]model.Embedding, error) {
	req := openai.EmbeddingRequest{
		Input:      texts,
		Model:      openai.EmbeddingModel(o.model),
		Dimensions: o.requested,
	}
	resp, err := o.client.CreateEmbeddings(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d texts", len(resp.Data), len(texts))
	}

	// Data is matched back to inputs by index, not response order.
	out := make([]model.Embedding, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(out) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// Dimensions returns the embedding width.
func (o *OpenAI) Dimensions() int { return o.dimensions }

// Backend returns BackendOpenAI.
func (o *OpenAI) Backend() string { return BackendOpenAI }
