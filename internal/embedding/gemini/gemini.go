// Package gemini embeds text with the Google Generative AI embedding models.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"docqa/internal/domain"
	"docqa/internal/embedding"
)

// DefaultModel is the embedding model used when none is configured.
const DefaultModel = "text-embedding-004"

// DefaultDimension matches DefaultModel's output size.
const DefaultDimension = 768

// Gemini caps batch embedding requests at 100 inputs.
const maxBatch = 100

var _ domain.Embedder = (*Embedder)(nil)

type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// Embedder calls BatchEmbedContents for groups of texts.
type Embedder struct {
	client    *genai.Client
	embed     batchFunc
	dimension int
	batchSize int
	limiter   *rate.Limiter
}

// Config configures the Gemini embedder.
type Config struct {
	APIKeyEnv         string
	Model             string
	Dimension         int
	BatchSize         int
	RequestsPerMinute int
}

// New creates a Gemini embedder. The caller must Close it.
func New(ctx context.Context, cfg Config) (*Embedder, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	model := client.EmbeddingModel(cfg.Model)
	e := newEmbedder(cfg, func(ctx context.Context, texts []string) ([][]float32, error) {
		b := model.NewBatch()
		for _, t := range texts {
			b.AddContent(genai.Text(t))
		}
		resp, err := model.BatchEmbedContents(ctx, b)
		if err != nil {
			return nil, err
		}
		out := make([][]float32, 0, len(resp.Embeddings))
		for _, emb := range resp.Embeddings {
			if emb == nil {
				return nil, errors.New("no embedding returned")
			}
			out = append(out, emb.Values)
		}
		return out, nil
	})
	e.client = client
	return e, nil
}

func newEmbedder(cfg Config, fn batchFunc) *Embedder {
	if cfg.Dimension <= 0 {
		cfg.Dimension = DefaultDimension
	}
	if cfg.BatchSize <= 0 || cfg.BatchSize > maxBatch {
		cfg.BatchSize = maxBatch
	}
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		// RPM limit with some buffer
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)*0.9/60.0), max(1, cfg.RequestsPerMinute/10))
	}
	return &Embedder{embed: fn, dimension: cfg.Dimension, batchSize: cfg.BatchSize, limiter: limiter}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "gemini" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one normalized embedding per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, batch := range embedding.Batches(texts, e.batchSize) {
		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}
		vecs, err := e.embed(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		if len(vecs) != len(batch) {
			return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", domain.ErrEmbedding, len(vecs), len(batch))
		}
		out = append(out, vecs...)
	}
	if err := embedding.CheckDimensions(out, e.dimension); err != nil {
		return nil, err
	}
	for _, v := range out {
		embedding.Normalize(v)
	}
	return out, nil
}

// Close releases the underlying client.
func (e *Embedder) Close() error {
	if e.client != nil {
		return e.client.Close()
	}
	return nil
}
