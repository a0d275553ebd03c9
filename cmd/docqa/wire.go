package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"docqa/internal/chunker"
	"docqa/internal/config"
	"docqa/internal/domain"
	"docqa/internal/embedding/gemini"
	"docqa/internal/embedding/hashing"
	"docqa/internal/embedding/openai"
	"docqa/internal/extract"
	"docqa/internal/service"
	"docqa/internal/summarizer"
	summarizergemini "docqa/internal/summarizer/gemini"
	"docqa/internal/synthesis"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/hnsw"
	"docqa/internal/vectorstore/memory"
	"docqa/internal/vectorstore/qdrant"
)

// app holds the assembled pipeline and the resources to release.
type app struct {
	cfg      *config.AppConfig
	pipeline *service.Pipeline
	closers  []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

// assemble builds every component selected by cfg.
func assemble(ctx context.Context, cfg *config.AppConfig) (*app, error) {
	a := &app{cfg: cfg}

	emb, err := buildEmbedder(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	idx, err := buildIndex(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}
	sum, err := buildSummarizer(ctx, cfg, a)
	if err != nil {
		a.Close()
		return nil, err
	}

	synth := synthesis.New(sum, synthesis.Options{
		Timeout:       time.Duration(cfg.Summarizer.TimeoutSecs) * time.Second,
		MaxInputChars: cfg.Summarizer.MaxInputChars,
		Concurrency:   cfg.Summarizer.Concurrency,
	})
	ex := extract.New(extract.Options{OCRThreshold: cfg.Extract.OCRThreshold, OCRLanguage: cfg.Extract.OCRLanguage})
	sel := chunker.NewSelector(cfg.Chunker.MaxTokens, cfg.Chunker.OverlapWords)

	a.pipeline, err = service.New(ex, sel, emb, idx, synth, service.Options{TopK: cfg.Query.TopK, MaxCards: cfg.Flashcards.MaxCards})
	if err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

func buildEmbedder(ctx context.Context, cfg *config.AppConfig, a *app) (domain.Embedder, error) {
	switch cfg.Embedder.Type {
	case "hashing", "":
		return hashing.NewEmbedder(cfg.Embedder.Dimension), nil
	case "openai":
		o := cfg.Embedder.OpenAI
		if o == nil {
			return nil, fmt.Errorf("openai embedder config missing")
		}
		return openai.NewClient(openai.Config{
			BaseURL:           o.BaseURL,
			APIKeyEnv:         o.APIKeyEnv,
			Model:             o.Model,
			Dimension:         cfg.Embedder.Dimension,
			BatchSize:         o.BatchSize,
			Timeout:           time.Duration(o.TimeoutSecs) * time.Second,
			RequestsPerMinute: o.RequestsPerMinute,
		})
	case "gemini":
		g := cfg.Embedder.Gemini
		if g == nil {
			return nil, fmt.Errorf("gemini embedder config missing")
		}
		e, err := gemini.New(ctx, gemini.Config{
			APIKeyEnv:         g.APIKeyEnv,
			Model:             g.Model,
			Dimension:         cfg.Embedder.Dimension,
			RequestsPerMinute: g.RequestsPerMinute,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, e.Close)
		return e, nil
	default:
		return nil, fmt.Errorf("unknown embedder: %s", cfg.Embedder.Type)
	}
}

func buildIndex(ctx context.Context, cfg *config.AppConfig, a *app) (vectorstore.Index, error) {
	dim := cfg.Embedder.Dimension
	switch cfg.Index.Type {
	case "hnsw", "":
		return hnsw.Load(dim, hnsw.Options{
			M:              cfg.Index.M,
			EfConstruction: cfg.Index.EfConstruction,
			EfSearch:       cfg.Index.EfSearch,
			IndexPath:      cfg.IndexPath(),
			MetaPath:       cfg.MetaPath(),
		})
	case "memory":
		return memory.Load(dim, filepath.Join(cfg.Index.Dir, "index.json"))
	case "qdrant":
		q := cfg.Index.Qdrant
		if q == nil {
			return nil, fmt.Errorf("qdrant config missing")
		}
		s, err := qdrant.Open(ctx, qdrant.Config{
			Host:       q.Host,
			Port:       q.Port,
			APIKey:     os.Getenv(q.APIKeyEnv),
			Collection: q.Collection,
			Timeout:    time.Duration(q.TimeoutSecs) * time.Second,
		}, dim)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown index: %s", cfg.Index.Type)
	}
}

func buildSummarizer(ctx context.Context, cfg *config.AppConfig, a *app) (domain.AbstractiveSummarizer, error) {
	switch cfg.Summarizer.Type {
	case "none", "":
		return summarizer.None{}, nil
	case "gemini":
		g := cfg.Summarizer.Gemini
		if g == nil {
			return nil, fmt.Errorf("gemini summarizer config missing")
		}
		s, err := summarizergemini.New(ctx, summarizergemini.Config{
			APIKeyEnv:           g.APIKeyEnv,
			Model:               g.Model,
			RequestsPerMinute:   g.RequestsPerMinute,
			BreakerMinRequests:  cfg.Summarizer.BreakerMinRequests,
			BreakerFailureRatio: cfg.Summarizer.BreakerFailureRatio,
			BreakerOpenTimeout:  time.Duration(cfg.Summarizer.BreakerOpenSecs) * time.Second,
		})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, s.Close)
		return s, nil
	default:
		return nil, fmt.Errorf("unknown summarizer: %s", cfg.Summarizer.Type)
	}
}
