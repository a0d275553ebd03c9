// Package synthesis turns chunks into summaries and answers. Every entry
// point returns usable text: abstractive failures fall back to extractive
// selection and finally to plain truncation.
package synthesis

import (
	"context"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"docqa/internal/domain"
	"docqa/internal/summarizer"
)

// Fixed user-facing messages.
const (
	NoContent             = "No content available for summarization."
	NoValidContent        = "No valid content found for summarization."
	NoDocumentsIndexed    = "No documents have been indexed yet. Please upload and process a PDF first."
	NoRelevantInformation = "No relevant information found in the indexed documents. Please ensure the PDF has been processed and indexed."
)

// Options tunes the cascade budgets. Zero values take defaults.
type Options struct {
	Timeout       time.Duration
	MaxInputChars int
	Concurrency   int
}

// Synthesizer produces SummaryPacks and query answers.
type Synthesizer struct {
	perChunk []Strategy
	final    []Strategy
	workers  int
}

// New creates a Synthesizer. A nil summarizer runs extractive-only.
func New(s domain.AbstractiveSummarizer, opts Options) *Synthesizer {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.MaxInputChars <= 0 {
		opts.MaxInputChars = 512
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 4
	}
	short := shortInput{minChars: 30, topK: 2}
	return &Synthesizer{
		perChunk: []Strategy{
			short,
			abstractive{summarizer: s, maxLen: 120, minLen: 40, maxInputChars: opts.MaxInputChars, timeout: opts.Timeout},
			extractive{topK: 3, limit: 200},
			truncate{limit: 200},
		},
		final: []Strategy{
			short,
			abstractive{summarizer: s, maxLen: 300, minLen: 100, maxInputChars: opts.MaxInputChars, timeout: opts.Timeout},
			extractive{topK: 5, limit: 500},
			truncate{limit: 500},
		},
		workers: opts.Concurrency,
	}
}

// Synthesize summarizes each non-blank chunk, then the merged summaries.
func (s *Synthesizer) Synthesize(ctx context.Context, chunks []domain.Chunk) domain.SummaryPack {
	if len(chunks) == 0 {
		return domain.SummaryPack{PerChunk: []domain.ChunkSummary{}, FinalSummary: NoContent}
	}

	var kept []domain.Chunk
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) != "" {
			kept = append(kept, c)
		}
	}
	if len(kept) == 0 {
		return domain.SummaryPack{PerChunk: []domain.ChunkSummary{}, FinalSummary: NoValidContent}
	}

	perChunk := make([]domain.ChunkSummary, len(kept))
	g := new(errgroup.Group)
	g.SetLimit(s.workers)
	for i, c := range kept {
		g.Go(func() error {
			filtered := summarizer.ExtractiveFilter(c.Text, summarizer.DefaultTopK)
			perChunk[i] = domain.ChunkSummary{
				Page:     c.Page,
				Summary:  cascade(ctx, filtered, s.perChunk...),
				Original: c.Text,
			}
			return nil
		})
	}
	_ = g.Wait()

	merged := joinNonBlank(perChunk, func(cs domain.ChunkSummary) string { return cs.Summary })
	if strings.TrimSpace(merged) == "" {
		merged = joinNonBlank(perChunk, func(cs domain.ChunkSummary) string { return cs.Original })
	}
	final := cascade(ctx, merged, s.final...)
	if final == "" {
		final = NoValidContent
	}
	return domain.SummaryPack{PerChunk: perChunk, FinalSummary: final}
}

// Answer summarizes retrieved records into a single response.
func (s *Synthesizer) Answer(ctx context.Context, hits []domain.Record) string {
	if len(hits) == 0 {
		return NoRelevantInformation
	}
	texts := make([]string, len(hits))
	for i, h := range hits {
		texts[i] = h.Text
	}
	pack := s.Synthesize(ctx, []domain.Chunk{{Text: strings.Join(texts, "\n")}})
	if pack.FinalSummary == NoValidContent {
		return NoRelevantInformation
	}
	return pack.FinalSummary
}

func joinNonBlank(items []domain.ChunkSummary, field func(domain.ChunkSummary) string) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		if v := field(it); strings.TrimSpace(v) != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, " ")
}
