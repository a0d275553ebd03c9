package domain

import "context"

// Page is one extracted page of a document. Numbers are 1-based.
type Page struct {
	Number int
	Text   string
}

// Chunk is a contiguous, retrievable span of document text.
// Page is nil when the chunking strategy does not track pages.
type Chunk struct {
	Text       string
	Page       *int
	DocumentID string
}

// Record is the metadata stored alongside each vector in an index.
// Its position in the metadata store equals its vector's position.
type Record struct {
	Text       string `json:"text"`
	Page       *int   `json:"page"`
	DocumentID string `json:"document_id,omitempty"`
}

// ChunkSummary is the per-chunk part of a SummaryPack.
type ChunkSummary struct {
	Page     *int   `json:"page"`
	Summary  string `json:"summary"`
	Original string `json:"orig"`
}

// SummaryPack is the result of synthesizing a set of chunks.
// FinalSummary is never empty.
type SummaryPack struct {
	PerChunk     []ChunkSummary `json:"per_chunk"`
	FinalSummary string         `json:"final_summary"`
}

// Flashcard is a question/answer pair derived from a summary.
type Flashcard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Source   string `json:"source"`
}

// Extractor turns a document into ordered pages of raw text.
type Extractor interface {
	Extract(ctx context.Context, path string) ([]Page, error)
}

// Embedder converts texts into fixed-dimension, L2-normalized vectors.
// Embed(nil) returns an empty result without error.
type Embedder interface {
	Name() string
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// AbstractiveSummarizer generates a new, shorter text. maxLen and minLen are
// expressed in words. Implementations return ErrSummarizerUnavailable when the
// backend cannot serve the request.
type AbstractiveSummarizer interface {
	Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error)
}

// IntPtr returns a pointer to a copy of v.
func IntPtr(v int) *int { return &v }
