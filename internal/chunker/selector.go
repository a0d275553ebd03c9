// Package chunker splits extracted pages into retrievable chunks, choosing a
// strategy per document from its structure.
package chunker

import (
	"strings"
	"unicode/utf8"

	"docqa/internal/domain"
)

// Strategy names the chunking mode chosen for a document.
type Strategy string

const (
	StrategyNone     Strategy = "none"
	StrategyHeadings Strategy = "headings"
	StrategySlides   Strategy = "slides"
	StrategyWindow   Strategy = "fixed_tokens"
)

const (
	// DefaultMaxTokens is the token budget of a fixed-token window.
	DefaultMaxTokens = 200
	// DefaultOverlapWords is the number of words carried into the next window.
	DefaultOverlapWords = 20

	densityThreshold = 200
)

// Selector picks a chunking strategy from heading density and average page
// length, then applies it.
type Selector struct {
	window *WindowChunker
}

// NewSelector creates a selector whose fixed-token mode uses the given budget
// and word overlap. Non-positive values fall back to defaults.
func NewSelector(maxTokens, overlapWords int) *Selector {
	return &Selector{window: NewWindowChunker(maxTokens, overlapWords)}
}

// Chunk splits pages using the selected strategy.
func (s *Selector) Chunk(pages []domain.Page) []domain.Chunk {
	chunks, _ := s.SelectAndChunk(pages)
	return chunks
}

// SelectAndChunk decides the strategy once for the whole document and returns
// the chunks it produced together with the decision.
func (s *Selector) SelectAndChunk(pages []domain.Page) ([]domain.Chunk, Strategy) {
	if len(pages) == 0 {
		return nil, StrategyNone
	}
	strategy := Select(pages)
	switch strategy {
	case StrategyHeadings:
		return ByHeadings(pages), strategy
	case StrategySlides:
		return BySlides(pages), strategy
	default:
		return s.window.Chunk(pages), strategy
	}
}

// Select returns the strategy for pages. Heading detection is checked first,
// so short pages with headings still fall through to slide mode only when
// the heading rule does not apply.
func Select(pages []domain.Page) Strategy {
	if len(pages) == 0 {
		return StrategyNone
	}
	total := 0
	hasHeadings := false
	for _, p := range pages {
		total += utf8.RuneCountInString(p.Text)
		lower := strings.ToLower(p.Text)
		if strings.Contains(lower, "chapter") || strings.Contains(lower, "section") {
			hasHeadings = true
		}
	}
	avgLen := float64(total) / float64(max(1, len(pages)))

	if hasHeadings && avgLen > densityThreshold {
		return StrategyHeadings
	}
	if avgLen < densityThreshold {
		return StrategySlides
	}
	return StrategyWindow
}

// BySlides emits one chunk per non-blank page, verbatim.
func BySlides(pages []domain.Page) []domain.Chunk {
	chunks := make([]domain.Chunk, 0, len(pages))
	for _, p := range pages {
		if strings.TrimSpace(p.Text) == "" {
			continue
		}
		chunks = append(chunks, domain.Chunk{Text: p.Text, Page: domain.IntPtr(p.Number)})
	}
	return chunks
}
