package chunker

import (
	"fmt"
	"strings"

	"docqa/internal/domain"
	"docqa/internal/textutil"
)

// WindowChunker joins all pages and packs sentences into windows bounded by a
// token budget, seeding each window with the tail words of the previous one.
type WindowChunker struct {
	maxTokens    int
	overlapWords int
}

// NewWindowChunker creates a fixed-token chunker.
func NewWindowChunker(maxTokens, overlapWords int) *WindowChunker {
	if maxTokens <= 0 {
		maxTokens = DefaultMaxTokens
	}
	if overlapWords < 0 {
		overlapWords = 0
	}
	return &WindowChunker{maxTokens: maxTokens, overlapWords: overlapWords}
}

// Chunk returns windows over the joined text. Page boundaries survive only as
// inline "[page N]" markers, so chunks carry no page number.
func (c *WindowChunker) Chunk(pages []domain.Page) []domain.Chunk {
	parts := make([]string, 0, len(pages))
	for _, p := range pages {
		parts = append(parts, fmt.Sprintf("[page %d]\n%s", p.Number, p.Text))
	}
	sentences := textutil.Sentences(strings.Join(parts, "\n"))

	var (
		chunks    []domain.Chunk
		cur       string
		curTokens int
	)
	for _, sent := range sentences {
		n := textutil.EstimateTokens(sent)
		if curTokens+n > c.maxTokens && strings.TrimSpace(cur) != "" {
			chunks = append(chunks, domain.Chunk{Text: strings.TrimSpace(cur)})
			seed := strings.Join(textutil.LastWords(cur, c.overlapWords), " ")
			cur = seed + " " + sent
			curTokens = textutil.EstimateTokens(cur)
			continue
		}
		cur += " " + sent
		curTokens += n
	}
	if text := strings.TrimSpace(cur); text != "" {
		chunks = append(chunks, domain.Chunk{Text: text})
	}
	return chunks
}
