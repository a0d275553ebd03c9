package service

import (
	"docqa/internal/chunker"
	"docqa/internal/domain"
)

// stageResult is the typed output of one pipeline stage. PayloadKeys is the
// stable list of fields recorded in the trace.
type stageResult interface {
	PayloadKeys() []string
}

type extractResult struct {
	Pages []domain.Page
}

func (extractResult) PayloadKeys() []string { return []string{"pages"} }

type chunkResult struct {
	Chunks   []domain.Chunk
	Strategy chunker.Strategy
}

func (chunkResult) PayloadKeys() []string { return []string{"chunks", "strategy"} }

type embedResult struct {
	Vectors [][]float32
	Records []domain.Record
}

func (embedResult) PayloadKeys() []string { return []string{"vectors", "metas"} }

type indexResult struct {
	Added int
	Total int
}

func (indexResult) PayloadKeys() []string { return []string{"added", "total"} }

type summarizeResult struct {
	Pack domain.SummaryPack
}

func (summarizeResult) PayloadKeys() []string { return []string{"summary_pack"} }

type flashcardsResult struct {
	Cards []domain.Flashcard
}

func (flashcardsResult) PayloadKeys() []string { return []string{"flashcards"} }

type queryResult struct {
	Answer  string
	Sources []domain.Record
}

func (queryResult) PayloadKeys() []string { return []string{"answer", "sources"} }
