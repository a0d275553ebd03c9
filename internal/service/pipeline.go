// Package service orchestrates ingestion and querying over a shared index.
package service

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"docqa/internal/chunker"
	"docqa/internal/domain"
	"docqa/internal/extract"
	"docqa/internal/flashcards"
	"docqa/internal/logger"
	"docqa/internal/observability"
	"docqa/internal/synthesis"
	"docqa/internal/trace"
	"docqa/internal/vectorstore"
)

// Options configures a Pipeline.
type Options struct {
	TopK     int
	MaxCards int
}

// IngestOptions selects the optional ingestion stages.
type IngestOptions struct {
	Summarize  bool
	Flashcards bool
}

// IngestResult describes one ingested document.
type IngestResult struct {
	DocumentID  string              `json:"document_id"`
	Strategy    chunker.Strategy    `json:"strategy"`
	ChunkCount  int                 `json:"num_chunks"`
	SummaryPack *domain.SummaryPack `json:"summary_pack"`
	Flashcards  []domain.Flashcard  `json:"flashcards"`
	Trace       []trace.Entry       `json:"trace"`
}

// QueryResult is an answer with the records it was built from.
type QueryResult struct {
	Answer  string          `json:"answer"`
	Sources []domain.Record `json:"sources"`
	Trace   []trace.Entry   `json:"trace"`
}

// BatchResult summarizes a directory ingestion.
type BatchResult struct {
	Ingested []string `json:"ingested"`
	Skipped  []string `json:"skipped"`
	Chunks   int      `json:"num_chunks"`
}

// Stats describes the index behind a Pipeline.
type Stats struct {
	Vectors   int    `json:"vectors"`
	Dimension int    `json:"dimension"`
	Embedder  string `json:"embedder"`
}

// Pipeline runs the ingest and query flows. The index is the only state
// shared between calls besides the trace and the last flashcards.
type Pipeline struct {
	extractor domain.Extractor
	selector  *chunker.Selector
	embedder  domain.Embedder
	index     vectorstore.Index
	synth     *synthesis.Synthesizer
	opts      Options
	trace     *trace.Trace

	mu          sync.Mutex
	lastCards   []domain.Flashcard
	lastSummary string
}

// New wires a Pipeline. The embedder and index dimensions must agree.
func New(extractor domain.Extractor, selector *chunker.Selector, embedder domain.Embedder, index vectorstore.Index, synth *synthesis.Synthesizer, opts Options) (*Pipeline, error) {
	if embedder.Dimension() != index.Dimension() {
		return nil, fmt.Errorf("%w: embedder %s produces %d values, index expects %d",
			domain.ErrDimensionMismatch, embedder.Name(), embedder.Dimension(), index.Dimension())
	}
	if opts.TopK <= 0 {
		opts.TopK = 5
	}
	if opts.MaxCards <= 0 {
		opts.MaxCards = flashcards.DefaultMaxCards
	}
	return &Pipeline{
		extractor: extractor,
		selector:  selector,
		embedder:  embedder,
		index:     index,
		synth:     synth,
		opts:      opts,
		trace:     &trace.Trace{},
	}, nil
}

// Ingest extracts, chunks, embeds and indexes one document, then optionally
// summarizes it and derives flashcards from the summary. An empty
// documentID is replaced by a random UUID.
func (p *Pipeline) Ingest(ctx context.Context, path, documentID string, opts IngestOptions) (*IngestResult, error) {
	if documentID == "" {
		documentID = uuid.NewString()
	}
	ctx, span := observability.StartStageSpan(ctx, "ingest", attribute.String("docqa.document_id", documentID))
	defer span.End()

	ex, err := p.extract(ctx, path)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	ch := p.chunk(ctx, ex.Pages, documentID)

	em, err := p.embed(ctx, ch.Chunks)
	if err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	if _, err := p.add(ctx, em); err != nil {
		observability.RecordError(span, err)
		return nil, err
	}

	res := &IngestResult{DocumentID: documentID, Strategy: ch.Strategy, ChunkCount: len(ch.Chunks)}
	if opts.Summarize {
		sum := p.summarize(ctx, ch.Chunks)
		res.SummaryPack = &sum.Pack
		if opts.Flashcards {
			res.Flashcards = p.flashcards(ctx, sum.Pack.FinalSummary).Cards
		}
	}
	res.Trace = p.trace.Entries()
	return res, nil
}

func (p *Pipeline) extract(ctx context.Context, path string) (extractResult, error) {
	ctx, span := observability.StartStageSpan(ctx, trace.StageExtract, attribute.String("docqa.path", path))
	defer span.End()

	pages, err := p.extractor.Extract(ctx, path)
	if err != nil {
		if !errors.Is(err, domain.ErrExtraction) {
			err = fmt.Errorf("%w: %w", domain.ErrExtraction, err)
		}
		observability.RecordError(span, err)
		p.record(trace.StageExtract, nil, "extraction failed: "+err.Error())
		return extractResult{}, err
	}
	res := extractResult{Pages: pages}
	p.record(trace.StageExtract, res, fmt.Sprintf("extracted %d pages from %s", len(pages), filepath.Base(path)))
	return res, nil
}

func (p *Pipeline) chunk(ctx context.Context, pages []domain.Page, documentID string) chunkResult {
	_, span := observability.StartStageSpan(ctx, trace.StageChunk)
	defer span.End()

	chunks, strategy := p.selector.SelectAndChunk(pages)
	for i := range chunks {
		chunks[i].DocumentID = documentID
	}
	span.SetAttributes(attribute.String("docqa.strategy", string(strategy)), attribute.Int("docqa.chunks", len(chunks)))
	res := chunkResult{Chunks: chunks, Strategy: strategy}
	p.record(trace.StageChunk, res, fmt.Sprintf("created %d chunks using %s strategy", len(chunks), strategy))
	return res
}

func (p *Pipeline) embed(ctx context.Context, chunks []domain.Chunk) (embedResult, error) {
	ctx, span := observability.StartStageSpan(ctx, trace.StageEmbed, attribute.String("docqa.embedder", p.embedder.Name()))
	defer span.End()

	texts := make([]string, len(chunks))
	records := make([]domain.Record, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Text
		records[i] = domain.Record{Text: c.Text, Page: c.Page, DocumentID: c.DocumentID}
	}
	var vectors [][]float32
	if len(texts) > 0 {
		var err error
		vectors, err = p.embedTexts(ctx, texts)
		if err != nil {
			observability.RecordError(span, err)
			p.record(trace.StageEmbed, nil, "embedding failed: "+err.Error())
			return embedResult{}, err
		}
	}
	res := embedResult{Vectors: vectors, Records: records}
	p.record(trace.StageEmbed, res, fmt.Sprintf("embedded %d chunks with %s", len(vectors), p.embedder.Name()))
	return res, nil
}

func (p *Pipeline) embedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vectors, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		if !errors.Is(err, domain.ErrEmbedding) && !errors.Is(err, domain.ErrDimensionMismatch) {
			err = fmt.Errorf("%w: %w", domain.ErrEmbedding, err)
		}
		return nil, err
	}
	if len(vectors) != len(texts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", domain.ErrEmbedding, len(vectors), len(texts))
	}
	return vectors, nil
}

func (p *Pipeline) add(ctx context.Context, em embedResult) (indexResult, error) {
	ctx, span := observability.StartStageSpan(ctx, trace.StageIndex)
	defer span.End()

	if len(em.Vectors) > 0 {
		if err := p.index.Add(ctx, em.Vectors, em.Records); err != nil {
			observability.RecordError(span, err)
			p.record(trace.StageIndex, nil, "index add failed: "+err.Error())
			return indexResult{}, err
		}
	}
	res := indexResult{Added: len(em.Vectors), Total: p.index.Len()}
	p.record(trace.StageIndex, res, fmt.Sprintf("added %d vectors, index holds %d", res.Added, res.Total))
	return res, nil
}

func (p *Pipeline) summarize(ctx context.Context, chunks []domain.Chunk) summarizeResult {
	ctx, span := observability.StartStageSpan(ctx, trace.StageSummarize, attribute.Int("docqa.chunks", len(chunks)))
	defer span.End()

	pack := p.synth.Synthesize(ctx, chunks)
	p.mu.Lock()
	p.lastSummary = pack.FinalSummary
	p.lastCards = nil
	p.mu.Unlock()
	res := summarizeResult{Pack: pack}
	p.record(trace.StageSummarize, res, fmt.Sprintf("summarized %d chunks", len(pack.PerChunk)))
	return res
}

func (p *Pipeline) flashcards(ctx context.Context, summary string) flashcardsResult {
	_, span := observability.StartStageSpan(ctx, trace.StageFlashcards)
	defer span.End()

	cards := flashcards.Generate(summary, p.opts.MaxCards)
	p.mu.Lock()
	p.lastCards = cards
	p.mu.Unlock()
	res := flashcardsResult{Cards: cards}
	p.record(trace.StageFlashcards, res, fmt.Sprintf("generated %d flashcards", len(cards)))
	return res
}

// Query answers text from the topK nearest chunks. topK <= 0 uses the
// configured default. Blank text fails with domain.ErrEmptyQuery; an empty
// index yields the "nothing indexed" answer without searching.
func (p *Pipeline) Query(ctx context.Context, text string, topK int) (*QueryResult, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.ErrEmptyQuery
	}
	if topK <= 0 {
		topK = p.opts.TopK
	}
	ctx, span := observability.StartStageSpan(ctx, trace.StageQuery, attribute.Int("docqa.top_k", topK))
	defer span.End()

	if p.index.Len() == 0 {
		res := queryResult{Answer: synthesis.NoDocumentsIndexed, Sources: []domain.Record{}}
		p.record(trace.StageQuery, res, "index is empty")
		return &QueryResult{Answer: res.Answer, Sources: res.Sources, Trace: p.trace.Entries()}, nil
	}

	vecs, err := p.embedTexts(ctx, []string{text})
	if err != nil {
		observability.RecordError(span, err)
		p.record(trace.StageQuery, nil, "query embedding failed: "+err.Error())
		return nil, err
	}
	hits, err := p.index.Search(ctx, vecs[0], topK)
	if err != nil {
		observability.RecordError(span, err)
		p.record(trace.StageQuery, nil, "search failed: "+err.Error())
		return nil, err
	}
	if hits == nil {
		hits = []domain.Record{}
	}
	res := queryResult{Answer: p.synth.Answer(ctx, hits), Sources: hits}
	p.record(trace.StageQuery, res, fmt.Sprintf("retrieved %d hits", len(hits)))
	return &QueryResult{Answer: res.Answer, Sources: res.Sources, Trace: p.trace.Entries()}, nil
}

// IngestDir ingests every supported file directly inside dir, using each
// file's name without extension as its document id, and saves the index.
// Documents whose text cannot be extracted are skipped.
func (p *Pipeline) IngestDir(ctx context.Context, dir string, opts IngestOptions) (*BatchResult, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var paths []string
	for _, e := range entries {
		if !e.IsDir() && extract.Supported(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)

	out := &BatchResult{Ingested: []string{}, Skipped: []string{}}
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		res, err := p.Ingest(ctx, path, id, opts)
		if errors.Is(err, domain.ErrExtraction) {
			logger.Warn("skipping document", "path", path, "error", err)
			out.Skipped = append(out.Skipped, path)
			continue
		}
		if err != nil {
			return out, fmt.Errorf("ingest %s: %w", path, err)
		}
		logger.Info("ingested document", "path", path, "document_id", id, "chunks", res.ChunkCount)
		out.Ingested = append(out.Ingested, path)
		out.Chunks += res.ChunkCount
	}
	if err := p.Save(ctx); err != nil {
		return out, err
	}
	return out, nil
}

// Save persists the index.
func (p *Pipeline) Save(ctx context.Context) error {
	return p.index.Save(ctx)
}

// Trace returns a snapshot of every stage recorded so far.
func (p *Pipeline) Trace() []trace.Entry {
	return p.trace.Entries()
}

// Flashcards returns the cards of the last ingestion, generating them from
// the last summary when that ingestion skipped the flashcard stage.
func (p *Pipeline) Flashcards() []domain.Flashcard {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.lastCards == nil && p.lastSummary != "" {
		p.lastCards = flashcards.Generate(p.lastSummary, p.opts.MaxCards)
	}
	return append([]domain.Flashcard(nil), p.lastCards...)
}

// Stats reports the size of the index.
func (p *Pipeline) Stats() Stats {
	return Stats{Vectors: p.index.Len(), Dimension: p.index.Dimension(), Embedder: p.embedder.Name()}
}

func (p *Pipeline) record(stage string, res stageResult, logs ...string) {
	var keys []string
	if res != nil {
		keys = res.PayloadKeys()
	}
	p.trace.Append(trace.Entry{Stage: stage, Logs: logs, PayloadKeys: keys})
}
