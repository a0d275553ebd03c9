// Package trace records pipeline stage executions for explainability.
package trace

import "sync"

// Stage names appended by the pipeline.
const (
	StageExtract    = "extract"
	StageChunk      = "chunk"
	StageEmbed      = "embed"
	StageIndex      = "index"
	StageSummarize  = "summarize"
	StageFlashcards = "flashcards"
	StageQuery      = "query"
)

// Entry is one stage execution. PayloadKeys lists the fields the stage's
// result carried.
type Entry struct {
	Stage       string   `json:"stage"`
	Logs        []string `json:"logs"`
	PayloadKeys []string `json:"payload_keys"`
}

// Trace is an append-only, process-lifetime log of entries. It is safe for
// concurrent use.
type Trace struct {
	mu      sync.Mutex
	entries []Entry
}

// Append records an entry.
func (t *Trace) Append(e Entry) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.entries = append(t.entries, Entry{
		Stage:       e.Stage,
		Logs:        append([]string(nil), e.Logs...),
		PayloadKeys: append([]string(nil), e.PayloadKeys...),
	})
}

// Entries returns a snapshot of all entries in append order.
func (t *Trace) Entries() []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]Entry, len(t.entries))
	copy(out, t.entries)
	return out
}

// Len returns the number of recorded entries.
func (t *Trace) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}
