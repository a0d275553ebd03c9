// Package vectorstore defines the vector index used by the pipeline.
//
// Every backend keeps a metadata store parallel to its vectors: the record at
// position i describes the vector at position i. Add is exclusive and makes
// both sides visible together; Search may run concurrently with other
// searches but never with an in-flight Add. Backends never reorder,
// deduplicate or compact metadata independently of vectors.
package vectorstore

import (
	"context"

	"docqa/internal/domain"
)

// Index persists vectors and their metadata and supports nearest-neighbor search.
type Index interface {
	// Dimension is fixed at construction.
	Dimension() int
	// Len returns the number of stored vectors, always equal to the number of records.
	Len() int
	// Add appends vectors and records in order. It fails without side effects on
	// a count mismatch (domain.ErrLengthMismatch) or a wrong-length vector
	// (domain.ErrDimensionMismatch).
	Add(ctx context.Context, vectors [][]float32, records []domain.Record) error
	// Search returns up to topK records, nearest first. An empty index yields an
	// empty result, never an error.
	Search(ctx context.Context, query []float32, topK int) ([]domain.Record, error)
	// Records returns a copy of the metadata store in insertion order.
	Records() []domain.Record
	// Save flushes the index to durable storage. Mutations are not persisted
	// until Save is called.
	Save(ctx context.Context) error
}

// Hit pairs a vector position with its distance to a query.
type Hit struct {
	ID       int
	Distance float32
}
