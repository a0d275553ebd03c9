package domain

import "errors"

var (
	// ErrExtraction marks a document whose text could not be extracted.
	// Batch callers skip the document and continue.
	ErrExtraction = errors.New("extraction failed")

	// ErrDimensionMismatch marks a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrLengthMismatch marks an Add call with differing vector and metadata counts.
	ErrLengthMismatch = errors.New("vectors and metadata length mismatch")

	// ErrEmbedding marks a failed embedding call. There is no safe default vector.
	ErrEmbedding = errors.New("embedding failed")

	// ErrSummarizerUnavailable is returned by abstractive summarizers that cannot
	// serve a request. Synthesis absorbs it.
	ErrSummarizerUnavailable = errors.New("summarizer unavailable")

	// ErrEmptyQuery is returned for blank query text.
	ErrEmptyQuery = errors.New("query text cannot be empty")
)
