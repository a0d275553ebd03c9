package summarizer

import (
	"context"

	"docqa/internal/domain"
)

var _ domain.AbstractiveSummarizer = None{}

// None is the abstractive summarizer for extractive-only deployments.
type None struct{}

// Summarize always reports the summarizer as unavailable.
func (None) Summarize(context.Context, string, int, int) (string, error) {
	return "", domain.ErrSummarizerUnavailable
}
