package synthesis

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/summarizer"
	"docqa/internal/textutil"
)

// Strategy produces a summary of text or reports that it cannot.
type Strategy interface {
	Name() string
	Apply(ctx context.Context, text string) (string, bool)
}

// cascade returns the result of the first strategy that succeeds. When every
// strategy declines, the trimmed input is returned.
func cascade(ctx context.Context, text string, strategies ...Strategy) string {
	for _, s := range strategies {
		if out, ok := s.Apply(ctx, text); ok {
			return out
		}
	}
	return strings.TrimSpace(text)
}

// shortInput hands inputs too short for abstraction to a small extractive
// filter. Longer inputs are declined.
type shortInput struct {
	minChars int
	topK     int
}

func (s shortInput) Name() string { return "short_input" }

func (s shortInput) Apply(_ context.Context, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || utf8.RuneCountInString(trimmed) >= s.minChars {
		return "", false
	}
	return summarizer.ExtractiveFilter(trimmed, s.topK), true
}

// abstractive calls the configured summarizer with a bounded input and a
// timeout. Failures, timeouts and degenerate output are logged and declined.
type abstractive struct {
	summarizer    domain.AbstractiveSummarizer
	maxLen        int
	minLen        int
	maxInputChars int
	timeout       time.Duration
}

func (a abstractive) Name() string { return "abstractive" }

func (a abstractive) Apply(ctx context.Context, text string) (string, bool) {
	if a.summarizer == nil {
		return "", false
	}
	input := text
	if a.maxInputChars > 0 && utf8.RuneCountInString(input) > a.maxInputChars {
		input = string([]rune(input)[:a.maxInputChars])
	}
	if a.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.timeout)
		defer cancel()
	}
	out, err := a.summarizer.Summarize(ctx, input, a.maxLen, a.minLen)
	if err != nil {
		if !errors.Is(err, domain.ErrSummarizerUnavailable) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("abstractive summarization failed, falling back", "error", err)
		} else {
			logger.Debug("abstractive summarizer unavailable", "error", err)
		}
		return "", false
	}
	out = strings.TrimSpace(out)
	if out == "" || !textutil.HasContent(out) {
		logger.Warn("abstractive summarization returned degenerate output, falling back", "output", out)
		return "", false
	}
	return out, true
}

// extractive keeps the topK highest scoring sentences. When that does not
// shorten an input longer than limit, it declines so truncation can run.
type extractive struct {
	topK  int
	limit int
}

func (e extractive) Name() string { return "extractive" }

func (e extractive) Apply(_ context.Context, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	out := strings.TrimSpace(summarizer.ExtractiveFilter(trimmed, e.topK))
	if out == "" {
		return "", false
	}
	n := utf8.RuneCountInString(trimmed)
	if e.limit > 0 && n > e.limit && utf8.RuneCountInString(out) >= n {
		return "", false
	}
	return out, true
}

// truncate is the terminal strategy. It succeeds for any non-blank input.
type truncate struct {
	limit int
}

func (t truncate) Name() string { return "truncate" }

func (t truncate) Apply(_ context.Context, text string) (string, bool) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false
	}
	return textutil.Truncate(trimmed, t.limit), true
}
