// Package gemini implements abstractive summarization on Gemini models,
// guarded by a circuit breaker and a request rate limiter.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/api/option"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

// DefaultModel is the generative model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

var _ domain.AbstractiveSummarizer = (*Summarizer)(nil)

type generateFunc func(ctx context.Context, prompt string, maxOutputTokens int32) (string, error)

// Config configures the Gemini summarizer.
type Config struct {
	APIKeyEnv         string
	Model             string
	Temperature       float32
	RequestsPerMinute int
	// Breaker trips once at least BreakerMinRequests calls in an interval
	// failed at BreakerFailureRatio or worse.
	BreakerMinRequests  uint32
	BreakerFailureRatio float64
	BreakerOpenTimeout  time.Duration
}

// Summarizer produces abstractive summaries through a Gemini model.
type Summarizer struct {
	client   *genai.Client
	generate generateFunc
	breaker  *gobreaker.CircuitBreaker
	limiter  *rate.Limiter
}

// New creates a Gemini summarizer. The caller must Close it.
func New(ctx context.Context, cfg Config) (*Summarizer, error) {
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "GEMINI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("missing API key in env %s", cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(key))
	if err != nil {
		return nil, err
	}
	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.2
	}
	s := newSummarizer(cfg, func(ctx context.Context, prompt string, maxOutputTokens int32) (string, error) {
		model := client.GenerativeModel(cfg.Model)
		model.SetTemperature(temperature)
		model.SetMaxOutputTokens(maxOutputTokens)
		resp, err := model.GenerateContent(ctx, genai.Text(prompt))
		if err != nil {
			return "", err
		}
		return responseText(resp), nil
	})
	s.client = client
	return s, nil
}

func newSummarizer(cfg Config, fn generateFunc) *Summarizer {
	if cfg.BreakerMinRequests == 0 {
		cfg.BreakerMinRequests = 3
	}
	if cfg.BreakerFailureRatio <= 0 {
		cfg.BreakerFailureRatio = 0.6
	}
	if cfg.BreakerOpenTimeout <= 0 {
		cfg.BreakerOpenTimeout = 60 * time.Second
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "GeminiSummarizer",
		MaxRequests: 5,
		Interval:    10 * time.Second,
		Timeout:     cfg.BreakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= cfg.BreakerMinRequests && failureRatio >= cfg.BreakerFailureRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			logger.Warn("circuit breaker state change", "name", name, "from", from.String(), "to", to.String())
		},
	})
	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.RequestsPerMinute > 0 {
		// RPM limit with some buffer
		limiter = rate.NewLimiter(rate.Limit(float64(cfg.RequestsPerMinute)*0.9/60.0), max(1, cfg.RequestsPerMinute/10))
	}
	return &Summarizer{generate: fn, breaker: breaker, limiter: limiter}
}

// Summarize asks the model for a summary between minLen and maxLen words.
// Every failure is reported as ErrSummarizerUnavailable.
func (s *Summarizer) Summarize(ctx context.Context, text string, maxLen, minLen int) (string, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrSummarizerUnavailable, err)
	}
	result, err := s.breaker.Execute(func() (interface{}, error) {
		out, err := s.generate(ctx, prompt(text, maxLen, minLen), outputTokens(maxLen))
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(out) == "" {
			return nil, errors.New("empty completion")
		}
		return out, nil
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", domain.ErrSummarizerUnavailable
		}
		return "", fmt.Errorf("%w: %w", domain.ErrSummarizerUnavailable, err)
	}
	return strings.TrimSpace(result.(string)), nil
}

// Close releases the underlying client.
func (s *Summarizer) Close() error {
	if s.client != nil {
		return s.client.Close()
	}
	return nil
}

func prompt(text string, maxLen, minLen int) string {
	return fmt.Sprintf(`Summarize the following text in plain prose.
Use between %d and %d words. Do not add facts that are not in the text.

Text:
%s

Summary:`, minLen, maxLen, text)
}

// outputTokens leaves headroom over the word budget since words average
// more than one token.
func outputTokens(maxLen int) int32 {
	if maxLen <= 0 {
		return 256
	}
	return int32(maxLen*2 + 16)
}

func responseText(resp *genai.GenerateContentResponse) string {
	var result strings.Builder
	for _, candidate := range resp.Candidates {
		if candidate.Content != nil {
			for _, part := range candidate.Content.Parts {
				if text, ok := part.(genai.Text); ok {
					result.WriteString(string(text))
				}
			}
		}
	}
	return result.String()
}
