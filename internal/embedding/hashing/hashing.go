// Package hashing implements an offline embedder using signed feature
// hashing of word unigrams and bigrams. It needs no corpus preparation, so
// its dimension is fixed up front and vectors stay comparable across runs.
package hashing

import (
	"context"
	"hash/fnv"
	"math"

	"docqa/internal/domain"
	"docqa/internal/embedding"
	"docqa/internal/textutil"
)

// DefaultDimension is used when no dimension is configured.
const DefaultDimension = 384

var _ domain.Embedder = (*Embedder)(nil)

// Embedder hashes tokens into a fixed number of buckets.
type Embedder struct {
	dimension int
}

// NewEmbedder creates a hashing embedder.
func NewEmbedder(dimension int) *Embedder {
	if dimension <= 0 {
		dimension = DefaultDimension
	}
	return &Embedder{dimension: dimension}
}

// Name returns the identifier of this embedder implementation.
func (e *Embedder) Name() string { return "hashing" }

// Dimension returns the dimensionality of the produced embedding vectors.
func (e *Embedder) Dimension() int { return e.dimension }

// Embed returns one unit vector per text.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		out[i] = e.embedOne(text)
	}
	return out, nil
}

func (e *Embedder) embedOne(text string) []float32 {
	vec := make([]float32, e.dimension)
	tokens := e.tokenize(text)
	tf := make(map[string]int, len(tokens))
	for i, tok := range tokens {
		tf[tok]++
		if i > 0 {
			tf[tokens[i-1]+" "+tok]++
		}
	}
	if len(tf) == 0 {
		// Texts without words still need a valid direction for cosine distance.
		vec[0] = 1
		return vec
	}
	for term, count := range tf {
		idx, sign := e.bucket(term)
		// Sublinear term frequency.
		vec[idx] += sign * float32(1+math.Log(float64(count)))
	}
	if allZero(vec) {
		vec[0] = 1
		return vec
	}
	return embedding.Normalize(vec)
}

func (e *Embedder) bucket(term string) (int, float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(term))
	sum := h.Sum64()
	sign := float32(1)
	if sum>>63 == 1 {
		sign = -1
	}
	return int(sum % uint64(e.dimension)), sign
}

func (e *Embedder) tokenize(text string) []string {
	raw := textutil.Tokens(text)
	out := raw[:0]
	for _, t := range raw {
		if textutil.IsStopword(t) {
			continue
		}
		out = append(out, t)
	}
	return out
}

func allZero(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
