package hashing

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func norm(v []float32) float64 {
	var s float64
	for _, x := range v {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s)
}

func dot(a, b []float32) float64 {
	var s float64
	for i := range a {
		s += float64(a[i]) * float64(b[i])
	}
	return s
}

func TestEmbed(t *testing.T) {
	e := NewEmbedder(64)
	assert.Equal(t, 64, e.Dimension())
	assert.Equal(t, "hashing", e.Name())

	vecs, err := e.Embed(context.Background(), []string{
		"vector indexes answer nearest neighbor queries",
		"nearest neighbor queries over a vector index",
		"the chef baked bread with rosemary",
		"...",
	})
	require.NoError(t, err)
	require.Len(t, vecs, 4)
	for _, v := range vecs {
		assert.Len(t, v, 64)
		assert.InDelta(t, 1.0, norm(v), 1e-5)
	}
	assert.Greater(t, dot(vecs[0], vecs[1]), dot(vecs[0], vecs[2]))
}

func TestEmbed_Deterministic(t *testing.T) {
	e := NewEmbedder(0)
	assert.Equal(t, DefaultDimension, e.Dimension())
	a, err := e.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	b, err := e.Embed(context.Background(), []string{"same text"})
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestEmbed_Empty(t *testing.T) {
	vecs, err := NewEmbedder(8).Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

func TestEmbed_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewEmbedder(8).Embed(ctx, []string{"x"})
	assert.ErrorIs(t, err, context.Canceled)
}
