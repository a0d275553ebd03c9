package hnsw

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func randomGraph(t *testing.T, n, dim int) *graph {
	t.Helper()
	r := rand.New(rand.NewSource(int64(n)))
	g := newGraph(dim, 8, 64)
	for i := 0; i < n; i++ {
		v := make([]float32, dim)
		for j := range v {
			v[j] = float32(r.NormFloat64())
		}
		g.insert(v)
	}
	return g
}

func TestGraph_EveryNodeStaysReachable(t *testing.T) {
	g := randomGraph(t, 600, 32)
	for id, n := range g.nodes {
		for l, links := range n.links {
			assert.LessOrEqual(t, len(links), g.maxLinks(l))
			if id != g.entry && len(g.nodes) > 1 {
				assert.Positive(t, n.inbound[l], "node %d layer %d", id, l)
			}
		}
	}
}

func TestGraph_SearchIsOrderedAndBounded(t *testing.T) {
	g := randomGraph(t, 300, 16)
	found := g.search(g.nodes[42].vec, 10, 50)
	require.Len(t, found, 10)
	assert.Equal(t, 42, found[0].id)
	for i := 1; i < len(found); i++ {
		assert.LessOrEqual(t, found[i-1].dist, found[i].dist)
	}
	assert.Empty(t, newGraph(16, 8, 64).search(make([]float32, 16), 3, 50))
}

func TestGraph_ExportImport(t *testing.T) {
	g := randomGraph(t, 200, 8)
	var buf bytes.Buffer
	require.NoError(t, g.export(&buf))

	h, err := readGraphHeader(&buf)
	require.NoError(t, err)
	assert.Equal(t, uint32(8), h.Dim)
	loaded := newGraph(8, 8, 64)
	require.NoError(t, loaded.importBody(&buf, h))

	assert.Equal(t, g.entry, loaded.entry)
	assert.Equal(t, g.maxLevel, loaded.maxLevel)
	assert.Equal(t, g.nodes, loaded.nodes)
}

func TestGraph_ImportRejectsCorruptFiles(t *testing.T) {
	g := randomGraph(t, 20, 4)
	var buf bytes.Buffer
	require.NoError(t, g.export(&buf))
	data := buf.Bytes()

	t.Run("bad magic", func(t *testing.T) {
		bad := append([]byte("XXXX"), data[4:]...)
		_, err := readGraphHeader(bytes.NewReader(bad))
		assert.ErrorIs(t, err, errCorruptGraph)
	})
	t.Run("truncated", func(t *testing.T) {
		r := bytes.NewReader(data[:len(data)-3])
		h, err := readGraphHeader(r)
		require.NoError(t, err)
		assert.ErrorIs(t, newGraph(4, 8, 64).importBody(r, h), errCorruptGraph)
	})
}
