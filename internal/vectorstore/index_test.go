package vectorstore_test

import (
	"bytes"
	"context"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
	"docqa/internal/embedding/hashing"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
	"docqa/internal/vectorstore/hnsw"
	"docqa/internal/vectorstore/memory"
)

const dim = 16

type backend struct {
	name string
	make func(t *testing.T) vectorstore.Index
}

func backends() []backend {
	return []backend{
		{"hnsw", func(t *testing.T) vectorstore.Index {
			idx, err := hnsw.New(dim, hnsw.Options{})
			require.NoError(t, err)
			return idx
		}},
		{"memory", func(t *testing.T) vectorstore.Index {
			s, err := memory.NewStorage(dim, "")
			require.NoError(t, err)
			return s
		}},
	}
}

func randomVectors(r *rand.Rand, n int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		v := make([]float32, dim)
		var norm float64
		for j := range v {
			v[j] = float32(r.NormFloat64())
			norm += float64(v[j]) * float64(v[j])
		}
		for j := range v {
			v[j] /= float32(math.Sqrt(norm))
		}
		out[i] = v
	}
	return out
}

func recordsFor(start, n int) []domain.Record {
	out := make([]domain.Record, n)
	for i := range out {
		out[i] = domain.Record{Text: fmt.Sprintf("chunk %d", start+i), Page: domain.IntPtr(start + i + 1), DocumentID: "doc"}
	}
	return out
}

func TestIndexContract(t *testing.T) {
	ctx := context.Background()
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			t.Run("empty search", func(t *testing.T) {
				idx := b.make(t)
				hits, err := idx.Search(ctx, make([]float32, dim), 5)
				require.NoError(t, err)
				assert.NotNil(t, hits)
				assert.Empty(t, hits)
			})

			t.Run("self retrieval", func(t *testing.T) {
				idx := b.make(t)
				vecs := randomVectors(rand.New(rand.NewSource(7)), 100)
				require.NoError(t, idx.Add(ctx, vecs, recordsFor(0, 100)))
				for i, v := range vecs {
					hits, err := idx.Search(ctx, v, 3)
					require.NoError(t, err)
					require.NotEmpty(t, hits)
					assert.Equal(t, fmt.Sprintf("chunk %d", i), hits[0].Text)
				}
			})

			t.Run("fewer hits than topK", func(t *testing.T) {
				idx := b.make(t)
				vecs := randomVectors(rand.New(rand.NewSource(1)), 3)
				require.NoError(t, idx.Add(ctx, vecs, recordsFor(0, 3)))
				hits, err := idx.Search(ctx, vecs[0], 10)
				require.NoError(t, err)
				assert.Len(t, hits, 3)
			})

			t.Run("alignment survives failed adds", func(t *testing.T) {
				idx := b.make(t)
				r := rand.New(rand.NewSource(3))
				for round := 0; round < 5; round++ {
					require.NoError(t, idx.Add(ctx, randomVectors(r, 4), recordsFor(round*4, 4)))
					assert.Equal(t, len(idx.Records()), idx.Len())
				}

				err := idx.Add(ctx, randomVectors(r, 2), recordsFor(0, 1))
				assert.ErrorIs(t, err, domain.ErrLengthMismatch)

				bad := randomVectors(r, 2)
				bad[1] = bad[1][:dim-1]
				err = idx.Add(ctx, bad, recordsFor(0, 2))
				assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

				assert.Equal(t, 20, idx.Len())
				assert.Len(t, idx.Records(), 20)
			})

			t.Run("records keep insertion order", func(t *testing.T) {
				idx := b.make(t)
				r := rand.New(rand.NewSource(5))
				require.NoError(t, idx.Add(ctx, randomVectors(r, 2), recordsFor(0, 2)))
				require.NoError(t, idx.Add(ctx, randomVectors(r, 2), recordsFor(2, 2)))
				recs := idx.Records()
				for i, rec := range recs {
					assert.Equal(t, fmt.Sprintf("chunk %d", i), rec.Text)
				}
			})

			t.Run("query dimension mismatch", func(t *testing.T) {
				idx := b.make(t)
				_, err := idx.Search(ctx, make([]float32, dim+1), 1)
				assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
			})

			t.Run("concurrent readers and writer", func(t *testing.T) {
				idx := b.make(t)
				r := rand.New(rand.NewSource(11))
				batches := make([][][]float32, 10)
				for i := range batches {
					batches[i] = randomVectors(r, 5)
				}
				query := randomVectors(r, 1)[0]

				var wg sync.WaitGroup
				wg.Add(1)
				go func() {
					defer wg.Done()
					for i, batch := range batches {
						assert.NoError(t, idx.Add(ctx, batch, recordsFor(i*5, 5)))
					}
				}()
				for i := 0; i < 4; i++ {
					wg.Add(1)
					go func() {
						defer wg.Done()
						for j := 0; j < 20; j++ {
							_, err := idx.Search(ctx, query, 3)
							assert.NoError(t, err)
							assert.Equal(t, 0, idx.Len()%5)
						}
					}()
				}
				wg.Wait()
				assert.Equal(t, 50, idx.Len())
			})
		})
	}
}

func TestHNSW_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := hnsw.Options{
		IndexPath: filepath.Join(dir, "nested", "index.hnsw"),
		MetaPath:  filepath.Join(dir, "nested", "metadata.json"),
	}
	idx, err := hnsw.New(dim, opts)
	require.NoError(t, err)

	r := rand.New(rand.NewSource(42))
	vecs := randomVectors(r, 50)
	require.NoError(t, idx.Add(ctx, vecs, recordsFor(0, 50)))
	query := randomVectors(r, 1)[0]
	before, err := idx.Search(ctx, query, 5)
	require.NoError(t, err)

	require.NoError(t, idx.Save(ctx))

	loaded, err := hnsw.Load(dim, opts)
	require.NoError(t, err)
	assert.Equal(t, 50, loaded.Len())
	after, err := loaded.Search(ctx, query, 5)
	require.NoError(t, err)
	assert.Equal(t, before, after)

	records, err := vectorstore.LoadRecords(opts.MetaPath)
	require.NoError(t, err)
	assert.Equal(t, idx.Records(), records)
}

func TestHNSW_LoadMissingFiles(t *testing.T) {
	dir := t.TempDir()
	idx, err := hnsw.Load(dim, hnsw.Options{
		IndexPath: filepath.Join(dir, "index.hnsw"),
		MetaPath:  filepath.Join(dir, "metadata.json"),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, idx.Len())
}

func TestHNSW_LoadMissingMetadataStartsEmpty(t *testing.T) {
	var logs bytes.Buffer
	logger.Init("warn", "text", &logs)
	t.Cleanup(func() { logger.Init("warn", "text", os.Stderr) })

	ctx := context.Background()
	dir := t.TempDir()
	opts := hnsw.Options{IndexPath: filepath.Join(dir, "index.hnsw"), MetaPath: filepath.Join(dir, "metadata.json")}
	idx, err := hnsw.New(dim, opts)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, randomVectors(rand.New(rand.NewSource(2)), 3), recordsFor(0, 3)))
	require.NoError(t, idx.SaveTo(opts.IndexPath, filepath.Join(dir, "elsewhere.json")))

	loaded, err := hnsw.Load(dim, opts)
	require.NoError(t, err)
	assert.Equal(t, 0, loaded.Len())
	hits, err := loaded.Search(ctx, make([]float32, dim), 3)
	require.NoError(t, err)
	assert.Empty(t, hits)
	assert.Contains(t, logs.String(), "level=ERROR")
	assert.Contains(t, logs.String(), "vectors_discarded=3")
}

func TestHNSW_LoadDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	opts := hnsw.Options{IndexPath: filepath.Join(dir, "index.hnsw"), MetaPath: filepath.Join(dir, "metadata.json")}
	idx, err := hnsw.New(dim, opts)
	require.NoError(t, err)
	require.NoError(t, idx.Add(ctx, randomVectors(rand.New(rand.NewSource(2)), 3), recordsFor(0, 3)))
	require.NoError(t, idx.Save(ctx))

	_, err = hnsw.Load(dim*2, opts)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestNewRejectsBadDimension(t *testing.T) {
	_, err := hnsw.New(0, hnsw.Options{})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
	_, err = memory.NewStorage(-1, "")
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestMemory_SaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.json")
	s, err := memory.NewStorage(dim, path)
	require.NoError(t, err)
	r := rand.New(rand.NewSource(9))
	vecs := randomVectors(r, 10)
	require.NoError(t, s.Add(ctx, vecs, recordsFor(0, 10)))
	require.NoError(t, s.Save(ctx))

	loaded, err := memory.Load(dim, path)
	require.NoError(t, err)
	want, err := s.Search(ctx, vecs[3], 4)
	require.NoError(t, err)
	got, err := loaded.Search(ctx, vecs[3], 4)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}

// syntheticPassages returns n distinct passages of 40 pseudo-words each.
func syntheticPassages(n int) []string {
	syllables := []string{"ka", "lo", "mi", "ne", "ru", "sa", "to", "vi", "ze", "qu", "bra", "dex", "fin", "gor", "hul", "jen"}
	r := rand.New(rand.NewSource(99))
	word := func() string {
		var b strings.Builder
		for i := 0; i < 3; i++ {
			b.WriteString(syllables[r.Intn(len(syllables))])
		}
		return b.String()
	}
	out := make([]string, n)
	for i := range out {
		words := make([]string, 40)
		for j := range words {
			words[j] = word()
		}
		out[i] = strings.Join(words, " ")
	}
	return out
}

func TestHNSW_SelfRetrievalAtScale(t *testing.T) {
	ctx := context.Background()
	const n = 1500
	passages := syntheticPassages(n)
	emb := hashing.NewEmbedder(384)
	vecs, err := emb.Embed(ctx, passages)
	require.NoError(t, err)

	records := make([]domain.Record, n)
	for i, p := range passages {
		records[i] = domain.Record{Text: p, DocumentID: fmt.Sprintf("doc-%d", i)}
	}
	idx, err := hnsw.New(emb.Dimension(), hnsw.Options{})
	require.NoError(t, err)
	// Ingest in document-sized batches, as the pipeline does.
	for start := 0; start < n; start += 50 {
		require.NoError(t, idx.Add(ctx, vecs[start:start+50], records[start:start+50]))
	}

	for _, topK := range []int{1, 5} {
		misses := 0
		for i, v := range vecs {
			hits, err := idx.Search(ctx, v, topK)
			require.NoError(t, err)
			require.NotEmpty(t, hits)
			if hits[0].DocumentID != records[i].DocumentID {
				misses++
			}
		}
		assert.Zero(t, misses, "topK=%d", topK)
	}
}

func TestHNSW_SelfRetrievalRandomUnitVectors(t *testing.T) {
	ctx := context.Background()
	for _, d := range []int{16, 64, 384} {
		t.Run(fmt.Sprintf("dim %d", d), func(t *testing.T) {
			r := rand.New(rand.NewSource(int64(d)))
			vecs := make([][]float32, 1000)
			for i := range vecs {
				v := make([]float32, d)
				for j := range v {
					v[j] = float32(r.NormFloat64())
				}
				vecs[i] = v
			}
			idx, err := hnsw.New(d, hnsw.Options{})
			require.NoError(t, err)
			require.NoError(t, idx.Add(ctx, vecs, recordsFor(0, len(vecs))))

			misses := 0
			for i, v := range vecs {
				hits, err := idx.Search(ctx, v, 1)
				require.NoError(t, err)
				require.Len(t, hits, 1)
				if hits[0].Text != fmt.Sprintf("chunk %d", i) {
					misses++
				}
			}
			assert.Zero(t, misses)
		})
	}
}
