// Package hnsw implements the vector index on a hierarchical navigable small
// world graph, persisted as a binary graph file plus a JSON metadata file.
package hnsw

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/logger"
	"docqa/internal/vectorstore"
)

var _ vectorstore.Index = (*Index)(nil)

// Default graph parameters.
const (
	DefaultM              = 32
	DefaultEfConstruction = 200
	DefaultEfSearch       = 50
)

// Options tune graph construction and search breadth. Higher values are more
// accurate and slower.
type Options struct {
	M              int
	EfConstruction int
	EfSearch       int
	// IndexPath and MetaPath are used by Save. Either may be empty when the
	// index is never persisted.
	IndexPath string
	MetaPath  string
}

func (o Options) withDefaults() Options {
	if o.M < 2 {
		o.M = DefaultM
	}
	if o.EfConstruction <= 0 {
		o.EfConstruction = DefaultEfConstruction
	}
	if o.EfSearch <= 0 {
		o.EfSearch = DefaultEfSearch
	}
	return o
}

// Index is an HNSW graph keyed by insertion position, with a parallel
// metadata store.
type Index struct {
	mu      sync.RWMutex
	dim     int
	opts    Options
	graph   *graph
	records []domain.Record
}

// New creates an empty index of the given dimension.
func New(dim int, opts Options) (*Index, error) {
	if dim <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrDimensionMismatch, dim)
	}
	opts = opts.withDefaults()
	return &Index{dim: dim, opts: opts, graph: newGraph(dim, opts.M, opts.EfConstruction)}, nil
}

// Load reconstructs an index from opts.IndexPath and opts.MetaPath. A missing
// file leaves the index empty so first runs can bootstrap. Since vectors and
// records are only meaningful together, a missing half discards the other.
func Load(dim int, opts Options) (*Index, error) {
	idx, err := New(dim, opts)
	if err != nil {
		return nil, err
	}
	records, err := vectorstore.LoadRecords(idx.opts.MetaPath)
	if err != nil {
		return nil, err
	}
	graphFound, err := idx.importGraph(idx.opts.IndexPath)
	if err != nil {
		return nil, err
	}

	switch {
	case !graphFound && records == nil:
		return idx, nil
	case !graphFound || records == nil:
		logger.Error("index files incomplete, discarding the half that loaded and starting empty",
			"index_path", idx.opts.IndexPath, "graph_found", graphFound,
			"meta_path", idx.opts.MetaPath, "records_found", records != nil,
			"records_discarded", len(records), "vectors_discarded", idx.graph.len())
		idx.graph = newGraph(dim, idx.opts.M, idx.opts.EfConstruction)
		return idx, nil
	}
	if idx.graph.len() != len(records) {
		return nil, fmt.Errorf("%w: graph holds %d vectors but metadata holds %d records",
			domain.ErrLengthMismatch, idx.graph.len(), len(records))
	}
	idx.records = records
	return idx, nil
}

func (i *Index) importGraph(path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	defer f.Close()

	r := bufio.NewReader(f)
	h, err := readGraphHeader(r)
	if err != nil {
		return false, fmt.Errorf("import graph %s: %w", path, err)
	}
	if int(h.Dim) != i.dim {
		return false, fmt.Errorf("%w: saved graph has dimension %d, index expects %d",
			domain.ErrDimensionMismatch, h.Dim, i.dim)
	}
	if err := i.graph.importBody(r, h); err != nil {
		return false, fmt.Errorf("import graph %s: %w", path, err)
	}
	return true, nil
}

// Dimension returns the vector length accepted by the index.
func (i *Index) Dimension() int { return i.dim }

// Len returns the number of stored vectors.
func (i *Index) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return len(i.records)
}

// Add appends vectors and records. Validation happens before the graph is
// touched, so a failed call leaves the index unchanged.
func (i *Index) Add(_ context.Context, vectors [][]float32, records []domain.Record) error {
	if err := vectorstore.CheckAdd(i.dim, vectors, records); err != nil {
		return err
	}
	if len(vectors) == 0 {
		return nil
	}

	i.mu.Lock()
	defer i.mu.Unlock()

	for _, v := range vectors {
		i.graph.insert(v)
	}
	i.records = append(i.records, records...)
	return nil
}

// Search returns up to topK records ordered by ascending cosine distance.
func (i *Index) Search(_ context.Context, query []float32, topK int) ([]domain.Record, error) {
	if err := vectorstore.CheckQuery(i.dim, query); err != nil {
		return nil, err
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	if topK <= 0 || len(i.records) == 0 {
		return []domain.Record{}, nil
	}

	found := i.graph.search(query, topK, i.opts.EfSearch)
	out := make([]domain.Record, 0, len(found))
	for _, c := range found {
		out = append(out, i.records[c.id])
	}
	return out, nil
}

// Records returns a copy of the metadata store.
func (i *Index) Records() []domain.Record {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return vectorstore.CloneRecords(i.records)
}

// Save writes the index to the paths it was configured with.
func (i *Index) Save(_ context.Context) error {
	return i.SaveTo(i.opts.IndexPath, i.opts.MetaPath)
}

// SaveTo writes the graph to indexPath and the metadata to metaPath. It holds
// the read lock so the two files describe the same state.
func (i *Index) SaveTo(indexPath, metaPath string) error {
	if indexPath == "" || metaPath == "" {
		return errors.New("hnsw: index and metadata paths are required to save")
	}

	i.mu.RLock()
	defer i.mu.RUnlock()

	err := vectorstore.WriteFileAtomic(indexPath, func(w io.Writer) error {
		bw := bufio.NewWriter(w)
		if err := i.graph.export(bw); err != nil {
			return err
		}
		return bw.Flush()
	})
	if err != nil {
		return fmt.Errorf("save graph: %w", err)
	}
	if err := vectorstore.SaveRecords(metaPath, i.records); err != nil {
		return fmt.Errorf("save metadata: %w", err)
	}
	return nil
}
