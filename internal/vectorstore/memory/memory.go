// Package memory is an exact, brute-force vector index. It serves small
// corpora and acts as the recall reference for the graph index.
package memory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"

	"docqa/internal/domain"
	"docqa/internal/vectorstore"
)

var _ vectorstore.Index = (*Storage)(nil)

// Storage keeps vectors and records in memory and scans them on every search.
type Storage struct {
	mu        sync.RWMutex
	dimension int
	vectors   [][]float32
	records   []domain.Record
	path      string
}

type snapshot struct {
	Dimension int             `json:"dimension"`
	Vectors   [][]float32     `json:"vectors"`
	Records   []domain.Record `json:"records"`
}

// NewStorage creates an empty store. path is where Save writes; it may be empty.
func NewStorage(dimension int, path string) (*Storage, error) {
	if dimension <= 0 {
		return nil, fmt.Errorf("%w: dimension must be positive, got %d", domain.ErrDimensionMismatch, dimension)
	}
	return &Storage{dimension: dimension, path: path}, nil
}

// Load reads a store saved by Save. A missing file yields an empty store.
func Load(dimension int, path string) (*Storage, error) {
	s, err := NewStorage(dimension, path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, err
	}
	var snap snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	if snap.Dimension != dimension {
		return nil, fmt.Errorf("%w: saved store has dimension %d, expected %d", domain.ErrDimensionMismatch, snap.Dimension, dimension)
	}
	if err := vectorstore.CheckAdd(dimension, snap.Vectors, snap.Records); err != nil {
		return nil, fmt.Errorf("corrupt store %s: %w", path, err)
	}
	s.vectors = snap.Vectors
	s.records = snap.Records
	return s, nil
}

func (s *Storage) Dimension() int { return s.dimension }

func (s *Storage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Storage) Add(_ context.Context, vectors [][]float32, records []domain.Record) error {
	if err := vectorstore.CheckAdd(s.dimension, vectors, records); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		vec := make([]float32, len(v))
		copy(vec, v)
		s.vectors = append(s.vectors, vec)
	}
	s.records = append(s.records, records...)
	return nil
}

func (s *Storage) Search(_ context.Context, query []float32, topK int) ([]domain.Record, error) {
	if err := vectorstore.CheckQuery(s.dimension, query); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 || len(s.vectors) == 0 {
		return []domain.Record{}, nil
	}

	hits := make([]vectorstore.Hit, len(s.vectors))
	for i := range s.vectors {
		hits[i] = vectorstore.Hit{ID: i, Distance: cosineDistance(s.vectors[i], query)}
	}
	sort.SliceStable(hits, func(a, b int) bool { return hits[a].Distance < hits[b].Distance })
	if topK > len(hits) {
		topK = len(hits)
	}
	results := make([]domain.Record, topK)
	for i := 0; i < topK; i++ {
		results[i] = s.records[hits[i].ID]
	}
	return results, nil
}

func (s *Storage) Records() []domain.Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return vectorstore.CloneRecords(s.records)
}

// Save writes vectors and records to a single JSON file.
func (s *Storage) Save(_ context.Context) error {
	if s.path == "" {
		return errors.New("memory: no path configured")
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := snapshot{Dimension: s.dimension, Vectors: s.vectors, Records: s.records}
	if snap.Vectors == nil {
		snap.Vectors = [][]float32{}
		snap.Records = []domain.Record{}
	}
	return vectorstore.WriteFileAtomic(s.path, func(w io.Writer) error {
		return json.NewEncoder(w).Encode(snap)
	})
}

func cosineDistance(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 1
	}
	return float32(1 - dot/(math.Sqrt(na)*math.Sqrt(nb)))
}
