package vectorstore

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"docqa/internal/domain"
)

// WriteFileAtomic writes through a temporary file in the target directory and
// renames it into place, so a crash never leaves a half-written file behind.
// Parent directories are created as needed.
func WriteFileAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if err := write(tmp); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}

// SaveRecords writes the metadata store as indented JSON.
func SaveRecords(path string, records []domain.Record) error {
	if records == nil {
		records = []domain.Record{}
	}
	return WriteFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(records)
	})
}

// LoadRecords reads a metadata store. A missing file yields an empty store.
func LoadRecords(path string) ([]domain.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var records []domain.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("decode metadata %s: %w", path, err)
	}
	return records, nil
}

// CheckAdd validates an Add call before any state changes.
func CheckAdd(dim int, vectors [][]float32, records []domain.Record) error {
	if len(vectors) != len(records) {
		return fmt.Errorf("%w: %d vectors, %d records", domain.ErrLengthMismatch, len(vectors), len(records))
	}
	for i, v := range vectors {
		if len(v) != dim {
			return fmt.Errorf("%w: vector %d has %d values, index expects %d", domain.ErrDimensionMismatch, i, len(v), dim)
		}
	}
	return nil
}

// CheckQuery validates a search vector.
func CheckQuery(dim int, query []float32) error {
	if len(query) != dim {
		return fmt.Errorf("%w: query has %d values, index expects %d", domain.ErrDimensionMismatch, len(query), dim)
	}
	return nil
}

// CloneRecords returns a shallow copy of records.
func CloneRecords(records []domain.Record) []domain.Record {
	out := make([]domain.Record, len(records))
	copy(out, records)
	return out
}
