package extract

import (
	"context"
	"os"
	"strings"

	"docqa/internal/domain"
)

// readText splits plain text and markdown into pages on form feeds.
func readText(_ context.Context, _ *Extractor, path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	parts := strings.Split(string(data), "\f")
	pages := make([]domain.Page, len(parts))
	for i, p := range parts {
		pages[i] = domain.Page{Number: i + 1, Text: p}
	}
	return pages, nil
}
