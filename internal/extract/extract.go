// Package extract turns documents into ordered, 1-based pages of text.
package extract

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"docqa/internal/domain"
)

// DefaultOCRThreshold is the page text length below which a page counts as
// sparse and OCR is attempted where possible.
const DefaultOCRThreshold = 40

var _ domain.Extractor = (*Extractor)(nil)

// Options configures an Extractor.
type Options struct {
	OCRThreshold int
	OCRLanguage  string
}

// Extractor dispatches on file extension.
type Extractor struct {
	opts Options
}

// New creates an Extractor.
func New(opts Options) *Extractor {
	if opts.OCRThreshold <= 0 {
		opts.OCRThreshold = DefaultOCRThreshold
	}
	if opts.OCRLanguage == "" {
		opts.OCRLanguage = "eng"
	}
	return &Extractor{opts: opts}
}

// Supported reports whether path has an extension Extract understands.
func Supported(path string) bool {
	_, ok := readers[strings.ToLower(filepath.Ext(path))]
	return ok
}

type readerFunc func(ctx context.Context, e *Extractor, path string) ([]domain.Page, error)

var readers = map[string]readerFunc{
	".pdf":  readPDF,
	".txt":  readText,
	".md":   readText,
	".html": readHTML,
	".htm":  readHTML,
	".xlsx": readXLSX,
	".png":  readImage,
	".jpg":  readImage,
	".jpeg": readImage,
	".tif":  readImage,
	".tiff": readImage,
}

// Extract reads path and returns its pages. Every failure wraps
// domain.ErrExtraction.
func (e *Extractor) Extract(ctx context.Context, path string) ([]domain.Page, error) {
	ext := strings.ToLower(filepath.Ext(path))
	read, ok := readers[ext]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported file type %q", domain.ErrExtraction, ext)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrExtraction, err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	pages, err := read(ctx, e, path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", domain.ErrExtraction, filepath.Base(path), err)
	}
	for i := range pages {
		pages[i].Text = clean(pages[i].Text)
	}
	return pages, nil
}

var blankLines = regexp.MustCompile(`\n{2,}`)

// clean normalizes text to NFC, unifies line endings and collapses runs of
// blank lines.
func clean(text string) string {
	text = norm.NFC.String(text)
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	return strings.TrimSpace(blankLines.ReplaceAllString(text, "\n"))
}
