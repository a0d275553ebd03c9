package extract

import (
	"context"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"

	"docqa/internal/domain"
	"docqa/internal/logger"
)

func readPDF(ctx context.Context, e *Extractor, path string) ([]domain.Page, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create PDF reader: %w", err)
	}
	defer f.Close()

	n := reader.NumPage()
	pages := make([]domain.Page, 0, n)
	sparse := 0
	for i := 1; i <= n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		page := reader.Page(i)
		text := ""
		if !page.V.IsNull() {
			fonts := make(map[string]*pdf.Font)
			text, err = page.GetPlainText(fonts)
			if err != nil {
				logger.Warn("failed to extract text from page", "path", path, "page", i, "error", err)
				text = ""
			}
		}
		if utf8.RuneCountInString(strings.TrimSpace(text)) < e.opts.OCRThreshold {
			sparse++
		}
		pages = append(pages, domain.Page{Number: i, Text: text})
	}
	if sparse > 0 {
		// ledongthuc/pdf exposes no encoded image streams, so scanned pages
		// can only be OCRed after conversion to an image file.
		logger.Warn("pdf has pages with little extractable text", "path", path, "pages", sparse, "threshold", e.opts.OCRThreshold)
	}
	if n == 0 {
		return nil, fmt.Errorf("pdf has no pages")
	}
	return pages, nil
}

// readImage OCRs a single image file as one page.
func readImage(_ context.Context, e *Extractor, path string) ([]domain.Page, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	text, err := recognize(e.opts.OCRLanguage, data)
	if err != nil {
		return nil, err
	}
	return []domain.Page{{Number: 1, Text: text}}, nil
}
