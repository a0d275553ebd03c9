package extract

import (
	"context"
	"os"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"docqa/internal/domain"
)

// readHTML returns the visible text of an HTML document as one page.
// Block elements become line breaks so headings stay on their own lines.
func readHTML(_ context.Context, _ *Extractor, path string) ([]domain.Page, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	doc, err := goquery.NewDocumentFromReader(f)
	if err != nil {
		return nil, err
	}
	doc.Find("script, style, noscript, template, nav, footer").Remove()

	root := doc.Find("body")
	if root.Length() == 0 {
		root = doc.Selection
	}
	var lines []string
	root.Find("h1, h2, h3, h4, h5, h6, p, li, pre, blockquote, td, th, dt, dd, figcaption").Each(func(_ int, s *goquery.Selection) {
		// Outer blocks already include nested block text.
		if s.ParentsFiltered("p, li, pre, blockquote, td, th, dd").Length() > 0 {
			return
		}
		if text := strings.Join(strings.Fields(s.Text()), " "); text != "" {
			lines = append(lines, text)
		}
	})
	if len(lines) == 0 {
		lines = append(lines, strings.Join(strings.Fields(root.Text()), " "))
	}
	return []domain.Page{{Number: 1, Text: strings.Join(lines, "\n")}}, nil
}
