package extract

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"docqa/internal/domain"
)

// readXLSX returns one page per sheet. Rows become lines with cells
// separated by tabs.
func readXLSX(ctx context.Context, _ *Extractor, path string) ([]domain.Page, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var pages []domain.Page
	for i, sheet := range f.GetSheetList() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, err
		}
		lines := []string{sheet}
		for _, row := range rows {
			if line := strings.TrimSpace(strings.Join(row, "\t")); line != "" {
				lines = append(lines, line)
			}
		}
		pages = append(pages, domain.Page{Number: i + 1, Text: strings.Join(lines, "\n")})
	}
	return pages, nil
}
