package chunker

import (
	"strings"
	"unicode"

	"docqa/internal/domain"
)

// ByHeadings scans lines and starts a new chunk at every heading. The flushed
// chunk is tagged with the page tracked before the heading; the tracked page
// then moves to the heading's page. Text before the first heading belongs to
// the first page.
func ByHeadings(pages []domain.Page) []domain.Chunk {
	if len(pages) == 0 {
		return nil
	}
	var (
		chunks  []domain.Chunk
		buf     strings.Builder
		curPage = pages[0].Number
	)
	flush := func() {
		if text := strings.TrimSpace(buf.String()); text != "" {
			chunks = append(chunks, domain.Chunk{Text: text, Page: domain.IntPtr(curPage)})
		}
		buf.Reset()
	}
	for _, p := range pages {
		for _, line := range strings.Split(p.Text, "\n") {
			if IsHeading(line) {
				flush()
				curPage = p.Number
			}
			buf.WriteString(line)
			buf.WriteByte(' ')
		}
	}
	flush()
	return chunks
}

// IsHeading reports whether line opens a new section: it starts with
// "chapter" or "section" (case-insensitive), or it is fully uppercase with
// fewer than ten words.
func IsHeading(line string) bool {
	trimmed := strings.ToLower(strings.TrimSpace(line))
	if strings.HasPrefix(trimmed, "chapter") || strings.HasPrefix(trimmed, "section") {
		return true
	}
	return isUpper(line) && len(strings.Fields(line)) < 10
}

// isUpper reports whether s has at least one cased letter and no lowercase ones.
func isUpper(s string) bool {
	cased := false
	for _, r := range s {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) || unicode.IsTitle(r) {
			cased = true
		}
	}
	return cased
}
