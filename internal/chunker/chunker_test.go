package chunker

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docqa/internal/domain"
)

var pageMarker = regexp.MustCompile(`\[page \d+\]`)

func nonSpace(s string) string { return strings.Join(strings.Fields(s), "") }

func joinChunks(chunks []domain.Chunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = c.Text
	}
	return strings.Join(parts, " ")
}

func prose(sentence string, minLen int) string {
	var b strings.Builder
	for b.Len() < minLen {
		b.WriteString(sentence)
		b.WriteString(" ")
	}
	return strings.TrimSpace(b.String())
}

func TestSelect(t *testing.T) {
	long := prose("the quick brown fox jumps over the lazy dog.", 300)
	short := "a few words"
	tests := []struct {
		name  string
		pages []domain.Page
		want  Strategy
	}{
		{"no pages", nil, StrategyNone},
		{"headings and long pages", []domain.Page{{Number: 1, Text: long}, {Number: 2, Text: "Chapter 2\n" + long}}, StrategyHeadings},
		{"headings but short pages", []domain.Page{{Number: 1, Text: "Section A"}, {Number: 2, Text: short}}, StrategySlides},
		{"short pages", []domain.Page{{Number: 1, Text: short}, {Number: 2, Text: short}}, StrategySlides},
		{"long pages without headings", []domain.Page{{Number: 1, Text: long}, {Number: 2, Text: long}}, StrategyWindow},
		{"exactly at threshold", []domain.Page{{Number: 1, Text: strings.Repeat("x", 200)}}, StrategyWindow},
		{"case-insensitive heading signal", []domain.Page{{Number: 1, Text: "SECTION one\n" + long}}, StrategyHeadings},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Select(tt.pages))
		})
	}
}

func TestSelectAndChunk_Empty(t *testing.T) {
	chunks, strategy := NewSelector(0, 0).SelectAndChunk(nil)
	assert.Empty(t, chunks)
	assert.Equal(t, StrategyNone, strategy)
}

func TestHeadingScenario(t *testing.T) {
	body := prose("the committee reviewed the annual budget in detail.", 300)
	pages := []domain.Page{
		{Number: 1, Text: body},
		{Number: 2, Text: "Chapter 2\n" + body},
		{Number: 3, Text: body},
	}

	chunks, strategy := NewSelector(0, 0).SelectAndChunk(pages)
	require.Equal(t, StrategyHeadings, strategy)
	require.GreaterOrEqual(t, len(chunks), 2)

	var pagesSeen []int
	for _, c := range chunks {
		require.NotNil(t, c.Page)
		pagesSeen = append(pagesSeen, *c.Page)
	}
	assert.Contains(t, pagesSeen, 2)
	assert.Equal(t, 1, *chunks[0].Page)
	assert.True(t, strings.HasPrefix(chunks[1].Text, "Chapter 2"))
}

func TestByHeadings_UppercaseLines(t *testing.T) {
	pages := []domain.Page{
		{Number: 1, Text: "INTRODUCTION\nopening words here"},
		{Number: 2, Text: "more intro text\nMETHODS AND MATERIALS\nwe did things"},
	}
	chunks := ByHeadings(pages)
	require.Len(t, chunks, 2)
	assert.Equal(t, "INTRODUCTION opening words here more intro text", chunks[0].Text)
	assert.Equal(t, 1, *chunks[0].Page)
	assert.Equal(t, "METHODS AND MATERIALS we did things", chunks[1].Text)
	assert.Equal(t, 2, *chunks[1].Page)
}

func TestByHeadings_PageTagUsesPreviousPage(t *testing.T) {
	pages := []domain.Page{
		{Number: 1, Text: "preface text"},
		{Number: 2, Text: "still preface"},
		{Number: 3, Text: "Section 1\nbody"},
	}
	chunks := ByHeadings(pages)
	require.Len(t, chunks, 2)
	assert.Equal(t, 1, *chunks[0].Page)
	assert.Equal(t, 3, *chunks[1].Page)
}

func TestIsHeading(t *testing.T) {
	assert.True(t, IsHeading("  chapter one"))
	assert.True(t, IsHeading("Section 4.2"))
	assert.True(t, IsHeading("SUMMARY"))
	assert.False(t, IsHeading("THIS LINE HAS FAR TOO MANY WORDS TO BE A REAL HEADING OK"))
	assert.False(t, IsHeading("1234"))
	assert.False(t, IsHeading(""))
	assert.False(t, IsHeading("Mixed Case Title"))
}

func TestBySlides(t *testing.T) {
	pages := []domain.Page{{Number: 1, Text: "slide one"}, {Number: 2, Text: "   "}, {Number: 3, Text: "slide three"}}
	chunks := BySlides(pages)
	require.Len(t, chunks, 2)
	assert.Equal(t, "slide one", chunks[0].Text)
	assert.Equal(t, 3, *chunks[1].Page)
}

func TestWindowChunker(t *testing.T) {
	text := prose("Retrieval systems split long documents into windows of text.", 600)
	pages := []domain.Page{{Number: 1, Text: text}, {Number: 2, Text: text}}

	chunks := NewWindowChunker(40, 5).Chunk(pages)
	require.Greater(t, len(chunks), 2)
	for _, c := range chunks {
		assert.Nil(t, c.Page)
		assert.NotEmpty(t, strings.TrimSpace(c.Text))
	}
	assert.True(t, strings.HasPrefix(chunks[0].Text, "[page 1]"))

	tail := strings.Fields(chunks[0].Text)
	seed := strings.Join(tail[len(tail)-5:], " ")
	assert.True(t, strings.HasPrefix(chunks[1].Text, seed), "second window should start with the overlap seed")
}

func TestChunkingPreservesText(t *testing.T) {
	long := prose("Vectors are stored next to their metadata records.", 450)
	cases := map[string][]domain.Page{
		"headings": {{Number: 1, Text: long}, {Number: 2, Text: "CHAPTER TWO\n" + long}, {Number: 3, Text: "section three\n" + long}},
		"slides":   {{Number: 1, Text: "one short slide"}, {Number: 2, Text: "another slide!"}},
		"window":   {{Number: 1, Text: long}, {Number: 2, Text: long}, {Number: 3, Text: long}},
	}
	for name, pages := range cases {
		t.Run(name, func(t *testing.T) {
			var in []string
			for _, p := range pages {
				in = append(in, p.Text)
			}
			chunks := NewSelector(60, 0).Chunk(pages)
			got := pageMarker.ReplaceAllString(joinChunks(chunks), "")
			assert.Equal(t, nonSpace(strings.Join(in, " ")), nonSpace(got))
		})
	}
}
