// Package summarizer holds the summarization primitives used by the answer
// synthesizer: an extractive sentence filter and the abstractive backends.
package summarizer

import (
	"sort"
	"strings"
	"unicode/utf8"

	"docqa/internal/textutil"
)

// DefaultTopK is the number of sentences ExtractiveFilter keeps by default.
const DefaultTopK = 6

// ExtractiveFilter keeps the topK highest scoring sentences of text.
//
// Word frequencies are counted over the whole text for lowercase words
// longer than three characters. A sentence scores the sum of the
// frequencies of its words plus a length bonus of one point per fifty
// characters. Selected sentences are joined in descending score order.
// Text with no more than topK sentences is returned unchanged.
func ExtractiveFilter(text string, topK int) string {
	if topK <= 0 {
		topK = DefaultTopK
	}
	sentences := textutil.Sentences(text)
	if len(sentences) <= topK {
		return text
	}

	freq := map[string]float64{}
	for _, w := range strings.Fields(strings.ToLower(text)) {
		if utf8.RuneCountInString(w) > 3 {
			freq[w]++
		}
	}

	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		sscore := 0.0
		for _, w := range strings.Fields(sent) {
			sscore += freq[strings.ToLower(w)]
		}
		sscore += float64(utf8.RuneCountInString(sent)) / 50
		scores[i] = pair{i, sscore}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })

	out := make([]string, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, sentences[p.idx])
	}
	return strings.Join(out, " ")
}
