// Package textutil holds the text primitives shared by chunking, embedding
// and summarization: sentence splitting, word tokens, token estimates.
package textutil

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var tokenPattern = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*|\p{N}+`)

// Sentences splits text into sentences. A sentence ends after a run of
// terminal punctuation (optionally followed by closing quotes or brackets)
// that is followed by whitespace or the end of input. Trailing text without
// terminal punctuation forms the last sentence, so no characters are lost.
func Sentences(text string) []string {
	var out []string
	runes := []rune(text)
	start := 0
	i := 0
	for i < len(runes) {
		if !isTerminal(runes[i]) {
			i++
			continue
		}
		j := i
		for j < len(runes) && isTerminal(runes[j]) {
			j++
		}
		for j < len(runes) && isCloser(runes[j]) {
			j++
		}
		if j == len(runes) || unicode.IsSpace(runes[j]) {
			if s := strings.TrimSpace(string(runes[start:j])); s != "" {
				out = append(out, s)
			}
			start = j
		}
		i = j
	}
	if s := strings.TrimSpace(string(runes[start:])); s != "" {
		out = append(out, s)
	}
	return out
}

func isTerminal(r rune) bool { return r == '.' || r == '!' || r == '?' }

func isCloser(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '”', '’':
		return true
	}
	return false
}

// Tokens returns the lowercase word and number tokens of text.
func Tokens(text string) []string {
	return tokenPattern.FindAllString(strings.ToLower(text), -1)
}

// EstimateTokens approximates a subword tokenizer at roughly four
// characters per token, counting every word as at least one token.
func EstimateTokens(text string) int {
	n := 0
	for _, w := range strings.Fields(text) {
		c := (utf8.RuneCountInString(w) + 3) / 4
		if c < 1 {
			c = 1
		}
		n += c
	}
	return n
}

// LastWords returns the final n whitespace-separated words of text.
func LastWords(text string, n int) []string {
	if n <= 0 {
		return nil
	}
	words := strings.Fields(text)
	if len(words) <= n {
		return words
	}
	return words[len(words)-n:]
}

// Truncate shortens text to at most limit runes, appending "..." when cut.
func Truncate(text string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(text) <= limit {
		return text
	}
	r := []rune(text)
	return strings.TrimSpace(string(r[:limit])) + "..."
}

// HasContent reports whether text contains at least one letter or digit.
func HasContent(text string) bool {
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

// IsStopword reports whether the lowercase token is a common function word.
func IsStopword(tok string) bool {
	_, ok := stopwords[tok]
	return ok
}

var stopwords = func() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now",
		"there", "their", "which", "while", "where", "what", "when", "would", "could", "other", "these", "because", "however", "within", "without", "among", "every",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}()
