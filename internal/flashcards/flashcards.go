// Package flashcards derives study cards from summary text.
package flashcards

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"docqa/internal/domain"
	"docqa/internal/textutil"
)

// DefaultMaxCards caps the number of generated cards.
const DefaultMaxCards = 10

const blank = "_____"

// Generate builds one card for each of the first maxCards sentences of text.
// A sentence with a content word longer than four letters becomes a cloze
// card with that word blanked out. Other sentences get a main-idea card.
func Generate(text string, maxCards int) []domain.Flashcard {
	if maxCards <= 0 {
		maxCards = DefaultMaxCards
	}
	sentences := textutil.Sentences(text)
	if len(sentences) > maxCards {
		sentences = sentences[:maxCards]
	}
	cards := make([]domain.Flashcard, 0, len(sentences))
	for _, s := range sentences {
		if word := keyword(s); word != "" {
			cards = append(cards, domain.Flashcard{Question: cloze(s, word), Answer: word, Source: s})
			continue
		}
		cards = append(cards, domain.Flashcard{
			Question: fmt.Sprintf("What is the main idea of: %q", prefix(s, 80)+"..."),
			Answer:   s,
			Source:   s,
		})
	}
	return cards
}

// keyword returns the first word of s that looks like a content noun.
func keyword(s string) string {
	for _, field := range strings.Fields(s) {
		w := strings.TrimFunc(field, func(r rune) bool { return !unicode.IsLetter(r) })
		if utf8.RuneCountInString(w) <= 4 || !allLetters(w) {
			continue
		}
		lower := strings.ToLower(w)
		if textutil.IsStopword(lower) || strings.HasSuffix(lower, "ly") {
			continue
		}
		return w
	}
	return ""
}

func cloze(s, word string) string {
	re := regexp.MustCompile(`(^|[^\p{L}])` + regexp.QuoteMeta(word) + `([^\p{L}]|$)`)
	return re.ReplaceAllString(s, "${1}"+blank+"${2}")
}

func allLetters(w string) bool {
	for _, r := range w {
		if !unicode.IsLetter(r) {
			return false
		}
	}
	return true
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
