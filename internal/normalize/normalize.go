// Package normalize turns tweet text into the token sequences the corpus is
// built from. It NFKC-normalizes and lower-cases the input, splits on every
// rune that is not a letter or digit, drops numbers and one-rune tokens and
// reduces plural nouns to their singular form.
package normalize

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// Tokenize returns the normalized tokens of text in their original order.
// Underscores are separators, so no token ever contains one.
func Tokenize(text string) []string {
	text = strings.ToLower(norm.NFKC.String(text))
	words := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	tokens := make([]string, 0, len(words))
	for _, word := range words {
		if utf8.RuneCountInString(word) < 2 {
			continue
		}
		if numeric(word) {
			continue
		}
		tokens = append(tokens, Lemmatize(word))
	}
	return tokens
}

func numeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

var irregular = map[string]string{
	"children": "child",
	"people":   "person",
	"men":      "man",
	"women":    "woman",
	"mice":     "mouse",
	"geese":    "goose",
	"teeth":    "tooth",
	"feet":     "foot",
	"lives":    "life",
	"wives":    "wife",
	"knives":   "knife",
	"leaves":   "leaf",
	"halves":   "half",
	"data":     "datum",
	"crises":   "crisis",
	"analyses": "analysis",
	"viruses":  "virus",
	"buses":    "bus",
	"news":     "news",
	"series":   "series",
	"species":  "species",
}

// Lemmatize reduces a lower-case noun to its singular base form. Words that
// do not look like regular plurals are returned unchanged.
func Lemmatize(word string) string {
	if base, ok := irregular[word]; ok {
		return base
	}
	rules := []struct {
		suffix      string
		replacement string
		minLen      int
	}{
		{"ies", "y", 3},
		{"sses", "ss", 3},
		{"xes", "x", 2},
		{"ches", "ch", 3},
		{"shes", "sh", 3},
		{"men", "man", 6},
		{"ss", "ss", 2},
		{"us", "us", 2},
		{"is", "is", 2},
		{"s", "", 3},
	}
	for _, rule := range rules {
		if strings.HasSuffix(word, rule.suffix) {
			base := word[:len(word)-len(rule.suffix)] + rule.replacement
			if utf8.RuneCountInString(base) >= rule.minLen {
				return base
			}
			return word
		}
	}
	return word
}
