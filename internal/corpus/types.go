// Package corpus defines the records that move between the tweet store, the
// corpus preparation steps and the topic model engine.
package corpus

import (
	"regexp"
	"time"
)

// RawTweet is an English tweet as stored by the archive loader. It is never
// mutated once stored.
type RawTweet struct {
	ID       int64  `json:"tweet_id"`
	Date     string `json:"date"`
	Filename string `json:"filename"`
	Text     string `json:"text"`
}

// Document is the normalized form of a RawTweet. Tokens only grow (bigram
// phrases are appended once, when HasBigram flips to true) and InModel never
// goes back to false.
type Document struct {
	ID        int64    `json:"tweet_id"`
	Date      string   `json:"date"`
	Tokens    []string `json:"tokens"`
	HasBigram bool     `json:"has_bigram"`
	InModel   bool     `json:"in_model"`
}

// Stats aggregates the document population of one date partition.
type Stats struct {
	Raw        int `json:"raw"`
	Normalized int `json:"normalized"`
	WithBigram int `json:"with_bigram"`
	InModel    int `json:"in_model"`
}

// Unnormalized is the number of raw tweets with no normalized document yet.
func (s Stats) Unnormalized() int {
	return s.Raw - s.Normalized
}

// Pending is the number of normalized documents not yet in the topic model.
func (s Stats) Pending() int {
	return s.Normalized - s.InModel
}

// TermCount is one entry of a bag-of-words encoding.
type TermCount struct {
	ID    int
	Count int
}

// BoW is a bag-of-words document, sorted by term id.
type BoW []TermCount

// Len is the number of tokens the bag represents.
func (b BoW) Len() int {
	n := 0
	for _, tc := range b {
		n += tc.Count
	}
	return n
}

var datePattern = regexp.MustCompile(`^\d{4}-\d{2}$`)

// ValidDate reports whether s is a YYYY-MM partition key.
func ValidDate(s string) bool {
	if !datePattern.MatchString(s) {
		return false
	}
	_, err := time.Parse("2006-01", s)
	return err == nil
}

// IDs collects the tweet ids of docs in order.
func IDs(docs []Document) []int64 {
	ids := make([]int64, len(docs))
	for i, d := range docs {
		ids[i] = d.ID
	}
	return ids
}
