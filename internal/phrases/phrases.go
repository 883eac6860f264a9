// Package phrases learns which adjacent token pairs of a date's corpus form a
// phrase and appends the joined phrase tokens to documents.
//
// A pair (a, b) is a phrase when
//
//	(count(a b) - minCount) / (count(a) * count(b)) * vocabSize > threshold
//
// where vocabSize counts distinct unigrams and distinct adjacent pairs.
package phrases

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
)

// Delimiter joins the two halves of a phrase token. Normalized tokens never
// contain it.
const Delimiter = "_"

type pair struct {
	a, b string
}

// Model is a learned phrase table for one date partition. It is immutable
// once learned.
type Model struct {
	Date      string
	MinCount  int
	Threshold float64
	phrases   map[pair]float64
}

// Learn scores every adjacent pair of docs. Tokens that already contain the
// delimiter are ignored, so a corpus with phrases folded in learns the same
// table as the plain corpus.
func Learn(date string, docs [][]string, minCount int, threshold float64) *Model {
	unigrams := make(map[string]int)
	bigrams := make(map[pair]int)
	for _, doc := range docs {
		prev := ""
		for _, tok := range doc {
			if strings.Contains(tok, Delimiter) {
				prev = ""
				continue
			}
			unigrams[tok]++
			if prev != "" {
				bigrams[pair{prev, tok}]++
			}
			prev = tok
		}
	}

	vocab := float64(len(unigrams) + len(bigrams))
	m := &Model{
		Date:      date,
		MinCount:  minCount,
		Threshold: threshold,
		phrases:   make(map[pair]float64),
	}
	for p, n := range bigrams {
		denom := unigrams[p.a] * unigrams[p.b]
		if denom == 0 {
			continue
		}
		score := float64(n-minCount) / float64(denom) * vocab
		if score > threshold {
			m.phrases[p] = score
		}
	}
	return m
}

// Len is the number of learned phrases.
func (m *Model) Len() int {
	return len(m.phrases)
}

// Contains reports whether a followed by b is a learned phrase.
func (m *Model) Contains(a, b string) bool {
	_, ok := m.phrases[pair{a, b}]
	return ok
}

// Detect walks tokens left to right and returns the joined token of every
// phrase found. A token takes part in at most one phrase.
func (m *Model) Detect(tokens []string) []string {
	var found []string
	for i := 0; i+1 < len(tokens); {
		if m.Contains(tokens[i], tokens[i+1]) {
			found = append(found, tokens[i]+Delimiter+tokens[i+1])
			i += 2
			continue
		}
		i++
	}
	return found
}

// Apply returns tokens followed by the detected phrase tokens. It is not
// idempotent: applying it to its own output appends the phrases again.
func (m *Model) Apply(tokens []string) []string {
	found := m.Detect(tokens)
	out := make([]string, 0, len(tokens)+len(found))
	out = append(out, tokens...)
	return append(out, found...)
}

// ApplyOnce applies the model to a document that has not received phrases
// yet and sets HasBigram. It reports whether doc changed state.
func (m *Model) ApplyOnce(doc corpus.Document) (corpus.Document, bool) {
	if doc.HasBigram {
		return doc, false
	}
	doc.Tokens = m.Apply(doc.Tokens)
	doc.HasBigram = true
	return doc, true
}

type phraseJSON struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}

type modelJSON struct {
	Date      string       `json:"date"`
	MinCount  int          `json:"min_count"`
	Threshold float64      `json:"threshold"`
	Delimiter string       `json:"delimiter"`
	Phrases   []phraseJSON `json:"phrases"`
}

// MarshalBinary encodes the model with phrases in sorted order so equal
// models encode to equal bytes.
func (m *Model) MarshalBinary() ([]byte, error) {
	out := modelJSON{
		Date:      m.Date,
		MinCount:  m.MinCount,
		Threshold: m.Threshold,
		Delimiter: Delimiter,
		Phrases:   make([]phraseJSON, 0, len(m.phrases)),
	}
	for p, score := range m.phrases {
		out.Phrases = append(out.Phrases, phraseJSON{A: p.a, B: p.b, Score: score})
	}
	sort.Slice(out.Phrases, func(i, j int) bool {
		if out.Phrases[i].A != out.Phrases[j].A {
			return out.Phrases[i].A < out.Phrases[j].A
		}
		return out.Phrases[i].B < out.Phrases[j].B
	})
	return json.Marshal(out)
}

func (m *Model) UnmarshalBinary(data []byte) error {
	var in modelJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parsing bigram model: %w", err)
	}
	if in.Delimiter != Delimiter {
		return fmt.Errorf("bigram model uses delimiter %q, want %q", in.Delimiter, Delimiter)
	}
	m.Date = in.Date
	m.MinCount = in.MinCount
	m.Threshold = in.Threshold
	m.phrases = make(map[pair]float64, len(in.Phrases))
	for _, p := range in.Phrases {
		m.phrases[pair{p.A, p.B}] = p.Score
	}
	return nil
}
