// Package dictionary maps the pruned vocabulary of a date's corpus to dense
// integer ids and encodes documents as bags of words.
package dictionary

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
)

// Dictionary is a bijection between kept tokens and ids 0..Len()-1. Ids follow
// the lexical order of the tokens.
type Dictionary struct {
	Date    string
	NumDocs int
	NoBelow int
	NoAbove float64
	KeepN   int

	token2id map[string]int
	id2token []string
	dfs      []int
}

// Build counts document frequencies over docs and keeps the tokens with
// noBelow <= df <= int(noAbove*len(docs)). When more than keepN tokens
// survive, the keepN with the highest document frequency are kept, ties
// broken by token. keepN <= 0 keeps all.
func Build(date string, docs [][]string, noBelow int, noAbove float64, keepN int) *Dictionary {
	df := make(map[string]int)
	seen := make(map[string]struct{})
	for _, doc := range docs {
		clear(seen)
		for _, tok := range doc {
			if _, dup := seen[tok]; dup {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	maxDF := int(noAbove * float64(len(docs)))
	kept := make([]string, 0, len(df))
	for tok, n := range df {
		if n >= noBelow && n <= maxDF {
			kept = append(kept, tok)
		}
	}
	if keepN > 0 && len(kept) > keepN {
		sort.Slice(kept, func(i, j int) bool {
			if df[kept[i]] != df[kept[j]] {
				return df[kept[i]] > df[kept[j]]
			}
			return kept[i] < kept[j]
		})
		kept = kept[:keepN]
	}
	sort.Strings(kept)

	d := &Dictionary{
		Date:    date,
		NumDocs: len(docs),
		NoBelow: noBelow,
		NoAbove: noAbove,
		KeepN:   keepN,
	}
	dfs := make([]int, len(kept))
	for i, tok := range kept {
		dfs[i] = df[tok]
	}
	d.index(kept, dfs)
	return d
}

func (d *Dictionary) index(tokens []string, dfs []int) {
	d.id2token = tokens
	d.dfs = dfs
	d.token2id = make(map[string]int, len(tokens))
	for i, tok := range tokens {
		d.token2id[tok] = i
	}
}

func (d *Dictionary) Len() int {
	return len(d.id2token)
}

func (d *Dictionary) ID(token string) (int, bool) {
	id, ok := d.token2id[token]
	return id, ok
}

func (d *Dictionary) Token(id int) string {
	return d.id2token[id]
}

// Tokens returns the vocabulary indexed by id.
func (d *Dictionary) Tokens() []string {
	return d.id2token
}

// DocFreq is the number of documents containing the token with id.
func (d *Dictionary) DocFreq(id int) int {
	return d.dfs[id]
}

// Doc2Bow counts the known tokens of doc. Unknown tokens are dropped and the
// result is sorted by id.
func (d *Dictionary) Doc2Bow(doc []string) corpus.BoW {
	counts := make(map[int]int)
	for _, tok := range doc {
		if id, ok := d.token2id[tok]; ok {
			counts[id]++
		}
	}
	bow := make(corpus.BoW, 0, len(counts))
	for id, n := range counts {
		bow = append(bow, corpus.TermCount{ID: id, Count: n})
	}
	sort.Slice(bow, func(i, j int) bool { return bow[i].ID < bow[j].ID })
	return bow
}

type dictionaryJSON struct {
	Date    string   `json:"date"`
	NumDocs int      `json:"num_docs"`
	NoBelow int      `json:"no_below"`
	NoAbove float64  `json:"no_above"`
	KeepN   int      `json:"keep_n"`
	Tokens  []string `json:"tokens"`
	DFs     []int    `json:"dfs"`
}

func (d *Dictionary) MarshalBinary() ([]byte, error) {
	return json.Marshal(dictionaryJSON{
		Date:    d.Date,
		NumDocs: d.NumDocs,
		NoBelow: d.NoBelow,
		NoAbove: d.NoAbove,
		KeepN:   d.KeepN,
		Tokens:  d.id2token,
		DFs:     d.dfs,
	})
}

func (d *Dictionary) UnmarshalBinary(data []byte) error {
	var in dictionaryJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return fmt.Errorf("parsing dictionary: %w", err)
	}
	if len(in.Tokens) != len(in.DFs) {
		return fmt.Errorf("dictionary has %d tokens and %d frequencies", len(in.Tokens), len(in.DFs))
	}
	if !sort.StringsAreSorted(in.Tokens) {
		return fmt.Errorf("dictionary tokens are not sorted")
	}
	d.Date = in.Date
	d.NumDocs = in.NumDocs
	d.NoBelow = in.NoBelow
	d.NoAbove = in.NoAbove
	d.KeepN = in.KeepN
	if in.Tokens == nil {
		in.Tokens, in.DFs = []string{}, []int{}
	}
	d.index(in.Tokens, in.DFs)
	return nil
}
