package lda

import (
	"fmt"
	"math"
	"sort"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
)

const coherenceEpsilon = 1e-12

// TopTopics returns every topic with its TopN most probable words, ordered by
// UMass coherence over docs, most coherent first.
func (e *OnlineLDA) TopTopics(st *State, docs []corpus.BoW, vocab []string) ([]Topic, error) {
	if len(vocab) != st.NumTerms {
		return nil, fmt.Errorf("vocabulary has %d terms, model has %d", len(vocab), st.NumTerms)
	}
	topn := e.params.TopN
	if topn < 1 || topn > st.NumTerms {
		topn = st.NumTerms
	}

	topics := make([]Topic, st.NumTopics)
	wanted := make(map[int]struct{})
	terms := make([][]TermProb, st.NumTopics)
	for k := range topics {
		terms[k] = st.TopicTerms(k, topn)
		for _, tp := range terms[k] {
			wanted[tp.ID] = struct{}{}
		}
	}

	postings := docPostings(docs, wanted)
	for k := range topics {
		words := make([]TopicWord, len(terms[k]))
		ids := make([]int, len(terms[k]))
		for i, tp := range terms[k] {
			words[i] = TopicWord{Word: vocab[tp.ID], Probability: tp.Probability}
			ids[i] = tp.ID
		}
		topics[k] = Topic{
			Index:     k,
			Coherence: umass(ids, postings),
			Words:     words,
		}
	}
	sort.SliceStable(topics, func(i, j int) bool {
		return topics[i].Coherence > topics[j].Coherence
	})
	return topics, nil
}

// docPostings maps each wanted term id to the ascending indexes of the
// documents containing it.
func docPostings(docs []corpus.BoW, wanted map[int]struct{}) map[int][]int {
	postings := make(map[int][]int, len(wanted))
	for d, bow := range docs {
		for _, tc := range bow {
			if _, ok := wanted[tc.ID]; ok && tc.Count > 0 {
				postings[tc.ID] = append(postings[tc.ID], d)
			}
		}
	}
	return postings
}

// umass is the mean of log((D(w_i, w_j) + eps) / D(w_j)) over every pair of
// top words with j < i, where D counts documents.
func umass(ids []int, postings map[int][]int) float64 {
	if len(ids) < 2 {
		return 0
	}
	total := 0.0
	pairs := 0
	for i := 1; i < len(ids); i++ {
		for j := 0; j < i; j++ {
			single := len(postings[ids[j]])
			co := intersectCount(postings[ids[i]], postings[ids[j]])
			if single == 0 {
				total += math.Log(coherenceEpsilon)
			} else {
				total += math.Log((float64(co) + coherenceEpsilon) / float64(single))
			}
			pairs++
		}
	}
	return total / float64(pairs)
}

func intersectCount(a, b []int) int {
	n, i, j := 0, 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] == b[j]:
			n++
			i++
			j++
		case a[i] < b[j]:
			i++
		default:
			j++
		}
	}
	return n
}
