package lda

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/mathext"
)

// State holds the variational parameters of a trained model. The topic-word
// parameters are lambda = eta + sstats.
type State struct {
	NumTopics int
	NumTerms  int
	Alpha     []float64
	Eta       float64
	// NumDocs counts every document folded into the model.
	NumDocs int
	// NumUpdates counts documents seen by first-pass updates; it drives the
	// learning rate.
	NumUpdates int

	sstats *mat.Dense
}

func newState(numTopics, numTerms int, alpha, eta float64) *State {
	a := make([]float64, numTopics)
	for i := range a {
		a[i] = alpha
	}
	return &State{
		NumTopics: numTopics,
		NumTerms:  numTerms,
		Alpha:     a,
		Eta:       eta,
		sstats:    mat.NewDense(numTopics, numTerms, nil),
	}
}

// Clone returns a deep copy of s.
func (s *State) Clone() *State {
	c := *s
	c.Alpha = append([]float64(nil), s.Alpha...)
	c.sstats = mat.DenseCopyOf(s.sstats)
	return &c
}

// Lambda returns a copy of the topic-word variational parameters.
func (s *State) Lambda() *mat.Dense {
	l := mat.DenseCopyOf(s.sstats)
	l.Apply(func(_, _ int, v float64) float64 { return v + s.Eta }, l)
	return l
}

// expElogbeta is exp(E[log beta]) for every topic-word pair.
func (s *State) expElogbeta() *mat.Dense {
	out := s.Lambda()
	for k := 0; k < s.NumTopics; k++ {
		row := out.RawRowView(k)
		expDirichlet(row, row)
	}
	return out
}

// blend folds the sufficient statistics of a chunk of chunkDocs documents
// into s with weight rho, scaled to the size of the whole corpus.
func (s *State) blend(rho float64, chunk *mat.Dense, chunkDocs int) {
	scale := rho * float64(s.NumDocs) / float64(chunkDocs)
	s.sstats.Apply(func(i, j int, v float64) float64 {
		return (1-rho)*v + scale*chunk.At(i, j)
	}, s.sstats)
}

// TermProb is a term id with its probability in a topic.
type TermProb struct {
	ID          int
	Probability float64
}

// TopicTerms returns the topn most probable terms of topic k, ties broken by
// term id.
func (s *State) TopicTerms(k, topn int) []TermProb {
	row := s.sstats.RawRowView(k)
	total := 0.0
	for _, v := range row {
		total += v + s.Eta
	}
	terms := make([]TermProb, len(row))
	for id, v := range row {
		terms[id] = TermProb{ID: id, Probability: (v + s.Eta) / total}
	}
	sort.SliceStable(terms, func(i, j int) bool {
		return terms[i].Probability > terms[j].Probability
	})
	if topn < len(terms) {
		terms = terms[:topn]
	}
	return terms
}

// expDirichlet writes exp(digamma(v_i) - digamma(sum v)) into out.
func expDirichlet(v, out []float64) {
	sum := 0.0
	for _, x := range v {
		sum += x
	}
	psiSum := mathext.Digamma(sum)
	for i, x := range v {
		out[i] = math.Exp(mathext.Digamma(x) - psiSum)
	}
}

type stateHeader struct {
	NumTopics  int       `json:"num_topics"`
	NumTerms   int       `json:"num_terms"`
	Alpha      []float64 `json:"alpha"`
	Eta        float64   `json:"eta"`
	NumDocs    int       `json:"num_docs"`
	NumUpdates int       `json:"num_updates"`
}

// MarshalBinary encodes the state as a length-prefixed JSON header followed by
// the gonum encoding of the sufficient statistics.
func (s *State) MarshalBinary() ([]byte, error) {
	header, err := json.Marshal(stateHeader{
		NumTopics:  s.NumTopics,
		NumTerms:   s.NumTerms,
		Alpha:      s.Alpha,
		Eta:        s.Eta,
		NumDocs:    s.NumDocs,
		NumUpdates: s.NumUpdates,
	})
	if err != nil {
		return nil, fmt.Errorf("encoding model header: %w", err)
	}
	matrix, err := s.sstats.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding model parameters: %w", err)
	}
	buf := make([]byte, 4, 4+len(header)+len(matrix))
	binary.LittleEndian.PutUint32(buf, uint32(len(header)))
	buf = append(buf, header...)
	return append(buf, matrix...), nil
}

func (s *State) UnmarshalBinary(data []byte) error {
	if len(data) < 4 {
		return fmt.Errorf("model state too short")
	}
	n := int(binary.LittleEndian.Uint32(data[:4]))
	if len(data) < 4+n {
		return fmt.Errorf("model header truncated")
	}
	var h stateHeader
	if err := json.Unmarshal(data[4:4+n], &h); err != nil {
		return fmt.Errorf("parsing model header: %w", err)
	}
	var m mat.Dense
	if err := m.UnmarshalBinary(data[4+n:]); err != nil {
		return fmt.Errorf("parsing model parameters: %w", err)
	}
	if r, c := m.Dims(); r != h.NumTopics || c != h.NumTerms || len(h.Alpha) != h.NumTopics {
		return fmt.Errorf("model parameters are %dx%d, header says %dx%d", r, c, h.NumTopics, h.NumTerms)
	}
	*s = State{
		NumTopics:  h.NumTopics,
		NumTerms:   h.NumTerms,
		Alpha:      h.Alpha,
		Eta:        h.Eta,
		NumDocs:    h.NumDocs,
		NumUpdates: h.NumUpdates,
		sstats:     &m,
	}
	return nil
}
