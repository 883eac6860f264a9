package lda

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/e-gun/sparse"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// OnlineLDA trains with online variational Bayes. Each pass walks the corpus
// in chunks; every chunk runs a per-document E-step and then blends its
// statistics into the model with rate (offset + pass + seen/chunk)^-decay.
type OnlineLDA struct {
	params Params
	logger *slog.Logger
}

func NewOnlineLDA(p Params) *OnlineLDA {
	return &OnlineLDA{
		params: p,
		logger: slog.Default().With("component", "lda"),
	}
}

func (e *OnlineLDA) Params() Params {
	return e.params
}

func (e *OnlineLDA) Train(ctx context.Context, docs []corpus.BoW, numTerms int) (*State, error) {
	if len(docs) == 0 {
		return nil, fmt.Errorf("training on no documents: %w", apperrors.ErrEmptyBatch)
	}
	if numTerms == 0 {
		return nil, apperrors.New(apperrors.ErrInvalidInput, apperrors.ExitUsage,
			"cannot train over an empty vocabulary; lower the dictionary pruning thresholds")
	}
	if err := checkIDs(docs, numTerms); err != nil {
		return nil, err
	}
	p := e.params
	st := newState(p.NumTopics, numTerms, p.alpha(), p.eta())
	init := distuv.Gamma{Alpha: 100, Beta: 100, Src: rand.NewSource(p.Seed)}
	raw := st.sstats.RawMatrix()
	for i := range raw.Data {
		raw.Data[i] = init.Rand()
	}
	if err := e.run(ctx, st, docs); err != nil {
		return nil, err
	}
	e.logger.Info("model trained",
		"documents", len(docs),
		"terms", numTerms,
		"topics", p.NumTopics,
		"passes", p.Passes,
	)
	return st, nil
}

func (e *OnlineLDA) Update(ctx context.Context, st *State, batch []corpus.BoW) (*State, error) {
	if len(batch) == 0 {
		return nil, apperrors.ErrEmptyBatch
	}
	if err := checkIDs(batch, st.NumTerms); err != nil {
		return nil, err
	}
	next := st.Clone()
	if err := e.run(ctx, next, batch); err != nil {
		return nil, err
	}
	e.logger.Info("model updated",
		"documents", len(batch),
		"total_documents", next.NumDocs,
	)
	return next, nil
}

func (e *OnlineLDA) run(ctx context.Context, st *State, docs []corpus.BoW) error {
	p := e.params
	chunkSize := p.ChunkSize
	if chunkSize < 1 {
		chunkSize = len(docs)
	}
	passes := p.Passes
	if passes < 1 {
		passes = 1
	}
	gamma := distuv.Gamma{Alpha: 100, Beta: 100, Src: rand.NewSource(p.Seed + uint64(st.NumUpdates) + 1)}

	st.NumDocs += len(docs)
	expElogbeta := st.expElogbeta()
	for pass := 0; pass < passes; pass++ {
		for start := 0; start < len(docs); start += chunkSize {
			if err := ctx.Err(); err != nil {
				return err
			}
			end := min(start+chunkSize, len(docs))
			chunk := newChunk(docs[start:end], st.NumTerms)
			if chunk.tokens == 0 {
				continue
			}
			stats := e.estep(st, expElogbeta, chunk, &gamma)
			rho := math.Pow(p.Offset+float64(pass)+float64(st.NumUpdates)/float64(chunkSize), -p.Decay)
			st.blend(rho, stats, end-start)
			if pass == 0 {
				st.NumUpdates += end - start
			}
			expElogbeta = st.expElogbeta()
		}
	}
	return nil
}

// chunk is a slice of the corpus as a sparse document-term matrix in CSR
// form: row d holds the term ids and counts of document d.
type chunk struct {
	m      *sparse.CSR
	tokens float64
}

func newChunk(docs []corpus.BoW, numTerms int) chunk {
	indptr := make([]int, 1, len(docs)+1)
	var (
		ind  []int
		data []float64
		c    chunk
	)
	for _, bow := range docs {
		for _, tc := range bow {
			ind = append(ind, tc.ID)
			data = append(data, float64(tc.Count))
			c.tokens += float64(tc.Count)
		}
		indptr = append(indptr, len(ind))
	}
	c.m = sparse.NewCSR(len(docs), numTerms, indptr, ind, data)
	return c
}

// row returns the term ids and counts of document d without copying.
func (c chunk) row(d int) ([]int, []float64) {
	raw := c.m.RawMatrix()
	lo, hi := raw.Indptr[d], raw.Indptr[d+1]
	return raw.Ind[lo:hi], raw.Data[lo:hi]
}

func (c chunk) docs() int {
	r, _ := c.m.Dims()
	return r
}

// estep infers the topic mixture of every document in c and returns the
// chunk's sufficient statistics for the topic-word parameters.
func (e *OnlineLDA) estep(st *State, expElogbeta *mat.Dense, c chunk, init *distuv.Gamma) *mat.Dense {
	p := e.params
	k := st.NumTopics
	stats := mat.NewDense(k, st.NumTerms, nil)
	gamma := make([]float64, k)
	last := make([]float64, k)
	expTheta := make([]float64, k)

	for d := 0; d < c.docs(); d++ {
		if c.m.RowNNZ(d) == 0 {
			continue
		}
		ids, cts := c.row(d)
		for i := range gamma {
			gamma[i] = init.Rand()
		}
		expDirichlet(gamma, expTheta)
		phinorm := make([]float64, len(ids))
		normalize := func() {
			for j, id := range ids {
				s := 0.0
				for t := 0; t < k; t++ {
					s += expTheta[t] * expElogbeta.At(t, id)
				}
				phinorm[j] = s + 1e-100
			}
		}
		normalize()

		for it := 0; it < p.Iterations; it++ {
			copy(last, gamma)
			for t := 0; t < k; t++ {
				row := expElogbeta.RawRowView(t)
				acc := 0.0
				for j, id := range ids {
					acc += cts[j] / phinorm[j] * row[id]
				}
				gamma[t] = st.Alpha[t] + expTheta[t]*acc
			}
			expDirichlet(gamma, expTheta)
			normalize()

			change := 0.0
			for t := range gamma {
				change += math.Abs(gamma[t] - last[t])
			}
			if change/float64(k) < p.GammaThreshold {
				break
			}
		}

		for t := 0; t < k; t++ {
			row := stats.RawRowView(t)
			for j, id := range ids {
				row[id] += expTheta[t] * cts[j] / phinorm[j]
			}
		}
	}

	stats.MulElem(stats, expElogbeta)
	return stats
}

func checkIDs(docs []corpus.BoW, numTerms int) error {
	for i, bow := range docs {
		for _, tc := range bow {
			if tc.ID < 0 || tc.ID >= numTerms {
				return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitInternal,
					"document %d has term id %d outside vocabulary of %d", i, tc.ID, numTerms)
			}
		}
	}
	return nil
}
