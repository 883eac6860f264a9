// Package lda is the topic model engine: it trains a Latent Dirichlet
// Allocation model over a bag-of-words corpus, refines it with new batches
// and extracts coherence-ranked topics.
//
// Training and updates use online variational Bayes (Hoffman, Blei and Bach,
// 2010), so a model trained on one corpus can keep absorbing later batches.
package lda

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/config"
)

// Engine is the training contract the lifecycle manager depends on.
type Engine interface {
	// Train fits a new model over docs, whose term ids are below numTerms.
	Train(ctx context.Context, docs []corpus.BoW, numTerms int) (*State, error)
	// Update returns a refined copy of st. An empty batch fails with
	// ErrEmptyBatch and leaves st untouched.
	Update(ctx context.Context, st *State, batch []corpus.BoW) (*State, error)
	// TopTopics ranks the topics of st by coherence over docs.
	TopTopics(st *State, docs []corpus.BoW, vocab []string) ([]Topic, error)
}

// Params are the model hyperparameters. Alpha and Eta of zero mean a
// symmetric 1/NumTopics prior.
type Params struct {
	NumTopics      int
	ChunkSize      int
	Passes         int
	Iterations     int
	Alpha          float64
	Eta            float64
	Decay          float64
	Offset         float64
	GammaThreshold float64
	TopN           int
	Seed           uint64
}

func ParamsFromConfig(cfg config.ModelConfig) Params {
	return Params{
		NumTopics:      cfg.NumTopics,
		ChunkSize:      cfg.ChunkSize,
		Passes:         cfg.Passes,
		Iterations:     cfg.Iterations,
		Alpha:          cfg.Alpha,
		Eta:            cfg.Eta,
		Decay:          cfg.Decay,
		Offset:         cfg.Offset,
		GammaThreshold: cfg.GammaThreshold,
		TopN:           cfg.TopN,
		Seed:           cfg.Seed,
	}
}

func (p Params) alpha() float64 {
	if p.Alpha > 0 {
		return p.Alpha
	}
	return 1 / float64(p.NumTopics)
}

func (p Params) eta() float64 {
	if p.Eta > 0 {
		return p.Eta
	}
	return 1 / float64(p.NumTopics)
}

// Topic is one ranked topic. Index is its position in the model.
type Topic struct {
	Index     int
	Coherence float64
	Words     []TopicWord
}

// TopicWord is a vocabulary word and its probability within a topic.
type TopicWord struct {
	Word        string
	Probability float64
}
