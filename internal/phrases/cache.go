package phrases

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// TokenSource reads the token sequences of every document of a date.
type TokenSource interface {
	FetchAllTokens(ctx context.Context, date string, requireBigram bool) ([][]string, error)
}

// Cache computes a date's bigram model once and reuses the persisted artifact
// afterwards. Artifacts are keyed by date and minimum count.
type Cache struct {
	store     artifact.Store
	source    TokenSource
	minCount  int
	threshold float64
	group     singleflight.Group
	logger    *slog.Logger
}

func NewCache(store artifact.Store, source TokenSource, minCount int, threshold float64) *Cache {
	return &Cache{
		store:     store,
		source:    source,
		minCount:  minCount,
		threshold: threshold,
		logger:    slog.Default().With("component", "bigram-cache"),
	}
}

func (c *Cache) Key(date string) string {
	return artifact.BigramKey(date, c.minCount)
}

// Load fails with ErrArtifactMissing when no model is stored for date.
func (c *Cache) Load(ctx context.Context, date string) (*Model, error) {
	payload, err := artifact.LoadDecoded(ctx, c.store, c.Key(date), artifact.KindBigram)
	if err != nil {
		return nil, err
	}
	m := &Model{}
	if err := m.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.Key(date), err)
	}
	return m, nil
}

// ComputeAndStore learns a model from the full tokenized corpus of date and
// overwrites any stored model for the same key.
func (c *Cache) ComputeAndStore(ctx context.Context, date string) (*Model, error) {
	start := time.Now()
	docs, err := c.source.FetchAllTokens(ctx, date, false)
	if err != nil {
		return nil, fmt.Errorf("reading corpus for bigram model: %w", err)
	}
	m := Learn(date, docs, c.minCount, c.threshold)
	data, err := m.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding bigram model: %w", err)
	}
	if err := artifact.SaveEncoded(ctx, c.store, c.Key(date), artifact.KindBigram, data); err != nil {
		return nil, fmt.Errorf("saving bigram model: %w", err)
	}
	c.logger.Info("bigram model computed",
		"date", date,
		"documents", len(docs),
		"phrases", m.Len(),
		"duration", time.Since(start),
	)
	return m, nil
}

// Ensure loads the model for date, computing and storing it first when it is
// missing. computed reports whether this call built it.
func (c *Cache) Ensure(ctx context.Context, date string) (m *Model, computed bool, err error) {
	m, err = c.Load(ctx, date)
	if err == nil {
		return m, false, nil
	}
	if !errors.Is(err, apperrors.ErrArtifactMissing) {
		return nil, false, err
	}
	val, err, _ := c.group.Do(c.Key(date), func() (interface{}, error) {
		if _, err := c.ComputeAndStore(ctx, date); err != nil {
			return nil, err
		}
		return c.Load(ctx, date)
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Model), true, nil
}
