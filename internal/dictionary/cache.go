package dictionary

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/phrases"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"golang.org/x/sync/singleflight"
)

// DocumentSource reads every normalized document of a date.
type DocumentSource interface {
	FetchAllDocuments(ctx context.Context, date string) ([]corpus.Document, error)
}

// Cache builds a date's dictionary once and reuses the persisted artifact.
type Cache struct {
	store   artifact.Store
	source  DocumentSource
	noBelow int
	noAbove float64
	keepN   int
	group   singleflight.Group
	logger  *slog.Logger
}

func NewCache(store artifact.Store, source DocumentSource, noBelow int, noAbove float64, keepN int) *Cache {
	return &Cache{
		store:   store,
		source:  source,
		noBelow: noBelow,
		noAbove: noAbove,
		keepN:   keepN,
		logger:  slog.Default().With("component", "dictionary-cache"),
	}
}

func (c *Cache) Key(date string) string {
	return artifact.DictionaryKey(date)
}

// Load fails with ErrArtifactMissing when no dictionary is stored for date.
func (c *Cache) Load(ctx context.Context, date string) (*Dictionary, error) {
	payload, err := artifact.LoadDecoded(ctx, c.store, c.Key(date), artifact.KindDictionary)
	if err != nil {
		return nil, err
	}
	d := &Dictionary{}
	if err := d.UnmarshalBinary(payload); err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.Key(date), err)
	}
	return d, nil
}

// GenerateAndStore builds the dictionary over the bigram-expanded corpus of
// date. Documents still lacking phrases get them in memory only.
func (c *Cache) GenerateAndStore(ctx context.Context, date string, bigram *phrases.Model) (*Dictionary, error) {
	start := time.Now()
	docs, err := c.source.FetchAllDocuments(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("reading corpus for dictionary: %w", err)
	}
	tokens := make([][]string, len(docs))
	for i, doc := range docs {
		if bigram != nil {
			doc, _ = bigram.ApplyOnce(doc)
		}
		tokens[i] = doc.Tokens
	}
	d := Build(date, tokens, c.noBelow, c.noAbove, c.keepN)
	data, err := d.MarshalBinary()
	if err != nil {
		return nil, fmt.Errorf("encoding dictionary: %w", err)
	}
	if err := artifact.SaveEncoded(ctx, c.store, c.Key(date), artifact.KindDictionary, data); err != nil {
		return nil, fmt.Errorf("saving dictionary: %w", err)
	}
	c.logger.Info("dictionary generated",
		"date", date,
		"documents", len(docs),
		"terms", d.Len(),
		"duration", time.Since(start),
	)
	return d, nil
}

// Ensure loads the dictionary for date, generating it first when missing.
func (c *Cache) Ensure(ctx context.Context, date string, bigram *phrases.Model) (d *Dictionary, generated bool, err error) {
	d, err = c.Load(ctx, date)
	if err == nil {
		return d, false, nil
	}
	if !errors.Is(err, apperrors.ErrArtifactMissing) {
		return nil, false, err
	}
	val, err, _ := c.group.Do(c.Key(date), func() (interface{}, error) {
		if _, err := c.GenerateAndStore(ctx, date, bigram); err != nil {
			return nil, err
		}
		return c.Load(ctx, date)
	})
	if err != nil {
		return nil, false, err
	}
	return val.(*Dictionary), true, nil
}
