// Package artifact persists the per-date bigram models, dictionaries, topic
// models and topic reports. Artifacts are addressed by key and written
// whole: a reader sees either the previous artifact or the new one.
package artifact

import (
	"context"
	"fmt"
	"strings"

	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
)

// Store is a keyed blob store. Load of an absent key fails with
// ErrArtifactMissing.
type Store interface {
	Load(ctx context.Context, key string) ([]byte, error)
	Save(ctx context.Context, key string, data []byte) error
	Exists(ctx context.Context, key string) (bool, error)
	Delete(ctx context.Context, key string) error
}

func BigramKey(date string, minCount int) string {
	return fmt.Sprintf("%s_bigram_model_%d", date, minCount)
}

func DictionaryKey(date string) string {
	return date + "_dictionary"
}

func ModelKey(date string) string {
	return date + "_model"
}

func ReportKey(date string) string {
	return date + "_topics.json"
}

// SaveEncoded wraps payload in the artifact envelope and saves it under key.
func SaveEncoded(ctx context.Context, s Store, key string, kind Kind, payload []byte) error {
	return s.Save(ctx, key, Encode(kind, payload))
}

// LoadDecoded loads key and unwraps its envelope. A corrupt artifact is an
// error, not a missing one.
func LoadDecoded(ctx context.Context, s Store, key string, kind Kind) ([]byte, error) {
	data, err := s.Load(ctx, key)
	if err != nil {
		return nil, err
	}
	payload, err := Decode(kind, data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", key, err)
	}
	return payload, nil
}

func missing(key string) error {
	return apperrors.Newf(apperrors.ErrArtifactMissing, apperrors.ExitInternal, "%s", key)
}

func validKey(key string) error {
	if key == "" || strings.ContainsAny(key, `/\`) || strings.HasPrefix(key, ".") {
		return apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "invalid artifact key %q", key)
	}
	return nil
}
