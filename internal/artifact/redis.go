package artifact

import (
	"context"
	"fmt"
	"time"

	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/redis"
)

// KV is the subset of the redis client the store needs.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Exists(ctx context.Context, key string) (bool, error)
	Del(ctx context.Context, keys ...string) error
}

var _ KV = (*redis.Client)(nil)

// RedisStore keeps artifacts as redis strings under prefix+key so several
// hosts can share one set of artifacts.
type RedisStore struct {
	kv     KV
	prefix string
	ttl    time.Duration
}

func NewRedisStore(kv KV, prefix string, ttl time.Duration) *RedisStore {
	return &RedisStore{kv: kv, prefix: prefix, ttl: ttl}
}

func (s *RedisStore) Load(ctx context.Context, key string) ([]byte, error) {
	if err := validKey(key); err != nil {
		return nil, err
	}
	data, err := s.kv.Get(ctx, s.prefix+key)
	if redis.IsNilError(err) {
		return nil, missing(key)
	}
	if err != nil {
		return nil, unavailable("loading", key, err)
	}
	return data, nil
}

// Save relies on SET replacing the value in one step.
func (s *RedisStore) Save(ctx context.Context, key string, data []byte) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.kv.Set(ctx, s.prefix+key, data, s.ttl); err != nil {
		return unavailable("saving", key, err)
	}
	return nil
}

func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := validKey(key); err != nil {
		return false, err
	}
	ok, err := s.kv.Exists(ctx, s.prefix+key)
	if err != nil {
		return false, unavailable("checking", key, err)
	}
	return ok, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := validKey(key); err != nil {
		return err
	}
	if err := s.kv.Del(ctx, s.prefix+key); err != nil {
		return unavailable("deleting", key, err)
	}
	return nil
}

func unavailable(op, key string, err error) error {
	return fmt.Errorf("%s artifact %s: %v: %w", op, key, err, apperrors.ErrStorageUnavailable)
}
