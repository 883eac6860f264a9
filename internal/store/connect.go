package store

import (
	"context"
	"errors"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/resilience"
)

// Connect opens the database, retrying while it is unreachable, and applies
// the schema.
func Connect(ctx context.Context, cfg config.DatabaseConfig) (*database.Client, error) {
	var db *database.Client
	retry := resilience.RetryConfig{
		MaxAttempts:  5,
		InitialDelay: 500 * time.Millisecond,
		MaxDelay:     5 * time.Second,
		Retryable: func(err error) bool {
			return errors.Is(err, apperrors.ErrStorageUnavailable)
		},
	}
	err := resilience.Retry(ctx, "open database", retry, func() error {
		var err error
		db, err = database.Open(cfg)
		return err
	})
	if err != nil {
		return nil, err
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}
