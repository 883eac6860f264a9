package store

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/database"
)

// The same statements run on sqlite and postgres.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS tweets (
		tweet_id BIGINT PRIMARY KEY,
		date     TEXT NOT NULL,
		filename TEXT NOT NULL,
		tweet    TEXT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS tweets_date_idx ON tweets (date)`,
	`CREATE INDEX IF NOT EXISTS tweets_filename_idx ON tweets (filename)`,
	`CREATE TABLE IF NOT EXISTS tokens (
		tweet_id       BIGINT PRIMARY KEY REFERENCES tweets (tweet_id),
		date           TEXT NOT NULL,
		tokenized_text TEXT NOT NULL,
		has_bigram     BOOLEAN NOT NULL DEFAULT FALSE,
		in_model       BOOLEAN NOT NULL DEFAULT FALSE
	)`,
	`CREATE INDEX IF NOT EXISTS tokens_batch_idx ON tokens (date, in_model, tweet_id)`,
}

// Migrate creates the tweets and tokens tables when they do not exist yet.
func Migrate(ctx context.Context, db *database.Client) error {
	for _, stmt := range schema {
		if _, err := db.DB.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", classify(err))
		}
	}
	return nil
}
