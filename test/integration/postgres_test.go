package integration

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
)

const postgresDate = "1999-01"

// clearDate removes the rows of date so reruns start from an empty partition.
func clearDate(t *testing.T, db *database.Client, date string) {
	t.Helper()
	for _, q := range []string{
		"DELETE FROM tokens WHERE date = ?",
		"DELETE FROM tweets WHERE date = ?",
	} {
		if _, err := db.DB.ExecContext(context.Background(), db.Rebind(q), date); err != nil {
			t.Fatalf("clearing %s: %v", date, err)
		}
	}
}

func TestPostgresStoreLifecycle(t *testing.T) {
	db := skipIfNoPostgres(t)
	clearDate(t, db, postgresDate)
	t.Cleanup(func() { clearDate(t, db, postgresDate) })

	ctx := context.Background()
	docs := store.New(db)
	if _, err := docs.Stats(ctx, postgresDate); !errors.Is(err, apperrors.ErrNotFound) {
		t.Fatalf("Stats on empty date: err = %v, want ErrNotFound", err)
	}

	texts := []string{
		"Stay home during the lockdown",
		"Vaccine trial for the virus",
		"Stock market crash",
	}
	var tweets []corpus.RawTweet
	for i := 0; i < 12; i++ {
		tweets = append(tweets, corpus.RawTweet{
			ID:       int64(990001 + i),
			Date:     postgresDate,
			Filename: "pg-test.jsonl.gz",
			Text:     texts[i%len(texts)],
		})
	}
	inserted, err := docs.InsertRaw(ctx, tweets)
	if err != nil {
		t.Fatalf("InsertRaw: %v", err)
	}
	if inserted != 12 {
		t.Fatalf("inserted = %d, want 12", inserted)
	}
	if again, err := docs.InsertRaw(ctx, tweets[:3]); err != nil || again != 0 {
		t.Fatalf("reinsert = %d, %v; want 0 duplicates stored", again, err)
	}

	manager := newManager(docs, artifact.NewFileStore(filepath.Join(t.TempDir(), "models")))
	res, err := manager.Train(ctx, postgresDate)
	if err != nil {
		t.Fatalf("Train: %v", err)
	}
	if res.Documents != 12 {
		t.Errorf("trained documents = %d, want 12", res.Documents)
	}

	stats, err := docs.Stats(ctx, postgresDate)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	want := corpus.Stats{Raw: 12, Normalized: 12, WithBigram: 12, InModel: 12}
	if stats != want {
		t.Errorf("stats = %+v, want %+v", stats, want)
	}
}
