// Package integration runs the tweet pipeline end to end: archives are loaded
// into a real database, prepared, and fed to the topic model. Tests that need
// PostgreSQL or Redis skip when those services are not reachable.
//
// Run with:
//
//	go test -v ./test/integration/...
package integration

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/artifact"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lda"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/lifecycle"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/store"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/database"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/metrics"
	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// skipIfNoPostgres skips the test when PostgreSQL is unavailable.
func skipIfNoPostgres(t *testing.T) *database.Client {
	t.Helper()
	db, err := database.Open(testPostgresConfig())
	if err != nil {
		t.Skipf("skipping integration test: postgres unavailable: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := store.Migrate(context.Background(), db); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return db
}

func testPostgresConfig() config.DatabaseConfig {
	return config.DatabaseConfig{
		Driver:          database.DriverPostgres,
		Host:            envOrDefault("TEST_POSTGRES_HOST", "localhost"),
		Port:            envOrDefaultInt("TEST_POSTGRES_PORT", 5432),
		Database:        envOrDefault("TEST_POSTGRES_DB", "tweets_test"),
		User:            envOrDefault("TEST_POSTGRES_USER", "tweets"),
		Password:        envOrDefault("TEST_POSTGRES_PASSWORD", "localdev"),
		SSLMode:         "disable",
		MaxOpenConns:    5,
		MaxIdleConns:    2,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// openSQLite returns a migrated database in a temp dir.
func openSQLite(t *testing.T) *database.Client {
	t.Helper()
	db, err := store.Connect(context.Background(), config.DatabaseConfig{
		Driver: database.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "tweets.db"),
	})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func testEngine() *lda.OnlineLDA {
	return lda.NewOnlineLDA(lda.Params{
		NumTopics:      2,
		ChunkSize:      20,
		Passes:         2,
		Iterations:     30,
		Decay:          0.5,
		Offset:         1,
		GammaThreshold: 0.001,
		TopN:           5,
		Seed:           7,
	})
}

func testOptions() lifecycle.Options {
	return lifecycle.Options{
		BigramMinCount:  2,
		BigramThreshold: 1,
		DictNoBelow:     1,
		DictNoAbove:     1,
		BatchSize:       1000,
	}
}

func newManager(docs *store.Store, artifacts artifact.Store) *lifecycle.Manager {
	return lifecycle.New(lifecycle.Deps{
		Documents: docs,
		Artifacts: artifacts,
		Engine:    testEngine(),
		Metrics:   metrics.New(nil),
	}, testOptions())
}

// writeArchive gzips one JSON object per line into dataDir/date/name.
func writeArchive(t *testing.T, dataDir, date, name string, lines ...string) {
	t.Helper()
	path := filepath.Join(dataDir, date, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	zw := gzip.NewWriter(f)
	for _, line := range lines {
		if _, err := zw.Write([]byte(line + "\n")); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
}

// ---------------------------------------------------------------------------
// Env helpers
// ---------------------------------------------------------------------------

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
