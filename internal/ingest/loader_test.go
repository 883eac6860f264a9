package ingest

import (
	"context"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/metrics"
	"github.com/klauspost/compress/gzip"
)

type memStore struct {
	tweets map[int64]corpus.RawTweet
	files  map[string]bool
	fail   error
}

func newMemStore() *memStore {
	return &memStore{tweets: make(map[int64]corpus.RawTweet), files: make(map[string]bool)}
}

func (m *memStore) FileProcessed(_ context.Context, filename string) (bool, error) {
	if m.fail != nil {
		return false, m.fail
	}
	return m.files[filename], nil
}

func (m *memStore) InsertRaw(_ context.Context, tweets []corpus.RawTweet) (int, error) {
	n := 0
	for _, t := range tweets {
		m.files[t.Filename] = true
		if _, ok := m.tweets[t.ID]; ok {
			continue
		}
		m.tweets[t.ID] = t
		n++
	}
	return n, nil
}

func writeArchive(t *testing.T, dir, date, name string, lines ...string) {
	t.Helper()
	path := filepath.Join(dir, date, name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	zw := gzip.NewWriter(f)
	for _, line := range lines {
		if _, err := zw.Write([]byte(line + "\n")); err != nil {
			t.Fatal(err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := f.Close(); err != nil {
		t.Fatal(err)
	}
}

func TestRunFiltersLanguage(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "2020-01", "tweets-2020-01-21.jsonl.gz",
		`{"id": 101, "full_text": "Stay home, stay safe", "lang": "en"}`,
		`{"id": 102, "full_text": "Quédate en casa", "lang": "es"}`,
		``,
		`{"id_str": "103", "full_text": "Wash your hands", "lang": "en"}`,
	)

	st := newMemStore()
	m := metrics.New(nil)
	sum, err := New(st, "en", m).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := Summary{FilesLoaded: 1, Tweets: 2, Filtered: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	got, ok := st.tweets[103]
	if !ok {
		t.Fatal("tweet 103 not stored")
	}
	if got.Date != "2020-01" || got.Filename != "tweets-2020-01-21.jsonl.gz" || got.Text != "Wash your hands" {
		t.Errorf("stored tweet = %+v", got)
	}
	if _, ok := st.tweets[102]; ok {
		t.Error("non-English tweet stored")
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "tweets_ingested_total 2") {
		t.Errorf("metrics output missing tweets_ingested_total 2:\n%s", rec.Body.String())
	}
}

func TestRunSkipsProcessedFiles(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "2020-02", "a.jsonl.gz", `{"id": 1, "full_text": "one", "lang": "en"}`)

	st := newMemStore()
	l := New(st, "en", nil)
	if _, err := l.Run(context.Background(), dir); err != nil {
		t.Fatalf("first Run: %v", err)
	}
	sum, err := l.Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if sum.FilesSkipped != 1 || sum.FilesLoaded != 0 || sum.Tweets != 0 {
		t.Errorf("second run summary = %+v", sum)
	}
}

func TestRunCountsArchivesWithoutLanguageMatch(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "2020-02", "spanish.jsonl.gz",
		`{"id": 1, "full_text": "Quédate en casa", "lang": "es"}`,
		`{"id": 2, "full_text": "Lávate las manos", "lang": "es"}`,
	)

	st := newMemStore()
	m := metrics.New(nil)
	l := New(st, "en", m)
	for run := 1; run <= 2; run++ {
		sum, err := l.Run(context.Background(), dir)
		if err != nil {
			t.Fatalf("Run %d: %v", run, err)
		}
		want := Summary{FilesEmpty: 1, Filtered: 2}
		if sum != want {
			t.Errorf("run %d summary = %+v, want %+v", run, sum, want)
		}
	}
	if len(st.files) != 0 {
		t.Errorf("files recorded = %v, want none", st.files)
	}
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if want := `archive_files_skipped_total{reason="no_language_match"} 2`; !strings.Contains(rec.Body.String(), want) {
		t.Errorf("metrics output missing %q", want)
	}
}

func TestRunCountsDuplicateTweets(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "2020-02", "a.jsonl.gz", `{"id": 1, "full_text": "one", "lang": "en"}`)
	writeArchive(t, dir, "2020-02", "b.jsonl.gz",
		`{"id": 1, "full_text": "one", "lang": "en"}`,
		`{"id": 2, "full_text": "two", "lang": "en"}`,
	)

	sum, err := New(newMemStore(), "en", nil).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sum.Tweets != 2 || sum.Duplicates != 1 || sum.FilesLoaded != 2 {
		t.Errorf("summary = %+v", sum)
	}
}

func TestRunSkipsBadArchives(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "2020-03", "good.jsonl.gz", `{"id": 7, "full_text": "ok", "lang": "en"}`)
	writeArchive(t, dir, "2020-03", "broken-json.jsonl.gz",
		`{"id": 8, "full_text": "fine", "lang": "en"}`,
		`{"id": 9, "full_text": `,
	)
	writeArchive(t, dir, "misc", "elsewhere.jsonl.gz", `{"id": 10, "full_text": "x", "lang": "en"}`)
	if err := os.WriteFile(filepath.Join(dir, "2020-03", "plain.jsonl.gz"), []byte("not gzip"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "2020-03", "notes.txt"), []byte("ignored"), 0o644); err != nil {
		t.Fatal(err)
	}

	st := newMemStore()
	sum, err := New(st, "en", nil).Run(context.Background(), dir)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := Summary{FilesLoaded: 1, FilesSkipped: 1, FilesCorrupt: 2, Tweets: 1}
	if sum != want {
		t.Errorf("summary = %+v, want %+v", sum, want)
	}
	if _, ok := st.tweets[8]; ok {
		t.Error("tweet from a corrupt archive was stored")
	}
}

func TestRunStopsOnStorageFailure(t *testing.T) {
	dir := t.TempDir()
	writeArchive(t, dir, "2020-01", "a.jsonl.gz", `{"id": 1, "full_text": "one", "lang": "en"}`)

	st := newMemStore()
	st.fail = apperrors.ErrStorageUnavailable
	_, err := New(st, "en", nil).Run(context.Background(), dir)
	if !errors.Is(err, apperrors.ErrStorageUnavailable) {
		t.Fatalf("err = %v, want ErrStorageUnavailable", err)
	}
}

func TestRunRejectsMissingDir(t *testing.T) {
	_, err := New(newMemStore(), "en", nil).Run(context.Background(), filepath.Join(t.TempDir(), "absent"))
	if apperrors.ExitCode(err) != apperrors.ExitUsage {
		t.Fatalf("err = %v, want usage error", err)
	}
}
