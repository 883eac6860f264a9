// Package ingest loads monthly tweet archives into the tweet store. Archives
// are gzip-compressed JSON lines files kept under one directory per month:
//
//	data/2020-01/coronavirus-tweet-id-2020-01-21-22.jsonl.gz
//
// Only tweets in the configured language are stored.
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/metrics"
	"github.com/klauspost/compress/gzip"
)

const (
	archiveSuffix = ".jsonl.gz"
	maxLineSize   = 16 << 20
)

// TweetStore is the subset of the document store the loader writes to.
type TweetStore interface {
	FileProcessed(ctx context.Context, filename string) (bool, error)
	InsertRaw(ctx context.Context, tweets []corpus.RawTweet) (int, error)
}

// Summary counts what one Run did. FilesEmpty counts archives with no tweet
// in the configured language; nothing is stored for them, so they are read
// again by the next Run.
type Summary struct {
	FilesLoaded  int `json:"files_loaded"`
	FilesSkipped int `json:"files_skipped"`
	FilesCorrupt int `json:"files_corrupt"`
	FilesEmpty   int `json:"files_empty"`
	Tweets       int `json:"tweets"`
	Duplicates   int `json:"duplicates"`
	Filtered     int `json:"filtered"`
}

// Loader walks a data directory and stores the tweets of every archive not
// loaded before.
type Loader struct {
	store    TweetStore
	language string
	metrics  *metrics.Metrics
	logger   *slog.Logger
}

// New creates a Loader. m may be nil.
func New(store TweetStore, language string, m *metrics.Metrics) *Loader {
	return &Loader{
		store:    store,
		language: language,
		metrics:  m,
		logger:   slog.Default().With("component", "archive-loader"),
	}
}

type tweetLine struct {
	ID       int64  `json:"id"`
	IDStr    string `json:"id_str"`
	FullText string `json:"full_text"`
	Text     string `json:"text"`
	Lang     string `json:"lang"`
}

// Run loads every archive under dataDir. Files are processed in path order.
// Archives that are already stored or cannot be decoded are skipped; storage
// failures stop the run.
func (l *Loader) Run(ctx context.Context, dataDir string) (Summary, error) {
	var sum Summary
	files, err := findArchives(dataDir)
	if err != nil {
		return sum, err
	}
	l.logger.Info("archives found", "dir", dataDir, "count", len(files))

	for _, path := range files {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		date := filepath.Base(filepath.Dir(path))
		filename := filepath.Base(path)
		if !corpus.ValidDate(date) {
			l.logger.Warn("archive outside a YYYY-MM directory, skipping", "path", path)
			l.skipped("bad_date")
			sum.FilesSkipped++
			continue
		}

		done, err := l.store.FileProcessed(ctx, filename)
		if err != nil {
			return sum, err
		}
		if done {
			l.logger.Info("archive already in database", "file", filename)
			l.skipped("processed")
			sum.FilesSkipped++
			continue
		}

		tweets, filtered, err := l.readArchive(path, date, filename)
		if err != nil {
			l.logger.Warn("archive corrupted, skipping", "path", path, "error", err)
			l.skipped("corrupt")
			sum.FilesCorrupt++
			continue
		}

		if len(tweets) == 0 {
			l.logger.Info("archive has no tweets in language, it will be read again next run",
				"file", filename,
				"language", l.language,
				"filtered", filtered,
			)
			l.skipped("no_language_match")
			sum.FilesEmpty++
			sum.Filtered += filtered
			continue
		}

		inserted, err := l.store.InsertRaw(ctx, tweets)
		if err != nil {
			return sum, fmt.Errorf("loading %s: %w", filename, err)
		}
		sum.FilesLoaded++
		sum.Tweets += inserted
		sum.Duplicates += len(tweets) - inserted
		sum.Filtered += filtered
		if l.metrics != nil {
			l.metrics.TweetsIngestedTotal.Add(float64(inserted))
			l.metrics.DuplicatesSkipped.WithLabelValues("tweets").Add(float64(len(tweets) - inserted))
		}
		l.logger.Info("archive added to the database",
			"file", filename,
			"date", date,
			"tweets", inserted,
			"duplicates", len(tweets)-inserted,
			"filtered", filtered,
		)
	}
	return sum, nil
}

func (l *Loader) skipped(reason string) {
	if l.metrics != nil {
		l.metrics.FilesSkippedTotal.WithLabelValues(reason).Inc()
	}
}

func findArchives(dataDir string) ([]string, error) {
	info, err := os.Stat(dataDir)
	if err != nil {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "data directory: %v", err)
	}
	if !info.IsDir() {
		return nil, apperrors.Newf(apperrors.ErrInvalidInput, apperrors.ExitUsage, "%s is not a directory", dataDir)
	}

	var files []string
	err = filepath.WalkDir(dataDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(d.Name(), archiveSuffix) {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking %s: %w", dataDir, err)
	}
	sort.Strings(files)
	return files, nil
}

// readArchive decodes a whole archive before anything is stored, so a file
// that fails halfway contributes no tweets.
func (l *Loader) readArchive(path, date, filename string) (tweets []corpus.RawTweet, filtered int, err error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		return nil, 0, fmt.Errorf("opening gzip stream: %w", err)
	}
	defer zr.Close()

	return l.decode(zr, date, filename)
}

func (l *Loader) decode(r io.Reader, date, filename string) (tweets []corpus.RawTweet, filtered int, err error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := sc.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		var tl tweetLine
		if err := json.Unmarshal(line, &tl); err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if tl.Lang != l.language {
			filtered++
			continue
		}
		id, err := tl.id()
		if err != nil {
			return nil, 0, fmt.Errorf("line %d: %w", lineNo, err)
		}
		text := tl.FullText
		if text == "" {
			text = tl.Text
		}
		tweets = append(tweets, corpus.RawTweet{ID: id, Date: date, Filename: filename, Text: text})
	}
	if err := sc.Err(); err != nil {
		return nil, 0, fmt.Errorf("reading archive: %w", err)
	}
	return tweets, filtered, nil
}

var errNoID = errors.New("tweet has no id")

func (t tweetLine) id() (int64, error) {
	if t.ID != 0 {
		return t.ID, nil
	}
	if t.IDStr == "" {
		return 0, errNoID
	}
	return strconv.ParseInt(t.IDStr, 10, 64)
}
