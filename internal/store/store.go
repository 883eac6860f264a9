// Package store keeps raw tweets and their normalized documents in the
// relational database. Raw tweets are written once by the archive loader;
// documents carry the has_bigram and in_model flags that the lifecycle
// manager advances.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/corpus"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/internal/phrases"
	"github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/database"
	apperrors "github.com/Adithya-Monish-Kumar-K/Tweet-Topic-Analytics/pkg/errors"
)

// Store is the tweet store and the normalized document store.
type Store struct {
	db     *database.Client
	logger *slog.Logger
}

func New(db *database.Client) *Store {
	return &Store{
		db:     db,
		logger: slog.Default().With("component", "document-store"),
	}
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// FileProcessed reports whether any tweet from filename is stored.
func (s *Store) FileProcessed(ctx context.Context, filename string) (bool, error) {
	var exists bool
	err := s.db.DB.QueryRowContext(ctx,
		s.db.Rebind(`SELECT EXISTS (SELECT 1 FROM tweets WHERE filename = ?)`),
		filename,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("checking file %s: %w", filename, classify(err))
	}
	return exists, nil
}

// InsertRaw stores tweets in one transaction. Tweets whose id is already
// stored are skipped; inserted counts the new rows.
func (s *Store) InsertRaw(ctx context.Context, tweets []corpus.RawTweet) (inserted int, err error) {
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(
			`INSERT INTO tweets (tweet_id, date, filename, tweet) VALUES (?, ?, ?, ?)
			 ON CONFLICT (tweet_id) DO NOTHING`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, t := range tweets {
			res, err := stmt.ExecContext(ctx, t.ID, t.Date, t.Filename, t.Text)
			if err != nil {
				return fmt.Errorf("inserting tweet %d: %w", t.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			inserted += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("inserting raw tweets: %w", classify(err))
	}
	return inserted, nil
}

// CountPending is the number of raw tweets of date with no document yet.
func (s *Store) CountPending(ctx context.Context, date string) (int, error) {
	if err := s.ensureDate(ctx, date); err != nil {
		return 0, err
	}
	var n int
	err := s.db.DB.QueryRowContext(ctx, s.db.Rebind(
		`SELECT COUNT(*) FROM tweets t
		 LEFT JOIN tokens k ON k.tweet_id = t.tweet_id
		 WHERE t.date = ? AND k.tweet_id IS NULL`),
		date,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting pending tweets: %w", classify(err))
	}
	return n, nil
}

// FetchPendingRaw returns every raw tweet of date with no document yet,
// ordered by id.
func (s *Store) FetchPendingRaw(ctx context.Context, date string) ([]corpus.RawTweet, error) {
	if err := s.ensureDate(ctx, date); err != nil {
		return nil, err
	}
	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(
		`SELECT t.tweet_id, t.date, t.filename, t.tweet FROM tweets t
		 LEFT JOIN tokens k ON k.tweet_id = t.tweet_id
		 WHERE t.date = ? AND k.tweet_id IS NULL
		 ORDER BY t.tweet_id`),
		date,
	)
	if err != nil {
		return nil, fmt.Errorf("fetching pending tweets: %w", classify(err))
	}
	defer rows.Close()

	var tweets []corpus.RawTweet
	for rows.Next() {
		var t corpus.RawTweet
		if err := rows.Scan(&t.ID, &t.Date, &t.Filename, &t.Text); err != nil {
			return nil, fmt.Errorf("scanning tweet row: %w", classify(err))
		}
		tweets = append(tweets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching pending tweets: %w", classify(err))
	}
	return tweets, nil
}

// InsertNormalized stores one document. It fails with ErrDuplicateKey when a
// document with the same id exists.
func (s *Store) InsertNormalized(ctx context.Context, doc corpus.Document) error {
	return s.insertNormalized(ctx, s.db.DB, doc)
}

// InsertNormalizedBatch stores docs in one transaction, skipping duplicates.
func (s *Store) InsertNormalizedBatch(ctx context.Context, docs []corpus.Document) (inserted, skipped int, err error) {
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		inserted, skipped = 0, 0
		for _, doc := range docs {
			err := s.insertNormalized(ctx, tx, doc)
			switch {
			case errors.Is(err, apperrors.ErrDuplicateKey):
				skipped++
			case err != nil:
				return err
			default:
				inserted++
			}
		}
		return nil
	})
	if err != nil {
		return 0, 0, fmt.Errorf("inserting documents: %w", classify(err))
	}
	return inserted, skipped, nil
}

func (s *Store) insertNormalized(ctx context.Context, ex execer, doc corpus.Document) error {
	tokens, err := encodeTokens(doc.Tokens)
	if err != nil {
		return err
	}
	res, err := ex.ExecContext(ctx, s.db.Rebind(
		`INSERT INTO tokens (tweet_id, date, tokenized_text, has_bigram, in_model) VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT (tweet_id) DO NOTHING`),
		doc.ID, doc.Date, tokens, doc.HasBigram, false,
	)
	if err != nil {
		return fmt.Errorf("inserting document %d: %w", doc.ID, classify(err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("inserting document %d: %w", doc.ID, classify(err))
	}
	if n == 0 {
		return apperrors.Newf(apperrors.ErrDuplicateKey, apperrors.ExitInternal, "document %d", doc.ID)
	}
	return nil
}

// FetchBatch returns up to limit documents of date ordered by id. With
// onlyNotInModel only documents not yet in the model are returned, so
// successive batches never overlap once each batch is marked.
func (s *Store) FetchBatch(ctx context.Context, date string, limit int, onlyNotInModel bool) ([]corpus.Document, error) {
	if err := s.ensureDate(ctx, date); err != nil {
		return nil, err
	}
	query := `SELECT tweet_id, date, tokenized_text, has_bigram, in_model FROM tokens WHERE date = ?`
	args := []any{date}
	if onlyNotInModel {
		query += ` AND in_model = ?`
		args = append(args, false)
	}
	query += ` ORDER BY tweet_id LIMIT ?`
	args = append(args, limit)
	return s.queryDocuments(ctx, query, args...)
}

// FetchAllDocuments returns every document of date ordered by id.
func (s *Store) FetchAllDocuments(ctx context.Context, date string) ([]corpus.Document, error) {
	if err := s.ensureDate(ctx, date); err != nil {
		return nil, err
	}
	return s.queryDocuments(ctx,
		`SELECT tweet_id, date, tokenized_text, has_bigram, in_model FROM tokens WHERE date = ? ORDER BY tweet_id`,
		date,
	)
}

// FetchAllTokens returns the token sequences of every document of date, or
// only of those with phrases folded in when requireBigram is set.
func (s *Store) FetchAllTokens(ctx context.Context, date string, requireBigram bool) ([][]string, error) {
	if err := s.ensureDate(ctx, date); err != nil {
		return nil, err
	}
	query := `SELECT tokenized_text FROM tokens WHERE date = ?`
	args := []any{date}
	if requireBigram {
		query += ` AND has_bigram = ?`
		args = append(args, true)
	}
	query += ` ORDER BY tweet_id`

	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching tokens: %w", classify(err))
	}
	defer rows.Close()

	var docs [][]string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scanning tokens row: %w", classify(err))
		}
		tokens, err := decodeTokens(raw)
		if err != nil {
			return nil, err
		}
		docs = append(docs, tokens)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching tokens: %w", classify(err))
	}
	return docs, nil
}

// FoldBigrams writes the phrase-expanded tokens of docs and sets has_bigram,
// all in one transaction. Rows that already have phrases are left alone;
// folded counts the rows changed.
func (s *Store) FoldBigrams(ctx context.Context, docs []corpus.Document) (folded int, err error) {
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		folded = 0
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(
			`UPDATE tokens SET tokenized_text = ?, has_bigram = ? WHERE tweet_id = ? AND has_bigram = ?`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, doc := range docs {
			tokens, err := encodeTokens(doc.Tokens)
			if err != nil {
				return err
			}
			res, err := stmt.ExecContext(ctx, tokens, true, doc.ID, false)
			if err != nil {
				return fmt.Errorf("folding document %d: %w", doc.ID, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			folded += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("folding bigrams: %w", classify(err))
	}
	return folded, nil
}

// ResetBigrams strips phrase tokens from every document of date and clears
// has_bigram, so a regenerated bigram model can be folded in again. It
// returns the number of documents reset.
func (s *Store) ResetBigrams(ctx context.Context, date string) (reset int, err error) {
	if err := s.ensureDate(ctx, date); err != nil {
		return 0, err
	}
	err = s.db.InTx(ctx, func(tx *sql.Tx) error {
		rows, err := tx.QueryContext(ctx, s.db.Rebind(
			`SELECT tweet_id, tokenized_text FROM tokens WHERE date = ? AND has_bigram = ?`),
			date, true,
		)
		if err != nil {
			return err
		}
		var docs []corpus.Document
		for rows.Next() {
			var (
				d   corpus.Document
				raw string
			)
			if err := rows.Scan(&d.ID, &raw); err != nil {
				rows.Close()
				return err
			}
			if d.Tokens, err = decodeTokens(raw); err != nil {
				rows.Close()
				return fmt.Errorf("document %d: %w", d.ID, err)
			}
			docs = append(docs, d)
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(
			`UPDATE tokens SET tokenized_text = ?, has_bigram = ? WHERE tweet_id = ?`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		reset = 0
		for _, d := range docs {
			tokens, err := encodeTokens(stripPhrases(d.Tokens))
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, tokens, false, d.ID); err != nil {
				return fmt.Errorf("resetting document %d: %w", d.ID, err)
			}
			reset++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("resetting bigrams for %s: %w", date, classify(err))
	}
	s.logger.Info("bigram phrases reset", "date", date, "documents", reset)
	return reset, nil
}

// MarkInModel sets in_model for every id in one transaction. If any id does
// not match exactly one document nothing is marked.
func (s *Store) MarkInModel(ctx context.Context, ids []int64) error {
	err := s.db.InTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, s.db.Rebind(`UPDATE tokens SET in_model = ? WHERE tweet_id = ?`))
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, id := range ids {
			res, err := stmt.ExecContext(ctx, true, id)
			if err != nil {
				return fmt.Errorf("marking document %d: %w", id, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return err
			}
			if n != 1 {
				return apperrors.Newf(apperrors.ErrInternal, apperrors.ExitInternal,
					"marking document %d matched %d rows", id, n)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("marking %d documents in model: %w", len(ids), classify(err))
	}
	s.logger.Debug("documents marked in model", "count", len(ids))
	return nil
}

// Stats aggregates the raw and document counts of date.
func (s *Store) Stats(ctx context.Context, date string) (corpus.Stats, error) {
	var st corpus.Stats
	err := s.db.DB.QueryRowContext(ctx, s.db.Rebind(
		`SELECT
			(SELECT COUNT(*) FROM tweets WHERE date = ?),
			COUNT(*),
			COALESCE(SUM(CASE WHEN has_bigram THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN in_model THEN 1 ELSE 0 END), 0)
		 FROM tokens WHERE date = ?`),
		date, date,
	).Scan(&st.Raw, &st.Normalized, &st.WithBigram, &st.InModel)
	if err != nil {
		return corpus.Stats{}, fmt.Errorf("reading stats for %s: %w", date, classify(err))
	}
	if st.Raw == 0 {
		return st, notFound(date)
	}
	return st, nil
}

func (s *Store) ensureDate(ctx context.Context, date string) error {
	var n int
	err := s.db.DB.QueryRowContext(ctx,
		s.db.Rebind(`SELECT COUNT(*) FROM (SELECT 1 FROM tweets WHERE date = ? LIMIT 1) t`),
		date,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("checking date %s: %w", date, classify(err))
	}
	if n == 0 {
		return notFound(date)
	}
	return nil
}

func (s *Store) queryDocuments(ctx context.Context, query string, args ...any) ([]corpus.Document, error) {
	rows, err := s.db.DB.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("fetching documents: %w", classify(err))
	}
	defer rows.Close()

	var docs []corpus.Document
	for rows.Next() {
		var (
			d   corpus.Document
			raw string
		)
		if err := rows.Scan(&d.ID, &d.Date, &raw, &d.HasBigram, &d.InModel); err != nil {
			return nil, fmt.Errorf("scanning document row: %w", classify(err))
		}
		if d.Tokens, err = decodeTokens(raw); err != nil {
			return nil, fmt.Errorf("document %d: %w", d.ID, err)
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("fetching documents: %w", classify(err))
	}
	return docs, nil
}

// stripPhrases drops joined phrase tokens. Normalized tokens never contain
// the phrase delimiter.
func stripPhrases(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !strings.Contains(t, phrases.Delimiter) {
			out = append(out, t)
		}
	}
	return out
}

func notFound(date string) error {
	return apperrors.Newf(apperrors.ErrNotFound, apperrors.ExitNotFound, "date %s", date)
}

func encodeTokens(tokens []string) (string, error) {
	if tokens == nil {
		tokens = []string{}
	}
	data, err := json.Marshal(tokens)
	if err != nil {
		return "", fmt.Errorf("encoding tokens: %w", err)
	}
	return string(data), nil
}

func decodeTokens(raw string) ([]string, error) {
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil, fmt.Errorf("decoding tokens: %w", err)
	}
	return tokens, nil
}
