// Package store reads and appends the durable submissions corpus. The core
// only ever reads during training; writes happen through the ingestion path.
package store

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"  // postgres driver
	_ "modernc.org/sqlite" // sqlite driver for local corpora and tests

	"github.com/hollyoak/flaircast/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS submissions (
	id              TEXT PRIMARY KEY,
	author          TEXT,
	title           TEXT,
	created_utc     TIMESTAMP,
	selftext        TEXT,
	subreddit       TEXT,
	link_flair_text TEXT,
	link            TEXT,
	num_comments    INTEGER NOT NULL DEFAULT 0,
	score           INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS idx_submissions_subreddit_flair
	ON submissions (subreddit, link_flair_text);
`

// Store wraps the submissions table.
type Store struct {
	db *sqlx.DB
}

// Open connects to the corpus database. driver is "postgres" or "sqlite".
func Open(driver, dsn string) (*Store, error) {
	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("store: connect %s: %w", driver, err)
	}
	return &Store{db: db}, nil
}

// EnsureSchema creates the submissions table when it does not exist. In
// production the acquisition process owns the schema; this exists for local
// sqlite corpora and tests.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("store: ensure schema: %w", err)
	}
	return nil
}

// Close closes the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// Filter selects submissions for corpus building.
type Filter struct {
	Subreddit string
	Flairs    []string // empty = any labeled flair
	Start     time.Time
	End       time.Time
	Limit     int
}

// Deleted-body markers excluded from training corpora.
var deletedMarkers = []string{"[deleted]", "[removed]"}

// Labeled returns flair-labeled submissions matching the filter as training
// examples, excluding deleted and removed bodies.
func (s *Store) Labeled(ctx context.Context, f Filter) ([]model.Example, error) {
	query := `SELECT id, COALESCE(title, '') AS title, COALESCE(selftext, '') AS selftext, link_flair_text
		FROM submissions
		WHERE link_flair_text IS NOT NULL AND link_flair_text <> ''
		AND (selftext IS NULL OR selftext NOT IN (?, ?))`
	args := []any{deletedMarkers[0], deletedMarkers[1]}

	if f.Subreddit != "" {
		query += ` AND subreddit = ?`
		args = append(args, f.Subreddit)
	}
	if len(f.Flairs) > 0 {
		var err error
		query, args, err = appendIn(query, args, `link_flair_text`, f.Flairs)
		if err != nil {
			return nil, err
		}
	}
	if !f.Start.IsZero() {
		query += ` AND created_utc >= ?`
		args = append(args, f.Start)
	}
	if !f.End.IsZero() {
		query += ` AND created_utc < ?`
		args = append(args, f.End)
	}
	query += ` ORDER BY id`
	if f.Limit > 0 {
		query += ` LIMIT ?`
		args = append(args, f.Limit)
	}

	rows, err := s.db.QueryxContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: labeled: %w", err)
	}
	defer rows.Close()

	var examples []model.Example
	for rows.Next() {
		var ex model.Example
		if err := rows.Scan(&ex.ID, &ex.Title, &ex.Body, &ex.Flair); err != nil {
			return nil, fmt.Errorf("store: labeled: %w", err)
		}
		examples = append(examples, ex)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: labeled: %w", err)
	}
	return examples, nil
}

// Unlabeled returns submissions without an observed flair, newest first,
// capped at limit. These are the inference candidates.
func (s *Store) Unlabeled(ctx context.Context, subreddit string, limit int) ([]model.Submission, error) {
	query := `SELECT id, author, COALESCE(title, '') AS title, created_utc,
			COALESCE(selftext, '') AS selftext, COALESCE(subreddit, '') AS subreddit,
			link_flair_text, link, num_comments, score
		FROM submissions
		WHERE (link_flair_text IS NULL OR link_flair_text = '')`
	args := []any{}
	if subreddit != "" {
		query += ` AND subreddit = ?`
		args = append(args, subreddit)
	}
	query += ` ORDER BY created_utc DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	var subs []model.Submission
	if err := s.db.SelectContext(ctx, &subs, s.db.Rebind(query), args...); err != nil {
		return nil, fmt.Errorf("store: unlabeled: %w", err)
	}
	return subs, nil
}

// ByID fetches one submission.
func (s *Store) ByID(ctx context.Context, id string) (model.Submission, error) {
	var sub model.Submission
	query := s.db.Rebind(`SELECT id, author, COALESCE(title, '') AS title, created_utc,
			COALESCE(selftext, '') AS selftext, COALESCE(subreddit, '') AS subreddit,
			link_flair_text, link, num_comments, score
		FROM submissions WHERE id = ?`)
	if err := s.db.GetContext(ctx, &sub, query, id); err != nil {
		return model.Submission{}, fmt.Errorf("store: submission %s: %w", id, err)
	}
	return sub, nil
}

// InsertBatch appends submissions in one transaction. Conflicting ids are
// skipped: rows are immutable once ingested.
func (s *Store) InsertBatch(ctx context.Context, subs []model.Submission) (int, error) {
	if len(subs) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("store: insert batch: %w", err)
	}
	defer tx.Rollback()

	query := tx.Rebind(`INSERT INTO submissions
		(id, author, title, created_utc, selftext, subreddit, link_flair_text, link, num_comments, score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (id) DO NOTHING`)

	inserted := 0
	for _, sub := range subs {
		res, err := tx.ExecContext(ctx, query,
			sub.ID, sub.Author, sub.Title, sub.CreatedUTC, sub.Selftext,
			sub.Subreddit, sub.LinkFlairText, sub.Link, sub.NumComments, sub.Score)
		if err != nil {
			return 0, fmt.Errorf("store: insert %s: %w", sub.ID, err)
		}
		if n, err := res.RowsAffected(); err == nil {
			inserted += int(n)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("store: insert batch: %w", err)
	}
	return inserted, nil
}

// CountByFlair returns label frequencies for labeled submissions, the input
// to imbalance decisions and corpus sanity checks.
func (s *Store) CountByFlair(ctx context.Context, subreddit string) (map[string]int, error) {
	query := `SELECT link_flair_text, COUNT(*) FROM submissions
		WHERE link_flair_text IS NOT NULL AND link_flair_text <> ''`
	args := []any{}
	if subreddit != "" {
		query += ` AND subreddit = ?`
		args = append(args, subreddit)
	}
	query += ` GROUP BY link_flair_text`

	rows, err := s.db.QueryContext(ctx, s.db.Rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: count by flair: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var flair string
		var n int
		if err := rows.Scan(&flair, &n); err != nil {
			return nil, fmt.Errorf("store: count by flair: %w", err)
		}
		counts[flair] = n
	}
	return counts, rows.Err()
}

// appendIn expands an IN clause with sqlx.In and splices it onto query.
func appendIn(query string, args []any, column string, values []string) (string, []any, error) {
	inQuery, inArgs, err := sqlx.In(` AND `+column+` IN (?)`, values)
	if err != nil {
		return "", nil, fmt.Errorf("store: %w", err)
	}
	return query + inQuery, append(args, inArgs...), nil
}
