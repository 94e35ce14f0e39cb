// Package ingest loads zstd-compressed NDJSON submission dumps into the
// corpus store. Files are processed by concurrent workers; each line is one
// raw submission record.
package ingest

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/klauspost/compress/zstd"
	"golang.org/x/sync/errgroup"

	"github.com/hollyoak/flaircast/internal/model"
	"github.com/hollyoak/flaircast/internal/store"
)

// Config controls an ingestion run.
type Config struct {
	Dir       string    `yaml:"dir"`
	Subreddit string    `yaml:"subreddit"` // keep only records from this community; "" keeps all
	Start     time.Time `yaml:"start"`     // zero = unbounded
	End       time.Time `yaml:"end"`
	Workers   int       `yaml:"workers"`    // default 4
	BatchSize int       `yaml:"batch_size"` // rows per insert transaction, default 500
}

// Stats summarizes one ingestion run.
type Stats struct {
	Files    int
	Read     int64
	Inserted int64
	Skipped  int64
}

// rawSubmission mirrors the dump's JSON layout. created_utc arrives as a
// unix epoch that is sometimes a number and sometimes a quoted string.
type rawSubmission struct {
	ID            string `json:"id"`
	Author        string `json:"author"`
	Title         string `json:"title"`
	CreatedUTC    epoch  `json:"created_utc"`
	Selftext      string `json:"selftext"`
	Subreddit     string `json:"subreddit"`
	LinkFlairText string `json:"link_flair_text"`
	Permalink     string `json:"permalink"`
	NumComments   int    `json:"num_comments"`
	Score         int    `json:"score"`
}

// epoch is a unix timestamp tolerant of both number and string encodings.
// Unparseable values stay zero rather than failing the record.
type epoch struct {
	time.Time
}

func (e *epoch) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f <= 0 {
		return nil
	}
	e.Time = time.Unix(int64(f), 0).UTC()
	return nil
}

// Run walks cfg.Dir for .zst dump files and loads matching records into st.
func Run(ctx context.Context, st *store.Store, cfg Config) (Stats, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 500
	}

	var files []string
	err := filepath.WalkDir(cfg.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.HasSuffix(path, ".zst") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return Stats{}, fmt.Errorf("ingest: walk %s: %w", cfg.Dir, err)
	}
	if len(files) == 0 {
		return Stats{}, fmt.Errorf("ingest: no .zst files under %s", cfg.Dir)
	}

	var read, inserted, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)
	for _, path := range files {
		path := path
		g.Go(func() error {
			fileRead, fileInserted, fileSkipped, err := ingestFile(gctx, st, path, cfg)
			if err != nil {
				return err
			}
			read.Add(fileRead)
			inserted.Add(fileInserted)
			skipped.Add(fileSkipped)
			slog.Info("ingested dump file", "path", path,
				"read", fileRead, "inserted", fileInserted, "skipped", fileSkipped)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Stats{}, err
	}

	return Stats{
		Files:    len(files),
		Read:     read.Load(),
		Inserted: inserted.Load(),
		Skipped:  skipped.Load(),
	}, nil
}

func ingestFile(ctx context.Context, st *store.Store, path string, cfg Config) (read, inserted, skipped int64, err error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ingest: %w", err)
	}
	defer f.Close()

	// Pushshift-style dumps are compressed with a long window (--long=31).
	dec, err := zstd.NewReader(f, zstd.WithDecoderMaxWindow(1<<31))
	if err != nil {
		return 0, 0, 0, fmt.Errorf("ingest: %s: %w", path, err)
	}
	defer dec.Close()

	scanner := bufio.NewScanner(dec)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<26)

	batch := make([]model.Submission, 0, cfg.BatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := st.InsertBatch(ctx, batch)
		if err != nil {
			return fmt.Errorf("ingest: %s: %w", path, err)
		}
		inserted += int64(n)
		skipped += int64(len(batch) - n)
		batch = batch[:0]
		return nil
	}

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return read, inserted, skipped, err
		}

		var raw rawSubmission
		if err := json.Unmarshal(scanner.Bytes(), &raw); err != nil {
			skipped++
			continue
		}
		read++

		sub, ok := convert(raw, cfg)
		if !ok {
			skipped++
			continue
		}
		batch = append(batch, sub)
		if len(batch) >= cfg.BatchSize {
			if err := flush(); err != nil {
				return read, inserted, skipped, err
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return read, inserted, skipped, fmt.Errorf("ingest: %s: %w", path, err)
	}
	if err := flush(); err != nil {
		return read, inserted, skipped, err
	}
	return read, inserted, skipped, nil
}

// convert filters a raw record against the config and maps it onto the
// stored schema. Records outside the community or date range are dropped.
func convert(raw rawSubmission, cfg Config) (model.Submission, bool) {
	if raw.ID == "" {
		return model.Submission{}, false
	}
	if cfg.Subreddit != "" && raw.Subreddit != cfg.Subreddit {
		return model.Submission{}, false
	}

	created := raw.CreatedUTC.Time
	if !cfg.Start.IsZero() && (created.IsZero() || created.Before(cfg.Start)) {
		return model.Submission{}, false
	}
	if !cfg.End.IsZero() && !created.Before(cfg.End) {
		return model.Submission{}, false
	}

	sub := model.Submission{
		ID:          raw.ID,
		Title:       raw.Title,
		Selftext:    raw.Selftext,
		Subreddit:   raw.Subreddit,
		NumComments: raw.NumComments,
		Score:       raw.Score,
	}
	if raw.Author != "" {
		sub.Author.String, sub.Author.Valid = raw.Author, true
	}
	if !created.IsZero() {
		sub.CreatedUTC.Time, sub.CreatedUTC.Valid = created, true
	}
	if raw.LinkFlairText != "" {
		sub.LinkFlairText.String, sub.LinkFlairText.Valid = raw.LinkFlairText, true
	}
	if raw.Permalink != "" {
		sub.Link.String, sub.Link.Valid = raw.Permalink, true
	}
	return sub, true
}
