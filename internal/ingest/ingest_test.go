package ingest

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/hollyoak/flaircast/internal/store"
)

// writeDump compresses one NDJSON line per record into a .zst file.
func writeDump(t *testing.T, dir, name string, lines []string) {
	t.Helper()
	f, err := os.Create(filepath.Join(dir, name))
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		t.Fatal(err)
	}
	for _, line := range lines {
		if _, err := enc.Write([]byte(line + "\n")); err != nil {
			t.Fatal(err)
		}
	}
	if err := enc.Close(); err != nil {
		t.Fatal(err)
	}
}

func record(t *testing.T, fields map[string]any) string {
	t.Helper()
	b, err := json.Marshal(fields)
	if err != nil {
		t.Fatal(err)
	}
	return string(b)
}

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestRunIngestsDump(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "dump.zst", []string{
		record(t, map[string]any{
			"id": "t3_1", "author": "alice", "title": "Struggling",
			"selftext": "need support", "subreddit": "mentalhealth",
			"link_flair_text": "Need Support", "created_utc": 1591000000,
		}),
		record(t, map[string]any{
			"id": "t3_2", "title": "Progress", "selftext": "doing better",
			"subreddit": "mentalhealth", "created_utc": "1591100000",
		}),
		record(t, map[string]any{
			"id": "t3_3", "title": "Elsewhere", "subreddit": "golang",
			"created_utc": 1591000000,
		}),
		"not json at all",
	})

	st := openTestStore(t)
	stats, err := Run(context.Background(), st, Config{Dir: dir, Subreddit: "mentalhealth"})
	if err != nil {
		t.Fatal(err)
	}

	if stats.Files != 1 {
		t.Fatalf("processed %d files, want 1", stats.Files)
	}
	if stats.Inserted != 2 {
		t.Fatalf("inserted %d records, want 2: %+v", stats.Inserted, stats)
	}
	if stats.Skipped != 2 {
		t.Fatalf("skipped %d records, want 2 (wrong subreddit + bad json): %+v", stats.Skipped, stats)
	}

	sub, err := st.ByID(context.Background(), "t3_1")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Flair() != "Need Support" || sub.Author.String != "alice" {
		t.Fatalf("stored record mismatch: %+v", sub)
	}
	if !sub.CreatedUTC.Valid {
		t.Fatal("created_utc not stored")
	}

	// created_utc as a JSON string must parse too.
	sub2, err := st.ByID(context.Background(), "t3_2")
	if err != nil {
		t.Fatal(err)
	}
	if !sub2.CreatedUTC.Valid {
		t.Fatal("string epoch created_utc not parsed")
	}
}

func TestRunDateWindow(t *testing.T) {
	dir := t.TempDir()
	writeDump(t, dir, "dump.zst", []string{
		record(t, map[string]any{
			"id": "t3_old", "subreddit": "mentalhealth", "created_utc": 1262304000, // 2010
		}),
		record(t, map[string]any{
			"id": "t3_in", "subreddit": "mentalhealth", "created_utc": 1591000000, // 2020-06
		}),
		record(t, map[string]any{
			"id": "t3_future", "subreddit": "mentalhealth", "created_utc": 1893456000, // 2030
		}),
	})

	st := openTestStore(t)
	stats, err := Run(context.Background(), st, Config{
		Dir:   dir,
		Start: time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
	})
	if err != nil {
		t.Fatal(err)
	}
	if stats.Inserted != 1 {
		t.Fatalf("inserted %d records, want only the in-window one", stats.Inserted)
	}
	if _, err := st.ByID(context.Background(), "t3_in"); err != nil {
		t.Fatal("in-window record missing:", err)
	}
}

func TestRunRequiresDumps(t *testing.T) {
	st := openTestStore(t)
	if _, err := Run(context.Background(), st, Config{Dir: t.TempDir()}); err == nil {
		t.Fatal("expected error for directory without dump files")
	}
}

func TestConvertRejectsMissingID(t *testing.T) {
	if _, ok := convert(rawSubmission{Title: "no id"}, Config{}); ok {
		t.Fatal("record without id should be dropped")
	}
}
