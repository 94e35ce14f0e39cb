package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/hollyoak/flaircast/internal/model"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open("sqlite", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { s.Close() })
	if err := s.EnsureSchema(context.Background()); err != nil {
		t.Fatal(err)
	}
	return s
}

func flair(v string) sql.NullString {
	return sql.NullString{String: v, Valid: true}
}

func at(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: true}
}

func seedSubmissions(t *testing.T, s *Store) {
	t.Helper()
	base := time.Date(2020, 6, 1, 0, 0, 0, 0, time.UTC)
	subs := []model.Submission{
		{ID: "t3_a", Title: "Struggling", Selftext: "need help", Subreddit: "mentalhealth",
			LinkFlairText: flair("Need Support"), CreatedUTC: at(base)},
		{ID: "t3_b", Title: "Progress", Selftext: "feeling better", Subreddit: "mentalhealth",
			LinkFlairText: flair("Good News"), CreatedUTC: at(base.AddDate(0, 1, 0))},
		{ID: "t3_c", Title: "Gone", Selftext: "[deleted]", Subreddit: "mentalhealth",
			LinkFlairText: flair("Need Support"), CreatedUTC: at(base)},
		{ID: "t3_d", Title: "Removed", Selftext: "[removed]", Subreddit: "mentalhealth",
			LinkFlairText: flair("Venting"), CreatedUTC: at(base)},
		{ID: "t3_e", Title: "No flair yet", Selftext: "what is this", Subreddit: "mentalhealth",
			CreatedUTC: at(base.AddDate(0, 2, 0))},
		{ID: "t3_f", Title: "Other sub", Selftext: "unrelated", Subreddit: "golang",
			LinkFlairText: flair("Need Support"), CreatedUTC: at(base)},
	}
	n, err := s.InsertBatch(context.Background(), subs)
	if err != nil {
		t.Fatal(err)
	}
	if n != len(subs) {
		t.Fatalf("inserted %d rows, want %d", n, len(subs))
	}
}

func TestInsertBatchSkipsConflicts(t *testing.T) {
	s := openTestStore(t)
	seedSubmissions(t, s)

	n, err := s.InsertBatch(context.Background(), []model.Submission{
		{ID: "t3_a", Title: "duplicate", Subreddit: "mentalhealth"},
		{ID: "t3_new", Title: "fresh", Subreddit: "mentalhealth"},
	})
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Fatalf("inserted %d rows, want 1 (conflict skipped)", n)
	}

	// The original row must be untouched.
	sub, err := s.ByID(context.Background(), "t3_a")
	if err != nil {
		t.Fatal(err)
	}
	if sub.Title != "Struggling" {
		t.Fatalf("conflicting insert overwrote row: title %q", sub.Title)
	}
}

func TestLabeledExcludesDeletedAndUnlabeled(t *testing.T) {
	s := openTestStore(t)
	seedSubmissions(t, s)

	examples, err := s.Labeled(context.Background(), Filter{Subreddit: "mentalhealth"})
	if err != nil {
		t.Fatal(err)
	}

	ids := map[string]bool{}
	for _, ex := range examples {
		ids[ex.ID] = true
		if ex.Flair == "" {
			t.Fatalf("unlabeled example returned: %+v", ex)
		}
	}
	for _, want := range []string{"t3_a", "t3_b"} {
		if !ids[want] {
			t.Errorf("expected %s in labeled examples, got %v", want, ids)
		}
	}
	for _, banned := range []string{"t3_c", "t3_d", "t3_e", "t3_f"} {
		if ids[banned] {
			t.Errorf("%s should be excluded from labeled examples", banned)
		}
	}
}

func TestLabeledKeepsNullSelftext(t *testing.T) {
	s := openTestStore(t)
	seedSubmissions(t, s)

	// External ingesters may leave selftext NULL for title-only posts. The
	// deleted-marker predicate must not drop those rows.
	_, err := s.db.Exec(
		`INSERT INTO submissions (id, title, selftext, subreddit, link_flair_text) VALUES (?, NULL, NULL, ?, ?)`,
		"t3_null", "mentalhealth", "Venting")
	if err != nil {
		t.Fatal(err)
	}

	examples, err := s.Labeled(context.Background(), Filter{Subreddit: "mentalhealth"})
	if err != nil {
		t.Fatal(err)
	}
	found := false
	for _, ex := range examples {
		if ex.ID == "t3_null" {
			found = true
			if ex.Body != "" || ex.Title != "" {
				t.Fatalf("NULL columns not coalesced: %+v", ex)
			}
		}
	}
	if !found {
		t.Fatalf("NULL-selftext labeled row missing from corpus: %d examples", len(examples))
	}
}

func TestLabeledFlairAndTimeFilters(t *testing.T) {
	s := openTestStore(t)
	seedSubmissions(t, s)
	ctx := context.Background()

	byFlair, err := s.Labeled(ctx, Filter{Subreddit: "mentalhealth", Flairs: []string{"Good News"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(byFlair) != 1 || byFlair[0].ID != "t3_b" {
		t.Fatalf("flair filter returned %+v, want only t3_b", byFlair)
	}

	cutoff := time.Date(2020, 6, 15, 0, 0, 0, 0, time.UTC)
	early, err := s.Labeled(ctx, Filter{Subreddit: "mentalhealth", End: cutoff})
	if err != nil {
		t.Fatal(err)
	}
	if len(early) != 1 || early[0].ID != "t3_a" {
		t.Fatalf("time filter returned %+v, want only t3_a", early)
	}

	limited, err := s.Labeled(ctx, Filter{Subreddit: "mentalhealth", Limit: 1})
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 1 {
		t.Fatalf("limit 1 returned %d rows", len(limited))
	}
}

func TestUnlabeled(t *testing.T) {
	s := openTestStore(t)
	seedSubmissions(t, s)

	subs, err := s.Unlabeled(context.Background(), "mentalhealth", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(subs) != 1 || subs[0].ID != "t3_e" {
		t.Fatalf("got %+v, want only t3_e", subs)
	}
	if subs[0].Labeled() {
		t.Fatal("unlabeled result reports Labeled() true")
	}
}

func TestByIDMissing(t *testing.T) {
	s := openTestStore(t)
	if _, err := s.ByID(context.Background(), "t3_absent"); err == nil {
		t.Fatal("expected error for missing id")
	}
}

func TestCountByFlair(t *testing.T) {
	s := openTestStore(t)
	seedSubmissions(t, s)

	counts, err := s.CountByFlair(context.Background(), "mentalhealth")
	if err != nil {
		t.Fatal(err)
	}
	// Deleted bodies still count: this is corpus statistics, not the
	// training view.
	want := map[string]int{"Need Support": 2, "Good News": 1, "Venting": 1}
	for k, v := range want {
		if counts[k] != v {
			t.Errorf("count[%q] = %d, want %d", k, counts[k], v)
		}
	}
	if _, ok := counts[""]; ok {
		t.Error("empty flair counted")
	}
}

func TestInsertBatchEmpty(t *testing.T) {
	s := openTestStore(t)
	n, err := s.InsertBatch(context.Background(), nil)
	if err != nil {
		t.Fatal(err)
	}
	if n != 0 {
		t.Fatalf("inserted %d rows from empty batch", n)
	}
}
