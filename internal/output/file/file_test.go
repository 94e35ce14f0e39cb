package file

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hollyoak/flaircast/internal/model"
	"github.com/hollyoak/flaircast/internal/output"
)

func result(id, label string) output.Result {
	return output.Result{
		SubmissionID: id,
		Prediction:   model.Prediction{Label: label, Confidence: 0.8, ModelVersion: "v1"},
	}
}

func TestWriteAndClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.ndjson")
	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for _, id := range []string{"t3_a", "t3_b", "t3_c"} {
		if err := s.Write(ctx, result(id, "Need Support")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want 3", len(lines))
	}
	var r output.Result
	if err := json.Unmarshal([]byte(lines[2]), &r); err != nil {
		t.Fatal(err)
	}
	if r.SubmissionID != "t3_c" {
		t.Fatalf("last line decoded %+v", r)
	}
}

func TestAppendsToExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.ndjson")
	ctx := context.Background()

	s, err := New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, result("t3_a", "x")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	s, err = New(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Write(ctx, result("t3_b", "y")); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Fatalf("got %d lines after reopen, want 2", got)
	}
}

func TestRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "predictions.ndjson")
	s, err := New(path, WithMaxSize(150))
	if err != nil {
		t.Fatal(err)
	}

	ctx := context.Background()
	for i := 0; i < 10; i++ {
		if err := s.Write(ctx, result("t3_rotation_test_padding", "Need Support")); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	if _, err := os.Stat(path + ".1"); err != nil {
		t.Fatalf("expected rotated file %s.1: %v", path, err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Size() == 0 {
		t.Fatal("current file empty after rotation")
	}
}
