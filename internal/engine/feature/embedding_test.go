package feature

import (
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/hollyoak/flaircast/internal/model"
)

func writeVectorTable(t *testing.T, lines string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vectors.txt")
	if err := os.WriteFile(path, []byte(lines), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestEmbeddingAverages(t *testing.T) {
	path := writeVectorTable(t, "anxieti 1.0 0.0\nsupport 0.0 1.0\nunused 9.0 9.0\n")

	ext := NewEmbedding(path)
	if err := ext.Fit([]model.Document{doc("anxieti", "support")}); err != nil {
		t.Fatal(err)
	}
	if ext.Dim() != 2 {
		t.Fatalf("Dim: got %d, want 2", ext.Dim())
	}

	vec, err := ext.Transform(doc("anxieti", "support"))
	if err != nil {
		t.Fatal(err)
	}
	want := Vector{0.5, 0.5}
	if !reflect.DeepEqual(vec, want) {
		t.Fatalf("got %v, want %v", vec, want)
	}
}

func TestEmbeddingOOVAndEmptyAreZero(t *testing.T) {
	path := writeVectorTable(t, "hello 0.25 -0.5\n")

	ext := NewEmbedding(path)
	if err := ext.Fit([]model.Document{doc("hello")}); err != nil {
		t.Fatal(err)
	}

	for _, d := range []model.Document{nil, doc("nothere", "alsomissing")} {
		vec, err := ext.Transform(d)
		if err != nil {
			t.Fatal(err)
		}
		if len(vec) != 2 {
			t.Fatalf("dim %d, want 2", len(vec))
		}
		for i, v := range vec {
			if v != 0 {
				t.Fatalf("expected zero vector for %v, got %v at %d", d, vec, i)
			}
		}
	}
}

func TestEmbeddingKeepsTrainingVocabOnly(t *testing.T) {
	path := writeVectorTable(t, "alpha 1 2\nbeta 3 4\n")

	ext := NewEmbedding(path)
	if err := ext.Fit([]model.Document{doc("alpha")}); err != nil {
		t.Fatal(err)
	}

	// "beta" exists in the table but not in the training vocabulary, so
	// the fitted state must treat it as out-of-vocabulary.
	vec, err := ext.Transform(doc("beta"))
	if err != nil {
		t.Fatal(err)
	}
	for _, v := range vec {
		if v != 0 {
			t.Fatalf("table entry outside training vocab was retained: %v", vec)
		}
	}
}

func TestEmbeddingInconsistentDims(t *testing.T) {
	path := writeVectorTable(t, "one 1 2\ntwo 1 2 3\n")

	ext := NewEmbedding(path)
	err := ext.Fit([]model.Document{doc("one", "two")})
	if err == nil {
		t.Fatal("expected error for inconsistent vector dimensions")
	}
}

func TestEmbeddingRestoreRoundTrip(t *testing.T) {
	path := writeVectorTable(t, "happi 0.1 0.2 0.3\nsad -0.1 -0.2 -0.3\n")

	ext := NewEmbedding(path)
	if err := ext.Fit([]model.Document{doc("happi", "sad")}); err != nil {
		t.Fatal(err)
	}
	raw, err := ext.MarshalState()
	if err != nil {
		t.Fatal(err)
	}

	restored, err := Restore(StrategyEmbedding, raw)
	if err != nil {
		t.Fatal(err)
	}

	probe := doc("happi", "missing")
	want, err := ext.Transform(probe)
	if err != nil {
		t.Fatal(err)
	}
	got, err := restored.Transform(probe)
	if err != nil {
		t.Fatal(err)
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-15 {
			t.Fatalf("restored transform differs at %d: got %v, want %v", i, got, want)
		}
	}
}
