package flaircast

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/hollyoak/flaircast/internal/artifact"
	"github.com/hollyoak/flaircast/internal/engine/evaluate"
	"github.com/hollyoak/flaircast/internal/engine/feature"
	"github.com/hollyoak/flaircast/internal/engine/normalizer"
	"github.com/hollyoak/flaircast/internal/engine/trainer"
	"github.com/hollyoak/flaircast/internal/model"
)

// saveModel trains a tiny two-flair model and writes it to a temp file.
func saveModel(t *testing.T) string {
	t.Helper()

	norm := normalizer.New(normalizer.Default())
	corpus := []struct {
		title, body, flair string
	}{
		{"Struggling badly", "anxiety and panic, need support tonight", "Need Support"},
		{"Panic again", "anxiety attacks, need support and advice", "Need Support"},
		{"Sleepless and anxious", "need support, panic will not stop", "Need Support"},
		{"Six month victory", "progress in therapy, celebrating recovery", "Good News"},
		{"Finally progress", "celebrating a victory, recovery feels real", "Good News"},
		{"Recovery milestone", "therapy victory, real progress to celebrate", "Good News"},
	}

	docs := make([]model.Document, len(corpus))
	flairs := make([]string, len(corpus))
	for i, c := range corpus {
		docs[i] = norm.Normalize(c.title, c.body)
		flairs[i] = c.flair
	}
	labels := model.NewLabelSet(flairs)

	ext := feature.NewTFIDF(0, 1)
	if err := ext.Fit(docs); err != nil {
		t.Fatal(err)
	}
	X := make([]feature.Vector, len(docs))
	y := make([]int, len(docs))
	for i, d := range docs {
		vec, err := ext.Transform(d)
		if err != nil {
			t.Fatal(err)
		}
		X[i] = vec
		y[i] = labels.Index(flairs[i])
	}

	sel, err := trainer.Select(context.Background(), X, y, nil, labels, trainer.Config{
		K:    2,
		Seed: 1,
		Candidates: []trainer.CandidateSpec{
			{Kind: trainer.KindCentroid, Grid: []trainer.Params{{Temperature: 0.05}}},
		},
	})
	if err != nil {
		t.Fatal(err)
	}

	art := artifact.New(normalizer.Default(), ext, sel.Classifier, labels, evaluate.Report{})
	path := filepath.Join(t.TempDir(), "model.json")
	if err := art.Save(path); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestOpenAndPredict(t *testing.T) {
	clf, err := Open(saveModel(t))
	if err != nil {
		t.Fatal(err)
	}

	pred, err := clf.Predict("Panic attacks", "anxiety is unbearable, need support")
	if err != nil {
		t.Fatal(err)
	}
	if pred.Label != "Need Support" {
		t.Fatalf("label %q, want Need Support (confidence %v)", pred.Label, pred.Confidence)
	}
	if pred.ModelVersion != clf.Version() {
		t.Fatalf("prediction version %q, classifier version %q", pred.ModelVersion, clf.Version())
	}
}

func TestPredictEmptyFallsBack(t *testing.T) {
	clf, err := Open(saveModel(t), WithThreshold(0.6))
	if err != nil {
		t.Fatal(err)
	}

	pred, err := clf.Predict("", "")
	if err != nil {
		t.Fatal(err)
	}
	if pred.Label != "Unclassified" {
		t.Fatalf("label %q, want Unclassified", pred.Label)
	}
}

func TestPredictBatch(t *testing.T) {
	clf, err := Open(saveModel(t))
	if err != nil {
		t.Fatal(err)
	}

	preds, err := clf.PredictBatch(
		[]string{"anxiety attacks", "celebrating recovery"},
		[]string{"need support", "therapy victory progress"},
	)
	if err != nil {
		t.Fatal(err)
	}
	if len(preds) != 2 {
		t.Fatalf("got %d predictions, want 2", len(preds))
	}
	if preds[0].Label != "Need Support" || preds[1].Label != "Good News" {
		t.Fatalf("labels %q, %q", preds[0].Label, preds[1].Label)
	}

	if _, err := clf.PredictBatch([]string{"a"}, nil); err == nil {
		t.Fatal("expected error for mismatched batch lengths")
	}
}

func TestLabelsIsCopy(t *testing.T) {
	clf, err := Open(saveModel(t))
	if err != nil {
		t.Fatal(err)
	}

	labels := clf.Labels()
	if len(labels) != 2 {
		t.Fatalf("labels %v, want two flairs", labels)
	}
	labels[0] = "mutated"
	if clf.Labels()[0] == "mutated" {
		t.Fatal("Labels leaks internal state")
	}
}

func TestReload(t *testing.T) {
	first := saveModel(t)
	second := saveModel(t)

	clf, err := Open(first)
	if err != nil {
		t.Fatal(err)
	}
	v1 := clf.Version()

	if err := clf.Reload(second); err != nil {
		t.Fatal(err)
	}
	if clf.Version() == v1 {
		t.Fatal("reload kept the old version")
	}
}

func TestOpenMissingArtifact(t *testing.T) {
	if _, err := Open(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Fatal("expected error for missing artifact")
	}
}
