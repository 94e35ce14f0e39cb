// Package pipeline composes the training workflow: corpus examples are
// normalized, split, featurized, rebalanced, cross-validated, and evaluated,
// producing one model artifact. The artifact carries the same normalizer
// configuration and fitted extractor the pipeline used, so inference-time
// preprocessing cannot drift from training-time preprocessing.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"

	"github.com/hollyoak/flaircast/internal/artifact"
	"github.com/hollyoak/flaircast/internal/engine/evaluate"
	"github.com/hollyoak/flaircast/internal/engine/feature"
	"github.com/hollyoak/flaircast/internal/engine/imbalance"
	"github.com/hollyoak/flaircast/internal/engine/normalizer"
	"github.com/hollyoak/flaircast/internal/engine/trainer"
	"github.com/hollyoak/flaircast/internal/model"
)

// TrainConfig parameterizes one training run.
type TrainConfig struct {
	Normalizer   normalizer.Config
	Feature      feature.Config
	Imbalance    imbalance.Config
	Trainer      trainer.Config
	TestFraction float64 // held-out share, default 0.2
	Seed         int64
}

// TrainResult is the outcome of a training run.
type TrainResult struct {
	Artifact  *artifact.Artifact
	Selection *trainer.Selection
	Report    evaluate.Report // held-out evaluation, natural distribution
}

// Train runs the full training pipeline over labeled examples.
func Train(ctx context.Context, examples []model.Example, cfg TrainConfig) (*TrainResult, error) {
	if len(examples) == 0 {
		return nil, fmt.Errorf("pipeline: no labeled examples")
	}
	if cfg.TestFraction <= 0 || cfg.TestFraction >= 1 {
		cfg.TestFraction = 0.2
	}

	norm := normalizer.New(cfg.Normalizer)
	docs := make([]model.Document, len(examples))
	for i, ex := range examples {
		docs[i] = norm.Normalize(ex.Title, ex.Body)
	}

	trainIdx, testIdx := stratifiedSplit(examples, cfg.TestFraction, cfg.Seed)
	if len(trainIdx) == 0 || len(testIdx) == 0 {
		return nil, fmt.Errorf("pipeline: split produced %d train / %d test examples",
			len(trainIdx), len(testIdx))
	}
	slog.Info("corpus split", "train", len(trainIdx), "test", len(testIdx))

	// The label set is closed at fit time, over the training split.
	trainFlairs := make([]string, len(trainIdx))
	for i, idx := range trainIdx {
		trainFlairs[i] = examples[idx].Flair
	}
	labels := model.NewLabelSet(trainFlairs)
	if labels.Len() < 2 {
		return nil, fmt.Errorf("pipeline: need at least 2 distinct flairs, got %d", labels.Len())
	}

	// Fit the extractor on training documents only. Validation and test
	// rows must never reach Fit.
	ext, err := feature.New(cfg.Feature)
	if err != nil {
		return nil, err
	}
	trainDocs := make([]model.Document, len(trainIdx))
	for i, idx := range trainIdx {
		trainDocs[i] = docs[idx]
	}
	if err := ext.Fit(trainDocs); err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	slog.Info("extractor fitted", "strategy", ext.Strategy(), "dim", ext.Dim())

	X := make([]feature.Vector, len(trainIdx))
	y := make([]int, len(trainIdx))
	for i, idx := range trainIdx {
		vec, err := ext.Transform(docs[idx])
		if err != nil {
			return nil, fmt.Errorf("pipeline: example %s: %w", examples[idx].ID, err)
		}
		X[i] = vec
		yi := labels.Index(examples[idx].Flair)
		if yi < 0 {
			return nil, fmt.Errorf("pipeline: example %s has flair %q outside the label set",
				examples[idx].ID, examples[idx].Flair)
		}
		y[i] = yi
	}

	// Rebalance the training split only. Held-out data keeps its natural
	// distribution.
	if cfg.Imbalance.Mode == "" {
		cfg.Imbalance.Mode = imbalance.ModeWeights
	}
	var weights []float64
	switch cfg.Imbalance.Mode {
	case imbalance.ModeWeights:
		weights, err = imbalance.Weights(y, labels.Len())
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
	case imbalance.ModeResample:
		idx, err := imbalance.Resample(y, labels.Len(), cfg.Imbalance)
		if err != nil {
			return nil, fmt.Errorf("pipeline: %w", err)
		}
		resX := make([]feature.Vector, len(idx))
		resY := make([]int, len(idx))
		for i, j := range idx {
			resX[i] = X[j]
			resY[i] = y[j]
		}
		X, y = resX, resY
	default:
		return nil, fmt.Errorf("pipeline: unknown imbalance mode %q", cfg.Imbalance.Mode)
	}

	sel, err := trainer.Select(ctx, X, y, weights, labels, cfg.Trainer)
	if err != nil {
		return nil, err
	}
	slog.Info("candidate selected", "kind", sel.Winner.Kind,
		"macro_f1", sel.Winner.MeanMacroF1, "variance", sel.Winner.Variance)

	// Evaluate on the held-out split through the exact serving pipeline.
	art := artifact.New(cfg.Normalizer, ext, sel.Classifier, labels, evaluate.Report{})
	trueLabels := make([]string, len(testIdx))
	predLabels := make([]string, len(testIdx))
	for i, idx := range testIdx {
		label, _, err := art.Predict(examples[idx].Title, examples[idx].Body)
		if err != nil {
			return nil, fmt.Errorf("pipeline: example %s: %w", examples[idx].ID, err)
		}
		trueLabels[i] = examples[idx].Flair
		predLabels[i] = label
	}
	report, err := evaluate.Evaluate(trueLabels, predLabels)
	if err != nil {
		return nil, fmt.Errorf("pipeline: %w", err)
	}
	art.Report = report
	slog.Info("held-out evaluation", "n", report.N,
		"accuracy", report.Accuracy, "macro_f1", report.MacroF1)

	return &TrainResult{Artifact: art, Selection: sel, Report: report}, nil
}

// stratifiedSplit partitions example indices into train and held-out sets,
// preserving per-flair proportions. A flair with a single example stays in
// the training split; every flair with two or more examples contributes at
// least one held-out row. Deterministic for a given seed.
func stratifiedSplit(examples []model.Example, testFraction float64, seed int64) (trainIdx, testIdx []int) {
	byFlair := make(map[string][]int)
	for i, ex := range examples {
		byFlair[ex.Flair] = append(byFlair[ex.Flair], i)
	}

	flairs := make([]string, 0, len(byFlair))
	for f := range byFlair {
		flairs = append(flairs, f)
	}
	sort.Strings(flairs)

	rng := rand.New(rand.NewSource(seed))
	for _, f := range flairs {
		idx := append([]int(nil), byFlair[f]...)
		rng.Shuffle(len(idx), func(i, j int) { idx[i], idx[j] = idx[j], idx[i] })

		nTest := int(float64(len(idx)) * testFraction)
		if nTest == 0 && len(idx) > 1 {
			nTest = 1
		}
		testIdx = append(testIdx, idx[:nTest]...)
		trainIdx = append(trainIdx, idx[nTest:]...)
	}
	sort.Ints(trainIdx)
	sort.Ints(testIdx)
	return trainIdx, testIdx
}
