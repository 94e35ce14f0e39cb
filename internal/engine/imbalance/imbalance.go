// Package imbalance adjusts the training distribution when flair frequencies
// are skewed. It operates on the training split only; validation and test
// splits keep their natural distribution so evaluation reflects deployment
// conditions.
package imbalance

import (
	"errors"
	"fmt"
	"math/rand"
	"sort"
)

// ErrInsufficientData is returned when a class has too few examples to
// resample or stratify without producing a misleading synthetic population.
var ErrInsufficientData = errors.New("imbalance: class below minimum viable count")

// Modes accepted in configuration.
const (
	ModeWeights  = "weights"
	ModeResample = "resample"
)

// Config controls imbalance handling.
type Config struct {
	Mode          string  `yaml:"mode" json:"mode"`
	MinClassCount int     `yaml:"min_class_count" json:"min_class_count"` // default 2
	TargetRatio   float64 `yaml:"target_ratio" json:"target_ratio"`       // resample: min/max class size, default 0.5
	Seed          int64   `yaml:"seed" json:"seed"`
}

// Weights returns one sample weight per label, inversely proportional to the
// label's class frequency and normalized so the mean weight is 1. Minority
// examples therefore weigh more than majority examples.
func Weights(labels []int, nClasses int) ([]float64, error) {
	if len(labels) == 0 {
		return nil, fmt.Errorf("imbalance: no labels")
	}

	counts := make([]int, nClasses)
	for _, y := range labels {
		if y < 0 || y >= nClasses {
			return nil, fmt.Errorf("imbalance: label index %d outside [0,%d)", y, nClasses)
		}
		counts[y]++
	}

	present := 0
	for _, c := range counts {
		if c > 0 {
			present++
		}
	}

	// sklearn-style balanced weights: n_samples / (n_present * count).
	weights := make([]float64, len(labels))
	for i, y := range labels {
		weights[i] = float64(len(labels)) / (float64(present) * float64(counts[y]))
	}
	return weights, nil
}

// Resample rebalances the training set by index so every class holds at
// least TargetRatio of the largest class: minority classes are oversampled
// with replacement up to the target, classes already at or above it are kept
// as-is (the natural undersampling limit is the majority class itself).
// Returns indices into the original slice, deterministic for a given seed.
//
// A class with fewer than MinClassCount examples is reported via
// ErrInsufficientData rather than silently inflated into a misleading
// synthetic population.
func Resample(labels []int, nClasses int, cfg Config) ([]int, error) {
	if cfg.MinClassCount <= 0 {
		cfg.MinClassCount = 2
	}
	if cfg.TargetRatio <= 0 || cfg.TargetRatio > 1 {
		cfg.TargetRatio = 0.5
	}

	byClass := make([][]int, nClasses)
	for i, y := range labels {
		if y < 0 || y >= nClasses {
			return nil, fmt.Errorf("imbalance: label index %d outside [0,%d)", y, nClasses)
		}
		byClass[y] = append(byClass[y], i)
	}

	maxCount := 0
	for _, idx := range byClass {
		if len(idx) > maxCount {
			maxCount = len(idx)
		}
	}
	if maxCount == 0 {
		return nil, fmt.Errorf("imbalance: no labels")
	}

	for c, idx := range byClass {
		if len(idx) > 0 && len(idx) < cfg.MinClassCount {
			return nil, fmt.Errorf("imbalance: class %d has %d examples, need at least %d: %w",
				c, len(idx), cfg.MinClassCount, ErrInsufficientData)
		}
	}

	target := int(float64(maxCount) * cfg.TargetRatio)

	rng := rand.New(rand.NewSource(cfg.Seed))
	var out []int
	for _, idx := range byClass {
		out = append(out, idx...)
		for n := len(idx); n > 0 && n < target; n++ {
			out = append(out, idx[rng.Intn(len(idx))])
		}
	}
	sort.Ints(out)
	return out, nil
}
