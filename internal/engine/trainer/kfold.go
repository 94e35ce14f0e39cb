package trainer

import (
	"fmt"
	"math/rand"
	"sort"

	"github.com/hollyoak/flaircast/internal/engine/imbalance"
)

// Fold is one cross-validation split: indices into the training arrays.
type Fold struct {
	Train []int
	Test  []int
}

// stratifiedKFold partitions sample indices into k folds that preserve the
// class proportions of labels. Deterministic for a given seed. Every class
// must have at least k members so each fold's held-out part stays stratified.
func stratifiedKFold(labels []int, nClasses, k int, seed int64) ([]Fold, error) {
	if k < 2 {
		return nil, fmt.Errorf("trainer: k-fold needs k >= 2, got %d", k)
	}
	if len(labels) < k {
		return nil, fmt.Errorf("trainer: %d samples cannot fill %d folds", len(labels), k)
	}

	byClass := make([][]int, nClasses)
	for i, y := range labels {
		if y < 0 || y >= nClasses {
			return nil, fmt.Errorf("trainer: label index %d outside [0,%d)", y, nClasses)
		}
		byClass[y] = append(byClass[y], i)
	}

	rng := rand.New(rand.NewSource(seed))
	assignment := make([]int, len(labels)) // sample index -> fold
	for c, idx := range byClass {
		if len(idx) == 0 {
			continue
		}
		if len(idx) < k {
			return nil, fmt.Errorf("trainer: class %d has %d examples, need at least %d to stratify %d folds: %w",
				c, len(idx), k, k, imbalance.ErrInsufficientData)
		}
		shuffled := append([]int(nil), idx...)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})
		for pos, sample := range shuffled {
			assignment[sample] = pos % k
		}
	}

	folds := make([]Fold, k)
	for sample, f := range assignment {
		for other := 0; other < k; other++ {
			if other == f {
				folds[other].Test = append(folds[other].Test, sample)
			} else {
				folds[other].Train = append(folds[other].Train, sample)
			}
		}
	}
	for i := range folds {
		sort.Ints(folds[i].Train)
		sort.Ints(folds[i].Test)
	}
	return folds, nil
}
