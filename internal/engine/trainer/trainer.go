// Package trainer fits candidate classifiers on extracted features and
// selects the best by stratified k-fold cross-validation. Candidates and
// folds only read shared immutable vectors and write private result slots,
// so they run concurrently.
package trainer

import (
	"context"
	"errors"
	"fmt"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/hollyoak/flaircast/internal/engine/evaluate"
	"github.com/hollyoak/flaircast/internal/engine/feature"
	"github.com/hollyoak/flaircast/internal/model"
)

// ErrNoViableModel is returned when every candidate scores below the
// configured macro-F1 floor. A poor model is never returned silently.
var ErrNoViableModel = errors.New("trainer: no candidate reached the macro-F1 floor")

// Config controls candidate training and selection.
type Config struct {
	K            int     `yaml:"k" json:"k"`                         // folds, default 5
	Seed         int64   `yaml:"seed" json:"seed"`                   // fold shuffling
	MacroF1Floor float64 `yaml:"macro_f1_floor" json:"macro_f1_floor"`
	MaxParallel  int     `yaml:"max_parallel" json:"max_parallel"` // 0 = GOMAXPROCS

	Candidates []CandidateSpec `yaml:"candidates" json:"candidates"`
}

// CandidateSpec names a classifier kind and the hyperparameter grid to
// search for it. Every grid entry becomes one candidate.
type CandidateSpec struct {
	Kind string   `yaml:"kind" json:"kind"`
	Grid []Params `yaml:"grid" json:"grid"`
}

// DefaultCandidates returns the stock candidate set with small grids per
// kind. Callers calibrating against real corpus statistics supply their own.
func DefaultCandidates() []CandidateSpec {
	return []CandidateSpec{
		{Kind: KindLogistic, Grid: []Params{
			{LearnRate: 0.5, L2: 0, Epochs: 200},
			{LearnRate: 0.5, L2: 1e-4, Epochs: 200},
			{LearnRate: 0.1, L2: 1e-3, Epochs: 400},
		}},
		{Kind: KindNaiveBayes, Grid: []Params{
			{VarSmoothing: 1e-9},
			{VarSmoothing: 1e-8},
			{VarSmoothing: 1e-7},
		}},
		{Kind: KindCentroid, Grid: []Params{
			{Temperature: 0.05},
			{Temperature: 0.1},
		}},
	}
}

// FoldReport is the score of one candidate on one held-out fold.
type FoldReport struct {
	Fold     int     `json:"fold"`
	HeldOut  int     `json:"held_out"`
	MacroF1  float64 `json:"macro_f1"`
	Accuracy float64 `json:"accuracy"`
}

// CandidateResult aggregates a candidate's cross-validated performance.
type CandidateResult struct {
	Kind        string       `json:"kind"`
	Params      Params       `json:"params"`
	MeanMacroF1 float64      `json:"mean_macro_f1"`
	Variance    float64      `json:"variance"` // of macro-F1 across folds
	ParamCount  int          `json:"param_count"`
	Folds       []FoldReport `json:"folds"`
}

// Selection is the outcome of a training run: the winning classifier
// refitted on the full training split, plus every candidate's scores.
type Selection struct {
	Classifier Classifier
	Winner     CandidateResult
	Candidates []CandidateResult
}

// Select cross-validates every candidate and returns the winner refitted on
// the full training split. Scoring maximizes mean macro-F1; ties break to
// lower fold variance, then to fewer fitted parameters. Cancellation is
// honored between folds and candidates, never mid-fold.
func Select(ctx context.Context, X []feature.Vector, y []int, weights []float64,
	labels model.LabelSet, cfg Config) (*Selection, error) {

	if len(X) != len(y) {
		return nil, fmt.Errorf("trainer: %d vectors but %d labels", len(X), len(y))
	}
	if cfg.K <= 0 {
		cfg.K = 5
	}
	specs := cfg.Candidates
	if len(specs) == 0 {
		specs = DefaultCandidates()
	}

	folds, err := stratifiedKFold(y, labels.Len(), cfg.K, cfg.Seed)
	if err != nil {
		return nil, err
	}

	type job struct {
		kind   string
		params Params
	}
	var jobs []job
	for _, spec := range specs {
		grid := spec.Grid
		if len(grid) == 0 {
			grid = []Params{{}}
		}
		for _, p := range grid {
			jobs = append(jobs, job{kind: spec.Kind, params: p})
		}
	}

	results := make([]CandidateResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	parallel := cfg.MaxParallel
	if parallel <= 0 {
		parallel = runtime.GOMAXPROCS(0)
	}
	g.SetLimit(parallel)

	for slot, jb := range jobs {
		slot, jb := slot, jb
		g.Go(func() error {
			res, err := crossValidate(gctx, jb.kind, jb.params, X, y, weights, labels, folds)
			if err != nil {
				return err
			}
			results[slot] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	best := 0
	for i := 1; i < len(results); i++ {
		if better(results[i], results[best]) {
			best = i
		}
	}
	winner := results[best]

	if winner.MeanMacroF1 < cfg.MacroF1Floor {
		return nil, fmt.Errorf("trainer: best candidate %s scored macro-F1 %.4f, floor is %.4f: %w",
			winner.Kind, winner.MeanMacroF1, cfg.MacroF1Floor, ErrNoViableModel)
	}

	// Refit the winner on the full training split.
	cls, err := newClassifier(winner.Kind, winner.Params)
	if err != nil {
		return nil, err
	}
	if err := cls.Fit(X, y, weights, labels.Len()); err != nil {
		return nil, err
	}

	return &Selection{Classifier: cls, Winner: winner, Candidates: results}, nil
}

// crossValidate fits and scores one candidate across all folds.
func crossValidate(ctx context.Context, kind string, params Params,
	X []feature.Vector, y []int, weights []float64,
	labels model.LabelSet, folds []Fold) (CandidateResult, error) {

	res := CandidateResult{Kind: kind, Params: params}

	for f, fold := range folds {
		if err := ctx.Err(); err != nil {
			return CandidateResult{}, err
		}

		cls, err := newClassifier(kind, params)
		if err != nil {
			return CandidateResult{}, err
		}

		trainX := make([]feature.Vector, len(fold.Train))
		trainY := make([]int, len(fold.Train))
		var trainW []float64
		if weights != nil {
			trainW = make([]float64, len(fold.Train))
		}
		for i, idx := range fold.Train {
			trainX[i] = X[idx]
			trainY[i] = y[idx]
			if weights != nil {
				trainW[i] = weights[idx]
			}
		}
		if err := cls.Fit(trainX, trainY, trainW, labels.Len()); err != nil {
			return CandidateResult{}, fmt.Errorf("trainer: %s fold %d: %w", kind, f, err)
		}
		res.ParamCount = cls.ParamCount()

		trueLabels := make([]string, len(fold.Test))
		predLabels := make([]string, len(fold.Test))
		for i, idx := range fold.Test {
			trueLabels[i] = labels.Label(y[idx])
			proba, err := cls.Proba(X[idx])
			if err != nil {
				return CandidateResult{}, fmt.Errorf("trainer: %s fold %d: %w", kind, f, err)
			}
			predLabels[i] = labels.Label(argmax(proba))
		}

		report, err := evaluate.Evaluate(trueLabels, predLabels)
		if err != nil {
			return CandidateResult{}, fmt.Errorf("trainer: %s fold %d: %w", kind, f, err)
		}
		res.Folds = append(res.Folds, FoldReport{
			Fold:     f,
			HeldOut:  len(fold.Test),
			MacroF1:  report.MacroF1,
			Accuracy: report.Accuracy,
		})
	}

	var sum float64
	for _, fr := range res.Folds {
		sum += fr.MacroF1
	}
	res.MeanMacroF1 = sum / float64(len(res.Folds))
	for _, fr := range res.Folds {
		d := fr.MacroF1 - res.MeanMacroF1
		res.Variance += d * d
	}
	res.Variance /= float64(len(res.Folds))
	return res, nil
}

// better orders candidates: higher mean macro-F1, then lower fold variance,
// then fewer parameters.
func better(a, b CandidateResult) bool {
	const eps = 1e-9
	if math.Abs(a.MeanMacroF1-b.MeanMacroF1) > eps {
		return a.MeanMacroF1 > b.MeanMacroF1
	}
	if math.Abs(a.Variance-b.Variance) > eps {
		return a.Variance < b.Variance
	}
	return a.ParamCount < b.ParamCount
}

func argmax(p []float64) int {
	best := 0
	for i := range p {
		if p[i] > p[best] {
			best = i
		}
	}
	return best
}
