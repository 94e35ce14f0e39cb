package trainer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hollyoak/flaircast/internal/engine/feature"
)

// absentClassLogPrior stands in for -Inf on classes with no training mass.
const absentClassLogPrior = -1e30

// naiveBayes is Gaussian naive Bayes: per class and feature it fits a
// weighted mean and variance, with a variance-smoothing floor so constant
// features do not blow up the likelihood.
type naiveBayes struct {
	varSmoothing float64

	state nbState
}

type nbState struct {
	Kind     string      `json:"kind"`
	NClasses int         `json:"n_classes"`
	Dim      int         `json:"dim"`
	Prior    []float64   `json:"prior"` // log class priors
	Mean     [][]float64 `json:"mean"`  // [class][feature]
	Var      [][]float64 `json:"var"`   // [class][feature], smoothed
}

func newNaiveBayes(p Params) *naiveBayes {
	vs := p.VarSmoothing
	if vs <= 0 {
		vs = 1e-9
	}
	return &naiveBayes{varSmoothing: vs}
}

func (n *naiveBayes) Kind() string { return KindNaiveBayes }

func (n *naiveBayes) Fit(X []feature.Vector, y []int, weights []float64, nClasses int) error {
	if len(X) == 0 {
		return fmt.Errorf("trainer: naivebayes: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("trainer: naivebayes: %d rows but %d labels", len(X), len(y))
	}
	dim := len(X[0])

	classWeight := make([]float64, nClasses)
	mean := make([][]float64, nClasses)
	variance := make([][]float64, nClasses)
	for c := 0; c < nClasses; c++ {
		mean[c] = make([]float64, dim)
		variance[c] = make([]float64, dim)
	}

	for i, x := range X {
		wt := 1.0
		if weights != nil {
			wt = weights[i]
		}
		c := y[i]
		classWeight[c] += wt
		for j, xv := range x {
			mean[c][j] += wt * xv
		}
	}
	for c := 0; c < nClasses; c++ {
		if classWeight[c] == 0 {
			continue
		}
		for j := 0; j < dim; j++ {
			mean[c][j] /= classWeight[c]
		}
	}

	// Weighted variance, plus a smoothing floor proportional to the largest
	// overall feature variance (sklearn's var_smoothing behavior).
	for i, x := range X {
		wt := 1.0
		if weights != nil {
			wt = weights[i]
		}
		c := y[i]
		for j, xv := range x {
			d := xv - mean[c][j]
			variance[c][j] += wt * d * d
		}
	}
	maxVar := 0.0
	for c := 0; c < nClasses; c++ {
		if classWeight[c] == 0 {
			continue
		}
		for j := 0; j < dim; j++ {
			variance[c][j] /= classWeight[c]
			if variance[c][j] > maxVar {
				maxVar = variance[c][j]
			}
		}
	}
	eps := n.varSmoothing * maxVar
	if eps == 0 {
		eps = n.varSmoothing
	}

	var totalWeight float64
	for _, cw := range classWeight {
		totalWeight += cw
	}
	prior := make([]float64, nClasses)
	for c := 0; c < nClasses; c++ {
		if classWeight[c] > 0 {
			prior[c] = math.Log(classWeight[c] / totalWeight)
		} else {
			// Absent class. A large finite penalty keeps the state
			// JSON-serializable where -Inf would not be.
			prior[c] = absentClassLogPrior
		}
		for j := 0; j < dim; j++ {
			variance[c][j] += eps
		}
	}

	n.state = nbState{
		Kind:     KindNaiveBayes,
		NClasses: nClasses,
		Dim:      dim,
		Prior:    prior,
		Mean:     mean,
		Var:      variance,
	}
	return nil
}

func (n *naiveBayes) Proba(x feature.Vector) ([]float64, error) {
	if n.state.NClasses == 0 {
		return nil, fmt.Errorf("trainer: naivebayes is not fitted")
	}
	if len(x) != n.state.Dim {
		return nil, fmt.Errorf("trainer: naivebayes: vector dim %d, fitted for %d", len(x), n.state.Dim)
	}

	logProb := make([]float64, n.state.NClasses)
	maxLP := math.Inf(-1)
	for c := 0; c < n.state.NClasses; c++ {
		lp := n.state.Prior[c]
		if lp > absentClassLogPrior {
			for j, xv := range x {
				v := n.state.Var[c][j]
				d := xv - n.state.Mean[c][j]
				lp += -0.5*math.Log(2*math.Pi*v) - d*d/(2*v)
			}
		}
		logProb[c] = lp
		if lp > maxLP {
			maxLP = lp
		}
	}

	var sum float64
	for c, lp := range logProb {
		logProb[c] = math.Exp(lp - maxLP)
		sum += logProb[c]
	}
	for c := range logProb {
		logProb[c] /= sum
	}
	return logProb, nil
}

func (n *naiveBayes) ParamCount() int {
	return n.state.NClasses * (2*n.state.Dim + 1)
}

func (n *naiveBayes) MarshalParams() (json.RawMessage, error) {
	if n.state.NClasses == 0 {
		return nil, fmt.Errorf("trainer: naivebayes is not fitted")
	}
	return json.Marshal(n.state)
}

func restoreNaiveBayes(raw json.RawMessage) (*naiveBayes, error) {
	var st nbState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("trainer: naivebayes params: %w", err)
	}
	if st.NClasses == 0 || len(st.Mean) != st.NClasses || len(st.Var) != st.NClasses {
		return nil, fmt.Errorf("trainer: naivebayes params are inconsistent")
	}
	return &naiveBayes{state: st}, nil
}
