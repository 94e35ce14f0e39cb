package trainer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hollyoak/flaircast/internal/engine/feature"
)

// logistic is multinomial (softmax) logistic regression trained by
// full-batch gradient descent. Weights initialize to zero, so training is
// deterministic for fixed input.
type logistic struct {
	learnRate float64
	l2        float64
	epochs    int

	state logisticState
}

type logisticState struct {
	Kind     string      `json:"kind"`
	NClasses int         `json:"n_classes"`
	Dim      int         `json:"dim"`
	W        [][]float64 `json:"w"` // [class][feature]
	B        []float64   `json:"b"` // [class]
}

func newLogistic(p Params) *logistic {
	lr := p.LearnRate
	if lr <= 0 {
		lr = 0.5
	}
	epochs := p.Epochs
	if epochs <= 0 {
		epochs = 200
	}
	return &logistic{learnRate: lr, l2: p.L2, epochs: epochs}
}

func (l *logistic) Kind() string { return KindLogistic }

func (l *logistic) Fit(X []feature.Vector, y []int, weights []float64, nClasses int) error {
	if len(X) == 0 {
		return fmt.Errorf("trainer: logistic: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("trainer: logistic: %d rows but %d labels", len(X), len(y))
	}
	dim := len(X[0])

	w := make([][]float64, nClasses)
	for c := range w {
		w[c] = make([]float64, dim)
	}
	b := make([]float64, nClasses)

	var totalWeight float64
	if weights == nil {
		totalWeight = float64(len(X))
	} else {
		for _, wt := range weights {
			totalWeight += wt
		}
	}
	if totalWeight == 0 {
		return fmt.Errorf("trainer: logistic: zero total sample weight")
	}

	gradW := make([][]float64, nClasses)
	for c := range gradW {
		gradW[c] = make([]float64, dim)
	}
	gradB := make([]float64, nClasses)

	for epoch := 0; epoch < l.epochs; epoch++ {
		for c := range gradW {
			for j := range gradW[c] {
				gradW[c][j] = 0
			}
			gradB[c] = 0
		}

		for i, x := range X {
			p := softmaxScores(x, w, b)
			wt := 1.0
			if weights != nil {
				wt = weights[i]
			}
			for c := 0; c < nClasses; c++ {
				d := p[c]
				if c == y[i] {
					d -= 1
				}
				d *= wt
				for j, xv := range x {
					gradW[c][j] += d * xv
				}
				gradB[c] += d
			}
		}

		step := l.learnRate / totalWeight
		for c := 0; c < nClasses; c++ {
			for j := 0; j < dim; j++ {
				w[c][j] -= step*gradW[c][j] + l.learnRate*l.l2*w[c][j]
			}
			b[c] -= step * gradB[c]
		}
	}

	l.state = logisticState{Kind: KindLogistic, NClasses: nClasses, Dim: dim, W: w, B: b}
	return nil
}

func (l *logistic) Proba(x feature.Vector) ([]float64, error) {
	if l.state.NClasses == 0 {
		return nil, fmt.Errorf("trainer: logistic is not fitted")
	}
	if len(x) != l.state.Dim {
		return nil, fmt.Errorf("trainer: logistic: vector dim %d, fitted for %d", len(x), l.state.Dim)
	}
	return softmaxScores(x, l.state.W, l.state.B), nil
}

func (l *logistic) ParamCount() int {
	return l.state.NClasses * (l.state.Dim + 1)
}

func (l *logistic) MarshalParams() (json.RawMessage, error) {
	if l.state.NClasses == 0 {
		return nil, fmt.Errorf("trainer: logistic is not fitted")
	}
	return json.Marshal(l.state)
}

func restoreLogistic(raw json.RawMessage) (*logistic, error) {
	var st logisticState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("trainer: logistic params: %w", err)
	}
	if st.NClasses == 0 || len(st.W) != st.NClasses || len(st.B) != st.NClasses {
		return nil, fmt.Errorf("trainer: logistic params are inconsistent")
	}
	return &logistic{state: st}, nil
}

// softmaxScores computes class probabilities with the max-subtraction trick
// for numerical stability.
func softmaxScores(x feature.Vector, w [][]float64, b []float64) []float64 {
	scores := make([]float64, len(w))
	maxScore := math.Inf(-1)
	for c := range w {
		s := b[c]
		for j, xv := range x {
			s += w[c][j] * xv
		}
		scores[c] = s
		if s > maxScore {
			maxScore = s
		}
	}
	var sum float64
	for c, s := range scores {
		scores[c] = math.Exp(s - maxScore)
		sum += scores[c]
	}
	for c := range scores {
		scores[c] /= sum
	}
	return scores
}
