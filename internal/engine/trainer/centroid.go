package trainer

import (
	"encoding/json"
	"fmt"
	"math"

	"github.com/hollyoak/flaircast/internal/engine/feature"
)

// centroid is a nearest-centroid classifier: each class is represented by
// the weighted mean of its training vectors and inputs are scored by cosine
// similarity against every centroid, turned into probabilities by a
// temperature-scaled softmax. The cheapest candidate by parameter count.
type centroid struct {
	temperature float64

	state centroidState
}

type centroidState struct {
	Kind        string      `json:"kind"`
	NClasses    int         `json:"n_classes"`
	Dim         int         `json:"dim"`
	Centroids   [][]float64 `json:"centroids"` // [class][feature]
	Temperature float64     `json:"temperature"`
}

func newCentroid(p Params) *centroid {
	temp := p.Temperature
	if temp <= 0 {
		temp = 0.1
	}
	return &centroid{temperature: temp}
}

func (c *centroid) Kind() string { return KindCentroid }

func (c *centroid) Fit(X []feature.Vector, y []int, weights []float64, nClasses int) error {
	if len(X) == 0 {
		return fmt.Errorf("trainer: centroid: empty training set")
	}
	if len(X) != len(y) {
		return fmt.Errorf("trainer: centroid: %d rows but %d labels", len(X), len(y))
	}
	dim := len(X[0])

	centroids := make([][]float64, nClasses)
	for i := range centroids {
		centroids[i] = make([]float64, dim)
	}
	classWeight := make([]float64, nClasses)

	for i, x := range X {
		wt := 1.0
		if weights != nil {
			wt = weights[i]
		}
		cls := y[i]
		classWeight[cls] += wt
		for j, xv := range x {
			centroids[cls][j] += wt * xv
		}
	}
	for cls := 0; cls < nClasses; cls++ {
		if classWeight[cls] == 0 {
			continue
		}
		for j := 0; j < dim; j++ {
			centroids[cls][j] /= classWeight[cls]
		}
	}

	c.state = centroidState{
		Kind:        KindCentroid,
		NClasses:    nClasses,
		Dim:         dim,
		Centroids:   centroids,
		Temperature: c.temperature,
	}
	return nil
}

func (c *centroid) Proba(x feature.Vector) ([]float64, error) {
	if c.state.NClasses == 0 {
		return nil, fmt.Errorf("trainer: centroid is not fitted")
	}
	if len(x) != c.state.Dim {
		return nil, fmt.Errorf("trainer: centroid: vector dim %d, fitted for %d", len(x), c.state.Dim)
	}

	scores := make([]float64, c.state.NClasses)
	maxScore := math.Inf(-1)
	for cls, cent := range c.state.Centroids {
		scores[cls] = cosineSimilarity(x, cent) / c.state.Temperature
		if scores[cls] > maxScore {
			maxScore = scores[cls]
		}
	}

	var sum float64
	for cls, s := range scores {
		scores[cls] = math.Exp(s - maxScore)
		sum += scores[cls]
	}
	for cls := range scores {
		scores[cls] /= sum
	}
	return scores, nil
}

func (c *centroid) ParamCount() int {
	return c.state.NClasses * c.state.Dim
}

func (c *centroid) MarshalParams() (json.RawMessage, error) {
	if c.state.NClasses == 0 {
		return nil, fmt.Errorf("trainer: centroid is not fitted")
	}
	return json.Marshal(c.state)
}

func restoreCentroid(raw json.RawMessage) (*centroid, error) {
	var st centroidState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("trainer: centroid params: %w", err)
	}
	if st.NClasses == 0 || len(st.Centroids) != st.NClasses {
		return nil, fmt.Errorf("trainer: centroid params are inconsistent")
	}
	if st.Temperature <= 0 {
		st.Temperature = 0.1
	}
	return &centroid{temperature: st.Temperature, state: st}, nil
}

func cosineSimilarity(a feature.Vector, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
