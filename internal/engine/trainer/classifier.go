package trainer

import (
	"encoding/json"
	"fmt"

	"github.com/hollyoak/flaircast/internal/engine/feature"
)

// Classifier kinds accepted in candidate configurations.
const (
	KindLogistic   = "logistic"
	KindNaiveBayes = "naivebayes"
	KindCentroid   = "centroid"
)

// Classifier is a multi-class probabilistic model over feature vectors.
type Classifier interface {
	// Kind returns the classifier kind, used to rebind serialized params.
	Kind() string

	// Fit trains on the given vectors and label indices. weights holds one
	// sample weight per row; nil means uniform.
	Fit(X []feature.Vector, y []int, weights []float64, nClasses int) error

	// Proba returns one probability per class, summing to 1. The slice is
	// indexed by label position.
	Proba(x feature.Vector) ([]float64, error)

	// ParamCount returns the number of fitted parameters, the tiebreaker
	// of last resort during selection.
	ParamCount() int

	// MarshalParams serializes the fitted parameters for the model artifact.
	MarshalParams() (json.RawMessage, error)
}

// Params holds hyperparameters for one candidate. Fields not used by a kind
// are ignored by it.
type Params struct {
	LearnRate    float64 `yaml:"learn_rate" json:"learn_rate,omitempty"`       // logistic
	L2           float64 `yaml:"l2" json:"l2,omitempty"`                       // logistic
	Epochs       int     `yaml:"epochs" json:"epochs,omitempty"`               // logistic
	VarSmoothing float64 `yaml:"var_smoothing" json:"var_smoothing,omitempty"` // naivebayes
	Temperature  float64 `yaml:"temperature" json:"temperature,omitempty"`     // centroid
}

// newClassifier creates an unfitted classifier of the given kind.
func newClassifier(kind string, p Params) (Classifier, error) {
	switch kind {
	case KindLogistic:
		return newLogistic(p), nil
	case KindNaiveBayes:
		return newNaiveBayes(p), nil
	case KindCentroid:
		return newCentroid(p), nil
	default:
		return nil, fmt.Errorf("trainer: unknown classifier kind %q", kind)
	}
}

// Restore rebuilds a fitted classifier from serialized parameters.
func Restore(kind string, raw json.RawMessage) (Classifier, error) {
	switch kind {
	case KindLogistic:
		return restoreLogistic(raw)
	case KindNaiveBayes:
		return restoreNaiveBayes(raw)
	case KindCentroid:
		return restoreCentroid(raw)
	default:
		return nil, fmt.Errorf("trainer: unknown classifier kind %q", kind)
	}
}
