// Package flaircast is the embeddable flair classifier: load a trained
// model artifact once and predict flairs for submission text.
package flaircast

import (
	"fmt"

	"github.com/hollyoak/flaircast/internal/artifact"
	"github.com/hollyoak/flaircast/internal/service"
)

// Prediction is one classification result.
type Prediction struct {
	Label        string  // flair, or "Unclassified" below the threshold
	Confidence   float64 // top class probability
	ModelVersion string
}

// Classifier predicts flairs against one loaded model artifact.
// Safe for concurrent use.
type Classifier struct {
	svc *service.Service
}

// Option configures a Classifier.
type Option func(*options)

type options struct {
	threshold float64
}

func defaultOptions() options {
	return options{threshold: 0.5}
}

// WithThreshold sets the confidence threshold below which predictions fall
// back to "Unclassified".
func WithThreshold(t float64) Option {
	return func(o *options) { o.threshold = t }
}

// Open loads a model artifact from disk. Loading verifies the artifact's
// integrity and version binding; a tampered or mixed-version file fails here
// rather than at prediction time.
func Open(artifactPath string, opts ...Option) (*Classifier, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	art, err := artifact.Load(artifactPath)
	if err != nil {
		return nil, fmt.Errorf("flaircast: %w", err)
	}

	svc := service.New(o.threshold)
	svc.Install(art)
	return &Classifier{svc: svc}, nil
}

// Predict classifies a submission's title and body. Empty text is valid and
// resolves via the fallback label, never an error.
func (c *Classifier) Predict(title, body string) (Prediction, error) {
	pred, err := c.svc.Predict(title, body, true, true)
	if err != nil {
		return Prediction{}, err
	}
	return Prediction{
		Label:        pred.Label,
		Confidence:   pred.Confidence,
		ModelVersion: pred.ModelVersion,
	}, nil
}

// PredictBatch classifies multiple title/body pairs.
func (c *Classifier) PredictBatch(titles, bodies []string) ([]Prediction, error) {
	if len(titles) != len(bodies) {
		return nil, fmt.Errorf("flaircast: %d titles but %d bodies", len(titles), len(bodies))
	}
	out := make([]Prediction, len(titles))
	for i := range titles {
		p, err := c.Predict(titles[i], bodies[i])
		if err != nil {
			return nil, err
		}
		out[i] = p
	}
	return out, nil
}

// Labels returns the model's closed label set. Read-only: consumers can
// inspect the possible flairs but not extend them.
func (c *Classifier) Labels() []string {
	labels, err := c.svc.Labels()
	if err != nil {
		return nil
	}
	return append([]string(nil), labels.Labels...)
}

// Version returns the loaded artifact's version identifier.
func (c *Classifier) Version() string {
	return c.svc.ActiveVersion()
}

// Reload swaps in a new artifact from disk. In-flight predictions keep the
// old artifact; the swap is atomic.
func (c *Classifier) Reload(artifactPath string) error {
	return c.svc.Reload(artifactPath)
}
