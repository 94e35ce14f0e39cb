// Package service serves flair predictions against exactly one active model
// artifact. The artifact reference is an atomic cell: a prediction sees the
// old or the new artifact in full, never a partial mix, and many concurrent
// read-only predictions share one artifact safely.
package service

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hollyoak/flaircast/internal/artifact"
	"github.com/hollyoak/flaircast/internal/model"
)

var (
	// ErrNotReady is returned for predictions requested before any
	// artifact has been loaded.
	ErrNotReady = errors.New("service: no model artifact loaded")

	// ErrMalformedInput is returned when a request carries neither a
	// title nor a body. Present-but-empty text is valid input and takes
	// the fallback path instead.
	ErrMalformedInput = errors.New("service: submission has neither title nor body")
)

// FallbackLabel is returned when the top confidence is below the threshold.
// A wrong confident-looking flair is worse for moderation than an explicit
// needs-human-review signal.
const FallbackLabel = "Unclassified"

// State of the service lifecycle.
type State int32

const (
	Uninitialized State = iota
	Ready
	Reloading
)

func (s State) String() string {
	switch s {
	case Ready:
		return "ready"
	case Reloading:
		return "reloading"
	default:
		return "uninitialized"
	}
}

// Service predicts flairs for new submissions.
type Service struct {
	threshold float64

	active atomic.Pointer[artifact.Artifact]
	state  atomic.Int32

	// Serializes reloads; predictions never take this lock.
	reloadMu sync.Mutex
}

// New creates an uninitialized Service with the given confidence threshold.
// Call Install or Reload before serving.
func New(threshold float64) *Service {
	return &Service{threshold: threshold}
}

// Install makes art the active artifact. Swapping is atomic with respect to
// concurrent predictions.
func (s *Service) Install(art *artifact.Artifact) {
	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	if s.active.Load() != nil {
		s.state.Store(int32(Reloading))
	}
	s.active.Store(art)
	s.state.Store(int32(Ready))
}

// Reload loads an artifact from disk and swaps it in. The previous artifact
// keeps serving until the swap completes; on load failure it stays active.
func (s *Service) Reload(path string) error {
	art, err := artifact.Load(path)
	if err != nil {
		return fmt.Errorf("service: reload: %w", err)
	}
	s.Install(art)
	return nil
}

// State reports the lifecycle state.
func (s *Service) State() State {
	return State(s.state.Load())
}

// ActiveVersion returns the active artifact's version, or "" when
// uninitialized.
func (s *Service) ActiveVersion() string {
	if art := s.active.Load(); art != nil {
		return art.Version
	}
	return ""
}

// Labels returns the active artifact's label set.
func (s *Service) Labels() (model.LabelSet, error) {
	art := s.active.Load()
	if art == nil {
		return model.LabelSet{}, ErrNotReady
	}
	return art.Labels, nil
}

// Predict classifies one submission. hasTitle/hasBody distinguish absent
// fields from present-but-empty ones: a request with both fields missing is
// malformed, while empty text flows through the pipeline and lands on the
// fallback label.
func (s *Service) Predict(title, body string, hasTitle, hasBody bool) (model.Prediction, error) {
	if !hasTitle && !hasBody {
		return model.Prediction{}, ErrMalformedInput
	}

	art := s.active.Load()
	if art == nil {
		return model.Prediction{}, ErrNotReady
	}

	label, confidence, err := art.Predict(title, body)
	if err != nil {
		return model.Prediction{}, err
	}
	if confidence < s.threshold {
		label = FallbackLabel
	}

	return model.Prediction{
		Label:        label,
		Confidence:   confidence,
		ModelVersion: art.Version,
		PredictedAt:  time.Now().UTC(),
	}, nil
}

// PredictSubmission classifies a stored submission record. Stored rows
// always carry both fields structurally, so empty text is not malformed
// here; it degrades to the fallback label through the normal pipeline.
func (s *Service) PredictSubmission(sub model.Submission) (model.Prediction, error) {
	return s.Predict(sub.Title, sub.Selftext, true, true)
}
