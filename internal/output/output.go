// Package output delivers prediction results to configurable destinations.
// Batch prediction runs fan their results through one or more sinks.
package output

import (
	"context"

	"github.com/hollyoak/flaircast/internal/model"
)

// Result is one delivered prediction: the classified submission plus the
// model output.
type Result struct {
	SubmissionID string `json:"submission_id,omitempty"`
	model.Prediction
}

// Sink is a destination for prediction results.
type Sink interface {
	Write(ctx context.Context, r Result) error
	Close() error
}
