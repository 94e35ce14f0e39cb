package multi

import (
	"context"
	"errors"

	"github.com/hollyoak/flaircast/internal/output"
)

// Multi fans prediction results out to several sinks. A failing sink does
// not prevent delivery to the remaining sinks.
type Multi struct {
	sinks []output.Sink
}

// New creates a Multi fanning out to the given sinks.
func New(sinks ...output.Sink) *Multi {
	return &Multi{sinks: sinks}
}

// Write delivers the result to every sink, collecting errors.
func (m *Multi) Write(ctx context.Context, r output.Result) error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Write(ctx, r); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sink, collecting errors.
func (m *Multi) Close() error {
	var errs []error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
