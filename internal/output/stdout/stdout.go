package stdout

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/hollyoak/flaircast/internal/output"
)

// Sink writes JSON-encoded prediction results to stdout, one per line.
type Sink struct {
	enc *json.Encoder
}

// New creates a stdout Sink with optional pretty-printed JSON.
func New(pretty bool) *Sink {
	return NewWriter(os.Stdout, pretty)
}

// NewWriter creates a Sink targeting an arbitrary writer.
func NewWriter(w io.Writer, pretty bool) *Sink {
	enc := json.NewEncoder(w)
	if pretty {
		enc.SetIndent("", "  ")
	}
	return &Sink{enc: enc}
}

func (s *Sink) Write(_ context.Context, r output.Result) error {
	if err := s.enc.Encode(r); err != nil {
		return fmt.Errorf("stdout sink: %w", err)
	}
	return nil
}

func (s *Sink) Close() error {
	return nil
}
