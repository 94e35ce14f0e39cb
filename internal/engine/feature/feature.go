// Package feature turns canonical documents into fixed-dimension numeric
// vectors. Extractors have a fit phase, run once per training run over the
// training split only, and a transform phase that is a pure function of the
// document and the immutable fitted state.
package feature

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hollyoak/flaircast/internal/model"
)

// ErrUnfitted is returned when Transform is called before Fit, or when an
// extractor is restored from a state that does not match its strategy.
var ErrUnfitted = errors.New("feature: extractor is not fitted")

// Strategy names accepted in configuration and artifact state.
const (
	StrategyTFIDF     = "tfidf"
	StrategyEmbedding = "embedding"
)

// Vector is a fixed-length numeric encoding of one document. Two vectors are
// only comparable if produced by the same fitted extractor.
type Vector []float64

// Config selects and parameterizes an extraction strategy.
type Config struct {
	Strategy string `yaml:"strategy" json:"strategy"`

	// TF-IDF knobs. MaxVocabSize caps dimensionality to bound memory and
	// compute; MinDocFreq filters noise tokens seen in fewer than N
	// training documents.
	MaxVocabSize int `yaml:"max_vocab_size" json:"max_vocab_size"`
	MinDocFreq   int `yaml:"min_doc_freq" json:"min_doc_freq"`

	// Path to a word2vec-style text table, embedding strategy only.
	EmbeddingPath string `yaml:"embedding_path" json:"embedding_path"`
}

// Extractor is a fit-then-transform feature encoder.
type Extractor interface {
	// Strategy returns the strategy name, used to rebind serialized state.
	Strategy() string

	// Fit learns vocabulary and statistics from the training documents.
	// Calling Fit twice replaces the fitted state.
	Fit(docs []model.Document) error

	// Transform encodes one document against the fitted state. It is pure:
	// identical input yields bit-identical output. Returns ErrUnfitted
	// before Fit.
	Transform(doc model.Document) (Vector, error)

	// Dim returns the fixed output dimensionality, 0 before Fit.
	Dim() int

	// MarshalState serializes the fitted state for the model artifact.
	MarshalState() (json.RawMessage, error)
}

// New creates an unfitted extractor for the configured strategy.
func New(cfg Config) (Extractor, error) {
	switch cfg.Strategy {
	case StrategyTFIDF, "":
		return NewTFIDF(cfg.MaxVocabSize, cfg.MinDocFreq), nil
	case StrategyEmbedding:
		return NewEmbedding(cfg.EmbeddingPath), nil
	default:
		return nil, fmt.Errorf("feature: unknown strategy %q", cfg.Strategy)
	}
}

// Restore rebuilds a fitted extractor from serialized state.
func Restore(strategy string, state json.RawMessage) (Extractor, error) {
	switch strategy {
	case StrategyTFIDF:
		return restoreTFIDF(state)
	case StrategyEmbedding:
		return restoreEmbedding(state)
	default:
		return nil, fmt.Errorf("feature: unknown strategy %q: %w", strategy, ErrUnfitted)
	}
}
