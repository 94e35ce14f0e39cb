package feature

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/hollyoak/flaircast/internal/model"
)

// Embedding averages pretrained dense word vectors over a document. Tokens
// without a pretrained vector contribute a zero vector, so an empty or fully
// out-of-vocabulary document encodes as all zeros.
type Embedding struct {
	tablePath string

	fitted bool
	state  embeddingState
}

// embeddingState keeps only the pretrained vectors for tokens actually seen
// in the training split, which bounds artifact size and ties the fitted
// state to the training corpus.
type embeddingState struct {
	Dim     int                  `json:"dim"`
	Vectors map[string][]float64 `json:"vectors"`
}

// NewEmbedding creates an unfitted extractor reading vectors from a
// word2vec-style text table ("token v1 v2 ... vN" per line).
func NewEmbedding(tablePath string) *Embedding {
	return &Embedding{tablePath: tablePath}
}

// Strategy implements Extractor.
func (e *Embedding) Strategy() string { return StrategyEmbedding }

// Fit loads the pretrained table and retains vectors for the training
// vocabulary only.
func (e *Embedding) Fit(docs []model.Document) error {
	vocab := make(map[string]struct{})
	for _, doc := range docs {
		for _, tok := range doc {
			vocab[tok] = struct{}{}
		}
	}

	dim, vectors, err := loadVectorTable(e.tablePath, vocab)
	if err != nil {
		return err
	}

	e.state = embeddingState{Dim: dim, Vectors: vectors}
	e.fitted = true
	return nil
}

// Transform returns the mean of pretrained vectors for in-vocabulary tokens.
func (e *Embedding) Transform(doc model.Document) (Vector, error) {
	if !e.fitted {
		return nil, ErrUnfitted
	}

	vec := make(Vector, e.state.Dim)
	var hits float64
	for _, tok := range doc {
		wv, ok := e.state.Vectors[tok]
		if !ok {
			continue
		}
		for i, v := range wv {
			vec[i] += v
		}
		hits++
	}
	if hits > 0 {
		inv := 1 / hits
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dim returns the pretrained embedding dimensionality, 0 before Fit.
func (e *Embedding) Dim() int {
	if !e.fitted {
		return 0
	}
	return e.state.Dim
}

// MarshalState implements Extractor.
func (e *Embedding) MarshalState() (json.RawMessage, error) {
	if !e.fitted {
		return nil, ErrUnfitted
	}
	return json.Marshal(e.state)
}

func restoreEmbedding(raw json.RawMessage) (*Embedding, error) {
	var st embeddingState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("feature: embedding state: %w", err)
	}
	if st.Dim <= 0 {
		return nil, fmt.Errorf("feature: embedding state has dim %d: %w", st.Dim, ErrUnfitted)
	}
	for tok, v := range st.Vectors {
		if len(v) != st.Dim {
			return nil, fmt.Errorf("feature: embedding state: vector for %q has dim %d, want %d: %w",
				tok, len(v), st.Dim, ErrUnfitted)
		}
	}
	return &Embedding{fitted: true, state: st}, nil
}

// loadVectorTable reads a word2vec-style text file, keeping only tokens in
// keep. Lines that do not parse are skipped; inconsistent dimensions are an
// error.
func loadVectorTable(path string, keep map[string]struct{}) (int, map[string][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, nil, fmt.Errorf("feature: embedding table: %w", err)
	}
	defer f.Close()

	vectors := make(map[string][]float64)
	dim := 0

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) < 2 {
			continue // header or blank line
		}
		tok := fields[0]
		if _, ok := keep[tok]; !ok {
			continue
		}

		vec := make([]float64, 0, len(fields)-1)
		bad := false
		for _, s := range fields[1:] {
			v, err := strconv.ParseFloat(s, 64)
			if err != nil {
				bad = true
				break
			}
			vec = append(vec, v)
		}
		if bad {
			continue
		}
		if dim == 0 {
			dim = len(vec)
		} else if len(vec) != dim {
			return 0, nil, fmt.Errorf("feature: embedding table: token %q has dim %d, want %d",
				tok, len(vec), dim)
		}
		vectors[tok] = vec
	}
	if err := scanner.Err(); err != nil {
		return 0, nil, fmt.Errorf("feature: embedding table: %w", err)
	}
	if dim == 0 {
		return 0, nil, fmt.Errorf("feature: embedding table %s: no usable vectors for training vocabulary", path)
	}
	return dim, vectors, nil
}
