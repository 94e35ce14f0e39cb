package feature

import (
	"encoding/json"
	"fmt"
	"math"
	"sort"

	"github.com/hollyoak/flaircast/internal/model"
)

// Defaults applied when the corresponding config knob is zero.
const (
	defaultMaxVocab   = 20000
	defaultMinDocFreq = 2
)

// TFIDF is a frequency-weighted sparse-style representation over a capped
// vocabulary. Tokens outside the fitted vocabulary map to a designated
// out-of-vocabulary slot at the end of the vector.
type TFIDF struct {
	maxVocab   int
	minDocFreq int

	fitted bool
	state  tfidfState
}

// tfidfState is the immutable fitted state: vocabulary indices and smoothed
// inverse document frequencies. The OOV slot is index len(Terms).
type tfidfState struct {
	Terms  []string  `json:"terms"` // index order
	IDF    []float64 `json:"idf"`   // parallel to Terms
	OOVIDF float64   `json:"oov_idf"`
	NDocs  int       `json:"n_docs"`

	index map[string]int // rebuilt after load, not serialized
}

// NewTFIDF creates an unfitted TF-IDF extractor. Zero knobs take defaults.
func NewTFIDF(maxVocab, minDocFreq int) *TFIDF {
	if maxVocab <= 0 {
		maxVocab = defaultMaxVocab
	}
	if minDocFreq <= 0 {
		minDocFreq = defaultMinDocFreq
	}
	return &TFIDF{maxVocab: maxVocab, minDocFreq: minDocFreq}
}

// Strategy implements Extractor.
func (t *TFIDF) Strategy() string { return StrategyTFIDF }

// Fit builds the vocabulary and IDF table from the training documents.
// Terms below the minimum document frequency are excluded; if more terms
// survive than the vocabulary cap, the most document-frequent are kept.
func (t *TFIDF) Fit(docs []model.Document) error {
	df := make(map[string]int)
	for _, doc := range docs {
		seen := make(map[string]struct{}, len(doc))
		for _, tok := range doc {
			if _, ok := seen[tok]; ok {
				continue
			}
			seen[tok] = struct{}{}
			df[tok]++
		}
	}

	terms := make([]string, 0, len(df))
	for term, n := range df {
		if n >= t.minDocFreq {
			terms = append(terms, term)
		}
	}
	// Highest document frequency first; ties alphabetical so the fitted
	// vocabulary is stable across runs.
	sort.Slice(terms, func(i, j int) bool {
		if df[terms[i]] != df[terms[j]] {
			return df[terms[i]] > df[terms[j]]
		}
		return terms[i] < terms[j]
	})
	if len(terms) > t.maxVocab {
		terms = terms[:t.maxVocab]
	}
	sort.Strings(terms)

	n := len(docs)
	idf := make([]float64, len(terms))
	index := make(map[string]int, len(terms))
	for i, term := range terms {
		idf[i] = math.Log(float64(1+n)/float64(1+df[term])) + 1
		index[term] = i
	}

	t.state = tfidfState{
		Terms:  terms,
		IDF:    idf,
		OOVIDF: math.Log(float64(1+n)) + 1,
		NDocs:  n,
		index:  index,
	}
	t.fitted = true
	return nil
}

// Transform encodes a document as an L2-normalized TF-IDF vector. The last
// slot accumulates out-of-vocabulary mass. Empty documents yield the zero
// vector.
func (t *TFIDF) Transform(doc model.Document) (Vector, error) {
	if !t.fitted {
		return nil, ErrUnfitted
	}

	vec := make(Vector, t.Dim())
	if len(doc) == 0 {
		return vec, nil
	}

	oov := len(t.state.Terms)
	for _, tok := range doc {
		if i, ok := t.state.index[tok]; ok {
			vec[i]++
		} else {
			vec[oov]++
		}
	}

	docLen := float64(len(doc))
	for i := range t.state.Terms {
		vec[i] = vec[i] / docLen * t.state.IDF[i]
	}
	vec[oov] = vec[oov] / docLen * t.state.OOVIDF

	var norm float64
	for _, v := range vec {
		norm += v * v
	}
	if norm > 0 {
		inv := 1 / math.Sqrt(norm)
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec, nil
}

// Dim returns vocabulary size plus the OOV slot, or 0 before Fit.
func (t *TFIDF) Dim() int {
	if !t.fitted {
		return 0
	}
	return len(t.state.Terms) + 1
}

// MarshalState implements Extractor.
func (t *TFIDF) MarshalState() (json.RawMessage, error) {
	if !t.fitted {
		return nil, ErrUnfitted
	}
	return json.Marshal(t.state)
}

func restoreTFIDF(raw json.RawMessage) (*TFIDF, error) {
	var st tfidfState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("feature: tfidf state: %w", err)
	}
	if len(st.Terms) != len(st.IDF) {
		return nil, fmt.Errorf("feature: tfidf state: %d terms but %d idf values: %w",
			len(st.Terms), len(st.IDF), ErrUnfitted)
	}
	st.index = make(map[string]int, len(st.Terms))
	for i, term := range st.Terms {
		st.index[term] = i
	}
	return &TFIDF{fitted: true, state: st}, nil
}
