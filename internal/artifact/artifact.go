// Package artifact bundles a fitted feature extractor, fitted classifier,
// label set, and normalizer configuration under one version identifier. The
// four parts are serialized together and never mixed across versions:
// loading verifies integrity and version agreement before any part is used.
package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/hollyoak/flaircast/internal/engine/evaluate"
	"github.com/hollyoak/flaircast/internal/engine/feature"
	"github.com/hollyoak/flaircast/internal/engine/normalizer"
	"github.com/hollyoak/flaircast/internal/engine/trainer"
	"github.com/hollyoak/flaircast/internal/model"
)

// ErrVersionMismatch is returned when a persisted artifact fails its
// load-time integrity check: corrupt payload, tampered version tag, or
// internally disagreeing part versions.
var ErrVersionMismatch = errors.New("artifact: version or integrity check failed")

// formatVersion guards the on-disk envelope layout, not the model version.
const formatVersion = 1

// Artifact is a fully loaded, immutable model bundle ready to serve.
type Artifact struct {
	Version    string
	CreatedAt  time.Time
	Normalizer *normalizer.Normalizer
	NormCfg    normalizer.Config
	Extractor  feature.Extractor
	Classifier trainer.Classifier
	Labels     model.LabelSet
	Report     evaluate.Report // held-out evaluation from the training run
}

// New assembles an artifact from the outputs of a training run and assigns
// it a fresh version identifier.
func New(normCfg normalizer.Config, ext feature.Extractor, cls trainer.Classifier,
	labels model.LabelSet, report evaluate.Report) *Artifact {
	return &Artifact{
		Version:    uuid.NewString(),
		CreatedAt:  time.Now().UTC(),
		Normalizer: normalizer.New(normCfg),
		NormCfg:    normCfg,
		Extractor:  ext,
		Classifier: cls,
		Labels:     labels,
		Report:     report,
	}
}

// Predict runs the artifact's full inference pipeline on raw text:
// normalize, transform against the fitted state, classify, arg-max. The
// returned label always comes from the artifact's label set; thresholding
// and fallback belong to the caller.
func (a *Artifact) Predict(title, body string) (label string, confidence float64, err error) {
	doc := a.Normalizer.Normalize(title, body)
	vec, err := a.Extractor.Transform(doc)
	if err != nil {
		return "", 0, fmt.Errorf("artifact %s: %w", a.Version, err)
	}
	proba, err := a.Classifier.Proba(vec)
	if err != nil {
		return "", 0, fmt.Errorf("artifact %s: %w", a.Version, err)
	}
	best := 0
	for i := range proba {
		if proba[i] > proba[best] {
			best = i
		}
	}
	return a.Labels.Label(best), proba[best], nil
}

// envelope is the persisted file layout. Checksum covers Payload verbatim;
// Version duplicates the payload's version so tampering with either is
// detectable.
type envelope struct {
	FormatVersion int             `json:"format_version"`
	Version       string          `json:"version"`
	Checksum      string          `json:"checksum"`
	Payload       json.RawMessage `json:"payload"`
}

// payload holds the four bound parts. Each part repeats the version so no
// part can be re-spliced from another artifact unnoticed.
type payload struct {
	Version   string    `json:"version"`
	CreatedAt time.Time `json:"created_at"`

	NormalizerCfg normCfgJSON `json:"normalizer"`

	FeatureStrategy string          `json:"feature_strategy"`
	FeatureVersion  string          `json:"feature_version"`
	FeatureState    json.RawMessage `json:"feature_state"`

	ClassifierKind    string          `json:"classifier_kind"`
	ClassifierVersion string          `json:"classifier_version"`
	ClassifierParams  json.RawMessage `json:"classifier_params"`

	Labels model.LabelSet  `json:"labels"`
	Report evaluate.Report `json:"report"`
}

// normCfgJSON is the serializable subset of normalizer.Config: the stopword
// set is flattened to a sorted list.
type normCfgJSON struct {
	MinTokenLen int      `json:"min_token_len"`
	Stem        bool     `json:"stem"`
	Stopwords   []string `json:"stopwords"`
}

// Save writes the artifact to path atomically (write temp, rename).
func (a *Artifact) Save(path string) error {
	featState, err := a.Extractor.MarshalState()
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	clsParams, err := a.Classifier.MarshalParams()
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}

	p := payload{
		Version:           a.Version,
		CreatedAt:         a.CreatedAt,
		NormalizerCfg:     marshalNormCfg(a.NormCfg),
		FeatureStrategy:   a.Extractor.Strategy(),
		FeatureVersion:    a.Version,
		FeatureState:      featState,
		ClassifierKind:    a.Classifier.Kind(),
		ClassifierVersion: a.Version,
		ClassifierParams:  clsParams,
		Labels:            a.Labels,
		Report:            a.Report,
	}
	payloadBytes, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}

	env := envelope{
		FormatVersion: formatVersion,
		Version:       a.Version,
		Checksum:      checksum(payloadBytes),
		Payload:       payloadBytes,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("artifact: %w", err)
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("artifact: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("artifact: %w", err)
	}
	return nil
}

// Load reads and verifies a persisted artifact. Any integrity or version
// disagreement fails with ErrVersionMismatch; it never proceeds silently.
func Load(path string) (*Artifact, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("artifact: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("artifact: %s is not a model artifact: %w", path, err)
	}
	if env.FormatVersion != formatVersion {
		return nil, fmt.Errorf("artifact: %s has format version %d, want %d: %w",
			path, env.FormatVersion, formatVersion, ErrVersionMismatch)
	}
	if got := checksum(env.Payload); got != env.Checksum {
		return nil, fmt.Errorf("artifact: %s checksum %s does not match payload (%s): %w",
			path, env.Checksum, got, ErrVersionMismatch)
	}

	var p payload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		return nil, fmt.Errorf("artifact: %s payload: %w", path, err)
	}
	if p.Version == "" || p.Version != env.Version ||
		p.FeatureVersion != p.Version || p.ClassifierVersion != p.Version {
		return nil, fmt.Errorf("artifact: %s carries mixed versions (envelope %s, payload %s, feature %s, classifier %s): %w",
			path, env.Version, p.Version, p.FeatureVersion, p.ClassifierVersion, ErrVersionMismatch)
	}

	ext, err := feature.Restore(p.FeatureStrategy, p.FeatureState)
	if err != nil {
		return nil, fmt.Errorf("artifact: %s: %w", path, err)
	}
	cls, err := trainer.Restore(p.ClassifierKind, p.ClassifierParams)
	if err != nil {
		return nil, fmt.Errorf("artifact: %s: %w", path, err)
	}

	normCfg := unmarshalNormCfg(p.NormalizerCfg)
	return &Artifact{
		Version:    p.Version,
		CreatedAt:  p.CreatedAt,
		Normalizer: normalizer.New(normCfg),
		NormCfg:    normCfg,
		Extractor:  ext,
		Classifier: cls,
		Labels:     p.Labels,
		Report:     p.Report,
	}, nil
}

func checksum(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func marshalNormCfg(cfg normalizer.Config) normCfgJSON {
	words := make([]string, 0, len(cfg.Stopwords))
	for w := range cfg.Stopwords {
		words = append(words, w)
	}
	// Sorted so two saves of the same artifact are byte-identical.
	sort.Strings(words)
	return normCfgJSON{
		MinTokenLen: cfg.MinTokenLen,
		Stem:        cfg.Stem,
		Stopwords:   words,
	}
}

func unmarshalNormCfg(j normCfgJSON) normalizer.Config {
	set := make(map[string]struct{}, len(j.Stopwords))
	for _, w := range j.Stopwords {
		set[w] = struct{}{}
	}
	return normalizer.Config{
		MinTokenLen: j.MinTokenLen,
		Stem:        j.Stem,
		Stopwords:   set,
	}
}
