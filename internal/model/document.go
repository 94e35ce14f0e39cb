package model

// Document is the canonical token sequence derived from one submission's
// title and body. It is regenerated on demand and never persisted, so it can
// never go stale across normalizer versions.
type Document []string

// Empty reports whether normalization left no tokens. An empty document is
// valid, maximally uninformative input, not an error.
func (d Document) Empty() bool {
	return len(d) == 0
}
