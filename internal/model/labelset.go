package model

import "sort"

// LabelSet is the ordered, closed set of flair values observed at fit time.
// It is computed once per training run and carried inside the model artifact;
// inference never extends it.
type LabelSet struct {
	Labels []string `json:"labels"`
}

// NewLabelSet builds a LabelSet from observed flair values, deduplicated and
// sorted so the ordering is stable across runs.
func NewLabelSet(flairs []string) LabelSet {
	seen := make(map[string]struct{}, len(flairs))
	var labels []string
	for _, f := range flairs {
		if f == "" {
			continue
		}
		if _, ok := seen[f]; ok {
			continue
		}
		seen[f] = struct{}{}
		labels = append(labels, f)
	}
	sort.Strings(labels)
	return LabelSet{Labels: labels}
}

// Index returns the position of label, or -1 if it is outside the set.
func (ls LabelSet) Index(label string) int {
	for i, l := range ls.Labels {
		if l == label {
			return i
		}
	}
	return -1
}

// Label returns the label at index i, or "" if out of range.
func (ls LabelSet) Label(i int) string {
	if i < 0 || i >= len(ls.Labels) {
		return ""
	}
	return ls.Labels[i]
}

// Len returns the number of labels.
func (ls LabelSet) Len() int {
	return len(ls.Labels)
}

// Equal reports whether two label sets contain the same labels in the same order.
func (ls LabelSet) Equal(other LabelSet) bool {
	if len(ls.Labels) != len(other.Labels) {
		return false
	}
	for i := range ls.Labels {
		if ls.Labels[i] != other.Labels[i] {
			return false
		}
	}
	return true
}
