// Package evaluate computes held-out classification metrics and per-class
// breakdowns. Metrics cover only labels that appear in the held-out set
// (true or predicted); a quantity whose denominator is zero is explicitly
// marked undefined, never silently reported as zero.
package evaluate

import (
	"fmt"
	"sort"
	"strings"
)

// ClassMetrics is the per-label breakdown.
type ClassMetrics struct {
	Label string `json:"label"`

	Precision        float64 `json:"precision"`
	PrecisionDefined bool    `json:"precision_defined"` // false when nothing was predicted as Label
	Recall           float64 `json:"recall"`
	RecallDefined    bool    `json:"recall_defined"` // false when Label has no true instances
	F1               float64 `json:"f1"`
	F1Defined        bool    `json:"f1_defined"`

	Support   int `json:"support"`   // true instances in the held-out set
	Predicted int `json:"predicted"` // predictions carrying this label
}

// Report is the evaluation result for one held-out set.
type Report struct {
	Labels     []string       `json:"labels"` // axis for PerClass and Confusion
	N          int            `json:"n"`
	Accuracy   float64        `json:"accuracy"`
	MacroF1    float64        `json:"macro_f1"`
	WeightedF1 float64        `json:"weighted_f1"`
	PerClass   []ClassMetrics `json:"per_class"`
	// Confusion[i][j] counts held-out examples with true label Labels[i]
	// predicted as Labels[j].
	Confusion [][]int `json:"confusion"`
}

// Evaluate scores predictions against true labels. Both slices must have
// equal nonzero length.
func Evaluate(trueLabels, predLabels []string) (Report, error) {
	if len(trueLabels) == 0 {
		return Report{}, fmt.Errorf("evaluate: empty held-out set")
	}
	if len(trueLabels) != len(predLabels) {
		return Report{}, fmt.Errorf("evaluate: %d true labels but %d predictions",
			len(trueLabels), len(predLabels))
	}

	seen := make(map[string]struct{})
	for _, l := range trueLabels {
		seen[l] = struct{}{}
	}
	for _, l := range predLabels {
		seen[l] = struct{}{}
	}
	labels := make([]string, 0, len(seen))
	for l := range seen {
		labels = append(labels, l)
	}
	sort.Strings(labels)

	index := make(map[string]int, len(labels))
	for i, l := range labels {
		index[l] = i
	}

	confusion := make([][]int, len(labels))
	for i := range confusion {
		confusion[i] = make([]int, len(labels))
	}
	correct := 0
	for i := range trueLabels {
		t, p := index[trueLabels[i]], index[predLabels[i]]
		confusion[t][p]++
		if t == p {
			correct++
		}
	}

	perClass := make([]ClassMetrics, len(labels))
	var macroSum float64
	macroN := 0
	var weightedSum float64

	for i, label := range labels {
		m := ClassMetrics{Label: label}

		tp := confusion[i][i]
		for j := range labels {
			m.Support += confusion[i][j]
			m.Predicted += confusion[j][i]
		}

		if m.Predicted > 0 {
			m.Precision = float64(tp) / float64(m.Predicted)
			m.PrecisionDefined = true
		}
		if m.Support > 0 {
			m.Recall = float64(tp) / float64(m.Support)
			m.RecallDefined = true
		}
		if m.PrecisionDefined && m.RecallDefined {
			if m.Precision+m.Recall > 0 {
				m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
			}
			m.F1Defined = true
		} else if m.RecallDefined {
			// True instances exist but nothing was predicted as this
			// label: the classifier missed the class entirely.
			m.F1Defined = true
		}

		if m.Support > 0 {
			macroSum += m.F1
			macroN++
			weightedSum += m.F1 * float64(m.Support)
		}
		perClass[i] = m
	}

	r := Report{
		Labels:    labels,
		N:         len(trueLabels),
		Accuracy:  float64(correct) / float64(len(trueLabels)),
		PerClass:  perClass,
		Confusion: confusion,
	}
	if macroN > 0 {
		r.MacroF1 = macroSum / float64(macroN)
		r.WeightedF1 = weightedSum / float64(len(trueLabels))
	}
	return r, nil
}

// Render formats the report as a fixed-width text table, one row per label
// plus the aggregate lines.
func (r Report) Render() string {
	var b strings.Builder
	width := 12
	for _, m := range r.PerClass {
		if len(m.Label) > width {
			width = len(m.Label)
		}
	}

	fmt.Fprintf(&b, "%-*s  %9s  %9s  %9s  %8s\n", width, "", "precision", "recall", "f1", "support")
	for _, m := range r.PerClass {
		fmt.Fprintf(&b, "%-*s  %9s  %9s  %9s  %8d\n", width, m.Label,
			formatMetric(m.Precision, m.PrecisionDefined),
			formatMetric(m.Recall, m.RecallDefined),
			formatMetric(m.F1, m.F1Defined),
			m.Support)
	}
	fmt.Fprintf(&b, "\n%-*s  %9.3f\n", width, "accuracy", r.Accuracy)
	fmt.Fprintf(&b, "%-*s  %9.3f\n", width, "macro f1", r.MacroF1)
	fmt.Fprintf(&b, "%-*s  %9.3f\n", width, "weighted f1", r.WeightedF1)
	return b.String()
}

func formatMetric(v float64, defined bool) string {
	if !defined {
		return "undefined"
	}
	return fmt.Sprintf("%.3f", v)
}
