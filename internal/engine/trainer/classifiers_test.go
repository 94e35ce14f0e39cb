package trainer

import (
	"math"
	"testing"

	"github.com/hollyoak/flaircast/internal/engine/feature"
)

// separable builds a two-class toy set with class 0 near (1,0) and class 1
// near (0,1).
func separable(nPerClass int) ([]feature.Vector, []int) {
	var X []feature.Vector
	var y []int
	for i := 0; i < nPerClass; i++ {
		jit := float64(i) * 0.02
		X = append(X, feature.Vector{1 - jit, jit})
		y = append(y, 0)
		X = append(X, feature.Vector{jit, 1 - jit})
		y = append(y, 1)
	}
	return X, y
}

func checkProba(t *testing.T, p []float64, wantClass int) {
	t.Helper()
	var sum float64
	for _, v := range p {
		if v < 0 || v > 1 {
			t.Fatalf("probability out of range: %v", p)
		}
		sum += v
	}
	if math.Abs(sum-1) > 1e-9 {
		t.Fatalf("probabilities sum to %v, want 1: %v", sum, p)
	}
	best := 0
	for i := range p {
		if p[i] > p[best] {
			best = i
		}
	}
	if best != wantClass {
		t.Fatalf("argmax is class %d, want %d: %v", best, wantClass, p)
	}
}

func TestClassifiersSeparable(t *testing.T) {
	X, y := separable(10)

	for _, kind := range []string{KindLogistic, KindNaiveBayes, KindCentroid} {
		t.Run(kind, func(t *testing.T) {
			cls, err := newClassifier(kind, Params{})
			if err != nil {
				t.Fatal(err)
			}
			if err := cls.Fit(X, y, nil, 2); err != nil {
				t.Fatal(err)
			}
			if cls.ParamCount() <= 0 {
				t.Fatalf("ParamCount = %d, want > 0", cls.ParamCount())
			}

			p0, err := cls.Proba(feature.Vector{0.95, 0.05})
			if err != nil {
				t.Fatal(err)
			}
			checkProba(t, p0, 0)

			p1, err := cls.Proba(feature.Vector{0.05, 0.95})
			if err != nil {
				t.Fatal(err)
			}
			checkProba(t, p1, 1)
		})
	}
}

func TestClassifiersRestoreRoundTrip(t *testing.T) {
	X, y := separable(8)
	probe := feature.Vector{0.9, 0.1}

	for _, kind := range []string{KindLogistic, KindNaiveBayes, KindCentroid} {
		t.Run(kind, func(t *testing.T) {
			cls, err := newClassifier(kind, Params{})
			if err != nil {
				t.Fatal(err)
			}
			if err := cls.Fit(X, y, nil, 2); err != nil {
				t.Fatal(err)
			}

			raw, err := cls.MarshalParams()
			if err != nil {
				t.Fatal(err)
			}
			restored, err := Restore(kind, raw)
			if err != nil {
				t.Fatal(err)
			}
			if restored.Kind() != kind {
				t.Fatalf("restored kind %q, want %q", restored.Kind(), kind)
			}

			want, err := cls.Proba(probe)
			if err != nil {
				t.Fatal(err)
			}
			got, err := restored.Proba(probe)
			if err != nil {
				t.Fatal(err)
			}
			for i := range want {
				if math.Abs(got[i]-want[i]) > 1e-12 {
					t.Fatalf("restored proba differs at %d: got %v, want %v", i, got, want)
				}
			}
		})
	}
}

func TestClassifiersUnfittedProba(t *testing.T) {
	for _, kind := range []string{KindLogistic, KindNaiveBayes, KindCentroid} {
		cls, err := newClassifier(kind, Params{})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := cls.Proba(feature.Vector{1, 0}); err == nil {
			t.Errorf("%s: expected error for Proba before Fit", kind)
		}
	}
}

func TestClassifiersWeightsShiftDecision(t *testing.T) {
	// A borderline point between two unequal clusters: heavy weights on the
	// minority class should pull the decision toward it.
	X := []feature.Vector{
		{1, 0}, {0.9, 0.1}, {0.8, 0.2}, {0.7, 0.3},
		{0, 1},
	}
	y := []int{0, 0, 0, 0, 1}
	heavy := []float64{1, 1, 1, 1, 40}

	cls, err := newClassifier(KindLogistic, Params{Epochs: 400})
	if err != nil {
		t.Fatal(err)
	}
	if err := cls.Fit(X, y, heavy, 2); err != nil {
		t.Fatal(err)
	}
	weighted, err := cls.Proba(feature.Vector{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}

	cls2, err := newClassifier(KindLogistic, Params{Epochs: 400})
	if err != nil {
		t.Fatal(err)
	}
	if err := cls2.Fit(X, y, nil, 2); err != nil {
		t.Fatal(err)
	}
	uniform, err := cls2.Proba(feature.Vector{0.5, 0.5})
	if err != nil {
		t.Fatal(err)
	}

	if weighted[1] <= uniform[1] {
		t.Fatalf("minority weighting did not raise minority probability: weighted %v, uniform %v",
			weighted[1], uniform[1])
	}
}

func TestRestoreUnknownKind(t *testing.T) {
	if _, err := Restore("bogus", []byte(`{}`)); err == nil {
		t.Fatal("expected error for unknown classifier kind")
	}
}
