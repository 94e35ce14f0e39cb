package normalizer

import (
	"reflect"
	"testing"
)

func TestNormalizeDeterministic(t *testing.T) {
	n := New(Default())
	title := "Feeling overwhelmed — need advice"
	body := "I've been struggling lately. See https://example.com/help for context."

	first := n.Normalize(title, body)
	second := n.Normalize(title, body)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("normalize is not deterministic:\nfirst:  %v\nsecond: %v", first, second)
	}
	if len(first) == 0 {
		t.Fatal("expected tokens from non-empty input")
	}
}

func TestNormalizeURLPlaceholder(t *testing.T) {
	n := New(Config{MinTokenLen: 0, Stopwords: map[string]struct{}{}, Stem: false})
	doc := n.Normalize("check this", "link https://example.com/a?b=c here")

	found := false
	for _, tok := range doc {
		if tok == URLToken {
			found = true
		}
		if tok == "https" || tok == "example" {
			t.Fatalf("URL leaked into tokens: %v", doc)
		}
	}
	if !found {
		t.Fatalf("expected %q placeholder, got %v", URLToken, doc)
	}
}

func TestNormalizeMarkupPlaceholder(t *testing.T) {
	n := New(Config{MinTokenLen: 0, Stopwords: map[string]struct{}{}, Stem: false})
	doc := n.Normalize("", "&gt; quoted text **bold** rest")

	count := 0
	for _, tok := range doc {
		if tok == MarkupToken {
			count++
		}
	}
	if count == 0 {
		t.Fatalf("expected %q placeholder, got %v", MarkupToken, doc)
	}
}

func TestNormalizeStopwordsAndStemming(t *testing.T) {
	n := New(Default())
	doc := n.Normalize("", "the cats were running through their houses")

	for _, tok := range doc {
		if tok == "the" || tok == "were" || tok == "their" {
			t.Fatalf("stopword survived: %v", doc)
		}
	}
	// Snowball reduces "running" to "run" and "houses" to "hous".
	want := map[string]bool{"cat": true, "run": true, "hous": true}
	seen := map[string]bool{}
	for _, tok := range doc {
		seen[tok] = true
	}
	for w := range want {
		if !seen[w] {
			t.Fatalf("expected stem %q in %v", w, doc)
		}
	}
}

func TestNormalizeEmptyAndDegenerate(t *testing.T) {
	n := New(Default())

	tests := []struct {
		name  string
		title string
		body  string
	}{
		{"both empty", "", ""},
		{"whitespace only", "   ", "\n\t"},
		{"stopwords only", "", "the and of"},
		{"punctuation only", "!!!", "... --- ???"},
	}
	for _, tt := range tests {
		doc := n.Normalize(tt.title, tt.body)
		if !doc.Empty() {
			t.Errorf("%s: expected empty document, got %v", tt.name, doc)
		}
	}
}

func TestNormalizeStripAccents(t *testing.T) {
	n := New(Config{MinTokenLen: 0, Stopwords: map[string]struct{}{}, Stem: false})
	doc := n.Normalize("", "café naïve")
	want := []string{"cafe", "naive"}
	if !reflect.DeepEqual([]string(doc), want) {
		t.Fatalf("got %v, want %v", doc, want)
	}
}

func TestNormalizeLowercases(t *testing.T) {
	n := New(Config{MinTokenLen: 0, Stopwords: map[string]struct{}{}, Stem: false})
	doc := n.Normalize("NEED Support", "")
	want := []string{"need", "support"}
	if !reflect.DeepEqual([]string(doc), want) {
		t.Fatalf("got %v, want %v", doc, want)
	}
}

func TestDefaultStopwordsIsolated(t *testing.T) {
	a := DefaultStopwords()
	b := DefaultStopwords()
	a["customword"] = struct{}{}
	if _, ok := b["customword"]; ok {
		t.Fatal("DefaultStopwords returns a shared map")
	}
	if _, ok := b["the"]; !ok {
		t.Fatal("embedded stopword set is missing 'the'")
	}
}
