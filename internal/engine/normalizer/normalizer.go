package normalizer

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/kljensen/snowball/english"
	"golang.org/x/text/unicode/norm"

	"github.com/hollyoak/flaircast/internal/model"
)

// Placeholder tokens substituted for non-linguistic content. Dropping URLs
// and markup outright would erase the signal that a post is link-heavy, so
// they are replaced rather than deleted.
const (
	URLToken    = "xurlx"
	MarkupToken = "xmarkupx"
)

var (
	urlRe = regexp.MustCompile(`https?://\S+|www\.\S+`)
	// Markdown / platform artifacts: quote markers, formatting runs,
	// spoiler and code fences.
	markupRe = regexp.MustCompile("(?m)^\\s*(?:&gt;|>)+|[*_~`]{2,}|\\[|\\]\\(|\\)|&amp;|&lt;|&gt;|#x200b;?")
)

// Config controls the normalization pipeline.
type Config struct {
	MinTokenLen int                 // tokens shorter than this are dropped (0 disables)
	Stopwords   map[string]struct{} // nil falls back to the embedded English set
	Stem        bool                // reduce tokens to their Snowball stem
}

// Default returns the configuration used when none is supplied: English
// stopwords, the original pipeline's three-character minimum, stemming on.
func Default() Config {
	return Config{
		MinTokenLen: 3,
		Stopwords:   DefaultStopwords(),
		Stem:        true,
	}
}

// Normalizer turns raw submission text into a canonical token sequence.
// It is deterministic and carries no learned state, so training-time and
// inference-time normalization cannot drift.
type Normalizer struct {
	cfg Config
}

// New creates a Normalizer with the given config.
func New(cfg Config) *Normalizer {
	if cfg.Stopwords == nil {
		cfg.Stopwords = DefaultStopwords()
	}
	return &Normalizer{cfg: cfg}
}

// Normalize converts a title and body into a canonical document. Steps run
// in fixed order: join, lowercase, placeholder substitution, accent
// stripping, word tokenization, stopword and short-token removal, stemming.
// An empty result is valid output, not an error.
func (n *Normalizer) Normalize(title, body string) model.Document {
	text := strings.TrimSpace(title + " " + body)
	if text == "" {
		return nil
	}

	text = strings.ToLower(text)
	text = urlRe.ReplaceAllString(text, " "+URLToken+" ")
	text = markupRe.ReplaceAllString(text, " "+MarkupToken+" ")
	text = stripAccents(text)

	var doc model.Document
	for _, tok := range tokenize(text) {
		if tok == URLToken || tok == MarkupToken {
			doc = append(doc, tok)
			continue
		}
		if _, stop := n.cfg.Stopwords[tok]; stop {
			continue
		}
		if n.cfg.MinTokenLen > 0 && len([]rune(tok)) < n.cfg.MinTokenLen {
			continue
		}
		if n.cfg.Stem {
			tok = english.Stem(tok, false)
		}
		doc = append(doc, tok)
	}
	return doc
}

// tokenize splits on linguistic word boundaries, keeping token order.
// Apostrophes inside a word survive so contractions stay whole; everything
// else non-alphanumeric is a boundary.
func tokenize(text string) []string {
	var tokens []string
	var current strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '\'' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 0 {
			tokens = append(tokens, strings.Trim(current.String(), "'"))
			current.Reset()
		}
	}
	if current.Len() > 0 {
		tokens = append(tokens, strings.Trim(current.String(), "'"))
	}
	// Trimming apostrophes can leave empty strings behind.
	out := tokens[:0]
	for _, t := range tokens {
		if t != "" {
			out = append(out, t)
		}
	}
	return out
}

// stripAccents removes combining diacritical marks after NFD normalization.
func stripAccents(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range norm.NFD.String(text) {
		if unicode.In(r, unicode.Mn) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
