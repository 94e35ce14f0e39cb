package normalizer

import (
	"bufio"
	_ "embed"
	"os"
	"strings"
)

//go:embed stopwords_en.txt
var stopwordsRaw string

// DefaultStopwords returns the embedded English stopword set. A fresh map is
// returned each call so callers can extend it without racing.
func DefaultStopwords() map[string]struct{} {
	set := make(map[string]struct{}, 200)
	for _, line := range strings.Split(stopwordsRaw, "\n") {
		w := strings.TrimSpace(line)
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		set[w] = struct{}{}
	}
	return set
}

// LoadStopwords reads one stopword per line from path and merges the result
// with the embedded English set.
func LoadStopwords(path string) (map[string]struct{}, error) {
	set := DefaultStopwords()

	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		w := strings.TrimSpace(strings.ToLower(scanner.Text()))
		if w == "" || strings.HasPrefix(w, "#") {
			continue
		}
		set[w] = struct{}{}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return set, nil
}
