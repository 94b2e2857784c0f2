// Package fuzzy implements a token-set-ratio similarity score, built on
// top of a single Jaro-Winkler character-level comparison.
package fuzzy

import (
	"sort"
	"strings"

	"github.com/adrg/strutil"
	"github.com/adrg/strutil/metrics"

	"github.com/radiolib/libraryd/internal/normalize"
)

var jaroWinkler = metrics.NewJaroWinkler()

// TokenSetRatio scores the similarity of a and b in [0, 100], invariant to
// token order and duplicates. It normalizes and tokenizes both strings,
// then compares the sorted intersection against each side's sorted full
// token set, taking the best of the three comparisons — the same shape as
// the fuzzywuzzy/rapidfuzz token_set_ratio algorithm.
func TokenSetRatio(a, b string) int {
	tokensA := uniqueSorted(normalize.Tokenize(a))
	tokensB := uniqueSorted(normalize.Tokenize(b))

	if len(tokensA) == 0 && len(tokensB) == 0 {
		return 100
	}
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0
	}

	intersection := intersect(tokensA, tokensB)

	sortedIntersection := strings.Join(intersection, " ")
	sortedA := strings.Join(tokensA, " ")
	sortedB := strings.Join(tokensB, " ")

	best := 0.0
	for _, pair := range [][2]string{
		{sortedIntersection, sortedA},
		{sortedIntersection, sortedB},
		{sortedA, sortedB},
	} {
		if pair[0] == "" && pair[1] == "" {
			continue
		}
		score := strutil.Similarity(pair[0], pair[1], jaroWinkler)
		if score > best {
			best = score
		}
	}

	return int(best*100 + 0.5)
}

func uniqueSorted(tokens []string) []string {
	seen := make(map[string]bool, len(tokens))
	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		if !seen[t] {
			seen[t] = true
			out = append(out, t)
		}
	}
	sort.Strings(out)
	return out
}

func intersect(a, b []string) []string {
	bSet := make(map[string]bool, len(b))
	for _, t := range b {
		bSet[t] = true
	}
	out := make([]string, 0, len(a))
	for _, t := range a {
		if bSet[t] {
			out = append(out, t)
		}
	}
	return out
}
