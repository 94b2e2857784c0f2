package metacache

import "strings"

// trigramSimilarity approximates PostgreSQL's pg_trgm similarity()
// function without the extension: pad each string with boundary markers,
// extract the set of three-character trigrams, and score by Jaccard
// overlap. trigramThreshold mirrors pg_trgm's own default minimum for its
// `%` fuzzy-match operator.
const trigramThreshold = 0.3

func trigrams(s string) map[string]struct{} {
	padded := "  " + strings.ToLower(strings.TrimSpace(s)) + " "
	set := make(map[string]struct{})
	runes := []rune(padded)
	for i := 0; i+3 <= len(runes); i++ {
		set[string(runes[i:i+3])] = struct{}{}
	}
	return set
}

// trigramSimilarity returns a score in [0, 1].
func trigramSimilarity(a, b string) float64 {
	ta, tb := trigrams(a), trigrams(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}
	common := 0
	for t := range ta {
		if _, ok := tb[t]; ok {
			common++
		}
	}
	union := len(ta) + len(tb) - common
	if union == 0 {
		return 0
	}
	return float64(common) / float64(union)
}
