// Package normalize canonicalizes strings for comparison across the
// lookup pipeline: diacritics folding, casing, whitespace, tokenization,
// and stopword filtering.
package normalize

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Stopwords dropped when extracting significant tokens: common function
// words plus search-noise terms like "remix" and "featuring".
var Stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "in": true,
	"and": true, "with": true, "from": true, "of": true,
	"that": true, "this": true,
	"play": true, "song": true, "remix": true,
	"story": true, "records": true,
	"feat": true, "featuring": true,
}

var whitespaceRun = regexp.MustCompile(`\s+`)
var stripDiacritics = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// atomicLetterFold maps letterforms NFD decomposition doesn't touch —
// they have no combining-mark decomposition, so stripDiacritics alone
// leaves them untouched (e.g. "ø" stays "ø", not "o").
var atomicLetterFold = strings.NewReplacer(
	"ø", "o", "Ø", "O",
	"đ", "d", "Đ", "D",
	"ł", "l", "Ł", "L",
	"æ", "ae", "Æ", "AE",
	"œ", "oe", "Œ", "OE",
	"ß", "ss",
	"þ", "th", "Þ", "Th",
	"ð", "d", "Ð", "D",
)

// Normalize decomposes s into base characters plus combining marks, drops
// the combining marks, folds atomic letterforms with no combining-mark
// decomposition, lowercases, and collapses whitespace runs. It is
// idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(s string) string {
	folded, _, err := transform.String(stripDiacritics, atomicLetterFold.Replace(s))
	if err != nil {
		folded = s
	}
	folded = strings.ToLower(folded)
	folded = whitespaceRun.ReplaceAllString(folded, " ")
	return strings.TrimSpace(folded)
}

var tokenSplitter = regexp.MustCompile(`[^\p{L}\p{N}]+`)

// Tokenize splits s on whitespace and punctuation, drops tokens shorter
// than 2 runes, and drops stopwords. The input is normalized first.
func Tokenize(s string) []string {
	normalized := Normalize(s)
	rawTokens := tokenSplitter.Split(normalized, -1)

	tokens := make([]string, 0, len(rawTokens))
	for _, t := range rawTokens {
		if len([]rune(t)) < 2 {
			continue
		}
		if Stopwords[t] {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// dashPattern matches "X - Y" and variants with an em/en-dash separator,
// requiring at least one space on either side so hyphenated words like
// "hip-hop" don't split.
var dashPattern = regexp.MustCompile(`^(.+?)\s+[-\x{2013}\x{2014}]\s+(.+)$`)

// DetectAmbiguousFormat returns the two sides of an "X - Y" pattern iff a
// single separator splits the message into two non-empty parts, each
// containing at least one non-stopword token. The split is made at the
// first " - " (or en/em dash) separator; when that split does not
// qualify, the first ". " in the message is tried under the same rule.
func DetectAmbiguousFormat(raw string) (string, string, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", "", false
	}

	if m := dashPattern.FindStringSubmatch(raw); m != nil {
		part1, part2 := strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
		if part1 != "" && part2 != "" && hasSignificantToken(part1) && hasSignificantToken(part2) {
			return part1, part2, true
		}
	}

	if idx := strings.Index(raw, ". "); idx > 0 {
		part1, part2 := strings.TrimSpace(raw[:idx]), strings.TrimSpace(raw[idx+2:])
		if part1 != "" && part2 != "" && hasSignificantToken(part1) && hasSignificantToken(part2) {
			return part1, part2, true
		}
	}

	return "", "", false
}

func hasSignificantToken(s string) bool {
	return len(Tokenize(s)) > 0
}
