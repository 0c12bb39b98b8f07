// Package textutil holds the text helpers shared by the transcript analysers:
// word-bounded pattern compilation that works for Devanagari as well as Latin
// script, normalisation and keyword extraction.
package textutil

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"unicode"
)

// Letters, combining marks (Devanagari matras), digits and underscore.
const wordClass = `\p{L}\p{M}\p{N}_`

// WordPattern compiles expr case-insensitively, requiring a non-word character
// or the text edge on both sides of the match.
func WordPattern(expr string) (*regexp.Regexp, error) {
	re, err := regexp.Compile(`(?i)(?:^|[^` + wordClass + `])(?:` + expr + `)(?:[^` + wordClass + `]|$)`)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w", expr, err)
	}
	return re, nil
}

// MustWordPattern is WordPattern for package-level tables that are known good.
func MustWordPattern(expr string) *regexp.Regexp {
	re, err := WordPattern(expr)
	if err != nil {
		panic(err)
	}
	return re
}

// MustWordPatterns compiles every expression with MustWordPattern.
func MustWordPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = MustWordPattern(expr)
	}
	return out
}

// MustPatterns compiles case-insensitive patterns without word anchoring.
func MustPatterns(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, len(exprs))
	for i, expr := range exprs {
		out[i] = regexp.MustCompile(`(?i)` + expr)
	}
	return out
}

// AnyMatch reports whether any pattern matches text.
func AnyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}

// CountMatches returns how many patterns match text at least once.
func CountMatches(patterns []*regexp.Regexp, text string) int {
	n := 0
	for _, p := range patterns {
		if p.MatchString(text) {
			n++
		}
	}
	return n
}

// ContainsAny reports whether text contains any of the substrings.
func ContainsAny(text string, subs ...string) bool {
	for _, s := range subs {
		if strings.Contains(text, s) {
			return true
		}
	}
	return false
}

// Normalize lower-cases text, replaces punctuation with spaces and collapses
// whitespace. Letters and marks of every script survive.
func Normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range strings.ToLower(text) {
		switch {
		case unicode.IsLetter(r), unicode.IsMark(r), unicode.IsDigit(r):
			b.WriteRune(r)
		default:
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Words splits text into normalised words.
func Words(text string) []string {
	return strings.Fields(Normalize(text))
}

// WordCount counts whitespace separated tokens of the raw text.
func WordCount(text string) int {
	return len(strings.Fields(text))
}

var stopWords = map[string]struct{}{
	"the": {}, "a": {}, "an": {}, "and": {}, "or": {}, "but": {}, "in": {}, "on": {}, "at": {},
	"to": {}, "for": {}, "of": {}, "with": {}, "by": {},
	"है": {}, "हैं": {}, "का": {}, "की": {}, "के": {}, "में": {}, "से": {}, "को": {}, "और": {},
	"या": {}, "पर": {}, "लिए": {},
}

// Keywords returns the distinct normalised words of text longer than two
// runes that are not stop words, in order of first appearance.
func Keywords(text string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range Words(text) {
		if len([]rune(w)) <= 2 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		out = append(out, w)
	}
	return out
}

// Jaccard returns |a∩b| / |a∪b| over two word sets, 0 when both are empty.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	set := make(map[string]struct{}, len(a))
	for _, w := range a {
		set[w] = struct{}{}
	}
	inter := 0
	union := len(set)
	seenB := make(map[string]struct{}, len(b))
	for _, w := range b {
		if _, dup := seenB[w]; dup {
			continue
		}
		seenB[w] = struct{}{}
		if _, ok := set[w]; ok {
			inter++
		} else {
			union++
		}
	}
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

// Truncate cuts s to n runes, appending "..." when anything was removed.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

// Round rounds v to the given number of decimal places, halves upward.
func Round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Floor(v*p+0.5) / p
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}
