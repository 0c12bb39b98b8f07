package repetition

import (
	"math"
	"strings"

	"callqa-server/pkg/textutil"
)

// Similarity breaks the resemblance of two bot utterances into its parts.
type Similarity struct {
	Lexical    float64 `json:"lexicalSimilarity"`
	Semantic   float64 `json:"semanticSimilarity"`
	Structural float64 `json:"structuralSimilarity"`
	NGram      float64 `json:"ngramSimilarity"`
	Overall    float64 `json:"overallSimilarity"`
}

// Compare scores two texts. Overall is .4 lexical, .4 semantic, .2 structural;
// the n-gram overlap is reported but not blended.
func Compare(a, b string) Similarity {
	s := Similarity{
		Lexical:    Lexical(a, b),
		Semantic:   Semantic(a, b),
		Structural: Structural(a, b),
		NGram:      NGram(a, b),
	}
	s.Overall = s.Lexical*0.4 + s.Semantic*0.4 + s.Structural*0.2
	return s
}

// Lexical is one minus the word-level edit distance over the longer word count.
func Lexical(a, b string) float64 {
	return textutil.SequenceSimilarity(strings.Fields(strings.ToLower(a)), strings.Fields(strings.ToLower(b)))
}

// Semantic blends keyword overlap (.7) with agreement of the coarse
// utterance kind (.3).
func Semantic(a, b string) float64 {
	jaccard := textutil.Jaccard(textutil.Keywords(a), textutil.Keywords(b))
	kind := 0.0
	if utteranceKind(a) == utteranceKind(b) {
		kind = 1
	}
	return jaccard*0.7 + kind*0.3
}

// Structural compares word counts, question form and punctuation.
func Structural(a, b string) float64 {
	ca, cb := textutil.WordCount(a), textutil.WordCount(b)
	length := 1.0
	if m := max(ca, cb); m > 0 {
		length = 1 - math.Abs(float64(ca-cb))/float64(m)
	}

	form := 0.5
	if strings.Contains(a, "?") == strings.Contains(b, "?") {
		form = 1
	}

	return length*0.4 + form*0.3 + punctuationSimilarity(a, b)*0.3
}

// NGram is the weighted overlap of word bigrams (.6) and trigrams (.4).
func NGram(a, b string) float64 {
	return setSimilarity(ngrams(a, 2), ngrams(b, 2))*0.6 +
		setSimilarity(ngrams(a, 3), ngrams(b, 3))*0.4
}

func utteranceKind(text string) string {
	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "?"):
		return "question"
	case textutil.ContainsAny(lower, "please", "can you"):
		return "request"
	case strings.Contains(lower, "thank"):
		return "gratitude"
	case textutil.ContainsAny(lower, "sorry", "apologize"):
		return "apology"
	}
	return "statement"
}

func punctuationMarks(text string) []rune {
	var out []rune
	for _, r := range text {
		if strings.ContainsRune(".,!?;:", r) {
			out = append(out, r)
		}
	}
	return out
}

func punctuationSimilarity(a, b string) float64 {
	pa, pb := punctuationMarks(a), punctuationMarks(b)
	switch {
	case len(pa) == 0 && len(pb) == 0:
		return 1
	case len(pa) == 0 || len(pb) == 0:
		return 0
	}
	return textutil.SequenceSimilarity(pa, pb)
}

func ngrams(text string, n int) []string {
	words := strings.Fields(strings.ToLower(text))
	var out []string
	for i := 0; i+n <= len(words); i++ {
		out = append(out, strings.Join(words[i:i+n], " "))
	}
	return out
}

func setSimilarity(a, b []string) float64 {
	switch {
	case len(a) == 0 && len(b) == 0:
		return 1
	case len(a) == 0 || len(b) == 0:
		return 0
	}
	return textutil.Jaccard(a, b)
}
