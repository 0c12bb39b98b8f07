package textutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevenshtein(t *testing.T) {
	assert.Equal(t, 3, Levenshtein([]rune("kitten"), []rune("sitting")))
	assert.Equal(t, 4, Levenshtein([]rune(""), []rune("flat")))
	assert.Equal(t, 1, Levenshtein([]string{"2", "bhk", "flat"}, []string{"3", "bhk", "flat"}))

	assert.InDelta(t, 4.0/7.0, EditSimilarity("kitten", "sitting"), 1e-9)
	assert.Equal(t, 1.0, EditSimilarity("", ""))
}

func TestWordPatternRespectsScriptBoundaries(t *testing.T) {
	bhk := MustWordPattern("bhk")
	assert.True(t, bhk.MatchString("2 BHK flat"))
	assert.False(t, bhk.MatchString("bhks"))

	namaste := MustWordPattern("नमस्ते")
	assert.True(t, namaste.MatchString("नमस्ते जी"))
	assert.False(t, namaste.MatchString("नमस्तेजी"))

	_, err := WordPattern("(")
	require.Error(t, err)
	assert.Panics(t, func() { MustWordPattern("(") })
}

func TestPatternHelpers(t *testing.T) {
	patterns := MustPatterns("budget", "lakh")
	assert.True(t, AnyMatch(patterns, "My BUDGET is fifty"))
	assert.Equal(t, 2, CountMatches(patterns, "budget of 50 lakh"))
	assert.Equal(t, 0, CountMatches(patterns, "hello"))
	assert.True(t, ContainsAny("please hold", "wait", "hold"))
}

func TestNormalizeAndWords(t *testing.T) {
	assert.Equal(t, "hello world ok", Normalize("Hello, World!!  OK"))
	assert.Equal(t, "नमस्ते आप", Normalize("नमस्ते, आप?"))
	assert.Equal(t, []string{"hello", "world"}, Words("hello... world"))
	assert.Equal(t, 3, WordCount("  a b  c "))
}

func TestKeywordsAndJaccard(t *testing.T) {
	assert.Equal(t, []string{"flat", "city"}, Keywords("The flat in the city, the flat"))
	assert.InDelta(t, 1.0/3.0, Jaccard([]string{"a", "b"}, []string{"b", "c", "c"}), 1e-9)
	assert.Equal(t, 0.0, Jaccard(nil, nil))
}

func TestNumberHelpers(t *testing.T) {
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "ab", Truncate("ab", 3))
	assert.Equal(t, 2.3, Round(2.25, 1))
	assert.Equal(t, 1.0, Clamp(5, 0, 1))
	assert.Equal(t, 0.0, Clamp(-1, 0, 1))
}
