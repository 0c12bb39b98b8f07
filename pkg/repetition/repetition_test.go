package repetition

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/transcript"
)

func newTestDetector(mode Mode) *Detector {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewDetector(logger, mode, 0.8)
}

func detect(mode Mode, raw string) []Repetition {
	return newTestDetector(mode).Detect(transcript.Parse(raw))
}

func TestIdenticalConsecutiveBotLines(t *testing.T) {
	reps := detect(ModeExact, "Chat Bot: Hello\nChat Bot: Hello")

	require.Len(t, reps, 1)
	assert.Equal(t, TypeSingleLine, reps[0].Type)
	assert.Equal(t, 10.0, reps[0].Severity)
	assert.Equal(t, 1.0, reps[0].SimilarityScore)
	assert.True(t, reps[0].IsProblematicRepetition)
	assert.Equal(t, 1, reps[0].Turn1)
	assert.Equal(t, 2, reps[0].Turn2)
}

func TestCustomerTurnBreaksRepetition(t *testing.T) {
	reps := detect(ModeExact, "Chat Bot: Hello\nHuman: hi\nChat Bot: Hello")
	assert.Empty(t, reps)
}

func TestComparisonIgnoresCaseAndPunctuation(t *testing.T) {
	reps := detect(ModeExact, "Chat Bot: Hello, Sir!\nChat Bot: hello sir")
	assert.Len(t, reps, 1)
}

func TestShortBotLinesAreIgnored(t *testing.T) {
	reps := detect(ModeExact, "Chat Bot: Okay\nChat Bot: Okay")
	assert.Empty(t, reps)
}

func TestDevanagariLinesDoNotCollide(t *testing.T) {
	reps := detect(ModeExact, "Chat Bot: नमस्ते जी, कैसे हैं\nChat Bot: धन्यवाद जी, फिर मिलेंगे")
	assert.Empty(t, reps)
}

func TestBlockRepetition(t *testing.T) {
	raw := "Chat Bot: आपका बजट क्या है?\n" +
		"Chat Bot: कौन सा शहर?\n" +
		"Chat Bot: आपका बजट क्या है?\n" +
		"Chat Bot: कौन सा शहर?"

	reps := detect(ModeExact, raw)

	require.Len(t, reps, 1)
	rep := reps[0]
	assert.Equal(t, TypeBlock, rep.Type)
	assert.Equal(t, 2, rep.BlockSize)
	assert.Equal(t, "आपका बजट क्या है? | कौन सा शहर?", rep.Text1)
	assert.Equal(t, rep.FirstBlock, rep.SecondBlock)
	assert.Equal(t, 3, rep.Turn2)
	assert.Equal(t, "Remove 2-line block repetition - bot is repeating entire conversation blocks", rep.Recommendation)
}

func TestBlockRepetitionReportsFirstPairPerSize(t *testing.T) {
	raw := "Chat Bot: first line\nChat Bot: second line\n" +
		"Chat Bot: first line\nChat Bot: second line\n" +
		"Human: what?\n" +
		"Chat Bot: third line\nChat Bot: fourth line\n" +
		"Chat Bot: third line\nChat Bot: fourth line"

	var blocks []Repetition
	for _, r := range detect(ModeExact, raw) {
		if r.Type == TypeBlock {
			blocks = append(blocks, r)
		}
	}
	require.Len(t, blocks, 1)
	assert.Equal(t, "first line | second line", blocks[0].Text1)
	assert.Equal(t, 1, blocks[0].Turn1)
}

func TestHumanBetweenBlocksBreaksRepetition(t *testing.T) {
	raw := "Chat Bot: first line\nChat Bot: second line\n" +
		"Human: sorry?\n" +
		"Chat Bot: first line\nChat Bot: second line"
	assert.Empty(t, detect(ModeExact, raw))
}

func TestExactModeIgnoresNearDuplicates(t *testing.T) {
	raw := "Chat Bot: आपका budget पचास लाख है\nChat Bot: आपका budget पचास लाख है ना"
	assert.Empty(t, detect(ModeExact, raw))
}

func TestFuzzyModeFlagsNearDuplicates(t *testing.T) {
	raw := "Chat Bot: आपका budget पचास लाख है\nChat Bot: आपका budget पचास लाख है ना"

	reps := detect(ModeFuzzy, raw)

	require.Len(t, reps, 1)
	rep := reps[0]
	assert.Equal(t, TypeFuzzy, rep.Type)
	assert.Equal(t, KindSemantic, rep.RepetitionType)
	assert.InDelta(t, 0.92, rep.SimilarityScore, 0.001)
	assert.Greater(t, rep.Severity, 5.0)
	assert.True(t, rep.ActionRequired)
	require.NotNil(t, rep.Similarity)
	assert.InDelta(t, 5.0/6.0, rep.Similarity.Lexical, 1e-9)
}

func TestFuzzyModeRespectsJustification(t *testing.T) {
	// confirmations and greetings are allowed to repeat
	raw := "Chat Bot: नमस्ते, क्या यह सही है\nChat Bot: नमस्ते, क्या यह सही है ना"
	assert.Empty(t, detect(ModeFuzzy, raw))
}

func TestUnknownModeFallsBackToExact(t *testing.T) {
	assert.Equal(t, ModeExact, newTestDetector("loose").Mode())
}

func TestCompareIdenticalText(t *testing.T) {
	s := Compare("Please hold the line.", "Please hold the line.")
	assert.InDelta(t, 1.0, s.Lexical, 1e-9)
	assert.InDelta(t, 1.0, s.Structural, 1e-9)
	assert.InDelta(t, 1.0, s.NGram, 1e-9)
	assert.Equal(t, KindExact, Classify(s))
}

func TestSeverityDecaysWithDistance(t *testing.T) {
	assert.InDelta(t, 9.5, Severity(1, 1), 1e-9)
	assert.InDelta(t, 1.0, Severity(1, 40), 1e-9)
	assert.Less(t, Severity(0.9, 10), Severity(0.9, 2))
}

func TestRecommendationPriorityTag(t *testing.T) {
	assert.Equal(t, "Low: Minor repetition detected. Monitor for patterns. [LOW PRIORITY]", Recommendation(KindPartial, 3))
	assert.Contains(t, Recommendation(KindExact, 9), "[HIGH PRIORITY]")
	assert.Contains(t, Recommendation("unknown", 5), "[MEDIUM PRIORITY]")
}
