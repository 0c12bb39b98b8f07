package transcript

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKnownPrefixes(t *testing.T) {
	raw := "Chat Bot: Hello there\nHuman: Hi\nAgent: How can I help\nCustomer: Property search\nassistant: lowercase label\ncaller: me again"

	turns := Parse(raw)
	require.Len(t, turns, 6)

	expected := []Speaker{SpeakerAgent, SpeakerCustomer, SpeakerAgent, SpeakerCustomer, SpeakerAgent, SpeakerCustomer}
	for i, turn := range turns {
		assert.Equal(t, i, turn.Index)
		assert.Equal(t, expected[i], turn.Speaker, "turn %d", i)
	}
	assert.Equal(t, "Hello there", turns[0].Text)
	assert.Equal(t, "lowercase label", turns[4].Text)
}

func TestParseGenericLabels(t *testing.T) {
	turns := Parse("VoiceBot 2: नमस्ते\nRahul: हाँ बोलिए\nSales Agent: ठीक है")
	require.Len(t, turns, 3)
	assert.Equal(t, SpeakerAgent, turns[0].Speaker)
	assert.Equal(t, SpeakerCustomer, turns[1].Speaker)
	assert.Equal(t, SpeakerAgent, turns[2].Speaker)
	assert.Equal(t, "हाँ बोलिए", turns[1].Text)
}

func TestParseKeepsTextAfterFirstColon(t *testing.T) {
	turns := Parse("Bot: call me at 10:30: okay")
	require.Len(t, turns, 1)
	assert.Equal(t, "call me at 10:30: okay", turns[0].Text)
}

func TestParseDropsUnlabelledAndEmptyLines(t *testing.T) {
	raw := "\n   \nno colon here\nChat Bot:   \nHuman:\nBot: kept\n"
	turns := Parse(raw)
	require.Len(t, turns, 1)
	assert.Equal(t, "kept", turns[0].Text)
	assert.Equal(t, 0, turns[0].Index)
}

func TestParseInvalidInput(t *testing.T) {
	assert.Empty(t, Parse(""))
	assert.Empty(t, Parse("just some words\nand more words"))
	assert.NotNil(t, Parse(""))
}

func TestParseNeverReturnsEmptyText(t *testing.T) {
	inputs := []string{
		"Bot: a\nHuman: \nBot:  b ",
		"x:y\n:\n::\nHuman::",
		"Agent: one\r\nHuman: two\r\n",
	}
	for _, in := range inputs {
		for _, turn := range Parse(in) {
			assert.NotEmpty(t, turn.Text, "input %q", in)
		}
	}
}

func TestCountBySpeaker(t *testing.T) {
	turns := Parse("Bot: a\nHuman: b\nBot: c")
	assert.Equal(t, 2, CountBySpeaker(turns, SpeakerAgent))
	assert.Equal(t, 1, CountBySpeaker(turns, SpeakerCustomer))
}

func TestParseSample(t *testing.T) {
	turns := Parse(Sample)
	require.Len(t, turns, 12)
	assert.Equal(t, 8, CountBySpeaker(turns, SpeakerAgent))
	assert.True(t, turns[11].IsAgent())
	assert.Equal(t, "Hello.", turns[1].Text)

	def := Parse(DefaultTranscript)
	require.Len(t, def, 2)
	assert.Equal(t, SpeakerCustomer, def[1].Speaker)
}
