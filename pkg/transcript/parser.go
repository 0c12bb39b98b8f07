package transcript

import (
	"regexp"
	"strings"
)

// Speaker identifies which side of the call produced a turn.
type Speaker string

const (
	SpeakerAgent    Speaker = "agent"
	SpeakerCustomer Speaker = "customer"
)

// IsAgent reports whether s is the bot/agent side.
func (s Speaker) IsAgent() bool { return s == SpeakerAgent }

// IsCustomer reports whether s is the caller side.
func (s Speaker) IsCustomer() bool { return s == SpeakerCustomer }

// Turn is one speaker-tagged utterance of a transcript.
type Turn struct {
	Index   int     `json:"index"`
	Speaker Speaker `json:"speaker"`
	Text    string  `json:"text"`
}

// IsAgent reports whether the bot/agent side produced the turn.
func (t Turn) IsAgent() bool {
	return t.Speaker.IsAgent()
}

// IsCustomer reports whether the caller side produced the turn.
func (t Turn) IsCustomer() bool {
	return t.Speaker.IsCustomer()
}

var (
	agentPrefix    = regexp.MustCompile(`(?i)^(Chat Bot|Bot|Agent|Support|Assistant):`)
	customerPrefix = regexp.MustCompile(`(?i)^(Human|User|Customer|Client|Caller):`)
	agentKeywords  = regexp.MustCompile(`(?i)bot|agent`)
)

// Parse splits a raw transcript into ordered turns.
//
// Lines starting with a known agent or customer label are attributed directly.
// Any other line containing a colon is attributed by its label: labels mentioning
// "bot" or "agent" belong to the agent, everything else to the customer. Lines
// without a colon and lines whose text is empty are dropped.
func Parse(raw string) []Turn {
	turns := make([]Turn, 0, 16)
	if strings.TrimSpace(raw) == "" {
		return turns
	}

	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		colon := strings.Index(line, ":")
		if colon == -1 {
			continue
		}

		var speaker Speaker
		switch {
		case agentPrefix.MatchString(line):
			speaker = SpeakerAgent
		case customerPrefix.MatchString(line):
			speaker = SpeakerCustomer
		case agentKeywords.MatchString(line[:colon]):
			speaker = SpeakerAgent
		default:
			speaker = SpeakerCustomer
		}

		text := strings.TrimSpace(line[colon+1:])
		if text == "" {
			continue
		}

		turns = append(turns, Turn{
			Index:   len(turns),
			Speaker: speaker,
			Text:    text,
		})
	}

	return turns
}

// CountBySpeaker returns the number of turns produced by the given speaker.
func CountBySpeaker(turns []Turn, speaker Speaker) int {
	n := 0
	for _, t := range turns {
		if t.Speaker == speaker {
			n++
		}
	}
	return n
}
