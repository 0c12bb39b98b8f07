package intent

import (
	"math"
	"strings"

	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

const (
	confidenceCap       = 0.95
	partialMatchCap     = 0.85
	defaultConfidence   = 0.2
	detectedFloor       = 0.5
	mappingTextMaxRunes = 100
	defaultIntentLabel  = "General conversation"
)

// Mapping is the classification of one turn.
type Mapping struct {
	TurnNumber       int                `json:"turnNumber"`
	Speaker          transcript.Speaker `json:"speaker"`
	Text             string             `json:"text"`
	DetectedIntent   string             `json:"detectedIntent"`
	Confidence       float64            `json:"confidence"`
	ConversationStep string             `json:"conversationStep"`
	StepNumber       int                `json:"stepNumber"`
}

// Match is the best catalog entry for one turn before display formatting.
type Match struct {
	Intent     string
	Step       string
	Confidence float64
	StepNumber int
}

var (
	// critical intents get the large match boost and the agent boost
	criticalIntents = map[string]bool{
		KeyGreeting:      true,
		KeyInterestCheck: true,
		KeyAgentOffer:    true,
		KeyCallTransfer:  true,
	}

	// agent-delivered script steps that get a final boost
	scriptedAgentIntents = map[string]bool{
		KeyInterestCheck: true,
		KeyAgentOffer:    true,
		KeyCallTransfer:  true,
	}
)

// phraseBoosts are literal script phrases that raise confidence for an intent.
var phraseBoosts = []struct {
	key     string
	phrases []string
	boost   float64
}{
	{KeyGreeting, []string{"Magicbricks"}, 0.2},
	{KeyInterestCheck, []string{"search कर रहे हैं", "क्या यह सही है"}, 0.25},
	{KeyAgentOffer, []string{"agents shortlist"}, 0.25},
	{KeyCallTransfer, []string{"connect करती हूँ", "लाइन पर बने रहिए"}, 0.3},
}

// Classify picks the best catalog entry for one turn.
func (c *Catalog) Classify(turn transcript.Turn) Match {
	best := Match{
		Intent:     defaultIntentLabel,
		Step:       KeyUnknown,
		Confidence: defaultConfidence,
	}

	for _, e := range c.entries {
		matched := textutil.CountMatches(e.patterns, turn.Text)
		confidence := float64(matched) / float64(len(e.patterns))

		if matched > 0 {
			switch {
			case criticalIntents[e.Key]:
				confidence = math.Min(confidenceCap, confidence+0.3)
			case matched == len(e.patterns):
				confidence = math.Min(confidenceCap, confidence+0.2)
			default:
				confidence = math.Min(partialMatchCap, confidence+0.15)
			}
		}

		confidence = adjustConfidence(confidence, e.Key, turn)

		if confidence > best.Confidence {
			best = Match{
				Intent:     e.Description,
				Step:       e.Key,
				Confidence: confidence,
				StepNumber: e.StepNumber,
			}
		}
	}

	if turn.IsAgent() && scriptedAgentIntents[best.Step] {
		best.Confidence = math.Min(confidenceCap, best.Confidence+0.15)
	}
	if best.Step != KeyUnknown {
		best.Confidence = math.Max(detectedFloor, best.Confidence)
	}
	return best
}

func adjustConfidence(confidence float64, key string, turn transcript.Turn) float64 {
	for _, pb := range phraseBoosts {
		if pb.key == key && textutil.ContainsAny(turn.Text, pb.phrases...) {
			confidence = math.Min(confidenceCap, confidence+pb.boost)
		}
	}

	if turn.IsAgent() && criticalIntents[key] {
		confidence = math.Min(confidenceCap, confidence+0.1)
	}

	if turn.Index > 0 {
		confidence = math.Min(confidenceCap, confidence+sequenceBonus(key, turn.Index))
	}
	return confidence
}

// sequenceBonus rewards critical intents that show up where the script puts them.
func sequenceBonus(key string, turnIndex int) float64 {
	switch key {
	case KeyGreeting:
		if turnIndex < 3 {
			return 0.1
		}
	case KeyInterestCheck:
		if turnIndex > 2 && turnIndex < 8 {
			return 0.15
		}
	case KeyAgentOffer:
		if turnIndex > 5 && turnIndex < 12 {
			return 0.15
		}
	case KeyCallTransfer:
		if turnIndex > 8 {
			return 0.2
		}
	}
	return 0
}

// conversationText joins the lower-cased mapping texts for substring triggers.
func conversationText(mappings []Mapping) string {
	parts := make([]string, len(mappings))
	for i, m := range mappings {
		parts[i] = strings.ToLower(m.Text)
	}
	return strings.Join(parts, " ")
}
