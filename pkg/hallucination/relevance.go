package hallucination

import (
	"regexp"
	"strings"

	"callqa-server/pkg/dialogue"
	"callqa-server/pkg/textutil"
)

// Hallucination types, most specific first.
const (
	TypeNone               = "none"
	TypeScriptDeviation    = "script_deviation"
	TypeImproperObjection  = "improper_objection_handling"
	TypeTopicDeviation     = "topic_deviation"
	TypeContextLoss        = "context_loss"
	TypeSemanticConfusion  = "semantic_confusion"
	TypeFactualError       = "factual_error"
	TypeGeneralIrrelevance = "general_irrelevance"
)

const (
	relevanceFloor       = 0.65
	audioRelevanceFloor  = 0.6
	scriptAdherenceFloor = 0.5
)

var typeRecommendations = map[string]string{
	TypeScriptDeviation:    "CRITICAL: Bot deviated from MagicBricks script. Review script adherence and training.",
	TypeImproperObjection:  "HIGH: Bot failed to handle customer objection properly. Review FAQ responses.",
	TypeTopicDeviation:     "CRITICAL: Bot completely off-topic from property search. Review intent recognition.",
	TypeContextLoss:        "HIGH: Bot lost conversational context. Improve context retention mechanisms.",
	TypeSemanticConfusion:  "MEDIUM: Bot response semantically unclear. Review response generation logic.",
	TypeFactualError:       "CRITICAL: Factual inconsistencies detected. Verify knowledge base and fact-checking.",
	TypeGeneralIrrelevance: "MEDIUM: Response not relevant to user input. Improve relevance scoring.",
	TypeNone:               "Response relevance within acceptable range.",
}

// Relevance is the per-dimension judgement of one bot reply.
type Relevance struct {
	Topic             float64 `json:"topicRelevance"`
	Contextual        float64 `json:"contextualRelevance"`
	Coherence         float64 `json:"semanticCoherence"`
	Factual           float64 `json:"factualConsistency"`
	ScriptAdherence   float64 `json:"scriptAdherence"`
	ObjectionHandling float64 `json:"objectionHandling"`
	Score             float64 `json:"relevanceScore"`
	IsHallucination   bool    `json:"isHallucination"`
	Type              string  `json:"type"`
	Severity          int     `json:"severity"`
}

// AnalyzeRelevance judges a bot reply against the customer line before it.
// Weights: topic .25, context .25, coherence .2, facts .15, script .1,
// objection handling .05.
func AnalyzeRelevance(humanInput, botResponse string, turnIndex int) Relevance {
	r := Relevance{
		Topic:             dialogue.TopicRelevance(humanInput, botResponse),
		Contextual:        contextualRelevance(humanInput, botResponse),
		Coherence:         semanticCoherence(humanInput, botResponse),
		Factual:           factualConsistency(botResponse),
		ScriptAdherence:   ScriptAdherence(botResponse, turnIndex),
		ObjectionHandling: ObjectionHandling(humanInput, botResponse),
	}
	r.Score = r.Topic*0.25 + r.Contextual*0.25 + r.Coherence*0.2 +
		r.Factual*0.15 + r.ScriptAdherence*0.1 + r.ObjectionHandling*0.05
	r.IsHallucination = r.Score < relevanceFloor || r.ScriptAdherence < scriptAdherenceFloor
	r.classify(humanInput)
	return r
}

func (r *Relevance) classify(humanInput string) {
	if !r.IsHallucination {
		r.Type, r.Severity = TypeNone, 0
		return
	}
	switch {
	case r.ScriptAdherence < 0.3:
		r.Type, r.Severity = TypeScriptDeviation, 9
	case r.ObjectionHandling < 0.4 && IsObjection(humanInput):
		r.Type, r.Severity = TypeImproperObjection, 8
	case r.Topic < 0.3:
		r.Type, r.Severity = TypeTopicDeviation, 8
	case r.Contextual < 0.4:
		r.Type, r.Severity = TypeContextLoss, 7
	case r.Coherence < 0.5:
		r.Type, r.Severity = TypeSemanticConfusion, 6
	case r.Factual < 0.5:
		r.Type, r.Severity = TypeFactualError, 9
	default:
		r.Type, r.Severity = TypeGeneralIrrelevance, 5
	}
}

// Recommendation returns the advice for a hallucination type with an
// urgency tag.
func Recommendation(kind string, severity int) string {
	rec, ok := typeRecommendations[kind]
	if !ok {
		rec = "Monitor response relevance."
	}
	switch {
	case severity > 7:
		return rec + " [URGENT]"
	case severity > 5:
		return rec + " [HIGH PRIORITY]"
	}
	return rec + " [MONITOR]"
}

func contextualRelevance(humanInput, botResponse string) float64 {
	flow := 0.8
	humanWords, botWords := textutil.WordCount(humanInput), textutil.WordCount(botResponse)
	switch {
	case humanWords > 10 && botWords < 3:
		flow = 0.4
	case humanWords < 5 && botWords > 50:
		flow = 0.6
	}
	return dialogue.ResponseAlignment(humanInput, botResponse)*0.6 + flow*0.4
}

var (
	positiveWords = []string{"good", "great", "excellent", "happy", "pleased", "thank", "wonderful", "perfect"}
	negativeWords = []string{"bad", "terrible", "awful", "angry", "frustrated", "disappointed", "wrong", "problem"}
)

func sentiment(text string) string {
	lower := strings.ToLower(text)
	var pos, neg int
	for _, w := range positiveWords {
		if strings.Contains(lower, w) {
			pos++
		}
	}
	for _, w := range negativeWords {
		if strings.Contains(lower, w) {
			neg++
		}
	}
	switch {
	case pos > neg:
		return "positive"
	case neg > pos:
		return "negative"
	}
	return "neutral"
}

func semanticCoherence(humanInput, botResponse string) float64 {
	align := 0.8
	human, bot := sentiment(humanInput), sentiment(botResponse)
	switch {
	case human == "negative" && bot == "positive":
		align = 0.9
	case human == "positive" && bot == "negative":
		align = 0.3
	}

	logic := 0.8
	if strings.Contains(humanInput, "?") {
		switch {
		case !strings.Contains(botResponse, "?") && len([]rune(botResponse)) > 10:
			logic = 0.9
		case strings.Contains(botResponse, "?"):
			logic = 0.6
		}
	}
	return align*0.4 + logic*0.6
}

var (
	sentenceSplit  = regexp.MustCompile(`[.!?]+`)
	contradictions = [][2]*regexp.Regexp{
		{textutil.MustWordPattern(`yes`), textutil.MustWordPattern(`no`)},
		{textutil.MustWordPattern(`can`), textutil.MustWordPattern(`cannot|can't`)},
		{textutil.MustWordPattern(`will`), textutil.MustWordPattern(`won't|will\s+not`)},
	}
)

// factualConsistency looks for a sentence asserting what another denies.
func factualConsistency(botResponse string) float64 {
	var sentences []string
	for _, s := range sentenceSplit.Split(botResponse, -1) {
		if strings.TrimSpace(s) != "" {
			sentences = append(sentences, s)
		}
	}
	if len(sentences) < 2 {
		return 0.9
	}

	for _, pair := range contradictions {
		var pos, neg bool
		for _, s := range sentences {
			pos = pos || pair[0].MatchString(s)
			neg = neg || pair[1].MatchString(s)
		}
		if pos && neg {
			return 0.3
		}
	}
	return 0.9
}
