package hallucination

import (
	"fmt"
	"regexp"
	"strings"

	"callqa-server/pkg/intent"
	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

const quoteMaxRunes = 100

// These cues are substring matches, not word matches: "no" also fires on
// "not" and "now".
var (
	cueObjection    = textutil.MustPatterns(`नहीं|no|not interested|busy|later|परेशान|problem`)
	cueConfirmation = textutil.MustPatterns(`हाँ|yes|ok|ठीक|sure|alright`)
	cueProperty     = textutil.MustPatterns(`property|flat|house|bhk|बी.*एच.*के|मकान|घर`)
	cueAgent        = textutil.MustPatterns(`agent|broker|dealer|एजेंट`)

	expectGreeting = textutil.MustPatterns(`hello|hi|नमस्ते`)
	expectInterest = textutil.MustPatterns(`property|flat|search|interest|बी.*एच.*के`)
	expectAgent    = textutil.MustPatterns(`agent|connect|help|एजेंट`)
	expectYes      = textutil.MustPatterns(`yes|ok|हाँ|ठीक`)
	expectCallback = textutil.MustPatterns(`busy|later|बाद में`)
	expectDecline  = textutil.MustPatterns(`no|नहीं|not interested`)

	greetingScript = textutil.MustPatterns(`magicbricks|मैजिकब्रिक्स`)
	interestScript = textutil.MustPatterns(`platform|recently|interest`)
	offerScript    = textutil.MustPatterns(`shortlist|agent|top.*agent`)
	transferScript = textutil.MustPatterns(`transfer|connect|agent.*connect`)
	bhkAbbrev      = textutil.MustWordPattern(`BHK`)
)

type queryRule struct {
	name      string
	asked     []*regexp.Regexp
	addressed []*regexp.Regexp
	advice    string
}

// queryRules are checked in order; the first whose cue appears in the
// customer line decides the query type.
var queryRules = []queryRule{
	{
		name:      "pricing",
		asked:     textutil.MustPatterns(`price|cost|budget|लाख|crore`),
		addressed: textutil.MustPatterns(`budget|price|cost|लाख|crore|affordable`),
		advice:    "Bot should acknowledge pricing queries and either provide budget ranges or ask for customer budget preferences.",
	},
	{
		name:      "location",
		asked:     textutil.MustPatterns(`location|area|where|कहाँ`),
		addressed: textutil.MustPatterns(`area|location|where|कहाँ|locality`),
		advice:    "Bot should acknowledge location queries and confirm the area of interest or ask for preferred locations.",
	},
	{
		name:      "property_size",
		asked:     textutil.MustPatterns(`size|bhk|बी.*एच.*के|room`),
		addressed: textutil.MustPatterns(`bhk|बी.*एच.*के|room|size|flat`),
		advice:    `Bot should acknowledge property size queries and confirm BHK requirements (using "Bee-etch-kay" pronunciation).`,
	},
	{
		name:      "agent_related",
		asked:     textutil.MustPatterns(`agent|broker|एजेंट`),
		addressed: textutil.MustPatterns(`agent|broker|एजेंट|connect|help`),
		advice:    "Bot should address agent-related queries by explaining the agent connection process and benefits.",
	},
	{
		name:      "timing",
		asked:     textutil.MustPatterns(`time|when|कब`),
		addressed: textutil.MustPatterns(`time|when|कब|schedule|call`),
		advice:    "Bot should address timing queries by providing available time slots or asking for customer preferences.",
	},
	{
		name:      "question",
		asked:     textutil.MustPatterns(`\?`),
		addressed: textutil.MustPatterns(`yes|no|हाँ|नहीं|answer|reply`),
		advice:    "Bot should directly answer customer questions before proceeding with the script.",
	},
}

type stepViolation struct {
	kind           string
	severity       int
	recommendation string
}

var stepViolations = map[int]stepViolation{
	1: {"improper_greeting", 7, "Bot failed to provide proper initial greeting and introduction."},
	6: {"missed_interest_check", 9, "Bot failed to verify property interest when customer mentioned property-related query. Should execute interest verification step."},
	7: {"missed_agent_offer", 9, "Bot failed to offer agent connection when appropriate. Should present agent connection offer."},
	9: {"missed_call_transfer", 10, "Bot failed to execute call transfer after customer agreement. Critical business objective failure."},
}

var expectedContexts = map[int]string{
	0: "greeting_response",
	1: "name_confirmation",
	6: "property_interest_response",
	7: "agent_connection_response",
	9: "transfer_confirmation",
}

var postStepContexts = map[int]string{
	1: "post_greeting",
	6: "post_interest_check",
	7: "post_agent_offer",
	9: "post_transfer",
}

// Violation is a bot reply that skipped the critical step the customer's
// line called for.
type Violation struct {
	TurnIndex      int    `json:"turnIndex"`
	HumanInput     string `json:"humanInput"`
	BotResponse    string `json:"botResponse"`
	ExpectedStep   int    `json:"expectedStep"`
	ActualStep     int    `json:"actualStep"`
	ViolationType  string `json:"violationType"`
	Severity       int    `json:"severity"`
	Recommendation string `json:"recommendation"`
}

// ContextDeviation is a customer line that left the expected topic while a
// critical step was in progress.
type ContextDeviation struct {
	TurnIndex       int    `json:"turnIndex"`
	HumanQuery      string `json:"humanQuery"`
	ExpectedContext string `json:"expectedContext"`
	ActualContext   string `json:"actualContext"`
	Severity        int    `json:"severity"`
	Type            string `json:"type"`
}

// UnaddressedQuery is a customer question the next bot line ignored.
type UnaddressedQuery struct {
	TurnIndex        int    `json:"turnIndex"`
	HumanQuery       string `json:"humanQuery"`
	BotResponse      string `json:"botResponse"`
	QueryType        string `json:"queryType"`
	ExpectedResponse string `json:"expectedResponse"`
	ActualResponse   string `json:"actualResponse"`
	Severity         int    `json:"severity"`
	Recommendation   string `json:"recommendation"`
}

// ConversationState is where the walk ended up.
type ConversationState struct {
	CurrentStep          int         `json:"currentStep"`
	ExpectedContext      string      `json:"expectedContext"`
	CriticalStepAttempts map[int]int `json:"criticalStepAttempts"`
	ScriptViolations     []string    `json:"scriptViolations"`
}

// CriticalStepAnalysis is the result of walking the call step by step.
type CriticalStepAnalysis struct {
	CriticalStepViolations []Violation        `json:"criticalStepViolations"`
	ContextDeviations      []ContextDeviation `json:"contextDeviations"`
	UnaddressedQueries     []UnaddressedQuery `json:"unaddressedQueries"`
	ConversationState      *ConversationState `json:"conversationState,omitempty"`
	Recommendations        []string           `json:"recommendations"`
	CriticalStepScore      float64            `json:"criticalStepScore"`
	AnalysisSource         string             `json:"analysisSource,omitempty"`
}

// SevereViolations counts violations with severity of at least min.
func (a CriticalStepAnalysis) SevereViolations(min int) int {
	n := 0
	for _, v := range a.CriticalStepViolations {
		if v.Severity >= min {
			n++
		}
	}
	return n
}

// AnalyzeCriticalSteps walks the turns tracking which step the call is in.
// Customer lines are checked for leaving the step's topic; each bot reply to
// a customer line is checked for executing the step the customer's words
// called for and for answering what was asked.
func AnalyzeCriticalSteps(catalog *intent.Catalog, turns []transcript.Turn) CriticalStepAnalysis {
	state := &ConversationState{
		ExpectedContext:      "greeting",
		CriticalStepAttempts: map[int]int{},
		ScriptViolations:     []string{},
	}
	result := CriticalStepAnalysis{
		CriticalStepViolations: []Violation{},
		ContextDeviations:      []ContextDeviation{},
		UnaddressedQueries:     []UnaddressedQuery{},
		ConversationState:      state,
		AnalysisSource:         "critical_step_enhanced",
	}

	for i, turn := range turns {
		if turn.IsCustomer() {
			if dev, ok := offTopic(turn.Text, state.CurrentStep); ok && state.CurrentStep <= 7 {
				dev.TurnIndex = i
				dev.ExpectedContext = state.ExpectedContext
				result.ContextDeviations = append(result.ContextDeviations, dev)
			}
			continue
		}
		if i == 0 || !turns[i-1].IsCustomer() {
			continue
		}

		human := turns[i-1].Text
		expected := expectedStep(human, state.CurrentStep)
		detected := catalog.FirstMatchStep(turn.Text)

		if expected != detected {
			if v, ok := stepViolations[expected]; ok {
				result.CriticalStepViolations = append(result.CriticalStepViolations, Violation{
					TurnIndex:      i,
					HumanInput:     textutil.Truncate(human, quoteMaxRunes),
					BotResponse:    textutil.Truncate(turn.Text, quoteMaxRunes),
					ExpectedStep:   expected,
					ActualStep:     detected,
					ViolationType:  v.kind,
					Severity:       v.severity,
					Recommendation: v.recommendation,
				})
			}
		}

		if q, ok := unaddressed(human, turn.Text); ok {
			q.TurnIndex = i
			result.UnaddressedQueries = append(result.UnaddressedQueries, q)
		}

		for _, msg := range stepScriptViolations(turn.Text, expected) {
			state.ScriptViolations = append(state.ScriptViolations, fmt.Sprintf("turn %d: %s", i+1, msg))
		}

		if detected > 0 {
			state.CurrentStep = detected
		}
		state.ExpectedContext = postStepContexts[detected]
		if state.ExpectedContext == "" {
			state.ExpectedContext = "general"
		}
		if isCritical(detected) {
			state.CriticalStepAttempts[detected]++
		}
	}

	result.Recommendations = criticalRecommendations(result, state)
	result.CriticalStepScore = criticalStepScore(result)
	return result
}

func offTopic(text string, step int) (ContextDeviation, bool) {
	confirmation := textutil.AnyMatch(cueConfirmation, text)
	switch {
	case step == 6 && !textutil.AnyMatch(cueProperty, text) && !confirmation:
		return ContextDeviation{
			HumanQuery:    textutil.Truncate(text, quoteMaxRunes),
			ActualContext: "non_property_query",
			Severity:      7,
			Type:          "human_context_deviation",
		}, true
	case step == 7 && !textutil.AnyMatch(cueAgent, text) && !confirmation && !textutil.AnyMatch(cueObjection, text):
		return ContextDeviation{
			HumanQuery:    textutil.Truncate(text, quoteMaxRunes),
			ActualContext: "non_agent_query",
			Severity:      8,
			Type:          "human_context_deviation",
		}, true
	}
	return ContextDeviation{}, false
}

// ExpectedContext names what the call is waiting for at a step.
func ExpectedContext(step int) string {
	if c, ok := expectedContexts[step]; ok {
		return c
	}
	return "general_response"
}

// expectedStep is the step the customer's words call for next.
func expectedStep(human string, current int) int {
	switch {
	case current == 0 || textutil.AnyMatch(expectGreeting, human):
		return 1
	case textutil.AnyMatch(expectInterest, human):
		return 6
	case textutil.AnyMatch(expectAgent, human) && current >= 6:
		return 7
	case textutil.AnyMatch(expectYes, human) && current == 7:
		return 9
	case textutil.AnyMatch(expectCallback, human):
		return 5
	case textutil.AnyMatch(expectDecline, human):
		return 8
	}
	return current
}

func unaddressed(human, bot string) (UnaddressedQuery, bool) {
	for _, rule := range queryRules {
		if !textutil.AnyMatch(rule.asked, human) {
			continue
		}
		if textutil.AnyMatch(rule.addressed, bot) {
			return UnaddressedQuery{}, false
		}
		severity := 6
		if rule.name == "agent_related" {
			severity = 8
		}
		return UnaddressedQuery{
			HumanQuery:       textutil.Truncate(human, quoteMaxRunes),
			BotResponse:      textutil.Truncate(bot, quoteMaxRunes),
			QueryType:        rule.name,
			ExpectedResponse: fmt.Sprintf("Should address %s query", rule.name),
			ActualResponse:   "Query not addressed",
			Severity:         severity,
			Recommendation:   rule.advice,
		}, true
	}
	return UnaddressedQuery{}, false
}

// stepScriptViolations lists the script elements a reply at the given step
// left out.
func stepScriptViolations(bot string, step int) []string {
	var out []string
	switch step {
	case 1:
		if !textutil.AnyMatch(greetingScript, bot) {
			out = append(out, "Missing MagicBricks introduction")
		}
	case 6:
		if !textutil.AnyMatch(interestScript, bot) {
			out = append(out, "Missing platform reference or recent activity mention")
		}
		if bhkAbbrev.MatchString(bot) {
			out = append(out, `Used "BHK" instead of "Bee-etch-kay"`)
		}
	case 7:
		if !textutil.AnyMatch(offerScript, bot) {
			out = append(out, "Missing agent shortlist mention")
		}
	case 9:
		if !textutil.AnyMatch(transferScript, bot) {
			out = append(out, "Missing transfer action indication")
		}
	}
	return out
}

func isCritical(step int) bool {
	for _, s := range intent.CriticalSteps {
		if s == step {
			return true
		}
	}
	return false
}

func criticalRecommendations(a CriticalStepAnalysis, state *ConversationState) []string {
	recs := []string{}

	if n := len(a.CriticalStepViolations); n > 0 {
		recs = append(recs, fmt.Sprintf("CRITICAL: %d critical step violations detected. Review conversation flow logic.", n))
		order, counts := []string{}, map[string]int{}
		for _, v := range a.CriticalStepViolations {
			if counts[v.ViolationType] == 0 {
				order = append(order, v.ViolationType)
			}
			counts[v.ViolationType]++
		}
		for _, kind := range order {
			recs = append(recs, fmt.Sprintf("- %s: %d occurrence(s)", strings.ReplaceAll(kind, "_", " "), counts[kind]))
		}
	}

	if n := len(a.ContextDeviations); n > 0 {
		recs = append(recs, fmt.Sprintf("ATTENTION: %d context deviations detected. Bot may be going off-script.", n))
	}

	if n := len(a.UnaddressedQueries); n > 0 {
		recs = append(recs, fmt.Sprintf("IMPROVEMENT: %d customer queries not properly addressed.", n))
		order, counts := []string{}, map[string]int{}
		for _, q := range a.UnaddressedQueries {
			if counts[q.QueryType] == 0 {
				order = append(order, q.QueryType)
			}
			counts[q.QueryType]++
		}
		for _, kind := range order {
			recs = append(recs, fmt.Sprintf("- Improve %s query handling: %d missed", kind, counts[kind]))
		}
	}

	var missed []string
	for _, s := range intent.CriticalSteps {
		if state.CriticalStepAttempts[s] == 0 {
			missed = append(missed, fmt.Sprint(s))
		}
	}
	if len(missed) > 0 {
		recs = append(recs, "MISSING: Critical steps not attempted: "+strings.Join(missed, ", "))
	}
	return recs
}

// criticalStepScore starts at 100 and deducts 15 per violation, 8 per
// context deviation, 5 per unaddressed query and every violation's severity.
func criticalStepScore(a CriticalStepAnalysis) float64 {
	score := 100.0
	score -= 15 * float64(len(a.CriticalStepViolations))
	score -= 8 * float64(len(a.ContextDeviations))
	score -= 5 * float64(len(a.UnaddressedQueries))
	for _, v := range a.CriticalStepViolations {
		score -= float64(v.Severity)
	}
	return textutil.Clamp(score, 0, 100)
}
