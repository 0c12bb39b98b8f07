// Package interruption rates turn-taking: who cut whom off, how the bot
// recovered, and how smoothly the call moved between speakers.
package interruption

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/dialogue"
	"callqa-server/pkg/transcript"
)

// Interruption types.
const (
	TypeBotInterruptsHuman = "bot_interrupts_human"
	TypeHumanInterruptsBot = "human_interrupts_bot"
)

const (
	// the transcript carries no timing, so every gap is taken as a normal pause
	estimatedTurnGap = 1.5

	topicSimilarity  = 0.6
	defaultHandling  = 8.0
	poorHandlingUpTo = 5
)

var (
	sentenceClose    = regexp.MustCompile(`[.!?]$`)
	trailingJunction = regexp.MustCompile(`(?i)\b(and|but|so|because|if|when|while|since)\s*$`)
	recoveryLanguage = []*regexp.Regexp{
		regexp.MustCompile(`(?i)sorry|apologize|excuse me`),
		regexp.MustCompile(`(?i)let me continue|as I was saying|going back to`),
		regexp.MustCompile(`(?i)understand|I see|got it`),
	}
)

// Interruption is one detected cut-off.
type Interruption struct {
	TurnIndex          int     `json:"turnIndex"`
	InterruptionType   string  `json:"interruptionType"`
	Severity           float64 `json:"severity"`
	HandlingQuality    float64 `json:"handlingQuality"`
	RecoveryTime       float64 `json:"recoveryTime"`
	ContextAppropriate bool    `json:"contextAppropriate"`
	Recommendation     string  `json:"recommendation"`
	AnalysisSource     string  `json:"analysisSource,omitempty"`
}

// TurnGap rates the pause before a turn.
type TurnGap struct {
	EstimatedGap    float64 `json:"estimatedGap,omitempty"`
	SilenceDuration float64 `json:"silenceDuration,omitempty"`
	Quality         float64 `json:"quality"`
	Appropriate     bool    `json:"appropriate"`
}

// Transition rates the hand-over between two speakers.
type Transition struct {
	SpeakerChanged bool    `json:"speakerChanged"`
	Smooth         bool    `json:"smooth"`
	Quality        float64 `json:"quality"`
}

// Pattern is the turn-taking quality around one turn, on a 0-10 scale.
type Pattern struct {
	TurnGaps           TurnGap    `json:"turnGaps"`
	SpeakerTransition  Transition `json:"speakerTransition"`
	ConversationalFlow float64    `json:"conversationalFlow"`
	OverallQuality     float64    `json:"overallQuality"`
}

// TurnTakingQuality is the average pattern quality with a rating.
type TurnTakingQuality struct {
	Quality    float64 `json:"quality"`
	Assessment string  `json:"assessment"`
}

// ConversationFlow is the share of smooth transitions on a 0-10 scale.
type ConversationFlow struct {
	Score             float64 `json:"score"`
	SmoothTransitions int     `json:"smoothTransitions"`
	TotalTransitions  int     `json:"totalTransitions"`
	FlowQuality       string  `json:"flowQuality"`
}

// Analysis is the interruptionAnalysis section of a result.
type Analysis struct {
	Interruptions     []Interruption    `json:"interruptions"`
	InterruptionScore float64           `json:"interruptionScore"`
	TurnTakingQuality TurnTakingQuality `json:"turnTakingQuality"`
	ConversationFlow  ConversationFlow  `json:"conversationFlow"`
	Recommendations   []string          `json:"recommendations"`
	AnalysisSource    string            `json:"analysisSource"`
}

// Analyzer rates interruption handling.
type Analyzer struct {
	logger *logrus.Logger
}

// NewAnalyzer creates an interruption analyzer.
func NewAnalyzer(logger *logrus.Logger) *Analyzer {
	return &Analyzer{logger: logger}
}

// Analyze uses measured overlaps when the audio side reports them and
// transcript heuristics otherwise.
func (a *Analyzer) Analyze(turns []transcript.Turn, data *audio.Data) Analysis {
	var result Analysis
	if data.HasInterruptionData() {
		result = a.analyzeAudio(turns, data.InterruptionData)
	} else {
		if len(turns) == 0 {
			a.logger.Debug("No turns to analyze, returning default interruption analysis")
			return Default()
		}
		result = a.analyzeTranscript(turns)
	}

	a.logger.WithFields(logrus.Fields{
		"interruptions": len(result.Interruptions),
		"score":         result.InterruptionScore,
		"source":        result.AnalysisSource,
	}).Debug("Interruption analysis complete")
	return result
}

// analyzeTranscript looks at every turn with a neighbour on both sides.
func (a *Analyzer) analyzeTranscript(turns []transcript.Turn) Analysis {
	interruptions := []Interruption{}
	var patterns []Pattern

	for i := 1; i < len(turns)-1; i++ {
		prev, cur, next := turns[i-1], turns[i], turns[i+1]
		if in, ok := detect(prev, cur, next); ok {
			in.TurnIndex = i
			in.AnalysisSource = "transcript_fallback"
			interruptions = append(interruptions, in)
		}
		patterns = append(patterns, turnPattern(prev, cur))
	}

	return summarize(interruptions, patterns, "transcript_fallback")
}

func detect(prev, cur, next transcript.Turn) (Interruption, bool) {
	switch {
	case prev.IsCustomer() && cur.IsAgent():
		// a long customer line that trails off, answered at once by a short bot line
		if endsAbruptly(prev.Text) && wordCount(prev.Text) > 10 && wordCount(cur.Text) < 5 {
			return newInterruption(TypeBotInterruptsHuman, 7, 2, 0, false), true
		}
	case prev.IsAgent() && cur.IsCustomer():
		if wordCount(prev.Text) > 20 && len([]rune(cur.Text)) < 20 {
			var handling, recovery float64
			if next.IsAgent() {
				handling = RecoveryQuality(next.Text)
				recovery = RecoveryTime(cur.Text, next.Text)
			}
			return newInterruption(TypeHumanInterruptsBot, 4, handling, recovery, appropriateInterruption(prev.Text, cur.Text)), true
		}
	}
	return Interruption{}, false
}

func newInterruption(kind string, severity, handling, recovery float64, appropriate bool) Interruption {
	return Interruption{
		InterruptionType:   kind,
		Severity:           severity,
		HandlingQuality:    handling,
		RecoveryTime:       recovery,
		ContextAppropriate: appropriate,
		Recommendation:     Recommendation(kind, severity, handling),
	}
}

func endsAbruptly(text string) bool {
	t := strings.TrimSpace(text)
	return !sentenceClose.MatchString(t) || trailingJunction.MatchString(t)
}

// wordCount counts whitespace-separated chunks; an empty line counts as one.
func wordCount(text string) int {
	return max(1, len(strings.Fields(text)))
}

// RecoveryQuality grades the bot line after a customer interruption: 8 for
// recovery language in a full reply, 6 for recovery language alone, 4 for a
// long reply without it and 2 otherwise.
func RecoveryQuality(botText string) float64 {
	recovers := false
	for _, re := range recoveryLanguage {
		if re.MatchString(botText) {
			recovers = true
			break
		}
	}
	words := wordCount(botText)
	switch {
	case recovers && words > 5:
		return 8
	case recovers:
		return 6
	case words > 10:
		return 4
	}
	return 2
}

// RecoveryTime estimates seconds lost to an interruption from the length of
// the interrupting line and the reply to it.
func RecoveryTime(interruption, recovery string) float64 {
	return math.Max(1, float64(wordCount(interruption))*0.3+float64(wordCount(recovery))*0.2)
}

// appropriateInterruption reports whether the customer had reason to cut in.
func appropriateInterruption(botText, humanText string) bool {
	human := strings.ToLower(humanText)
	for _, cue := range []string{"wait", "stop", "question", "clarify", "wrong", "mistake"} {
		if strings.Contains(human, cue) {
			return true
		}
	}
	bot := strings.ToLower(botText)
	return !strings.Contains(bot, "important") && !strings.Contains(bot, "need to know")
}

// Recommendation returns advice for an interruption with a severity tag.
func Recommendation(kind string, severity, handling float64) string {
	var rec string
	switch kind {
	case TypeBotInterruptsHuman:
		rec = "CRITICAL: Bot interrupting human. Implement better turn-taking detection."
	case TypeHumanInterruptsBot:
		if handling > 6 {
			rec = "Good interruption handling. Continue monitoring."
		} else {
			rec = "Improve bot recovery from human interruptions."
		}
	case "none":
		rec = "No interruption issues detected."
	default:
		rec = "Monitor turn-taking patterns."
	}
	switch {
	case severity > 6:
		return rec + " [HIGH PRIORITY]"
	case severity > 3:
		return rec + " [MEDIUM]"
	}
	return rec + " [LOW]"
}

func turnPattern(prev, cur transcript.Turn) Pattern {
	gap := TurnGap{
		EstimatedGap: estimatedTurnGap,
		Quality:      gapQuality(estimatedTurnGap),
		Appropriate:  estimatedTurnGap >= 0.5 && estimatedTurnGap <= 2.0,
	}

	changed := prev.Speaker != cur.Speaker
	transition := Transition{SpeakerChanged: changed, Smooth: true, Quality: 8}
	if changed {
		transition.Quality = 9
	}

	flow := (topicContinuity(prev.Text, cur.Text) + dialogue.ResponseAlignment(prev.Text, cur.Text)) / 2
	return Pattern{
		TurnGaps:           gap,
		SpeakerTransition:  transition,
		ConversationalFlow: flow,
		OverallQuality:     (gap.Quality + transition.Quality + flow) / 3,
	}
}

func gapQuality(gap float64) float64 {
	switch {
	case gap > 3:
		return 4
	case gap < 0.2:
		return 6
	}
	return 8
}

func topicContinuity(prevText, curText string) float64 {
	prev, cur := dialogue.Topics(prevText), dialogue.Topics(curText)
	if len(prev) == 0 || len(cur) == 0 {
		return 0.7
	}
	shared := dialogue.SharedTopics(prev, cur, topicSimilarity)
	return math.Min(1, float64(shared)/float64(min(len(prev), len(cur)))+0.3)
}

func summarize(interruptions []Interruption, patterns []Pattern, source string) Analysis {
	return Analysis{
		Interruptions:     interruptions,
		InterruptionScore: score(interruptions, patterns),
		TurnTakingQuality: turnTaking(patterns),
		ConversationFlow:  conversationFlow(patterns),
		Recommendations:   recommendations(interruptions),
		AnalysisSource:    source,
	}
}

// score is the average pattern quality when nothing was interrupted;
// otherwise 100 less twice the total severity plus twice the average
// handling quality.
func score(interruptions []Interruption, patterns []Pattern) float64 {
	if len(interruptions) == 0 && len(patterns) > 0 {
		var sum float64
		for _, p := range patterns {
			sum += p.OverallQuality
		}
		return math.Round(sum / float64(len(patterns)) * 10)
	}

	var severity float64
	handling := defaultHandling
	if len(interruptions) > 0 {
		var sum float64
		for _, in := range interruptions {
			severity += in.Severity
			sum += in.HandlingQuality
		}
		handling = sum / float64(len(interruptions))
	}
	return math.Max(0, math.Min(100, math.Round(100-severity*2+handling*2)))
}

func rating(v float64) string {
	switch {
	case v >= 8:
		return "excellent"
	case v >= 6:
		return "good"
	case v >= 4:
		return "fair"
	}
	return "poor"
}

func turnTaking(patterns []Pattern) TurnTakingQuality {
	if len(patterns) == 0 {
		return TurnTakingQuality{Quality: 8, Assessment: "good"}
	}
	var sum float64
	for _, p := range patterns {
		sum += p.OverallQuality
	}
	avg := sum / float64(len(patterns))
	return TurnTakingQuality{Quality: avg, Assessment: rating(avg)}
}

func conversationFlow(patterns []Pattern) ConversationFlow {
	smooth := 0
	for _, p := range patterns {
		if p.SpeakerTransition.Smooth {
			smooth++
		}
	}
	score := 8.0
	if len(patterns) > 0 {
		score = float64(smooth) / float64(len(patterns)) * 10
	}
	return ConversationFlow{
		Score:             score,
		SmoothTransitions: smooth,
		TotalTransitions:  len(patterns),
		FlowQuality:       rating(score),
	}
}

func recommendations(interruptions []Interruption) []string {
	if len(interruptions) == 0 {
		return []string{"Turn-taking patterns are healthy. Continue monitoring."}
	}

	recs := []string{}
	var bot, human, poor int
	for _, in := range interruptions {
		switch in.InterruptionType {
		case TypeBotInterruptsHuman:
			bot++
		case TypeHumanInterruptsBot:
			human++
		}
		if in.HandlingQuality < poorHandlingUpTo {
			poor++
		}
	}
	if bot > 0 {
		recs = append(recs, fmt.Sprintf("CRITICAL: %d bot interruptions detected. Implement turn-taking detection.", bot))
	}
	if human > 2 {
		recs = append(recs, fmt.Sprintf("High human interruption rate (%d). Review bot response length and clarity.", human))
	}
	if poor > 0 {
		recs = append(recs, fmt.Sprintf("Improve interruption recovery - %d instances of poor handling detected.", poor))
	}
	return recs
}

// Default is returned for an empty call or when the analysis failed.
func Default() Analysis {
	return Analysis{
		Interruptions:     []Interruption{},
		InterruptionScore: 85,
		TurnTakingQuality: TurnTakingQuality{Quality: 8, Assessment: "good"},
		ConversationFlow:  ConversationFlow{Score: 8, FlowQuality: "good"},
		Recommendations:   []string{"Unable to analyze interruption patterns - transcript may be missing or invalid"},
		AnalysisSource:    "default_fallback",
	}
}
