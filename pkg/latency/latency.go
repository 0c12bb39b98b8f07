// Package latency measures how quickly the bot answers the customer.
package latency

import (
	"fmt"
	"math"
	"regexp"
	"strings"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

// Mode selects how measured turn timings are scored.
type Mode string

const (
	// ModeBaseline flags any reply slower than the threshold and tolerates a
	// few of them.
	ModeBaseline Mode = "baseline"
	// ModeContextual grades measured replies against per-context thresholds.
	ModeContextual Mode = "contextual"
)

const (
	DefaultThreshold      = 5.0
	MaxAllowedViolations  = 3
	severeResponseSeconds = 10.0
	quoteMaxRunes         = 50

	agentWordsPerSecond    = 3.0
	customerWordsPerSecond = 2.5
	longTurnRunes          = 100
	longTurnFactor         = 1.2
	punctuationPause       = 0.5
	// fixed stand-in for natural variation in turn length
	turnJitter = 0.5
)

const (
	SeverityModerate = "moderate"
	SeveritySevere   = "severe"
)

var sentenceEnd = regexp.MustCompile(`[.!?]`)

// ResponseTime is one measured or estimated bot reply delay.
type ResponseTime struct {
	TurnIndex            int      `json:"turnIndex"`
	ResponseTimeSeconds  float64  `json:"responseTimeSeconds"`
	HumanTurnText        string   `json:"humanTurnText"`
	BotResponseText      string   `json:"botResponseText"`
	AudioTimestamp       *float64 `json:"audioTimestamp,omitempty"`
	ContextType          string   `json:"contextType,omitempty"`
	ExpectedRange        string   `json:"expectedRange,omitempty"`
	ViolationLevel       string   `json:"violationLevel,omitempty"`
	ImpactScore          float64  `json:"impactScore,omitempty"`
	Recommendation       string   `json:"recommendation,omitempty"`
	UserExperienceImpact string   `json:"userExperienceImpact,omitempty"`
}

// Violation is a reply slower than its threshold.
type Violation struct {
	TurnIndex           int      `json:"turnIndex"`
	ResponseTimeSeconds float64  `json:"responseTimeSeconds"`
	ViolationSeverity   string   `json:"violationSeverity"`
	HumanTurnText       string   `json:"humanTurnText"`
	BotResponseText     string   `json:"botResponseText"`
	ContextType         string   `json:"contextType,omitempty"`
	ExpectedRange       string   `json:"expectedRange,omitempty"`
	ImpactScore         float64  `json:"impactScore,omitempty"`
	Recommendation      string   `json:"recommendation,omitempty"`
	AudioTimestamp      *float64 `json:"audioTimestamp,omitempty"`
}

// ContextInsight summarises reply times for one context type.
type ContextInsight struct {
	AverageTime float64 `json:"averageTime"`
	Count       int     `json:"count"`
	MaxTime     float64 `json:"maxTime"`
	MinTime     float64 `json:"minTime"`
}

// Analysis is the responseLatencyAnalysis section of a result.
type Analysis struct {
	ResponseTimes        []ResponseTime            `json:"responseTimes"`
	LatencyViolations    []Violation               `json:"latencyViolations"`
	AverageResponseTime  float64                   `json:"averageResponseTime"`
	TotalViolations      int                       `json:"totalViolations"`
	MaxAllowedViolations int                       `json:"maxAllowedViolations,omitempty"`
	Threshold            float64                   `json:"threshold,omitempty"`
	ContextualAnalysis   map[string]ContextInsight `json:"contextualAnalysis,omitempty"`
	LatencyScore         float64                   `json:"latencyScore"`
	PerformanceGrade     string                    `json:"performanceGrade"`
	Status               string                    `json:"status"`
	Recommendations      []string                  `json:"recommendations"`
	AnalysisSource       string                    `json:"analysisSource"`
}

// Analyzer scores bot response latency.
type Analyzer struct {
	logger    *logrus.Logger
	mode      Mode
	threshold float64
}

// NewAnalyzer creates an analyzer. Unknown modes fall back to baseline and a
// non-positive threshold to DefaultThreshold.
func NewAnalyzer(logger *logrus.Logger, mode Mode, threshold float64) *Analyzer {
	if mode != ModeContextual {
		mode = ModeBaseline
	}
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &Analyzer{
		logger:    logger,
		mode:      mode,
		threshold: threshold,
	}
}

// Mode returns the scoring mode in effect.
func (a *Analyzer) Mode() Mode {
	return a.mode
}

// Analyze measures reply delays from audio turn timings when present,
// otherwise estimates them from the transcript.
func (a *Analyzer) Analyze(turns []transcript.Turn, data *audio.Data) Analysis {
	if data.HasTurnTimings() {
		if a.mode == ModeContextual {
			return a.analyzeContextual(turns, data.TurnTimings)
		}
		return a.analyzeTimings(turns, data.TurnTimings)
	}
	if len(turns) == 0 {
		a.logger.Debug("No turns to analyze, returning default latency analysis")
		return Default()
	}
	return a.analyzeTranscript(turns)
}

// analyzeTranscript runs a clock over estimated turn durations. A reply's
// delay is the time since the customer started the preceding turn.
func (a *Analyzer) analyzeTranscript(turns []transcript.Turn) Analysis {
	var times []ResponseTime
	var violations []Violation

	var clock, customerStart float64
	for i, turn := range turns {
		switch {
		case turn.IsCustomer():
			customerStart = clock
		case turn.IsAgent() && i > 0 && turns[i-1].IsCustomer():
			delay := clock - customerStart
			rt, v, slow := a.baselineReply(i, delay, turns[i-1].Text, turn.Text)
			times = append(times, rt)
			if slow {
				violations = append(violations, v)
			}
		}
		clock += EstimateTurnDuration(turn.Text, turn.Speaker)
	}

	result := a.simpleResult(times, violations)
	result.AnalysisSource = "transcript_fallback"
	a.logResult(result)
	return result
}

// analyzeTimings scores measured delays with the baseline rule.
func (a *Analyzer) analyzeTimings(turns []transcript.Turn, timings []audio.TurnTiming) Analysis {
	var times []ResponseTime
	var violations []Violation

	for i := 1; i < len(timings); i++ {
		cur, prev := timings[i], timings[i-1]
		if !cur.Speaker.IsAgent() || !prev.Speaker.IsCustomer() {
			continue
		}
		human, bot := turnTexts(turns, i)
		rt, v, slow := a.baselineReply(i, cur.StartTime-prev.EndTime, human, bot)
		ts := cur.StartTime
		rt.AudioTimestamp = &ts
		times = append(times, rt)
		if slow {
			v.AudioTimestamp = &ts
			violations = append(violations, v)
		}
	}

	result := a.simpleResult(times, violations)
	result.AnalysisSource = "audio_primary"
	a.logResult(result)
	return result
}

func (a *Analyzer) baselineReply(turnIndex int, delay float64, human, bot string) (ResponseTime, Violation, bool) {
	rt := ResponseTime{
		TurnIndex:           turnIndex,
		ResponseTimeSeconds: delay,
		HumanTurnText:       textutil.Truncate(human, quoteMaxRunes),
		BotResponseText:     textutil.Truncate(bot, quoteMaxRunes),
	}
	if delay <= a.threshold {
		return rt, Violation{}, false
	}
	severity := SeverityModerate
	if delay > severeResponseSeconds {
		severity = SeveritySevere
	}
	return rt, Violation{
		TurnIndex:           turnIndex,
		ResponseTimeSeconds: delay,
		ViolationSeverity:   severity,
		HumanTurnText:       rt.HumanTurnText,
		BotResponseText:     rt.BotResponseText,
	}, true
}

// simpleResult applies the baseline score: 25 points per violation beyond
// the allowance and 15 more per severe one.
func (a *Analyzer) simpleResult(times []ResponseTime, violations []Violation) Analysis {
	if times == nil {
		times = []ResponseTime{}
	}
	if violations == nil {
		violations = []Violation{}
	}

	score := 100.0
	if excess := len(violations) - MaxAllowedViolations; excess > 0 {
		score = math.Max(0, 100-float64(excess)*25)
	}
	severe := 0
	for _, v := range violations {
		if v.ViolationSeverity == SeveritySevere {
			severe++
		}
	}
	if severe > 0 {
		score = math.Max(0, score-float64(severe)*15)
	}

	var recs []string
	switch n := len(violations); {
	case n == 0:
		recs = append(recs, fmt.Sprintf("All response times within %g-second threshold. Excellent performance.", a.threshold))
	case n <= MaxAllowedViolations:
		recs = append(recs, fmt.Sprintf("%d response time violations detected but within acceptable limit (%d)", n, MaxAllowedViolations))
	default:
		recs = append(recs, fmt.Sprintf("%d response time violations exceed limit (%d). Optimize bot response speed.", n, MaxAllowedViolations))
	}
	if severe > 0 {
		recs = append(recs, fmt.Sprintf("%d severe violations (>%gs) detected. Critical optimization needed.", severe, severeResponseSeconds))
	}

	grade, status := Grade(score)
	return Analysis{
		ResponseTimes:        times,
		LatencyViolations:    violations,
		AverageResponseTime:  averageResponse(times),
		TotalViolations:      len(violations),
		MaxAllowedViolations: MaxAllowedViolations,
		Threshold:            a.threshold,
		LatencyScore:         math.Round(score),
		PerformanceGrade:     grade,
		Status:               status,
		Recommendations:      recs,
	}
}

func (a *Analyzer) logResult(result Analysis) {
	a.logger.WithFields(logrus.Fields{
		"violations": result.TotalViolations,
		"score":      result.LatencyScore,
		"grade":      result.PerformanceGrade,
		"source":     result.AnalysisSource,
	}).Debug("Response latency analysis complete")
}

// EstimateTurnDuration estimates how long a turn takes to speak: words at a
// per-speaker rate, slower for long turns, plus a pause per sentence.
func EstimateTurnDuration(text string, speaker transcript.Speaker) float64 {
	rate := customerWordsPerSecond
	if speaker.IsAgent() {
		rate = agentWordsPerSecond
	}
	factor := 1.0
	if len([]rune(text)) > longTurnRunes {
		factor = longTurnFactor
	}
	pauses := float64(len(sentenceEnd.FindAllStringIndex(text, -1))) * punctuationPause
	return float64(len(strings.Fields(text)))/rate*factor + pauses + turnJitter
}

// Grade maps a 0-100 latency score to a letter grade and status.
func Grade(score float64) (string, string) {
	switch {
	case score >= 90:
		return "A", "excellent"
	case score >= 80:
		return "B", "good"
	case score >= 70:
		return "C", "acceptable"
	case score >= 60:
		return "D", "needs_improvement"
	}
	return "F", "critical"
}

func averageResponse(times []ResponseTime) float64 {
	if len(times) == 0 {
		return 0
	}
	var sum float64
	for _, t := range times {
		sum += t.ResponseTimeSeconds
	}
	return sum / float64(len(times))
}

func turnTexts(turns []transcript.Turn, i int) (string, string) {
	var human, bot string
	if i-1 >= 0 && i-1 < len(turns) {
		human = turns[i-1].Text
	}
	if i < len(turns) {
		bot = turns[i].Text
	}
	return human, bot
}

// Default is returned for an empty call or when the analysis failed.
func Default() Analysis {
	return Analysis{
		ResponseTimes:        []ResponseTime{},
		LatencyViolations:    []Violation{},
		AverageResponseTime:  2.5,
		MaxAllowedViolations: MaxAllowedViolations,
		Threshold:            DefaultThreshold,
		LatencyScore:         80,
		PerformanceGrade:     "B",
		Status:               "acceptable",
		Recommendations:      []string{"Unable to analyze response latency - transcript may be missing or invalid"},
		AnalysisSource:       "default_fallback",
	}
}
