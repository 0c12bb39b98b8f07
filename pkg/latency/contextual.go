package latency

import (
	"fmt"
	"math"
	"strings"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

// Context types for contextual grading.
const (
	ContextGreeting              = "greeting"
	ContextSimpleQuery           = "simple_query"
	ContextComplexQuery          = "complex_query"
	ContextInformationProcessing = "information_processing"
	ContextClosing               = "closing"
)

// Violation levels for contextual grading.
const (
	LevelNone     = "none"
	LevelMinor    = "minor"
	LevelModerate = "moderate"
	LevelCritical = "critical"
)

// Thresholds are the reply-delay bands for one context, in seconds.
type Thresholds struct {
	Optimal    float64
	Acceptable float64
	Critical   float64
}

var contextThresholds = map[string]Thresholds{
	ContextGreeting:              {1.0, 2.0, 4.0},
	ContextSimpleQuery:           {1.5, 3.0, 5.0},
	ContextComplexQuery:          {2.5, 5.0, 8.0},
	ContextInformationProcessing: {3.0, 6.0, 10.0},
	ContextClosing:               {1.0, 2.0, 3.0},
}

// greetings and closings hurt more when slow; users expect complex queries
// and processing to take time
var contextImpact = map[string]float64{
	ContextGreeting:              1.3,
	ContextSimpleQuery:           1.0,
	ContextComplexQuery:          0.8,
	ContextInformationProcessing: 0.7,
	ContextClosing:               1.2,
}

var levelRecommendations = map[string]string{
	LevelCritical: "URGENT: Optimize response generation pipeline and consider caching common responses",
	LevelModerate: "Improve response time through better query processing or interim acknowledgments",
	LevelMinor:    "Consider minor optimizations to improve user experience",
	LevelNone:     "Response time within acceptable range",
}

var (
	complexityCues  = []string{"why", "how", "explain", "difference", "compare", "multiple"}
	processingCues  = []string{"calculate", "find", "search", "check", "verify", "process"}
	conversationEnd = []string{"bye", "thank"}
)

// ThresholdsFor returns the bands for a context type, defaulting to a simple
// query.
func ThresholdsFor(contextType string) Thresholds {
	if t, ok := contextThresholds[contextType]; ok {
		return t
	}
	return contextThresholds[ContextSimpleQuery]
}

// Phase places a turn in the call by its relative position.
func Phase(turnIndex, totalTurns int) string {
	progress := float64(turnIndex) / math.Max(float64(totalTurns), 1)
	switch {
	case progress < 0.2:
		return "greeting"
	case progress < 0.4:
		return "inquiry"
	case progress < 0.8:
		return "information_gathering"
	case progress < 0.95:
		return "resolution"
	}
	return "closing"
}

// ClassifyContext decides which thresholds apply to a reply from the customer
// line it answers.
func ClassifyContext(humanText, phase string, turnIndex int) string {
	lower := strings.ToLower(humanText)
	switch {
	case turnIndex < 3:
		return ContextGreeting
	case strings.Contains(lower, "?"):
		if textutil.ContainsAny(lower, complexityCues...) {
			return ContextComplexQuery
		}
		return ContextSimpleQuery
	case textutil.ContainsAny(lower, processingCues...):
		return ContextInformationProcessing
	case phase == "closing" || textutil.ContainsAny(lower, conversationEnd...):
		return ContextClosing
	}
	return ContextSimpleQuery
}

// Impact rates a delay's effect on the caller from 0 to 10.
func Impact(delay float64, t Thresholds, contextType string) float64 {
	var base float64
	switch {
	case delay <= t.Optimal:
		base = 0
	case delay <= t.Acceptable:
		base = (delay/t.Optimal - 1) * 3
	case delay <= t.Critical:
		base = 3 + (delay-t.Acceptable)/(t.Critical-t.Acceptable)*4
	default:
		base = 7 + math.Min((delay-t.Critical)/t.Critical*3, 3)
	}
	multiplier, ok := contextImpact[contextType]
	if !ok {
		multiplier = 1
	}
	return math.Min(base*multiplier, 10)
}

func violationLevel(delay float64, t Thresholds) string {
	switch {
	case delay > t.Critical:
		return LevelCritical
	case delay > t.Acceptable:
		return LevelModerate
	case delay > t.Optimal:
		return LevelMinor
	}
	return LevelNone
}

func experienceImpact(delay float64, t Thresholds) string {
	switch {
	case delay <= t.Optimal:
		return "excellent"
	case delay <= t.Acceptable:
		return "good"
	case delay <= t.Critical:
		return "poor"
	}
	return "very_poor"
}

func replyRecommendation(level, contextType string) string {
	rec := levelRecommendations[level]
	if level == LevelNone {
		return rec
	}
	switch contextType {
	case ContextInformationProcessing:
		rec += `. Consider adding "processing..." acknowledgments for complex queries.`
	case ContextGreeting:
		rec += ". First response delays create poor first impressions."
	}
	return rec
}

// analyzeContextual grades measured delays against per-context thresholds.
// Impact drives the score and each critical delay costs 15 more points.
func (a *Analyzer) analyzeContextual(turns []transcript.Turn, timings []audio.TurnTiming) Analysis {
	times := []ResponseTime{}
	violations := []Violation{}

	for i := 1; i < len(timings); i++ {
		cur, prev := timings[i], timings[i-1]
		if !cur.Speaker.IsAgent() || !prev.Speaker.IsCustomer() {
			continue
		}
		human, bot := turnTexts(turns, i)
		delay := cur.StartTime - prev.EndTime
		contextType := ClassifyContext(human, Phase(i, len(timings)), i)
		t := ThresholdsFor(contextType)
		level := violationLevel(delay, t)
		ts := cur.StartTime

		rt := ResponseTime{
			TurnIndex:            i,
			ResponseTimeSeconds:  delay,
			AudioTimestamp:       &ts,
			ContextType:          contextType,
			ExpectedRange:        fmt.Sprintf("%g-%gs", t.Optimal, t.Acceptable),
			ViolationLevel:       level,
			ImpactScore:          Impact(delay, t, contextType),
			Recommendation:       replyRecommendation(level, contextType),
			UserExperienceImpact: experienceImpact(delay, t),
		}
		rt.HumanTurnText = textutil.Truncate(human, quoteMaxRunes)
		rt.BotResponseText = textutil.Truncate(bot, quoteMaxRunes)
		times = append(times, rt)

		if level != LevelNone {
			violations = append(violations, Violation{
				TurnIndex:           i,
				ResponseTimeSeconds: delay,
				ViolationSeverity:   level,
				HumanTurnText:       rt.HumanTurnText,
				BotResponseText:     rt.BotResponseText,
				ContextType:         contextType,
				ExpectedRange:       rt.ExpectedRange,
				ImpactScore:         rt.ImpactScore,
				Recommendation:      rt.Recommendation,
				AudioTimestamp:      &ts,
			})
		}
	}

	score := contextualScore(times, violations)
	grade, status := Grade(score)
	result := Analysis{
		ResponseTimes:       times,
		LatencyViolations:   violations,
		AverageResponseTime: averageResponse(times),
		TotalViolations:     len(violations),
		Threshold:           a.threshold,
		ContextualAnalysis:  contextInsights(times),
		LatencyScore:        math.Round(score),
		PerformanceGrade:    grade,
		Status:              status,
		Recommendations:     contextualRecommendations(times, violations),
		AnalysisSource:      "audio_primary",
	}
	a.logResult(result)
	return result
}

func contextualScore(times []ResponseTime, violations []Violation) float64 {
	if len(times) == 0 {
		return 100
	}
	var impact float64
	for _, t := range times {
		impact += t.ImpactScore
	}
	base := math.Max(0, 100-impact/float64(len(times)*10)*100)

	critical := 0
	for _, v := range violations {
		if v.ViolationSeverity == LevelCritical {
			critical++
		}
	}
	return math.Max(0, base-float64(critical)*15)
}

func contextualRecommendations(times []ResponseTime, violations []Violation) []string {
	if len(violations) == 0 {
		return []string{"Response times are within acceptable ranges. Continue monitoring."}
	}

	var recs []string
	critical := 0
	contexts := map[string]bool{}
	for _, v := range violations {
		if v.ViolationSeverity == LevelCritical {
			critical++
		}
		contexts[v.ContextType] = true
	}
	if critical > 0 {
		recs = append(recs, fmt.Sprintf("PRIORITY: Address %d critical response delays immediately", critical))
	}
	if contexts[ContextGreeting] {
		recs = append(recs, "Optimize initial response time - first impressions are crucial")
	}
	if contexts[ContextInformationProcessing] {
		recs = append(recs, "Consider adding interim responses for complex processing tasks")
	}
	if averageResponse(times) > 3.0 {
		recs = append(recs, "Overall response time is high - review system performance and caching strategies")
	}
	return recs
}

func contextInsights(times []ResponseTime) map[string]ContextInsight {
	out := make(map[string]ContextInsight)
	for _, t := range times {
		in, ok := out[t.ContextType]
		if !ok {
			in = ContextInsight{MaxTime: t.ResponseTimeSeconds, MinTime: t.ResponseTimeSeconds}
		}
		in.AverageTime = (in.AverageTime*float64(in.Count) + t.ResponseTimeSeconds) / float64(in.Count+1)
		in.Count++
		in.MaxTime = math.Max(in.MaxTime, t.ResponseTimeSeconds)
		in.MinTime = math.Min(in.MinTime, t.ResponseTimeSeconds)
		out[t.ContextType] = in
	}
	return out
}
