package scoring

import (
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/hallucination"
	"callqa-server/pkg/intent"
	"callqa-server/pkg/interruption"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/repetition"
	"callqa-server/pkg/textutil"
)

const (
	maxExpectedSilences    = 3
	maxExpectedRepetitions = 2

	silenceFloor    = 60
	repetitionFloor = 70
	longCallFloor   = 15

	idealStepsPerMinute = 2.5
	idealTurnsPerMinute = 8

	hallucinationCutoff   = 60
	severeCriticalMinimum = 8
	objectiveIntentFloor  = 80
)

// penalty weight per fuzzy repetition kind; exact repetitions count once
var repetitionTypeMultipliers = map[string]float64{
	"exact_repetition":      2.0,
	"semantic_repetition":   1.8,
	"structural_repetition": 1.4,
	"conceptual_repetition": 1.2,
	"partial_repetition":    1.0,
}

// Components holds one value per weighted score component.
type Components struct {
	SilenceCompliance           float64 `json:"silenceCompliance"`
	RepetitionAvoidance         float64 `json:"repetitionAvoidance"`
	CallDurationOptimization    float64 `json:"callDurationOptimization"`
	ResponseLatencyOptimization float64 `json:"responseLatencyOptimization"`
	IntentFlowAccuracy          float64 `json:"intentFlowAccuracy"`
}

// Weighted returns the sum of each component multiplied by its weight.
func (c Components) Weighted(w Components) float64 {
	return c.SilenceCompliance*w.SilenceCompliance +
		c.RepetitionAvoidance*w.RepetitionAvoidance +
		c.CallDurationOptimization*w.CallDurationOptimization +
		c.ResponseLatencyOptimization*w.ResponseLatencyOptimization +
		c.IntentFlowAccuracy*w.IntentFlowAccuracy
}

// DefaultWeights are the fixed component weights.
func DefaultWeights() Components {
	return Components{
		SilenceCompliance:           0.25,
		RepetitionAvoidance:         0.25,
		CallDurationOptimization:    0.10,
		ResponseLatencyOptimization: 0.15,
		IntentFlowAccuracy:          0.25,
	}
}

// Explanations describe how each component score was reached.
type Explanations struct {
	SilenceCompliance           string `json:"silenceCompliance"`
	RepetitionAvoidance         string `json:"repetitionAvoidance"`
	CallDurationOptimization    string `json:"callDurationOptimization"`
	ResponseLatencyOptimization string `json:"responseLatencyOptimization"`
	IntentFlowAccuracy          string `json:"intentFlowAccuracy"`
}

// AdditionalScores are reported alongside the weighted score but do not
// contribute to it.
type AdditionalScores struct {
	HallucinationPrevention float64 `json:"hallucinationPrevention"`
	CriticalStepAdherence   float64 `json:"criticalStepAdherence"`
	InterruptionHandling    float64 `json:"interruptionHandling"`
	AudioQuality            float64 `json:"audioQuality"`
}

// ConversationAnalysis summarises the intent flow for the breakdown.
type ConversationAnalysis struct {
	TotalTurns              int            `json:"totalTurns"`
	AverageConfidence       string         `json:"averageConfidence"`
	CompletedSteps          int            `json:"completedSteps"`
	TotalSteps              int            `json:"totalSteps"`
	MissingCriticalSteps    []int          `json:"missingCriticalSteps"`
	ConversationQuality     intent.Quality `json:"conversationQuality"`
	ObjectiveAchieved       bool           `json:"objectiveAchieved"`
	CriticalStepsCompletion string         `json:"criticalStepsCompletion"`
}

// SupplementaryMetrics are the non-weighted scores clients display.
type SupplementaryMetrics struct {
	HallucinationScore float64 `json:"hallucinationScore"`
	InterruptionScore  float64 `json:"interruptionScore"`
	AudioQualityScore  float64 `json:"audioQualityScore"`
}

// Breakdown explains the overall score.
type Breakdown struct {
	OverallScore         float64              `json:"overallScore"`
	ComponentScores      Components           `json:"componentScores"`
	AdditionalScores     AdditionalScores     `json:"additionalScores"`
	Weights              Components           `json:"weights"`
	Explanations         Explanations         `json:"explanations"`
	ConversationAnalysis ConversationAnalysis `json:"conversationAnalysis"`
	SupplementaryMetrics SupplementaryMetrics `json:"supplementaryMetrics"`
}

// Inputs are the sub-analyses the aggregator combines.
type Inputs struct {
	Silences      []audio.SilenceSegment
	Repetitions   []repetition.Repetition
	Duration      DurationAnalysis
	Latency       latency.Analysis
	Hallucination hallucination.Analysis
	Interruption  interruption.Analysis
	AudioQuality  audio.QualityAnalysis
	Intent        intent.Flow
}

// Aggregator combines sub-analyses into the overall call score.
type Aggregator struct {
	logger  *logrus.Logger
	weights Components
}

// NewAggregator creates an aggregator using DefaultWeights.
func NewAggregator(logger *logrus.Logger) *Aggregator {
	return &Aggregator{logger: logger, weights: DefaultWeights()}
}

// Score computes the overall 0-100 score and its breakdown.
func (a *Aggregator) Score(in Inputs) (float64, Breakdown) {
	scores := Components{
		SilenceCompliance:           SilenceScore(in.Silences),
		RepetitionAvoidance:         RepetitionScore(in.Repetitions),
		CallDurationOptimization:    DurationScore(in.Duration, in.Intent),
		ResponseLatencyOptimization: LatencyScore(in.Latency, in.Interruption),
		IntentFlowAccuracy:          IntentScore(in.Intent, in.Hallucination),
	}
	overall := textutil.Round(textutil.Clamp(scores.Weighted(a.weights), 0, 100), 1)

	breakdown := Breakdown{
		OverallScore:    overall,
		ComponentScores: scores,
		AdditionalScores: AdditionalScores{
			HallucinationPrevention: in.Hallucination.Score(),
			CriticalStepAdherence:   in.Hallucination.CriticalStepAnalysis.CriticalStepScore,
			InterruptionHandling:    in.Interruption.InterruptionScore,
			AudioQuality:            in.AudioQuality.OverallScore,
		},
		Weights:              a.weights,
		Explanations:         explain(in),
		ConversationAnalysis: conversationAnalysis(in.Intent),
		SupplementaryMetrics: SupplementaryMetrics{
			HallucinationScore: in.Hallucination.Score(),
			InterruptionScore:  in.Interruption.InterruptionScore,
			AudioQualityScore:  in.AudioQuality.OverallScore,
		},
	}

	a.logger.WithFields(logrus.Fields{
		"overall":      overall,
		"silence":      scores.SilenceCompliance,
		"repetition":   scores.RepetitionAvoidance,
		"duration":     scores.CallDurationOptimization,
		"latency":      scores.ResponseLatencyOptimization,
		"intent_flow":  scores.IntentFlowAccuracy,
		"objective_ok": in.Intent.ObjectiveAchieved,
	}).Debug("Weighted score calculated")
	return overall, breakdown
}

// SilenceScore penalises medium and high priority silences by count and
// average severity, never below 60 once a penalty applies.
func SilenceScore(segments []audio.SilenceSegment) float64 {
	count := 0
	var severity float64
	for _, s := range segments {
		if s.Priority == "high" || s.Priority == "medium" {
			count++
			if s.Severity != 0 {
				severity += s.Severity
			} else {
				severity++
			}
		}
	}
	if count == 0 {
		return 100
	}
	multiplier := math.Min(1.5, 1+severity/float64(count)*0.5)
	return math.Max(silenceFloor, 100-float64(count)/maxExpectedSilences*40*multiplier)
}

// RepetitionScore penalises problematic repetitions above severity 5,
// weighted by severity and kind, never below 70 once a penalty applies.
func RepetitionScore(reps []repetition.Repetition) float64 {
	var weighted float64
	penalised := false
	for _, r := range reps {
		if !r.IsProblematicRepetition || r.Severity <= 5 {
			continue
		}
		penalised = true
		typeMultiplier, ok := repetitionTypeMultipliers[r.RepetitionType]
		if !ok {
			typeMultiplier = 1
		}
		weighted += r.Severity / 10 * typeMultiplier
	}
	if !penalised {
		return 100
	}
	return math.Max(repetitionFloor, 100-weighted/maxExpectedRepetitions*30)
}

// DurationScore is 100 inside the ideal range. Short calls lose 15 points
// per minute of deviation and recover 20 when the objective was achieved;
// long calls lose 11 per minute, recover up to 10 for efficiency and never
// drop below 15.
func DurationScore(d DurationAnalysis, flow intent.Flow) float64 {
	if d.WithinIdealRange {
		return 100
	}
	score := 100.0
	switch d.Status {
	case StatusTooShort:
		bonus := 0.0
		if flow.ObjectiveAchieved {
			bonus = 20
		}
		score = math.Max(0, 100-d.DeviationFromIdeal*15+bonus)
	case StatusTooLong:
		bonus := math.Min(10, ConversationEfficiency(flow, d.TotalDurationMinutes)*10)
		score = math.Max(longCallFloor, 100-d.DeviationFromIdeal*11+bonus)
	}
	return math.Min(100, score)
}

// ConversationEfficiency rates 0-1 how much of the script the call covered
// per minute against two and a half steps and eight turns a minute.
func ConversationEfficiency(flow intent.Flow, minutes float64) float64 {
	if flow.IntentMappings == nil || minutes <= 0 {
		return 0.5
	}
	required := flow.TotalRequiredSteps
	if required == 0 {
		required = 10
	}
	steps := float64(flow.CompletedSteps)
	stepEfficiency := math.Min(1, steps/minutes/idealStepsPerMinute)
	turnEfficiency := math.Min(1, float64(len(flow.IntentMappings))/minutes/idealTurnsPerMinute)
	completion := steps / float64(required)
	return stepEfficiency*0.4 + turnEfficiency*0.3 + completion*0.3
}

// LatencyScore takes the latency analysis score and removes 30% of the
// interruption score's shortfall from 100.
func LatencyScore(l latency.Analysis, in interruption.Analysis) float64 {
	score := l.LatencyScore
	if in.InterruptionScore != 0 {
		penalty := math.Max(0, (100-in.InterruptionScore)*0.3)
		score = math.Max(0, score-penalty)
	}
	return score
}

// IntentScore starts from the flow score and applies the objective and
// critical-step bonuses, then the hallucination and severe-violation
// penalties. An achieved objective always scores at least 80.
func IntentScore(flow intent.Flow, h hallucination.Analysis) float64 {
	score := flow.FlowScore

	if flow.ObjectiveAchieved {
		score = math.Min(100, math.Max(score, 75)+20)
	}

	switch rate := flow.CriticalStepsAnalysis.CompletionRate; {
	case rate >= 1:
		score = math.Min(100, score+15)
	case rate >= 0.75:
		score = math.Min(100, score+10)
	case rate >= 0.5:
		score = math.Min(100, score+5)
	}

	if hs := h.Score(); hs < hallucinationCutoff {
		score = math.Max(50, score-(hallucinationCutoff-hs)*0.2)
	}
	if severe := h.CriticalStepAnalysis.SevereViolations(severeCriticalMinimum); severe > 0 {
		score = math.Max(40, score-float64(severe*5))
	}

	if flow.ObjectiveAchieved && score < objectiveIntentFloor {
		score = objectiveIntentFloor
	}
	return score
}

func explain(in Inputs) Explanations {
	problematicSilences := 0
	for _, s := range in.Silences {
		if s.Priority == "high" || s.Priority == "medium" {
			problematicSilences++
		}
	}
	problematicReps := 0
	for _, r := range in.Repetitions {
		if r.IsProblematicRepetition {
			problematicReps++
		}
	}

	objective := "NO"
	if in.Intent.ObjectiveAchieved {
		objective = "YES (+20 bonus)"
	}

	return Explanations{
		SilenceCompliance: fmt.Sprintf("Found %d silence violations, %d problematic (threshold: %d) after context, quality and flow validation",
			len(in.Silences), problematicSilences, maxExpectedSilences),
		RepetitionAvoidance: fmt.Sprintf("Found %d potential repetitions, %d truly problematic (threshold: %d)",
			len(in.Repetitions), problematicReps, maxExpectedRepetitions),
		CallDurationOptimization: fmt.Sprintf("Call duration: %.1fmin (ideal: %g-%gmin)",
			in.Duration.TotalDurationMinutes, in.Duration.IdealRangeMin, in.Duration.IdealRangeMax),
		ResponseLatencyOptimization: fmt.Sprintf("Response latency: %d violations, Avg: %.1fs, Interruption handling integrated",
			in.Latency.TotalViolations, in.Latency.AverageResponseTime),
		IntentFlowAccuracy: fmt.Sprintf("Base flow %.1f/100, Objective achieved: %s, Critical steps: %.0f%%",
			in.Intent.FlowScore, objective, in.Intent.CriticalStepsAnalysis.CompletionRate*100),
	}
}

func conversationAnalysis(flow intent.Flow) ConversationAnalysis {
	confidence := "0%"
	if flow.AverageConfidence != 0 {
		confidence = fmt.Sprintf("%.1f%%", flow.AverageConfidence*100)
	}
	total := flow.CriticalStepsAnalysis.TotalCriticalSteps
	if total == 0 {
		total = len(intent.CriticalSteps)
	}
	missing := flow.MissingCriticalSteps
	if missing == nil {
		missing = []int{}
	}
	return ConversationAnalysis{
		TotalTurns:              len(flow.IntentMappings),
		AverageConfidence:       confidence,
		CompletedSteps:          flow.CompletedSteps,
		TotalSteps:              flow.TotalRequiredSteps,
		MissingCriticalSteps:    missing,
		ConversationQuality:     flow.ConversationQuality,
		ObjectiveAchieved:       flow.ObjectiveAchieved,
		CriticalStepsCompletion: fmt.Sprintf("%d/%d", len(flow.CriticalStepsAnalysis.Completed), total),
	}
}
