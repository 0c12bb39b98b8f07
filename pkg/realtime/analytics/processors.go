package analytics

import (
	"context"
	"fmt"
)

// StatsProcessor updates the rolling aggregates.
type StatsProcessor struct{}

// NewStatsProcessor creates a stats processor.
func NewStatsProcessor() *StatsProcessor {
	return &StatsProcessor{}
}

func (p *StatsProcessor) Process(_ context.Context, event *AnalysisEvent, state *State) error {
	r := event.Result
	state.TotalAnalyses++
	state.ScoreSum += r.OverallScore
	if r.IntentFlow.ObjectiveAchieved {
		state.ObjectiveAchieved++
	}
	if len(r.FailedStages) > 0 {
		state.DegradedAnalyses++
	}

	state.RecentScores = append(state.RecentScores, r.OverallScore)
	if len(state.RecentScores) > recentWindow {
		state.RecentScores = state.RecentScores[len(state.RecentScores)-recentWindow:]
	}
	return nil
}

// AlertRule inspects one analysis and returns an alert when it fires.
type AlertRule struct {
	ID    string
	Check func(event *AnalysisEvent) (Alert, bool)
}

// DefaultAlertRules flag low scores, missed objectives, long silences,
// off-script replies and degraded analyses.
func DefaultAlertRules() []AlertRule {
	return []AlertRule{
		{ID: "low_score", Check: func(e *AnalysisEvent) (Alert, bool) {
			score := e.Result.OverallScore
			if score >= 60 {
				return Alert{}, false
			}
			severity := "high"
			if score < 40 {
				severity = "critical"
			}
			return Alert{
				Type:     "low_score",
				Severity: severity,
				Message:  fmt.Sprintf("Overall score %.1f is below 60", score),
				Details:  map[string]interface{}{"overallScore": score},
			}, true
		}},
		{ID: "objective_missed", Check: func(e *AnalysisEvent) (Alert, bool) {
			flow := e.Result.IntentFlow
			if flow.ObjectiveAchieved {
				return Alert{}, false
			}
			return Alert{
				Type:     "objective_missed",
				Severity: "medium",
				Message:  "Call did not reach an agent hand-off",
				Details:  map[string]interface{}{"missingCriticalSteps": flow.MissingCriticalSteps},
			}, true
		}},
		{ID: "long_silences", Check: func(e *AnalysisEvent) (Alert, bool) {
			n := len(e.Result.SilenceViolations)
			if n < 3 {
				return Alert{}, false
			}
			return Alert{
				Type:     "long_silences",
				Severity: "medium",
				Message:  fmt.Sprintf("%d disruptive silences detected", n),
				Details:  map[string]interface{}{"count": n},
			}, true
		}},
		{ID: "off_script", Check: func(e *AnalysisEvent) (Alert, bool) {
			h := e.Result.HallucinationAnalysis
			if h.Score() >= 60 || len(h.Hallucinations) == 0 {
				return Alert{}, false
			}
			return Alert{
				Type:     "off_script",
				Severity: "high",
				Message:  fmt.Sprintf("%d bot replies deviated from the script", len(h.Hallucinations)),
				Details:  map[string]interface{}{"hallucinationScore": h.Score()},
			}, true
		}},
		{ID: "degraded", Check: func(e *AnalysisEvent) (Alert, bool) {
			if len(e.Result.FailedStages) == 0 {
				return Alert{}, false
			}
			return Alert{
				Type:     "degraded_analysis",
				Severity: "high",
				Message:  "Some analysis stages failed and used default results",
				Details:  map[string]interface{}{"failedStages": e.Result.FailedStages},
			}, true
		}},
	}
}

// AlertProcessor evaluates alert rules against each analysis.
type AlertProcessor struct {
	rules []AlertRule
}

// NewAlertProcessor creates an alert processor.
func NewAlertProcessor(rules []AlertRule) *AlertProcessor {
	return &AlertProcessor{rules: rules}
}

func (p *AlertProcessor) Process(_ context.Context, event *AnalysisEvent, state *State) error {
	for _, rule := range p.rules {
		if rule.Check == nil {
			continue
		}
		if alert, fired := rule.Check(event); fired {
			state.Alerts = append(state.Alerts, alert)
		}
	}
	return nil
}

// TrendProcessor raises an alert when a score falls well below the recent
// average for its source. It must run before StatsProcessor records the
// score.
type TrendProcessor struct {
	drop float64
}

// NewTrendProcessor creates a trend processor alerting on drops larger than
// drop points.
func NewTrendProcessor(drop float64) *TrendProcessor {
	return &TrendProcessor{drop: drop}
}

func (p *TrendProcessor) Process(_ context.Context, event *AnalysisEvent, state *State) error {
	if len(state.RecentScores) < 5 {
		return nil
	}

	avg := state.RecentAverage()
	if avg-event.Result.OverallScore <= p.drop {
		return nil
	}

	state.Alerts = append(state.Alerts, Alert{
		Type:     "score_drop",
		Severity: "medium",
		Message:  fmt.Sprintf("Score %.1f is %.1f points below the recent average", event.Result.OverallScore, avg-event.Result.OverallScore),
		Details: map[string]interface{}{
			"overallScore":  event.Result.OverallScore,
			"recentAverage": avg,
		},
	})
	return nil
}
