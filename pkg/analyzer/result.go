package analyzer

import (
	"callqa-server/pkg/audio"
	"callqa-server/pkg/hallucination"
	"callqa-server/pkg/intent"
	"callqa-server/pkg/interruption"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/repetition"
	"callqa-server/pkg/scoring"
)

// Approach records which input each metric was drawn from.
type Approach struct {
	AudioPrimary      []string `json:"audioPrimary"`
	TranscriptPrimary []string `json:"transcriptPrimary"`
	Enhanced          []string `json:"enhanced"`
	AudioSynthetic    bool     `json:"audioSynthetic"`
}

// BusinessAnalysis summarises the call against the property-search script.
type BusinessAnalysis struct {
	UseCase                  string `json:"useCase"`
	CriticalSteps            []int  `json:"criticalSteps"`
	AlternativeCriticalSteps []int  `json:"alternativeCriticalSteps"`
	ObjectiveAchieved        bool   `json:"objectiveAchieved"`
	ObjectiveLogic           string `json:"objectiveLogic"`
}

// Result is the complete analysis of one call.
type Result struct {
	AnalysisID              string                   `json:"analysisId"`
	OverallScore            float64                  `json:"overallScore"`
	CallDuration            float64                  `json:"callDuration"`
	SilenceViolations       []audio.SilenceSegment   `json:"silenceViolations"`
	Repetitions             []repetition.Repetition  `json:"repetitions"`
	IntentFlow              intent.Flow              `json:"intentFlow"`
	CallDurationAnalysis    scoring.DurationAnalysis `json:"callDurationAnalysis"`
	ResponseLatencyAnalysis latency.Analysis         `json:"responseLatencyAnalysis"`
	HallucinationAnalysis   hallucination.Analysis   `json:"hallucinationAnalysis"`
	InterruptionAnalysis    interruption.Analysis    `json:"interruptionAnalysis"`
	AudioQualityAnalysis    audio.QualityAnalysis    `json:"audioQualityAnalysis"`
	ScoreBreakdown          scoring.Breakdown        `json:"scoreBreakdown"`
	VisualizationData       audio.Visualization      `json:"visualizationData"`
	AnalysisApproach        Approach                 `json:"analysisApproach"`
	MagicBricksAnalysis     BusinessAnalysis         `json:"magicBricksAnalysis"`
	FailedStages            []string                 `json:"failedStages,omitempty"`
}

// Summary is the compact form of a result sent to downstream consumers.
type Summary struct {
	AnalysisID        string             `json:"analysisId"`
	OverallScore      float64            `json:"overallScore"`
	ComponentScores   scoring.Components `json:"componentScores"`
	ObjectiveAchieved bool               `json:"objectiveAchieved"`
	MissingSteps      []int              `json:"missingCriticalSteps"`
	SilenceCount      int                `json:"silenceViolations"`
	RepetitionCount   int                `json:"repetitions"`
	Hallucinations    int                `json:"hallucinations"`
	LatencyViolations int                `json:"latencyViolations"`
	CallDuration      float64            `json:"callDuration"`
	FailedStages      []string           `json:"failedStages,omitempty"`
}

// Summary returns the compact form of r.
func (r Result) Summary() Summary {
	return Summary{
		AnalysisID:        r.AnalysisID,
		OverallScore:      r.OverallScore,
		ComponentScores:   r.ScoreBreakdown.ComponentScores,
		ObjectiveAchieved: r.IntentFlow.ObjectiveAchieved,
		MissingSteps:      r.IntentFlow.MissingCriticalSteps,
		SilenceCount:      len(r.SilenceViolations),
		RepetitionCount:   len(r.Repetitions),
		Hallucinations:    len(r.HallucinationAnalysis.Hallucinations),
		LatencyViolations: r.ResponseLatencyAnalysis.TotalViolations,
		CallDuration:      r.CallDuration,
		FailedStages:      r.FailedStages,
	}
}

func approach(data *audio.Data) Approach {
	return Approach{
		AudioPrimary:      []string{"silence", "latency", "hallucination", "interruption", "audioQuality", "callDuration"},
		TranscriptPrimary: []string{"repetition", "intentFlow"},
		Enhanced:          []string{"criticalStepAnalysis", "contextAdherence", "queryAddressing"},
		AudioSynthetic:    data != nil && data.Synthetic,
	}
}

func businessAnalysis(flow intent.Flow) BusinessAnalysis {
	return BusinessAnalysis{
		UseCase:                  "MagicBricks Property Search",
		CriticalSteps:            append([]int{}, intent.CriticalSteps...),
		AlternativeCriticalSteps: append([]int{}, intent.AlternativeCriticalSteps...),
		ObjectiveAchieved:        flow.ObjectiveAchieved,
		ObjectiveLogic:           "Step 9 (Call Transfer) + Affirmative Response = Objective Achieved",
	}
}
