package intent

import (
	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

// CriticalStepsAnalysis summarises completion of the four critical steps.
type CriticalStepsAnalysis struct {
	Completed          []int   `json:"completed"`
	Missing            []int   `json:"missing"`
	CompletionRate     float64 `json:"completionRate"`
	TotalCriticalSteps int     `json:"totalCriticalSteps"`
}

// Flow is the intent-flow section of an analysis result.
type Flow struct {
	IntentMappings        []Mapping             `json:"intentMappings"`
	FlowScore             float64               `json:"flowScore"`
	AverageConfidence     float64               `json:"averageConfidence"`
	CompletedSteps        int                   `json:"completedSteps"`
	TotalRequiredSteps    int                   `json:"totalRequiredSteps"`
	DetectedIntents       []string              `json:"detectedIntents"`
	StepProgression       []Progress            `json:"stepProgression"`
	MissingCriticalSteps  []int                 `json:"missingCriticalSteps"`
	ConversationContext   Context               `json:"conversationContext"`
	ContextualAnalysis    FlowAnalysis          `json:"contextualAnalysis"`
	ConversationQuality   Quality               `json:"conversationQuality"`
	CallObjective         Objective             `json:"callObjective"`
	ObjectiveAchieved     bool                  `json:"objectiveAchieved"`
	CriticalStepsAnalysis CriticalStepsAnalysis `json:"criticalStepsAnalysis"`
	AnalysisSource        string                `json:"analysisSource,omitempty"`
}

// Detect classifies every turn and scores the resulting flow. An empty turn
// list yields DefaultFlow.
func (c *Catalog) Detect(turns []transcript.Turn) Flow {
	if len(turns) == 0 {
		return DefaultFlow()
	}

	mappings := make([]Mapping, 0, len(turns))
	progression := []Progress{}
	detected := []string{}
	seen := make(map[string]bool)

	for _, turn := range turns {
		m := c.Classify(turn)
		mappings = append(mappings, Mapping{
			TurnNumber:       turn.Index + 1,
			Speaker:          turn.Speaker,
			Text:             textutil.Truncate(turn.Text, mappingTextMaxRunes),
			DetectedIntent:   m.Intent,
			Confidence:       textutil.Round(m.Confidence, 2),
			ConversationStep: m.Step,
			StepNumber:       m.StepNumber,
		})

		if m.Step == KeyUnknown {
			continue
		}
		if !seen[m.Step] {
			seen[m.Step] = true
			detected = append(detected, m.Step)
		}
		progression = append(progression, Progress{
			Step:       m.StepNumber,
			Intent:     m.Step,
			Confidence: m.Confidence,
			TurnNumber: turn.Index + 1,
		})
	}

	ctx := c.ResolveContext(mappings)
	flow := c.ScoreFlow(ctx, progression, mappings)
	average := c.PriorityConfidence(mappings, ctx)
	objective := AnalyzeObjective(mappings)

	return Flow{
		IntentMappings:       mappings,
		FlowScore:            textutil.Clamp(flow.FlowScore, 0, 100),
		AverageConfidence:    average,
		CompletedSteps:       len(objective.CompletedCriticalSteps),
		TotalRequiredSteps:   objective.TotalCriticalSteps,
		DetectedIntents:      detected,
		StepProgression:      progression,
		MissingCriticalSteps: objective.MissingCriticalSteps,
		ConversationContext:  ctx,
		ContextualAnalysis:   flow,
		ConversationQuality:  AssessQuality(flow, average),
		CallObjective:        objective,
		ObjectiveAchieved:    objective.ObjectiveAchieved,
		CriticalStepsAnalysis: CriticalStepsAnalysis{
			Completed:          objective.CompletedCriticalSteps,
			Missing:            objective.MissingCriticalSteps,
			CompletionRate:     objective.CompletionRate,
			TotalCriticalSteps: len(CriticalSteps),
		},
	}
}

// DefaultFlow is returned when there is nothing to classify or the analysis failed.
func DefaultFlow() Flow {
	missing := append([]int{}, CriticalSteps...)
	return Flow{
		IntentMappings:       []Mapping{},
		FlowScore:            50,
		AverageConfidence:    0.5,
		CompletedSteps:       0,
		TotalRequiredSteps:   len(CriticalSteps),
		DetectedIntents:      []string{},
		StepProgression:      []Progress{},
		MissingCriticalSteps: missing,
		ConversationContext:  Context{Name: "Unknown Context"},
		ContextualAnalysis: FlowAnalysis{
			FlowScore:            50,
			TotalRequiredSteps:   len(CriticalSteps),
			MissingCriticalSteps: []string{},
		},
		ConversationQuality: Quality{Rating: "Unknown", Score: 50},
		CallObjective: Objective{
			TotalCriticalSteps:     len(CriticalSteps),
			CompletedCriticalSteps: []int{},
			MissingCriticalSteps:   missing,
		},
		CriticalStepsAnalysis: CriticalStepsAnalysis{
			Completed:          []int{},
			Missing:            missing,
			TotalCriticalSteps: len(CriticalSteps),
		},
		AnalysisSource: "default_fallback",
	}
}
