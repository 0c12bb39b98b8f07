package intent

import (
	"sort"

	"callqa-server/pkg/textutil"
)

// Progress is one detected (non-unknown) step in turn order.
type Progress struct {
	Step       int     `json:"step"`
	Intent     string  `json:"intent"`
	Confidence float64 `json:"confidence"`
	TurnNumber int     `json:"turnNumber"`
}

// FlowAnalysis is the contextual flow score and its components.
type FlowAnalysis struct {
	FlowScore              float64  `json:"flowScore"`
	CompletedRequiredSteps int      `json:"completedRequiredSteps"`
	TotalRequiredSteps     int      `json:"totalRequiredSteps"`
	MissingCriticalSteps   []string `json:"missingCriticalSteps"`
	ContextName            string   `json:"contextName"`
	RequiredStepsScore     float64  `json:"requiredStepsScore"`
	ConditionalScore       float64  `json:"conditionalScore"`
	ConfidenceBonus        float64  `json:"confidenceBonus"`
	SequentialBonus        float64  `json:"sequentialBonus"`
}

// ScoreFlow computes the 0-100 flow score of a call against its context:
// 20 base, 40 required steps, 20 conditional steps, 10 confidence, 10 order.
func (c *Catalog) ScoreFlow(ctx Context, progression []Progress, mappings []Mapping) FlowAnalysis {
	completed := make(map[int]bool, len(progression))
	for _, p := range progression {
		completed[p.Step] = true
	}

	completedRequired := 0
	for _, s := range ctx.RequiredSteps {
		if completed[s] {
			completedRequired++
		}
	}

	score := 20.0

	requiredScore := float64(completedRequired) / float64(len(ctx.RequiredSteps)) * 40
	score += requiredScore

	conditionalScore := 20.0
	if len(ctx.ConditionalSteps) > 0 {
		content := conversationText(mappings)
		applicable, done := 0, 0

		conditions := make([]string, 0, len(ctx.ConditionalSteps))
		for name := range ctx.ConditionalSteps {
			conditions = append(conditions, name)
		}
		sort.Strings(conditions)

		for _, name := range conditions {
			if !conditionMet(name, content, mappings) {
				continue
			}
			steps := ctx.ConditionalSteps[name]
			applicable += len(steps)
			for _, s := range steps {
				if completed[s] {
					done++
				}
			}
		}
		if applicable > 0 {
			conditionalScore = float64(done) / float64(applicable) * 20
		}
	}
	score += conditionalScore

	confidenceBonus := 0.0
	if len(progression) > 0 {
		high := 0
		for _, p := range progression {
			if p.Confidence > 0.7 {
				high++
			}
		}
		confidenceBonus = float64(high) / float64(len(progression)) * 10
	}
	score += confidenceBonus

	sequentialBonus := 0.0
	if len(progression) > 1 {
		ordered := 0
		for i := 1; i < len(progression); i++ {
			if progression[i].Step >= progression[i-1].Step {
				ordered++
			}
		}
		sequentialBonus = float64(ordered) / float64(len(progression)-1) * 10
	}
	score += sequentialBonus

	missing := []string{}
	for _, n := range ctx.RequiredSteps {
		step, ok := c.steps[n]
		if ok && step.Critical && !completed[n] {
			missing = append(missing, step.Intent)
		}
	}

	return FlowAnalysis{
		FlowScore:              textutil.Clamp(score, 0, 100),
		CompletedRequiredSteps: completedRequired,
		TotalRequiredSteps:     len(ctx.RequiredSteps),
		MissingCriticalSteps:   missing,
		ContextName:            ctx.Name,
		RequiredStepsScore:     requiredScore,
		ConditionalScore:       conditionalScore,
		ConfidenceBonus:        confidenceBonus,
		SequentialBonus:        sequentialBonus,
	}
}
