package intent

import (
	"math"

	"callqa-server/pkg/textutil"
)

// completionThreshold is the mapping confidence above which a step counts as done.
const completionThreshold = 0.4

var affirmativePatterns = textutil.MustWordPatterns(
	`हाँ|yes|ठीक\s+है|okay|ok|sure|alright`,
	`बिल्कुल|जरूर|चलिए|ठीक`,
	`go\s+ahead|proceed|continue`,
)

// Objective reports whether the call reached a confirmed agent hand-off.
type Objective struct {
	ObjectiveAchieved              bool    `json:"objectiveAchieved"`
	PrimaryObjectiveComplete       bool    `json:"primaryObjectiveComplete"`
	AlternativeObjectiveComplete   bool    `json:"alternativeObjectiveComplete"`
	HasCallTransferWithAffirmation bool    `json:"hasCallTransferWithAffirmation"`
	CompletedCriticalSteps         []int   `json:"completedCriticalSteps"`
	TotalCriticalSteps             int     `json:"totalCriticalSteps"`
	MissingCriticalSteps           []int   `json:"missingCriticalSteps"`
	CompletionRate                 float64 `json:"completionRate"`
	ObjectiveAchievementReason     string  `json:"objectiveAchievementReason"`
}

// AnalyzeObjective checks critical-step completion and, failing that, whether
// the customer agreed after the transfer offer.
func AnalyzeObjective(mappings []Mapping) Objective {
	completed := make(map[int]bool)
	for _, m := range mappings {
		if m.Confidence > completionThreshold && m.StepNumber > 0 {
			completed[m.StepNumber] = true
		}
	}

	primary := presentSteps(CriticalSteps, completed)
	alternative := presentSteps(AlternativeCriticalSteps, completed)
	primaryComplete := len(primary) == len(CriticalSteps)
	alternativeComplete := len(alternative) == len(AlternativeCriticalSteps)

	hasTransfer := completed[9]
	affirmed := hasTransfer && hasAffirmativeAfterTransfer(mappings)

	achieved := primaryComplete || alternativeComplete || (affirmed && len(primary) >= 3)

	result := Objective{
		ObjectiveAchieved:              achieved,
		PrimaryObjectiveComplete:       primaryComplete,
		AlternativeObjectiveComplete:   alternativeComplete,
		HasCallTransferWithAffirmation: affirmed,
		TotalCriticalSteps:             len(CriticalSteps),
		MissingCriticalSteps:           []int{},
	}

	switch {
	case achieved && primaryComplete:
		result.CompletedCriticalSteps = primary
		result.ObjectiveAchievementReason = "All 4 critical steps completed"
	case achieved && alternativeComplete:
		result.CompletedCriticalSteps = alternative
		result.ObjectiveAchievementReason = "All 5 alternative critical steps completed"
	case achieved:
		result.CompletedCriticalSteps = unionSteps(primary, alternative)
		result.ObjectiveAchievementReason = "Call transfer with affirmative response"
	default:
		result.CompletedCriticalSteps = unionSteps(primary, alternative)
		result.ObjectiveAchievementReason = "Critical steps incomplete or no affirmative response to transfer"
	}

	if achieved {
		result.CompletionRate = 1.0
	} else {
		for _, s := range CriticalSteps {
			if !completed[s] {
				result.MissingCriticalSteps = append(result.MissingCriticalSteps, s)
			}
		}
		result.CompletionRate = math.Max(
			float64(len(primary))/float64(len(CriticalSteps)),
			float64(len(alternative))/float64(len(AlternativeCriticalSteps)),
		)
	}
	return result
}

// hasAffirmativeAfterTransfer scans customer turns after the last offer or
// transfer for a yes/okay variant.
func hasAffirmativeAfterTransfer(mappings []Mapping) bool {
	last := -1
	for i := len(mappings) - 1; i >= 0; i-- {
		step := mappings[i].ConversationStep
		if step == KeyCallTransfer || step == KeyAgentOffer {
			last = i
			break
		}
	}
	if last < 0 {
		return false
	}

	for _, m := range mappings[last+1:] {
		if m.Speaker.IsCustomer() && textutil.AnyMatch(affirmativePatterns, m.Text) {
			return true
		}
	}
	return false
}

func presentSteps(steps []int, completed map[int]bool) []int {
	out := []int{}
	for _, s := range steps {
		if completed[s] {
			out = append(out, s)
		}
	}
	return out
}

func unionSteps(a, b []int) []int {
	seen := make(map[int]bool, len(a)+len(b))
	out := []int{}
	for _, s := range append(append([]int{}, a...), b...) {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}
