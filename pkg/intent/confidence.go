package intent

import (
	"math"
	"strings"

	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

var (
	vagueAgentPatterns = textutil.MustWordPatterns(
		`okay|ok|ठीक है|समझ गई`,
		`हाँ|yes|हम्म|hmm`,
		`और कुछ|anything else|कोई और`,
		`देखते हैं|let's see|पता नहीं`,
	)
	vagueCustomerPatterns = textutil.MustWordPatterns(
		`हाँ|yes|ठीक है|okay|ok`,
		`नहीं|no|ना`,
		`पता नहीं|don't know|मालूम नहीं`,
		`शायद|maybe|हो सकता है`,
		`हम्म|hmm|उम्म|umm`,
	)
)

// IsVague reports whether a turn carries little intent signal: very short
// text, or filler phrases making up most of it.
func IsVague(text string, speaker transcript.Speaker) bool {
	lower := strings.ToLower(text)
	length := len([]rune(lower))
	if length < 10 {
		return true
	}

	patterns := vagueCustomerPatterns
	if speaker.IsAgent() {
		patterns = vagueAgentPatterns
	}
	matches := textutil.CountMatches(patterns, lower)
	return matches >= 2 || (matches >= 1 && length < 20)
}

// PriorityConfidence weights mapping confidences by how much they matter to
// the resolved context. Critical steps weigh most, vague filler least.
func (c *Catalog) PriorityConfidence(mappings []Mapping, ctx Context) float64 {
	if len(mappings) == 0 {
		return 0
	}

	critical := make(map[string]bool)
	for _, n := range ctx.RequiredSteps {
		if s, ok := c.steps[n]; ok && s.Critical {
			critical[s.Intent] = true
		}
	}

	var total, weights float64
	add := func(conf, w float64) {
		total += conf * w
		weights += w
	}

	for _, m := range mappings {
		vague := IsVague(m.Text, m.Speaker)
		isCritical := critical[m.ConversationStep]
		high := m.Confidence > 0.7
		medium := m.Confidence >= 0.4 && m.Confidence <= 0.7

		switch {
		case isCritical && high:
			add(m.Confidence, 3.0)
		case isCritical && medium:
			add(m.Confidence, 2.5)
		case !isCritical && !vague && high:
			add(m.Confidence, 2.0)
		case !isCritical && !vague && medium:
			add(m.Confidence, 1.5)
		case !isCritical && !vague:
			add(m.Confidence, 1.0)
		}

		if vague {
			add(m.Confidence, 0.5)
		}
	}

	if weights == 0 {
		return 0
	}
	return total / weights
}

// Quality is the overall conversation-quality rating.
type Quality struct {
	Rating    string           `json:"rating"`
	Score     int              `json:"score"`
	Factors   QualityFactors   `json:"factors"`
	Breakdown QualityBreakdown `json:"breakdown"`
}

type QualityFactors struct {
	ContextAppropriate  bool `json:"contextAppropriate"`
	GoodConfidence      bool `json:"goodConfidence"`
	ExcellentConfidence bool `json:"excellentConfidence"`
	NoCriticalMissing   bool `json:"noCriticalMissing"`
	GoodFlow            bool `json:"goodFlow"`
}

type QualityBreakdown struct {
	CompletionScore    int `json:"completionScore"`
	ConfidenceScore    int `json:"confidenceScore"`
	CriticalStepsScore int `json:"criticalStepsScore"`
	FlowScore          int `json:"flowScore"`
}

// AssessQuality rates a call from its flow analysis and average confidence:
// 40 completion, 30 confidence, 20 critical steps, 10 ordering.
func AssessQuality(flow FlowAnalysis, averageConfidence float64) Quality {
	completionRate := 0.0
	if flow.TotalRequiredSteps > 0 {
		completionRate = float64(flow.CompletedRequiredSteps) / float64(flow.TotalRequiredSteps)
	}
	criticalScore := math.Max(0, 20-float64(len(flow.MissingCriticalSteps))*5)

	score := completionRate*40 + averageConfidence*30 + criticalScore + flow.SequentialBonus

	rating := "Poor"
	switch {
	case score >= 85:
		rating = "Excellent"
	case score >= 70:
		rating = "Good"
	case score >= 50:
		rating = "Fair"
	}

	return Quality{
		Rating: rating,
		Score:  int(textutil.Round(score, 0)),
		Factors: QualityFactors{
			ContextAppropriate:  completionRate > 0.8,
			GoodConfidence:      averageConfidence > 0.6,
			ExcellentConfidence: averageConfidence > 0.8,
			NoCriticalMissing:   len(flow.MissingCriticalSteps) == 0,
			GoodFlow:            flow.SequentialBonus > 5,
		},
		Breakdown: QualityBreakdown{
			CompletionScore:    int(textutil.Round(completionRate*40, 0)),
			ConfidenceScore:    int(textutil.Round(averageConfidence*30, 0)),
			CriticalStepsScore: int(textutil.Round(criticalScore, 0)),
			FlowScore:          int(textutil.Round(flow.SequentialBonus, 0)),
		},
	}
}
