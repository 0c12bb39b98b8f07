package repetition

import (
	"math"
	"sort"
	"strings"

	"callqa-server/pkg/transcript"
)

const (
	// fuzzyWindow bounds how many bot lines ahead each line is compared with.
	fuzzyWindow         = 5
	fuzzyMinSeverity    = 5.0
	distantThreshold    = 0.9
	justifiedAbove      = 0.4
	severityDistanceCap = 20.0
)

// Repetition kinds assigned by the fuzzy pass.
const (
	KindExact      = "exact"
	KindSemantic   = "semantic"
	KindStructural = "structural"
	KindConceptual = "conceptual"
	KindPartial    = "partial"
)

var kindRecommendations = map[string]string{
	KindExact:      "Critical: Identical responses detected. Review bot logic for dynamic responses.",
	KindSemantic:   "High: Same meaning repeated. Add response variations or context awareness.",
	KindStructural: "Medium: Similar sentence patterns. Diversify response templates.",
	KindConceptual: "Medium: Similar concepts repeated. Improve conversation flow logic.",
	KindPartial:    "Low: Minor repetition detected. Monitor for patterns.",
}

// fuzzy compares nearby bot lines that the exact passes did not already
// flag and keeps the problematic ones, most severe first.
func (d *Detector) fuzzy(turns []transcript.Turn, bots []botLine) []Repetition {
	var out []Repetition
	for i := range bots {
		for j := i + 1; j < len(bots) && j <= i+fuzzyWindow; j++ {
			a, b := bots[i], bots[j]
			consecutive := noCustomerBetween(turns, a.pos, b.pos)
			if identical(a, b) && consecutive {
				continue
			}

			rep, ok := d.analyzePair(a, b, consecutive)
			if ok {
				out = append(out, rep)
			}
		}
	}

	sort.SliceStable(out, func(i, j int) bool { return out[i].Severity > out[j].Severity })
	return out
}

func (d *Detector) analyzePair(a, b botLine, consecutive bool) (Repetition, bool) {
	sim := Compare(a.turn.Text, b.turn.Text)
	score, reasons := justification(a.turn.Text, b.turn.Text, consecutive)

	problematic := false
	switch {
	case score > justifiedAbove:
	case consecutive:
		problematic = sim.Overall > d.threshold
	default:
		problematic = sim.Overall > distantThreshold
	}
	if !problematic {
		return Repetition{}, false
	}

	severity := Severity(sim.Overall, b.turn.Index-a.turn.Index)
	if severity <= fuzzyMinSeverity {
		return Repetition{}, false
	}

	kind := Classify(sim)
	return Repetition{
		Type:                    TypeFuzzy,
		Text1:                   a.turn.Text,
		Text2:                   b.turn.Text,
		Turn1:                   a.turn.Index + 1,
		Turn2:                   b.turn.Index + 1,
		SimilarityScore:         sim.Overall,
		Severity:                severity,
		IsProblematicRepetition: true,
		Recommendation:          Recommendation(kind, severity),
		RepetitionType:          kind,
		Similarity:              &sim,
		Justification:           reasons,
		Priority:                priority(severity),
		ActionRequired:          severity > 7,
		BusinessImpact:          businessImpact(severity),
	}, true
}

// justification scores how defensible a repeat is in a scripted call.
func justification(a, b string, consecutive bool) (float64, []string) {
	either := func(subs ...string) bool {
		for _, s := range subs {
			if strings.Contains(a, s) || strings.Contains(b, s) {
				return true
			}
		}
		return false
	}

	var score float64
	var reasons []string
	if either("क्या", "confirm") {
		score += 0.3
		reasons = append(reasons, "Clarification request")
	}
	if !consecutive {
		score += 0.4
		reasons = append(reasons, "Different conversation context")
	}
	if either("नमस्ते", "धन्यवाद") {
		score += 0.5
		reasons = append(reasons, "Standard greeting/closing")
	}
	if either("सही है", "correct") {
		score += 0.3
		reasons = append(reasons, "Information confirmation")
	}
	return math.Min(score, 1), reasons
}

// Classify names the dominant kind of resemblance.
func Classify(s Similarity) string {
	switch {
	case s.Lexical > 0.9 && s.Structural > 0.8:
		return KindExact
	case s.Semantic > 0.8 && s.Lexical > 0.6:
		return KindSemantic
	case s.Structural > 0.8 && s.Lexical < 0.6:
		return KindStructural
	case s.Semantic > 0.7:
		return KindConceptual
	}
	return KindPartial
}

// Severity grows with similarity and decays with turn distance, on a 0-10 scale.
func Severity(similarity float64, distance int) float64 {
	decay := math.Max(0.1, 1-math.Abs(float64(distance))/severityDistanceCap)
	return math.Min(similarity*similarity*decay*10, 10)
}

// Recommendation returns the advice for a repetition kind with a priority tag.
func Recommendation(kind string, severity float64) string {
	rec, ok := kindRecommendations[kind]
	if !ok {
		rec = kindRecommendations[KindPartial]
	}
	switch {
	case severity > 7:
		return rec + " [HIGH PRIORITY]"
	case severity > 4:
		return rec + " [MEDIUM PRIORITY]"
	}
	return rec + " [LOW PRIORITY]"
}

func priority(severity float64) string {
	switch {
	case severity > 8:
		return "high"
	case severity > 6:
		return "medium"
	}
	return "low"
}

func businessImpact(severity float64) string {
	switch {
	case severity > 8:
		return "High - May confuse customers and appear robotic"
	case severity > 6:
		return "Medium - Could affect conversation flow"
	}
	return "Low - Minor impact on user experience"
}
