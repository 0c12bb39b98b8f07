package interruption

import (
	"math"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/transcript"
)

const (
	defaultEnergy  = 0.5
	defaultSilence = 1.0
	defaultFlow    = 0.8
)

// analyzeAudio rates each measured overlap, keeping the significant ones, and
// builds a turn-taking pattern from each overlap's pause and length.
func (a *Analyzer) analyzeAudio(turns []transcript.Turn, events []audio.InterruptionEvent) Analysis {
	interruptions := []Interruption{}
	patterns := make([]Pattern, 0, len(events))

	for _, ev := range events {
		prev, cur, next := neighbours(turns, ev.TurnIndex)
		if in, significant := rateOverlap(ev, prev, cur, next); significant {
			interruptions = append(interruptions, in)
		}
		patterns = append(patterns, overlapPattern(ev))
	}

	return summarize(interruptions, patterns, "audio_primary")
}

func neighbours(turns []transcript.Turn, i int) (prev, cur, next *transcript.Turn) {
	at := func(j int) *transcript.Turn {
		if j < 0 || j >= len(turns) {
			return nil
		}
		return &turns[j]
	}
	return at(i - 1), at(i), at(i + 1)
}

func rateOverlap(ev audio.InterruptionEvent, prev, cur, next *transcript.Turn) (Interruption, bool) {
	overlap := ev.OverlapDuration
	severity, handling := 0.0, 5.0
	significant := false

	switch ev.Type {
	case TypeBotInterruptsHuman:
		severity = math.Min(10, 5+overlap*2)
		handling = 2
		significant = overlap > 0.5
	case TypeHumanInterruptsBot:
		severity = math.Min(8, 3+overlap)
		if next != nil {
			handling = RecoveryQuality(next.Text)
		}
		significant = overlap > 0.3
	}

	recovery := ev.SpeakerTransition.RecoveryTime
	if recovery == 0 {
		recovery = RecoveryTime(textOf(cur), textOf(next))
	}

	kind := ev.Type
	if kind == "" {
		kind = "unknown"
	}
	return Interruption{
		TurnIndex:          ev.TurnIndex,
		InterruptionType:   kind,
		Severity:           severity,
		HandlingQuality:    handling,
		RecoveryTime:       recovery,
		ContextAppropriate: appropriateOverlap(ev, prev, cur),
		Recommendation:     Recommendation(kind, severity, handling),
		AnalysisSource:     "audio_primary",
	}, significant
}

// appropriateOverlap trusts a loud, urgent interruption and otherwise falls
// back to the wording of the two lines.
func appropriateOverlap(ev audio.InterruptionEvent, prev, cur *transcript.Turn) bool {
	energy := ev.EnergyLevel
	if energy == 0 {
		energy = defaultEnergy
	}
	if energy > 0.8 && ev.UrgencyIndicators > 2 {
		return true
	}
	if prev != nil && cur != nil {
		return appropriateInterruption(prev.Text, cur.Text)
	}
	return true
}

// overlapPattern rates a measured hand-over. A pause of half a second to two
// seconds is normal; overlaps over half a second cost two points.
func overlapPattern(ev audio.InterruptionEvent) Pattern {
	silence := ev.SilenceDuration
	if silence == 0 {
		silence = defaultSilence
	}
	overlap := ev.OverlapDuration

	quality := 8.0
	switch {
	case silence < 0.2:
		quality = 4
	case silence > 3.0:
		quality = 5
	}
	if overlap > 0.5 {
		quality -= 2
	}
	quality = math.Max(1, quality)

	smooth := overlap < 0.3
	transition := Transition{SpeakerChanged: true, Smooth: smooth, Quality: 6}
	if smooth {
		transition.Quality = 9
	}

	flow := ev.SpeakerTransition.FlowScore
	if flow == 0 {
		flow = defaultFlow
	}
	return Pattern{
		TurnGaps: TurnGap{
			SilenceDuration: silence,
			Quality:         quality,
			Appropriate:     silence >= 0.5 && silence <= 2.0,
		},
		SpeakerTransition:  transition,
		ConversationalFlow: flow,
		OverallQuality:     quality,
	}
}

func textOf(t *transcript.Turn) string {
	if t == nil {
		return ""
	}
	return t.Text
}
