package audio

import "callqa-server/pkg/transcript"

// Silence is a raw silence candidate reported by the audio source, in seconds.
type Silence struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
}

// TurnTiming places one transcript turn on the audio timeline.
type TurnTiming struct {
	Speaker   transcript.Speaker `json:"speaker"`
	StartTime float64            `json:"startTime"`
	EndTime   float64            `json:"endTime"`
}

// SpeechSegment carries recogniser-side indicators for one turn. Zero values
// mean "not measured".
type SpeechSegment struct {
	TurnIndex       int      `json:"turnIndex"`
	Confidence      float64  `json:"confidence,omitempty"`
	HesitationCount int      `json:"hesitationCount,omitempty"`
	WordsPerMinute  float64  `json:"wordsPerMinute,omitempty"`
	ToneConsistency float64  `json:"toneConsistency,omitempty"`
	Patterns        []string `json:"patterns,omitempty"`
}

// SpeakerTransition describes the hand-over around an overlap.
type SpeakerTransition struct {
	RecoveryTime float64 `json:"recoveryTime,omitempty"`
	FlowScore    float64 `json:"flowScore,omitempty"`
}

// InterruptionEvent is one measured speaker overlap.
type InterruptionEvent struct {
	TurnIndex         int               `json:"turnIndex"`
	Type              string            `json:"type"`
	OverlapDuration   float64           `json:"overlapDuration,omitempty"`
	SilenceDuration   float64           `json:"silenceDuration,omitempty"`
	EnergyLevel       float64           `json:"energyLevel,omitempty"`
	UrgencyIndicators int               `json:"urgencyIndicators,omitempty"`
	SpeakerTransition SpeakerTransition `json:"speakerTransition,omitempty"`
}

// Metrics are measured signal-quality values. A nil pointer on Data means
// nothing was measured.
type Metrics struct {
	SNR               float64 `json:"snr"`
	THD               float64 `json:"thd"`
	Clarity           float64 `json:"clarity"`
	BackgroundNoise   float64 `json:"backgroundNoise"`
	VolumeConsistency float64 `json:"volumeConsistency"`
	FrequencyResponse float64 `json:"frequencyResponse"`
}

// Data is everything the audio side knows about a call. Analysis works with
// a nil *Data and falls back to transcript estimates.
type Data struct {
	Duration         float64             `json:"duration"`
	Format           string              `json:"format,omitempty"`
	SampleRate       int                 `json:"sampleRate,omitempty"`
	Channels         int                 `json:"channels,omitempty"`
	Silences         []Silence           `json:"silences"`
	TurnTimings      []TurnTiming        `json:"turnTimings,omitempty"`
	SpeechAnalysis   []SpeechSegment     `json:"speechAnalysis,omitempty"`
	InterruptionData []InterruptionEvent `json:"interruptionData,omitempty"`
	Metrics          *Metrics            `json:"metrics,omitempty"`
	Synthetic        bool                `json:"synthetic,omitempty"`
}

// HasTurnTimings reports whether measured turn boundaries are available.
func (d *Data) HasTurnTimings() bool {
	return d != nil && len(d.TurnTimings) > 0
}

// HasSpeechAnalysis reports whether per-turn speech indicators are available.
func (d *Data) HasSpeechAnalysis() bool {
	return d != nil && len(d.SpeechAnalysis) > 0
}

// HasInterruptionData reports whether measured overlaps are available.
func (d *Data) HasInterruptionData() bool {
	return d != nil && len(d.InterruptionData) > 0
}

// SpeechFor returns the speech segment recorded for a turn index.
func (d *Data) SpeechFor(turnIndex int) (SpeechSegment, bool) {
	if d == nil {
		return SpeechSegment{}, false
	}
	for _, s := range d.SpeechAnalysis {
		if s.TurnIndex == turnIndex {
			return s, true
		}
	}
	return SpeechSegment{}, false
}
