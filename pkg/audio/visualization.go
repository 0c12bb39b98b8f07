package audio

import "math"

const visualizationSampleRate = 100

// WaveformPoint is one sample of the amplitude envelope.
type WaveformPoint struct {
	Time      float64 `json:"time"`
	Amplitude float64 `json:"amplitude"`
}

// SilenceMarker places a reported silence on the waveform.
type SilenceMarker struct {
	Start    float64 `json:"start"`
	End      float64 `json:"end"`
	Duration float64 `json:"duration"`
	Speaker  string  `json:"speaker"`
}

// Visualization is the data a client needs to draw the call timeline.
type Visualization struct {
	Duration       float64         `json:"duration"`
	WaveformData   []WaveformPoint `json:"waveformData"`
	SilenceMarkers []SilenceMarker `json:"silenceMarkers"`
	SampleRate     int             `json:"sampleRate"`
}

// Visualize builds a decaying amplitude envelope sampled at 100 Hz over the
// call, with markers for the given silence segments. Calls without audio
// are drawn as three minutes long.
func Visualize(data *Data, segments []SilenceSegment) Visualization {
	duration := defaultCallLength
	if data != nil && data.Duration > 0 {
		duration = data.Duration
	}

	total := int(math.Floor(duration * visualizationSampleRate))
	points := make([]WaveformPoint, 0, total)
	for i := 0; i < total; i++ {
		t := float64(i) / visualizationSampleRate
		envelope := 0.5 * math.Sin(2*math.Pi*0.1*t) * math.Exp(-t/60)
		ripple := 0.15 * math.Sin(2*math.Pi*1.7*t)
		points = append(points, WaveformPoint{Time: t, Amplitude: envelope + ripple})
	}

	markers := make([]SilenceMarker, 0, len(segments))
	for _, s := range segments {
		markers = append(markers, SilenceMarker{
			Start:    s.StartTime,
			End:      s.EndTime,
			Duration: s.Duration,
			Speaker:  s.Speaker,
		})
	}

	return Visualization{
		Duration:       duration,
		WaveformData:   points,
		SilenceMarkers: markers,
		SampleRate:     visualizationSampleRate,
	}
}
