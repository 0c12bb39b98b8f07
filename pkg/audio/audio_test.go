package audio

import (
	"io"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func silenceAt(start, duration float64) Silence {
	return Silence{Start: start, End: start + duration, Duration: duration}
}

func TestSilenceBelowThresholdNeverReported(t *testing.T) {
	data := &Data{Duration: 180, Silences: []Silence{silenceAt(20, 4.9)}}
	segs := NewSilenceAnalyzer(quietLogger(), 5.0, nil).Detect(data)
	assert.Empty(t, segs)
	assert.NotNil(t, segs)
}

func TestLongSilenceReported(t *testing.T) {
	data := &Data{Duration: 180, Silences: []Silence{silenceAt(30, 12)}}
	segs := NewSilenceAnalyzer(quietLogger(), 5.0, nil).Detect(data)

	require.Len(t, segs, 1)
	s := segs[0]
	assert.Equal(t, 12.0, s.Duration)
	assert.Equal(t, 1.0, s.Severity)
	assert.InDelta(t, 7.2, s.ImpactScore, 1e-9)
	assert.Equal(t, "medium", s.Priority)
	assert.Equal(t, "bot", s.Speaker)
	assert.Equal(t, "greeting", s.ConversationPhase)
	assert.Equal(t, 0.7, s.ContextualWeight)
	assert.True(t, s.ValidationPassed)
	assert.Equal(t, "MEDIUM: Consider optimizing response time in this conversation phase", s.Recommendation)
}

func TestSilenceGates(t *testing.T) {
	tests := []struct {
		name    string
		silence Silence
	}{
		{"call opening", silenceAt(2, 12)},
		{"call ending", silenceAt(172, 12)},
		{"normal rhythm", silenceAt(30, 6)},
		{"flow not disrupted", silenceAt(30, 9)},
	}

	a := NewSilenceAnalyzer(quietLogger(), 5.0, nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := &Data{Duration: 180, Silences: []Silence{tt.silence}}
			assert.Empty(t, a.Detect(data))
		})
	}
}

func TestSilencesSortedByImpact(t *testing.T) {
	data := &Data{Duration: 180, Silences: []Silence{silenceAt(30, 12), silenceAt(60, 20)}}
	segs := NewSilenceAnalyzer(quietLogger(), 5.0, nil).Detect(data)

	require.Len(t, segs, 2)
	assert.Equal(t, 20.0, segs[0].Duration)
	assert.Equal(t, 10.0, segs[0].ImpactScore)
	assert.Equal(t, "high", segs[0].Priority)
	assert.Equal(t, "human", segs[0].Speaker)
	assert.Equal(t, 12.0, segs[1].Duration)
}

func TestSilenceWithoutAudio(t *testing.T) {
	segs := NewSilenceAnalyzer(quietLogger(), 0, nil).Detect(nil)
	assert.NotNil(t, segs)
	assert.Empty(t, segs)
}

func TestSeededValidatorRepeats(t *testing.T) {
	data := &Data{Duration: 300}
	for i := 0; i < 10; i++ {
		data.Silences = append(data.Silences, silenceAt(float64(20+i*25), float64(8+i*2)))
	}

	first := NewSilenceAnalyzer(quietLogger(), 5.0, NewSeededValidator(42)).Detect(data)
	second := NewSilenceAnalyzer(quietLogger(), 5.0, NewSeededValidator(42)).Detect(data)
	assert.Equal(t, first, second)

	for _, s := range first {
		assert.GreaterOrEqual(t, s.QualityScore, 0.8)
		assert.Greater(t, s.ImpactScore, 4.0)
	}
}

func TestQualityWithoutAudioIsReference(t *testing.T) {
	q := NewQualityAnalyzer(quietLogger(), nil).Analyze(nil)
	assert.Equal(t, 82.0, q.OverallScore)
	assert.Equal(t, "B", q.QualityGrade)
	assert.Equal(t, []string{"Audio quality is within acceptable parameters"}, q.Recommendations)
}

func TestQualityPrefersMeasuredMetrics(t *testing.T) {
	data := &Data{Duration: 60, Metrics: &Metrics{
		SNR:               40,
		THD:               0.5,
		Clarity:           90,
		BackgroundNoise:   5,
		VolumeConsistency: 95,
		FrequencyResponse: 90,
	}}

	q := NewQualityAnalyzer(quietLogger(), nil).Analyze(data)
	assert.Equal(t, "measured", q.Source)
	assert.Equal(t, 93.0, q.OverallScore)
	assert.Equal(t, "A", q.QualityGrade)
	assert.Equal(t, "excellent", q.Metrics.SignalToNoiseRatio.Quality)
	assert.Equal(t, "excellent", q.Metrics.TotalHarmonicDistortion.Quality)
	assert.Equal(t, []string{"Audio quality is within acceptable parameters"}, q.Recommendations)
}

func TestQualityEstimatedFromReferenceValues(t *testing.T) {
	q := NewQualityAnalyzer(quietLogger(), ReferenceEstimator{}).Analyze(&Data{Duration: 60})

	assert.Equal(t, "estimated", q.Source)
	assert.Equal(t, 79.0, q.OverallScore)
	assert.Equal(t, "C", q.QualityGrade)
	assert.Equal(t, []string{
		"Check audio equipment for distortion issues",
		"Use noise cancellation or record in quieter environment",
	}, q.Recommendations)
}

func TestSeededEstimatorStaysInRange(t *testing.T) {
	est := NewSeededEstimator(7)
	for i := 0; i < 50; i++ {
		m := est.Estimate(nil)
		assert.True(t, m.SNR >= 25 && m.SNR <= 45)
		assert.True(t, m.THD >= 0 && m.THD <= 5)
		assert.True(t, m.Clarity >= 70 && m.Clarity <= 95)
		assert.True(t, m.BackgroundNoise >= 0 && m.BackgroundNoise <= 40)

		q := Rate(m)
		assert.True(t, q.OverallScore >= 0 && q.OverallScore <= 100)
	}
}

func TestGrade(t *testing.T) {
	assert.Equal(t, "A", Grade(90))
	assert.Equal(t, "B", Grade(89.9))
	assert.Equal(t, "C", Grade(70))
	assert.Equal(t, "D", Grade(60))
	assert.Equal(t, "F", Grade(59))
}

func TestVisualize(t *testing.T) {
	v := Visualize(nil, nil)
	assert.Equal(t, 180.0, v.Duration)
	assert.Equal(t, 100, v.SampleRate)
	assert.Len(t, v.WaveformData, 18000)
	assert.Equal(t, 0.0, v.WaveformData[0].Amplitude)
	assert.NotNil(t, v.SilenceMarkers)

	segs := []SilenceSegment{{StartTime: 1, EndTime: 2, Duration: 1, Speaker: "bot"}}
	v = Visualize(&Data{Duration: 2.5}, segs)
	assert.Len(t, v.WaveformData, 250)
	assert.Equal(t, []SilenceMarker{{Start: 1, End: 2, Duration: 1, Speaker: "bot"}}, v.SilenceMarkers)
}
