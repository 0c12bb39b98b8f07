package audio

import (
	"math"
	"math/rand"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
)

const (
	// DefaultSilenceThreshold is the shortest silence considered, in seconds.
	DefaultSilenceThreshold = 5.0

	// silences shorter than this are normal conversation rhythm
	disruptiveSilence = 8.0
	boundaryLead      = 5.0
	boundaryTail      = 10.0
	defaultCallLength = 180.0

	minRealSilenceQuality = 0.8
	maxUndisruptedFlow    = 0.8
	minSilenceImpact      = 4.0
)

var silencePhases = []string{"greeting", "inquiry", "information_gathering", "resolution", "closing"}

var phaseWeights = map[string]map[string]float64{
	"greeting":              {"bot": 0.7, "human": 0.5},
	"inquiry":               {"bot": 1.0, "human": 0.8},
	"information_gathering": {"bot": 1.2, "human": 0.9},
	"resolution":            {"bot": 1.1, "human": 0.7},
	"closing":               {"bot": 0.6, "human": 0.4},
}

// SilenceSegment is a silence that survived validation.
type SilenceSegment struct {
	StartTime         float64 `json:"startTime"`
	EndTime           float64 `json:"endTime"`
	Duration          float64 `json:"duration"`
	Speaker           string  `json:"speaker"`
	Severity          float64 `json:"severity"`
	ConversationPhase string  `json:"conversationPhase"`
	ImpactScore       float64 `json:"impactScore"`
	ContextualWeight  float64 `json:"contextualWeight"`
	ValidationPassed  bool    `json:"validationPassed"`
	QualityScore      float64 `json:"qualityScore"`
	Priority          string  `json:"priority"`
	Recommendation    string  `json:"recommendation"`
}

// SilenceValidator decides whether a long silence is a real, disruptive gap
// rather than a processing artifact or a natural pause.
type SilenceValidator interface {
	// Quality returns a 0-1 score of how likely the silence is real.
	Quality(s Silence, data *Data) float64
	// Flow returns a 0-1 score of how well the call flowed across the
	// silence; high values mean no disruption.
	Flow(s Silence, index int, data *Data) float64
}

// HeuristicValidator scores silences by length alone: longer silences are
// more likely real and more disruptive.
type HeuristicValidator struct{}

// Quality rises from .7 toward 1 as the silence approaches 20 seconds.
func (HeuristicValidator) Quality(s Silence, _ *Data) float64 {
	return 0.7 + 0.3*math.Min(1, s.Duration/20)
}

// Flow falls from 1 toward .6 as the silence approaches 20 seconds.
func (HeuristicValidator) Flow(s Silence, _ int, _ *Data) float64 {
	return 1 - 0.4*math.Min(1, s.Duration/20)
}

// SeededValidator draws quality and flow scores from a seeded source over
// the same ranges as the heuristic.
type SeededValidator struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// NewSeededValidator creates a validator whose draws repeat for a seed.
func NewSeededValidator(seed int64) *SeededValidator {
	return &SeededValidator{rng: rand.New(rand.NewSource(seed))}
}

func (v *SeededValidator) Quality(Silence, *Data) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return 0.7 + v.rng.Float64()*0.3
}

func (v *SeededValidator) Flow(Silence, int, *Data) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	return 0.6 + v.rng.Float64()*0.4
}

// SilenceAnalyzer turns raw silence candidates into scored violations.
type SilenceAnalyzer struct {
	logger    *logrus.Logger
	threshold float64
	validator SilenceValidator
}

// NewSilenceAnalyzer creates a silence analyzer. A nil validator means
// HeuristicValidator.
func NewSilenceAnalyzer(logger *logrus.Logger, threshold float64, validator SilenceValidator) *SilenceAnalyzer {
	if threshold <= 0 {
		threshold = DefaultSilenceThreshold
	}
	if validator == nil {
		validator = HeuristicValidator{}
	}
	return &SilenceAnalyzer{
		logger:    logger,
		threshold: threshold,
		validator: validator,
	}
}

// Detect filters the candidates through the threshold, call-position,
// quality and flow gates, scores the rest and keeps those with impact above
// 4, highest impact first. Without audio there is nothing to report.
func (a *SilenceAnalyzer) Detect(data *Data) []SilenceSegment {
	segments := []SilenceSegment{}
	if data == nil {
		return segments
	}

	for i, s := range data.Silences {
		if s.Duration < a.threshold {
			continue
		}
		log := a.logger.WithField("start", s.Start)
		if reason, ok := a.inContext(s, data); !ok {
			log.WithField("reason", reason).Debug("Silence dismissed")
			continue
		}
		quality := a.validator.Quality(s, data)
		if quality < minRealSilenceQuality {
			log.WithField("reason", "Likely audio processing artifact").Debug("Silence dismissed")
			continue
		}
		if a.validator.Flow(s, i, data) > maxUndisruptedFlow {
			log.WithField("reason", "Does not disrupt conversation flow").Debug("Silence dismissed")
			continue
		}

		severity := silenceSeverity(s, i)
		speaker, phase := speakerContext(i)
		segments = append(segments, SilenceSegment{
			StartTime:         s.Start,
			EndTime:           s.End,
			Duration:          s.Duration,
			Speaker:           speaker,
			Severity:          severity,
			ConversationPhase: phase,
			ImpactScore:       a.impact(s, severity),
			ContextualWeight:  contextualWeight(phase, speaker),
			ValidationPassed:  true,
			QualityScore:      quality,
		})
	}

	kept := segments[:0]
	for _, seg := range segments {
		if seg.ImpactScore > minSilenceImpact {
			seg.Priority = silencePriority(seg.ImpactScore)
			seg.Recommendation = silenceRecommendation(seg.ImpactScore)
			kept = append(kept, seg)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].ImpactScore > kept[j].ImpactScore })

	a.logger.WithFields(logrus.Fields{
		"candidates": len(data.Silences),
		"violations": len(kept),
	}).Debug("Silence analysis complete")
	return kept
}

// inContext dismisses pauses near the start or end of the call and those
// short enough to be normal rhythm.
func (a *SilenceAnalyzer) inContext(s Silence, data *Data) (string, bool) {
	length := data.Duration
	if length == 0 {
		length = defaultCallLength
	}
	if s.Start < boundaryLead || s.Start > length-boundaryTail {
		return "Natural pause at call boundary", false
	}
	if s.Duration < disruptiveSilence {
		return "Duration within acceptable conversation rhythm", false
	}
	return "", true
}

// impact grows with the silence's length relative to the threshold and with
// its severity, capped at 10.
func (a *SilenceAnalyzer) impact(s Silence, severity float64) float64 {
	return math.Min(s.Duration/a.threshold*(1+severity*2), 10)
}

func silenceSeverity(s Silence, index int) float64 {
	base := math.Min(s.Duration/15, 1)
	position := 1.0
	switch {
	case index < 2:
		position = 1.1
	case index > 8:
		position = 0.9
	}
	return math.Min(base*position*math.Pow(s.Duration/8, 1.2), 1)
}

// speakerContext alternates speakers from the bot and spreads the first
// twenty silences over the call phases.
func speakerContext(index int) (string, string) {
	speaker := "human"
	if index%2 == 0 {
		speaker = "bot"
	}
	phase := index * len(silencePhases) / 20
	if phase >= len(silencePhases) {
		phase = len(silencePhases) - 1
	}
	return speaker, silencePhases[phase]
}

func contextualWeight(phase, speaker string) float64 {
	if w, ok := phaseWeights[phase][speaker]; ok {
		return w
	}
	return 1
}

func silencePriority(impact float64) string {
	switch {
	case impact > 8:
		return "high"
	case impact > 6:
		return "medium"
	}
	return "low"
}

func silenceRecommendation(impact float64) string {
	switch {
	case impact > 8:
		return "CRITICAL: Address significant silence gap that disrupts user experience"
	case impact > 6:
		return "MEDIUM: Consider optimizing response time in this conversation phase"
	}
	return "LOW: Monitor for patterns but within acceptable range"
}
