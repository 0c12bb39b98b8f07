package hallucination

import (
	"math"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/dialogue"
	"callqa-server/pkg/intent"
	"callqa-server/pkg/textutil"
	"callqa-server/pkg/transcript"
)

const (
	relevanceWeight = 0.6
	criticalWeight  = 0.4
)

// Event is one bot reply judged irrelevant or off-script.
type Event struct {
	TurnIndex         int      `json:"turnIndex"`
	HumanInput        string   `json:"humanInput"`
	BotResponse       string   `json:"botResponse"`
	HallucinationType string   `json:"hallucinationType"`
	Severity          int      `json:"severity"`
	RelevanceScore    float64  `json:"relevanceScore"`
	ContextDeviation  float64  `json:"contextDeviation"`
	Recommendation    string   `json:"recommendation"`
	AudioConfidence   *float64 `json:"audioConfidence,omitempty"`
	SpeechPatterns    []string `json:"speechPatterns,omitempty"`
	AnalysisSource    string   `json:"analysisSource,omitempty"`
}

// Analysis is the hallucinationAnalysis section of a result.
type Analysis struct {
	Hallucinations          []Event              `json:"hallucinations"`
	HallucinationScore      float64              `json:"hallucinationScore"`
	TotalBotTurns           int                  `json:"totalBotTurns"`
	DeviationRate           float64              `json:"deviationRate"`
	OverallRelevance        float64              `json:"overallRelevance"`
	CriticalStepAnalysis    CriticalStepAnalysis `json:"criticalStepAnalysis"`
	EnhancedScore           *float64             `json:"enhancedScore,omitempty"`
	CombinedRecommendations []string             `json:"combinedRecommendations,omitempty"`
	AnalysisSource          string               `json:"analysisSource"`
}

// Score is the value the aggregator consumes: the merged score when one was
// computed, otherwise the relevance score.
func (a Analysis) Score() float64 {
	if a.EnhancedScore != nil {
		return *a.EnhancedScore
	}
	return a.HallucinationScore
}

// Detector runs relevance analysis and the critical-step walk over a call.
type Detector struct {
	logger  *logrus.Logger
	catalog *intent.Catalog
}

// NewDetector creates a detector classifying steps with the given catalog.
func NewDetector(logger *logrus.Logger, catalog *intent.Catalog) *Detector {
	return &Detector{
		logger:  logger,
		catalog: catalog,
	}
}

// Detect analyzes every bot reply that follows a customer line. When the
// audio side supplied per-turn speech indicators they adjust each reply's
// relevance. The result always includes the critical-step walk.
func (d *Detector) Detect(turns []transcript.Turn, data *audio.Data) Analysis {
	if len(turns) == 0 {
		d.logger.Debug("No turns to analyze, returning default hallucination analysis")
		return Default()
	}

	useAudio := data.HasSpeechAnalysis()
	source := ""
	if useAudio {
		source = "audio_primary"
	}

	events := []Event{}
	for i := 1; i < len(turns); i++ {
		if !turns[i].IsAgent() || !turns[i-1].IsCustomer() {
			continue
		}
		human, bot := turns[i-1].Text, turns[i].Text

		r := AnalyzeRelevance(human, bot, i)
		seg, hasSeg := data.SpeechFor(i)
		if useAudio && hasSeg {
			r = adjustForSpeech(r, seg, human)
		}
		if !r.IsHallucination {
			continue
		}

		ev := Event{
			TurnIndex:         i,
			HumanInput:        textutil.Truncate(human, quoteMaxRunes),
			BotResponse:       textutil.Truncate(bot, quoteMaxRunes),
			HallucinationType: r.Type,
			Severity:          r.Severity,
			RelevanceScore:    textutil.Round(r.Score, 3),
			ContextDeviation:  textutil.Round(1-r.Contextual, 3),
			Recommendation:    Recommendation(r.Type, r.Severity),
			AnalysisSource:    source,
		}
		if useAudio && hasSeg {
			conf := seg.Confidence
			ev.AudioConfidence = &conf
			ev.SpeechPatterns = seg.Patterns
		}
		events = append(events, ev)
	}

	botTurns := transcript.CountBySpeaker(turns, transcript.SpeakerAgent)
	critical := AnalyzeCriticalSteps(d.catalog, turns)
	score := hallucinationScore(events, len(turns))
	enhanced := math.Round(relevanceWeight*score + criticalWeight*critical.CriticalStepScore)

	d.logger.WithFields(logrus.Fields{
		"hallucinations":      len(events),
		"critical_violations": len(critical.CriticalStepViolations),
		"context_deviations":  len(critical.ContextDeviations),
		"unaddressed_queries": len(critical.UnaddressedQueries),
		"audio":               useAudio,
	}).Debug("Hallucination analysis complete")

	return Analysis{
		Hallucinations:          events,
		HallucinationScore:      score,
		TotalBotTurns:           botTurns,
		DeviationRate:           float64(len(events)) / math.Max(float64(botTurns), 1),
		OverallRelevance:        overallRelevance(turns),
		CriticalStepAnalysis:    critical,
		EnhancedScore:           &enhanced,
		CombinedRecommendations: append([]string{}, critical.Recommendations...),
		AnalysisSource:          "enhanced_with_critical_steps",
	}
}

// adjustForSpeech lowers a reply's relevance for low recognition confidence,
// frequent hesitation, very fast speech and unsteady tone. Unmeasured values
// count as normal.
func adjustForSpeech(r Relevance, seg audio.SpeechSegment, human string) Relevance {
	confidence := orDefault(seg.Confidence, 0.8)
	pace := orDefault(seg.WordsPerMinute, 150)
	tone := orDefault(seg.ToneConsistency, 0.8)

	if confidence < 0.6 {
		r.Score *= 0.8
	}
	if seg.HesitationCount > 3 {
		r.Score *= 0.7
	}
	if pace > 200 {
		r.Score *= 0.9
	}
	if tone < 0.6 {
		r.Score *= 0.8
	}
	r.IsHallucination = r.Score < audioRelevanceFloor
	r.classify(human)
	return r
}

func orDefault(v, def float64) float64 {
	if v == 0 {
		return def
	}
	return v
}

// hallucinationScore is 100 less up to 60 points for average severity and
// the share of turns that were hallucinations.
func hallucinationScore(events []Event, totalTurns int) float64 {
	if len(events) == 0 {
		return 100
	}
	var severity int
	for _, e := range events {
		severity += e.Severity
	}
	ratio := float64(severity) / float64(len(events)*10)
	frequency := float64(len(events)) / math.Max(float64(totalTurns), 1) * 100
	return math.Round(math.Max(0, 100-ratio*60-frequency))
}

func overallRelevance(turns []transcript.Turn) float64 {
	var total float64
	var n int
	for i := 1; i < len(turns); i++ {
		if turns[i].IsAgent() && turns[i-1].IsCustomer() {
			total += dialogue.TopicRelevance(turns[i-1].Text, turns[i].Text)
			n++
		}
	}
	if n == 0 {
		return 1
	}
	return total / float64(n)
}

// Default is returned for an empty call or when the analysis failed.
func Default() Analysis {
	return Analysis{
		Hallucinations:     []Event{},
		HallucinationScore: 80,
		OverallRelevance:   0.8,
		CriticalStepAnalysis: CriticalStepAnalysis{
			CriticalStepViolations: []Violation{},
			ContextDeviations:      []ContextDeviation{},
			UnaddressedQueries:     []UnaddressedQuery{},
			Recommendations:        []string{},
			CriticalStepScore:      80,
		},
		AnalysisSource: "default_fallback",
	}
}
