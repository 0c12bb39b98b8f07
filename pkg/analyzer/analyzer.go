package analyzer

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"callqa-server/pkg/audio"
	"callqa-server/pkg/hallucination"
	"callqa-server/pkg/intent"
	"callqa-server/pkg/interruption"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/metrics"
	"callqa-server/pkg/repetition"
	"callqa-server/pkg/scoring"
	"callqa-server/pkg/transcript"
	"callqa-server/pkg/util"
)

// Analyzer scores call transcripts. It holds only read-only state, so one
// instance can serve concurrent calls to Analyze.
type Analyzer struct {
	logger     *logrus.Logger
	catalog    *intent.Catalog
	aggregator *scoring.Aggregator
	panics     *util.PanicHandler
}

// New creates an analyzer backed by the built-in intent catalog. It fails
// only when the catalog patterns cannot be compiled.
func New(logger *logrus.Logger) (*Analyzer, error) {
	catalog, err := intent.DefaultCatalog()
	if err != nil {
		return nil, err
	}
	return NewWithCatalog(logger, catalog), nil
}

// NewWithCatalog creates an analyzer using the given catalog.
func NewWithCatalog(logger *logrus.Logger, catalog *intent.Catalog) *Analyzer {
	return &Analyzer{
		logger:     logger,
		catalog:    catalog,
		aggregator: scoring.NewAggregator(logger),
		panics:     util.NewPanicHandler(logger),
	}
}

// PanicHandler exposes the handler guarding each stage so callers can attach
// hooks such as error reporting.
func (a *Analyzer) PanicHandler() *util.PanicHandler {
	return a.panics
}

// run is the state of one Analyze call.
type run struct {
	a      *Analyzer
	id     string
	failed []string
}

// stage runs fn under the panic handler and falls back to def when it panics.
func stage[T any](r *run, name string, def func() T, fn func() T) T {
	var out T
	start := time.Now()
	if r.a.panics.Guard(fmt.Sprintf("analyzer.%s", name), func() { out = fn() }) {
		r.failed = append(r.failed, name)
		metrics.RecordStageFailure(name)
		r.a.logger.WithFields(logrus.Fields{
			"analysis_id": r.id,
			"stage":       name,
		}).Warn("Stage failed, using default result")
		return def()
	}
	r.a.logger.WithFields(logrus.Fields{
		"analysis_id": r.id,
		"stage":       name,
		"elapsed":     time.Since(start),
	}).Debug("Stage complete")
	return out
}

// Analyze scores one call. data may be nil, in which case every stage uses
// its transcript-only path. It never fails: a stage that panics is replaced
// by its default result and listed in Result.FailedStages.
func (a *Analyzer) Analyze(raw string, data *audio.Data, cfg Config) Result {
	r := &run{a: a, id: uuid.New().String()}
	source := "transcript"
	if data != nil {
		source = "audio"
	}
	done := metrics.StartAnalysis(source)

	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		a.logger.WithError(err).WithField("analysis_id", r.id).Warn("Invalid analysis config, using defaults")
		cfg = DefaultConfig()
	}

	if strings.TrimSpace(raw) == "" {
		raw = transcript.DefaultTranscript
	}
	turns := stage(r, "parse", func() []transcript.Turn { return []transcript.Turn{} }, func() []transcript.Turn {
		return transcript.Parse(raw)
	})

	silences := stage(r, "silence", func() []audio.SilenceSegment { return []audio.SilenceSegment{} }, func() []audio.SilenceSegment {
		return audio.NewSilenceAnalyzer(a.logger, cfg.SilenceThreshold, cfg.silenceValidator()).Detect(data)
	})
	repetitions := stage(r, "repetition", func() []repetition.Repetition { return []repetition.Repetition{} }, func() []repetition.Repetition {
		return repetition.NewDetector(a.logger, cfg.RepetitionMode, cfg.RepetitionSimilarityThreshold).Detect(turns)
	})
	flow := stage(r, "intent", intent.DefaultFlow, func() intent.Flow {
		return a.catalog.Detect(turns)
	})
	duration := stage(r, "duration", func() scoring.DurationAnalysis {
		return scoring.AnalyzeDuration(nil, cfg.IdealCallDurationMin, cfg.IdealCallDurationMax)
	}, func() scoring.DurationAnalysis {
		return scoring.AnalyzeDuration(data, cfg.IdealCallDurationMin, cfg.IdealCallDurationMax)
	})
	lat := stage(r, "latency", latency.Default, func() latency.Analysis {
		return latency.NewAnalyzer(a.logger, cfg.LatencyMode, cfg.ResponseTimeThreshold).Analyze(turns, data)
	})
	hall := stage(r, "hallucination", hallucination.Default, func() hallucination.Analysis {
		return hallucination.NewDetector(a.logger, a.catalog).Detect(turns, data)
	})
	intr := stage(r, "interruption", interruption.Default, func() interruption.Analysis {
		return interruption.NewAnalyzer(a.logger).Analyze(turns, data)
	})
	quality := stage(r, "audioQuality", audio.Reference, func() audio.QualityAnalysis {
		return audio.NewQualityAnalyzer(a.logger, cfg.qualityEstimator()).Analyze(data)
	})
	viz := stage(r, "visualization", func() audio.Visualization { return audio.Visualize(nil, nil) }, func() audio.Visualization {
		return audio.Visualize(data, silences)
	})

	inputs := scoring.Inputs{
		Silences:      silences,
		Repetitions:   repetitions,
		Duration:      duration,
		Latency:       lat,
		Hallucination: hall,
		Interruption:  intr,
		AudioQuality:  quality,
		Intent:        flow,
	}
	type scored struct {
		overall   float64
		breakdown scoring.Breakdown
	}
	total := stage(r, "scoring", func() scored {
		return scored{breakdown: scoring.Breakdown{Weights: scoring.DefaultWeights()}}
	}, func() scored {
		overall, breakdown := a.aggregator.Score(inputs)
		return scored{overall: overall, breakdown: breakdown}
	})

	// Without audio the call length is unknown and reported as zero.
	callDuration := 0.0
	if data != nil {
		callDuration = data.Duration
	}

	result := Result{
		AnalysisID:              r.id,
		OverallScore:            total.overall,
		CallDuration:            callDuration,
		SilenceViolations:       silences,
		Repetitions:             repetitions,
		IntentFlow:              flow,
		CallDurationAnalysis:    duration,
		ResponseLatencyAnalysis: lat,
		HallucinationAnalysis:   hall,
		InterruptionAnalysis:    intr,
		AudioQualityAnalysis:    quality,
		ScoreBreakdown:          total.breakdown,
		VisualizationData:       viz,
		AnalysisApproach:        approach(data),
		MagicBricksAnalysis:     businessAnalysis(flow),
		FailedStages:            r.failed,
	}

	status := "success"
	if len(r.failed) > 0 {
		status = "degraded"
	}
	done(status)
	c := total.breakdown.ComponentScores
	metrics.ObserveScores(result.OverallScore, map[string]float64{
		"silenceCompliance":           c.SilenceCompliance,
		"repetitionAvoidance":         c.RepetitionAvoidance,
		"callDurationOptimization":    c.CallDurationOptimization,
		"responseLatencyOptimization": c.ResponseLatencyOptimization,
		"intentFlowAccuracy":          c.IntentFlowAccuracy,
	}, flow.ObjectiveAchieved)

	a.logger.WithFields(logrus.Fields{
		"analysis_id":        r.id,
		"overall_score":      result.OverallScore,
		"objective_achieved": flow.ObjectiveAchieved,
		"turns":              len(turns),
		"call_duration":      callDuration,
		"failed_stages":      len(r.failed),
	}).Info("Call analysis complete")

	return result
}
