package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

var (
	registry           *prometheus.Registry
	registryOnce       sync.Once
	defaultMetricsPath = "/metrics"
	metricsEnabled     = true

	// Analysis metrics
	AnalysesTotal       *prometheus.CounterVec
	AnalysisDuration    prometheus.Histogram
	AnalysisStageErrors *prometheus.CounterVec
	OverallScore        prometheus.Histogram
	ComponentScore      *prometheus.HistogramVec
	ObjectiveOutcomes   *prometheus.CounterVec
	AnalysesInFlight    prometheus.Gauge

	// Upload metrics
	UploadsTotal *prometheus.CounterVec
	UploadBytes  prometheus.Histogram

	// HTTP metrics
	HTTPRequestsTotal *prometheus.CounterVec

	// WebSocket metrics
	WebSocketClients  prometheus.Gauge
	WebSocketMessages *prometheus.CounterVec

	// AMQP metrics
	AMQPPublishedMessages *prometheus.CounterVec
	AMQPConnectionStatus  prometheus.Gauge
)

// Init initializes all metrics and registers them with Prometheus
func Init(logger *logrus.Logger) {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()

		AnalysesTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_analyses_total",
				Help: "Total number of call analyses",
			},
			[]string{"source", "status"},
		)

		AnalysisDuration = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callqa_analysis_duration_seconds",
				Help:    "Time taken to analyze one call",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // From 1ms to ~4s
			},
		)

		AnalysisStageErrors = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_analysis_stage_failures_total",
				Help: "Sub-analyses that failed and were replaced by their default result",
			},
			[]string{"stage"},
		)

		OverallScore = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callqa_overall_score",
				Help:    "Distribution of overall call scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
		)

		ComponentScore = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "callqa_component_score",
				Help:    "Distribution of weighted component scores",
				Buckets: prometheus.LinearBuckets(10, 10, 10),
			},
			[]string{"component"},
		)

		ObjectiveOutcomes = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_objective_outcomes_total",
				Help: "Calls by whether the agent hand-off objective was achieved",
			},
			[]string{"achieved"},
		)

		AnalysesInFlight = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callqa_analyses_in_flight",
				Help: "Number of analyses currently running",
			},
		)

		UploadsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_audio_uploads_total",
				Help: "Total number of audio uploads",
			},
			[]string{"format", "status"},
		)

		UploadBytes = prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "callqa_audio_upload_bytes",
				Help:    "Size of accepted audio uploads",
				Buckets: prometheus.ExponentialBuckets(16*1024, 4, 8), // From 16KiB to ~256MiB
			},
		)

		HTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		)

		WebSocketClients = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callqa_websocket_clients",
				Help: "Number of connected analytics WebSocket clients",
			},
		)

		WebSocketMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_websocket_messages_total",
				Help: "Messages sent to analytics WebSocket clients",
			},
			[]string{"type"},
		)

		AMQPPublishedMessages = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "callqa_amqp_published_messages_total",
				Help: "Total number of analysis summaries published to AMQP",
			},
			[]string{"queue", "status"},
		)

		AMQPConnectionStatus = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "callqa_amqp_connection_status",
				Help: "Status of AMQP connection (1 = connected, 0 = disconnected)",
			},
		)

		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			AnalysesTotal,
			AnalysisDuration,
			AnalysisStageErrors,
			OverallScore,
			ComponentScore,
			ObjectiveOutcomes,
			AnalysesInFlight,
			UploadsTotal,
			UploadBytes,
			HTTPRequestsTotal,
			WebSocketClients,
			WebSocketMessages,
			AMQPPublishedMessages,
			AMQPConnectionStatus,
		)

		logger.Info("Prometheus metrics initialized")
	})
}

// EnableMetrics enables or disables metrics collection
func EnableMetrics(enabled bool) {
	metricsEnabled = enabled
}

// IsMetricsEnabled returns whether metrics are enabled and initialized
func IsMetricsEnabled() bool {
	return metricsEnabled && registry != nil
}

// Handler returns the scrape handler for the registry, or nil when metrics
// are disabled.
func Handler() http.Handler {
	if !IsMetricsEnabled() {
		return nil
	}
	return promhttp.HandlerFor(
		registry,
		promhttp.HandlerOpts{
			EnableOpenMetrics: true,
			Registry:          registry,
		},
	)
}

// StartMetrics initializes the metrics service
func StartMetrics(logger *logrus.Logger, metricsEnabled bool) {
	if !metricsEnabled {
		EnableMetrics(false)
		logger.Info("Metrics collection is disabled")
		return
	}

	Init(logger)
	EnableMetrics(true)
	logger.WithField("metrics_path", defaultMetricsPath).Info("Metrics endpoint initialized")
}

// StartAnalysis marks an analysis as running and returns a function that
// records its outcome and duration when called.
func StartAnalysis(source string) func(status string) {
	if !IsMetricsEnabled() {
		return func(string) {}
	}

	AnalysesInFlight.Inc()
	start := time.Now()
	return func(status string) {
		AnalysesInFlight.Dec()
		AnalysesTotal.WithLabelValues(source, status).Inc()
		AnalysisDuration.Observe(time.Since(start).Seconds())
	}
}

// RecordStageFailure counts a sub-analysis replaced by its default result
func RecordStageFailure(stage string) {
	if IsMetricsEnabled() {
		AnalysisStageErrors.WithLabelValues(stage).Inc()
	}
}

// ObserveScores records the overall score, each component score and the
// objective outcome of a finished analysis
func ObserveScores(overall float64, components map[string]float64, objectiveAchieved bool) {
	if !IsMetricsEnabled() {
		return
	}
	OverallScore.Observe(overall)
	for name, value := range components {
		ComponentScore.WithLabelValues(name).Observe(value)
	}
	if objectiveAchieved {
		ObjectiveOutcomes.WithLabelValues("true").Inc()
	} else {
		ObjectiveOutcomes.WithLabelValues("false").Inc()
	}
}

// RecordUpload records an audio upload attempt
func RecordUpload(format, status string, bytes int64) {
	if !IsMetricsEnabled() {
		return
	}
	UploadsTotal.WithLabelValues(format, status).Inc()
	if status == "success" {
		UploadBytes.Observe(float64(bytes))
	}
}

// RecordHTTPRequest records a served HTTP request
func RecordHTTPRequest(path, status string) {
	if IsMetricsEnabled() {
		HTTPRequestsTotal.WithLabelValues(path, status).Inc()
	}
}

// SetWebSocketClients sets the number of connected analytics clients
func SetWebSocketClients(n int) {
	if IsMetricsEnabled() {
		WebSocketClients.Set(float64(n))
	}
}

// RecordWebSocketMessage records a message sent to analytics clients
func RecordWebSocketMessage(kind string) {
	if IsMetricsEnabled() {
		WebSocketMessages.WithLabelValues(kind).Inc()
	}
}

// RecordAMQPPublish records metrics for an AMQP publish
func RecordAMQPPublish(queue, status string) {
	if IsMetricsEnabled() {
		AMQPPublishedMessages.WithLabelValues(queue, status).Inc()
	}
}

// SetAMQPConnectionStatus sets the AMQP connection status
func SetAMQPConnectionStatus(connected bool) {
	if IsMetricsEnabled() {
		if connected {
			AMQPConnectionStatus.Set(1)
		} else {
			AMQPConnectionStatus.Set(0)
		}
	}
}
