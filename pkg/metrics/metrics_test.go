package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func initTestMetrics(t *testing.T) {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	StartMetrics(logger, true)
}

func TestAnalysisMetrics(t *testing.T) {
	initTestMetrics(t)

	before := testutil.ToFloat64(AnalysesTotal.WithLabelValues("test", "success"))
	done := StartAnalysis("test")
	assert.Equal(t, 1.0, testutil.ToFloat64(AnalysesInFlight))
	done("success")

	assert.Equal(t, 0.0, testutil.ToFloat64(AnalysesInFlight))
	assert.Equal(t, before+1, testutil.ToFloat64(AnalysesTotal.WithLabelValues("test", "success")))

	RecordStageFailure("latency")
	assert.GreaterOrEqual(t, testutil.ToFloat64(AnalysisStageErrors.WithLabelValues("latency")), 1.0)

	ObserveScores(88, map[string]float64{"silenceCompliance": 100}, true)
	assert.GreaterOrEqual(t, testutil.ToFloat64(ObjectiveOutcomes.WithLabelValues("true")), 1.0)
}

func TestMetricsEndpoint(t *testing.T) {
	initTestMetrics(t)
	SetWebSocketClients(2)
	RecordAMQPPublish("analysis", "success")

	handler := Handler()
	require.NotNil(t, handler)

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "callqa_websocket_clients 2")
	assert.Contains(t, rec.Body.String(), "callqa_amqp_published_messages_total")
}

func TestDisabledMetricsAreNoops(t *testing.T) {
	initTestMetrics(t)
	EnableMetrics(false)
	defer EnableMetrics(true)

	assert.False(t, IsMetricsEnabled())
	assert.Nil(t, Handler())
	assert.NotPanics(t, func() {
		StartAnalysis("test")("error")
		RecordUpload("wav", "success", 10)
		SetAMQPConnectionStatus(true)
	})
}
