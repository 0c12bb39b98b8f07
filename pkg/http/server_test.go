package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/media"
	"callqa-server/pkg/metrics"
	"callqa-server/pkg/realtime/analytics"
	"callqa-server/pkg/transcript"
	"callqa-server/pkg/version"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	logger := testLogger()

	a, err := analyzer.New(logger)
	require.NoError(t, err)

	processor := media.NewProcessor(logger, media.Config{UploadDir: t.TempDir(), Seed: 7})
	return NewServer(logger, DefaultConfig(), a, processor, analyzer.DefaultConfig())
}

type multipartField struct {
	name, filename string
	content        []byte
}

func multipartRequest(t *testing.T, fields ...multipartField) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, f := range fields {
		if f.filename != "" {
			part, err := mw.CreateFormFile(f.name, f.filename)
			require.NoError(t, err)
			_, err = part.Write(f.content)
			require.NoError(t, err)
			continue
		}
		require.NoError(t, mw.WriteField(f.name, string(f.content)))
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func wavBytes(t *testing.T, seconds int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, media.WriteWAV(&buf, 8000, 1, make([]byte, 8000*2*seconds)))
	return buf.Bytes()
}

func TestAPIHealth(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, version.ServerHeader(), rec.Header().Get("Server"))
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))

	body := decodeBody(t, rec)
	assert.Equal(t, "healthy", body["status"])
	assert.NotEmpty(t, body["timestamp"])
}

func TestAnalyzeRequiresTranscript(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, multipartField{name: "config", content: []byte(`{}`)}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Valid transcript string is required", decodeBody(t, rec)["error"])

	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"transcript":""}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(s, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestAnalyzeMultipartTranscript(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t, multipartField{name: "transcript", content: []byte(transcript.Sample)}))
	require.Equal(t, http.StatusOK, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.NotEmpty(t, body["analysisId"])
	assert.NotEmpty(t, body["timestamp"])
	assert.Contains(t, body, "overallScore")
	assert.Contains(t, body, "scoreBreakdown")
	assert.Equal(t, 0.0, body["callDuration"])

	business := body["magicBricksAnalysis"].(map[string]interface{})
	assert.Equal(t, true, business["objectiveAchieved"])
}

func TestAnalyzeJSONWithConfigOverrides(t *testing.T) {
	s := newTestServer(t)

	payload := `{"transcript": "Chat Bot: Hello\nHuman: Hi", "config": "{\"idealCallDurationMin\": \"2\", \"idealCallDurationMax\": 4}"}`
	req := httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")

	rec := serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, 2.0, resp.CallDurationAnalysis.IdealRangeMin)
	assert.Equal(t, 4.0, resp.CallDurationAnalysis.IdealRangeMax)
}

func TestRequestConfigIgnoresBadValues(t *testing.T) {
	s := newTestServer(t)

	cfg := s.requestConfig([]byte(`{"silenceThreshold": "abc", "repetitionSimilarityThreshold": -1, "repetitionMode": "fuzzy"}`))
	assert.Equal(t, 5.0, cfg.SilenceThreshold)
	assert.Equal(t, 0.8, cfg.RepetitionSimilarityThreshold)
	assert.EqualValues(t, "fuzzy", cfg.RepetitionMode)

	assert.Equal(t, s.analysis, s.requestConfig([]byte(`not json`)))
}

func TestAnalyzeWithAudio(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t,
		multipartField{name: "transcript", content: []byte(transcript.Sample)},
		multipartField{name: "audioFile", filename: "call.wav", content: wavBytes(t, 2)},
	))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.InDelta(t, 2.0, resp.CallDuration, 1e-9)
	assert.True(t, resp.AnalysisApproach.AudioSynthetic)

	entries, err := os.ReadDir(s.processor.Config().UploadDir)
	require.NoError(t, err)
	assert.Empty(t, entries, "staged upload should be removed")
}

func TestAnalyzeRejectsUnsupportedAudio(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t,
		multipartField{name: "transcript", content: []byte("Chat Bot: Hello")},
		multipartField{name: "audioFile", filename: "notes.txt", content: []byte("not audio")},
	))
	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)

	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "UNSUPPORTED_AUDIO", body["code"])
}

func TestAnalyzeContinuesWhenAudioCannotBeProbed(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, multipartRequest(t,
		multipartField{name: "transcript", content: []byte(transcript.Sample)},
		multipartField{name: "audioFile", filename: "broken.wav", content: []byte("RIFF")},
	))
	require.Equal(t, http.StatusOK, rec.Code)

	var resp analysisResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 180.0, resp.CallDuration)
	assert.False(t, resp.AnalysisApproach.AudioSynthetic)
}

type recordingSubscriber struct {
	mu        sync.Mutex
	snapshots []*analytics.Snapshot
}

func (r *recordingSubscriber) OnAnalysis(s *analytics.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func TestAnalyzeDispatchesResult(t *testing.T) {
	s := newTestServer(t)
	dispatcher := analytics.NewDispatcher(testLogger(), nil)
	sub := &recordingSubscriber{}
	dispatcher.AddSubscriber(sub)
	s.SetDispatcher(dispatcher)

	rec := serve(s, multipartRequest(t,
		multipartField{name: "transcript", content: []byte(transcript.Sample)},
	))
	require.Equal(t, http.StatusOK, rec.Code)
	s.inflight.Wait()

	sub.mu.Lock()
	defer sub.mu.Unlock()
	require.Len(t, sub.snapshots, 1)
	assert.Equal(t, "api", sub.snapshots[0].Source)
	assert.Equal(t, decodeBody(t, rec)["analysisId"], sub.snapshots[0].AnalysisID)
}

func TestTestSampleAndConnection(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/api/test-sample", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body, "intentFlow")

	req := httptest.NewRequest(http.MethodPost, "/api/test-connection", strings.NewReader(`{"ping":"pong"}`))
	req.Header.Set("Content-Type", "application/json")
	rec = serve(s, req)
	require.Equal(t, http.StatusOK, rec.Code)
	body = decodeBody(t, rec)
	assert.Equal(t, "Connection successful!", body["message"])
	assert.Equal(t, map[string]interface{}{"ping": "pong"}, body["receivedData"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodOptions, "/api/analyze", nil))
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "POST")
}

func TestPanicRecovery(t *testing.T) {
	s := newTestServer(t)
	s.mux.HandleFunc("GET /boom", func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/boom", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, false, decodeBody(t, rec)["success"])
}

type stubPublisher struct {
	connected bool
}

func (p *stubPublisher) PublishAnalysis(context.Context, analyzer.Summary, map[string]interface{}) error {
	return nil
}
func (p *stubPublisher) PublishToDeadLetterQueue(context.Context, analyzer.Summary, string) error {
	return nil
}
func (p *stubPublisher) IsConnected() bool { return p.connected }
func (p *stubPublisher) Connect() error    { return nil }
func (p *stubPublisher) Disconnect()       {}

func TestHealthHandler(t *testing.T) {
	s := newTestServer(t)

	rec := serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "healthy", health.Checks["analyzer"].Status)
	assert.Equal(t, version.Version, health.Version)

	s.SetAMQPClient(&stubPublisher{connected: false})
	rec = serve(s, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "degraded", health.Status)
	assert.Equal(t, "degraded", health.Checks["amqp"].Status)
}

func TestMetricsEndpoint(t *testing.T) {
	metrics.StartMetrics(testLogger(), true)
	s := newTestServer(t)

	serve(s, httptest.NewRequest(http.MethodGet, "/api/health", nil))
	rec := serve(s, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "callqa_")
}
