package http

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/realtime/analytics"
	"callqa-server/pkg/transcript"
)

func startHandler(t *testing.T) (*AnalyticsWebSocketHandler, string) {
	t.Helper()
	handler := NewAnalyticsWebSocketHandler(testLogger(), "*")
	handler.Start()
	t.Cleanup(handler.Stop)

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return handler, "ws" + strings.TrimPrefix(server.URL, "http")
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { ws.Close() })

	var welcome AnalyticsMessage
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&welcome))
	require.Equal(t, "connected", welcome.Type)
	return ws
}

func readMessage(t *testing.T, ws *websocket.Conn) AnalyticsMessage {
	t.Helper()
	var msg AnalyticsMessage
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, ws.ReadJSON(&msg))
	return msg
}

func TestAnalyticsWebSocketHandler_Connection(t *testing.T) {
	handler, wsURL := startHandler(t)

	t.Run("welcome message", func(t *testing.T) {
		ws, _, err := websocket.DefaultDialer.Dial(wsURL+"?session_id=abc", nil)
		require.NoError(t, err)
		defer ws.Close()

		msg := readMessage(t, ws)
		assert.Equal(t, "connected", msg.Type)
		event := msg.Event.(map[string]interface{})
		assert.Equal(t, "abc", event["session_id"])
	})

	t.Run("multiple clients", func(t *testing.T) {
		clients := make([]*websocket.Conn, 3)
		for i := range clients {
			clients[i] = dial(t, wsURL)
		}

		assert.Eventually(t, func() bool {
			return handler.GetConnectedClients() == 3
		}, time.Second, 20*time.Millisecond)

		for _, ws := range clients {
			ws.Close()
		}

		assert.Eventually(t, func() bool {
			return handler.GetConnectedClients() == 0
		}, 2*time.Second, 20*time.Millisecond)
	})
}

func TestAnalyticsWebSocketHandler_BroadcastAnalysis(t *testing.T) {
	handler, wsURL := startHandler(t)
	ws := dial(t, wsURL)

	assert.Eventually(t, func() bool {
		return handler.GetConnectedClients() == 1
	}, time.Second, 20*time.Millisecond)

	handler.BroadcastAnalysis(&analytics.Snapshot{
		AnalysisID: "analysis-123",
		Source:     "api",
		Summary:    analyzer.Summary{AnalysisID: "analysis-123", OverallScore: 84.5},
	})

	msg := readMessage(t, ws)
	assert.Equal(t, "analysis_complete", msg.Type)
	assert.Equal(t, "analysis-123", msg.AnalysisID)
	require.NotNil(t, msg.Data)
	assert.Equal(t, 84.5, msg.Data.Summary.OverallScore)

	handler.BroadcastEvent("analysis-123", "low_score", map[string]interface{}{
		"severity": "high",
		"source":   "api",
	})

	msg = readMessage(t, ws)
	assert.Equal(t, "low_score", msg.Type)
	assert.Equal(t, "api", msg.Source)

	handler.BroadcastAnalysis(nil)
}

func TestAnalyticsWebSocketHandler_SourceFilter(t *testing.T) {
	handler, wsURL := startHandler(t)
	ws := dial(t, wsURL+"?source=cli")

	assert.Eventually(t, func() bool {
		return handler.GetConnectedClients() == 1
	}, time.Second, 20*time.Millisecond)

	handler.BroadcastAnalysis(&analytics.Snapshot{AnalysisID: "from-api", Source: "api"})
	handler.BroadcastAnalysis(&analytics.Snapshot{AnalysisID: "from-cli", Source: "cli"})

	msg := readMessage(t, ws)
	assert.Equal(t, "from-cli", msg.AnalysisID)

	require.NoError(t, ws.WriteJSON(map[string]interface{}{"type": "ping"}))
	msg = readMessage(t, ws)
	assert.Equal(t, "pong", msg.Type)
}

func TestAnalyzeStreamsToWebSocket(t *testing.T) {
	s := newTestServer(t)
	handler := NewAnalyticsWebSocketHandler(testLogger(), "*")
	handler.Start()
	t.Cleanup(handler.Stop)
	s.SetAnalyticsWebSocketHandler(handler)

	dispatcher := analytics.NewDispatcher(testLogger(), nil)
	dispatcher.AddSubscriber(analytics.NewWebSocketSubscriber(testLogger(), handler))
	s.SetDispatcher(dispatcher)

	server := httptest.NewServer(s.Handler())
	t.Cleanup(server.Close)

	ws := dial(t, "ws"+strings.TrimPrefix(server.URL, "http")+"/ws/analytics")
	assert.Eventually(t, func() bool {
		return handler.GetConnectedClients() == 1
	}, time.Second, 20*time.Millisecond)

	rec := serve(s, multipartRequest(t, multipartField{name: "transcript", content: []byte(transcript.Sample)}))
	require.Equal(t, 200, rec.Code)

	msg := readMessage(t, ws)
	assert.Equal(t, "analysis_complete", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, "api", msg.Data.Source)
	assert.Equal(t, 1, msg.Data.Stats.TotalAnalyses)
}
