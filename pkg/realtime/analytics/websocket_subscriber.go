package analytics

import (
	"github.com/sirupsen/logrus"
)

// WebSocketBroadcaster defines the interface for WebSocket broadcasting
type WebSocketBroadcaster interface {
	BroadcastAnalysis(snapshot *Snapshot)
	BroadcastEvent(analysisID string, eventType string, event interface{})
}

// WebSocketSubscriber forwards analytics updates to WebSocket clients
type WebSocketSubscriber struct {
	logger      *logrus.Logger
	broadcaster WebSocketBroadcaster
}

// NewWebSocketSubscriber creates a new WebSocket subscriber
func NewWebSocketSubscriber(logger *logrus.Logger, broadcaster WebSocketBroadcaster) *WebSocketSubscriber {
	return &WebSocketSubscriber{
		logger:      logger,
		broadcaster: broadcaster,
	}
}

// OnAnalysis sends the snapshot and then one event per alert
func (s *WebSocketSubscriber) OnAnalysis(snapshot *Snapshot) {
	if s.broadcaster == nil || snapshot == nil {
		return
	}

	s.broadcaster.BroadcastAnalysis(snapshot)

	for _, alert := range snapshot.Alerts {
		payload := map[string]interface{}{
			"severity": alert.Severity,
			"message":  alert.Message,
			"source":   snapshot.Source,
		}
		for k, v := range alert.Details {
			payload[k] = v
		}
		s.broadcaster.BroadcastEvent(snapshot.AnalysisID, alert.Type, payload)
	}

	if len(snapshot.Alerts) > 0 {
		s.logger.WithFields(logrus.Fields{
			"analysis_id": snapshot.AnalysisID,
			"alerts":      len(snapshot.Alerts),
		}).Debug("Broadcast analysis alerts")
	}
}
