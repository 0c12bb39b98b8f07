package analytics

import (
	"context"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/messaging"
)

// LogSubscriber logs a line per snapshot and one per alert.
type LogSubscriber struct {
	logger *logrus.Logger
}

// NewLogSubscriber creates a log subscriber.
func NewLogSubscriber(logger *logrus.Logger) *LogSubscriber {
	return &LogSubscriber{logger: logger}
}

func (s *LogSubscriber) OnAnalysis(snapshot *Snapshot) {
	entry := s.logger.WithFields(logrus.Fields{
		"analysis_id":   snapshot.AnalysisID,
		"source":        snapshot.Source,
		"overall_score": snapshot.Summary.OverallScore,
		"average_score": snapshot.Stats.AverageScore,
		"total":         snapshot.Stats.TotalAnalyses,
	})
	entry.Debug("Analytics snapshot")

	for _, alert := range snapshot.Alerts {
		entry.WithFields(logrus.Fields{
			"alert":    alert.Type,
			"severity": alert.Severity,
		}).Warn(alert.Message)
	}
}

// PublisherWriter delivers snapshots through a message publisher. Summaries
// that fail to publish are sent to the dead letter queue when the publisher
// is still connected.
type PublisherWriter struct {
	logger    *logrus.Logger
	publisher messaging.Publisher
}

// NewPublisherWriter creates a writer backed by publisher.
func NewPublisherWriter(logger *logrus.Logger, publisher messaging.Publisher) *PublisherWriter {
	return &PublisherWriter{logger: logger, publisher: publisher}
}

// Save publishes the snapshot's summary with its source, alerts and stats.
func (w *PublisherWriter) Save(ctx context.Context, snapshot *Snapshot) error {
	if snapshot == nil {
		return nil
	}

	alertTypes := make([]string, 0, len(snapshot.Alerts))
	for _, a := range snapshot.Alerts {
		alertTypes = append(alertTypes, a.Type)
	}
	metadata := map[string]interface{}{
		"source": snapshot.Source,
		"alerts": alertTypes,
		"stats":  snapshot.Stats,
	}
	if snapshot.Filename != "" {
		metadata["filename"] = snapshot.Filename
	}

	err := w.publisher.PublishAnalysis(ctx, snapshot.Summary, metadata)
	if err == nil {
		return nil
	}

	if w.publisher.IsConnected() {
		if dlqErr := w.publisher.PublishToDeadLetterQueue(ctx, snapshot.Summary, err.Error()); dlqErr != nil {
			w.logger.WithError(dlqErr).WithField("analysis_id", snapshot.AnalysisID).Error("Failed to publish to dead letter queue")
		}
	}
	return err
}
