package messaging

import (
	"context"

	"callqa-server/pkg/analyzer"
)

// Publisher defines the interface for analysis summary publishers
type Publisher interface {
	PublishAnalysis(ctx context.Context, summary analyzer.Summary, metadata map[string]interface{}) error
	PublishToDeadLetterQueue(ctx context.Context, summary analyzer.Summary, reason string) error
	IsConnected() bool
	Connect() error
	Disconnect()
}

var _ Publisher = (*AMQPClient)(nil)
