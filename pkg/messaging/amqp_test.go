package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/errors"
)

type published struct {
	exchange string
	key      string
	msg      amqp.Publishing
}

type fakeChannel struct {
	mu         sync.Mutex
	declared   []string
	published  []published
	publishErr error
	closed     bool
}

func (f *fakeChannel) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.declared = append(f.declared, name)
	return amqp.Queue{Name: name}, nil
}

func (f *fakeChannel) Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, published{exchange: exchange, key: key, msg: msg})
	return nil
}

func (f *fakeChannel) Close() error {
	f.closed = true
	return nil
}

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func connectedClient(config AMQPConfig, ch *fakeChannel) *AMQPClient {
	client := NewAMQPClient(testLogger(), config)
	client.channel = ch
	client.connected = true
	return client
}

func testSummary() analyzer.Summary {
	return analyzer.Summary{
		AnalysisID:        "analysis-1",
		OverallScore:      87.5,
		ObjectiveAchieved: true,
		MissingSteps:      []int{},
	}
}

func TestNewAMQPClientDefaultsRoutingKey(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{URL: "amqp://localhost", QueueName: "analyses"})

	assert.Equal(t, "analyses", client.config.RoutingKey)
	assert.NotNil(t, client.stopChan)
	assert.False(t, client.IsConnected())
}

func TestConnectWithEmptyConfig(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{})

	err := client.Connect()
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrInvalidInput))
	assert.False(t, client.IsConnected())
}

func TestPublishWhenDisconnected(t *testing.T) {
	client := NewAMQPClient(testLogger(), AMQPConfig{URL: "amqp://localhost", QueueName: "analyses"})

	err := client.PublishAnalysis(context.Background(), testSummary(), nil)
	require.Error(t, err)
	assert.True(t, errors.IsErrorType(err, errors.ErrPublishFailed))
	assert.Contains(t, err.Error(), "not connected")
}

func TestPublishAnalysis(t *testing.T) {
	ch := &fakeChannel{}
	client := connectedClient(AMQPConfig{QueueName: "analyses", RoutingKey: "analyses"}, ch)

	err := client.PublishAnalysis(context.Background(), testSummary(), map[string]interface{}{"source": "api"})
	require.NoError(t, err)

	require.Len(t, ch.published, 1)
	p := ch.published[0]
	assert.Equal(t, "", p.exchange)
	assert.Equal(t, "analyses", p.key)
	assert.Equal(t, "application/json", p.msg.ContentType)
	assert.Equal(t, amqp.Persistent, p.msg.DeliveryMode)
	assert.NotEmpty(t, p.msg.MessageId)

	var body AnalysisMessage
	require.NoError(t, json.Unmarshal(p.msg.Body, &body))
	assert.Equal(t, p.msg.MessageId, body.MessageID)
	assert.Equal(t, "analysis-1", body.AnalysisID)
	assert.Equal(t, 87.5, body.Summary.OverallScore)
	assert.Equal(t, "api", body.Metadata["source"])
	assert.False(t, body.DeadLetter)
}

func TestPublishAnalysisBrokerError(t *testing.T) {
	ch := &fakeChannel{publishErr: fmt.Errorf("channel closed")}
	client := connectedClient(AMQPConfig{QueueName: "analyses", RoutingKey: "analyses"}, ch)

	err := client.PublishAnalysis(context.Background(), testSummary(), nil)
	require.Error(t, err)
	assert.Equal(t, "PUBLISH_FAILED", errors.GetErrorCode(err))
}

func TestPublishToDeadLetterQueue(t *testing.T) {
	ch := &fakeChannel{}
	client := connectedClient(AMQPConfig{QueueName: "analyses", RoutingKey: "analyses"}, ch)

	require.NoError(t, client.PublishToDeadLetterQueue(context.Background(), testSummary(), "max-retries-exceeded"))

	assert.Equal(t, []string{"analyses.dead_letter"}, ch.declared)
	require.Len(t, ch.published, 1)
	assert.Equal(t, "analyses.dead_letter", ch.published[0].key)
	assert.Equal(t, "max-retries-exceeded", ch.published[0].msg.Headers["x-dead-letter-reason"])

	var body AnalysisMessage
	require.NoError(t, json.Unmarshal(ch.published[0].msg.Body, &body))
	assert.True(t, body.DeadLetter)
}

func TestDisconnect(t *testing.T) {
	ch := &fakeChannel{}
	client := connectedClient(AMQPConfig{QueueName: "analyses"}, ch)

	client.Disconnect()
	assert.False(t, client.IsConnected())
	assert.True(t, ch.closed)

	// Second disconnect is a no-op
	assert.NotPanics(t, client.Disconnect)
}
