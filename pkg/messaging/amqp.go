package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/streadway/amqp"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/errors"
	"callqa-server/pkg/metrics"
	"callqa-server/pkg/version"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 2 * time.Second

	// 12 hours
	messageExpiration = "43200000"
)

// AnalysisMessage is the body published for every finished analysis
type AnalysisMessage struct {
	MessageID  string                 `json:"message_id"`
	AnalysisID string                 `json:"analysis_id"`
	Timestamp  time.Time              `json:"timestamp"`
	Summary    analyzer.Summary       `json:"summary"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	DeadLetter bool                   `json:"dead_letter,omitempty"`
}

// AMQPConfig holds AMQP client configuration
type AMQPConfig struct {
	URL          string
	QueueName    string
	ExchangeName string
	RoutingKey   string
	Durable      bool
	AutoDelete   bool
}

// channel is the subset of *amqp.Channel the client uses
type channel interface {
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// AMQPClient publishes analysis summaries to a queue or exchange
type AMQPClient struct {
	logger    *logrus.Logger
	config    AMQPConfig
	conn      *amqp.Connection
	channel   channel
	connected bool
	connMutex sync.RWMutex
	stopChan  chan struct{}
}

// NewAMQPClient creates a new AMQP client
func NewAMQPClient(logger *logrus.Logger, config AMQPConfig) *AMQPClient {
	if config.RoutingKey == "" {
		config.RoutingKey = config.QueueName
	}

	return &AMQPClient{
		logger:   logger,
		config:   config,
		stopChan: make(chan struct{}),
	}
}

// Connect establishes a connection to the AMQP server and declares the queue
func (c *AMQPClient) Connect() error {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if c.connected {
		return nil
	}

	if c.config.URL == "" || (c.config.QueueName == "" && c.config.ExchangeName == "") {
		c.logger.Warn("AMQP_URL or AMQP_QUEUE_NAME not set, AMQP publishing will be disabled")
		return errors.NewInvalidInput("AMQP URL or queue name not configured")
	}

	conn, err := amqp.DialConfig(c.config.URL, amqp.Config{
		Heartbeat:  10 * time.Second,
		Dial:       amqp.DefaultDial(connectTimeout),
		Properties: amqp.Table{"connection_name": version.UserAgent()},
	})
	if err != nil {
		metrics.SetAMQPConnectionStatus(false)
		return errors.Wrap(err, "failed to connect to AMQP server")
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return errors.Wrap(err, "failed to open AMQP channel")
	}

	if c.config.QueueName != "" {
		if _, err := ch.QueueDeclare(
			c.config.QueueName,
			c.config.Durable,
			c.config.AutoDelete,
			false, // Exclusive
			false, // No-wait
			nil,
		); err != nil {
			ch.Close()
			conn.Close()
			return errors.Wrap(err, "failed to declare AMQP queue")
		}
	}

	c.conn = conn
	c.channel = ch
	c.connected = true
	c.stopChan = make(chan struct{})
	metrics.SetAMQPConnectionStatus(true)

	c.logger.WithFields(logrus.Fields{
		"exchange": c.config.ExchangeName,
		"queue":    c.config.QueueName,
	}).Info("Connected to AMQP server")

	go c.monitorConnection(conn)

	return nil
}

// Disconnect closes the AMQP connection
func (c *AMQPClient) Disconnect() {
	c.connMutex.Lock()
	defer c.connMutex.Unlock()

	if !c.connected {
		return
	}

	close(c.stopChan)

	if c.channel != nil {
		c.channel.Close()
	}
	if c.conn != nil {
		c.conn.Close()
	}

	c.connected = false
	metrics.SetAMQPConnectionStatus(false)
	c.logger.Info("Disconnected from AMQP server")
}

// IsConnected returns the connection status
func (c *AMQPClient) IsConnected() bool {
	c.connMutex.RLock()
	defer c.connMutex.RUnlock()
	return c.connected
}

// PublishAnalysis publishes the summary of a finished analysis
func (c *AMQPClient) PublishAnalysis(ctx context.Context, summary analyzer.Summary, metadata map[string]interface{}) error {
	message := AnalysisMessage{
		MessageID:  uuid.New().String(),
		AnalysisID: summary.AnalysisID,
		Timestamp:  time.Now().UTC(),
		Summary:    summary,
		Metadata:   metadata,
	}
	err := c.publish(ctx, c.config.RoutingKey, message, nil)
	if err != nil {
		metrics.RecordAMQPPublish(c.target(), "error")
		return err
	}
	metrics.RecordAMQPPublish(c.target(), "success")

	c.logger.WithFields(logrus.Fields{
		"analysis_id": summary.AnalysisID,
		"message_id":  message.MessageID,
	}).Debug("Published analysis summary to AMQP")
	return nil
}

// PublishToDeadLetterQueue publishes a summary that could not be delivered
// normally to "<queue>.dead_letter"
func (c *AMQPClient) PublishToDeadLetterQueue(ctx context.Context, summary analyzer.Summary, reason string) error {
	if c.config.QueueName == "" {
		return errors.NewInvalidInput("dead letter queue requires AMQP_QUEUE_NAME")
	}
	deadLetterQueue := c.config.QueueName + ".dead_letter"

	c.connMutex.RLock()
	ch := c.channel
	connected := c.connected
	c.connMutex.RUnlock()
	if !connected || ch == nil {
		return errors.NewPublishFailed(fmt.Errorf("not connected to AMQP server"), deadLetterQueue)
	}

	if _, err := ch.QueueDeclare(deadLetterQueue, true, false, false, false, nil); err != nil {
		return errors.NewPublishFailed(err, deadLetterQueue)
	}

	message := AnalysisMessage{
		MessageID:  uuid.New().String(),
		AnalysisID: summary.AnalysisID,
		Timestamp:  time.Now().UTC(),
		Summary:    summary,
		DeadLetter: true,
	}
	headers := amqp.Table{
		"x-dead-letter-reason": reason,
		"x-analysis-id":        summary.AnalysisID,
	}
	if err := c.publish(ctx, deadLetterQueue, message, headers); err != nil {
		metrics.RecordAMQPPublish(deadLetterQueue, "error")
		return err
	}
	metrics.RecordAMQPPublish(deadLetterQueue, "success")

	c.logger.WithFields(logrus.Fields{
		"analysis_id":       summary.AnalysisID,
		"dead_letter_queue": deadLetterQueue,
	}).Info("Message published to dead letter queue")
	return nil
}

func (c *AMQPClient) publish(ctx context.Context, key string, message AnalysisMessage, headers amqp.Table) error {
	body, err := json.Marshal(message)
	if err != nil {
		return errors.Wrap(err, "failed to marshal analysis message")
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// streadway/amqp Publish is not context-aware, so the deadline is
	// enforced around it.
	done := make(chan error, 1)
	go func() {
		c.connMutex.RLock()
		defer c.connMutex.RUnlock()

		if !c.connected || c.channel == nil {
			done <- fmt.Errorf("not connected to AMQP server")
			return
		}
		done <- c.channel.Publish(
			c.config.ExchangeName,
			key,
			false, // Mandatory
			false, // Immediate
			amqp.Publishing{
				ContentType:  "application/json",
				MessageId:    message.MessageID,
				Body:         body,
				DeliveryMode: amqp.Persistent,
				Timestamp:    message.Timestamp,
				Expiration:   messageExpiration,
				Headers:      headers,
			},
		)
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.NewPublishFailed(err, c.target())
		}
		return nil
	case <-ctx.Done():
		return errors.NewPublishFailed(ctx.Err(), c.target())
	}
}

func (c *AMQPClient) target() string {
	if c.config.ExchangeName != "" {
		return c.config.ExchangeName
	}
	return c.config.QueueName
}

// monitorConnection reconnects with exponential backoff when the broker
// closes the connection
func (c *AMQPClient) monitorConnection(conn *amqp.Connection) {
	closeChan := conn.NotifyClose(make(chan *amqp.Error, 1))

	c.connMutex.RLock()
	stop := c.stopChan
	c.connMutex.RUnlock()

	select {
	case <-stop:
		return
	case closeErr, ok := <-closeChan:
		if !ok {
			return
		}
		c.connMutex.Lock()
		c.connected = false
		c.connMutex.Unlock()
		metrics.SetAMQPConnectionStatus(false)

		c.logger.WithError(closeErr).Warn("AMQP connection closed, attempting to reconnect")

		for attempt := 1; attempt <= 10; attempt++ {
			c.logger.WithField("attempt", attempt).Info("Reconnecting to AMQP server")

			err := c.Connect()
			if err == nil {
				c.logger.Info("Successfully reconnected to AMQP server")
				return
			}

			c.logger.WithError(err).WithField("attempt", attempt).Error("Failed to reconnect to AMQP server")

			backoff := time.Duration(1<<uint(attempt-1)) * time.Second
			if backoff > 30*time.Second {
				backoff = 30 * time.Second
			}

			select {
			case <-stop:
				return
			case <-time.After(backoff):
			}
		}
	}
}
