package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/config"
	http_server "callqa-server/pkg/http"
	"callqa-server/pkg/media"
	"callqa-server/pkg/messaging"
	"callqa-server/pkg/metrics"
	"callqa-server/pkg/realtime/analytics"
	"callqa-server/pkg/util"
	"callqa-server/pkg/version"
)

var (
	logger     = logrus.New()
	appConfig  *config.Config
	httpServer *http_server.Server
	amqpClient *messaging.AMQPClient
	wsHandler  *http_server.AnalyticsWebSocketHandler
	shutdown   *util.GracefulShutdown
)

func main() {
	// Set up logger with basic configuration (will be updated after config is loaded)
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stdout)

	if err := initialize(); err != nil {
		if appConfig != nil && appConfig.Sentry.DSN != "" {
			sentry.CaptureException(err)
			sentry.Flush(2 * time.Second)
		}
		logger.WithError(err).Fatal("Failed to initialize application")
	}

	httpServer.Start()
	logger.WithField("version", version.Version).Info("Call QA server started")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.WithField("signal", sig.String()).Info("Received shutdown signal, cleaning up...")

	if err := shutdown.Shutdown(context.Background()); err != nil {
		logger.WithError(err).Error("Application shut down with errors")
		os.Exit(1)
	}
	logger.Info("Application shut down gracefully")
}

// initialize loads configuration and wires every component
func initialize() error {
	var err error

	appConfig, err = config.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := appConfig.ApplyLogging(logger); err != nil {
		return fmt.Errorf("failed to apply logging configuration: %w", err)
	}
	logger.WithField("level", logger.GetLevel().String()).Info("Log level set")

	shutdown = util.NewGracefulShutdown(logger, 15*time.Second)

	if appConfig.Sentry.DSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:              appConfig.Sentry.DSN,
			Environment:      appConfig.Sentry.Environment,
			Release:          "callqa@" + version.Version,
			EnableTracing:    true,
			TracesSampleRate: 0.2,
		})
		if err != nil {
			logger.WithError(err).Warn("Sentry init failed, continuing without error reporting")
		} else {
			logger.Info("Sentry initialized")
			shutdown.Register("sentry", 100, func(context.Context) error {
				sentry.Flush(2 * time.Second)
				return nil
			})
		}
	}

	metrics.StartMetrics(logger, appConfig.HTTP.EnableMetrics)

	callAnalyzer, err := analyzer.New(logger)
	if err != nil {
		return fmt.Errorf("failed to load intent catalog: %w", err)
	}
	if appConfig.Sentry.DSN != "" {
		callAnalyzer.PanicHandler().AddHook(reportPanicToSentry)
	}

	processor := media.NewProcessor(logger, appConfig.MediaConfig())

	httpConfig := http_server.DefaultConfig()
	httpConfig.Port = appConfig.HTTP.Port
	httpConfig.ReadTimeout = appConfig.HTTP.ReadTimeout
	httpConfig.WriteTimeout = appConfig.HTTP.WriteTimeout
	httpConfig.EnableMetrics = appConfig.HTTP.EnableMetrics
	httpConfig.CORSAllowedOrigin = appConfig.HTTP.CORSAllowedOrigin

	httpServer = http_server.NewServer(logger, httpConfig, callAnalyzer, processor, appConfig.AnalyzerConfig())
	shutdown.Register("http", 0, httpServer.Shutdown)

	dispatcher := analytics.NewDispatcher(logger, nil)
	dispatcher.AddSubscriber(analytics.NewLogSubscriber(logger))

	wsHandler = http_server.NewAnalyticsWebSocketHandler(logger, appConfig.HTTP.CORSAllowedOrigin)
	wsHandler.Start()
	httpServer.SetAnalyticsWebSocketHandler(wsHandler)
	dispatcher.AddSubscriber(analytics.NewWebSocketSubscriber(logger, wsHandler))
	shutdown.Register("analytics_websocket", 10, func(context.Context) error {
		wsHandler.Stop()
		return nil
	})

	if appConfig.Messaging.Enabled() {
		initMessaging(dispatcher)
	} else {
		logger.Info("AMQP publishing disabled")
	}

	httpServer.SetDispatcher(dispatcher)
	return nil
}

// initMessaging connects the result publisher. A broker that is down at
// startup does not stop the server; the client keeps reconnecting.
func initMessaging(dispatcher *analytics.Dispatcher) {
	amqpClient = messaging.NewAMQPClient(logger, messaging.AMQPConfig{
		URL:          appConfig.Messaging.AMQPUrl,
		QueueName:    appConfig.Messaging.QueueName,
		ExchangeName: appConfig.Messaging.ExchangeName,
		RoutingKey:   appConfig.Messaging.RoutingKey,
		Durable:      appConfig.Messaging.Durable,
	})
	stop := make(chan struct{})
	if err := amqpClient.Connect(); err != nil {
		logger.WithError(err).Warn("Failed to connect to AMQP broker, results will not be published until it is reachable")
		go retryConnect(amqpClient, stop)
	}

	dispatcher.SetSnapshotWriter(analytics.NewPublisherWriter(logger, amqpClient))
	httpServer.SetAMQPClient(amqpClient)
	shutdown.Register("amqp", 20, func(context.Context) error {
		close(stop)
		amqpClient.Disconnect()
		return nil
	})
	logger.WithField("queue", appConfig.Messaging.QueueName).Info("AMQP publishing enabled")
}

func retryConnect(client messaging.Publisher, stop <-chan struct{}) {
	backoff := time.Second
	for {
		select {
		case <-stop:
			return
		case <-time.After(backoff):
		}

		if err := client.Connect(); err == nil {
			logger.Info("Connected to AMQP broker")
			return
		}
		backoff *= 2
		if backoff > 30*time.Second {
			backoff = 30 * time.Second
		}
	}
}

func reportPanicToSentry(component string, value interface{}) {
	hub := sentry.CurrentHub().Clone()
	hub.Scope().SetTag("component", component)
	hub.Recover(value)
}
