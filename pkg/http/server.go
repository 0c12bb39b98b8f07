package http

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/sirupsen/logrus"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/errors"
	"callqa-server/pkg/media"
	"callqa-server/pkg/messaging"
	"callqa-server/pkg/metrics"
	"callqa-server/pkg/realtime/analytics"
	"callqa-server/pkg/util"
	"callqa-server/pkg/version"
)

// Server represents the HTTP API of the call QA service
type Server struct {
	config     *Config
	logger     *logrus.Logger
	httpServer *http.Server
	mux        *http.ServeMux
	handler    http.Handler
	startTime  time.Time

	analyzer  *analyzer.Analyzer
	processor *media.Processor
	analysis  analyzer.Config

	dispatcher         *analytics.Dispatcher
	analyticsWSHandler *AnalyticsWebSocketHandler
	amqpClient         messaging.Publisher

	// tracks asynchronous result fan-out so Shutdown can drain it
	inflight sync.WaitGroup
	panics   *util.PanicHandler
}

// NewServer creates a new HTTP server instance. analysis holds the defaults
// that per-request config overrides are applied on top of.
func NewServer(logger *logrus.Logger, config *Config, a *analyzer.Analyzer, processor *media.Processor, analysis analyzer.Config) *Server {
	if config == nil {
		config = DefaultConfig()
	}

	server := &Server{
		config:    config,
		logger:    logger,
		startTime: time.Now(),
		analyzer:  a,
		processor: processor,
		analysis:  analysis,
		panics:    util.NewPanicHandler(logger),
	}

	mux := http.NewServeMux()
	server.mux = mux

	// Wrap handlers with middleware that adds Server header
	addServerHeader := func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Server", version.ServerHeader())
			next(w, r)
		}
	}

	mux.HandleFunc("GET /health", addServerHeader(server.HealthHandler))
	mux.HandleFunc("GET /api/health", addServerHeader(server.apiHealthHandler))
	mux.HandleFunc("POST /api/analyze", addServerHeader(server.analyzeHandler))
	mux.HandleFunc("GET /api/test-sample", addServerHeader(server.testSampleHandler))
	mux.HandleFunc("POST /api/test-connection", addServerHeader(server.testConnectionHandler))

	if config.EnableMetrics {
		if handler := metrics.Handler(); handler != nil {
			mux.HandleFunc("GET /metrics", addServerHeader(handler.ServeHTTP))
			logger.Info("Prometheus metrics endpoint enabled at /metrics")
		} else {
			logger.Warn("Metrics registry not initialised, /metrics disabled")
		}
	} else {
		logger.Info("Metrics endpoints disabled")
	}

	server.handler = server.withSentryRecovery(server.withCORS(server.withRequestMetrics(mux)))

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf(":%d", config.Port),
		Handler:      server.handler,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server
}

// Handler returns the fully wrapped request handler
func (s *Server) Handler() http.Handler {
	return s.handler
}

// SetDispatcher sets the analytics dispatcher that receives every finished analysis
func (s *Server) SetDispatcher(dispatcher *analytics.Dispatcher) {
	s.dispatcher = dispatcher
}

// SetAnalyticsWebSocketHandler sets the analytics WebSocket handler
func (s *Server) SetAnalyticsWebSocketHandler(handler *AnalyticsWebSocketHandler) {
	s.analyticsWSHandler = handler

	if s.mux != nil {
		s.mux.HandleFunc("GET /ws/analytics", handler.ServeHTTP)
		s.logger.Info("Analytics WebSocket endpoint registered at /ws/analytics")
	}
}

// SetAMQPClient sets the AMQP client reference for health checks
func (s *Server) SetAMQPClient(client messaging.Publisher) {
	s.amqpClient = client
}

// Start starts the HTTP server in a goroutine
func (s *Server) Start() {
	s.logger.WithField("port", s.config.Port).Info("Starting HTTP server")

	go func() {
		s.logger.Infof("HTTP server listening on port %d", s.config.Port)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.WithError(err).Error("HTTP server failed")
		}
	}()
}

// Shutdown gracefully shuts down the HTTP server and waits for pending
// result fan-out to finish
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.inflight.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("Timed out waiting for analytics fan-out")
	}
	return err
}

// ErrorResponse sends a standardized error response
func (s *Server) ErrorResponse(w http.ResponseWriter, err error) {
	errors.WriteError(w, err)
	s.logger.WithError(err).
		WithFields(errors.GetErrorFields(err)).
		WithField("location", errors.GetErrorLocation(err)).
		Warn("HTTP error response sent")
}

func (s *Server) withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", s.config.CORSAllowedOrigin)
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type,Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withSentryRecovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				hub := sentry.CurrentHub().Clone()
				hub.Scope().SetRequest(r)
				hub.RecoverWithContext(r.Context(), rec)
				hub.Flush(2 * time.Second)

				s.logger.WithFields(logrus.Fields{
					"panic": rec,
					"path":  r.URL.Path,
				}).Error("Recovered from panic in HTTP handler")
				errors.WriteError(w, errors.NewInternalError("internal server error"))
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) withRequestMetrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		_, pattern := s.mux.Handler(r)
		if pattern == "" {
			pattern = "unmatched"
		}
		metrics.RecordHTTPRequest(pattern, strconv.Itoa(rec.status))
	})
}

// statusRecorder captures the response status. It passes Hijack through so
// WebSocket upgrades keep working behind the metrics middleware.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hj, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	r.status = http.StatusSwitchingProtocols
	return hj.Hijack()
}

func (r *statusRecorder) Unwrap() http.ResponseWriter {
	return r.ResponseWriter
}
