package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"callqa-server/pkg/analyzer"
	"callqa-server/pkg/errors"
	"callqa-server/pkg/latency"
	"callqa-server/pkg/media"
	"callqa-server/pkg/repetition"
)

// Config represents the complete application configuration
type Config struct {
	HTTP      HTTPConfig      `json:"http"`
	Logging   LoggingConfig   `json:"logging"`
	Analysis  AnalysisConfig  `json:"analysis"`
	Upload    UploadConfig    `json:"upload"`
	Messaging MessagingConfig `json:"messaging"`
	Sentry    SentryConfig    `json:"sentry"`
}

// HTTPConfig holds HTTP server configuration
type HTTPConfig struct {
	Port              int           `json:"port" env:"HTTP_PORT" default:"5000"`
	ReadTimeout       time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"30s"`
	WriteTimeout      time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"120s"`
	EnableMetrics     bool          `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`
	CORSAllowedOrigin string        `json:"cors_allowed_origin" env:"CORS_ALLOWED_ORIGIN" default:"*"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level      string `json:"level" env:"LOG_LEVEL" default:"info"`
	Format     string `json:"format" env:"LOG_FORMAT" default:"json"`
	OutputFile string `json:"output_file" env:"LOG_OUTPUT_FILE"`
}

// AnalysisConfig holds the defaults applied to every analysis request
type AnalysisConfig struct {
	SilenceThreshold              float64 `json:"silence_threshold" env:"SILENCE_THRESHOLD" default:"5.0"`
	IdealCallDurationMin          float64 `json:"ideal_call_duration_min" env:"IDEAL_CALL_DURATION_MIN" default:"1.0"`
	IdealCallDurationMax          float64 `json:"ideal_call_duration_max" env:"IDEAL_CALL_DURATION_MAX" default:"3.5"`
	RepetitionSimilarityThreshold float64 `json:"repetition_similarity_threshold" env:"REPETITION_SIMILARITY_THRESHOLD" default:"0.8"`
	ResponseTimeThreshold         float64 `json:"response_time_threshold" env:"RESPONSE_TIME_THRESHOLD" default:"5.0"`
	RepetitionMode                string  `json:"repetition_mode" env:"REPETITION_MODE" default:"exact"`
	LatencyMode                   string  `json:"latency_mode" env:"LATENCY_MODE" default:"baseline"`
	AudioSeed                     int64   `json:"audio_seed" env:"AUDIO_RANDOM_SEED"`
}

// UploadConfig holds audio upload limits
type UploadConfig struct {
	MaxBytes          int64    `json:"max_bytes" env:"UPLOAD_MAX_BYTES" default:"104857600"`
	AllowedExtensions []string `json:"allowed_extensions" env:"UPLOAD_ALLOWED_EXTENSIONS" default:"mp3,m4a,mp4,wav,webm,ogg"`
	Directory         string   `json:"directory" env:"UPLOAD_DIR" default:"uploads"`
}

// MessagingConfig holds AMQP publishing configuration. Publishing is
// disabled when AMQPUrl is empty.
type MessagingConfig struct {
	AMQPUrl      string `json:"amqp_url" env:"AMQP_URL"`
	QueueName    string `json:"queue_name" env:"AMQP_QUEUE_NAME" default:"callqa-analyses"`
	ExchangeName string `json:"exchange_name" env:"AMQP_EXCHANGE_NAME"`
	RoutingKey   string `json:"routing_key" env:"AMQP_ROUTING_KEY"`
	Durable      bool   `json:"durable" env:"AMQP_QUEUE_DURABLE" default:"true"`
}

// SentryConfig holds error reporting configuration. Reporting is disabled
// when DSN is empty.
type SentryConfig struct {
	DSN         string `json:"dsn" env:"SENTRY_DSN"`
	Environment string `json:"environment" env:"SENTRY_ENVIRONMENT" default:"development"`
}

// Load loads the configuration from environment variables or .env file
func Load(logger *logrus.Logger) (*Config, error) {
	loadEnvFile(logger)

	config := &Config{}

	if err := loadHTTPConfig(logger, &config.HTTP); err != nil {
		return nil, errors.Wrap(err, "failed to load HTTP configuration")
	}

	if err := loadLoggingConfig(logger, &config.Logging); err != nil {
		return nil, errors.Wrap(err, "failed to load logging configuration")
	}

	if err := loadAnalysisConfig(logger, &config.Analysis); err != nil {
		return nil, errors.Wrap(err, "failed to load analysis configuration")
	}

	loadUploadConfig(&config.Upload)
	loadMessagingConfig(&config.Messaging)

	config.Sentry.DSN = getEnv("SENTRY_DSN", "")
	config.Sentry.Environment = getEnv("SENTRY_ENVIRONMENT", "development")

	if err := config.Validate(); err != nil {
		return nil, errors.Wrap(err, "configuration validation failed")
	}

	logger.WithFields(logrus.Fields{
		"http_port":      config.HTTP.Port,
		"metrics":        config.HTTP.EnableMetrics,
		"upload_dir":     config.Upload.Directory,
		"amqp_enabled":   config.Messaging.Enabled(),
		"sentry_enabled": config.Sentry.DSN != "",
	}).Info("Configuration loaded")

	return config, nil
}

func loadEnvFile(logger *logrus.Logger) {
	wd, err := os.Getwd()
	if err != nil {
		logger.WithError(err).Warn("Failed to get current working directory")
		wd = "unknown"
	}

	possibleEnvFiles := []string{
		".env",
		"../.env",
		filepath.Join(wd, ".env"),
	}

	var loadedFrom string
	for _, envFile := range possibleEnvFiles {
		if _, statErr := os.Stat(envFile); statErr != nil {
			continue
		}
		absPath, _ := filepath.Abs(envFile)
		logger.WithField("path", absPath).Debug("Attempting to load .env file")
		if err := godotenv.Load(envFile); err == nil {
			loadedFrom = absPath
			break
		}
	}

	if loadedFrom != "" {
		logger.WithFields(logrus.Fields{
			"working_dir": wd,
			"path":        loadedFrom,
		}).Info("Successfully loaded .env file")
	} else {
		logger.WithField("working_dir", wd).Debug("No .env file found, using environment variables only")
	}
}

func loadHTTPConfig(logger *logrus.Logger, config *HTTPConfig) error {
	port, err := strconv.Atoi(getEnv("HTTP_PORT", "5000"))
	if err != nil || port < 1 || port > 65535 {
		logger.Warn("Invalid HTTP_PORT value, using default: 5000")
		port = 5000
	}
	config.Port = port

	config.ReadTimeout = getEnvDuration("HTTP_READ_TIMEOUT", 30*time.Second)
	config.WriteTimeout = getEnvDuration("HTTP_WRITE_TIMEOUT", 120*time.Second)
	config.EnableMetrics = getEnvBool("HTTP_ENABLE_METRICS", true)
	config.CORSAllowedOrigin = getEnv("CORS_ALLOWED_ORIGIN", "*")

	return nil
}

func loadLoggingConfig(logger *logrus.Logger, config *LoggingConfig) error {
	config.Level = getEnv("LOG_LEVEL", "info")
	if _, err := logrus.ParseLevel(config.Level); err != nil {
		logger.Warnf("Invalid LOG_LEVEL '%s', defaulting to 'info'", config.Level)
		config.Level = "info"
	}

	config.Format = getEnv("LOG_FORMAT", "json")
	if config.Format != "json" && config.Format != "text" {
		logger.Warn("Invalid LOG_FORMAT, must be 'json' or 'text', defaulting to 'json'")
		config.Format = "json"
	}

	config.OutputFile = getEnv("LOG_OUTPUT_FILE", "")

	return nil
}

func loadAnalysisConfig(logger *logrus.Logger, config *AnalysisConfig) error {
	defaults := analyzer.DefaultConfig()

	config.SilenceThreshold = getEnvFloat("SILENCE_THRESHOLD", defaults.SilenceThreshold)
	config.IdealCallDurationMin = getEnvFloat("IDEAL_CALL_DURATION_MIN", defaults.IdealCallDurationMin)
	config.IdealCallDurationMax = getEnvFloat("IDEAL_CALL_DURATION_MAX", defaults.IdealCallDurationMax)
	config.RepetitionSimilarityThreshold = getEnvFloat("REPETITION_SIMILARITY_THRESHOLD", defaults.RepetitionSimilarityThreshold)
	config.ResponseTimeThreshold = getEnvFloat("RESPONSE_TIME_THRESHOLD", defaults.ResponseTimeThreshold)

	config.RepetitionMode = strings.ToLower(getEnv("REPETITION_MODE", string(defaults.RepetitionMode)))
	config.LatencyMode = strings.ToLower(getEnv("LATENCY_MODE", string(defaults.LatencyMode)))

	seed := getEnv("AUDIO_RANDOM_SEED", "")
	if seed != "" {
		v, err := strconv.ParseInt(seed, 10, 64)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("invalid AUDIO_RANDOM_SEED: %s", seed))
		}
		config.AudioSeed = v
	}

	logger.WithFields(logrus.Fields{
		"silence_threshold": config.SilenceThreshold,
		"repetition_mode":   config.RepetitionMode,
		"latency_mode":      config.LatencyMode,
	}).Debug("Analysis defaults loaded")

	return nil
}

func loadUploadConfig(config *UploadConfig) {
	defaults := media.DefaultConfig()

	config.MaxBytes = int64(getEnvInt("UPLOAD_MAX_BYTES", int(defaults.MaxBytes)))
	config.Directory = getEnv("UPLOAD_DIR", defaults.UploadDir)

	config.AllowedExtensions = defaults.AllowedExtensions
	if raw := getEnv("UPLOAD_ALLOWED_EXTENSIONS", ""); raw != "" {
		var exts []string
		for _, ext := range strings.Split(raw, ",") {
			ext = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
			if ext != "" {
				exts = append(exts, ext)
			}
		}
		if len(exts) > 0 {
			config.AllowedExtensions = exts
		}
	}
}

func loadMessagingConfig(config *MessagingConfig) {
	config.AMQPUrl = getEnv("AMQP_URL", "")
	config.QueueName = getEnv("AMQP_QUEUE_NAME", "callqa-analyses")
	config.ExchangeName = getEnv("AMQP_EXCHANGE_NAME", "")
	config.RoutingKey = getEnv("AMQP_ROUTING_KEY", "")
	config.Durable = getEnvBool("AMQP_QUEUE_DURABLE", true)
}

// Enabled reports whether analysis summaries should be published
func (m MessagingConfig) Enabled() bool {
	return m.AMQPUrl != ""
}

// Validate checks the configuration for inconsistent values
func (c *Config) Validate() error {
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return errors.NewInvalidInput(fmt.Sprintf("invalid HTTP port: %d", c.HTTP.Port))
	}

	a := c.Analysis
	if a.SilenceThreshold <= 0 {
		return errors.NewInvalidInput("SILENCE_THRESHOLD must be positive")
	}
	if a.ResponseTimeThreshold <= 0 {
		return errors.NewInvalidInput("RESPONSE_TIME_THRESHOLD must be positive")
	}
	if a.IdealCallDurationMin <= 0 || a.IdealCallDurationMax <= 0 {
		return errors.NewInvalidInput("ideal call duration bounds must be positive")
	}
	if err := c.AnalyzerConfig().Validate(); err != nil {
		return err
	}

	if c.Upload.MaxBytes <= 0 {
		return errors.NewInvalidInput("UPLOAD_MAX_BYTES must be positive")
	}
	if strings.TrimSpace(c.Upload.Directory) == "" {
		return errors.NewInvalidInput("UPLOAD_DIR is empty")
	}

	if c.Messaging.Enabled() && c.Messaging.QueueName == "" && c.Messaging.ExchangeName == "" {
		return errors.NewInvalidInput("AMQP_URL is set but neither AMQP_QUEUE_NAME nor AMQP_EXCHANGE_NAME is")
	}

	if c.Logging.OutputFile != "" {
		f, err := os.OpenFile(c.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("cannot write to log file: %s", c.Logging.OutputFile))
		}
		f.Close()
	}

	return nil
}

// AnalyzerConfig converts the analysis section into per-call analyzer settings
func (c *Config) AnalyzerConfig() analyzer.Config {
	return analyzer.Config{
		SilenceThreshold:              c.Analysis.SilenceThreshold,
		IdealCallDurationMin:          c.Analysis.IdealCallDurationMin,
		IdealCallDurationMax:          c.Analysis.IdealCallDurationMax,
		RepetitionSimilarityThreshold: c.Analysis.RepetitionSimilarityThreshold,
		ResponseTimeThreshold:         c.Analysis.ResponseTimeThreshold,
		RepetitionMode:                repetition.Mode(c.Analysis.RepetitionMode),
		LatencyMode:                   latency.Mode(c.Analysis.LatencyMode),
		AudioSeed:                     c.Analysis.AudioSeed,
	}
}

// MediaConfig converts the upload section into audio processor settings
func (c *Config) MediaConfig() media.Config {
	return media.Config{
		MaxBytes:          c.Upload.MaxBytes,
		AllowedExtensions: c.Upload.AllowedExtensions,
		UploadDir:         c.Upload.Directory,
		Seed:              c.Analysis.AudioSeed,
	}
}

// ApplyLogging applies the logging section to the logger
func (c *Config) ApplyLogging(logger *logrus.Logger) error {
	level, err := logrus.ParseLevel(c.Logging.Level)
	if err != nil {
		return errors.Wrap(err, fmt.Sprintf("invalid log level: %s", c.Logging.Level))
	}
	logger.SetLevel(level)

	if c.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.RFC3339Nano,
		})
	}

	if c.Logging.OutputFile != "" {
		f, err := os.OpenFile(c.Logging.OutputFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
		if err != nil {
			return errors.Wrap(err, fmt.Sprintf("failed to open log file: %s", c.Logging.OutputFile))
		}
		logger.SetOutput(f)
	} else {
		logger.SetOutput(os.Stdout)
	}

	return nil
}

// Helper function to get an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// Helper function to get a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	switch strings.ToLower(value) {
	case "true", "yes", "1", "on":
		return true
	case "false", "no", "0", "off":
		return false
	default:
		return defaultValue
	}
}

// Helper function to get an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}

	return intValue
}

// Helper function to get a duration environment variable with a default value
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}

	return duration
}

// getEnvFloat retrieves an environment variable and converts it to float64
func getEnvFloat(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	floatValue, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return defaultValue
	}

	return floatValue
}
