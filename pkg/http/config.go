package http

import "time"

// Config holds the HTTP server configuration
type Config struct {
	// Port is the HTTP server port
	Port int `json:"port" env:"HTTP_PORT" default:"5000"`

	// EnableMetrics determines if the /metrics endpoint is registered
	EnableMetrics bool `json:"enable_metrics" env:"HTTP_ENABLE_METRICS" default:"true"`

	// ReadTimeout is the maximum duration for reading the entire request
	ReadTimeout time.Duration `json:"read_timeout" env:"HTTP_READ_TIMEOUT" default:"30s"`

	// WriteTimeout is the maximum duration before timing out writes of the response
	WriteTimeout time.Duration `json:"write_timeout" env:"HTTP_WRITE_TIMEOUT" default:"120s"`

	// IdleTimeout is the maximum amount of time to wait for the next request
	IdleTimeout time.Duration `json:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" default:"60s"`

	// CORSAllowedOrigin is sent as Access-Control-Allow-Origin
	CORSAllowedOrigin string `json:"cors_allowed_origin" env:"CORS_ALLOWED_ORIGIN" default:"*"`

	// MaxFormMemory caps the multipart form held in memory; the rest spills to disk
	MaxFormMemory int64 `json:"max_form_memory" default:"33554432"`
}

// DefaultConfig returns default configuration for the HTTP server
func DefaultConfig() *Config {
	return &Config{
		Port:              5000,
		EnableMetrics:     true,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      120 * time.Second,
		IdleTimeout:       60 * time.Second,
		CORSAllowedOrigin: "*",
		MaxFormMemory:     32 << 20,
	}
}
