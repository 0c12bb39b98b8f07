package http

import (
	"encoding/json"
	"net/http"
	"os"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"callqa-server/pkg/version"
)

// Health states, best first.
const (
	statusHealthy   = "healthy"
	statusDegraded  = "degraded"
	statusUnhealthy = "unhealthy"
)

// HealthStatus is the body of GET /health
type HealthStatus struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Uptime    string                 `json:"uptime"`
	Version   string                 `json:"version"`
	Checks    map[string]CheckResult `json:"checks"`
	System    SystemInfo             `json:"system"`
}

// CheckResult is the outcome of one component check
type CheckResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// SystemInfo contains process resource information
type SystemInfo struct {
	GoRoutines       int    `json:"goroutines"`
	MemoryMB         uint64 `json:"memory_mb"`
	CPUCount         int    `json:"cpu_count"`
	WebSocketClients int    `json:"websocket_clients"`
}

// healthChecks returns the checks for the components this server has. A
// component that was never configured is not checked.
func (s *Server) healthChecks() map[string]func() CheckResult {
	checks := map[string]func() CheckResult{
		"analyzer": func() CheckResult {
			if s.analyzer == nil {
				return CheckResult{statusUnhealthy, "Analyzer not initialized"}
			}
			return CheckResult{statusHealthy, "Intent catalog loaded"}
		},
	}
	if s.processor != nil {
		checks["uploads"] = func() CheckResult {
			if info, err := os.Stat(s.processor.Config().UploadDir); err == nil && !info.IsDir() {
				return CheckResult{statusDegraded, "Upload path is not a directory"}
			}
			return CheckResult{statusHealthy, "Audio uploads accepted"}
		}
	}
	if s.analyticsWSHandler != nil {
		checks["websocket"] = func() CheckResult {
			return CheckResult{statusHealthy, "Analytics stream is running"}
		}
	}
	if s.amqpClient != nil {
		checks["amqp"] = func() CheckResult {
			if !s.amqpClient.IsConnected() {
				return CheckResult{statusDegraded, "AMQP disconnected"}
			}
			return CheckResult{statusHealthy, "AMQP connected"}
		}
	}
	return checks
}

// HealthHandler reports the state of the analyzer and its delivery paths.
// Only an unhealthy analyzer turns the response into a 503.
func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	started := time.Now()

	health := HealthStatus{
		Status:    statusHealthy,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Uptime:    time.Since(s.startTime).Round(time.Second).String(),
		Version:   version.Version,
		Checks:    make(map[string]CheckResult),
	}
	for name, check := range s.healthChecks() {
		result := check()
		health.Checks[name] = result
		health.Status = worse(health.Status, result.Status)
	}

	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)
	health.System = SystemInfo{
		GoRoutines: runtime.NumGoroutine(),
		MemoryMB:   mem.Alloc / 1024 / 1024,
		CPUCount:   runtime.NumCPU(),
	}
	if s.analyticsWSHandler != nil {
		health.System.WebSocketClients = s.analyticsWSHandler.GetConnectedClients()
	}

	if r.URL.Query().Get("detailed") == "true" {
		s.logger.WithFields(logrus.Fields{
			"status":   health.Status,
			"checks":   health.Checks,
			"duration": time.Since(started),
		}).Debug("Health check performed")
	}

	code := http.StatusOK
	if health.Status == statusUnhealthy {
		code = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(health)
}

func worse(a, b string) string {
	rank := map[string]int{statusHealthy: 0, statusDegraded: 1, statusUnhealthy: 2}
	if rank[b] > rank[a] {
		return b
	}
	return a
}
