package util

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// GracefulShutdown stops registered resources one at a time in priority order
type GracefulShutdown struct {
	resources []ShutdownResource
	mu        sync.Mutex
	logger    *logrus.Logger
	timeout   time.Duration
}

// ShutdownResource represents a resource that needs graceful shutdown
type ShutdownResource struct {
	Name     string
	Shutdown func(context.Context) error
	Priority int // Lower numbers shut down first
}

// NewGracefulShutdown creates a new graceful shutdown manager. timeout bounds
// the whole sequence.
func NewGracefulShutdown(logger *logrus.Logger, timeout time.Duration) *GracefulShutdown {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &GracefulShutdown{
		logger:  logger,
		timeout: timeout,
	}
}

// Register adds a resource to be shut down. Resources with equal priority
// stop in registration order.
func (gs *GracefulShutdown) Register(name string, priority int, shutdown func(context.Context) error) {
	gs.mu.Lock()
	defer gs.mu.Unlock()

	gs.resources = append(gs.resources, ShutdownResource{Name: name, Priority: priority, Shutdown: shutdown})
	sort.SliceStable(gs.resources, func(i, j int) bool {
		return gs.resources[i].Priority < gs.resources[j].Priority
	})

	gs.logger.WithFields(logrus.Fields{
		"resource": name,
		"priority": priority,
	}).Debug("Registered resource for graceful shutdown")
}

// Shutdown stops every resource, continuing past failures. A resource still
// running when the deadline passes is abandoned and the rest are skipped.
func (gs *GracefulShutdown) Shutdown(ctx context.Context) error {
	gs.mu.Lock()
	resources := append([]ShutdownResource(nil), gs.resources...)
	gs.mu.Unlock()

	gs.logger.WithField("resource_count", len(resources)).Info("Starting graceful shutdown")

	shutdownCtx, cancel := context.WithTimeout(ctx, gs.timeout)
	defer cancel()

	var failures []error
	for i, res := range resources {
		if shutdownCtx.Err() != nil {
			for _, skipped := range resources[i:] {
				failures = append(failures, &ShutdownTimeoutError{Resource: skipped.Name})
			}
			break
		}

		if err := gs.stop(shutdownCtx, res); err != nil {
			gs.logger.WithError(err).WithField("resource", res.Name).Error("Error shutting down resource")
			failures = append(failures, err)
			continue
		}
		gs.logger.WithField("resource", res.Name).Debug("Resource shut down successfully")
	}

	if len(failures) > 0 {
		return &MultiShutdownError{Errors: failures}
	}

	gs.logger.Info("Graceful shutdown completed successfully")
	return nil
}

func (gs *GracefulShutdown) stop(ctx context.Context, res ShutdownResource) error {
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- &ShutdownPanicError{Resource: res.Name, Panic: r}
			}
		}()
		if err := res.Shutdown(ctx); err != nil {
			done <- &ShutdownError{Resource: res.Name, Err: err}
			return
		}
		done <- nil
	}()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return &ShutdownTimeoutError{Resource: res.Name}
	}
}

// ShutdownError wraps a resource's own shutdown failure
type ShutdownError struct {
	Resource string
	Err      error
}

func (e *ShutdownError) Error() string {
	return "shutdown error for " + e.Resource + ": " + e.Err.Error()
}

func (e *ShutdownError) Unwrap() error {
	return e.Err
}

type ShutdownTimeoutError struct {
	Resource string
}

func (e *ShutdownTimeoutError) Error() string {
	return "shutdown timeout for " + e.Resource
}

type ShutdownPanicError struct {
	Resource string
	Panic    interface{}
}

func (e *ShutdownPanicError) Error() string {
	return fmt.Sprintf("panic during shutdown of %s: %v", e.Resource, e.Panic)
}

type MultiShutdownError struct {
	Errors []error
}

func (e *MultiShutdownError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, err := range e.Errors {
		msgs[i] = err.Error()
	}
	return "errors during shutdown: " + strings.Join(msgs, "; ")
}

func (e *MultiShutdownError) Unwrap() []error {
	return e.Errors
}
