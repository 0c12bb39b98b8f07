package util

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"

	"github.com/sirupsen/logrus"
)

// PanicHook is told about every recovered panic, e.g. to count it or
// forward it to an error tracker.
type PanicHook func(component string, value interface{})

// PanicHandler provides centralized panic recovery and logging
type PanicHandler struct {
	logger *logrus.Logger

	mu    sync.RWMutex
	hooks []PanicHook
}

// NewPanicHandler creates a new panic handler
func NewPanicHandler(logger *logrus.Logger) *PanicHandler {
	return &PanicHandler{
		logger: logger,
	}
}

// AddHook registers a hook called after each recovered panic is logged.
func (ph *PanicHandler) AddHook(hook PanicHook) {
	if hook == nil {
		return
	}
	ph.mu.Lock()
	ph.hooks = append(ph.hooks, hook)
	ph.mu.Unlock()
}

// Guard runs fn and reports whether it panicked. The panic is logged and
// passed to the hooks, never re-raised.
func (ph *PanicHandler) Guard(component string, fn func()) (panicked bool) {
	defer func() {
		if r := recover(); r != nil {
			panicked = true
			ph.report(component, r)
		}
	}()
	fn()
	return false
}

// Recover recovers from panics and logs them. It must be deferred directly.
func (ph *PanicHandler) Recover(component string) {
	if r := recover(); r != nil {
		ph.report(component, r)
	}
}

// SafeGo runs fn on a new goroutine, reporting a panic instead of crashing
func (ph *PanicHandler) SafeGo(component string, fn func()) {
	go func() {
		defer ph.Recover(component)
		fn()
	}()
}

func (ph *PanicHandler) report(component string, value interface{}) {
	stack := debug.Stack()

	var caller string
	if pc, file, line, ok := runtime.Caller(3); ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			caller = fmt.Sprintf("%s:%d %s", file, line, fn.Name())
		} else {
			caller = fmt.Sprintf("%s:%d", file, line)
		}
	}

	ph.logger.WithFields(logrus.Fields{
		"component":   component,
		"panic_value": value,
		"caller":      caller,
		"stack_trace": string(stack),
	}).Error("Panic recovered")

	ph.mu.RLock()
	hooks := ph.hooks
	ph.mu.RUnlock()
	for _, hook := range hooks {
		hook(component, value)
	}
}
