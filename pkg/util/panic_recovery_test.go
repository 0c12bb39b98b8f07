package util

import (
	"io"
	"sync"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
)

func quietHandler() *PanicHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewPanicHandler(logger)
}

func TestGuardRecoversAndCallsHooks(t *testing.T) {
	ph := quietHandler()
	var got []string
	ph.AddHook(func(component string, value interface{}) {
		got = append(got, component+":"+value.(string))
	})

	assert.True(t, ph.Guard("latency", func() { panic("boom") }))
	assert.False(t, ph.Guard("latency", func() {}))
	assert.Equal(t, []string{"latency:boom"}, got)
}

func TestSafeGo(t *testing.T) {
	ph := quietHandler()
	var wg sync.WaitGroup
	wg.Add(1)
	ph.AddHook(func(string, interface{}) { wg.Done() })

	ph.SafeGo("worker", func() { panic("worker failed") })
	wg.Wait()
}
