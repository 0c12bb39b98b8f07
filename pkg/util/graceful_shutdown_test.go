package util

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietShutdown(timeout time.Duration) *GracefulShutdown {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return NewGracefulShutdown(logger, timeout)
}

func TestShutdownRunsInPriorityOrder(t *testing.T) {
	gs := quietShutdown(time.Second)
	var order []string
	record := func(name string) func(context.Context) error {
		return func(context.Context) error {
			order = append(order, name)
			return nil
		}
	}

	gs.Register("amqp", 20, record("amqp"))
	gs.Register("http", 0, record("http"))
	gs.Register("websocket", 10, record("websocket"))
	gs.Register("sentry", 20, record("sentry"))

	require.NoError(t, gs.Shutdown(context.Background()))
	assert.Equal(t, []string{"http", "websocket", "amqp", "sentry"}, order)
}

func TestShutdownCollectsFailures(t *testing.T) {
	gs := quietShutdown(time.Second)
	brokerErr := errors.New("broker gone")
	ran := false

	gs.Register("amqp", 0, func(context.Context) error { return brokerErr })
	gs.Register("panicky", 1, func(context.Context) error { panic("boom") })
	gs.Register("last", 2, func(context.Context) error {
		ran = true
		return nil
	})

	err := gs.Shutdown(context.Background())
	require.Error(t, err)
	assert.True(t, ran)
	assert.ErrorIs(t, err, brokerErr)

	var multi *MultiShutdownError
	require.ErrorAs(t, err, &multi)
	assert.Len(t, multi.Errors, 2)

	var panicErr *ShutdownPanicError
	assert.ErrorAs(t, err, &panicErr)
}

func TestShutdownTimeoutSkipsRemaining(t *testing.T) {
	gs := quietShutdown(50 * time.Millisecond)
	ran := false

	gs.Register("stuck", 0, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	gs.Register("after", 1, func(context.Context) error {
		ran = true
		return nil
	})

	err := gs.Shutdown(context.Background())
	require.Error(t, err)
	assert.False(t, ran)

	var multi *MultiShutdownError
	require.ErrorAs(t, err, &multi)
	require.Len(t, multi.Errors, 2)
	var timeout *ShutdownTimeoutError
	assert.ErrorAs(t, multi.Errors[1], &timeout)
	assert.Equal(t, "after", timeout.Resource)
}
