package broker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func retryingConsumer(attempts int) *Consumer {
	return &Consumer{maxAttempts: attempts, retryBackoff: time.Millisecond, logger: zap.NewNop()}
}

func TestHandleWithRetryRecovers(t *testing.T) {
	c := retryingConsumer(3)

	calls := 0
	err := c.handleWithRetry(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		if calls < 3 {
			return errors.New("scan failed")
		}
		return nil
	}, kafka.Message{Topic: "reconcile-requests", Offset: 7})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestHandleWithRetryGivesUp(t *testing.T) {
	c := retryingConsumer(2)

	calls := 0
	err := c.handleWithRetry(context.Background(), func(context.Context, kafka.Message) error {
		calls++
		return errors.New("scan failed")
	}, kafka.Message{})

	require.EqualError(t, err, "scan failed")
	assert.Equal(t, 2, calls)
}

func TestHandleWithRetryStopsOnCancel(t *testing.T) {
	c := retryingConsumer(5)
	c.retryBackoff = time.Hour

	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	done := make(chan error, 1)
	go func() {
		done <- c.handleWithRetry(ctx, func(context.Context, kafka.Message) error {
			calls++
			return errors.New("scan failed")
		}, kafka.Message{})
	}()

	time.Sleep(10 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(5 * time.Second):
		t.Fatal("handleWithRetry did not return after cancel")
	}
}

func TestWithRetry(t *testing.T) {
	c := &Consumer{maxAttempts: 3, retryBackoff: time.Second}

	WithRetry(5, 10*time.Millisecond)(c)
	assert.Equal(t, 5, c.maxAttempts)
	assert.Equal(t, 10*time.Millisecond, c.retryBackoff)

	WithRetry(0, time.Millisecond)(c)
	assert.Equal(t, 5, c.maxAttempts)
}
