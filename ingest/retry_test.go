package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/poiesic/docpipe/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryTransientSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), func() error {
		calls++
		return nil
	}, 3, time.Millisecond, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryTransientRecovers(t *testing.T) {
	calls := 0
	var retried []int
	err := RetryTransient(context.Background(), func() error {
		calls++
		if calls < 3 {
			return core.MarkTransient(errors.New("timeout"))
		}
		return nil
	}, 5, time.Millisecond, func(attempt int, err error) {
		retried = append(retried, attempt)
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, []int{1, 2}, retried)
}

func TestRetryTransientExhausted(t *testing.T) {
	calls := 0
	cause := core.MarkTransient(errors.New("still down"))
	err := RetryTransient(context.Background(), func() error {
		calls++
		return cause
	}, 3, time.Millisecond, nil)
	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.True(t, core.IsTransient(err))
}

func TestRetryStopsOnPermanent(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), func() error {
		calls++
		return core.MarkPermanent(errors.New("malformed"))
	}, 5, time.Millisecond, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls, "permanent failures must not be retried")
	assert.True(t, core.IsPermanent(err))
}

func TestRetryStopsOnUnclassified(t *testing.T) {
	calls := 0
	err := RetryTransient(context.Background(), func() error {
		calls++
		return errors.New("plain error")
	}, 5, time.Millisecond, nil)
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetryRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := RetryTransient(ctx, func() error {
		calls++
		cancel()
		return core.MarkTransient(errors.New("timeout"))
	}, 5, time.Minute, nil)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, calls)
}

func TestRetryInvalidAttempts(t *testing.T) {
	err := RetryTransient(context.Background(), func() error { return nil }, 0, time.Millisecond, nil)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
}
