package common

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Veraticus/invoice-chaser/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) service.RetryOptions {
	return service.RetryOptions{
		MaxAttempts:  attempts,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2,
	}
}

func TestWithRetry(t *testing.T) {
	errBoom := errors.New("boom")

	tests := []struct {
		name       string
		failures   int
		failWith   error
		attempts   int
		wantCalls  int
		wantErr    error
		wantNilErr bool
	}{
		{
			name:       "succeeds first time",
			failures:   0,
			attempts:   3,
			wantCalls:  1,
			wantNilErr: true,
		},
		{
			name:       "succeeds after transient failures",
			failures:   2,
			failWith:   errBoom,
			attempts:   3,
			wantCalls:  3,
			wantNilErr: true,
		},
		{
			name:      "exhausts attempts",
			failures:  10,
			failWith:  errBoom,
			attempts:  3,
			wantCalls: 3,
			wantErr:   ErrMaxRetries,
		},
		{
			name:      "permanent error stops immediately",
			failures:  10,
			failWith:  Permanent(errBoom),
			attempts:  5,
			wantCalls: 1,
			wantErr:   errBoom,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := WithRetry(context.Background(), func() error {
				calls++
				if calls <= tt.failures {
					return tt.failWith
				}
				return nil
			}, fastRetry(tt.attempts))

			assert.Equal(t, tt.wantCalls, calls)
			if tt.wantNilErr {
				require.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestWithRetry_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	opts := fastRetry(5)
	opts.InitialDelay = time.Second

	err := WithRetry(ctx, func() error { return errors.New("fail") }, opts)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWithRetryValue(t *testing.T) {
	calls := 0
	got, err := WithRetryValue(context.Background(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("flaky")
		}
		return "thread-1", nil
	}, fastRetry(3))

	require.NoError(t, err)
	assert.Equal(t, "thread-1", got)
	assert.Equal(t, 2, calls)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrRateLimit))
	assert.True(t, IsRetryable(ErrTransport))
	assert.True(t, IsRetryable(&RetryableError{Err: errors.New("x"), Retryable: true}))
	assert.False(t, IsRetryable(Permanent(errors.New("x"))))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestIsConfigError(t *testing.T) {
	assert.True(t, IsConfigError(ErrMissingConfig))
	assert.True(t, IsConfigError(NewUserError("set llm.anthropic_api_key", ErrMissingConfig)))
	assert.False(t, IsConfigError(ErrTransport))
}
