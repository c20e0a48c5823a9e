package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "almaconnector/pkg/errors"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset")
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestRetry_StopsAtMaxAttempts(t *testing.T) {
	calls := 0
	err := Retry(context.Background(), fastPolicy(3), func() error {
		calls++
		return apperrors.ErrService.WithMessage("bad gateway")
	})

	require.Error(t, err)
	assert.True(t, apperrors.IsService(err))
	assert.Equal(t, 3, calls)
}

func TestRetry_PermanentErrors(t *testing.T) {
	tests := []struct {
		name string
		err  error
	}{
		{"validation error", apperrors.ErrValidation.WithMessage("bad field")},
		{"not found", apperrors.ErrNotFound},
		{"explicit fatal", NewFatalError(errors.New("boom"))},
		{"retryable app error marked fatal", apperrors.ErrService.AsFatal()},
		{"context canceled", context.Canceled},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := Retry(context.Background(), fastPolicy(5), func() error {
				calls++
				return tt.err
			})
			require.Error(t, err)
			assert.Equal(t, 1, calls)
		})
	}
}

func TestRetryWithCallback_ReportsAttempts(t *testing.T) {
	var attempts []int
	_ = RetryWithCallback(context.Background(), fastPolicy(3), func() error {
		return errors.New("timeout")
	}, func(attempt int, err error, nextDelay time.Duration) {
		attempts = append(attempts, attempt)
		assert.LessOrEqual(t, nextDelay, 2*time.Millisecond)
	})

	assert.Equal(t, []int{1, 2}, attempts)
}

func TestPolicy_Delay(t *testing.T) {
	p := Policy{InitialInterval: time.Second, Multiplier: 2, MaxInterval: 5 * time.Second}
	assert.Equal(t, 2*time.Second, p.Delay(1))
	assert.Equal(t, 4*time.Second, p.Delay(2))
	assert.Equal(t, 5*time.Second, p.Delay(10))
}
