package backoff

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoffPolicy_ComputeNextInterval(t *testing.T) {
	t.Run("BasicExponentialBackoff", func(t *testing.T) {
		policy := &ExponentialBackoffPolicy{
			InitialInterval: 100 * time.Millisecond,
			BackoffFactor:   2.0,
			MaxInterval:     5 * time.Second,
			MaxRetries:      5,
		}

		testCases := []struct {
			retryCount       int
			expectedInterval time.Duration
			expectError      bool
		}{
			{0, 100 * time.Millisecond, false},
			{1, 200 * time.Millisecond, false},
			{2, 400 * time.Millisecond, false},
			{3, 800 * time.Millisecond, false},
			{4, 1600 * time.Millisecond, false},
			{5, 0, true},
		}

		for _, tc := range testCases {
			interval, err := policy.ComputeNextInterval(tc.retryCount, 0, nil)
			if tc.expectError {
				assert.Error(t, err)
				assert.Equal(t, ErrRetriesExhausted, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tc.expectedInterval, interval)
			}
		}
	})

	t.Run("MaxIntervalCapping", func(t *testing.T) {
		policy := &ExponentialBackoffPolicy{
			InitialInterval: 1 * time.Second,
			BackoffFactor:   2.0,
			MaxInterval:     3 * time.Second,
			MaxRetries:      10,
		}

		testCases := []struct {
			retryCount       int
			expectedInterval time.Duration
		}{
			{0, 1 * time.Second},
			{1, 2 * time.Second},
			{2, 3 * time.Second},
			{3, 3 * time.Second},
		}

		for _, tc := range testCases {
			interval, err := policy.ComputeNextInterval(tc.retryCount, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedInterval, interval)
		}
	})

	t.Run("UnlimitedRetries", func(t *testing.T) {
		policy := &ExponentialBackoffPolicy{
			InitialInterval: 100 * time.Millisecond,
			BackoffFactor:   2.0,
			MaxInterval:     1 * time.Second,
			MaxRetries:      0,
		}

		for i := range 100 {
			interval, err := policy.ComputeNextInterval(i, 0, nil)
			require.NoError(t, err)
			assert.LessOrEqual(t, interval, 1*time.Second)
		}
	})
}

func TestNewExponentialBackoffPolicy(t *testing.T) {
	policy := NewExponentialBackoffPolicy(250 * time.Millisecond)
	assert.Equal(t, 250*time.Millisecond, policy.InitialInterval)
	assert.Equal(t, 2.0, policy.BackoffFactor)
	assert.Equal(t, 10*time.Second, policy.MaxInterval)
	assert.Equal(t, 0, policy.MaxRetries)
}

func TestConstantBackoffPolicy_ComputeNextInterval(t *testing.T) {
	t.Run("ConstantInterval", func(t *testing.T) {
		policy := &ConstantBackoffPolicy{
			Interval:   500 * time.Millisecond,
			MaxRetries: 3,
		}

		for i := range 3 {
			interval, err := policy.ComputeNextInterval(i, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, 500*time.Millisecond, interval)
		}

		_, err := policy.ComputeNextInterval(3, 0, nil)
		assert.Equal(t, ErrRetriesExhausted, err)
	})
}

func TestLinearBackoffPolicy_ComputeNextInterval(t *testing.T) {
	t.Run("LinearGrowth", func(t *testing.T) {
		policy := &LinearBackoffPolicy{
			InitialInterval: 100 * time.Millisecond,
			Increment:       100 * time.Millisecond,
			MaxInterval:     350 * time.Millisecond,
			MaxRetries:      10,
		}

		testCases := []struct {
			retryCount       int
			expectedInterval time.Duration
		}{
			{0, 100 * time.Millisecond},
			{1, 200 * time.Millisecond},
			{2, 300 * time.Millisecond},
			{3, 350 * time.Millisecond},
			{4, 350 * time.Millisecond},
		}

		for _, tc := range testCases {
			interval, err := policy.ComputeNextInterval(tc.retryCount, 0, nil)
			require.NoError(t, err)
			assert.Equal(t, tc.expectedInterval, interval)
		}
	})
}

func TestRetrier_Next(t *testing.T) {
	t.Run("IncrementsRetryCount", func(t *testing.T) {
		policy := &ExponentialBackoffPolicy{
			InitialInterval: 100 * time.Millisecond,
			BackoffFactor:   2.0,
			MaxInterval:     10 * time.Second,
			MaxRetries:      3,
		}
		retrier := NewRetrier(policy)

		interval, err := retrier.Next(nil)
		require.NoError(t, err)
		assert.Equal(t, 100*time.Millisecond, interval)

		interval, err = retrier.Next(nil)
		require.NoError(t, err)
		assert.Equal(t, 200*time.Millisecond, interval)

		interval, err = retrier.Next(nil)
		require.NoError(t, err)
		assert.Equal(t, 400*time.Millisecond, interval)

		_, err = retrier.Next(nil)
		assert.Equal(t, ErrRetriesExhausted, err)
	})
}

func TestRetrier_Reset(t *testing.T) {
	policy := &ConstantBackoffPolicy{
		Interval:   time.Millisecond,
		MaxRetries: 2,
	}
	retrier := NewRetrier(policy)

	_, err := retrier.Next(nil)
	require.NoError(t, err)
	_, err = retrier.Next(nil)
	require.NoError(t, err)
	_, err = retrier.Next(nil)
	assert.Equal(t, ErrRetriesExhausted, err)

	retrier.Reset()

	_, err = retrier.Next(nil)
	require.NoError(t, err)
}

func TestRetry(t *testing.T) {
	t.Run("SucceedsAfterRetries", func(t *testing.T) {
		attempts := 0
		op := func(_ context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("transient")
			}
			return nil
		}

		policy := &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 5}
		err := Retry(context.Background(), op, policy, nil)
		require.NoError(t, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("ReturnsLastErrorWhenExhausted", func(t *testing.T) {
		wantErr := errors.New("always fails")
		attempts := 0
		op := func(_ context.Context) error {
			attempts++
			return wantErr
		}

		policy := &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 2}
		err := Retry(context.Background(), op, policy, nil)
		assert.Equal(t, wantErr, err)
		assert.Equal(t, 3, attempts)
	})

	t.Run("StopsOnNonRetriableError", func(t *testing.T) {
		fatal := errors.New("fatal")
		attempts := 0
		op := func(_ context.Context) error {
			attempts++
			return fatal
		}
		isRetriable := func(err error) bool { return !errors.Is(err, fatal) }

		policy := &ConstantBackoffPolicy{Interval: time.Millisecond, MaxRetries: 5}
		err := Retry(context.Background(), op, policy, isRetriable)
		assert.Equal(t, fatal, err)
		assert.Equal(t, 1, attempts)
	})

	t.Run("RespectsContextCancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		op := func(_ context.Context) error { return errors.New("never") }
		policy := &ConstantBackoffPolicy{Interval: time.Second, MaxRetries: 0}

		err := Retry(ctx, op, policy, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
