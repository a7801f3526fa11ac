package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(threshold int, resetTimeout time.Duration) (*CircuitBreaker, *time.Time) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     resetTimeout,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func failingCall(ctx context.Context) (int, error) {
	return 0, eris.New("upstream down")
}

func TestCircuitBreaker_OpensAfterThreshold(t *testing.T) {
	cb, _ := testBreaker(3, time.Minute)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		_, err := ExecuteVal(ctx, cb, failingCall)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrCircuitOpen)
	}

	// Fourth call is rejected without invoking fn.
	called := false
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (int, error) {
		called = true
		return 1, nil
	})
	assert.True(t, errors.Is(err, ErrCircuitOpen))
	assert.False(t, called)
}

func TestCircuitBreaker_HalfOpenProbeRecovers(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	ctx := context.Background()

	_, err := ExecuteVal(ctx, cb, failingCall)
	require.Error(t, err)
	assert.Equal(t, CircuitOpen, cb.State())

	// After the reset timeout a probe is allowed through.
	*now = now.Add(2 * time.Minute)
	val, err := ExecuteVal(ctx, cb, func(ctx context.Context) (int, error) {
		return 7, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 7, val)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_HalfOpenProbeFailureReopens(t *testing.T) {
	cb, now := testBreaker(1, time.Minute)
	ctx := context.Background()

	_, _ = ExecuteVal(ctx, cb, failingCall)
	*now = now.Add(2 * time.Minute)
	_, err := ExecuteVal(ctx, cb, failingCall)
	require.Error(t, err)
	assert.Equal(t, CircuitOpen, cb.State())

	// Immediately after the failed probe, calls are rejected again.
	_, err = ExecuteVal(ctx, cb, failingCall)
	assert.True(t, errors.Is(err, ErrCircuitOpen))
}

func TestCircuitBreaker_SuccessResetsFailureCount(t *testing.T) {
	cb, _ := testBreaker(2, time.Minute)
	ctx := context.Background()

	_, _ = ExecuteVal(ctx, cb, failingCall)
	_, err := ExecuteVal(ctx, cb, func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)

	// One more failure should not open the circuit: the count was reset.
	_, _ = ExecuteVal(ctx, cb, failingCall)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_Reset(t *testing.T) {
	cb, _ := testBreaker(1, time.Hour)
	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	assert.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitBreaker_OnStateChange(t *testing.T) {
	var transitions []string
	cb := NewCircuitBreaker(CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     time.Hour,
		OnStateChange: func(from, to CircuitState) {
			transitions = append(transitions, from.String()+"->"+to.String())
		},
	})

	_, _ = ExecuteVal(context.Background(), cb, failingCall)
	assert.Equal(t, []string{"closed->open"}, transitions)
}
