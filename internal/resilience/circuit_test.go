package resilience

import (
	"context"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testBreaker(threshold int) (*CircuitBreaker, *time.Time) {
	now := time.Now()
	cb := NewCircuitBreaker("test", CircuitBreakerConfig{
		FailureThreshold: threshold,
		ResetTimeout:     time.Minute,
	})
	cb.nowFunc = func() time.Time { return now }
	return cb, &now
}

func failTransient(ctx context.Context) error {
	return MarkTransient(eris.New("503"), 503)
}

func TestCircuitOpensAfterConsecutiveTransientFailures(t *testing.T) {
	t.Parallel()

	cb, _ := testBreaker(3)

	for i := 0; i < 3; i++ {
		assert.Error(t, cb.Execute(context.Background(), failTransient))
	}
	assert.Equal(t, CircuitOpen, cb.State())

	calls := 0
	err := cb.Execute(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	})
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Zero(t, calls)
}

func TestCircuitIgnoresPermanentErrors(t *testing.T) {
	t.Parallel()

	cb, _ := testBreaker(2)

	// A bad request is the caller's fault, not the service's.
	for i := 0; i < 10; i++ {
		assert.Error(t, cb.Execute(context.Background(), func(ctx context.Context) error {
			return eris.New("400 bad request")
		}))
	}
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitSuccessResetsFailureCount(t *testing.T) {
	t.Parallel()

	cb, _ := testBreaker(3)

	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error { return nil }))
	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.Error(t, cb.Execute(context.Background(), failTransient))

	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitProbeClosesAfterResetTimeout(t *testing.T) {
	t.Parallel()

	cb, now := testBreaker(1)
	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.Equal(t, CircuitOpen, cb.State())

	*now = now.Add(2 * time.Minute)
	assert.Equal(t, CircuitHalfOpen, cb.State())

	got, err := ExecuteVal(context.Background(), cb, func(ctx context.Context) (string, error) {
		return "recovered", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "recovered", got)
	assert.Equal(t, CircuitClosed, cb.State())
}

func TestCircuitFailedProbeReopens(t *testing.T) {
	t.Parallel()

	cb, now := testBreaker(1)
	require.Error(t, cb.Execute(context.Background(), failTransient))

	*now = now.Add(2 * time.Minute)
	require.Error(t, cb.Execute(context.Background(), failTransient))
	assert.Equal(t, CircuitOpen, cb.State())

	// The reset window restarts from the failed probe.
	err := cb.Execute(context.Background(), func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

func TestCircuitReset(t *testing.T) {
	t.Parallel()

	cb, _ := testBreaker(1)
	require.Error(t, cb.Execute(context.Background(), failTransient))
	require.Equal(t, CircuitOpen, cb.State())

	cb.Reset()
	assert.Equal(t, CircuitClosed, cb.State())
	assert.NoError(t, cb.Execute(context.Background(), func(ctx context.Context) error { return nil }))
}

func TestErrCircuitOpenIsNotRetryable(t *testing.T) {
	t.Parallel()

	assert.False(t, Retryable(ErrCircuitOpen))
}

func TestCircuitStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "closed", CircuitClosed.String())
	assert.Equal(t, "open", CircuitOpen.String())
	assert.Equal(t, "half-open", CircuitHalfOpen.String())
}
