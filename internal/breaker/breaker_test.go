package breaker

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskpilot/pkg/models"
)

func newTestBreaker(threshold int, cooldown time.Duration) (*Breaker, *time.Time) {
	b := New(Config{FailureThreshold: threshold, Cooldown: cooldown})
	current := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	b.now = func() time.Time { return current }
	return b, &current
}

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	b, _ := newTestBreaker(5, 30*time.Second)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
		require.Equal(t, Closed, b.State(), "failure %d should not trip the breaker", i+1)
	}

	b.RecordFailure()
	assert.Equal(t, Open, b.State())

	err := b.Allow()
	require.Error(t, err)
	assert.True(t, errors.Is(err, models.ErrServiceUnavailable))
}

func TestBreakerSuccessResetsFailureCount(t *testing.T) {
	b, _ := newTestBreaker(5, 30*time.Second)

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	b.RecordSuccess()

	for i := 0; i < 4; i++ {
		b.RecordFailure()
	}
	assert.Equal(t, Closed, b.State(), "count must restart after a success")
}

func TestBreakerAllowsSingleProbeAfterCooldown(t *testing.T) {
	b, clock := newTestBreaker(1, 30*time.Second)

	b.RecordFailure()
	require.Equal(t, Open, b.State())

	// Still cooling down.
	*clock = clock.Add(29 * time.Second)
	require.Error(t, b.Allow())

	// Cooldown elapsed: exactly one probe passes.
	*clock = clock.Add(2 * time.Second)
	require.NoError(t, b.Allow())
	assert.Equal(t, HalfOpen, b.State())

	err := b.Allow()
	require.Error(t, err, "second call during the probe must fail fast")
	assert.True(t, errors.Is(err, models.ErrServiceUnavailable))
}

func TestBreakerProbeOutcomes(t *testing.T) {
	t.Run("successful probe closes", func(t *testing.T) {
		b, clock := newTestBreaker(1, 30*time.Second)
		b.RecordFailure()
		*clock = clock.Add(31 * time.Second)
		require.NoError(t, b.Allow())

		b.RecordSuccess()
		assert.Equal(t, Closed, b.State())
		assert.NoError(t, b.Allow())
	})

	t.Run("failed probe reopens", func(t *testing.T) {
		b, clock := newTestBreaker(1, 30*time.Second)
		b.RecordFailure()
		*clock = clock.Add(31 * time.Second)
		require.NoError(t, b.Allow())

		b.RecordFailure()
		assert.Equal(t, Open, b.State())

		// A fresh cooldown starts from the failed probe.
		require.Error(t, b.Allow())
		*clock = clock.Add(31 * time.Second)
		assert.NoError(t, b.Allow())
	})
}

func TestBreakerDefaults(t *testing.T) {
	b := New(Config{})
	assert.Equal(t, 5, b.config.FailureThreshold)
	assert.Equal(t, 30*time.Second, b.config.Cooldown)
}
