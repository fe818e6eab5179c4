package execution

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBreaker_TripsAtThreshold(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(5, time.Minute, time.Minute)

	for i := 0; i < 4; i++ {
		require.True(t, b.allow(now))
		b.onFailure(now)
		now = now.Add(time.Second)
	}
	assert.Equal(t, BreakerClosed, b.currentState())

	require.True(t, b.allow(now))
	b.onFailure(now)

	assert.Equal(t, BreakerOpen, b.currentState())
	assert.False(t, b.allow(now.Add(time.Second)))
}

func TestBreaker_WindowExpiryForgetsOldFailures(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(5, time.Minute, time.Minute)

	// Failures spread 20s apart: by the fifth, the first two have aged
	// out of the 60s window, so the circuit never trips.
	for i := 0; i < 5; i++ {
		b.onFailure(now)
		now = now.Add(20 * time.Second)
	}

	assert.Equal(t, BreakerClosed, b.currentState())
	assert.True(t, b.allow(now))
}

func TestBreaker_SuccessClearsFailureCount(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(5, time.Minute, time.Minute)

	for i := 0; i < 4; i++ {
		b.onFailure(now)
	}
	b.onSuccess()

	// Four more failures after the reset must not trip the circuit.
	for i := 0; i < 4; i++ {
		b.onFailure(now)
	}
	assert.Equal(t, BreakerClosed, b.currentState())
}

func TestBreaker_SingleProbeAfterCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(5, time.Minute, time.Minute)

	for i := 0; i < 5; i++ {
		b.onFailure(now)
	}
	require.Equal(t, BreakerOpen, b.currentState())

	// Inside the cooldown every call is short-circuited.
	assert.False(t, b.allow(now.Add(30*time.Second)))
	assert.False(t, b.allow(now.Add(59*time.Second)))

	// Cooldown elapsed: exactly one probe is admitted.
	now = now.Add(time.Minute)
	require.True(t, b.allow(now))
	assert.Equal(t, BreakerHalfOpen, b.currentState())
	assert.False(t, b.allow(now), "second caller must not ride the probe")
}

func TestBreaker_ProbeSuccessCloses(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(5, time.Minute, time.Minute)

	for i := 0; i < 5; i++ {
		b.onFailure(now)
	}
	now = now.Add(time.Minute)
	require.True(t, b.allow(now))

	b.onSuccess()

	assert.Equal(t, BreakerClosed, b.currentState())
	assert.True(t, b.allow(now))
}

func TestBreaker_ProbeFailureReopensAndRestartsCooldown(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	b := newBreaker(5, time.Minute, time.Minute)

	for i := 0; i < 5; i++ {
		b.onFailure(now)
	}
	now = now.Add(time.Minute)
	require.True(t, b.allow(now))

	b.onFailure(now)

	require.Equal(t, BreakerOpen, b.currentState())
	assert.False(t, b.allow(now.Add(59*time.Second)), "cooldown clock restarts from the failed probe")
	assert.True(t, b.allow(now.Add(time.Minute)))
	assert.Equal(t, BreakerHalfOpen, b.currentState())
}
