package execution

import "time"

// BreakerState is the circuit state of one provider.
type BreakerState string

const (
	BreakerClosed   BreakerState = "CLOSED"
	BreakerOpen     BreakerState = "OPEN"
	BreakerHalfOpen BreakerState = "HALF_OPEN"
)

// breaker implements a per-provider circuit breaker.
//
// CLOSED counts failures in a sliding window and trips to OPEN at the
// threshold. OPEN short-circuits every call until the cooldown elapses,
// then admits exactly one probe in HALF_OPEN: probe success closes the
// circuit, probe failure reopens it and restarts the cooldown. Recovery
// never skips HALF_OPEN.
//
// Not safe for concurrent use; the owning providerState serializes access.
type breaker struct {
	failureThreshold int
	failureWindow    time.Duration
	cooldown         time.Duration

	state         BreakerState
	failures      []time.Time // failure timestamps within the window
	openedAt      time.Time
	probeInFlight bool
}

func newBreaker(failureThreshold int, failureWindow, cooldown time.Duration) *breaker {
	return &breaker{
		failureThreshold: failureThreshold,
		failureWindow:    failureWindow,
		cooldown:         cooldown,
		state:            BreakerClosed,
	}
}

// allow reports whether a call may proceed at time now. In OPEN it moves
// to HALF_OPEN once the cooldown has elapsed; in HALF_OPEN it admits a
// single probe until that probe resolves.
func (b *breaker) allow(now time.Time) bool {
	switch b.state {
	case BreakerClosed:
		return true
	case BreakerOpen:
		if now.Sub(b.openedAt) < b.cooldown {
			return false
		}
		b.state = BreakerHalfOpen
		b.probeInFlight = true
		return true
	case BreakerHalfOpen:
		if b.probeInFlight {
			return false
		}
		b.probeInFlight = true
		return true
	}
	return false
}

// onSuccess records a successful call.
func (b *breaker) onSuccess() {
	if b.state == BreakerHalfOpen {
		b.state = BreakerClosed
		b.probeInFlight = false
	}
	b.failures = b.failures[:0]
}

// onFailure records a failed call finishing at time now.
func (b *breaker) onFailure(now time.Time) {
	if b.state == BreakerHalfOpen {
		// Failed probe: reopen and restart the cooldown clock.
		b.state = BreakerOpen
		b.openedAt = now
		b.probeInFlight = false
		return
	}

	b.failures = append(b.failures, now)
	b.trimWindow(now)

	if len(b.failures) >= b.failureThreshold {
		b.state = BreakerOpen
		b.openedAt = now
		b.failures = b.failures[:0]
	}
}

// trimWindow drops failures older than the sliding window.
func (b *breaker) trimWindow(now time.Time) {
	cutoff := now.Add(-b.failureWindow)
	kept := b.failures[:0]
	for _, t := range b.failures {
		if t.After(cutoff) {
			kept = append(kept, t)
		}
	}
	b.failures = kept
}

// currentState returns the state without side effects.
func (b *breaker) currentState() BreakerState {
	return b.state
}
