package execution

import (
	"sort"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// latencyAlpha is the EWMA smoothing factor for observed latency.
const latencyAlpha = 0.3

// providerState is the health record for one provider: breaker, failure
// tally, latency estimate and a submission rate limiter. Each provider
// has its own lock so unrelated providers never contend.
type providerState struct {
	mu sync.Mutex

	provider Provider
	breaker  *breaker
	limiter  *rate.Limiter

	totalFailures int
	lastFailure   time.Time
	// latencyEWMA is 0 until the first successful call.
	latencyEWMA time.Duration
}

// HealthSnapshot is a read-only view of one provider's health.
type HealthSnapshot struct {
	Provider      string
	State         BreakerState
	TotalFailures int
	LastFailure   time.Time
	Latency       time.Duration
}

// admit checks the breaker and rate limiter, consuming a rate token and
// (in HALF_OPEN) the single probe slot when admission succeeds.
func (ps *providerState) admit(now time.Time) bool {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	if !ps.breaker.allow(now) {
		return false
	}
	if !ps.limiter.Allow() {
		// Rate limited, not a failure. A consumed HALF_OPEN probe slot
		// is handed back so the next caller can take it.
		ps.breaker.probeInFlight = false
		return false
	}
	return true
}

func (ps *providerState) recordSuccess(latency time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.breaker.onSuccess()
	if ps.latencyEWMA == 0 {
		ps.latencyEWMA = latency
	} else {
		ps.latencyEWMA = time.Duration(float64(ps.latencyEWMA)*(1-latencyAlpha) + float64(latency)*latencyAlpha)
	}
}

func (ps *providerState) recordFailure(now time.Time) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	ps.breaker.onFailure(now)
	ps.totalFailures++
	ps.lastFailure = now
}

func (ps *providerState) snapshot() HealthSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	return HealthSnapshot{
		Provider:      ps.provider.Name(),
		State:         ps.breaker.currentState(),
		TotalFailures: ps.totalFailures,
		LastFailure:   ps.lastFailure,
		Latency:       ps.latencyEWMA,
	}
}

// rankProviders orders provider states for a submission attempt: open
// breakers are excluded, the rest sorted by latency EWMA ascending with
// never-measured providers last, ties broken by pool order for
// determinism.
func rankProviders(states []*providerState, now time.Time) []*providerState {
	type ranked struct {
		ps      *providerState
		latency time.Duration
		idx     int
	}

	candidates := make([]ranked, 0, len(states))
	for i, ps := range states {
		ps.mu.Lock()
		st := ps.breaker.currentState()
		// OPEN past its cooldown is still eligible: allow() will move
		// it to HALF_OPEN at admission time.
		eligible := st != BreakerOpen || now.Sub(ps.breaker.openedAt) >= ps.breaker.cooldown
		lat := ps.latencyEWMA
		ps.mu.Unlock()

		if !eligible {
			continue
		}
		candidates = append(candidates, ranked{ps: ps, latency: lat, idx: i})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		li, lj := candidates[i].latency, candidates[j].latency
		if li == 0 {
			li = time.Duration(1<<62 - 1)
		}
		if lj == 0 {
			lj = time.Duration(1<<62 - 1)
		}
		if li != lj {
			return li < lj
		}
		return candidates[i].idx < candidates[j].idx
	})

	out := make([]*providerState, len(candidates))
	for i, c := range candidates {
		out[i] = c.ps
	}
	return out
}
