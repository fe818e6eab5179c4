// Package risk enforces process-wide exposure limits and the halt policy.
package risk

import (
	"sync"
	"time"

	"github.com/rs/zerolog"

	"token-sniper/internal/config"
	"token-sniper/internal/observability"
)

// Admission denial reasons.
const (
	DenyHalted       = "halted"
	DenyMaxPositions = "max_positions"
)

// Halt reasons.
const (
	HaltDrawdown            = "drawdown"
	HaltConsecutiveFailures = "consecutive_failures"
)

type closeRecord struct {
	at  time.Time
	pnl float64
}

// Governor is the process-wide risk gate. Every new position passes
// through TryAdmit; lifecycle and execution feed outcomes back so the
// governor can trip the halt flag. Once halted, only an operator Reset
// re-enables trading. Open positions are never touched by a halt: their
// exits must still go out.
type Governor struct {
	mu sync.Mutex

	cfg     config.RiskConfig
	metrics *observability.Metrics
	logger  zerolog.Logger
	now     func() time.Time

	openPositions       int
	reserved            int // slots held by admitted entries still filling
	halted              bool
	haltReason          string
	consecutiveFailures int
	closes              []closeRecord
}

// GovernorOptions configures a Governor.
type GovernorOptions struct {
	Config  config.RiskConfig
	Metrics *observability.Metrics
	Logger  zerolog.Logger
	Now     func() time.Time // defaults to time.Now
}

// NewGovernor creates a Governor in the running (non-halted) state.
func NewGovernor(opts GovernorOptions) *Governor {
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Governor{
		cfg:     opts.Config,
		metrics: opts.Metrics,
		logger:  opts.Logger.With().Str("component", "risk").Logger(),
		now:     now,
	}
}

// TryAdmit reports whether a new position may be opened right now. A
// denial returns the reason. Admission takes the slot immediately, so
// entries filling in parallel can never jointly exceed the position cap:
// the caller confirms with OnOpen once the entry fills, or hands the
// slot back with Release when it does not.
func (g *Governor) TryAdmit() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.halted {
		g.deny(DenyHalted)
		return false, DenyHalted
	}
	if g.openPositions+g.reserved >= g.cfg.MaxConcurrentPositions {
		g.deny(DenyMaxPositions)
		return false, DenyMaxPositions
	}
	g.reserved++
	return true, ""
}

// OnOpen converts a slot reserved by TryAdmit into an open position.
func (g *Governor) OnOpen() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reserved > 0 {
		g.reserved--
	}
	g.openPositions++
}

// Release returns a slot reserved by TryAdmit when the entry never
// produced an open position.
func (g *Governor) Release() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.reserved > 0 {
		g.reserved--
	}
}

// OnClose records a closed position and its realized PnL, then
// re-evaluates the rolling drawdown halt condition.
func (g *Governor) OnClose(pnl float64) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.openPositions > 0 {
		g.openPositions--
	}

	now := g.now()
	g.closes = append(g.closes, closeRecord{at: now, pnl: pnl})
	g.pruneWindow(now)

	if dd := g.drawdown(); dd >= g.cfg.DrawdownHaltThreshold {
		g.halt(HaltDrawdown, func(e *zerolog.Event) *zerolog.Event {
			return e.Float64("drawdown", dd).Float64("threshold", g.cfg.DrawdownHaltThreshold)
		})
	}
}

// OnExecutionFailure implements execution.FailureReporter: a whole-pool
// order failure. The configured streak of these halts the engine.
func (g *Governor) OnExecutionFailure() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutiveFailures++
	if g.metrics != nil {
		g.metrics.ConsecutiveFailers.Set(float64(g.consecutiveFailures))
	}

	if g.consecutiveFailures >= g.cfg.ConsecutiveFailureHalt {
		g.halt(HaltConsecutiveFailures, func(e *zerolog.Event) *zerolog.Event {
			return e.Int("failures", g.consecutiveFailures)
		})
	}
}

// OnExecutionSuccess implements execution.FailureReporter: any fill
// breaks the failure streak.
func (g *Governor) OnExecutionSuccess() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.consecutiveFailures = 0
	if g.metrics != nil {
		g.metrics.ConsecutiveFailers.Set(0)
	}
}

// Halted reports the halt flag and its reason.
func (g *Governor) Halted() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.halted, g.haltReason
}

// OpenPositions returns the current open-position count.
func (g *Governor) OpenPositions() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.openPositions
}

// Reset clears the halt flag and the failure streak. Operator action
// only; nothing in the engine calls this.
func (g *Governor) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	wasHalted := g.halted
	g.halted = false
	g.haltReason = ""
	g.consecutiveFailures = 0
	if g.metrics != nil {
		g.metrics.Halted.Set(0)
		g.metrics.ConsecutiveFailers.Set(0)
	}
	if wasHalted {
		g.logger.Warn().Msg("halt flag cleared by operator reset")
	}
}

// halt sets the flag. Callers hold the lock.
func (g *Governor) halt(reason string, fields func(*zerolog.Event) *zerolog.Event) {
	if g.halted {
		return
	}
	g.halted = true
	g.haltReason = reason
	if g.metrics != nil {
		g.metrics.Halted.Set(1)
	}
	fields(g.logger.Error().Str("reason", reason)).Msg("risk halt tripped, new entries suspended")
}

// deny counts a denied admission. Callers hold the lock.
func (g *Governor) deny(reason string) {
	if g.metrics != nil {
		g.metrics.AdmissionsDenied.WithLabelValues(reason).Inc()
	}
}

// pruneWindow drops close records older than the drawdown window.
// Callers hold the lock.
func (g *Governor) pruneWindow(now time.Time) {
	cutoff := now.Add(-g.cfg.DrawdownWindow())
	kept := g.closes[:0]
	for _, c := range g.closes {
		if c.at.After(cutoff) {
			kept = append(kept, c)
		}
	}
	g.closes = kept
}

// drawdown computes the peak-to-current decline of cumulative realized
// PnL across the retained window. Callers hold the lock.
func (g *Governor) drawdown() float64 {
	var sum, peak float64
	for _, c := range g.closes {
		sum += c.pnl
		if sum > peak {
			peak = sum
		}
	}
	return peak - sum
}
