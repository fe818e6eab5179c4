// Package lifecycle drives positions through their state machine, from
// entry fill to terminal close, one monitor goroutine per position.
package lifecycle

import (
	"time"

	"token-sniper/internal/config"
	"token-sniper/internal/domain"
)

// Action is what the monitor must do in response to a tick.
type Action int

const (
	ActionNone Action = iota
	// ActionPartialExit sells Decision.Fraction of the original size.
	ActionPartialExit
	// ActionFullExit sells the whole remaining fraction.
	ActionFullExit
)

// Decision is the outcome of evaluating one tick against a position.
// Transitions carries any state changes the evaluation itself performed
// (arming the trail); exit transitions are appended later, once the exit
// order has actually filled.
type Decision struct {
	Action   Action
	Reason   domain.CloseReason // full exits
	Trigger  string             // partial exits
	Fraction float64            // of the original size, partial exits

	Transitions []domain.PositionTransition
}

// Machine holds the pure transition rules. It mutates positions but
// performs no I/O; the Manager owns ordering and persistence.
type Machine struct {
	cfg config.LifecycleConfig
}

func NewMachine(cfg config.LifecycleConfig) *Machine {
	return &Machine{cfg: cfg}
}

// NewPosition builds a position awaiting its entry fill.
func (m *Machine) NewPosition(id, mint string) *domain.Position {
	return &domain.Position{
		PositionID:    id,
		Mint:          mint,
		State:         domain.StatePendingEntry,
		RemainingFrac: 1.0,
	}
}

// ApplyEntry records a filled entry: the stop-loss and take-profit
// prices are fixed here, from the realized entry price, and never move.
func (m *Machine) ApplyEntry(pos *domain.Position, price, size float64, now time.Time) domain.PositionTransition {
	pos.EntryPrice = price
	pos.EntrySize = size
	pos.RemainingFrac = 1.0
	pos.StopLossPrice = price * (1 - m.cfg.StopLossPct)
	pos.TakeProfitPrice = price * (1 + m.cfg.TakeProfitPct)
	pos.OpenedAt = now.UnixMilli()
	return m.transition(pos, domain.StateActive, "", price, now)
}

// AbortEntry closes a position whose entry never filled. Nothing was
// bought, so no PnL is recorded.
func (m *Machine) AbortEntry(pos *domain.Position, now time.Time) domain.PositionTransition {
	pos.Reason = domain.CloseEntryFailed
	pos.ClosedAt = now.UnixMilli()
	return m.transition(pos, domain.StateClosed, domain.CloseEntryFailed, 0, now)
}

// Evaluate applies one tick to the position. It may arm the trailing
// stop and update the high-water mark in place; any required exit is
// returned as a Decision for the monitor to execute.
func (m *Machine) Evaluate(pos *domain.Position, tick domain.PriceTick, now time.Time) Decision {
	if pos.Terminal() || pos.State == domain.StatePendingEntry {
		return Decision{}
	}

	price := tick.Price
	gain := price/pos.EntryPrice - 1
	pos.UnrealizedPnL = pos.RemainingFrac * pos.EntrySize * gain

	// Stop-loss wins every tie: capital preservation over profit-locking.
	if price <= pos.StopLossPrice {
		return Decision{Action: ActionFullExit, Reason: domain.CloseStopLoss}
	}
	if price >= pos.TakeProfitPrice {
		return Decision{Action: ActionFullExit, Reason: domain.CloseTakeProfit}
	}

	switch pos.State {
	case domain.StateActive:
		return m.evaluateActive(pos, tick, gain, now)
	case domain.StateTrailingArmed:
		return m.evaluateTrailing(pos, tick, gain)
	}
	return Decision{}
}

func (m *Machine) evaluateActive(pos *domain.Position, tick domain.PriceTick, gain float64, now time.Time) Decision {
	// A sell-side volume spike does not wait for price triggers.
	if tick.SellVolumeSurge && pos.RemainingFrac > m.cfg.PartialExitFraction {
		return Decision{
			Action:   ActionPartialExit,
			Trigger:  domain.PartialTriggerVolumeSurge,
			Fraction: m.cfg.PartialExitFraction,
		}
	}

	armed := gain >= m.cfg.TrailingActivationPct

	// Stagnation: an old position that never reached the profit trigger
	// starts trailing anyway instead of idling forever.
	if !armed && pos.OpenedAt > 0 && gain < m.cfg.StagnationProfitPct {
		age := now.Sub(time.UnixMilli(pos.OpenedAt))
		armed = age >= m.cfg.StagnationMaxHold()
	}

	if !armed {
		return Decision{}
	}

	pos.HighWaterMark = tick.Price
	pos.TrailPct = dynamicTrailPct(m.cfg.TrailingBasePct, tick.Volatility, gain)
	return Decision{
		Transitions: []domain.PositionTransition{
			m.transition(pos, domain.StateTrailingArmed, "", tick.Price, now),
		},
	}
}

func (m *Machine) evaluateTrailing(pos *domain.Position, tick domain.PriceTick, gain float64) Decision {
	if tick.Price > pos.HighWaterMark {
		pos.HighWaterMark = tick.Price
	}
	pos.TrailPct = dynamicTrailPct(m.cfg.TrailingBasePct, tick.Volatility, gain)

	stop := pos.HighWaterMark * (1 - pos.TrailPct)
	if tick.Price > stop {
		return Decision{}
	}

	// First trailing hit sells a fraction and keeps trailing the rest,
	// provided the run is large enough to be worth banking.
	if !m.hasTrailingPartial(pos) &&
		gain >= m.cfg.PartialExitMinGain &&
		pos.RemainingFrac > m.cfg.PartialExitFraction {
		return Decision{
			Action:   ActionPartialExit,
			Trigger:  domain.PartialTriggerTrailing,
			Fraction: m.cfg.PartialExitFraction,
		}
	}
	return Decision{Action: ActionFullExit, Reason: domain.CloseTrailingStop}
}

func (m *Machine) hasTrailingPartial(pos *domain.Position) bool {
	for _, e := range pos.Exits {
		if e.Trigger == domain.PartialTriggerTrailing {
			return true
		}
	}
	return false
}

// ApplyPartialExit records a filled partial exit and re-arms the trail
// on the remainder, with the high-water mark reset to the exit price.
// Returns the pair of transitions through PARTIAL_EXIT.
func (m *Machine) ApplyPartialExit(pos *domain.Position, fraction, price float64, trigger string, now time.Time) []domain.PositionTransition {
	if fraction > pos.RemainingFrac {
		fraction = pos.RemainingFrac
	}

	pos.Exits = append(pos.Exits, domain.PartialExit{
		Fraction:    fraction,
		Price:       price,
		TimestampMs: now.UnixMilli(),
		Trigger:     trigger,
	})
	pos.RemainingFrac -= fraction
	pos.RealizedPnL += fraction * pos.EntrySize * (price/pos.EntryPrice - 1)

	out := []domain.PositionTransition{
		m.transition(pos, domain.StatePartialExit, "", price, now),
	}

	pos.HighWaterMark = price
	pos.TrailPct = dynamicTrailPct(m.cfg.TrailingBasePct, 0, price/pos.EntryPrice-1)
	out = append(out, m.transition(pos, domain.StateTrailingArmed, "", price, now))
	return out
}

// ApplyClose records a filled full exit and terminates the position.
func (m *Machine) ApplyClose(pos *domain.Position, reason domain.CloseReason, price float64, now time.Time) domain.PositionTransition {
	pos.RealizedPnL += pos.RemainingFrac * pos.EntrySize * (price/pos.EntryPrice - 1)
	pos.RemainingFrac = 0
	pos.UnrealizedPnL = 0
	pos.Reason = reason
	pos.ClosedAt = now.UnixMilli()
	return m.transition(pos, domain.StateClosed, reason, price, now)
}

// Abort terminates a position whose exit could not be executed. The
// remaining fraction is left as-is: the tokens are still held and need
// manual intervention.
func (m *Machine) Abort(pos *domain.Position, reason domain.CloseReason, now time.Time) domain.PositionTransition {
	pos.Reason = reason
	pos.ClosedAt = now.UnixMilli()
	return m.transition(pos, domain.StateClosed, reason, 0, now)
}

func (m *Machine) transition(pos *domain.Position, to domain.PositionState, reason domain.CloseReason, price float64, now time.Time) domain.PositionTransition {
	from := pos.State
	pos.State = to
	return domain.PositionTransition{
		PositionID:  pos.PositionID,
		From:        from,
		To:          to,
		Reason:      reason,
		Price:       price,
		TimestampMs: now.UnixMilli(),
	}
}
