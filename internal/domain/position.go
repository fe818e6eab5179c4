package domain

// PositionState is the lifecycle state of an open position.
type PositionState string

const (
	StatePendingEntry  PositionState = "PENDING_ENTRY"
	StateActive        PositionState = "ACTIVE"
	StateTrailingArmed PositionState = "TRAILING_ARMED"
	StatePartialExit   PositionState = "PARTIAL_EXIT"
	StateClosed        PositionState = "CLOSED"
)

// CloseReason explains why a position reached CLOSED.
type CloseReason string

const (
	CloseStopLoss     CloseReason = "STOP_LOSS"
	CloseTakeProfit   CloseReason = "TAKE_PROFIT"
	CloseTrailingStop CloseReason = "TRAILING_STOP"
	CloseEntryFailed  CloseReason = "ENTRY_FAILED"
	CloseError        CloseReason = "ERROR"
	CloseManual       CloseReason = "MANUAL"
)

// PartialExit is one realized slice of a position.
type PartialExit struct {
	Fraction    float64 // fraction of the original size sold
	Price       float64 // realized price
	TimestampMs int64
	Trigger     string // one of the PartialTrigger identifiers
}

// Partial-exit trigger identifiers. FORCED_EXIT marks the filled slice
// of a full exit that could not complete.
const (
	PartialTriggerTrailing    = "TRAILING_STOP"
	PartialTriggerVolumeSurge = "VOLUME_SURGE"
	PartialTriggerForced      = "FORCED_EXIT"
)

// Position is a single token holding managed by one lifecycle monitor.
// Owned exclusively by that monitor from creation until CLOSED.
type Position struct {
	PositionID string // deterministic hash, see idhash
	Mint       string

	State  PositionState
	Reason CloseReason // set only once State == StateClosed

	EntryPrice float64
	EntrySize  float64 // original size in quote units
	// RemainingFrac is the unsold fraction of EntrySize, 1.0 at entry,
	// exactly 0 at CLOSED (except entry-failed/error closes).
	RemainingFrac float64

	StopLossPrice   float64
	TakeProfitPrice float64

	// Trailing stop state, valid once StateTrailingArmed is reached.
	TrailPct      float64 // current dynamic trail percentage
	HighWaterMark float64

	Exits []PartialExit

	OpenedAt int64 // Unix ms, entry fill time
	ClosedAt int64 // Unix ms, zero while open

	RealizedPnL   float64 // quote units, realized across all exits
	UnrealizedPnL float64 // quote units, marked at the last tick
}

// Terminal reports whether the position can no longer transition.
func (p *Position) Terminal() bool {
	return p.State == StateClosed
}

// RealizedFraction sums the partial-exit ledger.
func (p *Position) RealizedFraction() float64 {
	total := 0.0
	for _, e := range p.Exits {
		total += e.Fraction
	}
	return total
}

// PositionTransition is one append-only journal record of a state change.
type PositionTransition struct {
	PositionID  string
	From        PositionState
	To          PositionState
	Reason      CloseReason // populated for transitions into CLOSED
	Price       float64     // tick price that drove the transition
	TimestampMs int64
}
