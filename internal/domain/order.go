package domain

// OrderSide distinguishes entries from exits.
type OrderSide string

const (
	SideBuy  OrderSide = "BUY"
	SideSell OrderSide = "SELL"
)

// OrderUrgency scales the priority fee attached to a submission.
// Exits carry higher urgency than entries: getting out of a collapsing
// pool is worth paying for, getting in is not.
type OrderUrgency string

const (
	UrgencyNormal OrderUrgency = "NORMAL"
	UrgencyHigh   OrderUrgency = "HIGH"
)

// ExecutionOrder is one trade-submission intent. Orders are never reused:
// every retry of the same logical intent builds a fresh order with a new
// ID and deadline.
type ExecutionOrder struct {
	OrderID     string // uuid, unique per attempt
	PositionID  string // owning position, empty for entry probes
	Side        OrderSide
	Mint        string
	Size        float64 // requested size in quote units
	RefPrice    float64 // market price when the order was built
	MaxSlippage float64 // max tolerated deviation from RefPrice, fraction
	// LiquidityDepth is the pool depth observed when the order was
	// built; drives micro-execution clip sizing.
	LiquidityDepth float64
	Urgency        OrderUrgency
	DeadlineMs     int64 // Unix ms after which the order must not be sent
}

// Fill is one confirmed child-order execution.
type Fill struct {
	Price    float64
	Size     float64
	Provider string // provider that carried the fill
	FilledAt int64  // Unix ms
}

// ExecutionStatus classifies the outcome of a submission.
type ExecutionStatus string

const (
	ExecFilled  ExecutionStatus = "FILLED"
	ExecPartial ExecutionStatus = "PARTIAL"
	ExecFailed  ExecutionStatus = "FAILED"
	// ExecUnknown marks an order whose final state was not observed
	// before shutdown; requires manual reconciliation on restart.
	ExecUnknown ExecutionStatus = "UNKNOWN"
)

// ExecutionResult is the coordinator's answer to one ExecutionOrder.
// Partial fills are not errors: on-chain fills cannot be rolled back, so
// whatever filled is reported as-is.
type ExecutionResult struct {
	OrderID     string
	Status      ExecutionStatus
	Fills       []Fill
	FailureKind string // what cut the order short, empty when FILLED
	CompletedAt int64  // Unix ms
}

// FilledSize sums the fills.
func (r *ExecutionResult) FilledSize() float64 {
	total := 0.0
	for _, f := range r.Fills {
		total += f.Size
	}
	return total
}

// AvgPrice is the size-weighted average fill price, 0 if nothing filled.
func (r *ExecutionResult) AvgPrice() float64 {
	size := r.FilledSize()
	if size == 0 {
		return 0
	}
	weighted := 0.0
	for _, f := range r.Fills {
		weighted += f.Price * f.Size
	}
	return weighted / size
}
