package execution

import (
	"context"

	"token-sniper/internal/domain"
)

// SubmitRequest is one child-order submission handed to a provider.
type SubmitRequest struct {
	OrderID     string
	Side        domain.OrderSide
	Mint        string
	Size        float64 // quote units for this clip
	RefPrice    float64
	MaxSlippage float64 // the provider enforces this as a min-out bound
	PriorityFee float64 // lamports
}

// SubmitReceipt is a provider's confirmation of an executed child order.
type SubmitReceipt struct {
	Price float64 // realized execution price
	Size  float64 // executed size, equals the requested clip size
}

// Provider is one trade-submission backend. Implementations must respect
// the context deadline; the coordinator bounds every call.
type Provider interface {
	Name() string
	Submit(ctx context.Context, req SubmitRequest) (*SubmitReceipt, error)
}

// FailureReporter receives pool-level outcome signals. The risk governor
// implements it to drive the consecutive-failure halt.
type FailureReporter interface {
	// OnExecutionFailure is called when an order fails across the whole
	// provider pool.
	OnExecutionFailure()
	// OnExecutionSuccess is called when an order fills (fully or
	// partially), resetting the consecutive-failure count.
	OnExecutionSuccess()
}
