package domain

import "errors"

// Engine error taxonomy.
var (
	// ErrInvalidCandidate marks a malformed snapshot. The candidate is
	// dropped for the round, never retried.
	ErrInvalidCandidate = errors.New("invalid candidate snapshot")

	// ErrProviderUnavailable is returned for a provider whose breaker
	// is open; the coordinator skips to the next provider.
	ErrProviderUnavailable = errors.New("provider unavailable")

	// ErrExecutionFailed means every provider was exhausted or the
	// slippage bound was violated before anything could fill.
	ErrExecutionFailed = errors.New("execution failed")

	// ErrCircuitOpen is the breaker's internal short-circuit signal.
	// It never escapes the execution coordinator.
	ErrCircuitOpen = errors.New("circuit open")

	// ErrHalted means the risk governor denied admission. Callers treat
	// it as a no-op, not a fault.
	ErrHalted = errors.New("engine halted")
)

// Failure kinds recorded on ExecutionResult.
const (
	FailureTimeout   = "TIMEOUT"
	FailureRejected  = "REJECTED"
	FailureReverted  = "REVERTED"
	FailureSlippage  = "SLIPPAGE"
	FailureExhausted = "EXHAUSTED"
)
