package execution

import (
	"math"

	"token-sniper/internal/domain"
)

// retryEscalation multiplies the fee on every repeated attempt for the
// same logical intent, outbidding whatever beat the previous attempt.
const retryEscalation = 1.2

// urgencyMultiplier maps order urgency to a fee multiplier. Exits pay
// double: failing to leave a collapsing pool costs more than the fee.
func urgencyMultiplier(u domain.OrderUrgency) float64 {
	if u == domain.UrgencyHigh {
		return 2.0
	}
	return 1.0
}

// PriorityFee derives the priority fee for a submission attempt. Pure
// function of its inputs: the congestion signal (0 = idle, 1 = saturated,
// may exceed 1) is supplied by the caller, never fetched here, so the
// policy is testable without network access.
func PriorityFee(base, congestion float64, urgency domain.OrderUrgency, attempt int) float64 {
	if base <= 0 {
		return 0
	}
	if congestion < 0 {
		congestion = 0
	}
	if attempt < 0 {
		attempt = 0
	}
	return base * (1 + congestion) * urgencyMultiplier(urgency) * math.Pow(retryEscalation, float64(attempt))
}
