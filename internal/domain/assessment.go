package domain

// ViabilityFactor is one contribution to a viability score.
type ViabilityFactor struct {
	Name   string  // factor identifier, e.g. "holder_concentration"
	Weight float64 // configured weight applied to the delta
	Raw    float64 // raw feature value the delta was derived from
	Delta  float64 // signed score contribution after weighting
}

// ViabilityAssessment is the scorer's verdict for one candidate snapshot.
// Created once per evaluation; never mutated.
type ViabilityAssessment struct {
	CandidateID string
	Mint        string
	Score       float64 // clamped to [0,100]
	Admit       bool    // Score >= threshold (ties admit)
	Factors     []ViabilityFactor
	// Degraded lists features that could not be computed from the
	// snapshot and therefore contributed nothing.
	Degraded    []string
	EvaluatedAt int64 // Unix timestamp in milliseconds
}

// Factor names recorded in Factors and Degraded.
const (
	FactorHolderConcentration = "holder_concentration"
	FactorLPLock              = "lp_lock"
	FactorWashTrading         = "wash_trading"
	FactorLiquidityDepth      = "liquidity_depth"
	FactorAuditFlags          = "audit_flags"
	FactorHardDisqualifier    = "hard_disqualifier"
)
