// Package scoring turns candidate snapshots into admit/reject decisions.
//
// The scorer is a pure function of (snapshot, config): no clocks, no I/O,
// no hidden state, so every assessment is replayable bit-for-bit from the
// journal.
package scoring

import (
	"token-sniper/internal/config"
	"token-sniper/internal/domain"
	"token-sniper/internal/idhash"
)

// Penalty model: the score starts at 100 and factors subtract from it.
// The steps mirror the tiers the strategy was tuned on; only the weights
// are configurable.
const (
	concentrationPenaltyHigh = 30 // top-10 hold > 50% of supply
	concentrationPenaltyMid  = 20 // > 40%
	concentrationPenaltyLow  = 10 // > 30%

	lpLockPenaltyHigh = 40 // < 70% locked
	lpLockPenaltyMid  = 25 // < 85%
	lpLockPenaltyLow  = 10 // < 95%

	washTradingPenalty = 35

	// Liquidity contributes (stepScore - 0.5) * liquiditySpan, i.e.
	// +-15 around neutral.
	liquiditySpan = 30

	auditPenaltyPausable        = 3
	auditPenaltyMintable        = 3
	auditPenaltyHiddenOwner     = 4
	auditPenaltyOwnershipRecall = 5
	auditPenaltyBalanceMutation = 5
	auditPenaltyExternalCall    = 2

	// Uniformity and address-reuse thresholds for wash detection.
	uniformityCoVThreshold = 0.1
	uniformityMinTrades    = 10
	maxTradesPerAddress    = 5
)

// Assess evaluates one candidate snapshot against the scoring config.
// Deterministic: the same snapshot and config always yield the same
// assessment. Returns ErrInvalidCandidate for snapshots missing required
// identifying fields; such candidates are dropped, not retried.
func Assess(s *domain.CandidateSnapshot, cfg config.ScoringConfig) (*domain.ViabilityAssessment, error) {
	if err := validateSnapshot(s); err != nil {
		return nil, err
	}

	a := &domain.ViabilityAssessment{
		CandidateID: idhash.ComputeAssessmentID(s.Mint, s.CapturedAt),
		Mint:        s.Mint,
		EvaluatedAt: s.CapturedAt,
	}

	// Hard disqualifiers short-circuit: no partial credit for a token
	// that cannot be sold.
	if s.Audit.Honeypot || s.Audit.Blacklisted {
		a.Score = 0
		a.Admit = false
		a.Factors = append(a.Factors, domain.ViabilityFactor{
			Name:   domain.FactorHardDisqualifier,
			Weight: 1,
			Raw:    1,
			Delta:  -100,
		})
		return a, nil
	}

	score := 100.0
	score += applyConcentration(s, cfg, a)
	score += applyLPLock(s, cfg, a)
	score += applyWashTrading(s, cfg, a)
	score += applyLiquidity(s, cfg, a)
	score += applyAuditFlags(s, cfg, a)

	a.Score = clamp(score, 0, 100)
	a.Admit = a.Score >= cfg.ViabilityThreshold
	return a, nil
}

func applyConcentration(s *domain.CandidateSnapshot, cfg config.ScoringConfig, a *domain.ViabilityAssessment) float64 {
	if s.HolderCount == 0 {
		a.Degraded = append(a.Degraded, domain.FactorHolderConcentration)
		return 0
	}

	penalty := 0.0
	switch {
	case s.Top10Concentration > 0.50:
		penalty = concentrationPenaltyHigh
	case s.Top10Concentration > 0.40:
		penalty = concentrationPenaltyMid
	case s.Top10Concentration > 0.30:
		penalty = concentrationPenaltyLow
	}

	delta := -penalty * cfg.ConcentrationWeight
	a.Factors = append(a.Factors, domain.ViabilityFactor{
		Name:   domain.FactorHolderConcentration,
		Weight: cfg.ConcentrationWeight,
		Raw:    s.Top10Concentration,
		Delta:  delta,
	})
	return delta
}

func applyLPLock(s *domain.CandidateSnapshot, cfg config.ScoringConfig, a *domain.ViabilityAssessment) float64 {
	// LP lock state comes from the pool's locker contract; without a
	// resolved pool account it cannot be known.
	if !poolResolved(s.Pool) {
		a.Degraded = append(a.Degraded, domain.FactorLPLock)
		return 0
	}

	penalty := 0.0
	switch {
	case s.LPLockedPct < 0.70:
		penalty = lpLockPenaltyHigh
	case s.LPLockedPct < 0.85:
		penalty = lpLockPenaltyMid
	case s.LPLockedPct < 0.95:
		penalty = lpLockPenaltyLow
	}

	delta := -penalty * cfg.LPLockWeight
	a.Factors = append(a.Factors, domain.ViabilityFactor{
		Name:   domain.FactorLPLock,
		Weight: cfg.LPLockWeight,
		Raw:    s.LPLockedPct,
		Delta:  delta,
	})
	return delta
}

func applyWashTrading(s *domain.CandidateSnapshot, cfg config.ScoringConfig, a *domain.ViabilityAssessment) float64 {
	if len(s.TradeSizes) < cfg.BenfordMinSamples {
		a.Degraded = append(a.Degraded, domain.FactorWashTrading)
		return 0
	}

	chi, ok := benfordChiSquare(s.TradeSizes)
	if !ok {
		a.Degraded = append(a.Degraded, domain.FactorWashTrading)
		return 0
	}

	detected := chi >= cfg.BenfordCriticalValue

	// Suspiciously uniform sizes evade the leading-digit test but are
	// just as synthetic.
	if !detected && len(s.TradeSizes) > uniformityMinTrades {
		detected = coefficientOfVariation(s.TradeSizes) < uniformityCoVThreshold
	}

	// Many trades from few addresses is the third wash signature.
	if !detected && s.UniqueTraders > 0 {
		detected = float64(len(s.TradeSizes))/float64(s.UniqueTraders) > maxTradesPerAddress
	}

	delta := 0.0
	if detected {
		delta = -washTradingPenalty * cfg.WashTradingWeight
	}
	a.Factors = append(a.Factors, domain.ViabilityFactor{
		Name:   domain.FactorWashTrading,
		Weight: cfg.WashTradingWeight,
		Raw:    chi,
		Delta:  delta,
	})
	return delta
}

func applyLiquidity(s *domain.CandidateSnapshot, cfg config.ScoringConfig, a *domain.ViabilityAssessment) float64 {
	if s.LiquidityDepth <= 0 {
		a.Degraded = append(a.Degraded, domain.FactorLiquidityDepth)
		return 0
	}

	step := liquidityStepScore(s.LiquidityDepth, s.Volume24h)
	delta := (step - 0.5) * liquiditySpan * cfg.LiquidityWeight
	a.Factors = append(a.Factors, domain.ViabilityFactor{
		Name:   domain.FactorLiquidityDepth,
		Weight: cfg.LiquidityWeight,
		Raw:    step,
		Delta:  delta,
	})
	return delta
}

// liquidityStepScore maps absolute depth and the depth/volume ratio to a
// step score in [0,1]. Thin pools score 0 regardless of ratio.
func liquidityStepScore(depth, volume24h float64) float64 {
	switch {
	case depth < 10_000:
		return 0
	case depth < 50_000:
		return 0.3
	case depth < 100_000:
		return 0.6
	}
	if volume24h <= 0 || depth/volume24h > 0.5 {
		return 1.0
	}
	return 0.8
}

func applyAuditFlags(s *domain.CandidateSnapshot, cfg config.ScoringConfig, a *domain.ViabilityAssessment) float64 {
	penalty := 0.0
	if s.Audit.TransferPausable {
		penalty += auditPenaltyPausable
	}
	if s.Audit.Mintable {
		penalty += auditPenaltyMintable
	}
	if s.Audit.HiddenOwner {
		penalty += auditPenaltyHiddenOwner
	}
	if s.Audit.OwnershipRecall {
		penalty += auditPenaltyOwnershipRecall
	}
	if s.Audit.BalanceMutation {
		penalty += auditPenaltyBalanceMutation
	}
	if s.Audit.ExternalCall {
		penalty += auditPenaltyExternalCall
	}

	delta := -penalty * cfg.AuditWeight
	a.Factors = append(a.Factors, domain.ViabilityFactor{
		Name:   domain.FactorAuditFlags,
		Weight: cfg.AuditWeight,
		Raw:    penalty,
		Delta:  delta,
	})
	return delta
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
