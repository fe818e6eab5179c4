package lifecycle

// Trail percentage bounds. A trail below the floor gets shaken out by
// ordinary noise; above the ceiling it gives back too much.
const (
	trailFloor   = 0.05
	trailCeiling = 0.35
)

// volTrailScale converts the tick volatility measure into extra trail
// width, capped so a chaotic feed cannot blow the trail wide open.
const (
	volTrailScale = 0.5
	volTrailCap   = 0.15
)

// Profit tiers that tighten the trail: the further a position has run,
// the less of the gain it is allowed to give back.
var profitTiers = []struct {
	gain float64 // unrealized gain as a fraction of entry
	mult float64
}{
	{2.00, 0.7},
	{1.50, 0.8},
	{1.00, 0.9},
}

// dynamicTrailPct computes the current trail percentage from the base
// trail, the tick's volatility measure and the unrealized gain.
func dynamicTrailPct(base, volatility, gain float64) float64 {
	if volatility < 0 {
		volatility = 0
	}

	widen := volatility * volTrailScale
	if widen > volTrailCap {
		widen = volTrailCap
	}
	trail := base + widen

	for _, tier := range profitTiers {
		if gain > tier.gain {
			trail *= tier.mult
			break
		}
	}

	if trail < trailFloor {
		return trailFloor
	}
	if trail > trailCeiling {
		return trailCeiling
	}
	return trail
}
