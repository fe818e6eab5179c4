package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDynamicTrailPct(t *testing.T) {
	tests := []struct {
		name       string
		base       float64
		volatility float64
		gain       float64
		want       float64
	}{
		{"base only", 0.20, 0, 0.5, 0.20},
		{"volatility widens", 0.20, 0.2, 0.5, 0.30},
		{"volatility contribution capped", 0.20, 0.9, 0.5, 0.35},
		{"tier one tightens above 100%", 0.20, 0, 1.2, 0.18},
		{"tier two tightens above 150%", 0.20, 0, 1.6, 0.16},
		{"tier three tightens above 200%", 0.20, 0, 2.5, 0.14},
		{"exactly 100% stays in base tier", 0.20, 0, 1.0, 0.20},
		{"floor clamp", 0.05, 0, 3.0, 0.05},
		{"ceiling clamp", 0.30, 0.5, 0.2, 0.35},
		{"negative volatility ignored", 0.20, -1, 0.5, 0.20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, dynamicTrailPct(tt.base, tt.volatility, tt.gain), 1e-9)
		})
	}
}

func TestDynamicTrailPct_TightensWithProfit(t *testing.T) {
	// More profit never widens the trail.
	prev := dynamicTrailPct(0.20, 0.1, 0)
	for _, gain := range []float64{0.5, 1.1, 1.6, 2.1, 3.0} {
		cur := dynamicTrailPct(0.20, 0.1, gain)
		assert.LessOrEqual(t, cur, prev, "gain %v", gain)
		prev = cur
	}
}
