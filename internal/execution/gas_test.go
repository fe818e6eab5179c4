package execution

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"token-sniper/internal/domain"
)

func TestPriorityFee(t *testing.T) {
	tests := []struct {
		name       string
		base       float64
		congestion float64
		urgency    domain.OrderUrgency
		attempt    int
		want       float64
	}{
		{
			name: "baseline normal order",
			base: 10_000, congestion: 0, urgency: domain.UrgencyNormal, attempt: 0,
			want: 10_000,
		},
		{
			name: "congestion scales linearly",
			base: 10_000, congestion: 0.5, urgency: domain.UrgencyNormal, attempt: 0,
			want: 15_000,
		},
		{
			name: "high urgency doubles",
			base: 10_000, congestion: 0, urgency: domain.UrgencyHigh, attempt: 0,
			want: 20_000,
		},
		{
			name: "each retry escalates by 1.2x",
			base: 10_000, congestion: 0, urgency: domain.UrgencyNormal, attempt: 2,
			want: 14_400,
		},
		{
			name: "all factors compound",
			base: 10_000, congestion: 1.0, urgency: domain.UrgencyHigh, attempt: 1,
			want: 48_000,
		},
		{
			name: "zero base yields zero fee",
			base: 0, congestion: 2, urgency: domain.UrgencyHigh, attempt: 5,
			want: 0,
		},
		{
			name: "negative congestion clamped",
			base: 10_000, congestion: -1, urgency: domain.UrgencyNormal, attempt: 0,
			want: 10_000,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := PriorityFee(tt.base, tt.congestion, tt.urgency, tt.attempt)
			assert.InDelta(t, tt.want, got, 1e-6)
		})
	}
}

func TestPriorityFee_MonotonicInAttempts(t *testing.T) {
	prev := 0.0
	for attempt := 0; attempt < 6; attempt++ {
		fee := PriorityFee(10_000, 0.3, domain.UrgencyNormal, attempt)
		assert.Greater(t, fee, prev)
		prev = fee
	}
}
