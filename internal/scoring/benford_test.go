package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLeadingDigit(t *testing.T) {
	tests := []struct {
		in   float64
		want int
	}{
		{1, 1},
		{9, 9},
		{42, 4},
		{999.9, 9},
		{0.0042, 4},
		{-370, 3},
		{0, 0},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, leadingDigit(tt.in), "leadingDigit(%v)", tt.in)
	}
}

func TestBenfordChiSquare_UniformSample(t *testing.T) {
	// Every value starting with the same digit is maximally non-Benford.
	values := make([]float64, 100)
	for i := range values {
		values[i] = 5000
	}

	chi, ok := benfordChiSquare(values)
	assert.True(t, ok)
	assert.Greater(t, chi, 15.507)
}

func TestBenfordChiSquare_EmptySample(t *testing.T) {
	_, ok := benfordChiSquare(nil)
	assert.False(t, ok)

	_, ok = benfordChiSquare([]float64{0, 0, 0})
	assert.False(t, ok)
}

func TestCoefficientOfVariation(t *testing.T) {
	uniform := []float64{100, 100, 100, 100}
	assert.InDelta(t, 0, coefficientOfVariation(uniform), 1e-9)

	spread := []float64{10, 1000, 50, 40000}
	assert.Greater(t, coefficientOfVariation(spread), 1.0)

	assert.Equal(t, 0.0, coefficientOfVariation(nil))
}
