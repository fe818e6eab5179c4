package scoring

import "math"

// benfordChiSquare computes the chi-square statistic of the leading-digit
// distribution of values against Benford's law (8 degrees of freedom).
// Returns (statistic, ok); ok is false when the sample is unusable.
func benfordChiSquare(values []float64) (float64, bool) {
	var counts [10]int
	total := 0
	for _, v := range values {
		d := leadingDigit(v)
		if d == 0 {
			continue
		}
		counts[d]++
		total++
	}
	if total == 0 {
		return 0, false
	}

	chi := 0.0
	for d := 1; d <= 9; d++ {
		expected := math.Log10(1+1/float64(d)) * float64(total)
		observed := float64(counts[d])
		chi += (observed - expected) * (observed - expected) / expected
	}
	return chi, true
}

// leadingDigit returns the first significant digit of |v|, or 0 when v
// has none (zero, NaN, Inf).
func leadingDigit(v float64) int {
	v = math.Abs(v)
	if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	for v >= 10 {
		v /= 10
	}
	for v < 1 {
		v *= 10
	}
	return int(v)
}

// coefficientOfVariation returns stddev/mean of values, 0 for empty or
// zero-mean samples. Suspiciously uniform trade sizes produce a very low
// value.
func coefficientOfVariation(values []float64) float64 {
	n := len(values)
	if n == 0 {
		return 0
	}
	mean := 0.0
	for _, v := range values {
		mean += v
	}
	mean /= float64(n)
	if mean == 0 {
		return 0
	}
	variance := 0.0
	for _, v := range values {
		variance += (v - mean) * (v - mean)
	}
	variance /= float64(n)
	return math.Sqrt(variance) / mean
}
