package dataprocessing

import (
	"math"
)

// Reasons a group's coefficient of variation is undefined
const (
	ReasonSingleMember = "single member group"
	ReasonZeroMean     = "zero mean"
	ReasonNonFinite    = "non-finite value"
)

// CoefficientOfVariation returns the population standard deviation of values
// divided by their mean. ok is false, with a reason, when the statistic is
// undefined: fewer than two values, a zero mean, a NaN/Inf input, or a mean
// or result that does not fit in a float64.
func CoefficientOfVariation(values []float64) (cv float64, reason string, ok bool) {
	if len(values) < 2 {
		return 0, ReasonSingleMember, false
	}

	// running mean so large finite inputs do not overflow a plain sum
	var mean float64
	for i, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return 0, ReasonNonFinite, false
		}
		mean += (v - mean) / float64(i+1)
	}
	if math.IsNaN(mean) || math.IsInf(mean, 0) {
		return 0, ReasonNonFinite, false
	}
	if mean == 0 {
		return 0, ReasonZeroMean, false
	}

	// deviations relative to the mean keep the squares in range
	var sq float64
	for _, v := range values {
		d := v/mean - 1
		sq += d * d
	}
	cv = math.Sqrt(sq / float64(len(values)))
	if mean < 0 {
		cv = -cv
	}
	if math.IsNaN(cv) || math.IsInf(cv, 0) {
		return 0, ReasonNonFinite, false
	}

	return cv, "", true
}
