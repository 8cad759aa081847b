package utils

import "math"

// Clamp limits t to the interval [min, max]. The bounds may be given in any
// order.
func Clamp(t, min, max float64) float64 {
	min, max = math.Min(min, max), math.Max(min, max)
	if math.IsNaN(t) {
		return min
	}
	return math.Max(math.Min(t, max), min)
}

// ToUnitClamp returns a function that scales a number from [rMin, rMax] to
// [0, 1], clamping results outside of it.
func ToUnitClamp(rMin, rMax float64) func(v float64) float64 {
	return func(v float64) float64 {
		if rMax == rMin {
			return 0
		}
		return Clamp((v-rMin)/(rMax-rMin), 0, 1)
	}
}
