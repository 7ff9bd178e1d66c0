package intervals

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// finiteValues drops NaN and Inf entries.
func finiteValues(values []float64) []float64 {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		if isFinite(v) {
			out = append(out, v)
		}
	}
	return out
}

// average is the mean of the finite values, NaN when there are none.
func average(values []float64) float64 {
	vals := finiteValues(values)
	if len(vals) == 0 {
		return math.NaN()
	}
	return stat.Mean(vals, nil)
}

// maxValue is the maximum of the finite values, NaN when there are none.
func maxValue(values []float64) float64 {
	vals := finiteValues(values)
	if len(vals) == 0 {
		return math.NaN()
	}
	return floats.Max(vals)
}

// median averages the two middle values for even counts.
func median(values []float64) float64 {
	vals := finiteValues(values)
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	mid := len(vals) / 2
	if len(vals)%2 == 1 {
		return vals[mid]
	}
	return (vals[mid-1] + vals[mid]) / 2
}

func roundTo(v float64, decimals int) float64 {
	if !isFinite(v) {
		return v
	}
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}

func roundPtr(v *float64, decimals int) *float64 {
	if v == nil {
		return nil
	}
	r := roundTo(*v, decimals)
	return &r
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func floatPtr(v float64) *float64 {
	out := v
	return &out
}

// finitePtr maps NaN and Inf to nil.
func finitePtr(v float64) *float64 {
	if !isFinite(v) {
		return nil
	}
	return floatPtr(v)
}
