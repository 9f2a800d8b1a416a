/*
Copyright 2026 Chainguard, Inc.
SPDX-License-Identifier: Apache-2.0
*/

package consistency

import (
	"math"
	"sort"

	"chainguard.dev/judgeval/judge"
)

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	if len(xs) < 2 {
		return 0
	}
	m := Mean(xs)
	var ss float64
	for _, x := range xs {
		ss += (x - m) * (x - m)
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// CoefficientOfVariation returns stddev/mean as a percentage. It is 0 for
// fewer than two values or a zero mean.
func CoefficientOfVariation(xs []float64) float64 {
	m := Mean(xs)
	if len(xs) < 2 || m == 0 {
		return 0
	}
	return StdDev(xs) / m * 100
}

// Median returns the middle value of xs after sorting, taking the upper
// middle for even lengths.
func Median(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)
	return sorted[len(sorted)/2]
}

func scores(samples []*judge.Result) []float64 {
	out := make([]float64, len(samples))
	for i, s := range samples {
		out[i] = s.Score
	}
	return out
}

// selectSample picks the representative sample. samples must not be empty.
func selectSample(policy Selection, samples []*judge.Result) *judge.Result {
	switch policy {
	case SelectMeanClosest:
		mean := Mean(scores(samples))
		best := samples[0]
		for _, s := range samples[1:] {
			if math.Abs(s.Score-mean) < math.Abs(best.Score-mean) {
				best = s
			}
		}
		return best
	default:
		sorted := append([]*judge.Result(nil), samples...)
		sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Score < sorted[j].Score })
		return sorted[len(sorted)/2]
	}
}
