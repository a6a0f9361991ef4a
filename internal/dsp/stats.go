// SPDX-License-Identifier: MIT

package dsp

import "math"

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range xs {
		sum += v
	}
	return sum / float64(len(xs))
}

// StdDev returns the population standard deviation of xs.
func StdDev(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	mu := Mean(xs)
	ss := 0.0
	for _, v := range xs {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(xs)))
}

// MinMax returns the smallest and largest value of xs; (0, 0) when empty.
func MinMax(xs []float64) (min, max float64) {
	if len(xs) == 0 {
		return 0, 0
	}
	min, max = xs[0], xs[0]
	for _, v := range xs[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// LinReg fits ys = slope*xs + intercept by least squares and reports the
// coefficient of determination. Fewer than two points, or degenerate x
// variance, yield a zero fit.
func LinReg(xs, ys []float64) (slope, intercept, r2 float64) {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0, 0, 0
	}
	mx := Mean(xs)
	my := Mean(ys)
	var sxx, sxy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		sxx += dx * dx
		sxy += dx * (ys[i] - my)
	}
	if sxx < 1e-12 {
		return 0, my, 0
	}
	slope = sxy / sxx
	intercept = my - slope*mx

	var ssRes, ssTot float64
	for i := 0; i < n; i++ {
		fit := slope*xs[i] + intercept
		ssRes += (ys[i] - fit) * (ys[i] - fit)
		ssTot += (ys[i] - my) * (ys[i] - my)
	}
	if ssTot < 1e-12 {
		return slope, intercept, 0
	}
	return slope, intercept, 1 - ssRes/ssTot
}

// Pearson returns the correlation coefficient of xs and ys, or 0 when either
// series has (near) zero variance.
func Pearson(xs, ys []float64) float64 {
	n := len(xs)
	if n < 2 || len(ys) != n {
		return 0
	}
	mx := Mean(xs)
	my := Mean(ys)
	var sxy, sxx, syy float64
	for i := 0; i < n; i++ {
		dx := xs[i] - mx
		dy := ys[i] - my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx < 1e-12 || syy < 1e-12 {
		return 0
	}
	return sxy / math.Sqrt(sxx*syy)
}

func hypot(dx, dy float64) float64 {
	return math.Sqrt(dx*dx + dy*dy)
}
