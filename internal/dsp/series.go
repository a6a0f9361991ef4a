// SPDX-License-Identifier: MIT

package dsp

// Resample interpolates the irregular series (ts, vs) onto a uniform grid at
// the given rate (Hz, ts in ms). The grid starts at ts[0] and steps by
// 1000/rate until the last timestamp. Values are piecewise-linear between
// samples and clamp to the edge values outside the covered range.
// Non-increasing timestamps are dropped before interpolation.
func Resample(ts, vs []float64, rate float64) (grid, out []float64) {
	if len(ts) == 0 || len(ts) != len(vs) || rate <= 0 {
		return nil, nil
	}

	// Drop backwards or duplicate timestamps; keep the first occurrence.
	ct := make([]float64, 0, len(ts))
	cv := make([]float64, 0, len(vs))
	for i := range ts {
		if len(ct) > 0 && ts[i] <= ct[len(ct)-1] {
			continue
		}
		ct = append(ct, ts[i])
		cv = append(cv, vs[i])
	}
	if len(ct) < 2 {
		return nil, nil
	}

	step := 1000.0 / rate
	start, end := ct[0], ct[len(ct)-1]
	n := int((end-start)/step) + 1
	grid = make([]float64, 0, n)
	out = make([]float64, 0, n)

	j := 0
	for t := start; t <= end; t += step {
		for j < len(ct)-2 && ct[j+1] <= t {
			j++
		}
		t0, t1 := ct[j], ct[j+1]
		v0, v1 := cv[j], cv[j+1]
		var v float64
		switch {
		case t <= t0:
			v = v0
		case t >= t1:
			v = v1
		default:
			frac := (t - t0) / (t1 - t0)
			v = v0 + (v1-v0)*frac
		}
		grid = append(grid, t)
		out = append(out, v)
	}
	return grid, out
}

// Velocity returns forward-difference speed magnitudes in px/s for the 2D
// trajectory (ts in ms). The speed over (i-1, i] is reported at ts[i]; pairs
// with non-positive dt are skipped.
func Velocity(ts, xs, ys []float64) (vts, speed []float64) {
	n := len(ts)
	if n < 2 || len(xs) != n || len(ys) != n {
		return nil, nil
	}
	vts = make([]float64, 0, n-1)
	speed = make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		dt := ts[i] - ts[i-1]
		if dt <= 0 {
			continue
		}
		dx := xs[i] - xs[i-1]
		dy := ys[i] - ys[i-1]
		dist := hypot(dx, dy)
		vts = append(vts, ts[i])
		speed = append(speed, dist/dt*1000)
	}
	return vts, speed
}

// MovingAverage returns the centered moving average of xs with the given
// window size; windows truncate at the edges. window <= 1 returns a copy.
func MovingAverage(xs []float64, window int) []float64 {
	n := len(xs)
	out := make([]float64, n)
	if window <= 1 {
		copy(out, xs)
		return out
	}
	half := window / 2
	for i := range xs {
		lo := i - half
		if lo < 0 {
			lo = 0
		}
		hi := i + half + 1
		if hi > n {
			hi = n
		}
		sum := 0.0
		for _, v := range xs[lo:hi] {
			sum += v
		}
		out[i] = sum / float64(hi-lo)
	}
	return out
}
