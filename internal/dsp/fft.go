// SPDX-License-Identifier: MIT

// Package dsp implements the small spectral toolkit the analysis pipelines
// are built on: an iterative radix-2 FFT, Hann-windowed power and cross
// spectra, uniform resampling and a handful of descriptive statistics.
// Everything operates on float64 and is deterministic for a given input.
package dsp

import (
	"math"
	"math/cmplx"
)

// NextPow2 returns the smallest power of two >= n (minimum 1).
func NextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// FFT computes the in-order discrete Fourier transform of x using an
// iterative Cooley-Tukey radix-2 algorithm. len(x) must be a power of two;
// callers zero-pad. The input slice is not modified.
func FFT(x []complex128) []complex128 {
	n := len(x)
	out := make([]complex128, n)
	copy(out, x)
	if n < 2 {
		return out
	}

	// Bit-reversal permutation.
	for i, j := 1, 0; i < n; i++ {
		bit := n >> 1
		for ; j&bit != 0; bit >>= 1 {
			j ^= bit
		}
		j |= bit
		if i < j {
			out[i], out[j] = out[j], out[i]
		}
	}

	// Butterflies.
	for length := 2; length <= n; length <<= 1 {
		step := cmplx.Exp(complex(0, -2*math.Pi/float64(length)))
		half := length / 2
		for start := 0; start < n; start += length {
			w := complex(1, 0)
			for k := 0; k < half; k++ {
				u := out[start+k]
				v := out[start+k+half] * w
				out[start+k] = u + v
				out[start+k+half] = u - v
				w *= step
			}
		}
	}
	return out
}

// InverseFFT inverts FFT via the conjugation identity. len(x) must be a
// power of two.
func InverseFFT(x []complex128) []complex128 {
	n := len(x)
	conj := make([]complex128, n)
	for i, v := range x {
		conj[i] = cmplx.Conj(v)
	}
	spec := FFT(conj)
	out := make([]complex128, n)
	scale := complex(float64(n), 0)
	for i, v := range spec {
		out[i] = cmplx.Conj(v) / scale
	}
	return out
}

// HannWindow returns the n-point Hann window.
func HannWindow(n int) []float64 {
	w := make([]float64, n)
	if n == 1 {
		w[0] = 1
		return w
	}
	for i := range w {
		w[i] = 0.5 * (1 - math.Cos(2*math.Pi*float64(i)/float64(n-1)))
	}
	return w
}

// PSD returns the Hann-windowed one-sided power spectrum of samples taken at
// the given rate (Hz). The signal is zero-padded to the next power of two N;
// power[i] = |X[i]|^2 / N and freqs[i] = i*rate/N for i in [0, N/2).
func PSD(samples []float64, rate float64) (freqs, power []float64) {
	n := len(samples)
	if n < 2 || rate <= 0 {
		return nil, nil
	}
	size := NextPow2(n)
	buf := make([]complex128, size)
	win := HannWindow(n)
	for i, s := range samples {
		buf[i] = complex(s*win[i], 0)
	}
	spec := FFT(buf)

	half := size / 2
	freqs = make([]float64, half)
	power = make([]float64, half)
	for i := 0; i < half; i++ {
		freqs[i] = float64(i) * rate / float64(size)
		re, im := real(spec[i]), imag(spec[i])
		power[i] = (re*re + im*im) / float64(size)
	}
	return freqs, power
}

// CrossSpectrum returns the one-sided cross spectrum Sxy = conj(X)*Y together
// with the auto spectra Sxx and Syy, all Hann-windowed and zero-padded to a
// shared power-of-two length. x is treated as the input signal and y as the
// output, so arg(Sxy) is negative when y lags x. Inputs are truncated to the
// shorter length.
func CrossSpectrum(x, y []float64, rate float64) (freqs []float64, sxy []complex128, sxx, syy []float64) {
	n := len(x)
	if len(y) < n {
		n = len(y)
	}
	if n < 2 || rate <= 0 {
		return nil, nil, nil, nil
	}
	size := NextPow2(n)
	bx := make([]complex128, size)
	by := make([]complex128, size)
	win := HannWindow(n)
	for i := 0; i < n; i++ {
		bx[i] = complex(x[i]*win[i], 0)
		by[i] = complex(y[i]*win[i], 0)
	}
	fx := FFT(bx)
	fy := FFT(by)

	half := size / 2
	freqs = make([]float64, half)
	sxy = make([]complex128, half)
	sxx = make([]float64, half)
	syy = make([]float64, half)
	for i := 0; i < half; i++ {
		freqs[i] = float64(i) * rate / float64(size)
		sxy[i] = cmplx.Conj(fx[i]) * fy[i]
		rex, imx := real(fx[i]), imag(fx[i])
		rey, imy := real(fy[i]), imag(fy[i])
		sxx[i] = rex*rex + imx*imx
		syy[i] = rey*rey + imy*imy
	}
	return freqs, sxy, sxx, syy
}

// NearestBin returns the index in freqs closest to f. freqs must be sorted
// ascending; returns -1 for an empty slice.
func NearestBin(freqs []float64, f float64) int {
	if len(freqs) == 0 {
		return -1
	}
	best := 0
	bestDist := math.Abs(freqs[0] - f)
	for i := 1; i < len(freqs); i++ {
		d := math.Abs(freqs[i] - f)
		if d < bestDist {
			best = i
			bestDist = d
		}
	}
	return best
}
