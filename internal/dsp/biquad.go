// Package dsp implements the per-channel effects chain (three-band EQ,
// compressor, brick-wall limiter) and the linear-interpolation sample-rate
// converter, per spec sections 4.3 and 4.4. Every type here is allocation
// free once constructed: Process mutates delay-line state in place.
package dsp

import "math"

// Biquad is a direct-form-I second order IIR filter, coefficients
// normalized so a0 == 1. Delay state (x1/x2/y1/y2) persists across calls so
// a channel's filter state survives buffer boundaries without clicks.
type Biquad struct {
	b0, b1, b2 float32
	a1, a2     float32
	x1, x2     float32
	y1, y2     float32
}

// Coeffs is the normalized (a0 == 1) coefficient set for a Biquad. Recompute
// it when a gain parameter changes and push it into an existing Biquad via
// SetCoeffs — that keeps the delay line intact across the coefficient swap,
// which is what avoids an audible click when a parameter changes mid-stream.
type Coeffs struct {
	B0, B1, B2 float32
	A1, A2     float32
}

// NewBiquad builds a filter already primed with the given coefficients.
func NewBiquad(c Coeffs) Biquad {
	var f Biquad
	f.SetCoeffs(c)
	return f
}

// SetCoeffs installs new coefficients without touching the delay line.
func (f *Biquad) SetCoeffs(c Coeffs) {
	f.b0, f.b1, f.b2 = c.B0, c.B1, c.B2
	f.a1, f.a2 = c.A1, c.A2
}

// Process filters one sample, updating the delay line in place.
func (f *Biquad) Process(in float32) float32 {
	out := f.b0*in + f.b1*f.x1 + f.b2*f.x2 - f.a1*f.y1 - f.a2*f.y2
	f.x2, f.x1 = f.x1, in
	f.y2, f.y1 = f.y1, out
	return out
}

// LowShelfCoeffs computes a low-shelf coefficient set at freq Hz, Q, gainDB.
func LowShelfCoeffs(sampleRate uint32, freq, q, gainDB float32) Coeffs {
	a := float32(math.Pow(10, float64(gainDB)/40))
	w0 := 2 * math.Pi * float64(freq) / float64(sampleRate)
	cosW0, sinW0 := float32(math.Cos(w0)), float32(math.Sin(w0))
	beta := float32(math.Sqrt(float64(a))) / q

	b0 := a * ((a + 1) - (a-1)*cosW0 + beta*sinW0)
	b1 := 2 * a * ((a - 1) - (a+1)*cosW0)
	b2 := a * ((a + 1) - (a-1)*cosW0 - beta*sinW0)
	a0 := (a + 1) + (a-1)*cosW0 + beta*sinW0
	a1 := -2 * ((a - 1) + (a+1)*cosW0)
	a2 := (a + 1) + (a-1)*cosW0 - beta*sinW0

	return normalize(b0, b1, b2, a0, a1, a2)
}

// HighShelfCoeffs computes a high-shelf coefficient set at freq Hz, Q, gainDB.
func HighShelfCoeffs(sampleRate uint32, freq, q, gainDB float32) Coeffs {
	a := float32(math.Pow(10, float64(gainDB)/40))
	w0 := 2 * math.Pi * float64(freq) / float64(sampleRate)
	cosW0, sinW0 := float32(math.Cos(w0)), float32(math.Sin(w0))
	beta := float32(math.Sqrt(float64(a))) / q

	b0 := a * ((a + 1) + (a-1)*cosW0 + beta*sinW0)
	b1 := -2 * a * ((a - 1) + (a+1)*cosW0)
	b2 := a * ((a + 1) + (a-1)*cosW0 - beta*sinW0)
	a0 := (a + 1) - (a-1)*cosW0 + beta*sinW0
	a1 := 2 * ((a - 1) - (a+1)*cosW0)
	a2 := (a + 1) - (a-1)*cosW0 - beta*sinW0

	return normalize(b0, b1, b2, a0, a1, a2)
}

// PeakingCoeffs computes a peaking (bell) coefficient set at freq Hz, Q, gainDB.
func PeakingCoeffs(sampleRate uint32, freq, q, gainDB float32) Coeffs {
	a := float32(math.Pow(10, float64(gainDB)/40))
	w0 := 2 * math.Pi * float64(freq) / float64(sampleRate)
	cosW0, sinW0 := float32(math.Cos(w0)), float32(math.Sin(w0))
	alpha := sinW0 / (2 * q)

	b0 := 1 + alpha*a
	b1 := -2 * cosW0
	b2 := 1 - alpha*a
	a0 := 1 + alpha/a
	a1 := -2 * cosW0
	a2 := 1 - alpha/a

	return normalize(b0, b1, b2, a0, a1, a2)
}

func normalize(b0, b1, b2, a0, a1, a2 float32) Coeffs {
	return Coeffs{
		B0: b0 / a0,
		B1: b1 / a0,
		B2: b2 / a0,
		A1: a1 / a0,
		A2: a2 / a0,
	}
}
