package dsp

import "math"

// lookaheadMs is the limiter's fixed look-ahead delay (spec section 4.3).
const lookaheadMs = 5.0

// Limiter is a brick-wall limiter: a look-ahead delay line feeds the output,
// while a peak envelope (fast attack, slower release) drives the gain
// applied to the delayed sample, per spec: "Output sample = delayed-input *
// 10^(-reduction/20)". Whatever the envelope has not yet caught (a hot
// onset arriving faster than the attack can follow) is hard-clamped to the
// threshold level, so the output never exceeds the ceiling.
type Limiter struct {
	sampleRate   float32
	thresholdDB  float32
	attackCoeff  float32
	releaseCoeff float32
	enabled      bool

	delay      []float32
	delayIndex int

	envelopeDB float32
}

// limiterAttackMs is the envelope's rising-edge time constant, much faster
// than any release setting (matching the compressor's attack/release split
// in compressor.go). Starting from silence the envelope still sits a fraction
// of a dB short of a hot sample's level when that sample leaves the delay
// line; Process's final clamp covers that gap.
const limiterAttackMs = 1.0

// NewLimiter builds a limiter with the look-ahead delay line sized for the
// given sample rate, defaulting to -0.1dB ceiling / 1ms attack / 50ms release.
func NewLimiter(sampleRate uint32) *Limiter {
	delayLen := int(float32(sampleRate) * lookaheadMs / 1000)
	if delayLen < 1 {
		delayLen = 1
	}
	l := &Limiter{
		sampleRate:  float32(sampleRate),
		thresholdDB: -0.1,
		delay:       make([]float32, delayLen),
		envelopeDB:  -100,
	}
	l.SetAttack(limiterAttackMs)
	l.SetRelease(50)
	return l
}

func (l *Limiter) SetEnabled(enabled bool) { l.enabled = enabled }
func (l *Limiter) SetThreshold(db float32) { l.thresholdDB = db }
func (l *Limiter) SetAttack(ms float32)    { l.attackCoeff = timeCoeff(ms, l.sampleRate) }
func (l *Limiter) SetRelease(ms float32)   { l.releaseCoeff = timeCoeff(ms, l.sampleRate) }

// Process runs one sample through the look-ahead delay and peak limiter.
func (l *Limiter) Process(in float32) float32 {
	delayed := l.delay[(l.delayIndex+1)%len(l.delay)]
	l.delay[l.delayIndex] = in
	l.delayIndex = (l.delayIndex + 1) % len(l.delay)

	if !l.enabled {
		return delayed
	}

	inputDB := amplitudeToDB(in)

	var coeff float32
	if inputDB > l.envelopeDB {
		coeff = l.attackCoeff
	} else {
		coeff = l.releaseCoeff
	}
	l.envelopeDB = inputDB + (l.envelopeDB-inputDB)*coeff

	var reductionDB float32
	if l.envelopeDB > l.thresholdDB {
		reductionDB = l.envelopeDB - l.thresholdDB
	}

	gain := float32(math.Pow(10, float64(-reductionDB)/20))
	out := delayed * gain

	ceiling := float32(math.Pow(10, float64(l.thresholdDB)/20))
	if out > ceiling {
		out = ceiling
	} else if out < -ceiling {
		out = -ceiling
	}
	return out
}

// ProcessBuffer applies Process to every sample in place.
func (l *Limiter) ProcessBuffer(samples []float32) {
	for i, s := range samples {
		samples[i] = l.Process(s)
	}
}
