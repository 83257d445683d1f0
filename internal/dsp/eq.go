package dsp

// Fixed band frequencies and Q from spec section 4.3: low shelf at 200Hz,
// mid peak at 1kHz, high shelf at 8kHz, all Q 0.7.
const (
	lowShelfFreq  = 200.0
	midPeakFreq   = 1000.0
	highShelfFreq = 8000.0
	eqQ           = 0.7
)

// ThreeBandEQ is the fixed low-shelf/mid-peak/high-shelf chain. Gains are
// recomputed into new coefficients only when SetGains is called with a
// changed value — Process never touches the gain math.
type ThreeBandEQ struct {
	sampleRate            uint32
	lowDB, midDB, highDB  float32
	low, mid, high        Biquad
}

// NewThreeBandEQ builds a flat (0dB) EQ for the given sample rate.
func NewThreeBandEQ(sampleRate uint32) *ThreeBandEQ {
	eq := &ThreeBandEQ{sampleRate: sampleRate}
	eq.low = NewBiquad(LowShelfCoeffs(sampleRate, lowShelfFreq, eqQ, 0))
	eq.mid = NewBiquad(PeakingCoeffs(sampleRate, midPeakFreq, eqQ, 0))
	eq.high = NewBiquad(HighShelfCoeffs(sampleRate, highShelfFreq, eqQ, 0))
	return eq
}

// SetGains updates the three band gains in dB ([-24, 24]), only recomputing
// a band's coefficients when that band's gain actually changed.
func (eq *ThreeBandEQ) SetGains(lowDB, midDB, highDB float32) {
	if lowDB != eq.lowDB {
		eq.lowDB = lowDB
		eq.low.SetCoeffs(LowShelfCoeffs(eq.sampleRate, lowShelfFreq, eqQ, lowDB))
	}
	if midDB != eq.midDB {
		eq.midDB = midDB
		eq.mid.SetCoeffs(PeakingCoeffs(eq.sampleRate, midPeakFreq, eqQ, midDB))
	}
	if highDB != eq.highDB {
		eq.highDB = highDB
		eq.high.SetCoeffs(HighShelfCoeffs(eq.sampleRate, highShelfFreq, eqQ, highDB))
	}
}

// Process runs one sample through low shelf, then mid peak, then high shelf.
func (eq *ThreeBandEQ) Process(in float32) float32 {
	s := eq.low.Process(in)
	s = eq.mid.Process(s)
	s = eq.high.Process(s)
	return s
}

// ProcessBuffer filters samples in place.
func (eq *ThreeBandEQ) ProcessBuffer(samples []float32) {
	for i, s := range samples {
		samples[i] = eq.Process(s)
	}
}
