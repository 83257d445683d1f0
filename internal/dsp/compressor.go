package dsp

import "math"

// Compressor is an envelope-follower dynamics processor working in dB, per
// spec section 4.3: attack/release coefficients are exp(-1/(time_sec*rate)),
// gain reduction is (envelope-threshold)*(1-1/ratio) above threshold, applied
// as linear gain per sample.
type Compressor struct {
	sampleRate float32

	thresholdDB float32
	ratio       float32
	attackCoeff float32
	releaseCoeff float32
	enabled     bool

	envelopeDB float32
}

// NewCompressor builds a compressor with the given defaults, matching the
// original's -12dB/4:1/5ms/100ms starting point.
func NewCompressor(sampleRate uint32) *Compressor {
	c := &Compressor{
		sampleRate:  float32(sampleRate),
		thresholdDB: -12,
		ratio:       4,
		envelopeDB:  -100,
	}
	c.SetAttack(5)
	c.SetRelease(100)
	return c
}

func (c *Compressor) SetEnabled(enabled bool) { c.enabled = enabled }
func (c *Compressor) SetThreshold(db float32) { c.thresholdDB = db }
func (c *Compressor) SetRatio(ratio float32) {
	if ratio < 1 {
		ratio = 1
	}
	c.ratio = ratio
}

func (c *Compressor) SetAttack(ms float32) {
	c.attackCoeff = timeCoeff(ms, c.sampleRate)
}

func (c *Compressor) SetRelease(ms float32) {
	c.releaseCoeff = timeCoeff(ms, c.sampleRate)
}

func timeCoeff(ms, sampleRate float32) float32 {
	return float32(math.Exp(-1.0 / (float64(ms) * 0.001 * float64(sampleRate))))
}

// Process applies gain reduction to one sample, returning the compressed
// output. A no-op when the compressor is disabled.
func (c *Compressor) Process(in float32) float32 {
	if !c.enabled {
		return in
	}

	inputDB := amplitudeToDB(in)

	var coeff float32
	if inputDB > c.envelopeDB {
		coeff = c.attackCoeff
	} else {
		coeff = c.releaseCoeff
	}
	c.envelopeDB = inputDB + (c.envelopeDB-inputDB)*coeff

	var reductionDB float32
	if c.envelopeDB > c.thresholdDB {
		over := c.envelopeDB - c.thresholdDB
		reductionDB = over * (1 - 1/c.ratio)
	}

	gain := float32(math.Pow(10, float64(-reductionDB)/20))
	return in * gain
}

// ProcessBuffer applies Process to every sample in place.
func (c *Compressor) ProcessBuffer(samples []float32) {
	for i, s := range samples {
		samples[i] = c.Process(s)
	}
}

func amplitudeToDB(sample float32) float32 {
	mag := sample
	if mag < 0 {
		mag = -mag
	}
	if mag <= 0 {
		return -100
	}
	return float32(20 * math.Log10(float64(mag)))
}
