package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBiquadFlatEQPassesThroughNearUnity(t *testing.T) {
	eq := NewThreeBandEQ(48000)
	// 0dB on every band should leave a steady sine roughly unchanged in
	// magnitude after the filters settle.
	var maxOut float32
	for i := 0; i < 2000; i++ {
		in := float32(math.Sin(2 * math.Pi * 440 * float64(i) / 48000))
		out := eq.Process(in)
		if i > 500 {
			if abs32(out) > maxOut {
				maxOut = abs32(out)
			}
		}
	}
	assert.InDelta(t, 1.0, maxOut, 0.05)
}

func TestCompressorReducesGainAboveThreshold(t *testing.T) {
	c := NewCompressor(48000)
	c.SetEnabled(true)
	c.SetThreshold(-12)
	c.SetRatio(4)
	c.SetAttack(0.01)
	c.SetRelease(50)

	var out float32
	for i := 0; i < 5000; i++ {
		out = c.Process(0.9)
	}
	assert.Less(t, out, float32(0.9))
}

func TestCompressorDisabledIsPassthrough(t *testing.T) {
	c := NewCompressor(48000)
	assert.Equal(t, float32(0.5), c.Process(0.5))
}

func TestLimiterCapsHotSignal(t *testing.T) {
	l := NewLimiter(48000)
	l.SetEnabled(true)
	l.SetThreshold(-1)

	var maxOut float32
	for i := 0; i < 10000; i++ {
		out := l.Process(1.0)
		if abs32(out) > maxOut {
			maxOut = abs32(out)
		}
	}
	ceiling := float32(math.Pow(10, -1.0/20))
	assert.LessOrEqual(t, maxOut, ceiling+0.01)
}

func TestChainAppliesOrderAndRespectsEnabled(t *testing.T) {
	chain := NewChain(48000)
	chain.Apply(Params{
		Enabled:         true,
		CompEnabled:     true,
		CompThresholdDB: -6,
		CompRatio:       8,
		CompAttackMs:    1,
		CompReleaseMs:   50,
		LimiterEnabled:  true,
		LimiterThresholdDB: -0.5,
	})
	// The limiter's look-ahead delay is 5ms (240 samples at 48kHz), so the
	// buffer must run well past that before any sample reflects real
	// limiter output instead of the delay line's zero-fill default.
	samples := make([]float32, 500)
	for i := range samples {
		samples[i] = 0.95
	}
	chain.ProcessBuffer(samples)
	for _, s := range samples {
		require.LessOrEqual(t, abs32(s), float32(1.0))
	}
	settled := samples[300:]
	ceiling := float32(math.Pow(10, -0.5/20))
	for _, s := range settled {
		require.LessOrEqual(t, abs32(s), ceiling+0.01)
	}

	chain.SetEnabled(false)
	passthrough := []float32{0.5, -0.5}
	chain.ProcessBuffer(passthrough)
	assert.Equal(t, []float32{0.5, -0.5}, passthrough)
}

func TestResamplerIdentityIsPassthrough(t *testing.T) {
	r := NewResampler(48000, 48000)
	out := r.Process([]float32{1, 2, 3}, nil)
	assert.Equal(t, []float32{1, 2, 3}, out)
}

func TestResamplerUpsampleProducesMoreSamples(t *testing.T) {
	r := NewResampler(24000, 48000)
	var out []float32
	for i := 0; i < 10; i++ {
		in := make([]float32, 100)
		for j := range in {
			in[j] = float32(math.Sin(2 * math.Pi * 440 * float64(i*100+j) / 24000))
		}
		out = r.Process(in, out)
	}
	assert.InDelta(t, 2000, len(out), 5)
}

func TestResamplerDownsampleProducesFewerSamples(t *testing.T) {
	r := NewResampler(48000, 24000)
	var out []float32
	for i := 0; i < 10; i++ {
		in := make([]float32, 100)
		for j := range in {
			in[j] = float32(math.Sin(2 * math.Pi * 440 * float64(i*100+j) / 48000))
		}
		out = r.Process(in, out)
	}
	assert.InDelta(t, 500, len(out), 5)
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
