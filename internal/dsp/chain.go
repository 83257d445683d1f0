package dsp

// Chain is one channel's effects chain in the fixed order EQ -> Compressor
// -> Limiter (spec section 4.3). It holds no I/O and allocates nothing in
// Process once constructed.
type Chain struct {
	EQ         *ThreeBandEQ
	Compressor *Compressor
	Limiter    *Limiter

	enabled bool
}

// NewChain builds a flat/disabled chain for the given sample rate.
func NewChain(sampleRate uint32) *Chain {
	return &Chain{
		EQ:         NewThreeBandEQ(sampleRate),
		Compressor: NewCompressor(sampleRate),
		Limiter:    NewLimiter(sampleRate),
	}
}

func (c *Chain) SetEnabled(enabled bool) { c.enabled = enabled }

// Params is the atomic snapshot of effects parameters the control surface
// publishes; the mix loop reads one of these per buffer boundary rather than
// per sample (spec: "Parameter updates are atomic snapshots read at buffer
// boundaries, not per sample").
type Params struct {
	Enabled bool

	EQLowDB, EQMidDB, EQHighDB float32

	CompEnabled     bool
	CompThresholdDB float32
	CompRatio       float32
	CompAttackMs    float32
	CompReleaseMs   float32

	LimiterEnabled     bool
	LimiterThresholdDB float32
}

// Apply pushes a parameter snapshot into the chain's live filters.
func (c *Chain) Apply(p Params) {
	c.enabled = p.Enabled
	c.EQ.SetGains(p.EQLowDB, p.EQMidDB, p.EQHighDB)
	c.Compressor.SetEnabled(p.CompEnabled)
	c.Compressor.SetThreshold(p.CompThresholdDB)
	c.Compressor.SetRatio(p.CompRatio)
	c.Compressor.SetAttack(p.CompAttackMs)
	c.Compressor.SetRelease(p.CompReleaseMs)
	c.Limiter.SetEnabled(p.LimiterEnabled)
	c.Limiter.SetThreshold(p.LimiterThresholdDB)
}

// ProcessBuffer runs EQ -> Compressor -> Limiter over samples in place. A
// no-op when the chain itself is disabled (channel's effects-enabled flag).
func (c *Chain) ProcessBuffer(samples []float32) {
	if !c.enabled {
		return
	}
	c.EQ.ProcessBuffer(samples)
	c.Compressor.ProcessBuffer(samples)
	c.Limiter.ProcessBuffer(samples)
}
