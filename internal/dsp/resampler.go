package dsp

// Resampler converts between two sample rates with linear interpolation,
// keeping its fractional phase across calls so consecutive buffers don't
// click at the seam (spec section 4.4). One instance covers one edge: either
// a single input's native-rate-to-mix-rate conversion, or the mix bus's
// conversion to one output's device rate.
type Resampler struct {
	fromRate, toRate uint32
	phase            float64 // fractional position into the "from" stream
	last             float32 // last sample consumed, used to interpolate the first new sample
	havePrev         bool
}

// NewResampler builds a converter for one directed edge. A from==to
// resampler is a valid no-op passthrough.
func NewResampler(fromRate, toRate uint32) *Resampler {
	return &Resampler{fromRate: fromRate, toRate: toRate}
}

// Rebuild replaces the rates (e.g. a device's native rate changed) and
// resets the fractional phase — a rate change is treated as a new edge
// rather than something to smooth across.
func (r *Resampler) Rebuild(fromRate, toRate uint32) {
	r.fromRate = fromRate
	r.toRate = toRate
	r.phase = 0
	r.havePrev = false
}

// Process resamples in (mono: one deinterleaved channel's worth of samples)
// into out, appending output samples and returning the extended slice.
func (r *Resampler) Process(in []float32, out []float32) []float32 {
	if r.fromRate == r.toRate {
		return append(out, in...)
	}
	if len(in) == 0 {
		return out
	}

	ratio := float64(r.fromRate) / float64(r.toRate)

	prev := r.last
	idx := 0
	pos := r.phase
	for {
		whole := int(pos)
		if whole >= len(in) {
			break
		}

		var s0 float32
		if whole == 0 {
			if r.havePrev {
				s0 = prev
			} else {
				s0 = in[0]
			}
		} else {
			s0 = in[whole-1]
		}
		s1 := in[whole]
		frac := float32(pos - float64(whole))
		out = append(out, s0+(s1-s0)*frac)

		idx++
		pos = r.phase + float64(idx)*ratio
	}

	r.phase = pos - float64(len(in))
	r.last = in[len(in)-1]
	r.havePrev = true
	return out
}
