package mixer

import "github.com/beats-galore/sending-beats-sub000/internal/dsp"

// channelResampler rate-converts an interleaved multi-channel buffer by
// running one dsp.Resampler per channel: dsp.Resampler itself operates on a
// single deinterleaved stream and keeps per-channel fractional phase, so
// reusing one instance across channels would corrupt that phase (spec
// §4.4's linear interpolation state is per-edge, and here "edge" means one
// channel of one device-to-mix-rate conversion).
type channelResampler struct {
	rs       []*dsp.Resampler
	fromRate uint32
	toRate   uint32
}

func newChannelResampler(fromRate, toRate uint32, channels int) *channelResampler {
	if channels < 1 {
		channels = 1
	}
	rs := make([]*dsp.Resampler, channels)
	for i := range rs {
		rs[i] = dsp.NewResampler(fromRate, toRate)
	}
	return &channelResampler{rs: rs, fromRate: fromRate, toRate: toRate}
}

func (c *channelResampler) channels() int { return len(c.rs) }

// process deinterleaves in (len(in) must be a multiple of len(c.rs)),
// resamples each channel independently, and re-interleaves the result.
func (c *channelResampler) process(in []float32) []float32 {
	channels := len(c.rs)
	if channels == 0 || len(in) == 0 {
		return nil
	}
	frames := len(in) / channels

	resampledPerCh := make([][]float32, channels)
	maxLen := 0
	for ch := 0; ch < channels; ch++ {
		mono := make([]float32, frames)
		for i := 0; i < frames; i++ {
			mono[i] = in[i*channels+ch]
		}
		resampledPerCh[ch] = c.rs[ch].Process(mono, nil)
		if len(resampledPerCh[ch]) > maxLen {
			maxLen = len(resampledPerCh[ch])
		}
	}

	out := make([]float32, maxLen*channels)
	for ch := 0; ch < channels; ch++ {
		data := resampledPerCh[ch]
		for i, v := range data {
			out[i*channels+ch] = v
		}
	}
	return out
}

// remapChannels adapts an interleaved buffer between channel counts: mono
// output sums down to an average, wider outputs repeat the source channels
// cyclically. This is a deliberate simplification over a full speaker-map
// (spec leaves output channel-mapping as an open question; see DESIGN.md).
func remapChannels(in []float32, fromCh, toCh int) []float32 {
	if fromCh == toCh || fromCh < 1 || toCh < 1 {
		return in
	}
	frames := len(in) / fromCh
	out := make([]float32, frames*toCh)

	if toCh == 1 {
		for i := 0; i < frames; i++ {
			var sum float32
			for ch := 0; ch < fromCh; ch++ {
				sum += in[i*fromCh+ch]
			}
			out[i] = sum / float32(fromCh)
		}
		return out
	}

	for i := 0; i < frames; i++ {
		for ch := 0; ch < toCh; ch++ {
			out[i*toCh+ch] = in[i*fromCh+ch%fromCh]
		}
	}
	return out
}
