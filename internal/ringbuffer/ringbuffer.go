// Package ringbuffer implements the lock-free fixed-capacity queues that
// decouple real-time audio callbacks from the cooperative mix loop.
package ringbuffer

import "sync/atomic"

// MinCapacity is the floor capacity rule from spec section 4.1: every ring
// buffer is sized to at least one default callback burst, never smaller.
const MinCapacity = 4096

// SizeFor returns the capacity for a device ring buffer given its native
// sample rate and channel count, following the "~100ms, floor 4096" rule.
func SizeFor(sampleRate uint32, channels int) int {
	n := int(sampleRate) * channels / 10
	if n < MinCapacity {
		return MinCapacity
	}
	return nextPow2(n)
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p <<= 1
	}
	return p
}

// SPSC is a single-producer/single-consumer ring buffer of float32 samples.
// Push never blocks: on a full buffer it drops the incoming sample and
// increments Overruns rather than overwriting what's already queued, per
// spec's "drop-newest" rule. Input streams use it; output streams read from
// a Broadcast, whose lagging readers lose the oldest samples instead.
type SPSC struct {
	buf      []float32
	mask     uint64
	writePos uint64 // only written by the producer
	readPos  uint64 // only written by the consumer
	overruns atomic.Uint64
}

// NewSPSC allocates a ring buffer with capacity rounded up to a power of two.
func NewSPSC(capacity int) *SPSC {
	cap := nextPow2(capacity)
	return &SPSC{
		buf:  make([]float32, cap),
		mask: uint64(cap - 1),
	}
}

func (r *SPSC) Cap() int { return len(r.buf) }

// Push writes samples one at a time, dropping any that don't fit.
// Returns the number of samples actually written.
func (r *SPSC) Push(samples []float32) int {
	w := atomic.LoadUint64(&r.writePos)
	read := atomic.LoadUint64(&r.readPos)
	free := uint64(len(r.buf)) - (w - read)

	n := uint64(len(samples))
	if n > free {
		dropped := n - free
		r.overruns.Add(dropped)
		n = free
	}
	for i := uint64(0); i < n; i++ {
		r.buf[(w+i)&r.mask] = samples[i]
	}
	atomic.StoreUint64(&r.writePos, w+n)
	return int(n)
}

// Pop drains up to len(out) samples into out, returning the count read.
// An empty buffer returns 0 immediately — callers emit silence themselves.
func (r *SPSC) Pop(out []float32) int {
	read := atomic.LoadUint64(&r.readPos)
	w := atomic.LoadUint64(&r.writePos)
	avail := w - read

	n := uint64(len(out))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		out[i] = r.buf[(read+i)&r.mask]
	}
	atomic.StoreUint64(&r.readPos, read+n)
	return int(n)
}

// Len reports the number of samples currently queued.
func (r *SPSC) Len() int {
	return int(atomic.LoadUint64(&r.writePos) - atomic.LoadUint64(&r.readPos))
}

// Overruns returns the cumulative number of samples dropped on a full push.
func (r *SPSC) Overruns() uint64 { return r.overruns.Load() }
