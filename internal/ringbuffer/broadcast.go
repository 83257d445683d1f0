package ringbuffer

import "sync/atomic"

// Broadcast is the single-producer/multi-consumer ring buffer used for
// hardware outputs: the mix loop is the sole writer, and each output
// callback reads through its own cursor (Reader). A cursor that falls more
// than the buffer's capacity behind loses the oldest samples it hasn't read
// yet rather than blocking the writer — spec's drop-newest rule applied from
// the writer's side, since the writer never waits for a slow reader.
type Broadcast struct {
	buf      []float32
	mask     uint64
	writePos atomic.Uint64
}

// Reader is one consumer's view into a Broadcast.
type Reader struct {
	b        *Broadcast
	readPos  uint64
	overruns atomic.Uint64
}

func NewBroadcast(capacity int) *Broadcast {
	cap := nextPow2(capacity)
	return &Broadcast{
		buf:  make([]float32, cap),
		mask: uint64(cap - 1),
	}
}

func (b *Broadcast) Cap() int { return len(b.buf) }

// Write appends samples, overwriting the oldest slots once the buffer wraps.
// Readers that have not yet consumed overwritten slots detect the gap next
// time they read and count it as an overrun.
func (b *Broadcast) Write(samples []float32) {
	w := b.writePos.Load()
	for i, s := range samples {
		b.buf[(w+uint64(i))&b.mask] = s
	}
	b.writePos.Store(w + uint64(len(samples)))
}

// NewReader attaches a fresh cursor positioned at the current write head, so
// a newly opened output stream starts with silence rather than replaying a
// full buffer's worth of history.
func (b *Broadcast) NewReader() *Reader {
	return &Reader{b: b, readPos: b.writePos.Load()}
}

// Read drains up to len(out) samples. If the writer has lapped this cursor,
// the overwritten (oldest unread) samples are lost: the cursor fast-forwards
// to the oldest sample still present and counts the gap as an overrun.
func (r *Reader) Read(out []float32) int {
	w := r.b.writePos.Load()
	avail := w - r.readPos
	if avail > uint64(len(r.b.buf)) {
		lost := avail - uint64(len(r.b.buf))
		r.overruns.Add(lost)
		r.readPos = w - uint64(len(r.b.buf))
		avail = uint64(len(r.b.buf))
	}

	n := uint64(len(out))
	if n > avail {
		n = avail
	}
	for i := uint64(0); i < n; i++ {
		out[i] = r.b.buf[(r.readPos+i)&r.b.mask]
	}
	r.readPos += n
	return int(n)
}

func (r *Reader) Overruns() uint64 { return r.overruns.Load() }
