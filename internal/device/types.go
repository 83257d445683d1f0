// Package device owns every platform audio stream: opening, closing, and
// converting hardware sample formats to the engine's internal f32 domain.
// malgo is imported nowhere else in this module.
package device

import (
	"sync/atomic"
	"time"

	"github.com/beats-galore/sending-beats-sub000/internal/notify"
	"github.com/beats-galore/sending-beats-sub000/internal/ringbuffer"
)

// SampleFormat is the native PCM encoding a device callback hands us before
// conversion to f32.
type SampleFormat int

const (
	FormatUnknown SampleFormat = iota
	FormatI16
	FormatU16
	FormatF32
)

// Format describes a stream's native configuration, queried from the device
// rather than requested of it (spec: "use the native format — never
// override — to avoid implicit resampling in the platform layer").
type Format struct {
	SampleRate uint32
	Channels   uint32
	Sample     SampleFormat
}

// InputStream is a bound hardware capture device: the SPSC producer side is
// owned by the callback, the consumer side is read by the mix loop.
type InputStream struct {
	DeviceID string
	Format   Format
	RB       *ringbuffer.SPSC
	Notify   *notify.Notifier

	lastActivityUnixNano atomic.Int64
	stopped              atomic.Bool
}

func newInputStream(deviceID string, format Format, rb *ringbuffer.SPSC, notifier *notify.Notifier) *InputStream {
	s := &InputStream{DeviceID: deviceID, Format: format, RB: rb, Notify: notifier}
	s.touch()
	return s
}

func (s *InputStream) touch() { s.lastActivityUnixNano.Store(time.Now().UnixNano()) }

// LastActivity is the timestamp of the most recent callback that delivered
// at least one frame.
func (s *InputStream) LastActivity() time.Time {
	return time.Unix(0, s.lastActivityUnixNano.Load())
}

// OutputStream is a bound hardware playback device: the broadcast ring is
// the single producer (the mix loop), Reader is this stream's own lagging
// cursor consumed by the callback.
type OutputStream struct {
	DeviceID string
	Format   Format
	RB       *ringbuffer.Broadcast
	Reader   *ringbuffer.Reader
	Notify   *notify.Notifier

	stopped atomic.Bool
}

func newOutputStream(deviceID string, format Format, bc *ringbuffer.Broadcast, notifier *notify.Notifier) *OutputStream {
	return &OutputStream{DeviceID: deviceID, Format: format, RB: bc, Reader: bc.NewReader(), Notify: notifier}
}

// lowWaterFraction is the fraction of ring capacity below which an output
// callback pings output-demand (spec §4.1: "default 25% capacity").
const lowWaterFraction = 0.25
