package mixer

import (
	"time"

	"github.com/beats-galore/sending-beats-sub000/internal/clock"
	"github.com/beats-galore/sending-beats-sub000/internal/device"
	"github.com/beats-galore/sending-beats-sub000/internal/devicehealth"
	"github.com/beats-galore/sending-beats-sub000/internal/tap"
)

// StreamStatus is one bound input or output stream as reported to a client
// (spec §6: "active streams").
type StreamStatus struct {
	DeviceID   string
	Direction  string // "input" | "output"
	SampleRate uint32
	Channels   uint32
	Overruns   uint64
}

// RecordingStatus mirrors the recorder's own state without this package
// importing it (same decoupling as RecordingController).
type RecordingStatus struct {
	Active     bool
	SessionID  string
	OutputPath string
	Elapsed    time.Duration
	Bytes      int64
}

// Status is the full snapshot spec §6 asks a client-facing surface to
// expose: devices with health, live config, active streams, active taps,
// VU, and engine timing.
type Status struct {
	Health    map[string]devicehealth.Health
	Config    MixerConfig
	Streams   []StreamStatus
	Taps      []tap.Stats
	VU        VUTable
	MixRate   uint32
	Metrics   clock.Metrics
	Recording RecordingStatus
}

// recordingStatusProvider lets a wired recorder contribute its own status
// without the mixer importing internal/recorder.
type recordingStatusProvider interface {
	Status() RecordingStatus
}

// Status assembles the full snapshot. health and now are supplied by the
// caller (typically cmd/mixerd) since the Tracker and wall-clock time don't
// belong to the engine itself.
func (e *Engine) Status(health *devicehealth.Tracker, now time.Time) Status {
	s := Status{
		Config:  e.cfg.load(),
		VU:      e.vu.snapshot(),
		MixRate: e.mixRate,
		Metrics: e.clock.Metrics(),
	}
	if health != nil {
		s.Health = health.All()
	}
	if e.taps != nil {
		s.Taps = e.taps.Stats(now)
	}
	if rp, ok := e.recordingCtl.(recordingStatusProvider); ok {
		s.Recording = rp.Status()
	}

	for id, ib := range e.inputs {
		s.Streams = append(s.Streams, streamStatusFor(id, "input", ib.stream))
	}
	for id, ob := range e.outputs {
		s.Streams = append(s.Streams, outputStreamStatusFor(id, ob.stream))
	}
	return s
}

func streamStatusFor(id, direction string, stream *device.InputStream) StreamStatus {
	return StreamStatus{
		DeviceID:   id,
		Direction:  direction,
		SampleRate: stream.Format.SampleRate,
		Channels:   stream.Format.Channels,
		Overruns:   stream.RB.Overruns(),
	}
}

func outputStreamStatusFor(id string, stream *device.OutputStream) StreamStatus {
	return StreamStatus{
		DeviceID:   id,
		Direction:  "output",
		SampleRate: stream.Format.SampleRate,
		Channels:   stream.Format.Channels,
		Overruns:   stream.Reader.Overruns(),
	}
}
