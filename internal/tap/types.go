// Package tap turns per-app process audio into virtual inputs that plug
// into the same ring-buffer fabric as hardware devices.
package tap

import (
	"sync/atomic"
	"time"

	"github.com/beats-galore/sending-beats-sub000/internal/device"
)

// State is a ProcessTap's lifecycle stage (spec §4.7): Pending -> Capturing
// -> Stale | Failed -> Destroyed.
type State int

const (
	Pending State = iota
	Capturing
	Stale
	Failed
	Destroyed
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Capturing:
		return "capturing"
	case Stale:
		return "stale"
	case Failed:
		return "failed"
	case Destroyed:
		return "destroyed"
	default:
		return "unknown"
	}
}

// ProcessInfo is what an external process scanner hands us to start a tap;
// discovery and enumeration stay outside this package.
type ProcessInfo struct {
	PID      uint32
	Name     string
	BundleID string
	IsAlive  bool
}

// VirtualID is the input-device id a tap registers under, indistinguishable
// from a hardware input to the mix engine (spec: "id app-<pid>").
func (p ProcessInfo) VirtualID() string {
	return virtualID(p.PID)
}

func virtualID(pid uint32) string {
	return "app-" + itoa(pid)
}

func itoa(v uint32) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// maxErrors is the per-tap error budget before the cleanup tick retires it
// (spec §4.7: "error count exceeds five").
const maxErrors = 5

// staleAfter is how long without activity before a tap is cleaned up (spec
// §4.7: "last-activity exceeds five minutes").
const staleAfter = 5 * time.Minute

// cleanupInterval is the cadence of the background reaper (spec §4.7:
// "a coarse interval (30s)").
const cleanupInterval = 30 * time.Second

// ProcessTap is one bound app capture (spec §3). Its bridge RB is owned by
// internal/device, reached indirectly through the Manager.
type ProcessTap struct {
	PID       uint32
	Name      string
	VirtualID string
	CreatedAt time.Time
	Stream    *device.InputStream

	state      atomic.Int32
	errorCount atomic.Int32
	lastActive atomic.Int64

	stop func()
}

func newProcessTap(info ProcessInfo, now time.Time, stream *device.InputStream, stop func()) *ProcessTap {
	t := &ProcessTap{
		PID:       info.PID,
		Name:      info.Name,
		VirtualID: info.VirtualID(),
		CreatedAt: now,
		Stream:    stream,
		stop:      stop,
	}
	t.state.Store(int32(Pending))
	t.lastActive.Store(now.UnixNano())
	return t
}

func (t *ProcessTap) State() State { return State(t.state.Load()) }

func (t *ProcessTap) setState(s State) { t.state.Store(int32(s)) }

func (t *ProcessTap) touch(now time.Time) { t.lastActive.Store(now.UnixNano()) }

func (t *ProcessTap) lastActivity() time.Time { return time.Unix(0, t.lastActive.Load()) }

func (t *ProcessTap) recordError() int {
	return int(t.errorCount.Add(1))
}

func (t *ProcessTap) ErrorCount() int { return int(t.errorCount.Load()) }

// Stats is the per-tap snapshot the status surface exposes (spec §6).
type Stats struct {
	PID          uint32
	Name         string
	State        State
	Age          time.Duration
	LastActivity time.Duration
	ErrorCount   int
	ProcessAlive bool
}
