package tap

import (
	"github.com/beats-galore/sending-beats-sub000/internal/device"
	"github.com/beats-galore/sending-beats-sub000/internal/errs"
	"github.com/beats-galore/sending-beats-sub000/internal/notify"
)

// Permission is the result of probing whether this process may create
// platform audio taps (spec §4.7 condition b).
type Permission int

const (
	PermissionUnknown Permission = iota
	PermissionGranted
	PermissionDenied
)

// Source is the platform hook that actually captures one process's audio
// and bridges it into an InputStream. It mirrors internal/device's own
// capture lifecycle (spec §4.7: "the same mechanism as a hardware input").
type Source interface {
	// Supported reports whether this OS exposes process audio taps at all.
	Supported() bool
	// Probe checks the tap permission without creating a tap.
	Probe() Permission
	// Open creates the platform tap (and aggregate device if the OS
	// requires one) for info, returning a bound InputStream registered
	// under info.VirtualID().
	Open(info ProcessInfo, notifier *notify.Notifier) (*device.InputStream, error)
	// Close releases a previously opened tap.
	Close(virtualID string) error
}

// LoopbackSource is the Source available to every platform this module
// targets: it bridges through internal/device's existing capture path using
// a system-loopback (or default input) stream rather than a true per-process
// CoreAudio tap. No dependency available to this build provides a Go
// binding for macOS's per-process tap API (AudioHardwareCreateProcessTap),
// so isolation is coarser than the real thing — every tap opened this way
// observes the same system mix. See DESIGN.md.
type LoopbackSource struct {
	binding *device.Binding
}

func NewLoopbackSource(binding *device.Binding) *LoopbackSource {
	return &LoopbackSource{binding: binding}
}

func (s *LoopbackSource) Supported() bool { return s.binding != nil }

func (s *LoopbackSource) Probe() Permission {
	if s.binding == nil {
		return PermissionDenied
	}
	return PermissionGranted
}

func (s *LoopbackSource) Open(info ProcessInfo, notifier *notify.Notifier) (*device.InputStream, error) {
	if !s.Supported() {
		return nil, errs.New(errs.UnsupportedPlatform, "process audio taps unavailable on this build")
	}
	return s.binding.AddLoopbackInput(info.VirtualID(), notifier)
}

func (s *LoopbackSource) Close(virtualID string) error {
	if s.binding == nil {
		return nil
	}
	return s.binding.Remove(virtualID)
}
