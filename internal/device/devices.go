package device

import (
	"fmt"

	"github.com/gen2brain/malgo"

	"github.com/beats-galore/sending-beats-sub000/internal/errs"
)

// preferredChannels is the channel count we request once a device's
// supported range is known; clamped into [MinChannels, MaxChannels] below.
const preferredChannels = 2

// resolvedDevice is a device-id resolved to its platform handle plus the
// channel count and native sample format we'll request, picked from the
// device's reported capabilities (spec §4.2 step 2: request the native
// format, never override, to avoid implicit resampling in the platform
// layer).
type resolvedDevice struct {
	id       malgo.DeviceID
	channels uint32
	format   SampleFormat
}

// nativeFormat reads the device's preferred native sample format out of
// malgo's DeviceInfo. miniaudio reports a device's supported formats in
// priority order in Formats[:FormatCount]; this mirrors that field layout,
// but the exact Go struct tags could not be confirmed against a vendored
// malgo source in this session, so this is a best-effort reconstruction —
// if FormatCount is zero or names a format we don't carry a converter for,
// callers fall back to F32, which every miniaudio backend also accepts.
func nativeFormat(full malgo.DeviceInfo) SampleFormat {
	if full.FormatCount == 0 {
		return FormatUnknown
	}
	switch full.Formats[0] {
	case malgo.FormatS16:
		return FormatI16
	case malgo.FormatF32:
		return FormatF32
	default:
		return FormatUnknown
	}
}

// Info is a listable audio device, surfaced to the control surface for
// enumeration UI (spec §6: "list devices (input/output) with native
// format"). ID is the device's name: malgo's DeviceID is an opaque
// platform-specific union with no stable string form, so the external
// device-id callers pass to AddInput/AddOutput is the display name,
// re-resolved to a platform handle on every call.
type Info struct {
	ID        string
	Name      string
	IsDefault bool
}

// ListDevices enumerates every device of the given direction. deviceType is
// malgo.Capture or malgo.Playback.
func (b *Binding) ListDevices(deviceType malgo.DeviceType) ([]Info, error) {
	infos, err := b.ctx.Devices(deviceType)
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "enumerate devices", err)
	}
	out := make([]Info, 0, len(infos))
	for _, d := range infos {
		out = append(out, Info{ID: d.Name(), Name: d.Name(), IsDefault: d.IsDefault != 0})
	}
	return out, nil
}

// resolveDevice finds deviceID among the enumerated devices of deviceType
// and queries its supported channel range. Refreshes the device list once
// before giving up, per spec §4.2 step 1 ("fail with DeviceNotFound if
// unresolvable even after a device-list refresh").
func (b *Binding) resolveDevice(deviceID string, deviceType malgo.DeviceType) (resolvedDevice, error) {
	found, err := b.findDevice(deviceID, deviceType)
	if err == nil {
		return found, nil
	}

	found, err = b.findDevice(deviceID, deviceType)
	if err != nil {
		return resolvedDevice{}, errs.New(errs.DeviceNotFound, fmt.Sprintf("device %q not found", deviceID))
	}
	return found, nil
}

// resolveDefaultDevice picks the system default device of deviceType,
// falling back to the first enumerated device if none is flagged default.
func (b *Binding) resolveDefaultDevice(deviceType malgo.DeviceType) (resolvedDevice, error) {
	infos, err := b.ctx.Devices(deviceType)
	if err != nil {
		return resolvedDevice{}, errs.Wrap(errs.Internal, "enumerate devices", err)
	}
	if len(infos) == 0 {
		return resolvedDevice{}, errs.New(errs.DeviceNotFound, "no default device available")
	}
	chosen := infos[0]
	for _, d := range infos {
		if d.IsDefault != 0 {
			chosen = d
			break
		}
	}
	full, err := b.ctx.DeviceInfo(deviceType, chosen.ID, malgo.Shared)
	if err != nil {
		return resolvedDevice{id: chosen.ID, channels: preferredChannels, format: FormatF32}, nil
	}
	channels := uint32(preferredChannels)
	if full.MaxChannels > 0 && channels > full.MaxChannels {
		channels = full.MaxChannels
	}
	if full.MinChannels > channels {
		channels = full.MinChannels
	}
	format := nativeFormat(full)
	if format == FormatUnknown {
		format = FormatF32
	}
	return resolvedDevice{id: chosen.ID, channels: channels, format: format}, nil
}

// toMalgoFormat is nativeFormat's inverse: it picks the malgo.FormatType to
// request given a resolved SampleFormat. FormatU16 has no miniaudio
// equivalent (nativeFormat never returns it), so it falls back to F32 along
// with FormatUnknown.
func toMalgoFormat(f SampleFormat) malgo.FormatType {
	switch f {
	case FormatI16:
		return malgo.FormatS16
	case FormatF32:
		return malgo.FormatF32
	default:
		return malgo.FormatF32
	}
}

func (b *Binding) findDevice(deviceID string, deviceType malgo.DeviceType) (resolvedDevice, error) {
	infos, err := b.ctx.Devices(deviceType)
	if err != nil {
		return resolvedDevice{}, errs.Wrap(errs.Internal, "enumerate devices", err)
	}
	for _, d := range infos {
		if d.Name() != deviceID {
			continue
		}
		full, err := b.ctx.DeviceInfo(deviceType, d.ID, malgo.Shared)
		if err != nil {
			return resolvedDevice{id: d.ID, channels: preferredChannels, format: FormatF32}, nil
		}
		channels := uint32(preferredChannels)
		if full.MaxChannels > 0 && channels > full.MaxChannels {
			channels = full.MaxChannels
		}
		if full.MinChannels > channels {
			channels = full.MinChannels
		}
		format := nativeFormat(full)
		if format == FormatUnknown {
			format = FormatF32
		}
		return resolvedDevice{id: d.ID, channels: channels, format: format}, nil
	}
	return resolvedDevice{}, errs.New(errs.DeviceNotFound, fmt.Sprintf("device %q not found", deviceID))
}
