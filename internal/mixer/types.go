// Package mixer implements the control-plane data model (AudioChannel,
// MixerConfig, OutputDevice) and the single-threaded mix engine that turns
// input ring buffers into a mixed, metered stereo bus.
package mixer

import (
	"regexp"
	"strings"

	"github.com/beats-galore/sending-beats-sub000/internal/errs"
)

// Validation bounds from spec §6.
const (
	MinSampleRate  = 8000
	MaxSampleRate  = 192000
	MinBufferSize  = 16
	MaxBufferSize  = 8192
	MaxGain        = 4.0
	MinPan         = -1.0
	MaxPan         = 1.0
	MaxEQGainDB    = 24.0
	MinEQGainDB    = -24.0
	MaxChannels    = 32
	DefaultMixRate = 48000
)

var deviceIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.:\-]+$`)

var dangerousSubstrings = []string{"../", "..\\", "//", `\\`, ";;", "&&", "||"}

// ValidateDeviceID enforces spec §6's device-id rules (P8).
func ValidateDeviceID(id string) error {
	if len(id) < 2 || len(id) > 256 {
		return errs.InvalidConfigf("device id must be 2-256 characters, got %d", len(id))
	}
	if !deviceIDPattern.MatchString(id) {
		return errs.InvalidConfigf("device id %q contains disallowed characters", id)
	}
	first, last := id[0], id[len(id)-1]
	if !isAlnum(first) || !isAlnum(last) {
		return errs.InvalidConfigf("device id %q must start and end alphanumeric", id)
	}
	for _, bad := range dangerousSubstrings {
		if strings.Contains(id, bad) {
			return errs.InvalidConfigf("device id %q contains a dangerous pattern %q", id, bad)
		}
	}
	return nil
}

func isAlnum(b byte) bool {
	return (b >= 'a' && b <= 'z') || (b >= 'A' && b <= 'Z') || (b >= '0' && b <= '9')
}

func clampRange(name string, v, lo, hi float64) error {
	if v < lo || v > hi {
		return errs.InvalidConfigf("%s must be in [%g, %g], got %g", name, lo, hi, v)
	}
	return nil
}

// AudioChannel is one mixer strip (spec §3). Created/mutated only via
// Control Surface commands; live levels are written only by the mix loop
// (invariant I5).
type AudioChannel struct {
	ID              uint32
	Name            string
	InputDeviceID   string // empty if unbound
	Gain            float32
	Pan             float32
	Muted           bool
	Solo            bool
	EffectsEnabled  bool
	EQLowDB         float32
	EQMidDB         float32
	EQHighDB        float32
	CompThresholdDB float32
	CompRatio       float32
	CompAttackMs    float32
	CompReleaseMs   float32
	CompEnabled     bool
	LimiterThresh   float32
	LimiterEnabled  bool

	Levels Levels
}

// Levels is a stereo peak/RMS pair (spec: "live peak/RMS per side").
type Levels struct {
	PeakL, PeakR float32
	RMSL, RMSR   float32
}

// Validate enforces the per-channel numeric bounds from spec §6.
func (c AudioChannel) Validate() error {
	if c.InputDeviceID != "" {
		if err := ValidateDeviceID(c.InputDeviceID); err != nil {
			return err
		}
	}
	if err := clampRange("gain", float64(c.Gain), 0, MaxGain); err != nil {
		return err
	}
	if err := clampRange("pan", float64(c.Pan), MinPan, MaxPan); err != nil {
		return err
	}
	for _, g := range []float32{c.EQLowDB, c.EQMidDB, c.EQHighDB} {
		if err := clampRange("eq gain", float64(g), MinEQGainDB, MaxEQGainDB); err != nil {
			return err
		}
	}
	if c.CompRatio != 0 {
		if err := clampRange("compressor ratio", float64(c.CompRatio), 1, 100); err != nil {
			return err
		}
	}
	return nil
}

// OutputDevice is an active playback sink (spec §3).
type OutputDevice struct {
	DeviceID string
	Name     string
	Enabled  bool
	Gain     float32
}

func (o OutputDevice) Validate() error {
	if err := ValidateDeviceID(o.DeviceID); err != nil {
		return err
	}
	return clampRange("output gain", float64(o.Gain), 0, MaxGain)
}

// MixerConfig is the whole mixer's configuration (spec §3), owned
// exclusively by the Control Surface (invariant I6).
type MixerConfig struct {
	SampleRate  uint32
	BufferSize  uint32
	MasterGain  float32
	Channels    []AudioChannel
	Outputs     []OutputDevice
}

// Validate enforces spec §6/§3's bounds, checked on construction and on
// every mutation (P1).
func (c MixerConfig) Validate() error {
	if err := clampRange("sample rate", float64(c.SampleRate), MinSampleRate, MaxSampleRate); err != nil {
		return err
	}
	if err := clampRange("buffer size", float64(c.BufferSize), MinBufferSize, MaxBufferSize); err != nil {
		return err
	}
	if err := clampRange("master gain", float64(c.MasterGain), 0, MaxGain); err != nil {
		return err
	}
	if len(c.Channels) > MaxChannels {
		return errs.InvalidConfigf("at most %d channels, got %d", MaxChannels, len(c.Channels))
	}
	for _, ch := range c.Channels {
		if err := ch.Validate(); err != nil {
			return err
		}
	}
	for _, o := range c.Outputs {
		if err := o.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// DefaultConfig returns a validated, empty starting configuration.
func DefaultConfig() MixerConfig {
	return MixerConfig{
		SampleRate: DefaultMixRate,
		BufferSize: 512,
		MasterGain: 0.9,
	}
}
