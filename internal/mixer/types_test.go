package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestValidateDeviceIDAcceptsOrdinaryNames(t *testing.T) {
	for _, id := range []string{"built-in-mic", "USB_Audio.2", "hw:0,0"} {
		assert.NoError(t, ValidateDeviceID(id), id)
	}
}

func TestValidateDeviceIDRejectsTraversalAndShellMeta(t *testing.T) {
	for _, id := range []string{"../etc/passwd", "a;;b", "a&&b", "a||b", "a//b", `a\\b`} {
		assert.Error(t, ValidateDeviceID(id), id)
	}
}

func TestValidateDeviceIDRejectsOutOfRangeLength(t *testing.T) {
	assert.Error(t, ValidateDeviceID("a"))
	assert.Error(t, ValidateDeviceID(""))
}

func TestValidateDeviceIDRejectsNonAlnumEdges(t *testing.T) {
	assert.Error(t, ValidateDeviceID("-abc"))
	assert.Error(t, ValidateDeviceID("abc-"))
}

// TestDeviceIDValidatorNeverPanics is property P8: the validator is a total
// function over arbitrary strings, never panicking regardless of input.
func TestDeviceIDValidatorNeverPanics(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		s := rapid.String().Draw(t, "id")
		assert.NotPanics(t, func() { _ = ValidateDeviceID(s) })
	})
}

// TestMixerConfigValidateRejectsTooManyChannels is property P1: Validate
// rejects any configuration exceeding the channel cap.
func TestMixerConfigValidateRejectsTooManyChannels(t *testing.T) {
	cfg := DefaultConfig()
	for i := 0; i < MaxChannels+1; i++ {
		cfg.Channels = append(cfg.Channels, AudioChannel{ID: uint32(i), Gain: 1})
	}
	assert.Error(t, cfg.Validate())
}

// TestCommandSequenceKeepsConfigValid is property P1: any sequence of
// AddChannel/RemoveChannel/Mute/Solo/SetMasterGain commands that the engine
// accepts (OK: true) leaves the published config Validate()-clean.
func TestCommandSequenceKeepsConfigValid(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		e := NewEngine(nil)
		nextID := uint32(1)

		steps := rapid.IntRange(1, 20).Draw(t, "steps")
		for i := 0; i < steps; i++ {
			switch rapid.IntRange(0, 4).Draw(t, "op") {
			case 0:
				id := nextID
				nextID++
				e.applyCommand(AddChannel{Channel: AudioChannel{
					ID:   id,
					Gain: float32(rapid.Float64Range(0, MaxGain).Draw(t, "gain")),
					Pan:  float32(rapid.Float64Range(MinPan, MaxPan).Draw(t, "pan")),
				}})
			case 1:
				cfg := e.cfg.load()
				if len(cfg.Channels) > 0 {
					idx := rapid.IntRange(0, len(cfg.Channels)-1).Draw(t, "idx")
					e.applyCommand(RemoveChannel{ID: cfg.Channels[idx].ID})
				}
			case 2:
				cfg := e.cfg.load()
				if len(cfg.Channels) > 0 {
					idx := rapid.IntRange(0, len(cfg.Channels)-1).Draw(t, "idx")
					e.applyCommand(Mute{ID: cfg.Channels[idx].ID, Value: rapid.Bool().Draw(t, "mute")})
				}
			case 3:
				cfg := e.cfg.load()
				if len(cfg.Channels) > 0 {
					idx := rapid.IntRange(0, len(cfg.Channels)-1).Draw(t, "idx")
					e.applyCommand(Solo{ID: cfg.Channels[idx].ID, Value: rapid.Bool().Draw(t, "solo")})
				}
			case 4:
				e.applyCommand(SetMasterGain{Gain: float32(rapid.Float64Range(0, MaxGain).Draw(t, "mg"))})
			}
			require.NoError(t, e.cfg.load().Validate())
		}
	})
}
