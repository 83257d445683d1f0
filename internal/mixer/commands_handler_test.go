package mixer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddChannelRejectsDuplicateID(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(AddChannel{Channel: AudioChannel{ID: 1, Gain: 1}, Reply: reply})
	require.True(t, (<-reply).OK)

	reply2 := make(chan Result, 1)
	e.applyCommand(AddChannel{Channel: AudioChannel{ID: 1, Gain: 1}, Reply: reply2})
	assert.False(t, (<-reply2).OK)
}

func TestAddChannelRejectsInvalidGain(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(AddChannel{Channel: AudioChannel{ID: 1, Gain: 999}, Reply: reply})
	assert.False(t, (<-reply).OK)
	assert.Empty(t, e.cfg.load().Channels)
}

func TestRemoveChannelUnknownIDErrors(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(RemoveChannel{ID: 42, Reply: reply})
	assert.False(t, (<-reply).OK)
}

func TestMuteTogglesChannelState(t *testing.T) {
	e := NewEngine(nil)
	e.applyCommand(AddChannel{Channel: AudioChannel{ID: 1, Gain: 1}})

	reply := make(chan Result, 1)
	e.applyCommand(Mute{ID: 1, Value: true, Reply: reply})
	require.True(t, (<-reply).OK)

	cfg := e.cfg.load()
	require.Len(t, cfg.Channels, 1)
	assert.True(t, cfg.Channels[0].Muted)
}

func TestSoloTogglesChannelState(t *testing.T) {
	e := NewEngine(nil)
	e.applyCommand(AddChannel{Channel: AudioChannel{ID: 1, Gain: 1}})

	reply := make(chan Result, 1)
	e.applyCommand(Solo{ID: 1, Value: true, Reply: reply})
	require.True(t, (<-reply).OK)
	assert.True(t, e.cfg.load().Channels[0].Solo)
}

func TestSetMasterGainUpdatesConfig(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(SetMasterGain{Gain: 0.5, Reply: reply})
	require.True(t, (<-reply).OK)
	assert.Equal(t, float32(0.5), e.cfg.load().MasterGain)
}

func TestSetMasterGainRejectsOutOfRange(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(SetMasterGain{Gain: 100, Reply: reply})
	assert.False(t, (<-reply).OK)
}

func TestUpdateChannelReplacesFields(t *testing.T) {
	e := NewEngine(nil)
	e.applyCommand(AddChannel{Channel: AudioChannel{ID: 1, Gain: 1, Name: "mic"}})

	reply := make(chan Result, 1)
	e.applyCommand(UpdateChannel{ID: 1, Channel: AudioChannel{Gain: 2, Name: "renamed"}, Reply: reply})
	require.True(t, (<-reply).OK)

	cfg := e.cfg.load()
	require.Len(t, cfg.Channels, 1)
	assert.Equal(t, "renamed", cfg.Channels[0].Name)
	assert.Equal(t, float32(2), cfg.Channels[0].Gain)
	assert.Equal(t, uint32(1), cfg.Channels[0].ID)
}

func TestStartCapturingAppFailsWithoutTapManager(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(StartCapturingApp{PID: 1, Name: "Music", Reply: reply})
	assert.False(t, (<-reply).OK)
}

func TestStopCapturingAppIsIdempotentWithoutTapManager(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(StopCapturingApp{PID: 1, Reply: reply})
	assert.True(t, (<-reply).OK)
}

func TestStartRecordingFailsWithoutController(t *testing.T) {
	e := NewEngine(nil)
	reply := make(chan Result, 1)
	e.applyCommand(StartRecording{Reply: reply})
	assert.False(t, (<-reply).OK)
}

type fakeRecordingController struct {
	startErr error
	sessionID string
}

func (f *fakeRecordingController) Start(cfg RecordConfig) (string, error) {
	return f.sessionID, f.startErr
}
func (f *fakeRecordingController) Stop() (any, error) { return "done", nil }

func TestStartRecordingDelegatesToController(t *testing.T) {
	e := NewEngine(nil)
	e.SetRecordingController(&fakeRecordingController{sessionID: "sess-1"})

	reply := make(chan Result, 1)
	e.applyCommand(StartRecording{Reply: reply})
	r := <-reply
	require.True(t, r.OK)
	assert.Equal(t, "sess-1", r.Value)
}
