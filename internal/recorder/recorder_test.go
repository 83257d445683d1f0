package recorder

import (
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beats-galore/sending-beats-sub000/internal/mixer"
	"github.com/beats-galore/sending-beats-sub000/internal/ringbuffer"
)

// fakeEngine satisfies masterBusSource against a bare Broadcast, so tests
// don't need a running mixer.Engine.
type fakeEngine struct {
	bus  *ringbuffer.Broadcast
	rate uint32
}

func (f *fakeEngine) MasterBus() *ringbuffer.Broadcast { return f.bus }
func (f *fakeEngine) MixRate() uint32                  { return f.rate }

func newFakeEngine() *fakeEngine {
	return &fakeEngine{bus: ringbuffer.NewBroadcast(ringbuffer.SizeFor(48000, 2)), rate: 48000}
}

func TestStartCreatesFileAndRunsUntilStop(t *testing.T) {
	eng := newFakeEngine()
	r := New(eng, nil)
	dir := t.TempDir()

	id, err := r.Start(mixer.RecordConfig{
		Format:    "wav",
		OutputDir: dir,
		Channels:  2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, id)

	loud := make([]float32, 256)
	for i := range loud {
		loud[i] = 0.5
	}
	for i := 0; i < 3; i++ {
		eng.bus.Write(loud)
		time.Sleep(15 * time.Millisecond)
	}

	summaryAny, err := r.Stop()
	require.NoError(t, err)
	summary := summaryAny.(Summary)
	assert.Equal(t, id, summary.ID)
	assert.Greater(t, summary.Bytes, int64(0))
	assert.FileExists(t, summary.FilePath)
	assert.Equal(t, dir, filepath.Dir(summary.FilePath))
	assert.Regexp(t, `^\d{4}-\d{2}-\d{2}_\d{6}_`+regexp.QuoteMeta(id)+`\.wav$`, filepath.Base(summary.FilePath))
}

func TestStartRejectsConcurrentSession(t *testing.T) {
	eng := newFakeEngine()
	r := New(eng, nil)
	dir := t.TempDir()

	_, err := r.Start(mixer.RecordConfig{Format: "wav", OutputDir: dir})
	require.NoError(t, err)

	_, err = r.Start(mixer.RecordConfig{Format: "wav", OutputDir: dir})
	assert.Error(t, err)

	r.Stop()
}

func TestStopWithoutStartErrors(t *testing.T) {
	eng := newFakeEngine()
	r := New(eng, nil)
	_, err := r.Stop()
	assert.Error(t, err)
}

func TestStatusReflectsActiveSession(t *testing.T) {
	eng := newFakeEngine()
	r := New(eng, nil)
	dir := t.TempDir()

	assert.False(t, r.Status().Active)

	id, err := r.Start(mixer.RecordConfig{Format: "wav", OutputDir: dir})
	require.NoError(t, err)

	st := r.Status()
	assert.True(t, st.Active)
	assert.Equal(t, id, st.SessionID)

	r.Stop()
	assert.False(t, r.Status().Active)
}

func TestMaxBytesAutoStops(t *testing.T) {
	eng := newFakeEngine()
	r := New(eng, nil)
	dir := t.TempDir()

	_, err := r.Start(mixer.RecordConfig{
		Format:    "wav",
		OutputDir: dir,
		MaxBytes:  64,
	})
	require.NoError(t, err)

	loud := make([]float32, 256)
	for i := range loud {
		loud[i] = 0.8
	}
	eng.bus.Write(loud)

	require.Eventually(t, func() bool {
		return !r.Status().Active
	}, time.Second, 10*time.Millisecond)
}

func TestPeakDBFloorsSilence(t *testing.T) {
	assert.Equal(t, float32(-120), peakDB(make([]float32, 16)))
	assert.Greater(t, peakDB([]float32{0.5, -0.9, 0.1}), float32(-120))
}
