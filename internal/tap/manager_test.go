package tap

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/beats-galore/sending-beats-sub000/internal/device"
	"github.com/beats-galore/sending-beats-sub000/internal/notify"
)

type fakeSource struct {
	mu        sync.Mutex
	supported bool
	perm      Permission
	opened    map[string]bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{supported: true, perm: PermissionGranted, opened: map[string]bool{}}
}

func (f *fakeSource) Supported() bool { return f.supported }
func (f *fakeSource) Probe() Permission { return f.perm }

func (f *fakeSource) Open(info ProcessInfo, notifier *notify.Notifier) (*device.InputStream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.opened[info.VirtualID()] = true
	return nil, nil
}

func (f *fakeSource) Close(virtualID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.opened, virtualID)
	return nil
}

func alwaysAlive(uint32) bool { return true }
func neverAlive(uint32) bool  { return false }

func TestCreateTapSucceedsAndRegisters(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	info := ProcessInfo{PID: 100, Name: "Music", IsAlive: true}

	tap, err := m.CreateTap(context.Background(), info, notify.New())
	require.NoError(t, err)
	assert.Equal(t, Capturing, tap.State())
	assert.Equal(t, "app-100", tap.VirtualID)
}

func TestCreateTapRejectsDeadProcess(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	_, err := m.CreateTap(context.Background(), ProcessInfo{PID: 1, IsAlive: false}, notify.New())
	assert.Error(t, err)
}

func TestCreateTapEnforcesConcurrencyCap(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	for i := 0; i < MaxConcurrentTaps; i++ {
		_, err := m.CreateTap(context.Background(), ProcessInfo{PID: uint32(i + 1), IsAlive: true}, notify.New())
		require.NoError(t, err)
	}
	_, err := m.CreateTap(context.Background(), ProcessInfo{PID: 999, IsAlive: true}, notify.New())
	assert.Error(t, err)
}

func TestCreateTapRejectsDuplicatePID(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	info := ProcessInfo{PID: 7, IsAlive: true}
	_, err := m.CreateTap(context.Background(), info, notify.New())
	require.NoError(t, err)
	_, err = m.CreateTap(context.Background(), info, notify.New())
	assert.Error(t, err)
}

func TestSweepReapsDeadProcess(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, neverAlive)
	info := ProcessInfo{PID: 42, IsAlive: true}
	_, err := m.CreateTap(context.Background(), info, notify.New())
	require.NoError(t, err)

	m.sweep(time.Now())

	assert.Empty(t, m.Stats(time.Now()))
	src.mu.Lock()
	defer src.mu.Unlock()
	assert.False(t, src.opened["app-42"])
}

func TestSweepReapsStaleLastActivity(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	info := ProcessInfo{PID: 5, IsAlive: true}
	_, err := m.CreateTap(context.Background(), info, notify.New())
	require.NoError(t, err)

	future := time.Now().Add(staleAfter + time.Minute)
	m.sweep(future)

	assert.Empty(t, m.Stats(future))
}

func TestRecordErrorMarksFailedPastThreshold(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	info := ProcessInfo{PID: 9, IsAlive: true}
	tap, err := m.CreateTap(context.Background(), info, notify.New())
	require.NoError(t, err)

	for i := 0; i < maxErrors+1; i++ {
		m.RecordError(9)
	}
	assert.Equal(t, Failed, tap.State())
}

func TestStopTapIsIdempotent(t *testing.T) {
	src := newFakeSource()
	m := NewManager(src, alwaysAlive)
	m.StopTap(123)
	m.StopTap(123)
}

func TestCreateTapDeniedWithoutPermission(t *testing.T) {
	src := newFakeSource()
	src.perm = PermissionDenied
	m := NewManager(src, alwaysAlive)
	_, err := m.CreateTap(context.Background(), ProcessInfo{PID: 1, IsAlive: true}, notify.New())
	assert.Error(t, err)
}
