package tap

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"github.com/beats-galore/sending-beats-sub000/internal/device"
	"github.com/beats-galore/sending-beats-sub000/internal/errs"
	"github.com/beats-galore/sending-beats-sub000/internal/notify"
)

// MaxConcurrentTaps bounds system load from simultaneous app captures (spec
// §4.7: "Maximum concurrent taps is bounded (default 4)").
const MaxConcurrentTaps = 4

// AliveChecker reports whether a process id is still running; supplied by
// the caller since process enumeration lives outside this package.
type AliveChecker func(pid uint32) bool

// Manager owns every live ProcessTap, enforcing the concurrency cap and
// running the periodic cleanup sweep (spec §4.7).
type Manager struct {
	source Source
	alive  AliveChecker
	sem    *semaphore.Weighted

	mu   sync.Mutex
	taps map[string]*ProcessTap

	stopCleanup chan struct{}
	cleanupDone chan struct{}
}

// NewManager builds a tap manager bridging through source. alive is used by
// the cleanup sweep to detect dead owning processes.
func NewManager(source Source, alive AliveChecker) *Manager {
	return &Manager{
		source:      source,
		alive:       alive,
		sem:         semaphore.NewWeighted(MaxConcurrentTaps),
		taps:        make(map[string]*ProcessTap),
		stopCleanup: make(chan struct{}),
		cleanupDone: make(chan struct{}),
	}
}

// RunCleanup runs the 30s reaper sweep until ctx is cancelled or Close is
// called. Intended to run under an errgroup alongside the mix engine.
func (m *Manager) RunCleanup(ctx context.Context) error {
	defer close(m.cleanupDone)
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopCleanup:
			return nil
		case <-ticker.C:
			m.sweep(time.Now())
		}
	}
}

// Close stops the cleanup loop and destroys every live tap.
func (m *Manager) Close() {
	close(m.stopCleanup)
	<-m.cleanupDone

	m.mu.Lock()
	taps := make([]*ProcessTap, 0, len(m.taps))
	for _, t := range m.taps {
		taps = append(taps, t)
	}
	m.mu.Unlock()

	for _, t := range taps {
		m.destroy(t)
	}
}

// CreateTap starts capturing info's process audio. Fails fast with
// InvalidConfig if the process is not alive, UnsupportedPlatform if taps are
// unavailable, PermissionDenied if the platform probe refuses, DeviceBusy if
// a tap for info.PID already exists, or ResourceExhausted if the
// concurrency cap is full.
func (m *Manager) CreateTap(ctx context.Context, info ProcessInfo, notifier *notify.Notifier) (*ProcessTap, error) {
	if !info.IsAlive {
		return nil, errs.New(errs.InvalidConfig, "process is not alive")
	}
	if !m.source.Supported() {
		return nil, errs.New(errs.UnsupportedPlatform, "process audio taps unsupported on this platform")
	}
	if m.source.Probe() != PermissionGranted {
		return nil, errs.New(errs.PermissionDenied, "grant audio-capture permission in System Settings to tap app audio")
	}

	vid := info.VirtualID()

	m.mu.Lock()
	if _, exists := m.taps[vid]; exists {
		m.mu.Unlock()
		return nil, errs.New(errs.DeviceBusy, "tap already active for this process")
	}
	m.mu.Unlock()

	if !m.sem.TryAcquire(1) {
		return nil, errs.New(errs.ResourceExhausted, "maximum concurrent taps reached")
	}

	stream, err := m.source.Open(info, notifier)
	if err != nil {
		m.sem.Release(1)
		return nil, err
	}

	tap := newProcessTap(info, time.Now(), stream, func() { _ = m.source.Close(vid) })
	tap.setState(Capturing)

	m.mu.Lock()
	m.taps[vid] = tap
	m.mu.Unlock()

	return tap, nil
}

// Stream returns the bound InputStream for a live tap, so the mix engine
// can drain it the same way it drains a hardware input.
func (m *Manager) Stream(pid uint32) (*device.InputStream, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.taps[virtualID(pid)]
	if !ok {
		return nil, false
	}
	return t.Stream, true
}

// StopTap destroys an active tap by pid. Idempotent.
func (m *Manager) StopTap(pid uint32) {
	vid := virtualID(pid)
	m.mu.Lock()
	t, ok := m.taps[vid]
	if ok {
		delete(m.taps, vid)
	}
	m.mu.Unlock()
	if ok {
		m.destroy(t)
	}
}

// Touch records that info's tap produced activity, called from the mix loop
// once per buffer a tap's RB delivers samples.
func (m *Manager) Touch(pid uint32, now time.Time) {
	m.mu.Lock()
	t, ok := m.taps[virtualID(pid)]
	m.mu.Unlock()
	if ok {
		t.touch(now)
	}
}

// RecordError bumps a tap's error counter; a tap that crosses maxErrors is
// marked Failed and picked up by the next cleanup tick.
func (m *Manager) RecordError(pid uint32) {
	m.mu.Lock()
	t, ok := m.taps[virtualID(pid)]
	m.mu.Unlock()
	if !ok {
		return
	}
	if t.recordError() > maxErrors {
		t.setState(Failed)
	}
}

// Stats snapshots every live tap for the status surface.
func (m *Manager) Stats(now time.Time) []Stats {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Stats, 0, len(m.taps))
	for _, t := range m.taps {
		out = append(out, Stats{
			PID:          t.PID,
			Name:         t.Name,
			State:        t.State(),
			Age:          now.Sub(t.CreatedAt),
			LastActivity: now.Sub(t.lastActivity()),
			ErrorCount:   t.ErrorCount(),
			ProcessAlive: m.alive(t.PID),
		})
	}
	return out
}

func (m *Manager) sweep(now time.Time) {
	m.mu.Lock()
	var dead []*ProcessTap
	for vid, t := range m.taps {
		reap := t.State() == Failed ||
			t.ErrorCount() > maxErrors ||
			now.Sub(t.lastActivity()) > staleAfter ||
			!m.alive(t.PID)
		if reap {
			t.setState(Stale)
			dead = append(dead, t)
			delete(m.taps, vid)
		}
	}
	m.mu.Unlock()

	for _, t := range dead {
		log.Debug("tap cleanup reaping", "pid", t.PID, "name", t.Name)
		m.destroy(t)
	}
}

func (m *Manager) destroy(t *ProcessTap) {
	t.setState(Destroyed)
	if t.stop != nil {
		t.stop()
	}
	m.sem.Release(1)
}
