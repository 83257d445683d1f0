// Package clock derives sample-timestamp and drift estimates from hardware
// callback cadence, and accumulates the timing metrics spec section 4.6
// calls for: rolling/peak processing time, underrun/overrun/sync-adjustment
// counts. The clock is hardware-driven, not timer-driven — it never sleeps
// or schedules itself, it only reacts to samples the mix loop reports.
package clock

import (
	"fmt"
	"sync"
	"time"
)

// driftThreshold is the fraction of the expected inter-sync interval beyond
// which a callback-timing variation is reported as hardware drift rather
// than ignored as processing-time noise (spec 4.6: "variance > 10%").
const driftThreshold = 0.10

// Sync is the result of a clock update that landed on a sync boundary.
type Sync struct {
	SamplesProcessed  uint64
	DriftMicroseconds float64
	NeedsAdjustment   bool
	SyncTime          time.Time
}

// Clock tracks sample-accurate position and hardware drift for one mix rate.
// All state is guarded by a mutex since the mix loop is the sole writer but
// the status-snapshot path reads it from a different goroutine.
type Clock struct {
	mu sync.Mutex

	sampleRate        uint32
	syncIntervalSamps uint64
	samplesProcessed  uint64
	startTime         time.Time
	lastSyncTime      time.Time
	driftCompensation float64

	metrics Metrics
}

// New creates a clock that syncs once per bufferSize samples processed,
// matching the hardware callback cadence (spec: "sync every buffer").
func New(sampleRate uint32, bufferSize uint32) *Clock {
	now := time.Now()
	return &Clock{
		sampleRate:        sampleRate,
		syncIntervalSamps: uint64(bufferSize),
		startTime:         now,
		lastSyncTime:      now,
	}
}

// Update reports samplesAdded processed since the last call. It returns a
// Sync result whenever the running sample count lands exactly on a multiple
// of the sync interval; a count that steps over a multiple yields no Sync.
func (c *Clock) Update(samplesAdded int) (Sync, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.samplesProcessed += uint64(samplesAdded)
	if c.syncIntervalSamps == 0 || c.samplesProcessed%c.syncIntervalSamps != 0 {
		return Sync{}, false
	}

	now := time.Now()
	callbackIntervalUs := float64(now.Sub(c.lastSyncTime).Microseconds())
	expectedIntervalUs := float64(c.syncIntervalSamps) * 1_000_000.0 / float64(c.sampleRate)
	variation := callbackIntervalUs - expectedIntervalUs

	isDrift := expectedIntervalUs > 0 && abs(variation) > expectedIntervalUs*driftThreshold
	if isDrift {
		c.driftCompensation = variation
		c.metrics.recordSyncAdjustment()
	} else {
		c.driftCompensation = 0
	}
	c.lastSyncTime = now

	return Sync{
		SamplesProcessed:  c.samplesProcessed,
		DriftMicroseconds: variation,
		NeedsAdjustment:   isDrift,
		SyncTime:          now,
	}, true
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}

// SampleTimestamp returns the total number of samples processed since the
// last Reset.
func (c *Clock) SampleTimestamp() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.samplesProcessed
}

// DriftCompensation returns the most recently measured drift, in
// microseconds. Zero when the last sync found no significant drift.
func (c *Clock) DriftCompensation() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.driftCompensation
}

// Reset zeroes the sample counter and optionally changes sample rate and
// buffer size. The mix engine does not call it: when the engine's mix rate
// changes, its clock keeps the rate and buffer size it was built with.
func (c *Clock) Reset(sampleRate, bufferSize *uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if sampleRate != nil {
		c.sampleRate = *sampleRate
	}
	if bufferSize != nil {
		c.syncIntervalSamps = uint64(*bufferSize)
	}
	now := time.Now()
	c.samplesProcessed = 0
	c.startTime = now
	c.lastSyncTime = now
	c.driftCompensation = 0
	c.metrics.reset()
}

// RecordProcessingTime feeds one mix-iteration's wall-clock duration into
// the rolling/peak timing metrics.
func (c *Clock) RecordProcessingTime(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.recordProcessingTime(float64(d.Microseconds()))
}

// RecordUnderrun records an iteration that woke but found zero input frames.
func (c *Clock) RecordUnderrun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.buffer.underruns++
}

// RecordOverrun records a ring-buffer drop observed by the mix loop.
func (c *Clock) RecordOverrun() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.buffer.overruns++
}

// Metrics returns a snapshot of the accumulated timing metrics.
func (c *Clock) Metrics() Metrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

type bufferCounts struct {
	underruns uint64
	overruns  uint64
}

// Metrics accumulates the rolling statistics spec section 4.6 requires.
// It is safe to copy.
type Metrics struct {
	ProcessingTimeAvgUs float64
	ProcessingTimeMaxUs float64
	SyncAdjustments     uint64
	LastReset           time.Time
	buffer              bufferCounts
	sampleCount         uint64
	processingTimeSumUs float64
}

func (m *Metrics) recordProcessingTime(us float64) {
	m.processingTimeSumUs += us
	m.sampleCount++
	if us > m.ProcessingTimeMaxUs {
		m.ProcessingTimeMaxUs = us
	}
	m.ProcessingTimeAvgUs = m.processingTimeSumUs / float64(m.sampleCount)
}

func (m *Metrics) recordSyncAdjustment() { m.SyncAdjustments++ }

func (m *Metrics) reset() { *m = Metrics{LastReset: time.Now()} }

// Underruns and Overruns expose the buffer counters without leaking the
// unexported bufferCounts type.
func (m Metrics) Underruns() uint64 { return m.buffer.underruns }
func (m Metrics) Overruns() uint64  { return m.buffer.overruns }

// Summary renders a one-line human-readable report, matching the teacher's
// style of a compact diagnostic string.
func (m Metrics) Summary() string {
	uptime := time.Since(m.LastReset).Round(time.Second)
	return fmt.Sprintf(
		"clock(%s): avg=%.1fus max=%.1fus underruns=%d overruns=%d syncAdjustments=%d",
		uptime, m.ProcessingTimeAvgUs, m.ProcessingTimeMaxUs, m.buffer.underruns, m.buffer.overruns, m.SyncAdjustments,
	)
}
