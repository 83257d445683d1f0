package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpdateFiresOnlyAtSyncBoundary(t *testing.T) {
	c := New(48000, 128)
	_, synced := c.Update(64)
	assert.False(t, synced)

	_, synced = c.Update(64)
	assert.True(t, synced)
	assert.Equal(t, uint64(128), c.SampleTimestamp())
}

func TestResetZeroesSampleCount(t *testing.T) {
	c := New(48000, 128)
	c.Update(128)
	require.Equal(t, uint64(128), c.SampleTimestamp())

	newRate := uint32(44100)
	c.Reset(&newRate, nil)
	assert.Equal(t, uint64(0), c.SampleTimestamp())
}

func TestTimingMetricsTrackAvgAndMax(t *testing.T) {
	c := New(48000, 128)
	c.RecordProcessingTime(10 * time.Microsecond)
	c.RecordProcessingTime(30 * time.Microsecond)

	m := c.Metrics()
	assert.Equal(t, 20.0, m.ProcessingTimeAvgUs)
	assert.Equal(t, 30.0, m.ProcessingTimeMaxUs)
}

func TestUnderrunAndOverrunCounters(t *testing.T) {
	c := New(48000, 128)
	c.RecordUnderrun()
	c.RecordUnderrun()
	c.RecordOverrun()

	m := c.Metrics()
	assert.Equal(t, uint64(2), m.Underruns())
	assert.Equal(t, uint64(1), m.Overruns())
}
