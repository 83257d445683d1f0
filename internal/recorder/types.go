// Package recorder turns the mix engine's master bus into WAV/MP3 files on
// disk, with auto-stop on silence or a duration/size cap, and a sqlite
// history of completed sessions.
package recorder

import (
	"time"

	"github.com/beats-galore/sending-beats-sub000/internal/mixer"
)

// State is a recording session's lifecycle stage.
type State int

const (
	Idle State = iota
	Active
	Stopping
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Active:
		return "active"
	case Stopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// defaultSilenceThresholdDB and defaultSilenceDurationSec are applied when a
// StartRecording command leaves the silence-detection fields at zero.
const (
	defaultSilenceThresholdDB  = -50.0
	defaultSilenceDurationSec  = 30.0
	defaultFilenameTemplate    = "{date}_{time}_{session}"
)

// Session is one in-progress or just-completed recording.
type Session struct {
	ID         string
	Config     mixer.RecordConfig
	StartedAt  time.Time
	FilePath   string
	BytesWritten int64
}

// Summary is what Stop returns: a completed session's final stats.
type Summary struct {
	ID         string
	FilePath   string
	DurationSec float64
	Bytes      int64
	StoppedReason string
}
