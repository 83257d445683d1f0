package recorder

import (
	"math"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/beats-galore/sending-beats-sub000/internal/errs"
	"github.com/beats-galore/sending-beats-sub000/internal/mixer"
	"github.com/beats-galore/sending-beats-sub000/internal/ringbuffer"
)

// masterBusSource is the slice of *mixer.Engine the recorder actually
// depends on, so tests can drive it against a bare *ringbuffer.Broadcast
// instead of a whole engine.
type masterBusSource interface {
	MasterBus() *ringbuffer.Broadcast
	MixRate() uint32
}

// Recorder implements mixer.RecordingController: it owns a poll loop that
// drains the mix engine's master bus into a WAV or MP3 file, applies
// silence/duration/max-bytes auto-stop, and logs completed sessions to a
// History store, grounded on the teacher's internal/db bootstrap idiom.
type Recorder struct {
	engine  masterBusSource
	history *History

	mu      sync.Mutex
	state   State
	session *Session
	enc     pcmEncoder
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func New(engine masterBusSource, history *History) *Recorder {
	return &Recorder{engine: engine, history: history, state: Idle}
}

// Start implements mixer.RecordingController.
func (r *Recorder) Start(cfg mixer.RecordConfig) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != Idle {
		return "", errs.New(errs.InvalidConfig, "a recording is already active")
	}

	sampleRate := cfg.SampleRate
	if sampleRate == 0 {
		sampleRate = r.engine.MixRate()
	}
	channels := cfg.Channels
	if channels == 0 {
		channels = 2
	}
	bitrate := cfg.MP3Bitrate
	if bitrate == 0 {
		bitrate = 192
	}

	id := uuid.NewString()
	now := time.Now()
	path := outputPath(cfg.OutputDir, cfg.FilenameTemplate, id, cfg.Format, now)

	enc, err := newEncoder(cfg.Format, path, sampleRate, channels, cfg.BitDepth, bitrate)
	if err != nil {
		return "", errs.Wrap(errs.EncoderFailure, "open recording encoder", err)
	}

	session := &Session{
		ID:        id,
		Config:    cfg,
		StartedAt: now,
		FilePath:  path,
	}
	if r.history != nil {
		if err := r.history.RecordStarted(session); err != nil {
			log.Warn("recorder: history insert failed", "err", err)
		}
	}

	r.session = session
	r.enc = enc
	r.state = Active
	r.stopCh = make(chan struct{})
	r.doneCh = make(chan struct{})

	go r.pump(session, enc, cfg, r.stopCh, r.doneCh)

	return id, nil
}

// Stop implements mixer.RecordingController.
func (r *Recorder) Stop() (any, error) {
	r.mu.Lock()
	if r.state != Active {
		r.mu.Unlock()
		return nil, errs.New(errs.InvalidConfig, "no active recording")
	}
	r.state = Stopping
	stopCh, doneCh := r.stopCh, r.doneCh
	r.mu.Unlock()

	close(stopCh)
	<-doneCh

	return r.finish("stopped by user"), nil
}

// Status implements the mixer package's optional duck-typed
// recordingStatusProvider, so Engine.Status can report live recording
// progress without importing this package.
func (r *Recorder) Status() mixer.RecordingStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.state != Active || r.session == nil {
		return mixer.RecordingStatus{}
	}
	return mixer.RecordingStatus{
		Active:     true,
		SessionID:  r.session.ID,
		OutputPath: r.session.FilePath,
		Elapsed:    time.Since(r.session.StartedAt),
		Bytes:      r.session.BytesWritten,
	}
}

// pump drains the master bus into enc until stopCh closes or an auto-stop
// condition fires, polling at roughly one buffer's worth of real time — the
// master bus has no notifier of its own (spec §4.5 only pings input/output
// demand), so a short fixed-interval poll is the simplest faithful consumer.
func (r *Recorder) pump(session *Session, enc pcmEncoder, cfg mixer.RecordConfig, stopCh, doneCh chan struct{}) {
	defer close(doneCh)

	reader := r.engine.MasterBus().NewReader()
	buf := make([]float32, 4096)

	silenceThreshold := cfg.SilenceThresholdDB
	if silenceThreshold == 0 {
		silenceThreshold = defaultSilenceThresholdDB
	}
	silenceDuration := cfg.SilenceDurationSec
	if silenceDuration == 0 {
		silenceDuration = defaultSilenceDurationSec
	}
	lastLoud := time.Now()

	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()

	reason := ""
poll:
	for {
		select {
		case <-stopCh:
			return
		case <-ticker.C:
		}

		for {
			n := reader.Read(buf)
			if n == 0 {
				break
			}
			chunk := buf[:n]
			written, err := enc.writeFloat32(chunk)
			if err != nil {
				log.Error("recorder: encode failed", "err", err)
				reason = "encode error"
				break poll
			}

			r.mu.Lock()
			session.BytesWritten += int64(written)
			bytes := session.BytesWritten
			r.mu.Unlock()

			if peakDB(chunk) > silenceThreshold {
				lastLoud = time.Now()
			}

			if cfg.MaxBytes > 0 && bytes >= cfg.MaxBytes {
				reason = "max bytes reached"
				break poll
			}
		}

		if cfg.MaxDurationSec > 0 && time.Since(session.StartedAt).Seconds() >= float64(cfg.MaxDurationSec) {
			reason = "max duration reached"
			break poll
		}
		if time.Since(lastLoud).Seconds() >= float64(silenceDuration) {
			reason = "silence timeout"
			break poll
		}
	}

	r.mu.Lock()
	r.state = Stopping
	r.mu.Unlock()
	r.finish(reason)
}

func (r *Recorder) finish(reason string) Summary {
	r.mu.Lock()
	session := r.session
	enc := r.enc
	r.mu.Unlock()

	if enc != nil {
		if err := enc.Close(); err != nil {
			log.Error("recorder: close encoder failed", "err", err)
		}
	}

	stoppedAt := time.Now()
	var bytes int64
	var duration float64
	if session != nil {
		bytes = session.BytesWritten
		duration = stoppedAt.Sub(session.StartedAt).Seconds()
		if r.history != nil {
			if err := r.history.RecordStopped(session.ID, stoppedAt, bytes, reason); err != nil {
				log.Warn("recorder: history update failed", "err", err)
			}
		}
	}

	r.mu.Lock()
	r.state = Idle
	r.session = nil
	r.enc = nil
	r.mu.Unlock()

	path := ""
	id := ""
	if session != nil {
		path = session.FilePath
		id = session.ID
	}
	return Summary{
		ID:            id,
		FilePath:      path,
		DurationSec:   duration,
		Bytes:         bytes,
		StoppedReason: reason,
	}
}

// peakDB returns the loudest sample in the chunk as dBFS, floored well below
// any realistic silence threshold so an all-silent chunk compares safely.
func peakDB(samples []float32) float32 {
	var peak float32
	for _, s := range samples {
		a := s
		if a < 0 {
			a = -a
		}
		if a > peak {
			peak = a
		}
	}
	if peak <= 0 {
		return -120
	}
	return float32(20 * math.Log10(float64(peak)))
}
