package mixer

import (
	"math"
	"runtime"
	"time"

	"github.com/charmbracelet/log"

	"github.com/beats-galore/sending-beats-sub000/internal/clock"
	"github.com/beats-galore/sending-beats-sub000/internal/device"
	"github.com/beats-galore/sending-beats-sub000/internal/dsp"
	"github.com/beats-galore/sending-beats-sub000/internal/notify"
	"github.com/beats-galore/sending-beats-sub000/internal/ringbuffer"
	"github.com/beats-galore/sending-beats-sub000/internal/tap"
)

// headroomPeakThreshold and conservativeGainThreshold implement spec §4.5
// step 6's dynamic headroom control.
const (
	headroomPeakThreshold     = 0.8
	conservativeGainThreshold = 0.95
	conservativeGain          = 0.8
	nominalMasterGain         = 0.9
)

// yieldThreshold/overrunLogThreshold implement spec §4.5's yield policy: an
// iteration that finishes well under one buffer period yields the thread
// rather than spinning, one that overruns logs instead of silently eating
// the glitch.
const (
	yieldThreshold      = time.Millisecond
	overrunLogThreshold = 50 * time.Millisecond
)

type inputBinding struct {
	stream     *device.InputStream
	fx         *dsp.Chain
	src        *channelResampler
	rawScratch []float32
}

type outputBinding struct {
	stream *device.OutputStream
	src    *channelResampler
	gain   float32
}

// Engine is the single cooperative mix loop (spec §4.5). It owns no
// platform handles directly: those live in internal/device, reached through
// Binding.
type Engine struct {
	binding *device.Binding
	taps    *tap.Manager

	cfg *configHandoff
	vu  *vuHandoff

	inputs  map[string]*inputBinding
	outputs map[string]*outputBinding

	masterBus *ringbuffer.Broadcast

	inputAvail   *notify.Notifier
	outputDemand *notify.Notifier

	commands chan Command

	clock   *clock.Clock
	mixRate uint32

	recordingCtl RecordingController

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewEngine builds an idle engine at the default mix rate (spec §4.4: falls
// back to 48kHz with no devices bound).
func NewEngine(binding *device.Binding) *Engine {
	return &Engine{
		binding:      binding,
		cfg:          newConfigHandoff(DefaultConfig()),
		vu:           newVUHandoff(),
		inputs:       make(map[string]*inputBinding),
		outputs:      make(map[string]*outputBinding),
		masterBus:    ringbuffer.NewBroadcast(ringbuffer.SizeFor(DefaultMixRate, 2)),
		inputAvail:   notify.New(),
		outputDemand: notify.New(),
		commands:     make(chan Command, 128),
		clock:        clock.New(DefaultMixRate, 512),
		mixRate:      DefaultMixRate,
		stopCh:       make(chan struct{}),
		doneCh:       make(chan struct{}),
	}
}

// SetRecordingController wires the recorder so StartRecording/StopRecording
// commands reach it.
func (e *Engine) SetRecordingController(rc RecordingController) { e.recordingCtl = rc }

// SetTapManager wires the process-audio tap manager so StartCapturingApp/
// StopCapturingApp commands reach it.
func (e *Engine) SetTapManager(m *tap.Manager) { e.taps = m }

// MasterBus exposes the mix output broadcast ring for the recorder to
// subscribe to.
func (e *Engine) MasterBus() *ringbuffer.Broadcast { return e.masterBus }

// InputNotifier and OutputNotifier let Binding wire device callbacks into
// this engine's wake conditions.
func (e *Engine) InputNotifier() *notify.Notifier  { return e.inputAvail }
func (e *Engine) OutputNotifier() *notify.Notifier { return e.outputDemand }

// Submit enqueues a Control Surface command. The caller reads Reply (if
// non-nil) for the synchronous result.
func (e *Engine) Submit(cmd Command) { e.commands <- cmd }

// Config returns the live configuration snapshot.
func (e *Engine) Config() MixerConfig { return e.cfg.load() }

// VU returns the latest published levels.
func (e *Engine) VU() VUTable { return e.vu.snapshot() }

// MixRate reports the engine's current internal mix sample rate.
func (e *Engine) MixRate() uint32 { return e.mixRate }

// Stop requests the mix loop to exit and waits for it to finish.
func (e *Engine) Stop() {
	close(e.stopCh)
	<-e.doneCh
}

// Run pins the mix loop to a dedicated OS thread and drives it until Stop is
// called. The host audio framework's callback constraints mean this loop
// must never be parked on the cooperative goroutine scheduler for long
// (spec §5): every wake either applies a command or runs one mix iteration.
func (e *Engine) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(e.doneCh)

	for {
		select {
		case <-e.stopCh:
			return
		case cmd := <-e.commands:
			e.applyCommand(cmd)
			continue
		case <-e.inputAvail.C():
		case <-e.outputDemand.C():
		}

		start := time.Now()
		e.drainCommands()
		e.mixIteration()
		elapsed := time.Since(start)

		if elapsed > overrunLogThreshold {
			log.Debug("mix iteration overrun", "elapsed", elapsed)
		} else if elapsed < yieldThreshold {
			runtime.Gosched()
		}

		e.clock.RecordProcessingTime(elapsed)
	}
}

func (e *Engine) drainCommands() {
	for {
		select {
		case cmd := <-e.commands:
			e.applyCommand(cmd)
		default:
			return
		}
	}
}

// mixIteration runs spec §4.5 steps 2-10 once.
func (e *Engine) mixIteration() {
	cfg := e.cfg.load()
	frames := int(cfg.BufferSize)
	mixBuf := make([]float32, frames*2)

	anySolo := false
	for _, ch := range cfg.Channels {
		if ch.Solo {
			anySolo = true
			break
		}
	}

	channelLevels := make(map[uint32]Levels, len(cfg.Channels))
	contributing := 0

	for _, ch := range cfg.Channels {
		ib, ok := e.inputs[ch.InputDeviceID]
		if ch.InputDeviceID == "" || !ok {
			continue
		}

		native := int(ib.stream.Format.Channels)
		if cap(ib.rawScratch) < ib.stream.RB.Cap() {
			ib.rawScratch = make([]float32, ib.stream.RB.Cap())
		}
		raw := ib.rawScratch[:ib.stream.RB.Cap()]
		n := ib.stream.RB.Pop(raw)
		if n == 0 {
			e.clock.RecordUnderrun()
			continue
		}
		if e.taps != nil && ch.InputDeviceID == (tap.ProcessInfo{PID: ch.ID}).VirtualID() {
			e.taps.Touch(ch.ID, time.Now())
		}
		raw = raw[:n-(n%native)]
		if len(raw) == 0 {
			continue
		}

		if ch.EffectsEnabled {
			ib.fx.ProcessBuffer(raw)
		}

		channelLevels[ch.ID] = computeLevels(raw, native)

		gain := ch.Gain
		if ch.Muted {
			gain = 0
		}
		if anySolo && !ch.Solo {
			gain = 0
		}
		if gain == 0 {
			continue
		}

		resampled := ib.src.process(raw)
		stereo := remapChannels(resampled, native, 2)

		lGain, rGain := panGains(ch.Pan)
		lGain *= gain
		rGain *= gain
		frameCount := len(stereo) / 2
		if frameCount > frames {
			frameCount = frames
		}
		for i := 0; i < frameCount; i++ {
			mixBuf[i*2] += stereo[i*2] * lGain
			mixBuf[i*2+1] += stereo[i*2+1] * rGain
		}
		contributing++
	}

	peak := peakOf(mixBuf)
	if peak > headroomPeakThreshold && contributing >= 2 {
		scale := headroomPeakThreshold / peak
		for i := range mixBuf {
			mixBuf[i] *= scale
		}
		peak *= scale
	}

	masterGain := cfg.MasterGain
	if masterGain == 0 {
		masterGain = nominalMasterGain
	}
	if peak > conservativeGainThreshold {
		masterGain = conservativeGain
	}
	for i := range mixBuf {
		mixBuf[i] *= masterGain
	}

	e.vu.publish(VUTable{Channels: channelLevels, Master: computeLevels(mixBuf, 2)})

	for _, ob := range e.outputs {
		deviceChannels := int(ob.stream.Format.Channels)
		remapped := remapChannels(mixBuf, 2, deviceChannels)
		converted := ob.src.process(remapped)
		if converted == nil {
			continue
		}
		if ob.gain != 1 && ob.gain != 0 {
			for i := range converted {
				converted[i] *= ob.gain
			}
		} else if ob.gain == 0 {
			for i := range converted {
				converted[i] = 0
			}
		}
		ob.stream.RB.Write(converted)
	}

	e.masterBus.Write(mixBuf)
	e.clock.Update(frames)
}

// panGains implements a simple balance law: center (pan 0) passes both
// sides at unity, and panning hard to one side linearly zeroes the other
// without boosting the selected side.
func panGains(pan float32) (l, r float32) {
	l, r = float32(1), float32(1)
	if pan > 0 {
		l = 1 - pan
	} else if pan < 0 {
		r = 1 + pan
	}
	return l, r
}

func computeLevels(buf []float32, channels int) Levels {
	if channels < 1 {
		channels = 1
	}
	var l Levels
	n := len(buf) / channels
	var sumL, sumR float64
	for i := 0; i < n; i++ {
		left := buf[i*channels]
		right := left
		if channels >= 2 {
			right = buf[i*channels+1]
		}
		if abs32(left) > l.PeakL {
			l.PeakL = abs32(left)
		}
		if abs32(right) > l.PeakR {
			l.PeakR = abs32(right)
		}
		sumL += float64(left) * float64(left)
		sumR += float64(right) * float64(right)
	}
	if n > 0 {
		l.RMSL = float32(math.Sqrt(sumL / float64(n)))
		l.RMSR = float32(math.Sqrt(sumR / float64(n)))
	}
	return l
}

func peakOf(buf []float32) float32 {
	var p float32
	for _, v := range buf {
		if abs32(v) > p {
			p = abs32(v)
		}
	}
	return p
}

func abs32(f float32) float32 {
	if f < 0 {
		return -f
	}
	return f
}
