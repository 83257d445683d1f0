package device

import (
	"fmt"
	"runtime"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/malgo"

	"github.com/beats-galore/sending-beats-sub000/internal/devicehealth"
	"github.com/beats-galore/sending-beats-sub000/internal/errs"
	"github.com/beats-galore/sending-beats-sub000/internal/notify"
	"github.com/beats-galore/sending-beats-sub000/internal/ringbuffer"
)

// removeGrace is how long Remove waits for a callback to observe the stop
// flag before the platform stream is disposed (spec §4.2: "wait a fixed
// 50 ms grace").
const removeGrace = 50 * time.Millisecond

// Binding owns every open platform stream on one dedicated OS thread. It
// never runs on the cooperative runtime: the host audio framework invokes
// callbacks with real-time priority and forbids the callback path from
// blocking, so all stream lifecycle commands funnel through a single
// command inbox processed on that pinned thread.
type Binding struct {
	ctx    *malgo.AllocatedContext
	health *devicehealth.Tracker

	inbox chan bindingCommand
	done  chan struct{}

	mu      sync.Mutex
	streams map[string]*openStream
}

type openStream struct {
	dev    *malgo.Device
	input  *InputStream
	output *OutputStream
}

type bindingCommand interface{ run(b *Binding) }

type addInputCmd struct {
	deviceID string
	notifier *notify.Notifier
	result   chan<- addResult
}

type addOutputCmd struct {
	deviceID string
	notifier *notify.Notifier
	result   chan<- addResult
}

type removeCmd struct {
	deviceID string
	result   chan<- error
}

type addResult struct {
	stream *InputStream
	out    *OutputStream
	err    error
}

// NewBinding opens the platform audio context. Call Run on a dedicated
// goroutine immediately after.
func NewBinding(health *devicehealth.Tracker) (*Binding, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		log.Debug("malgo", "message", message)
	})
	if err != nil {
		return nil, errs.Wrap(errs.Internal, "init audio context", err)
	}
	return &Binding{
		ctx:     ctx,
		health:  health,
		inbox:   make(chan bindingCommand, 64),
		done:    make(chan struct{}),
		streams: make(map[string]*openStream),
	}, nil
}

// Run pumps the command inbox until Close is called. Must run on its own
// goroutine, which it pins for its lifetime via LockOSThread.
func (b *Binding) Run() {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(b.done)

	for cmd := range b.inbox {
		cmd.run(b)
	}
}

// Close stops every open stream and tears down the audio context. Blocks
// until Run has drained the inbox.
func (b *Binding) Close() {
	close(b.inbox)
	<-b.done

	b.mu.Lock()
	streams := make([]*openStream, 0, len(b.streams))
	for _, s := range b.streams {
		streams = append(streams, s)
	}
	b.streams = map[string]*openStream{}
	b.mu.Unlock()

	for _, s := range streams {
		_ = s.dev.Stop()
		s.dev.Uninit()
	}
	b.ctx.Uninit()
}

// AddInput resolves deviceID, opens it in its native format, and returns a
// bound InputStream ready for the mix loop to drain.
func (b *Binding) AddInput(deviceID string, notifier *notify.Notifier) (*InputStream, error) {
	result := make(chan addResult, 1)
	b.inbox <- addInputCmd{deviceID: deviceID, notifier: notifier, result: result}
	r := <-result
	return r.stream, r.err
}

// AddOutput resolves deviceID, opens it in its native format, and returns a
// bound OutputStream.
func (b *Binding) AddOutput(deviceID string, notifier *notify.Notifier) (*OutputStream, error) {
	result := make(chan addResult, 1)
	b.inbox <- addOutputCmd{deviceID: deviceID, notifier: notifier, result: result}
	r := <-result
	return r.out, r.err
}

// Remove stops and disposes a previously bound stream. Idempotent: removing
// an unknown device-id is not an error.
func (b *Binding) Remove(deviceID string) error {
	result := make(chan error, 1)
	b.inbox <- removeCmd{deviceID: deviceID, result: result}
	return <-result
}

func (c addInputCmd) run(b *Binding) {
	stream, err := b.openInput(c.deviceID, c.notifier)
	c.result <- addResult{stream: stream, err: err}
}

func (c addOutputCmd) run(b *Binding) {
	stream, err := b.openOutput(c.deviceID, c.notifier)
	c.result <- addResult{out: stream, err: err}
}

func (c removeCmd) run(b *Binding) {
	c.result <- b.remove(c.deviceID)
}

func (b *Binding) openInput(deviceID string, notifier *notify.Notifier) (*InputStream, error) {
	resolved, err := b.resolveDevice(deviceID, malgo.Capture)
	if err != nil {
		return nil, err
	}
	return b.openInputResolved(deviceID, deviceID, resolved, notifier)
}

// openInputResolved opens a resolved platform device, registering it in the
// stream table under registryKey. registryKey and deviceID are the same for
// ordinary hardware inputs; the tap bridge uses a virtual registryKey
// (app-<pid>) while resolving a real loopback/capture device underneath.
func (b *Binding) openInputResolved(registryKey, deviceID string, resolved resolvedDevice, notifier *notify.Notifier) (*InputStream, error) {
	cfg := malgo.DefaultDeviceConfig(malgo.Capture)
	cfg.Capture.DeviceID = resolved.id.Pointer()
	cfg.Capture.Format = toMalgoFormat(resolved.format)
	cfg.Capture.Channels = resolved.channels
	cfg.SampleRate = 0 // 0 asks miniaudio to negotiate the device's native rate

	var stream *InputStream
	var rb *ringbuffer.SPSC

	callbacks := malgo.DeviceCallbacks{
		Data: func(_, in []byte, frameCount uint32) {
			if stream == nil {
				return
			}
			buf := appendF32(in, stream.Format.Sample, stream.Format.Channels, frameCount, nil)
			if len(buf) == 0 {
				return
			}
			rb.Push(buf)
			stream.touch()
			notifier.Ping()
		},
		Stop: func() {
			b.health.RecordError(deviceID, "stream stopped")
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, errs.Wrap(errs.DeviceFormatUnsupported, fmt.Sprintf("init capture device %s", deviceID), err)
	}

	format := Format{SampleRate: dev.SampleRate(), Channels: resolved.channels, Sample: resolved.format}
	rb = ringbuffer.NewSPSC(ringbuffer.SizeFor(format.SampleRate, int(format.Channels)))
	stream = newInputStream(registryKey, format, rb, notifier)

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, errs.Wrap(errs.Internal, fmt.Sprintf("start capture device %s", deviceID), err)
	}

	b.mu.Lock()
	b.streams[registryKey] = &openStream{dev: dev, input: stream}
	b.mu.Unlock()

	b.health.MarkConnected(deviceID)
	return stream, nil
}

// AddLoopbackInput opens the default capture device under a caller-chosen
// virtual registry key rather than the device's own name. Used by
// internal/tap to bridge app audio through the same capture mechanism as a
// hardware input (spec §4.7).
func (b *Binding) AddLoopbackInput(virtualID string, notifier *notify.Notifier) (*InputStream, error) {
	result := make(chan addResult, 1)
	b.inbox <- addLoopbackCmd{virtualID: virtualID, notifier: notifier, result: result}
	r := <-result
	return r.stream, r.err
}

type addLoopbackCmd struct {
	virtualID string
	notifier  *notify.Notifier
	result    chan<- addResult
}

func (c addLoopbackCmd) run(b *Binding) {
	resolved, err := b.resolveDefaultDevice(malgo.Capture)
	if err != nil {
		c.result <- addResult{err: err}
		return
	}
	stream, err := b.openInputResolved(c.virtualID, "default", resolved, c.notifier)
	c.result <- addResult{stream: stream, err: err}
}

func (b *Binding) openOutput(deviceID string, notifier *notify.Notifier) (*OutputStream, error) {
	resolved, err := b.resolveDevice(deviceID, malgo.Playback)
	if err != nil {
		return nil, err
	}

	cfg := malgo.DefaultDeviceConfig(malgo.Playback)
	cfg.Playback.DeviceID = resolved.id.Pointer()
	cfg.Playback.Format = toMalgoFormat(resolved.format)
	cfg.Playback.Channels = resolved.channels
	cfg.SampleRate = 0

	var stream *OutputStream
	lowWater := func(capacity int) int { return int(float64(capacity) * lowWaterFraction) }

	callbacks := malgo.DeviceCallbacks{
		Data: func(out, _ []byte, frameCount uint32) {
			if stream == nil {
				return
			}
			n := int(frameCount) * int(stream.Format.Channels)
			buf := make([]float32, n)
			got := stream.Reader.Read(buf)
			fillNative(out, stream.Format.Sample, buf)
			if stream.RB.Cap()-got < lowWater(stream.RB.Cap()) {
				notifier.Ping()
			}
		},
		Stop: func() {
			b.health.RecordError(deviceID, "stream stopped")
		},
	}

	dev, err := malgo.InitDevice(b.ctx.Context, cfg, callbacks)
	if err != nil {
		return nil, errs.Wrap(errs.DeviceFormatUnsupported, fmt.Sprintf("init playback device %s", deviceID), err)
	}

	format := Format{SampleRate: dev.SampleRate(), Channels: resolved.channels, Sample: resolved.format}
	bc := ringbuffer.NewBroadcast(ringbuffer.SizeFor(format.SampleRate, int(format.Channels)))
	stream = newOutputStream(deviceID, format, bc, notifier)

	if err := dev.Start(); err != nil {
		dev.Uninit()
		return nil, errs.Wrap(errs.Internal, fmt.Sprintf("start playback device %s", deviceID), err)
	}

	b.mu.Lock()
	b.streams[deviceID] = &openStream{dev: dev, output: stream}
	b.mu.Unlock()

	b.health.MarkConnected(deviceID)
	return stream, nil
}

func (b *Binding) remove(deviceID string) error {
	b.mu.Lock()
	s, ok := b.streams[deviceID]
	if ok {
		delete(b.streams, deviceID)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}

	if s.input != nil {
		s.input.stopped.Store(true)
	}
	if s.output != nil {
		s.output.stopped.Store(true)
	}
	time.Sleep(removeGrace)

	if err := s.dev.Stop(); err != nil {
		log.Debug("device stop error", "device", deviceID, "error", err)
	}
	s.dev.Uninit()
	b.health.MarkDisconnected(deviceID)
	return nil
}
