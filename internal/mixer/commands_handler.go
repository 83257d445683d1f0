package mixer

import (
	"context"

	"github.com/beats-galore/sending-beats-sub000/internal/dsp"
	"github.com/beats-galore/sending-beats-sub000/internal/errs"
	"github.com/beats-galore/sending-beats-sub000/internal/tap"
)

// applyCommand runs on the mix loop's own goroutine (spec §4.5 step 1: the
// loop drains its command queue before every mix iteration), so it can
// freely mutate e.inputs/e.outputs without a lock and publish the new
// config snapshot via cfg.store.
func (e *Engine) applyCommand(cmd Command) {
	switch c := cmd.(type) {
	case AddChannel:
		e.handleAddChannel(c)
	case RemoveChannel:
		e.handleRemoveChannel(c)
	case UpdateChannel:
		e.handleUpdateChannel(c)
	case SetMasterGain:
		e.handleSetMasterGain(c)
	case Mute:
		e.handleMute(c)
	case Solo:
		e.handleSolo(c)
	case AddInputStream:
		e.handleAddInputStream(c)
	case RemoveInputStream:
		e.handleRemoveInputStream(c)
	case AddOutputDevice:
		e.handleAddOutputDevice(c)
	case RemoveOutputDevice:
		e.handleRemoveOutputDevice(c)
	case StartCapturingApp:
		e.handleStartCapturingApp(c)
	case StopCapturingApp:
		e.handleStopCapturingApp(c)
	case StartRecording:
		e.handleStartRecording(c)
	case StopRecording:
		e.handleStopRecording(c)
	case SetDebug:
		reply(c.Reply, Result{OK: true})
	default:
		// unknown command types cannot occur: Command is a closed sum type
		// guarded by isCommand(), enforced at compile time.
	}
}

func reply(ch chan<- Result, r Result) {
	if ch == nil {
		return
	}
	select {
	case ch <- r:
	default:
	}
}

// withConfig loads the published config, hands mutate a deep-enough copy to
// mutate freely, and republishes it if both mutate and Validate succeed.
// Channels/Outputs are cloned before mutation: the loaded snapshot's slices
// still back whatever the mix loop or another reader currently holds, and
// mutating in place would let that write become visible to a reader that
// never went through Submit (invariant I6: the Control Surface is the only
// writer, and every write is a whole-snapshot swap).
func (e *Engine) withConfig(mutate func(cfg *MixerConfig) error) error {
	cfg := e.cfg.load()
	cfg.Channels = append([]AudioChannel(nil), cfg.Channels...)
	cfg.Outputs = append([]OutputDevice(nil), cfg.Outputs...)
	if err := mutate(&cfg); err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	e.cfg.store(cfg)
	return nil
}

func (e *Engine) handleAddChannel(c AddChannel) {
	err := e.withConfig(func(cfg *MixerConfig) error {
		for _, ch := range cfg.Channels {
			if ch.ID == c.Channel.ID {
				return errs.New(errs.InvalidConfig, "channel id already exists")
			}
		}
		cfg.Channels = append(cfg.Channels, c.Channel)
		return nil
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleRemoveChannel(c RemoveChannel) {
	err := e.withConfig(func(cfg *MixerConfig) error {
		for i, ch := range cfg.Channels {
			if ch.ID == c.ID {
				cfg.Channels = append(cfg.Channels[:i], cfg.Channels[i+1:]...)
				return nil
			}
		}
		return errs.New(errs.InvalidConfig, "unknown channel id")
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleUpdateChannel(c UpdateChannel) {
	err := e.withConfig(func(cfg *MixerConfig) error {
		for i, ch := range cfg.Channels {
			if ch.ID == c.ID {
				updated := c.Channel
				updated.ID = c.ID
				cfg.Channels[i] = updated
				if ib, ok := e.inputs[updated.InputDeviceID]; ok {
					ib.fx.Apply(dsp.Params{
						Enabled:            updated.EffectsEnabled,
						EQLowDB:            updated.EQLowDB,
						EQMidDB:            updated.EQMidDB,
						EQHighDB:           updated.EQHighDB,
						CompEnabled:        updated.CompEnabled,
						CompThresholdDB:    updated.CompThresholdDB,
						CompRatio:          updated.CompRatio,
						CompAttackMs:       updated.CompAttackMs,
						CompReleaseMs:      updated.CompReleaseMs,
						LimiterEnabled:     updated.LimiterEnabled,
						LimiterThresholdDB: updated.LimiterThresh,
					})
				}
				return nil
			}
		}
		return errs.New(errs.InvalidConfig, "unknown channel id")
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleSetMasterGain(c SetMasterGain) {
	err := e.withConfig(func(cfg *MixerConfig) error {
		cfg.MasterGain = c.Gain
		return nil
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleMute(c Mute) {
	err := e.withConfig(func(cfg *MixerConfig) error {
		for i, ch := range cfg.Channels {
			if ch.ID == c.ID {
				cfg.Channels[i].Muted = c.Value
				return nil
			}
		}
		return errs.New(errs.InvalidConfig, "unknown channel id")
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleSolo(c Solo) {
	err := e.withConfig(func(cfg *MixerConfig) error {
		for i, ch := range cfg.Channels {
			if ch.ID == c.ID {
				cfg.Channels[i].Solo = c.Value
				return nil
			}
		}
		return errs.New(errs.InvalidConfig, "unknown channel id")
	})
	reply(c.Reply, resultFor(err))
}

// mixRateFor picks the engine's internal mix rate: the larger of the current
// mix rate and candidate. The rate only ever rises: it starts at
// DefaultMixRate, never drops below it, and is not lowered again when the
// stream that raised it is removed (property P5: mix rate never falls below
// any active device's native rate).
func (e *Engine) mixRateFor(candidate uint32) uint32 {
	rate := e.mixRate
	if candidate > rate {
		rate = candidate
	}
	return rate
}

func (e *Engine) handleAddInputStream(c AddInputStream) {
	if err := ValidateDeviceID(c.DeviceID); err != nil {
		reply(c.Reply, resultFor(err))
		return
	}
	stream, err := e.binding.AddInput(c.DeviceID, e.inputAvail)
	if err != nil {
		reply(c.Reply, resultFor(err))
		return
	}

	e.mixRate = e.mixRateFor(stream.Format.SampleRate)
	e.inputs[c.DeviceID] = &inputBinding{
		stream: stream,
		fx:     dsp.NewChain(stream.Format.SampleRate),
		src:    newChannelResampler(stream.Format.SampleRate, e.mixRate, int(stream.Format.Channels)),
	}
	e.rebuildResamplersLocked()
	reply(c.Reply, Result{OK: true})
}

func (e *Engine) handleRemoveInputStream(c RemoveInputStream) {
	delete(e.inputs, c.DeviceID)
	err := e.binding.Remove(c.DeviceID)
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleAddOutputDevice(c AddOutputDevice) {
	if err := c.Output.Validate(); err != nil {
		reply(c.Reply, resultFor(err))
		return
	}
	stream, err := e.binding.AddOutput(c.Output.DeviceID, e.outputDemand)
	if err != nil {
		reply(c.Reply, resultFor(err))
		return
	}

	gain := c.Output.Gain
	if gain == 0 {
		gain = 1
	}
	e.mixRate = e.mixRateFor(stream.Format.SampleRate)
	e.outputs[c.Output.DeviceID] = &outputBinding{
		stream: stream,
		src:    newChannelResampler(e.mixRate, stream.Format.SampleRate, int(stream.Format.Channels)),
		gain:   gain,
	}
	e.rebuildResamplersLocked()

	err = e.withConfig(func(cfg *MixerConfig) error {
		cfg.Outputs = append(cfg.Outputs, c.Output)
		return nil
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleRemoveOutputDevice(c RemoveOutputDevice) {
	delete(e.outputs, c.DeviceID)
	err := e.binding.Remove(c.DeviceID)
	if err == nil {
		err = e.withConfig(func(cfg *MixerConfig) error {
			for i, o := range cfg.Outputs {
				if o.DeviceID == c.DeviceID {
					cfg.Outputs = append(cfg.Outputs[:i], cfg.Outputs[i+1:]...)
					break
				}
			}
			return nil
		})
	}
	reply(c.Reply, resultFor(err))
}

// rebuildResamplersLocked recomputes every bound edge's resampler after the
// internal mix rate changes (spec §4.4's "mix rate change is a new edge").
func (e *Engine) rebuildResamplersLocked() {
	for id, ib := range e.inputs {
		if ib.src.channels() != int(ib.stream.Format.Channels) || ib.src.toRate != e.mixRate {
			ib.src = newChannelResampler(ib.stream.Format.SampleRate, e.mixRate, int(ib.stream.Format.Channels))
		}
		_ = id
	}
	for id, ob := range e.outputs {
		if ob.src.fromRate != e.mixRate {
			ob.src = newChannelResampler(e.mixRate, ob.stream.Format.SampleRate, int(ob.stream.Format.Channels))
		}
		_ = id
	}
}

func (e *Engine) handleStartCapturingApp(c StartCapturingApp) {
	if e.taps == nil {
		reply(c.Reply, resultFor(errs.New(errs.UnsupportedPlatform, "process audio taps not wired")))
		return
	}
	info := tap.ProcessInfo{PID: c.PID, Name: c.Name, IsAlive: true}
	created, err := e.taps.CreateTap(context.Background(), info, e.inputAvail)
	if err != nil {
		reply(c.Reply, resultFor(err))
		return
	}
	stream, ok := e.taps.Stream(c.PID)
	if !ok || stream == nil {
		reply(c.Reply, resultFor(errs.New(errs.Internal, "tap created without a bound stream")))
		return
	}

	e.mixRate = e.mixRateFor(stream.Format.SampleRate)
	e.inputs[created.VirtualID] = &inputBinding{
		stream: stream,
		fx:     dsp.NewChain(stream.Format.SampleRate),
		src:    newChannelResampler(stream.Format.SampleRate, e.mixRate, int(stream.Format.Channels)),
	}
	e.rebuildResamplersLocked()

	err = e.withConfig(func(cfg *MixerConfig) error {
		cfg.Channels = append(cfg.Channels, AudioChannel{
			ID:            c.PID,
			Name:          c.Name,
			InputDeviceID: created.VirtualID,
			Gain:          1,
		})
		return nil
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleStopCapturingApp(c StopCapturingApp) {
	vid := tap.ProcessInfo{PID: c.PID}.VirtualID()
	delete(e.inputs, vid)
	if e.taps != nil {
		e.taps.StopTap(c.PID)
	}
	err := e.withConfig(func(cfg *MixerConfig) error {
		for i, ch := range cfg.Channels {
			if ch.InputDeviceID == vid {
				cfg.Channels = append(cfg.Channels[:i], cfg.Channels[i+1:]...)
				break
			}
		}
		return nil
	})
	reply(c.Reply, resultFor(err))
}

func (e *Engine) handleStartRecording(c StartRecording) {
	if e.recordingCtl == nil {
		reply(c.Reply, resultFor(errs.New(errs.Internal, "recorder not wired")))
		return
	}
	sessionID, err := e.recordingCtl.Start(c.Config)
	if err != nil {
		reply(c.Reply, resultFor(err))
		return
	}
	reply(c.Reply, Result{OK: true, Value: sessionID})
}

func (e *Engine) handleStopRecording(c StopRecording) {
	if e.recordingCtl == nil {
		reply(c.Reply, resultFor(errs.New(errs.Internal, "recorder not wired")))
		return
	}
	summary, err := e.recordingCtl.Stop()
	if err != nil {
		reply(c.Reply, resultFor(err))
		return
	}
	reply(c.Reply, Result{OK: true, Value: summary})
}

func resultFor(err error) Result {
	if err != nil {
		return Result{OK: false, Err: err}
	}
	return Result{OK: true}
}
