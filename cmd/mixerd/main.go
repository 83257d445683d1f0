// Command mixerd runs the virtual mixer as a headless daemon: it opens the
// configured input/output devices, runs the mix engine on its own pinned
// thread, and optionally starts a recording, until interrupted.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/beats-galore/sending-beats-sub000/internal/device"
	"github.com/beats-galore/sending-beats-sub000/internal/devicehealth"
	"github.com/beats-galore/sending-beats-sub000/internal/mixer"
	"github.com/beats-galore/sending-beats-sub000/internal/recorder"
	"github.com/beats-galore/sending-beats-sub000/internal/tap"
)

func main() {
	var (
		inputID    = flag.String("input", "", "Input device id to bind at startup (empty: none)")
		outputID   = flag.String("output", "", "Output device id to bind at startup (empty: none)")
		recordFmt  = flag.String("record-format", "", "Start recording immediately in this format (wav|mp3, empty: don't record)")
		recordDir  = flag.String("record-dir", getenvDefault("MIXERD_RECORD_DIR", "./recordings"), "Recording output directory")
		dbPath     = flag.String("db", getenvDefault("MIXERD_DB_PATH", "./data/mixerd.db"), "Recording history sqlite path")
		logLevel   = flag.String("log-level", "info", "Log level (debug|info|warn|error)")
	)
	flag.Parse()

	configureLogging(*logLevel)

	health := devicehealth.NewTracker()
	binding, err := device.NewBinding(health)
	if err != nil {
		fatalf("init audio binding: %v", err)
	}
	go binding.Run()
	defer binding.Close()

	engine := mixer.NewEngine(binding)

	loopback := tap.NewLoopbackSource(binding)
	taps := tap.NewManager(loopback, processAlive)
	engine.SetTapManager(taps)

	history, err := recorder.OpenHistory(*dbPath)
	if err != nil {
		fatalf("open recording history: %v", err)
	}
	defer history.Close()

	rec := recorder.New(engine, history)
	engine.SetRecordingController(rec)

	go engine.Run()
	defer engine.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var group errgroup.Group
	group.Go(func() error { return taps.RunCleanup(ctx) })

	if *inputID != "" {
		reply := make(chan mixer.Result, 1)
		engine.Submit(mixer.AddInputStream{DeviceID: *inputID, Reply: reply})
		if r := <-reply; !r.OK {
			fatalf("add input %q: %v", *inputID, r.Err)
		}
		reply2 := make(chan mixer.Result, 1)
		engine.Submit(mixer.AddChannel{Channel: mixer.AudioChannel{
			ID:            1,
			Name:          *inputID,
			InputDeviceID: *inputID,
			Gain:          1,
		}, Reply: reply2})
		if r := <-reply2; !r.OK {
			fatalf("add channel for %q: %v", *inputID, r.Err)
		}
	}

	if *outputID != "" {
		reply := make(chan mixer.Result, 1)
		engine.Submit(mixer.AddOutputDevice{Output: mixer.OutputDevice{DeviceID: *outputID, Gain: 1}, Reply: reply})
		if r := <-reply; !r.OK {
			fatalf("add output %q: %v", *outputID, r.Err)
		}
	}

	if *recordFmt != "" {
		reply := make(chan mixer.Result, 1)
		engine.Submit(mixer.StartRecording{Config: mixer.RecordConfig{
			Format:    *recordFmt,
			OutputDir: *recordDir,
			Channels:  2,
		}, Reply: reply})
		if r := <-reply; !r.OK {
			fatalf("start recording: %v", r.Err)
		} else {
			log.Info("recording started", "session", r.Value)
		}
	}

	log.Info("mixerd running", "mix_rate", engine.MixRate())
	waitForSignal()

	stopReply := make(chan mixer.Result, 1)
	engine.Submit(mixer.StopRecording{Reply: stopReply})
	<-stopReply

	cancel()
	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("tap cleanup loop exited with error", "err", err)
	}

	log.Info("mixerd shutting down")
}

func waitForSignal() {
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig
}

// processAlive answers tap.Manager's cleanup sweep via the standard Unix
// idiom of sending signal 0: it reports delivery success without affecting
// the target process.
func processAlive(pid uint32) bool {
	proc, err := os.FindProcess(int(pid))
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}

func configureLogging(level string) {
	switch level {
	case "debug":
		log.SetLevel(log.DebugLevel)
	case "warn":
		log.SetLevel(log.WarnLevel)
	case "error":
		log.SetLevel(log.ErrorLevel)
	default:
		log.SetLevel(log.InfoLevel)
	}
}

func getenvDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func fatalf(format string, args ...any) {
	log.Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}
