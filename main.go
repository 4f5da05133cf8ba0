// SPDX-License-Identifier: MIT
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"sinplayer/cmd"
	"sinplayer/internal/audio"
	"sinplayer/internal/build"
	"sinplayer/internal/config"
	"sinplayer/internal/decode"
	"sinplayer/internal/log"
	"sinplayer/internal/transport"
	"sinplayer/internal/trial"
	"sinplayer/internal/tui"
)

// main is the entry point for the playback application.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Configure runtime settings
//   - Parse command line arguments and configuration
//   - Initialize PortAudio
//   - Execute one-off commands if requested
//
// 2. Concurrent Phase (Hot Path):
//   - Open the output devices and load the masker and target
//   - Fade the masker in; the device callbacks start here
//   - Schedule the target off the fade-in completion
//   - Publish sync events as the trial progresses
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals
//   - Stop playback and close devices and transports
func main() {
	if err := run(); err != nil {
		log.Fatalf("%v", err)
	}
}

func run() error {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Initialize build information including version, commit hash, and build time
	build.Initialize()

	// Limit OS threads to optimize for real-time audio processing:
	// - One thread dedicated to the device callbacks (time-critical)
	// - One thread for control, transports and I/O
	runtime.GOMAXPROCS(2)

	// Parse command line arguments and build configuration
	cfg, err := cmd.ParseArgs()
	if err != nil {
		return err
	}
	if cfg == nil {
		return nil
	}

	level, ok := log.ParseLevel(cfg.LogLevel)
	if !ok {
		log.Warnf("unknown log level %q, using %s", cfg.LogLevel, log.GetLevel())
	} else {
		log.SetLevel(level)
	}
	log.Debugf("%s", build.GetBuildFlags())

	// Initialize PortAudio subsystem
	if err := audio.Initialize(); err != nil {
		return err
	}
	defer func() {
		if err := audio.Terminate(); err != nil {
			log.Errorf("%v", err)
		}
	}()

	// Setup signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Handle one-off commands that don't run a trial on the hardware.
	switch cfg.Command {
	case cmd.CommandList:
		return audio.ListDevices(os.Stdout)
	case cmd.CommandRender:
		return renderMasker(ctx, cfg)
	case cmd.CommandPick:
		sel, err := tui.Pick()
		if err != nil {
			return err
		}
		cfg.Audio.OutputDevice = sel.Device
		cfg.Audio.SampleRate = sel.SampleRate
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	return runTrial(ctx, cfg)
}

// runTrial presents one masker/target trial on the configured device.
func runTrial(ctx context.Context, cfg *config.Config) error {
	if cfg.Masker.File == "" {
		return errNoMasker
	}
	reader := decode.NewFileReader(decode.DefaultRegistry())

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	maskerDevice, err := newDevice(cfg.Audio)
	if err != nil {
		return err
	}
	defer closeLogged("masker device", maskerDevice)

	m, err := newMasker(maskerDevice, reader, cfg)
	if err != nil {
		return err
	}

	// The target gets its own stream so it can start on an exact device
	// frame without disturbing the masker callback.
	var t trial.Target
	if cfg.HasTarget() {
		targetDevice, err := newDevice(cfg.Audio)
		if err != nil {
			return err
		}
		defer closeLogged("target device", targetDevice)

		tp, err := newTarget(targetDevice, reader, cfg)
		if err != nil {
			return err
		}
		t = tp
	}

	pub, err := newPublisher(cfg, m.CurrentSystemTime)
	if err != nil {
		return err
	}
	defer closeLogged("transports", pub)

	runner := trial.New(m, t, pub, trial.Options{
		FringeSeconds:   cfg.Target.FringeSeconds,
		SelfTerminating: cfg.Masker.SteadyLevelSeconds > 0,
	})

	// CRITICAL: Start of real-time audio processing
	// FadeIn starts the masker stream, marking the start of the hot path.
	id, err := runner.Run(ctx)

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	if errors.Is(err, context.Canceled) {
		log.Warnf("trial %s interrupted", id)
		return nil
	}
	if err != nil {
		return err
	}
	if t != nil {
		fmt.Printf("trial %s: target started at %.6fs device time\n", id, runner.TargetStart().Seconds())
	} else {
		fmt.Printf("trial %s complete\n", id)
	}
	return nil
}

// renderMasker writes one masker fade envelope to a WAV file in real time.
// A steady-level duration of zero fades out as soon as the fade-in ends.
func renderMasker(ctx context.Context, cfg *config.Config) error {
	if cfg.Masker.File == "" {
		return errNoMasker
	}

	r, err := audio.NewFileRender(audio.FileRenderOptions{
		Path:            cfg.RenderOutput,
		SampleRate:      cfg.Audio.SampleRate,
		Channels:        cfg.Audio.OutputChannels,
		FramesPerBuffer: cfg.Audio.FramesPerBuffer,
		MaxFrames:       cfg.SampleCount(cfg.RenderLength.Seconds()),
		Realtime:        true,
	})
	if err != nil {
		return err
	}
	defer closeLogged("render", r)

	// The file is the only device.
	renderCfg := *cfg
	renderCfg.Audio.OutputDevice = ""
	m, err := newMasker(r, decode.NewFileReader(decode.DefaultRegistry()), &renderCfg)
	if err != nil {
		return err
	}

	var events transport.Transport
	if cfg.Transport.LogEvents {
		events = transport.NewLoggingTransport()
	}
	runner := trial.New(m, nil, events, trial.Options{
		SelfTerminating: cfg.Masker.SteadyLevelSeconds > 0,
	})

	// Rendering is paced at the device rate, so the frame limit is also a
	// wall-clock limit.
	ctx, cancel := context.WithTimeout(ctx, cfg.RenderLength+time.Second)
	defer cancel()

	if _, err := runner.Run(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warnf("render reached %s before the masker faded out", cfg.RenderLength)
			return nil
		}
		return err
	}
	return nil
}

type closer interface{ Close() error }

func closeLogged(what string, c closer) {
	if err := c.Close(); err != nil {
		log.Errorf("failed to close %s: %v", what, err)
	}
}
