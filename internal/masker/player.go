// SPDX-License-Identifier: MIT
/*
Package masker plays a looping masker through a device backend under a
sample-accurate raised-cosine fade envelope.

The Player is split across two goroutines. The control side (every
exported method) may block and allocate; the render side runs inside the
device callback and never does. They share only sharedState: atomics and
one-shot messages. Cursors and the envelope live in renderState, which
only the callback touches. Control-only bookkeeping lives on Player behind
mu.

The masker is silent until the first fade-in: the envelope gain is zero
while idle, unity at steady level and follows the ramp table in between.

A fade-in reports its completion through Observer.FadeInComplete with the
device time of the buffer that contains the completing sample and the
sample's offset within it, so another player can be started relative to
that exact sample.
*/
package masker

import (
	"errors"
	"fmt"
	"maps"
	"math"
	"runtime"
	"sync"
	"time"

	"sinplayer/internal/audio"
	"sinplayer/internal/decode"
	"sinplayer/internal/log"
	"sinplayer/internal/timer"
)

// Observer receives fade completions on the timer goroutine.
type Observer interface {
	FadeInComplete(AudioSampleTimeWithOffset)
	FadeOutComplete()
}

const (
	DefaultPollInterval = 33 * time.Millisecond

	// stopTimeout bounds the Stop rendezvous when the device has stalled.
	stopTimeout = 2 * time.Second
)

// Player is the masker engine.
type Player struct {
	shared sharedState
	rs     renderState

	mu       sync.Mutex
	backend  audio.Backend
	reader   decode.Reader
	timer    timer.Timer
	observer Observer
	log      log.Logger

	source        *decode.Audio
	channelDelays map[int]float64
	seekSeconds   float64
	rampSeconds   float64
	steadySeconds float64
	pollInterval  time.Duration

	fadingIn        bool
	fadingOut       bool
	awaitingAutoEnd bool // Steady level ends on its own
	polling         bool
}

// New attaches a Player to backend and t. The ramp defaults to zero.
func New(backend audio.Backend, reader decode.Reader, t timer.Timer) *Player {
	p := &Player{
		backend:       backend,
		reader:        reader,
		timer:         t,
		log:           log.Named("masker"),
		channelDelays: make(map[int]float64),
		pollInterval:  DefaultPollInterval,
	}
	p.rs.sinceFadeIn = -1
	p.shared.level.Store(1)
	p.shared.shape.Store(newShape(0, 0))
	backend.AttachCallback(p.render)
	t.Attach(p)
	return p
}

// Attach sets the observer notified of fade completions.
func (p *Player) Attach(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = o
}

// SetPollInterval sets how often completion flags are checked.
func (p *Player) SetPollInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollInterval = d
}

// live reports whether the callback is, or is about to be, rendering.
func (p *Player) live() bool {
	return p.shared.enabled.Load() || p.shared.enable.posted()
}

func (p *Player) mustBeDisabled(op string) {
	if p.live() {
		panic(fmt.Errorf("%w: %s", ErrConfigureWhileEnabled, op))
	}
}

// LoadFile decodes path and makes it the masker. A failed load leaves no
// masker loaded, so the callback renders silence.
func (p *Player) LoadFile(path string) error {
	p.mustBeDisabled("LoadFile")
	p.mu.Lock()
	defer p.mu.Unlock()

	a, err := p.reader.Read(path)
	if err != nil {
		p.source = nil
		p.seekSeconds = 0
		p.publishPlaybackLocked()
		return fmt.Errorf("%w: %w", ErrInvalidAudioFile, err)
	}
	if rate := p.backend.SampleRateHz(); a.SampleRate > 0 && float64(a.SampleRate) != rate {
		p.log.Warnf("%s is %d Hz, device runs at %.0f Hz", path, a.SampleRate, rate)
	}

	p.source = a
	p.seekSeconds = 0
	p.publishPlaybackLocked()
	p.log.Debugf("loaded %s: %d channels, %.3fs", path, len(a.Channels), a.DurationSeconds())
	return nil
}

// SeekSeconds positions every channel at x seconds into the masker,
// wrapping around its length.
func (p *Player) SeekSeconds(x float64) {
	p.mustBeDisabled("SeekSeconds")
	p.mu.Lock()
	defer p.mu.Unlock()

	p.seekSeconds = x
	p.publishPlaybackLocked()
}

// SetChannelDelaySeconds delays the start of channel by seconds.
func (p *Player) SetChannelDelaySeconds(channel int, seconds float64) {
	p.mustBeDisabled("SetChannelDelaySeconds")
	p.mu.Lock()
	defer p.mu.Unlock()

	p.channelDelays[channel] = seconds
	p.publishPlaybackLocked()
}

// ClearChannelDelays removes every channel delay.
func (p *Player) ClearChannelDelays() {
	p.mustBeDisabled("ClearChannelDelays")
	p.mu.Lock()
	defer p.mu.Unlock()

	clear(p.channelDelays)
	p.publishPlaybackLocked()
}

// ChannelDelays returns a copy of the configured delays.
func (p *Player) ChannelDelays() map[int]float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return maps.Clone(p.channelDelays)
}

// publishPlaybackLocked hands the callback fresh cursors for the current
// source, seek position and delays.
func (p *Player) publishPlaybackLocked() {
	if p.source == nil {
		p.shared.playback.Store(nil)
		return
	}

	rate := p.backend.SampleRateHz()
	pb := &playback{
		channels: p.source.Channels,
		frames:   p.source.Frames(),
		heads:    make([]int, len(p.source.Channels)),
		waits:    make([]int, len(p.source.Channels)),
	}
	if pb.frames > 0 {
		start := toSamples(p.seekSeconds, rate) % pb.frames
		if start < 0 {
			start += pb.frames
		}
		for c := range pb.heads {
			pb.heads[c] = start
		}
	}
	for c := range pb.waits {
		pb.waits[c] = max(toSamples(p.channelDelays[c], rate), 0)
	}
	p.shared.playback.Store(pb)
}

// SetLevel sets the digital amplification in dB.
func (p *Player) SetLevel(dB float64) {
	p.shared.level.SetDB(dB)
}

// UseAllChannels plays every masker channel.
func (p *Player) UseAllChannels() {
	p.setSelection(allChannels, "UseAllChannels")
}

// UseFirstChannelOnly mutes every channel but the first.
func (p *Player) UseFirstChannelOnly() {
	p.setSelection(firstChannelOnly, "UseFirstChannelOnly")
}

// UseSecondChannelOnly mutes every channel but the second.
func (p *Player) UseSecondChannelOnly() {
	p.setSelection(secondChannelOnly, "UseSecondChannelOnly")
}

func (p *Player) setSelection(sel channelSelection, op string) {
	p.mustBeDisabled(op)
	p.shared.selection.Store(int32(sel))
}

// SetRampDurationSeconds sets the fade-in and fade-out duration.
func (p *Player) SetRampDurationSeconds(seconds float64) {
	p.mustBeDisabled("SetRampDurationSeconds")
	p.mu.Lock()
	defer p.mu.Unlock()

	p.rampSeconds = max(seconds, 0)
	p.publishShapeLocked()
}

// SetSteadyLevelDurationSeconds makes the masker fade out on its own after
// holding at level for seconds. Zero holds until FadeOut.
func (p *Player) SetSteadyLevelDurationSeconds(seconds float64) {
	p.mustBeDisabled("SetSteadyLevelDurationSeconds")
	p.mu.Lock()
	defer p.mu.Unlock()

	p.steadySeconds = max(seconds, 0)
	p.publishShapeLocked()
}

func (p *Player) publishShapeLocked() {
	rate := p.backend.SampleRateHz()
	p.shared.shape.Store(newShape(toSamples(p.rampSeconds, rate), toSamples(p.steadySeconds, rate)))
}

// PrepareVibrotactileStimulus renders the burst train for the current
// sample rate. It is written only while enabled with EnableVibrotactileStimulus.
func (p *Player) PrepareVibrotactileStimulus(v Vibrotactile) error {
	p.mustBeDisabled("PrepareVibrotactileStimulus")
	buf, err := v.render(p.backend.SampleRateHz())
	if err != nil {
		return err
	}
	p.shared.vibrotactile.Store(buf)
	return nil
}

func (p *Player) EnableVibrotactileStimulus() {
	p.mustBeDisabled("EnableVibrotactileStimulus")
	p.shared.vibroEnabled.Store(true)
}

func (p *Player) DisableVibrotactileStimulus() {
	p.mustBeDisabled("DisableVibrotactileStimulus")
	p.shared.vibroEnabled.Store(false)
}

// FadeIn starts the device if needed and ramps the masker up to level.
// It does nothing while a fade is in progress, which includes the whole
// run of a masker with a steady-level duration until it has faded out.
func (p *Player) FadeIn() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fadingLocked() {
		return nil
	}
	p.fadingIn = true
	p.awaitingAutoEnd = p.shared.shape.Load().steadySamples > 0
	p.shared.fadeIn.post()

	if err := p.playLocked(); err != nil {
		p.fadingIn = false
		p.awaitingAutoEnd = false
		p.shared.fadeIn.consume()
		return err
	}
	p.schedulePollLocked()
	return nil
}

// FadeOut ramps the masker down to silence; the device stops once the
// fade completes. It does nothing while a fade is in progress.
func (p *Player) FadeOut() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.fadingIn || p.fadingOut {
		return
	}
	p.fadingOut = true
	p.shared.fadeOut.post()
	if !p.live() {
		// Nothing is rendering: run the fade-out from full gain so it
		// still completes and stops the device.
		if err := p.playLocked(); err != nil {
			p.log.Errorf("%v", err)
			p.fadingOut = false
			p.shared.fadeOut.consume()
			return
		}
	}
	p.schedulePollLocked()
}

// Fading reports whether a fade request is outstanding or a steady-level
// run has yet to fade out on its own.
func (p *Player) Fading() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.fadingLocked()
}

func (p *Player) fadingLocked() bool {
	return p.fadingIn || p.fadingOut || p.awaitingAutoEnd
}

// Play enables the callback and starts the device.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.playLocked()
}

func (p *Player) playLocked() error {
	if !p.live() {
		p.shared.enable.post()
	}
	if p.backend.Playing() {
		return nil
	}
	if err := p.backend.Play(); err != nil {
		p.shared.enable.consume()
		return fmt.Errorf("failed to start masker: %w", err)
	}
	return nil
}

// Stop disables the callback, waits until it has acknowledged, and stops
// the device. No buffer is written after Stop returns.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	s := &p.shared
	if p.live() && p.backend.Playing() {
		s.disable.post()
		deadline := time.Now().Add(stopTimeout)
		for !s.disable.completed() {
			if time.Now().After(deadline) {
				p.log.Errorf("device callback did not acknowledge stop within %s", stopTimeout)
				break
			}
			runtime.Gosched()
		}
	}

	// The callback is quiet now; drop anything it never picked up.
	s.disable.consume()
	s.enable.consume()
	s.enabled.Store(false)
	s.fadeIn.consume()
	s.fadeOut.consume()
	// Completions the poll never collected belong to this run.
	s.enable.completed()
	s.disable.completed()
	s.fadeIn.completed()
	s.fadeOut.completed()
	p.fadingIn, p.fadingOut, p.awaitingAutoEnd = false, false, false

	if err := p.backend.Stop(); err != nil {
		return fmt.Errorf("failed to stop masker: %w", err)
	}
	return nil
}

// Playing reports whether the device is running.
func (p *Player) Playing() bool {
	return p.backend.Playing()
}

// SetAudioDevice selects the output device described by name.
func (p *Player) SetAudioDevice(name string) error {
	p.mustBeDisabled("SetAudioDevice")
	p.mu.Lock()
	defer p.mu.Unlock()

	index, err := audio.FindOutputDevice(p.backend, name)
	if err != nil {
		return err
	}
	if err := p.backend.SetDevice(index); err != nil {
		if errors.Is(err, audio.ErrInvalidAudioDevice) {
			return err
		}
		return fmt.Errorf("failed to select %q: %w", name, err)
	}
	p.publishShapeLocked()
	p.publishPlaybackLocked()
	return nil
}

// OutputAudioDeviceDescriptions lists the output devices by name.
func (p *Player) OutputAudioDeviceDescriptions() []string {
	return audio.OutputDeviceDescriptions(p.backend)
}

// DurationSeconds returns the loaded masker's length.
func (p *Player) DurationSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source.DurationSeconds()
}

// RampDuration returns the fade duration in seconds.
func (p *Player) RampDuration() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rampSeconds
}

// FadeTimeSeconds is RampDuration.
func (p *Player) FadeTimeSeconds() float64 {
	return p.RampDuration()
}

// SampleRateHz returns the device sample rate.
func (p *Player) SampleRateHz() float64 {
	return p.backend.SampleRateHz()
}

// Channels returns the loaded masker's channel count.
func (p *Player) Channels() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.source == nil {
		return 0
	}
	return len(p.source.Channels)
}

// DigitalLevel returns the masker's level in dBov before amplification,
// or -Inf when nothing is loaded.
func (p *Player) DigitalLevel() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source.DigitalLevel()
}

// CurrentSystemTime reads the device clock.
func (p *Player) CurrentSystemTime() audio.Timestamp {
	return p.backend.CurrentSystemTime()
}

// NanosecondsSince returns device time elapsed since t.
func (p *Player) NanosecondsSince(t audio.Timestamp) uint64 {
	return p.backend.NanosecondsSince(t)
}

// toSamples converts seconds to the nearest whole sample count.
func toSamples(seconds, sampleRate float64) int {
	return int(math.Round(seconds * sampleRate))
}
