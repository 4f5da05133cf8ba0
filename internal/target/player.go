// SPDX-License-Identifier: MIT

// Package target plays a single stimulus once, optionally starting at an
// exact future device time.
package target

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sinplayer/internal/audio"
	"sinplayer/internal/decode"
	"sinplayer/internal/log"
	"sinplayer/internal/timer"
)

// Observer is told when the target has played to its end.
type Observer interface {
	PlaybackComplete()
}

const DefaultPollInterval = 33 * time.Millisecond

// cursor walks the loaded source once. A fresh cursor is published on every
// start; from then on it belongs to the callback.
type cursor struct {
	channels [][]float32
	frames   int
	head     int
	done     bool
}

// Player is the target engine. The callback reads only the atomics below
// and the cursor it was handed.
type Player struct {
	cursor    atomic.Pointer[cursor]
	level     audio.Level
	firstOnly atomic.Bool
	complete  atomic.Bool // Set by the callback when the source runs out

	mu           sync.Mutex
	backend      audio.Backend
	reader       decode.Reader
	timer        timer.Timer
	observer     Observer
	source       *decode.Audio
	pollInterval time.Duration
	playing      bool
	polling      bool
	log          log.Logger
}

func New(backend audio.Backend, reader decode.Reader, t timer.Timer) *Player {
	p := &Player{
		backend:      backend,
		reader:       reader,
		timer:        t,
		pollInterval: DefaultPollInterval,
		log:          log.Named("target"),
	}
	p.level.Store(1)
	backend.AttachCallback(p.render)
	t.Attach(p)
	return p
}

// Attach sets the observer notified of playback completion.
func (p *Player) Attach(o Observer) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observer = o
}

func (p *Player) SetPollInterval(d time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pollInterval = d
}

func (p *Player) mustBeStopped(op string) {
	if p.backend.Playing() {
		panic(fmt.Errorf("%w: %s", ErrConfigureWhilePlaying, op))
	}
}

// LoadFile decodes path and makes it the target.
func (p *Player) LoadFile(path string) error {
	p.mustBeStopped("LoadFile")
	p.mu.Lock()
	defer p.mu.Unlock()

	a, err := p.reader.Read(path)
	if err != nil {
		p.source = nil
		p.cursor.Store(nil)
		return fmt.Errorf("%w: %w", ErrInvalidAudioFile, err)
	}
	if rate := p.backend.SampleRateHz(); a.SampleRate > 0 && float64(a.SampleRate) != rate {
		p.log.Warnf("%s is %d Hz, device runs at %.0f Hz", path, a.SampleRate, rate)
	}
	p.source = a
	p.cursor.Store(nil)
	p.log.Debugf("loaded %s: %d channels, %.3fs", path, len(a.Channels), a.DurationSeconds())
	return nil
}

// SetLevel sets the digital amplification in dB.
func (p *Player) SetLevel(dB float64) {
	p.level.SetDB(dB)
}

// UseFirstChannelOnly plays the target on the first output channel only.
func (p *Player) UseFirstChannelOnly() { p.firstOnly.Store(true) }

// UseAllChannels plays the target on every output channel.
func (p *Player) UseAllChannels() { p.firstOnly.Store(false) }

// Play starts the target from its beginning now.
func (p *Player) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(func() error { return p.backend.Play() })
}

// PlayAt starts the target from its beginning at device time t plus
// extraDelaySeconds. The first sample lands on that time exactly.
func (p *Player) PlayAt(t audio.Timestamp, extraDelaySeconds float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	at := t.Add(extraDelaySeconds)
	return p.startLocked(func() error { return p.backend.PlayAt(at) })
}

func (p *Player) startLocked(start func() error) error {
	if p.backend.Playing() {
		return nil
	}
	p.complete.Store(false)
	c := &cursor{}
	if p.source != nil {
		c.channels, c.frames = p.source.Channels, p.source.Frames()
	}
	p.cursor.Store(c)
	if err := start(); err != nil {
		return fmt.Errorf("failed to start target: %w", err)
	}
	p.playing = true
	p.schedulePollLocked()
	return nil
}

// Stop halts the device. The target restarts from its beginning on the
// next Play.
func (p *Player) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *Player) stopLocked() error {
	p.playing = false
	if err := p.backend.Stop(); err != nil {
		return fmt.Errorf("failed to stop target: %w", err)
	}
	return nil
}

// Playing reports whether the device is running.
func (p *Player) Playing() bool {
	return p.backend.Playing()
}

func (p *Player) schedulePollLocked() {
	if p.polling {
		return
	}
	p.polling = true
	p.timer.ScheduleCallbackAfterSeconds(p.pollInterval.Seconds())
}

// Callback is the poll tick. Once the callback has run out of source the
// device is stopped and the observer told.
func (p *Player) Callback() {
	p.mu.Lock()
	p.polling = false
	done := p.complete.CompareAndSwap(true, false)
	if done {
		if err := p.stopLocked(); err != nil {
			p.log.Errorf("%v", err)
		}
	} else if p.playing {
		p.schedulePollLocked()
	}
	observer := p.observer
	p.mu.Unlock()

	if done && observer != nil {
		observer.PlaybackComplete()
	}
}

// SetAudioDevice selects the output device described by name.
func (p *Player) SetAudioDevice(name string) error {
	p.mustBeStopped("SetAudioDevice")
	index, err := audio.FindOutputDevice(p.backend, name)
	if err != nil {
		return err
	}
	return p.backend.SetDevice(index)
}

// DurationSeconds returns the loaded target's length.
func (p *Player) DurationSeconds() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source.DurationSeconds()
}

// DigitalLevel returns the target's level in dBov before amplification,
// or -Inf when nothing is loaded.
func (p *Player) DigitalLevel() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.source.DigitalLevel()
}

// render is the audio callback.
// Performance Critical:
// - Runs on the device callback thread
// - No allocations, locks or panics
func (p *Player) render(out [][]float32, _ audio.Timestamp) {
	c := p.cursor.Load()
	if c == nil || c.done {
		return
	}
	if len(out) == 0 || len(c.channels) == 0 || c.head >= c.frames {
		c.done = true
		p.complete.Store(true)
		return
	}

	n := min(len(out[0]), c.frames-c.head)
	level := float32(p.level.Load())
	outputs := len(out)
	if p.firstOnly.Load() {
		outputs = 1
	}
	for o := range outputs {
		src := c.channels[min(o, len(c.channels)-1)][c.head : c.head+n]
		dst := out[o]
		for i, s := range src {
			dst[i] = s * level
		}
	}
	c.head += n
	if c.head >= c.frames {
		c.done = true
		p.complete.Store(true)
	}
}
