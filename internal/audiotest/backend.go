// SPDX-License-Identifier: MIT
package audiotest

import (
	"fmt"
	"sync"
	"sync/atomic"

	"sinplayer/internal/audio"
)

// Device describes one fake host device.
type Device struct {
	Description string
	Output      bool
}

// DefaultDevices is the device list a new Backend starts with.
var DefaultDevices = []Device{
	{Description: "Built-in Microphone", Output: false},
	{Description: "Built-in Output", Output: true},
	{Description: "Lab Amplifier", Output: true},
}

// Backend is an audio.Backend whose callback runs only when Render is
// called. Its clock advances by the frames rendered while playing.
type Backend struct {
	mu sync.Mutex

	Devices    []Device
	Channels   int
	SampleRate float64

	device   int
	playing  atomic.Bool
	render   audio.RenderFunc
	gate     *audio.StartGate
	now      atomic.Int64
	out      [][]float32
	PlayErr  error
	Plays    int
	Stops    int
	LastPlay audio.Timestamp // Start time of the last PlayAt
}

// NewBackend returns a stopped backend with channels outputs.
func NewBackend(channels int, sampleRate float64) *Backend {
	return &Backend{
		Devices:    append([]Device(nil), DefaultDevices...),
		Channels:   channels,
		SampleRate: sampleRate,
		device:     1,
		gate:       audio.NewStartGate(channels),
	}
}

func (b *Backend) AttachCallback(fn audio.RenderFunc) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.render = fn
}

func (b *Backend) Play() error {
	if b.PlayErr != nil {
		return b.PlayErr
	}
	b.Plays++
	b.playing.Store(true)
	return nil
}

func (b *Backend) PlayAt(t audio.Timestamp) error {
	b.LastPlay = t
	b.gate.Arm(t)
	return b.Play()
}

func (b *Backend) Stop() error {
	b.Stops++
	b.gate.Disarm()
	b.playing.Store(false)
	return nil
}

func (b *Backend) Playing() bool { return b.playing.Load() }

func (b *Backend) DeviceCount() int { return len(b.Devices) }

func (b *Backend) DeviceDescription(index int) string {
	if index < 0 || index >= len(b.Devices) {
		return ""
	}
	return b.Devices[index].Description
}

func (b *Backend) IsOutputDevice(index int) bool {
	return index >= 0 && index < len(b.Devices) && b.Devices[index].Output
}

func (b *Backend) SetDevice(index int) error {
	if !b.IsOutputDevice(index) {
		return fmt.Errorf("%w: index %d", audio.ErrInvalidAudioDevice, index)
	}
	b.device = index
	return nil
}

// Device returns the selected device index.
func (b *Backend) Device() int { return b.device }

func (b *Backend) SampleRateHz() float64 { return b.SampleRate }

func (b *Backend) CurrentSystemTime() audio.Timestamp {
	return audio.Timestamp(b.now.Load())
}

func (b *Backend) NanosecondsSince(t audio.Timestamp) uint64 {
	now := b.CurrentSystemTime()
	if now <= t {
		return 0
	}
	return uint64(now - t)
}

// SetTime moves the device clock.
func (b *Backend) SetTime(t audio.Timestamp) { b.now.Store(int64(t)) }

// Render invokes the callback once with a zeroed buffer of frames frames,
// as the device would, and returns the buffer. The clock advances by the
// buffer's duration. Nothing is rendered while stopped.
func (b *Backend) Render(frames int) [][]float32 {
	b.mu.Lock()
	fn := b.render
	b.mu.Unlock()

	if len(b.out) != b.Channels || (b.Channels > 0 && cap(b.out[0]) < frames) {
		b.out = make([][]float32, b.Channels)
		for c := range b.out {
			b.out[c] = make([]float32, frames)
		}
	}
	for c := range b.out {
		b.out[c] = b.out[c][:frames]
		clear(b.out[c])
	}
	if !b.playing.Load() {
		return b.out
	}

	t := b.CurrentSystemTime()
	b.gate.Render(b.out, t, b.SampleRate, fn)
	b.now.Add(audio.FramesToNanoseconds(frames, b.SampleRate))
	return b.out
}

// RenderCopy is Render with the result copied out of the reused buffer.
func (b *Backend) RenderCopy(frames int) [][]float32 {
	out := b.Render(frames)
	cp := make([][]float32, len(out))
	for c := range out {
		cp[c] = append([]float32(nil), out[c]...)
	}
	return cp
}
