// SPDX-License-Identifier: MIT
/*
Package audio provides the device backends that drive the playback engine:
- PortAudio output streams with hardware DAC timestamps
- An Oto pull-model backend for hosts without PortAudio
- An offline renderer that writes the device output to a WAV file

Every backend invokes a single RenderFunc from its own real-time context
with a zeroed, non-interleaved buffer and the device time at which the
buffer's first frame reaches the output. Backends also implement PlayAt,
which holds a stream silent until a future device time and starts the
render at the exact frame offset within the buffer that contains it.

Thread Safety:
- Control methods (Play, Stop, SetDevice) are called from one goroutine
- The RenderFunc runs on the backend's callback thread and must not block
- Start-time scheduling is published through atomics
*/
package audio

import (
	"fmt"
	"time"
)

// Timestamp is a device clock reading in nanoseconds. Timestamps from the
// same backend are comparable; PortAudio streams on one host share a base.
type Timestamp int64

// Add returns t advanced by seconds.
func (t Timestamp) Add(seconds float64) Timestamp {
	return t + Timestamp(seconds*float64(time.Second))
}

// Seconds returns t as seconds on the device clock.
func (t Timestamp) Seconds() float64 {
	return float64(t) / float64(time.Second)
}

// FramesToNanoseconds converts a frame count at sampleRate to a duration in ns.
func FramesToNanoseconds(frames int, sampleRate float64) int64 {
	if sampleRate <= 0 {
		return 0
	}
	return int64(float64(frames) * float64(time.Second) / sampleRate)
}

// RenderFunc fills out, one slice per output channel, with audio that
// starts playing at device time t. out arrives zeroed.
type RenderFunc func(out [][]float32, t Timestamp)

// Backend is the device contract the players are written against.
type Backend interface {
	// AttachCallback installs the render function. Call before Play.
	AttachCallback(fn RenderFunc)

	Play() error
	// PlayAt starts the stream if needed and keeps the output silent until t.
	PlayAt(t Timestamp) error
	Stop() error
	Playing() bool

	DeviceCount() int
	DeviceDescription(index int) string
	IsOutputDevice(index int) bool
	SetDevice(index int) error

	SampleRateHz() float64
	CurrentSystemTime() Timestamp
	NanosecondsSince(t Timestamp) uint64
}

// FindOutputDevice returns the index of the output device described by name.
func FindOutputDevice(b Backend, name string) (int, error) {
	for i := range b.DeviceCount() {
		if b.IsOutputDevice(i) && b.DeviceDescription(i) == name {
			return i, nil
		}
	}
	return -1, fmt.Errorf("%w: %q", ErrInvalidAudioDevice, name)
}

// OutputDeviceDescriptions lists the descriptions of every output device.
func OutputDeviceDescriptions(b Backend) []string {
	var names []string
	for i := range b.DeviceCount() {
		if b.IsOutputDevice(i) {
			names = append(names, b.DeviceDescription(i))
		}
	}
	return names
}

func nanosecondsSince(now, t Timestamp) uint64 {
	if now <= t {
		return 0
	}
	return uint64(now - t)
}
