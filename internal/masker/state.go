// SPDX-License-Identifier: MIT
package masker

import (
	"sync/atomic"

	"sinplayer/internal/audio"
)

type channelSelection int32

const (
	allChannels channelSelection = iota
	firstChannelOnly
	secondChannelOnly
)

// playback is a loaded source plus the cursors that walk it. The control
// goroutine builds a fresh playback on every load, seek or delay change and
// publishes it; from then on heads and waits belong to the callback.
type playback struct {
	channels [][]float32
	frames   int
	heads    []int // Next source frame per channel
	waits    []int // Remaining delay samples per channel
}

// shape is the fade envelope configuration, rebuilt by the control
// goroutine while disabled.
type shape struct {
	rampSamples   int
	steadySamples int       // 0 holds at level until a fade-out is requested
	ramp          []float64 // Raised-cosine window of 2*rampSamples+1 points
}

// sharedState is every field both goroutines touch. Nothing else crosses
// between them.
type sharedState struct {
	// Written by control, read by the callback.
	playback     atomic.Pointer[playback]
	shape        atomic.Pointer[shape]
	level        audio.Level
	selection    atomic.Int32 // channelSelection
	vibrotactile atomic.Pointer[vibrotactileBuffer]
	vibroEnabled atomic.Bool

	// Written by the callback, read by control.
	enabled      atomic.Bool
	fadeInTime   atomic.Int64 // audio.Timestamp of the buffer holding fade-in completion
	fadeInOffset atomic.Int64 // Frame offset of the completion within that buffer

	fadeIn, fadeOut, enable, disable message
}

func (s *sharedState) fadeInCompletion() AudioSampleTimeWithOffset {
	return AudioSampleTimeWithOffset{
		SystemTime:   audio.Timestamp(s.fadeInTime.Load()),
		SampleOffset: int(s.fadeInOffset.Load()),
	}
}

// AudioSampleTimeWithOffset locates a sample: the device time of the buffer
// that contains it and the sample's frame offset within that buffer.
type AudioSampleTimeWithOffset struct {
	SystemTime   audio.Timestamp
	SampleOffset int
}

// At returns the device time of the sample itself.
func (a AudioSampleTimeWithOffset) At(sampleRate float64) audio.Timestamp {
	return a.SystemTime + audio.Timestamp(audio.FramesToNanoseconds(a.SampleOffset, sampleRate))
}
