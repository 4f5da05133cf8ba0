// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// StartGate holds a stream silent until an armed device time, then starts
// rendering at the frame within the buffer where that time falls.
// Arm and Disarm are called from the control goroutine; Render runs on the
// callback thread and owns view.
type StartGate struct {
	pending atomic.Bool
	at      atomic.Int64
	view    [][]float32
}

// Pending reports whether an armed start has not been rendered yet.
func (g *StartGate) Pending() bool {
	return g.pending.Load()
}

// NewStartGate returns a gate for buffers of up to channels channels.
func NewStartGate(channels int) *StartGate {
	return &StartGate{view: make([][]float32, channels)}
}

func (g *StartGate) Arm(t Timestamp) {
	g.at.Store(int64(t))
	g.pending.Store(true)
}

func (g *StartGate) Disarm() {
	g.pending.Store(false)
}

// Render passes out to fn unless a start is pending. A pending start that
// falls after this buffer leaves it silent; one that falls inside renders
// into the tail starting at the matching frame.
func (g *StartGate) Render(out [][]float32, t Timestamp, sampleRate float64, fn RenderFunc) {
	if fn == nil || len(out) == 0 {
		return
	}
	if !g.pending.Load() {
		fn(out, t)
		return
	}

	frames := len(out[0])
	delta := float64(g.at.Load() - int64(t))
	offset := int(math.Round(delta * sampleRate / 1e9))
	if offset >= frames {
		return
	}
	g.pending.Store(false)
	if offset <= 0 || len(out) > len(g.view) {
		fn(out, t)
		return
	}

	view := g.view[:len(out)]
	for c := range out {
		view[c] = out[c][offset:]
	}
	fn(view, t+Timestamp(FramesToNanoseconds(offset, sampleRate)))
	for c := range view {
		view[c] = nil
	}
}

// silence zeroes every channel of out. PortAudio hands over its buffers
// with whatever the previous callback left in them.
func silence(out [][]float32) {
	for _, ch := range out {
		clear(ch)
	}
}
