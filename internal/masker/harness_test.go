// SPDX-License-Identifier: MIT
package masker

import (
	"runtime"
	"testing"

	"sinplayer/internal/audiotest"
)

const (
	testSampleRate = 48000.0
	testFrameSize  = 256
)

// recorder is an Observer that keeps every notification.
type recorder struct {
	fadeIns  []AudioSampleTimeWithOffset
	fadeOuts int
	onFadeIn func()
}

func (r *recorder) FadeInComplete(t AudioSampleTimeWithOffset) {
	r.fadeIns = append(r.fadeIns, t)
	if r.onFadeIn != nil {
		r.onFadeIn()
	}
}

func (r *recorder) FadeOutComplete() { r.fadeOuts++ }

// harness drives a Player through a manual backend and timer, keeping
// every rendered sample in order.
type harness struct {
	t       *testing.T
	p       *Player
	backend *audiotest.Backend
	timer   *audiotest.Timer
	reader  *audiotest.Reader
	obs     *recorder
	frames  int
	out     [][]float32
}

func newHarness(t *testing.T, outputChannels int) *harness {
	t.Helper()
	h := &harness{
		t:       t,
		backend: audiotest.NewBackend(outputChannels, testSampleRate),
		timer:   &audiotest.Timer{},
		reader:  audiotest.NewReader(),
		obs:     &recorder{},
		frames:  testFrameSize,
		out:     make([][]float32, outputChannels),
	}
	h.p = New(h.backend, h.reader, h.timer)
	h.p.Attach(h.obs)
	return h
}

// load registers channels as a file and loads it.
func (h *harness) load(channels ...[]float32) {
	h.t.Helper()
	h.reader.Add("masker.wav", int(testSampleRate), channels...)
	if err := h.p.LoadFile("masker.wav"); err != nil {
		h.t.Fatalf("LoadFile: %v", err)
	}
}

// render runs one device buffer.
func (h *harness) render() {
	if !h.backend.Playing() {
		return
	}
	buf := h.backend.Render(h.frames)
	for c := range buf {
		h.out[c] = append(h.out[c], buf[c]...)
	}
}

// rendered returns how many frames have been rendered so far.
func (h *harness) rendered() int {
	return len(h.out[0])
}

// concurrently runs fn on another goroutine. While fn waits on the stop
// rendezvous the device keeps calling back, one buffer per pending disable.
func (h *harness) concurrently(fn func()) {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	for {
		select {
		case <-done:
			return
		default:
			if h.p.shared.disable.posted() {
				h.render()
			}
			runtime.Gosched()
		}
	}
}

// stop runs Player.Stop against a live device.
func (h *harness) stop() error {
	var err error
	h.concurrently(func() { err = h.p.Stop() })
	return err
}

// fire runs the pending poll tick, if any.
func (h *harness) fire() {
	if h.timer.Scheduled() {
		h.concurrently(func() { h.timer.Fire() })
	}
}

// step renders one buffer and then polls.
func (h *harness) step() {
	h.render()
	h.fire()
}

// stepUntil steps until cond holds, failing after limit buffers.
func (h *harness) stepUntil(cond func() bool, limit int) {
	h.t.Helper()
	for range limit {
		if cond() {
			return
		}
		h.step()
	}
	if !cond() {
		h.t.Fatalf("condition not reached after %d buffers", limit)
	}
}
