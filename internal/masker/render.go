// SPDX-License-Identifier: MIT
package masker

import "sinplayer/internal/audio"

// renderState is owned by the audio callback. The control goroutine never
// reads or writes it.
type renderState struct {
	playback    *playback
	env         envelope
	sinceFadeIn int // Samples since fade-in completed; -1 before the first
}

// render is the audio callback.
// Performance Critical:
// - Runs on the device callback thread
// - No allocations, locks or panics
// - Any inconsistency degrades to silence
func (p *Player) render(out [][]float32, t audio.Timestamp) {
	s := &p.shared
	r := &p.rs

	if !s.enabled.Load() {
		if !s.enable.consume() {
			if s.disable.consume() {
				s.disable.acknowledge()
			}
			return
		}
		s.enabled.Store(true)
		r.env = envelope{}
		r.sinceFadeIn = -1
		s.enable.acknowledge()
	}

	if len(out) == 0 {
		p.finishBuffer()
		return
	}

	if pb := s.playback.Load(); pb != r.playback {
		r.playback = pb
	}
	if pb := r.playback; pb == nil || pb.frames == 0 {
		for _, ch := range out {
			clear(ch)
		}
	} else {
		copySource(out, pb)
	}
	applySelection(out, channelSelection(s.selection.Load()))

	sh := s.shape.Load()
	switch r.env.state {
	case idle:
		if s.fadeIn.consume() {
			r.env.startFadeIn()
		} else if s.fadeOut.consume() {
			r.env.startFadeOut(sh)
		}
	case steadyLevel:
		if s.fadeIn.consume() {
			// Already at level: report completion at the buffer start.
			r.env.steady = 0
			r.sinceFadeIn = 0
			p.publishFadeIn(t, 0)
		}
		if s.fadeOut.consume() {
			r.env.startFadeOut(sh)
		}
	}

	p.applyEnvelope(out, t, sh)
	p.finishBuffer()
}

// finishBuffer acknowledges a pending disable after the buffer is rendered.
func (p *Player) finishBuffer() {
	s := &p.shared
	if s.disable.consume() {
		s.enabled.Store(false)
		s.disable.acknowledge()
	}
}

// copySource fills each output channel from the looping source, realizing
// the channel's start delay first. Channels the source lacks stay silent.
func copySource(out [][]float32, pb *playback) {
	n := min(len(out), len(pb.channels))
	for c := range n {
		o := out[c]
		i := 0
		if w := pb.waits[c]; w > 0 {
			k := min(w, len(o))
			clear(o[:k])
			pb.waits[c] = w - k
			i = k
		}

		src := pb.channels[c]
		head := pb.heads[c]
		for i < len(o) {
			k := copy(o[i:], src[head:])
			i += k
			head += k
			if head >= pb.frames {
				head = 0
			}
		}
		pb.heads[c] = head
	}
	for c := n; c < len(out); c++ {
		clear(out[c])
	}
}

func applySelection(out [][]float32, sel channelSelection) {
	switch sel {
	case firstChannelOnly:
		for c := 1; c < len(out); c++ {
			clear(out[c])
		}
	case secondChannelOnly:
		for c := range out {
			if c != 1 {
				clear(out[c])
			}
		}
	}
}

// applyEnvelope scales every frame by envelope gain × level, writes the
// vibrotactile overlay and fires transitions on their exact frame.
func (p *Player) applyEnvelope(out [][]float32, t audio.Timestamp, sh *shape) {
	s := &p.shared
	r := &p.rs
	level := s.level.Load()

	var vib *vibrotactileBuffer
	if s.vibroEnabled.Load() {
		vib = s.vibrotactile.Load()
		if vib != nil && vib.channel >= len(out) {
			vib = nil
		}
	}

	frames := len(out[0])
	for i := range frames {
		switch r.env.advance(sh) {
		case fadeInCompleted:
			r.sinceFadeIn = 0
			p.publishFadeIn(t, i)
		case fadeOutCompleted:
			s.fadeOut.acknowledge()
		}

		g := float32(r.env.gain(sh) * level)
		for _, ch := range out {
			if i < len(ch) {
				ch[i] *= g
			}
		}

		if r.sinceFadeIn >= 0 {
			if vib != nil {
				if k := r.sinceFadeIn - vib.delay; k >= 0 && k < len(vib.samples) && i < len(out[vib.channel]) {
					out[vib.channel][i] = vib.samples[k]
				}
			}
			r.sinceFadeIn++
		}
	}
}

// publishFadeIn stores the completion position before raising the flag,
// so the control side reads it after observing complete.
func (p *Player) publishFadeIn(t audio.Timestamp, offset int) {
	s := &p.shared
	s.fadeInTime.Store(int64(t))
	s.fadeInOffset.Store(int64(offset))
	s.fadeIn.acknowledge()
}
