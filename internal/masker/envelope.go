// SPDX-License-Identifier: MIT
package masker

import "gonum.org/v1/gonum/dsp/window"

type envelopeState int

const (
	idle envelopeState = iota
	fadingIn
	steadyLevel
	fadingOut
)

func (s envelopeState) String() string {
	switch s {
	case idle:
		return "idle"
	case fadingIn:
		return "fading in"
	case steadyLevel:
		return "steady level"
	case fadingOut:
		return "fading out"
	default:
		return "unknown"
	}
}

// envelope is the fade state machine. It lives in renderState and is only
// touched by the callback.
type envelope struct {
	state  envelopeState
	ramp   int // 0..R fading in, R..2R fading out
	steady int // Samples spent at steady level
}

// newShape builds the ramp table: a Hann window over 2R+1 points, which is
// sin²(πk/2R) for k in [0, 2R]. The first half fades in, the mirrored
// second half fades out.
func newShape(rampSamples, steadySamples int) *shape {
	s := &shape{rampSamples: rampSamples, steadySamples: steadySamples}
	if rampSamples <= 0 {
		s.rampSamples = 0
		return s
	}

	ramp := make([]float64, 2*rampSamples+1)
	for i := range ramp {
		ramp[i] = 1
	}
	s.ramp = window.Hann(ramp)
	s.ramp[rampSamples] = 1 // Exact peak
	return s
}

// gain returns the envelope gain for the next sample and advances the
// counters. Completion is detected by advance before the sample's gain is taken.
func (e *envelope) gain(s *shape) float64 {
	switch e.state {
	case fadingIn, fadingOut:
		g := s.ramp[e.ramp]
		e.ramp++
		return g
	case steadyLevel:
		e.steady++
		return 1
	default:
		return 0
	}
}

// envelopeEvent is a transition reported by advance.
type envelopeEvent int

const (
	noEvent envelopeEvent = iota
	fadeInCompleted
	fadeOutCompleted
)

// advance applies any transition due before the next sample.
func (e *envelope) advance(s *shape) envelopeEvent {
	switch e.state {
	case fadingIn:
		if e.ramp >= s.rampSamples {
			e.state = steadyLevel
			e.steady = 0
			return fadeInCompleted
		}
	case steadyLevel:
		if s.steadySamples > 0 && e.steady >= s.steadySamples {
			e.state = fadingOut
			e.ramp = s.rampSamples
			return e.advance(s)
		}
	case fadingOut:
		if e.ramp >= 2*s.rampSamples {
			e.state = idle
			return fadeOutCompleted
		}
	}
	return noEvent
}

// startFadeIn begins a fade-in from idle.
func (e *envelope) startFadeIn() {
	e.state = fadingIn
	e.ramp = 0
}

// startFadeOut begins a fade-out from steady level or, degenerately, from
// idle, where the second half of the window starts at full gain.
func (e *envelope) startFadeOut(s *shape) {
	e.state = fadingOut
	e.ramp = s.rampSamples
}
