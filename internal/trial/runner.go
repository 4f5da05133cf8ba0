// SPDX-License-Identifier: MIT

// Package trial runs one speech-in-noise presentation: the masker fades
// in, the target starts a fixed fringe after the fade-in completes, and the
// masker fades out once the target has played. Every sync point is
// published as a transport.Event.
package trial

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"sinplayer/internal/audio"
	"sinplayer/internal/log"
	"sinplayer/internal/masker"
	"sinplayer/internal/target"
	"sinplayer/internal/transport"

	"github.com/google/uuid"
)

// Masker is the part of masker.Player a trial drives.
type Masker interface {
	Attach(masker.Observer)
	FadeIn() error
	FadeOut()
	Stop() error
	SampleRateHz() float64
	CurrentSystemTime() audio.Timestamp
}

// Target is the part of target.Player a trial drives.
type Target interface {
	Attach(target.Observer)
	PlayAt(t audio.Timestamp, extraDelaySeconds float64) error
	Stop() error
}

// Options shape a trial.
type Options struct {
	FringeSeconds float64 // Delay from fade-in completion to target start
	// SelfTerminating means the masker fades out on its own after its
	// steady-level duration, so the runner never asks for a fade-out.
	SelfTerminating bool
}

// ErrAlreadyRunning is returned by Run while a trial is in progress.
var ErrAlreadyRunning = errors.New("trial already running")

// Runner orchestrates trials. It is the observer of both players, so its
// callbacks arrive on their timer goroutines.
type Runner struct {
	masker    Masker
	target    Target // nil runs the masker alone
	publisher transport.Transport
	opts      Options
	log       log.Logger

	mu          sync.Mutex
	id          uuid.UUID
	running     bool
	fadedIn     bool
	targetStart audio.Timestamp
	targetLive  bool // Scheduled and not yet complete
	maskerDone  bool
	err         error
	done        chan struct{}
}

// New returns a Runner over m and t. t may be nil.
func New(m Masker, t Target, publisher transport.Transport, opts Options) *Runner {
	r := &Runner{
		masker:    m,
		target:    t,
		publisher: publisher,
		opts:      opts,
		log:       log.Named("trial"),
	}
	m.Attach(r)
	if t != nil {
		t.Attach(r)
	}
	return r
}

// Run presents one trial and blocks until the masker has faded out and the
// target has finished, or until ctx is done, in which case both players are
// stopped.
func (r *Runner) Run(ctx context.Context) (uuid.UUID, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return uuid.Nil, ErrAlreadyRunning
	}
	r.id = uuid.New()
	r.running = true
	r.fadedIn, r.targetLive, r.maskerDone, r.err = false, false, false, nil
	r.done = make(chan struct{})
	id, done := r.id, r.done
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
	}()

	r.log.Infof("trial %s starting", id)
	if err := r.masker.FadeIn(); err != nil {
		return id, fmt.Errorf("trial %s: %w", id, err)
	}

	select {
	case <-done:
	case <-ctx.Done():
		r.log.Warnf("trial %s cancelled", id)
		return id, errors.Join(ctx.Err(), r.stopAll())
	}

	r.mu.Lock()
	err := r.err
	r.mu.Unlock()
	if err != nil {
		return id, fmt.Errorf("trial %s: %w", id, err)
	}
	r.log.Infof("trial %s complete", id)
	return id, nil
}

func (r *Runner) stopAll() error {
	err := r.masker.Stop()
	if r.target != nil {
		err = errors.Join(err, r.target.Stop())
	}
	return err
}

// TargetStart returns the device time at which the last target was
// scheduled to start.
func (r *Runner) TargetStart() audio.Timestamp {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.targetStart
}

func (r *Runner) publish(kind transport.Kind, t audio.Timestamp, offset int) {
	if r.publisher == nil {
		return
	}
	e := transport.Event{
		Trial:        r.id,
		Kind:         kind,
		Time:         t,
		SampleOffset: offset,
		SampleRate:   r.masker.SampleRateHz(),
	}
	if err := r.publisher.Send(e); err != nil {
		r.log.Warnf("publish %s: %v", kind, err)
	}
}

// FadeInComplete schedules the target relative to the completing sample.
func (r *Runner) FadeInComplete(t masker.AudioSampleTimeWithOffset) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.fadedIn {
		return
	}
	r.fadedIn = true
	r.publish(transport.KindFadeInComplete, t.SystemTime, t.SampleOffset)

	if r.target == nil {
		r.fadeOutLocked()
		return
	}
	start := t.At(r.masker.SampleRateHz())
	if err := r.target.PlayAt(start, r.opts.FringeSeconds); err != nil {
		r.err = err
		r.log.Errorf("trial %s: %v", r.id, err)
		r.fadeOutLocked()
		return
	}
	r.targetStart = start.Add(r.opts.FringeSeconds)
	r.targetLive = true
	r.publish(transport.KindTargetScheduled, r.targetStart, 0)
}

// PlaybackComplete fades the masker out once the target has played.
func (r *Runner) PlaybackComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || !r.targetLive {
		return
	}
	r.targetLive = false
	r.publish(transport.KindTargetComplete, r.masker.CurrentSystemTime(), 0)
	if r.maskerDone {
		r.finishLocked()
		return
	}
	r.fadeOutLocked()
}

// FadeOutComplete ends the trial unless the target is still playing.
func (r *Runner) FadeOutComplete() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running || r.maskerDone {
		return
	}
	r.maskerDone = true
	r.publish(transport.KindFadeOutComplete, r.masker.CurrentSystemTime(), 0)
	if !r.targetLive {
		r.finishLocked()
	}
}

func (r *Runner) fadeOutLocked() {
	if !r.opts.SelfTerminating || r.err != nil {
		r.masker.FadeOut()
	}
}

func (r *Runner) finishLocked() {
	select {
	case <-r.done:
	default:
		close(r.done)
	}
}
