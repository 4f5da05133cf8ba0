// SPDX-License-Identifier: MIT

// Package timer schedules one-shot callbacks for the players' poll loops.
package timer

import (
	"sync"
	"time"
)

// Observer receives a Timer's callbacks.
type Observer interface {
	Callback()
}

// Timer schedules a single pending callback to its attached Observer.
type Timer interface {
	Attach(o Observer)
	ScheduleCallbackAfterSeconds(seconds float64)
}

// AfterFunc is a Timer over time.AfterFunc. Callbacks run on the runtime
// timer goroutine, one at a time.
type AfterFunc struct {
	mu       sync.Mutex
	observer Observer
	pending  *time.Timer
	fire     sync.Mutex // Serializes callbacks
}

func New() *AfterFunc {
	return &AfterFunc{}
}

func (t *AfterFunc) Attach(o Observer) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.observer = o
}

// ScheduleCallbackAfterSeconds replaces any pending callback.
func (t *AfterFunc) ScheduleCallbackAfterSeconds(seconds float64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.pending != nil {
		t.pending.Stop()
	}
	t.pending = time.AfterFunc(time.Duration(seconds*float64(time.Second)), t.callback)
}

// Cancel drops the pending callback, if any.
func (t *AfterFunc) Cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.pending != nil {
		t.pending.Stop()
		t.pending = nil
	}
}

func (t *AfterFunc) callback() {
	t.mu.Lock()
	o := t.observer
	t.mu.Unlock()
	if o == nil {
		return
	}

	t.fire.Lock()
	defer t.fire.Unlock()
	o.Callback()
}
