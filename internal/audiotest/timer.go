// SPDX-License-Identifier: MIT
package audiotest

import "sinplayer/internal/timer"

// Timer is a timer.Timer fired by hand.
type Timer struct {
	observer  timer.Observer
	scheduled bool
	Seconds   float64 // Delay of the last schedule
	Schedules int
}

func (t *Timer) Attach(o timer.Observer) { t.observer = o }

func (t *Timer) ScheduleCallbackAfterSeconds(seconds float64) {
	t.scheduled = true
	t.Seconds = seconds
	t.Schedules++
}

// Scheduled reports whether a callback is pending.
func (t *Timer) Scheduled() bool { return t.scheduled }

// Fire runs the pending callback, if any, and reports whether it ran.
func (t *Timer) Fire() bool {
	if !t.scheduled || t.observer == nil {
		return false
	}
	t.scheduled = false
	t.observer.Callback()
	return true
}
