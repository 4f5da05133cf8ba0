// SPDX-License-Identifier: MIT
package masker

func (p *Player) schedulePollLocked() {
	if p.polling {
		return
	}
	p.polling = true
	p.timer.ScheduleCallbackAfterSeconds(p.pollInterval.Seconds())
}

// Callback is the poll tick. It collects fade completions posted by the
// audio callback, notifies the observer, and reschedules while a fade is
// still outstanding. A completed fade-out also stops the device.
func (p *Player) Callback() {
	p.mu.Lock()
	p.polling = false

	fadeInDone := p.shared.fadeIn.completed()
	var fadeIn AudioSampleTimeWithOffset
	if fadeInDone {
		p.fadingIn = false
		fadeIn = p.shared.fadeInCompletion()
	}

	fadeOutDone := p.shared.fadeOut.completed()
	if fadeOutDone {
		p.fadingOut = false
		p.awaitingAutoEnd = false
		if err := p.stopLocked(); err != nil {
			p.log.Errorf("%v", err)
		}
	}

	if p.fadingIn || p.fadingOut || p.awaitingAutoEnd {
		p.schedulePollLocked()
	}
	observer := p.observer
	p.mu.Unlock()

	if observer == nil {
		return
	}
	if fadeInDone {
		observer.FadeInComplete(fadeIn)
	}
	if fadeOutDone {
		observer.FadeOutComplete()
	}
}
