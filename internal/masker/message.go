// SPDX-License-Identifier: MIT
package masker

import "sync/atomic"

// message is a one-shot signal between the control goroutine and the
// audio callback. The control side posts execute; the callback consumes it
// and later posts complete, which the control side consumes. Each flag is
// consumed exactly once by compare-and-swap.
type message struct {
	execute  atomic.Bool // Control → callback
	complete atomic.Bool // Callback → control
}

func (m *message) post() {
	m.execute.Store(true)
}

func (m *message) posted() bool {
	return m.execute.Load()
}

func (m *message) consume() bool {
	return m.execute.CompareAndSwap(true, false)
}

func (m *message) acknowledge() {
	m.complete.Store(true)
}

func (m *message) completed() bool {
	return m.complete.CompareAndSwap(true, false)
}
