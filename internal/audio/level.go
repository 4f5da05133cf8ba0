// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"sync/atomic"
)

// DBToScalar converts an amplification in dB to a linear gain.
func DBToScalar(dB float64) float64 {
	return math.Pow(10, dB/20)
}

// Level is a linear gain written by the control goroutine and read by a
// device callback. The zero value is silent.
type Level struct {
	bits atomic.Uint64 // math.Float64bits of the gain
}

// SetDB sets the gain from an amplification in dB.
func (l *Level) SetDB(dB float64) {
	l.Store(DBToScalar(dB))
}

func (l *Level) Store(scalar float64) {
	l.bits.Store(math.Float64bits(scalar))
}

func (l *Level) Load() float64 {
	return math.Float64frombits(l.bits.Load())
}
