// SPDX-License-Identifier: MIT
package decode

import (
	"math"
	"slices"

	"gonum.org/v1/gonum/floats"
)

// DigitalLevel returns the level in dBov of the loudest channel, measured
// as RMS. Missing or empty audio is -Inf.
func (a *Audio) DigitalLevel() float64 {
	level := math.Inf(-1)
	if a == nil {
		return level
	}
	var x []float64
	for _, ch := range a.Channels {
		if len(ch) == 0 {
			continue
		}
		x = slices.Grow(x[:0], len(ch))[:len(ch)]
		for i, s := range ch {
			x[i] = float64(s)
		}
		rms := floats.Norm(x, 2) / math.Sqrt(float64(len(x)))
		level = max(level, 20*math.Log10(rms))
	}
	return level
}
