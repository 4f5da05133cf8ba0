// SPDX-License-Identifier: MIT
package audio

import (
	"math"
	"testing"
)

func TestDBToScalar(t *testing.T) {
	tests := []struct {
		dB   float64
		want float64
	}{
		{0, 1},
		{20, 10},
		{-20, 0.1},
		{-6, 0.501187},
	}
	for _, tt := range tests {
		if got := DBToScalar(tt.dB); math.Abs(got-tt.want) > 1e-6 {
			t.Errorf("DBToScalar(%g) = %g, want %g", tt.dB, got, tt.want)
		}
	}
}

func TestLevel(t *testing.T) {
	var l Level
	if l.Load() != 0 {
		t.Errorf("zero Level = %g, want silent", l.Load())
	}
	l.Store(1)
	if l.Load() != 1 {
		t.Errorf("level = %g, want unity", l.Load())
	}
	l.SetDB(-20)
	if got := l.Load(); math.Abs(got-0.1) > 1e-12 {
		t.Errorf("level after -20 dB = %g", got)
	}
}
