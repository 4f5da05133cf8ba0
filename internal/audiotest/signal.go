// SPDX-License-Identifier: MIT

// Package audiotest provides fixtures for driving the players without
// audio hardware: signal generators, a WAV writer, an in-memory reader,
// a manually clocked backend and a manual timer.
package audiotest

import "math"

// Sine returns frames samples of a sine wave at frequency Hz.
func Sine(frames int, sampleRate, frequency, amplitude float64) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(amplitude * math.Sin(2*math.Pi*frequency*t))
	}
	return buffer
}

// Constant returns frames samples of value.
func Constant(frames int, value float32) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		buffer[i] = value
	}
	return buffer
}

// Index returns samples whose value is their index plus one, so a rendered
// sample identifies the source position it came from. Zero is left for
// silence.
func Index(frames int) []float32 {
	buffer := make([]float32, frames)
	for i := range buffer {
		buffer[i] = float32(i + 1)
	}
	return buffer
}
