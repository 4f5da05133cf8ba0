// SPDX-License-Identifier: MIT
package audio

import "errors"

var (
	// ErrInvalidAudioDevice is returned when a device index or description
	// does not name an output device.
	ErrInvalidAudioDevice = errors.New("invalid audio device")

	// ErrBackendBusy is returned when a device change is attempted while playing.
	ErrBackendBusy = errors.New("audio backend is playing")
)
