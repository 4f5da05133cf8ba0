// SPDX-License-Identifier: MIT
package target

import (
	"errors"

	"sinplayer/internal/audio"
)

var (
	// ErrInvalidAudioFile is returned by LoadFile when the file cannot be decoded.
	ErrInvalidAudioFile = errors.New("invalid target audio file")

	// ErrInvalidAudioDevice is returned by SetAudioDevice for unknown names.
	ErrInvalidAudioDevice = audio.ErrInvalidAudioDevice

	// ErrConfigureWhilePlaying is the panic value for replacing the target
	// or its device while it plays.
	ErrConfigureWhilePlaying = errors.New("cannot change target configuration while playing")
)
