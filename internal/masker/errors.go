// SPDX-License-Identifier: MIT
package masker

import (
	"errors"

	"sinplayer/internal/audio"
)

var (
	// ErrInvalidAudioFile is returned by LoadFile when the file cannot be decoded.
	ErrInvalidAudioFile = errors.New("invalid masker audio file")

	// ErrInvalidAudioDevice is returned by SetAudioDevice for unknown names.
	ErrInvalidAudioDevice = audio.ErrInvalidAudioDevice

	// ErrConfigureWhileEnabled is the panic value for mutating playback
	// configuration while the callback is live.
	ErrConfigureWhileEnabled = errors.New("cannot change masker configuration while audio is enabled")
)
