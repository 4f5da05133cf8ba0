// SPDX-License-Identifier: MIT
package decode

import "errors"

var (
	// ErrInvalidFile is wrapped by every Read failure.
	ErrInvalidFile = errors.New("invalid audio file")

	ErrUnsupportedFormat   = errors.New("unsupported audio format")
	ErrUnsupportedBitDepth = errors.New("unsupported bit depth")
	ErrNoChannels          = errors.New("audio has no channels")
)
