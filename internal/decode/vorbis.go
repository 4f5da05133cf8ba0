// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"
)

// Vorbis decodes Ogg Vorbis files.
type Vorbis struct{}

func (Vorbis) Decode(r io.ReadSeeker) (*Audio, error) {
	samples, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	if format.Channels < 1 {
		return nil, ErrNoChannels
	}
	return &Audio{
		Channels:   deinterleave(samples, format.Channels),
		SampleRate: format.SampleRate,
	}, nil
}
