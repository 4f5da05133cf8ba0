// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

// AIFF decodes uncompressed AIFF files.
type AIFF struct{}

func (AIFF) Decode(r io.ReadSeeker) (*Audio, error) {
	dec := aiff.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an AIFF file", ErrUnsupportedFormat)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil || format.NumChannels < 1 {
		return nil, ErrNoChannels
	}
	bitDepth := int(dec.BitDepth)
	switch bitDepth {
	case 8, 16, 24, 32:
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bitDepth)
	}

	chunk := &goaudio.IntBuffer{
		Data:   make([]int, 4096*format.NumChannels),
		Format: format,
	}
	var data []int
	for {
		n, err := dec.PCMBuffer(chunk)
		data = append(data, chunk.Data[:n]...)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("reading aiff data: %w", err)
		}
		if n == 0 || err == io.EOF {
			break
		}
	}

	return &Audio{
		Channels:   deinterleaveInts(data, format.NumChannels, fullScale(bitDepth), 0),
		SampleRate: format.SampleRate,
	}, nil
}
