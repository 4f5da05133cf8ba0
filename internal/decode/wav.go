// SPDX-License-Identifier: MIT
package decode

import (
	"fmt"
	"io"
	"math"

	"github.com/go-audio/wav"
)

const wavFormatIEEEFloat = 3

// WAV decodes RIFF/WAVE files: 8, 16, 24 and 32-bit PCM and 32-bit float.
type WAV struct{}

func (WAV) Decode(r io.ReadSeeker) (*Audio, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not a WAV file", ErrUnsupportedFormat)
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("reading wav data: %w", err)
	}
	channels := int(dec.NumChans)
	if channels < 1 {
		return nil, ErrNoChannels
	}

	a := &Audio{SampleRate: int(dec.SampleRate)}
	switch {
	case dec.WavAudioFormat == wavFormatIEEEFloat && dec.BitDepth == 32:
		samples := make([]float32, len(buf.Data))
		for i, v := range buf.Data {
			samples[i] = math.Float32frombits(uint32(int32(v)))
		}
		a.Channels = deinterleave(samples, channels)
	case dec.BitDepth == 8:
		a.Channels = deinterleaveInts(buf.Data, channels, 128, 128)
	case dec.BitDepth == 16 || dec.BitDepth == 24 || dec.BitDepth == 32:
		a.Channels = deinterleaveInts(buf.Data, channels, fullScale(int(dec.BitDepth)), 0)
	default:
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, dec.BitDepth)
	}
	return a, nil
}
