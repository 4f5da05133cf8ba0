// SPDX-License-Identifier: MIT
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

// FLAC decodes FLAC files of any bit depth up to 32.
type FLAC struct{}

func (FLAC) Decode(r io.ReadSeeker) (*Audio, error) {
	stream, err := flac.New(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFormat, err)
	}
	defer stream.Close()

	info := stream.Info
	channels := int(info.NChannels)
	if channels < 1 {
		return nil, ErrNoChannels
	}
	scale := fullScale(int(info.BitsPerSample))

	out := make([][]float32, channels)
	if info.NSamples > 0 {
		for c := range out {
			out[c] = make([]float32, 0, info.NSamples)
		}
	}

	for {
		frame, err := stream.ParseNext()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading flac frame: %w", err)
		}
		for c := range out {
			for _, s := range frame.Subframes[c].Samples {
				out[c] = append(out[c], float32(s)/scale)
			}
		}
	}

	return &Audio{Channels: out, SampleRate: int(info.SampleRate)}, nil
}
