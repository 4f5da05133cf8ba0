// SPDX-License-Identifier: MIT
package audiotest

import (
	"fmt"
	"math"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV encodes channels as integer PCM of bitDepth at sampleRate.
func WriteWAV(path string, channels [][]float32, sampleRate, bitDepth int) error {
	if len(channels) == 0 {
		return fmt.Errorf("no channels")
	}
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	frames := len(channels[0])
	scale := float64(int64(1)<<(bitDepth-1)) - 1
	data := make([]int, frames*len(channels))
	for f := range frames {
		for c, ch := range channels {
			data[f*len(channels)+c] = int(math.Round(float64(ch[f]) * scale))
		}
	}

	enc := wav.NewEncoder(file, sampleRate, bitDepth, len(channels), 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: len(channels), SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: bitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}

// WriteFile writes raw bytes, for files that must fail to decode.
func WriteFile(path string, data []byte) error {
	return os.WriteFile(path, data, 0644)
}
