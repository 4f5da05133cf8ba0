// SPDX-License-Identifier: MIT

// Package decode reads audio files into fully-buffered, de-interleaved
// float32 channels. Formats are looked up by file extension in a Registry.
package decode

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Audio is a decoded file: one sample slice per channel, all equal length.
type Audio struct {
	Channels   [][]float32
	SampleRate int
}

// Frames returns the per-channel sample count.
func (a *Audio) Frames() int {
	if a == nil || len(a.Channels) == 0 {
		return 0
	}
	return len(a.Channels[0])
}

// DurationSeconds returns the length of the audio at its own sample rate.
func (a *Audio) DurationSeconds() float64 {
	if a == nil || a.SampleRate <= 0 {
		return 0
	}
	return float64(a.Frames()) / float64(a.SampleRate)
}

// Decoder decodes a complete file.
type Decoder interface {
	Decode(r io.ReadSeeker) (*Audio, error)
}

// Reader turns a path into decoded audio.
type Reader interface {
	Read(path string) (*Audio, error)
}

// Registry for decoders by file extension (e.g., ".wav", ".flac").
type Registry struct {
	codecs map[string]Decoder

	mtx sync.Mutex
}

func NewRegistry() *Registry {
	return &Registry{
		codecs: make(map[string]Decoder),
	}
}

func (r *Registry) Register(ext string, d Decoder) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	r.codecs[strings.ToLower(ext)] = d
}

func (r *Registry) Get(ext string) (Decoder, bool) {
	r.mtx.Lock()
	defer r.mtx.Unlock()

	d, ok := r.codecs[strings.ToLower(ext)]
	return d, ok
}

// DefaultRegistry knows every format this package decodes.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register(".wav", WAV{})
	r.Register(".wave", WAV{})
	r.Register(".aif", AIFF{})
	r.Register(".aiff", AIFF{})
	r.Register(".mp3", MP3{})
	r.Register(".ogg", Vorbis{})
	r.Register(".oga", Vorbis{})
	r.Register(".flac", FLAC{})
	return r
}

// FileReader is a Reader backed by a Registry.
type FileReader struct {
	registry *Registry
}

// NewFileReader returns a FileReader over registry, or the default
// registry if nil.
func NewFileReader(registry *Registry) *FileReader {
	if registry == nil {
		registry = DefaultRegistry()
	}
	return &FileReader{registry: registry}
}

// Read decodes path. Every failure wraps ErrInvalidFile.
func (fr *FileReader) Read(path string) (*Audio, error) {
	ext := filepath.Ext(path)
	dec, ok := fr.registry.Get(ext)
	if !ok {
		return nil, fmt.Errorf("%w: %s: %w %q", ErrInvalidFile, path, ErrUnsupportedFormat, ext)
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidFile, err)
	}
	defer f.Close()

	a, err := dec.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidFile, path, err)
	}
	return a, nil
}

// deinterleave splits interleaved samples into channels, dropping a
// trailing partial frame.
func deinterleave(samples []float32, channels int) [][]float32 {
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for f := range frames {
		base := f * channels
		for c := range out {
			out[c][f] = samples[base+c]
		}
	}
	return out
}

// deinterleaveInts converts interleaved integer PCM to float channels.
// Samples are offset by center (unsigned formats) and divided by scale.
func deinterleaveInts(data []int, channels int, scale float32, center int) [][]float32 {
	frames := len(data) / channels
	out := make([][]float32, channels)
	for c := range out {
		out[c] = make([]float32, frames)
	}
	for f := range frames {
		base := f * channels
		for c := range out {
			out[c][f] = float32(data[base+c]-center) / scale
		}
	}
	return out
}

// fullScale returns the divisor that maps signed PCM of bitDepth to [-1, 1).
func fullScale(bitDepth int) float32 {
	if bitDepth < 1 || bitDepth > 32 {
		bitDepth = 16
	}
	return float32(uint64(1) << (bitDepth - 1))
}
