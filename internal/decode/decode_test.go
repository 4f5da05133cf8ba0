// SPDX-License-Identifier: MIT
package decode_test

import (
	"errors"
	"io"
	"math"
	"path/filepath"
	"testing"

	"sinplayer/internal/audiotest"
	"sinplayer/internal/decode"
)

func TestRegistry_RegisterAndGet(t *testing.T) {
	t.Parallel()

	registry := decode.NewRegistry()
	registry.Register(".WAV", decode.WAV{})

	got, ok := registry.Get(".wav")
	if !ok {
		t.Fatal("Registry.Get() failed to retrieve registered decoder")
	}
	if _, isWAV := got.(decode.WAV); !isWAV {
		t.Errorf("Registry.Get() returned %T", got)
	}
	if _, ok := registry.Get(".opus"); ok {
		t.Error("Registry.Get() returned ok=true for non-existent format")
	}
}

func TestDefaultRegistryFormats(t *testing.T) {
	t.Parallel()

	registry := decode.DefaultRegistry()
	for _, ext := range []string{".wav", ".aiff", ".aif", ".mp3", ".ogg", ".flac"} {
		if _, ok := registry.Get(ext); !ok {
			t.Errorf("no decoder for %s", ext)
		}
	}
}

func TestReadWAV(t *testing.T) {
	t.Parallel()

	const rate = 48000
	left := audiotest.Sine(rate/10, rate, 440, 0.5)
	right := audiotest.Constant(rate/10, -0.25)

	tests := []struct {
		name     string
		bitDepth int
		tol      float64
	}{
		{"16-bit", 16, 1.0 / 32768},
		{"24-bit", 24, 1.0 / 8388608},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "stereo.wav")
			if err := audiotest.WriteWAV(path, [][]float32{left, right}, rate, tt.bitDepth); err != nil {
				t.Fatalf("WriteWAV: %v", err)
			}

			a, err := decode.NewFileReader(nil).Read(path)
			if err != nil {
				t.Fatalf("Read: %v", err)
			}
			if a.SampleRate != rate || len(a.Channels) != 2 || a.Frames() != len(left) {
				t.Fatalf("got %d Hz, %d channels, %d frames", a.SampleRate, len(a.Channels), a.Frames())
			}
			if math.Abs(a.DurationSeconds()-0.1) > 1e-9 {
				t.Errorf("DurationSeconds = %v, want 0.1", a.DurationSeconds())
			}
			for i := range left {
				if d := math.Abs(float64(a.Channels[0][i] - left[i])); d > 2*tt.tol {
					t.Fatalf("left[%d] = %v, want %v", i, a.Channels[0][i], left[i])
				}
				if d := math.Abs(float64(a.Channels[1][i] - right[i])); d > 2*tt.tol {
					t.Fatalf("right[%d] = %v, want %v", i, a.Channels[1][i], right[i])
				}
			}
		})
	}
}

func TestReadInvalidFiles(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()

	garbage := filepath.Join(dir, "garbage.wav")
	if err := audiotest.WriteFile(garbage, []byte("definitely not RIFF")); err != nil {
		t.Fatal(err)
	}
	empty := filepath.Join(dir, "empty.flac")
	if err := audiotest.WriteFile(empty, nil); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name        string
		path        string
		unsupported bool
	}{
		{"missing file", filepath.Join(dir, "missing.wav"), false},
		{"unknown extension", filepath.Join(dir, "speech.opus"), true},
		{"corrupt wav", garbage, true},
		{"empty flac", empty, true},
	}

	reader := decode.NewFileReader(nil)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := reader.Read(tt.path)
			if !errors.Is(err, decode.ErrInvalidFile) {
				t.Fatalf("Read error = %v, want ErrInvalidFile", err)
			}
			if tt.unsupported && !errors.Is(err, decode.ErrUnsupportedFormat) {
				t.Errorf("Read error = %v, want ErrUnsupportedFormat", err)
			}
		})
	}
}

// stubDecoder lets the registry route to a decoder under test.
type stubDecoder struct {
	audio *decode.Audio
	err   error
}

func (s stubDecoder) Decode(io.ReadSeeker) (*decode.Audio, error) { return s.audio, s.err }

func TestFileReaderUsesRegistry(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "masker.test")
	if err := audiotest.WriteFile(path, []byte{0}); err != nil {
		t.Fatal(err)
	}

	want := &decode.Audio{Channels: [][]float32{{1, 2, 3}}, SampleRate: 8000}
	registry := decode.NewRegistry()
	registry.Register(".test", stubDecoder{audio: want})

	got, err := decode.NewFileReader(registry).Read(path)
	if err != nil || got != want {
		t.Fatalf("Read = %v, %v", got, err)
	}

	registry.Register(".test", stubDecoder{err: errors.New("boom")})
	if _, err := decode.NewFileReader(registry).Read(path); !errors.Is(err, decode.ErrInvalidFile) {
		t.Errorf("decoder failure should wrap ErrInvalidFile, got %v", err)
	}
}

func TestAudioEmpty(t *testing.T) {
	t.Parallel()

	var a *decode.Audio
	if a.Frames() != 0 || a.DurationSeconds() != 0 {
		t.Error("nil audio should have no frames")
	}
	if (&decode.Audio{SampleRate: 48000}).Frames() != 0 {
		t.Error("channel-less audio should have no frames")
	}
}

func TestDigitalLevel(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		audio *decode.Audio
		want  float64
	}{
		{"nil", nil, math.Inf(-1)},
		{"empty", &decode.Audio{Channels: [][]float32{{}, {}}}, math.Inf(-1)},
		{"full-scale sine", &decode.Audio{Channels: [][]float32{audiotest.Sine(48000, 48000, 1000, 1)}}, -10 * math.Log10(2)},
		{"loudest channel wins", &decode.Audio{Channels: [][]float32{
			audiotest.Constant(100, 0.1),
			audiotest.Constant(200, 0.5),
		}}, 20 * math.Log10(0.5)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.audio.DigitalLevel()
			if math.IsInf(tt.want, -1) {
				if !math.IsInf(got, -1) {
					t.Errorf("DigitalLevel() = %v, want -Inf", got)
				}
				return
			}
			if math.Abs(got-tt.want) > 0.01 {
				t.Errorf("DigitalLevel() = %.3f, want %.3f", got, tt.want)
			}
		})
	}
}
