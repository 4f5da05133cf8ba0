// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"math"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"sinplayer/internal/log"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// FileRenderDescription names the single device a FileRender exposes.
const FileRenderDescription = "WAV file"

// FileRenderOptions configures an offline render.
type FileRenderOptions struct {
	Path            string
	SampleRate      float64
	Channels        int
	FramesPerBuffer int
	MaxFrames       int  // Stop writing after this many frames; 0 is unbounded.
	Realtime        bool // Pace buffers at the device rate instead of rendering flat out.
}

// FileRender is a Backend whose device is a 16-bit WAV file. Its clock
// counts rendered frames, so timestamps are exact sample positions.
type FileRender struct {
	mu   sync.Mutex
	opts FileRenderOptions

	// Recording state and buffers.
	outputFile *os.File
	wavEncoder *wav.Encoder
	sampleBuf  *audio.IntBuffer // Reusable buffer for format conversion
	out        [][]float32

	render  atomic.Pointer[RenderFunc]
	gate    *StartGate
	frames  atomic.Int64 // Frames written; the device clock
	playing atomic.Bool
	stop    chan struct{}
	done    chan struct{}
	err     error

	log log.Logger
}

// NewFileRender creates the output file and its WAV encoder.
func NewFileRender(opts FileRenderOptions) (*FileRender, error) {
	if opts.Channels < 1 || opts.FramesPerBuffer < 1 || opts.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid render options: %+v", opts)
	}

	file, err := os.Create(opts.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create render file: %w", err)
	}

	out := make([][]float32, opts.Channels)
	for c := range out {
		out[c] = make([]float32, opts.FramesPerBuffer)
	}

	return &FileRender{
		opts:       opts,
		outputFile: file,
		wavEncoder: wav.NewEncoder(file, int(opts.SampleRate), 16, opts.Channels, 1),
		sampleBuf: &audio.IntBuffer{
			Format: &audio.Format{
				NumChannels: opts.Channels,
				SampleRate:  int(opts.SampleRate),
			},
			Data:           make([]int, opts.FramesPerBuffer*opts.Channels),
			SourceBitDepth: 16,
		},
		out:  out,
		gate: NewStartGate(opts.Channels),
		log:  log.Named("render"),
	}, nil
}

func (r *FileRender) AttachCallback(fn RenderFunc) {
	r.render.Store(&fn)
}

func (r *FileRender) DeviceCount() int { return 1 }

func (r *FileRender) DeviceDescription(index int) string {
	if index != 0 {
		return ""
	}
	return FileRenderDescription
}

func (r *FileRender) IsOutputDevice(index int) bool { return index == 0 }

func (r *FileRender) SetDevice(index int) error {
	if index != 0 {
		return fmt.Errorf("%w: index %d", ErrInvalidAudioDevice, index)
	}
	return nil
}

func (r *FileRender) SampleRateHz() float64 { return r.opts.SampleRate }

func (r *FileRender) CurrentSystemTime() Timestamp {
	return Timestamp(FramesToNanoseconds(int(r.frames.Load()), r.opts.SampleRate))
}

func (r *FileRender) NanosecondsSince(t Timestamp) uint64 {
	return nanosecondsSince(r.CurrentSystemTime(), t)
}

func (r *FileRender) Playing() bool { return r.playing.Load() }

// FramesWritten returns the number of frames encoded so far.
func (r *FileRender) FramesWritten() int {
	return int(r.frames.Load())
}

// Play starts the render goroutine.
func (r *FileRender) Play() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.playing.Load() {
		return nil
	}
	if r.wavEncoder == nil {
		return fmt.Errorf("render file %s already closed", r.opts.Path)
	}
	r.stop = make(chan struct{})
	r.done = make(chan struct{})
	r.playing.Store(true)
	go r.loop(r.stop, r.done)
	return nil
}

func (r *FileRender) PlayAt(t Timestamp) error {
	r.gate.Arm(t)
	return r.Play()
}

// Stop halts the render goroutine after the buffer in progress.
func (r *FileRender) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.gate.Disarm()
	if !r.playing.Load() {
		return r.err
	}
	close(r.stop)
	<-r.done
	r.playing.Store(false)
	return r.err
}

// Wait blocks until the render reaches MaxFrames or is stopped.
func (r *FileRender) Wait() error {
	r.mu.Lock()
	done := r.done
	r.mu.Unlock()
	if done != nil {
		<-done
	}
	r.playing.Store(false)
	return r.err
}

// Close stops rendering and finalizes the WAV header.
func (r *FileRender) Close() error {
	if err := r.Stop(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.wavEncoder != nil {
		if err := r.wavEncoder.Close(); err != nil {
			return err
		}
		r.wavEncoder = nil
	}

	if r.outputFile != nil {
		if err := r.outputFile.Close(); err != nil {
			return err
		}
		r.outputFile = nil
	}

	r.log.Infof("wrote %d frames to %s", r.frames.Load(), r.opts.Path)
	return nil
}

func (r *FileRender) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer func() {
		r.playing.Store(false)
		close(done)
	}()

	var tick <-chan time.Time
	if r.opts.Realtime {
		period := time.Duration(FramesToNanoseconds(r.opts.FramesPerBuffer, r.opts.SampleRate))
		ticker := time.NewTicker(period)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-stop:
			return
		default:
		}
		if tick != nil {
			select {
			case <-stop:
				return
			case <-tick:
			}
		}
		if !r.step() {
			return
		}
	}
}

// step renders and encodes one buffer. It returns false once MaxFrames is
// reached or the encoder fails.
func (r *FileRender) step() bool {
	frames := r.opts.FramesPerBuffer
	if r.opts.MaxFrames > 0 {
		left := r.opts.MaxFrames - int(r.frames.Load())
		if left <= 0 {
			return false
		}
		frames = min(frames, left)
	}

	out := r.out
	for c := range out {
		out[c] = out[c][:frames]
	}
	silence(out)
	if fn := r.render.Load(); fn != nil {
		r.gate.Render(out, r.CurrentSystemTime(), r.opts.SampleRate, *fn)
	}

	data := r.sampleBuf.Data[:frames*len(out)]
	i := 0
	for f := range frames {
		for c := range out {
			data[i] = floatToPCM16(out[c][f])
			i++
		}
	}
	r.sampleBuf.Data = data
	err := r.wavEncoder.Write(r.sampleBuf)
	r.sampleBuf.Data = r.sampleBuf.Data[:cap(r.sampleBuf.Data)]
	for c := range out {
		out[c] = out[c][:cap(out[c])]
	}
	if err != nil {
		r.err = fmt.Errorf("failed to write render file: %w", err)
		r.log.Errorf("%v", r.err)
		return false
	}
	r.frames.Add(int64(frames))
	return true
}

func floatToPCM16(s float32) int {
	v := math.Round(float64(s) * math.MaxInt16)
	return int(max(math.MinInt16, min(math.MaxInt16, v)))
}
