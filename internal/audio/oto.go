// SPDX-License-Identifier: MIT
package audio

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"sinplayer/internal/config"
	"sinplayer/internal/log"
	"sinplayer/pkg/bitint"

	"github.com/ebitengine/oto/v3"
)

// OtoDeviceDescription names the single device an Oto backend exposes.
const OtoDeviceDescription = "System default (oto)"

// Oto allows one context per process, so every backend shares it.
var shared struct {
	mu       sync.Mutex
	ctx      *oto.Context
	rate     int
	channels int
}

// otoEpoch anchors the host clock shared by every Oto backend.
var otoEpoch = time.Now()

func sharedContext(sampleRate, channels int, bufferSize time.Duration) (*oto.Context, error) {
	shared.mu.Lock()
	defer shared.mu.Unlock()

	if shared.ctx != nil {
		if shared.rate != sampleRate || shared.channels != channels {
			return nil, fmt.Errorf("oto context already open at %d Hz x %d, requested %d Hz x %d",
				shared.rate, shared.channels, sampleRate, channels)
		}
		return shared.ctx, nil
	}

	op := &oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: channels,
		Format:       oto.FormatFloat32LE,
		BufferSize:   bufferSize,
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready

	shared.ctx, shared.rate, shared.channels = ctx, sampleRate, channels
	return ctx, nil
}

// Oto is a Backend over an Oto player. Oto pulls audio through Read, so the
// render function runs on Oto's mixing goroutine, one chunk at a time.
// Timestamps come from a host clock offset by the configured buffer latency.
type Oto struct {
	mu sync.Mutex

	sampleRate float64
	channels   int
	latency    time.Duration

	ctx     *oto.Context
	player  *oto.Player
	playing atomic.Bool

	render atomic.Pointer[RenderFunc]
	gate   *StartGate
	buf    [][]float32 // Pre-allocated, owned by Read

	log log.Logger
}

// NewOto opens (or joins) the process-wide Oto context.
func NewOto(cfg config.AudioConfig) (*Oto, error) {
	frames := bitint.NextPowerOfTwo(cfg.FramesPerBuffer)
	latency := time.Duration(FramesToNanoseconds(frames, cfg.SampleRate))

	ctx, err := sharedContext(int(cfg.SampleRate), cfg.OutputChannels, latency)
	if err != nil {
		return nil, err
	}

	buf := make([][]float32, cfg.OutputChannels)
	for c := range buf {
		buf[c] = make([]float32, frames)
	}

	return &Oto{
		sampleRate: cfg.SampleRate,
		channels:   cfg.OutputChannels,
		latency:    latency,
		ctx:        ctx,
		gate:       NewStartGate(cfg.OutputChannels),
		buf:        buf,
		log:        log.Named("oto"),
	}, nil
}

func (o *Oto) AttachCallback(fn RenderFunc) {
	o.render.Store(&fn)
}

func (o *Oto) DeviceCount() int { return 1 }

func (o *Oto) DeviceDescription(index int) string {
	if index != 0 {
		return ""
	}
	return OtoDeviceDescription
}

func (o *Oto) IsOutputDevice(index int) bool { return index == 0 }

func (o *Oto) SetDevice(index int) error {
	if index != 0 {
		return fmt.Errorf("%w: oto exposes only the system default, got %d", ErrInvalidAudioDevice, index)
	}
	return nil
}

func (o *Oto) SampleRateHz() float64 { return o.sampleRate }

func (o *Oto) CurrentSystemTime() Timestamp {
	return Timestamp(time.Since(otoEpoch))
}

func (o *Oto) NanosecondsSince(t Timestamp) uint64 {
	return nanosecondsSince(o.CurrentSystemTime(), t)
}

func (o *Oto) Play() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.playing.Load() {
		return nil
	}
	if o.player == nil {
		o.player = o.ctx.NewPlayer(o)
		o.player.SetBufferSize(len(o.buf[0]) * o.channels * 4)
	}
	o.player.Play()
	o.playing.Store(true)
	return nil
}

func (o *Oto) PlayAt(t Timestamp) error {
	o.gate.Arm(t)
	return o.Play()
}

func (o *Oto) Stop() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.gate.Disarm()
	if !o.playing.Load() {
		return nil
	}
	o.playing.Store(false)
	o.player.Pause()
	return nil
}

func (o *Oto) Playing() bool {
	return o.playing.Load()
}

// Close releases the player. The shared context stays open.
func (o *Oto) Close() error {
	if err := o.Stop(); err != nil {
		return err
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	err := o.player.Close()
	o.player = nil
	return err
}

// Read implements io.Reader for the Oto player. It renders at most one
// pre-allocated buffer per call and interleaves it as float32 LE.
func (o *Oto) Read(p []byte) (int, error) {
	frameBytes := 4 * o.channels
	frames := min(len(p)/frameBytes, len(o.buf[0]))
	if frames == 0 {
		return 0, nil
	}

	out := o.buf
	for c := range out {
		out[c] = out[c][:frames]
	}
	silence(out)

	if fn := o.render.Load(); fn != nil && o.playing.Load() {
		t := o.CurrentSystemTime() + Timestamp(o.latency)
		o.gate.Render(out, t, o.sampleRate, *fn)
	}

	i := 0
	for f := range frames {
		for c := range out {
			binary.LittleEndian.PutUint32(p[i:], math.Float32bits(out[c][f]))
			i += 4
		}
	}
	for c := range out {
		out[c] = out[c][:cap(out[c])]
	}
	return frames * frameBytes, nil
}
