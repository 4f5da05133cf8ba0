// SPDX-License-Identifier: MIT
package audio

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"sinplayer/internal/config"
	"sinplayer/internal/log"

	"github.com/gordonklaus/portaudio"
)

// PortAudio is an output-only Backend over a PortAudio stream. The stream
// is opened lazily and kept open across Stop so its clock stays readable.
type PortAudio struct {
	mu sync.Mutex

	// Core configuration and device selection.
	config  config.AudioConfig
	devices []*portaudio.DeviceInfo
	device  *portaudio.DeviceInfo
	latency time.Duration

	// Stream state, owned by the control goroutine.
	stream   *portaudio.Stream
	channels int
	playing  atomic.Bool

	// Read by the callback once the stream is running.
	render RenderFunc
	gate   *StartGate

	log log.Logger
}

// NewPortAudio enumerates the host devices and selects the default output.
// PortAudio must already be initialized.
func NewPortAudio(cfg config.AudioConfig) (*PortAudio, error) {
	devices, err := paDevicesFunc()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate devices: %w", err)
	}

	p := &PortAudio{
		config:  cfg,
		devices: devices,
		gate:    NewStartGate(cfg.OutputChannels),
		log:     log.Named("portaudio"),
	}

	device, err := paLibDefaultOutputDeviceFunc()
	if err != nil {
		return nil, fmt.Errorf("%w: no default output: %v", ErrInvalidAudioDevice, err)
	}
	p.selectDevice(device)
	return p, nil
}

func (p *PortAudio) selectDevice(device *portaudio.DeviceInfo) {
	p.device = device
	if p.config.LowLatency {
		p.latency = device.DefaultLowOutputLatency
	} else {
		p.latency = device.DefaultHighOutputLatency
	}
	p.channels = min(p.config.OutputChannels, device.MaxOutputChannels)
}

func (p *PortAudio) AttachCallback(fn RenderFunc) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.render = fn
}

func (p *PortAudio) DeviceCount() int {
	return len(p.devices)
}

func (p *PortAudio) DeviceDescription(index int) string {
	if index < 0 || index >= len(p.devices) {
		return ""
	}
	return deviceFromInfo(index, p.devices[index]).Description()
}

func (p *PortAudio) IsOutputDevice(index int) bool {
	return index >= 0 && index < len(p.devices) && p.devices[index].MaxOutputChannels > 0
}

// SetDevice switches the output device. The open stream, if any, is closed.
func (p *PortAudio) SetDevice(index int) error {
	if !p.IsOutputDevice(index) {
		return fmt.Errorf("%w: index %d", ErrInvalidAudioDevice, index)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing.Load() {
		return ErrBackendBusy
	}
	if err := p.closeLocked(); err != nil {
		return err
	}
	p.selectDevice(p.devices[index])
	p.log.Infof("output device: %s", p.DeviceDescription(index))
	return nil
}

func (p *PortAudio) SampleRateHz() float64 {
	return p.config.SampleRate
}

// openLocked opens the output stream on the selected device.
func (p *PortAudio) openLocked() error {
	if p.stream != nil {
		return nil
	}
	params := portaudio.StreamParameters{
		Input: portaudio.StreamDeviceParameters{
			Channels: 0, // No input device
			Device:   nil,
		},
		Output: portaudio.StreamDeviceParameters{
			Channels: p.channels,
			Device:   p.device,
			Latency:  p.latency,
		},
		FramesPerBuffer: p.config.FramesPerBuffer,
		SampleRate:      p.config.SampleRate,
	}

	stream, err := portaudio.OpenStream(params, p.process)
	if err != nil {
		return fmt.Errorf("failed to open output stream on %q: %w", p.device.Name, err)
	}
	p.stream = stream
	return nil
}

func (p *PortAudio) Play() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.playing.Load() {
		return nil
	}
	if err := p.openLocked(); err != nil {
		return err
	}
	if err := p.stream.Start(); err != nil {
		return fmt.Errorf("failed to start output stream: %w", err)
	}
	p.playing.Store(true)
	return nil
}

func (p *PortAudio) PlayAt(t Timestamp) error {
	p.gate.Arm(t)
	return p.Play()
}

func (p *PortAudio) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.gate.Disarm()
	if !p.playing.Load() {
		return nil
	}
	p.playing.Store(false)
	if err := p.stream.Stop(); err != nil {
		return fmt.Errorf("failed to stop output stream: %w", err)
	}
	return nil
}

func (p *PortAudio) Playing() bool {
	return p.playing.Load()
}

// CurrentSystemTime reads the stream clock, opening the stream if needed.
func (p *PortAudio) CurrentSystemTime() Timestamp {
	p.mu.Lock()
	defer p.mu.Unlock()

	if err := p.openLocked(); err != nil {
		p.log.Warnf("stream clock unavailable: %v", err)
		return 0
	}
	return Timestamp(p.stream.Time())
}

func (p *PortAudio) NanosecondsSince(t Timestamp) uint64 {
	return nanosecondsSince(p.CurrentSystemTime(), t)
}

// Close stops and releases the stream.
func (p *PortAudio) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeLocked()
}

func (p *PortAudio) closeLocked() error {
	if p.stream == nil {
		return nil
	}
	err := p.stream.Close()
	p.stream = nil
	if err != nil {
		return fmt.Errorf("failed to close output stream: %w", err)
	}
	return nil
}

// process is the PortAudio callback.
// Performance Critical:
// - Runs on the PortAudio callback thread
// - Uses pre-allocated buffers only
// - No dynamic allocations in the hot path
func (p *PortAudio) process(out [][]float32, timeInfo portaudio.StreamCallbackTimeInfo) {
	silence(out)
	p.gate.Render(out, Timestamp(timeInfo.OutputBufferDacTime), p.config.SampleRate, p.render)
}
