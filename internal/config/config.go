// SPDX-License-Identifier: MIT
package config

import "time"

// Core configuration constants that define the boundaries and defaults
// for the playback engine.
const (
	DefaultBackend         = BackendPortAudio
	DefaultSampleRate      = 48000 // Calibrated rigs run at 48 kHz
	DefaultFramesPerBuffer = 256   // ~5ms at 48 kHz
	DefaultOutputChannels  = 2
	DefaultPollInterval    = 33 * time.Millisecond
	DefaultRampSeconds     = 0.5
	DefaultMaskerLevelDB   = -20.0
	DefaultTargetLevelDB   = -20.0
	DefaultFringeSeconds   = 0.3
	DefaultHeartbeat       = time.Second
	DefaultLogLevel        = "info"

	DefaultVibrotactileChannel   = 2
	DefaultVibrotactileFrequency = 250.0
	DefaultVibrotactileBurst     = 0.1
	DefaultVibrotactileGap       = 0.1
	DefaultVibrotactileBursts    = 3

	DefaultServiceName = "sinplayer"

	// Hardware and processing limits
	MinSampleRate   = 8000
	MaxSampleRate   = 192000
	MaxBufferFrames = 8192
	MinPollInterval = 10 * time.Millisecond
	MaxPollInterval = 100 * time.Millisecond
)

// Backend names accepted by audio.backend.
const (
	BackendPortAudio = "portaudio"
	BackendOto       = "oto"
)

// Channel selections accepted by masker.channels.
const (
	ChannelsAll    = "all"
	ChannelsFirst  = "first"
	ChannelsSecond = "second"
)

// Config represents the main application configuration structure, loaded from YAML.
type Config struct {
	LogLevel     string             `yaml:"log_level"`       // Logging level ("debug", "info", "warn", "error").
	Command      string             `yaml:"-"`               // One-off command chosen on the command line.
	Audio        AudioConfig        `yaml:"audio"`           // Device and stream settings.
	Masker       MaskerConfig       `yaml:"masker"`          // Masker (noise) playback.
	Target       TargetConfig       `yaml:"target"`          // Target (speech) playback.
	Vibrotactile VibrotactileConfig `yaml:"vibrotactile"`    // Tactile overlay written to a spare output channel.
	Transport    TransportConfig    `yaml:"transport"`       // Sync-event publication.
	Discovery    DiscoveryConfig    `yaml:"discovery"`       // mDNS advertisement of the sync endpoint.
	RenderOutput string             `yaml:"render_output"`   // Output WAV path for the render command.
	RenderLength time.Duration      `yaml:"render_duration"` // Upper bound on an offline render.
}

// AudioConfig holds settings related to the output device and stream.
type AudioConfig struct {
	Backend         string        `yaml:"backend"`           // "portaudio" or "oto".
	OutputDevice    string        `yaml:"output_device"`     // Device description; empty selects the host default.
	SampleRate      float64       `yaml:"sample_rate"`       // Stream sample rate in Hz.
	FramesPerBuffer int           `yaml:"frames_per_buffer"` // Frames per callback (power of two).
	LowLatency      bool          `yaml:"low_latency"`       // Request the device's low output latency.
	OutputChannels  int           `yaml:"output_channels"`   // Channels opened on the device.
	PollInterval    time.Duration `yaml:"poll_interval"`     // Control-path poll period for completion flags.
}

// MaskerConfig holds settings for the looping masker.
type MaskerConfig struct {
	File               string          `yaml:"file"`                 // Masker audio file.
	LevelDB            float64         `yaml:"level_db"`             // Digital amplification in dB.
	RampSeconds        float64         `yaml:"ramp_seconds"`         // Raised-cosine fade duration.
	SteadyLevelSeconds float64         `yaml:"steady_level_seconds"` // Auto fade-out after this long at level; 0 holds until asked.
	SeekSeconds        float64         `yaml:"seek_seconds"`         // Start position inside the masker.
	Channels           string          `yaml:"channels"`             // "all", "first" or "second".
	ChannelDelays      map[int]float64 `yaml:"channel_delays"`       // Channel index -> start delay in seconds.
}

// TargetConfig holds settings for the scheduled target.
type TargetConfig struct {
	File             string  `yaml:"file"`               // Target audio file; empty runs the masker alone.
	LevelDB          float64 `yaml:"level_db"`           // Digital amplification in dB.
	FringeSeconds    float64 `yaml:"fringe_seconds"`     // Delay after masker fade-in before the target starts.
	FirstChannelOnly bool    `yaml:"first_channel_only"` // Route the target to the first channel only.
}

// VibrotactileConfig describes the burst train written to a spare channel.
type VibrotactileConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Channel      int     `yaml:"channel"`
	FrequencyHz  float64 `yaml:"frequency_hz"`
	BurstSeconds float64 `yaml:"burst_seconds"`
	GapSeconds   float64 `yaml:"gap_seconds"`
	Bursts       int     `yaml:"bursts"`
	DelaySeconds float64 `yaml:"delay_seconds"` // Measured from masker fade-in completion.
}

// TransportConfig holds settings for publishing sync events.
type TransportConfig struct {
	WebSocketAddress string `yaml:"websocket_address"`  // e.g. ":8927"; empty disables the websocket.
	UDPTargetAddress string `yaml:"udp_target_address"` // e.g. "127.0.0.1:9090"; empty disables UDP.
	LogEvents        bool   `yaml:"log_events"`         // Also write every event to the log.

	HeartbeatInterval time.Duration `yaml:"heartbeat_interval"` // UDP device-clock heartbeat period.
}

// DiscoveryConfig controls mDNS advertisement of the websocket endpoint.
type DiscoveryConfig struct {
	Enabled     bool   `yaml:"enabled"`
	ServiceName string `yaml:"service_name"`
}

// NewConfig creates a new Config instance with default values.
func NewConfig() *Config {
	return &Config{
		LogLevel: DefaultLogLevel,
		Audio: AudioConfig{
			Backend:         DefaultBackend,
			SampleRate:      DefaultSampleRate,
			FramesPerBuffer: DefaultFramesPerBuffer,
			OutputChannels:  DefaultOutputChannels,
			PollInterval:    DefaultPollInterval,
		},
		Masker: MaskerConfig{
			LevelDB:     DefaultMaskerLevelDB,
			RampSeconds: DefaultRampSeconds,
			Channels:    ChannelsAll,
		},
		Target: TargetConfig{
			LevelDB:       DefaultTargetLevelDB,
			FringeSeconds: DefaultFringeSeconds,
		},
		Vibrotactile: VibrotactileConfig{
			Channel:      DefaultVibrotactileChannel,
			FrequencyHz:  DefaultVibrotactileFrequency,
			BurstSeconds: DefaultVibrotactileBurst,
			GapSeconds:   DefaultVibrotactileGap,
			Bursts:       DefaultVibrotactileBursts,
		},
		Transport: TransportConfig{
			LogEvents:         true,
			HeartbeatInterval: DefaultHeartbeat,
		},
		Discovery: DiscoveryConfig{
			ServiceName: DefaultServiceName,
		},
		RenderLength: time.Minute,
	}
}
