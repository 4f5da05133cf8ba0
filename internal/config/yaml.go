// SPDX-License-Identifier: MIT
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	applog "sinplayer/internal/log"
	"sinplayer/pkg/bitint"

	"gopkg.in/yaml.v3"
)

var logger = applog.Named("config")

// LoadConfig loads configuration from a YAML file specified by path. If path is empty,
// it searches the default locations. If no file is found, it uses built-in defaults.
// After loading defaults or from file, it applies environment variable overrides and
// validates the final configuration.
func LoadConfig(path string) (*Config, error) {
	cfg := NewConfig()

	if path == "" {
		candidates := []string{
			"sinplayer.yaml",
			"config.yaml",
		}
		for _, candidate := range candidates {
			if _, err := os.Stat(candidate); err == nil {
				path = candidate
				break
			}
		}
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
		logger.Debugf("loaded %s", path)
	}

	// Apply environment variable overrides AFTER loading from file.
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate rejects configurations the engine cannot honor.
func (c *Config) Validate() error {
	a := c.Audio
	switch a.Backend {
	case BackendPortAudio, BackendOto:
	default:
		return fmt.Errorf("audio.backend %q is not one of %q, %q", a.Backend, BackendPortAudio, BackendOto)
	}
	if a.SampleRate < MinSampleRate || a.SampleRate > MaxSampleRate {
		return fmt.Errorf("audio.sample_rate %.0f outside [%d, %d]", a.SampleRate, MinSampleRate, MaxSampleRate)
	}
	if !bitint.IsPowerOfTwo(a.FramesPerBuffer) || a.FramesPerBuffer > MaxBufferFrames {
		return fmt.Errorf("audio.frames_per_buffer %d must be a power of two no larger than %d", a.FramesPerBuffer, MaxBufferFrames)
	}
	if a.OutputChannels < 1 {
		return fmt.Errorf("audio.output_channels must be positive, got %d", a.OutputChannels)
	}
	if a.PollInterval < MinPollInterval || a.PollInterval > MaxPollInterval {
		return fmt.Errorf("audio.poll_interval %s outside [%s, %s]", a.PollInterval, MinPollInterval, MaxPollInterval)
	}

	m := c.Masker
	if m.RampSeconds < 0 {
		return fmt.Errorf("masker.ramp_seconds must not be negative, got %g", m.RampSeconds)
	}
	if m.SteadyLevelSeconds < 0 {
		return fmt.Errorf("masker.steady_level_seconds must not be negative, got %g", m.SteadyLevelSeconds)
	}
	if m.SeekSeconds < 0 {
		return fmt.Errorf("masker.seek_seconds must not be negative, got %g", m.SeekSeconds)
	}
	switch m.Channels {
	case ChannelsAll, ChannelsFirst, ChannelsSecond:
	default:
		return fmt.Errorf("masker.channels %q is not one of all, first, second", m.Channels)
	}
	for ch, d := range m.ChannelDelays {
		if ch < 0 {
			return fmt.Errorf("masker.channel_delays: negative channel %d", ch)
		}
		if d < 0 {
			return fmt.Errorf("masker.channel_delays[%d]: negative delay %g", ch, d)
		}
	}

	if c.Target.FringeSeconds < 0 {
		return fmt.Errorf("target.fringe_seconds must not be negative, got %g", c.Target.FringeSeconds)
	}

	if v := c.Vibrotactile; v.Enabled {
		if v.Channel < 0 || v.Channel >= a.OutputChannels {
			return fmt.Errorf("vibrotactile.channel %d not among %d output channels", v.Channel, a.OutputChannels)
		}
		if v.FrequencyHz <= 0 || v.FrequencyHz >= a.SampleRate/2 {
			return fmt.Errorf("vibrotactile.frequency_hz %g must be in (0, %g)", v.FrequencyHz, a.SampleRate/2)
		}
		if v.Bursts < 1 || v.BurstSeconds <= 0 || v.GapSeconds < 0 || v.DelaySeconds < 0 {
			return fmt.Errorf("vibrotactile burst train is invalid: %+v", v)
		}
	}

	if c.Discovery.Enabled && c.Transport.WebSocketAddress == "" {
		return fmt.Errorf("discovery.enabled requires transport.websocket_address")
	}
	return nil
}

// applyEnvOverrides lets a lab rig override per-machine settings without
// editing the shared YAML file.
func (cfg *Config) applyEnvOverrides() {
	// ENV_LOG_LEVEL
	if val, ok := os.LookupEnv("ENV_LOG_LEVEL"); ok {
		cfg.LogLevel = val
		logger.Infof("overriding log_level from env: %s", val)
	}

	// ENV_AUDIO_{...}
	// These are specific to the device.

	// ENV_AUDIO_BACKEND
	if val, ok := os.LookupEnv("ENV_AUDIO_BACKEND"); ok {
		cfg.Audio.Backend = val
		logger.Infof("overriding audio.backend from env: %s", val)
	}
	// ENV_AUDIO_DEVICE
	if val, ok := os.LookupEnv("ENV_AUDIO_DEVICE"); ok {
		cfg.Audio.OutputDevice = val
		logger.Infof("overriding audio.output_device from env: %s", val)
	}
	// ENV_AUDIO_SAMPLE_RATE
	if val, ok := os.LookupEnv("ENV_AUDIO_SAMPLE_RATE"); ok {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			cfg.Audio.SampleRate = f
			logger.Infof("overriding audio.sample_rate from env: %g", f)
		}
	}
	// ENV_AUDIO_POLL_INTERVAL
	if val, ok := os.LookupEnv("ENV_AUDIO_POLL_INTERVAL"); ok {
		if dur, err := time.ParseDuration(val); err == nil {
			cfg.Audio.PollInterval = dur
			logger.Infof("overriding audio.poll_interval from env: %s", dur)
		}
	}

	// ENV_WS_ADDRESS / ENV_UDP_TARGET_ADDRESS
	// These are specific to the transport layer.
	if val, ok := os.LookupEnv("ENV_WS_ADDRESS"); ok {
		cfg.Transport.WebSocketAddress = val
		logger.Infof("overriding transport.websocket_address from env: %s", val)
	}
	if val, ok := os.LookupEnv("ENV_UDP_TARGET_ADDRESS"); ok {
		cfg.Transport.UDPTargetAddress = val
		logger.Infof("overriding transport.udp_target_address from env: %s", val)
	}
}
