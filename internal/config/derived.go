// SPDX-License-Identifier: MIT
package config

// PollIntervalSeconds returns the control-path poll period in seconds.
func (c *Config) PollIntervalSeconds() float64 {
	return c.Audio.PollInterval.Seconds()
}

// HasTarget reports whether a trial plays a target over the masker.
func (c *Config) HasTarget() bool {
	return c.Target.File != ""
}

// SampleCount converts seconds to whole frames at the configured rate.
func (c *Config) SampleCount(seconds float64) int {
	return int(seconds * c.Audio.SampleRate)
}
