// SPDX-License-Identifier: MIT
package masker

import (
	"fmt"
	"math"
)

// Vibrotactile describes a burst train written to a spare output channel to
// drive a tactile transducer, starting a fixed delay after fade-in completes.
type Vibrotactile struct {
	Channel      int
	FrequencyHz  float64
	BurstSeconds float64
	GapSeconds   float64
	Bursts       int
	DelaySeconds float64
}

// vibrotactileBuffer is the rendered stimulus, immutable once published.
type vibrotactileBuffer struct {
	channel int
	delay   int
	samples []float32
}

// render synthesizes the burst train at sampleRate: full-scale sine
// bursts separated by silent gaps, with no trailing gap.
func (v Vibrotactile) render(sampleRate float64) (*vibrotactileBuffer, error) {
	if v.Channel < 0 {
		return nil, fmt.Errorf("vibrotactile channel %d is negative", v.Channel)
	}
	if v.Bursts < 1 || v.BurstSeconds <= 0 || v.GapSeconds < 0 || v.FrequencyHz <= 0 {
		return nil, fmt.Errorf("invalid vibrotactile stimulus: %+v", v)
	}

	burst := toSamples(v.BurstSeconds, sampleRate)
	gap := toSamples(v.GapSeconds, sampleRate)
	samples := make([]float32, v.Bursts*burst+(v.Bursts-1)*gap)

	for b := range v.Bursts {
		start := b * (burst + gap)
		for i := range burst {
			samples[start+i] = float32(math.Sin(2 * math.Pi * v.FrequencyHz * float64(i) / sampleRate))
		}
	}

	return &vibrotactileBuffer{
		channel: v.Channel,
		delay:   toSamples(v.DelaySeconds, sampleRate),
		samples: samples,
	}, nil
}
