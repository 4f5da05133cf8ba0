// SPDX-License-Identifier: MIT

// Package transport publishes trial sync events to whoever needs to line up
// with the audio: an eye-tracker bridge over websocket, a second stream
// over UDP, or the log.
package transport

import (
	"errors"
	"fmt"

	"sinplayer/internal/audio"

	"github.com/google/uuid"
)

// Kind identifies what happened at an event's device time.
type Kind uint8

const (
	KindHeartbeat Kind = iota
	KindFadeInComplete
	KindTargetScheduled
	KindTargetComplete
	KindFadeOutComplete
)

var kindNames = [...]string{
	KindHeartbeat:       "heartbeat",
	KindFadeInComplete:  "fade_in_complete",
	KindTargetScheduled: "target_scheduled",
	KindTargetComplete:  "target_complete",
	KindFadeOutComplete: "fade_out_complete",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// MarshalText encodes a Kind by name in JSON.
func (k Kind) MarshalText() ([]byte, error) {
	if int(k) >= len(kindNames) {
		return nil, fmt.Errorf("unknown event kind %d", uint8(k))
	}
	return []byte(k.String()), nil
}

func (k *Kind) UnmarshalText(text []byte) error {
	for i, name := range kindNames {
		if name == string(text) {
			*k = Kind(i)
			return nil
		}
	}
	return fmt.Errorf("unknown event kind %q", text)
}

// Event is one sync point. Time is on the device clock of the player that
// produced it; SampleOffset locates the sample inside the buffer at Time.
type Event struct {
	Trial        uuid.UUID       `json:"trial"`
	Kind         Kind            `json:"kind"`
	Time         audio.Timestamp `json:"time_ns"`
	SampleOffset int             `json:"sample_offset"`
	SampleRate   float64         `json:"sample_rate"`
}

// Transport sends events. Implementations must be safe for concurrent use.
type Transport interface {
	Send(e Event) error
	Close() error
}

// Fanout sends every event to each of its transports.
type Fanout []Transport

func (f Fanout) Send(e Event) error {
	var errs []error
	for _, t := range f {
		if err := t.Send(e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f Fanout) Close() error {
	var errs []error
	for _, t := range f {
		if err := t.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

var _ Transport = Fanout(nil)
