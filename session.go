// SPDX-License-Identifier: MIT
package main

import (
	"errors"
	"fmt"

	"sinplayer/internal/audio"
	"sinplayer/internal/config"
	"sinplayer/internal/decode"
	"sinplayer/internal/discovery"
	"sinplayer/internal/log"
	"sinplayer/internal/masker"
	"sinplayer/internal/target"
	"sinplayer/internal/timer"
	"sinplayer/internal/transport"
	"sinplayer/internal/transport/udp"
)

var errNoMasker = errors.New("no masker file: set masker.file or pass --masker")

// device is a Backend that owns host resources.
type device interface {
	audio.Backend
	Close() error
}

// newDevice opens the configured backend.
func newDevice(cfg config.AudioConfig) (device, error) {
	switch cfg.Backend {
	case config.BackendOto:
		return audio.NewOto(cfg)
	default:
		return audio.NewPortAudio(cfg)
	}
}

// newMasker builds a masker on b and applies every masker setting in cfg.
func newMasker(b audio.Backend, reader decode.Reader, cfg *config.Config) (*masker.Player, error) {
	p := masker.New(b, reader, timer.New())
	p.SetPollInterval(cfg.Audio.PollInterval)

	if cfg.Audio.OutputDevice != "" {
		if err := p.SetAudioDevice(cfg.Audio.OutputDevice); err != nil {
			return nil, err
		}
	}

	m := cfg.Masker
	if err := p.LoadFile(m.File); err != nil {
		return nil, err
	}
	p.SetLevel(m.LevelDB)
	p.SetRampDurationSeconds(m.RampSeconds)
	p.SetSteadyLevelDurationSeconds(m.SteadyLevelSeconds)
	p.SeekSeconds(m.SeekSeconds)

	switch m.Channels {
	case config.ChannelsFirst:
		p.UseFirstChannelOnly()
	case config.ChannelsSecond:
		p.UseSecondChannelOnly()
	default:
		p.UseAllChannels()
	}

	p.ClearChannelDelays()
	for ch, seconds := range m.ChannelDelays {
		p.SetChannelDelaySeconds(ch, seconds)
	}

	if v := cfg.Vibrotactile; v.Enabled {
		err := p.PrepareVibrotactileStimulus(masker.Vibrotactile{
			Channel:      v.Channel,
			FrequencyHz:  v.FrequencyHz,
			BurstSeconds: v.BurstSeconds,
			GapSeconds:   v.GapSeconds,
			Bursts:       v.Bursts,
			DelaySeconds: v.DelaySeconds,
		})
		if err != nil {
			return nil, err
		}
		p.EnableVibrotactileStimulus()
	} else {
		p.DisableVibrotactileStimulus()
	}

	log.Infof("masker %s: %.2fs, %d channels, %.1f dBov",
		m.File, p.DurationSeconds(), p.Channels(), p.DigitalLevel())
	return p, nil
}

// newTarget builds a target on b and applies every target setting in cfg.
func newTarget(b audio.Backend, reader decode.Reader, cfg *config.Config) (*target.Player, error) {
	p := target.New(b, reader, timer.New())
	p.SetPollInterval(cfg.Audio.PollInterval)

	if cfg.Audio.OutputDevice != "" {
		if err := p.SetAudioDevice(cfg.Audio.OutputDevice); err != nil {
			return nil, err
		}
	}

	t := cfg.Target
	if err := p.LoadFile(t.File); err != nil {
		return nil, err
	}
	p.SetLevel(t.LevelDB)
	if t.FirstChannelOnly {
		p.UseFirstChannelOnly()
	} else {
		p.UseAllChannels()
	}

	log.Infof("target %s: %.2fs, %.1f dBov", t.File, p.DurationSeconds(), p.DigitalLevel())
	return p, nil
}

// publisher fans sync events out to every configured transport and owns
// the mDNS advertisement of the websocket.
type publisher struct {
	transport.Fanout
	advertiser *discovery.Advertiser
}

// newPublisher opens the transports named in cfg. clock stamps UDP
// heartbeats with device time.
func newPublisher(cfg *config.Config, clock func() audio.Timestamp) (*publisher, error) {
	p := &publisher{}
	tc := cfg.Transport

	if tc.LogEvents {
		p.Fanout = append(p.Fanout, transport.NewLoggingTransport())
	}

	if tc.WebSocketAddress != "" {
		ws, err := transport.NewWebSocketTransport(tc.WebSocketAddress)
		if err != nil {
			p.Close()
			return nil, err
		}
		p.Fanout = append(p.Fanout, ws)

		if cfg.Discovery.Enabled {
			adv, err := discovery.Advertise(discovery.Config{
				ServiceName: cfg.Discovery.ServiceName,
				Port:        ws.Port(),
			})
			if err != nil {
				p.Close()
				return nil, fmt.Errorf("failed to advertise sync endpoint: %w", err)
			}
			p.advertiser = adv
		}
	}

	if tc.UDPTargetAddress != "" {
		sender, err := udp.NewUDPSender(tc.UDPTargetAddress)
		if err != nil {
			p.Close()
			return nil, err
		}
		pub, err := udp.NewUDPPublisher(tc.HeartbeatInterval, sender, clock)
		if err != nil {
			sender.Close()
			p.Close()
			return nil, err
		}
		pub.Start()
		p.Fanout = append(p.Fanout, pub)
	}

	return p, nil
}

// Close withdraws the advertisement, then closes every transport.
func (p *publisher) Close() error {
	var err error
	if p.advertiser != nil {
		err = p.advertiser.Close()
	}
	return errors.Join(err, p.Fanout.Close())
}
