// SPDX-License-Identifier: MIT
package audio

import (
	"time"

	"github.com/gordonklaus/portaudio"
)

// Device represents an audio output device.
type Device struct {
	ID                int
	Name              string
	HostAPI           string
	MaxOutputChannels int
	DefaultSampleRate float64
	LowLatency        time.Duration
	HighLatency       time.Duration
}

// Description is the human-readable name used to select the device.
func (d Device) Description() string {
	if d.HostAPI == "" {
		return d.Name
	}
	return d.Name + " (" + d.HostAPI + ")"
}

func deviceFromInfo(id int, info *portaudio.DeviceInfo) Device {
	d := Device{
		ID:                id,
		Name:              info.Name,
		MaxOutputChannels: info.MaxOutputChannels,
		DefaultSampleRate: info.DefaultSampleRate,
		LowLatency:        info.DefaultLowOutputLatency,
		HighLatency:       info.DefaultHighOutputLatency,
	}
	if info.HostApi != nil {
		d.HostAPI = info.HostApi.Name
	}
	return d
}

// OutputDevices returns every host device able to play audio.
// PortAudio must already be initialized.
func OutputDevices() ([]Device, error) {
	infos, err := paDevicesFunc()
	if err != nil {
		return nil, err
	}

	var devices []Device
	for i, info := range infos {
		if info.MaxOutputChannels > 0 {
			devices = append(devices, deviceFromInfo(i, info))
		}
	}
	return devices, nil
}
