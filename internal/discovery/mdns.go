// SPDX-License-Identifier: MIT

// Package discovery advertises the sync-event websocket over mDNS so an
// eye-tracker bridge on the lab network can find the player.
package discovery

import (
	"fmt"
	"net"
	"sync"

	applog "sinplayer/internal/log"
	"sinplayer/internal/transport"

	"github.com/hashicorp/mdns"
)

// ServiceType is the DNS-SD service the player registers.
const ServiceType = "_sinplayer-sync._tcp"

// Config holds advertisement settings.
type Config struct {
	ServiceName string
	Port        int
}

// Advertiser owns a running mDNS responder.
type Advertiser struct {
	server *mdns.Server
	once   sync.Once
	log    applog.Logger
}

// Service builds the mDNS record for cfg on ips.
func Service(cfg Config, ips []net.IP) (*mdns.MDNSService, error) {
	if cfg.Port <= 0 {
		return nil, fmt.Errorf("invalid advertised port %d", cfg.Port)
	}
	service, err := mdns.NewMDNSService(
		cfg.ServiceName,
		ServiceType,
		"",
		"",
		cfg.Port,
		ips,
		[]string{"path=" + transport.WebSocketPath},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return service, nil
}

// Advertise starts answering mDNS queries for cfg until Close.
func Advertise(cfg Config) (*Advertiser, error) {
	ips, err := localIPs()
	if err != nil {
		return nil, fmt.Errorf("failed to get local IPs: %w", err)
	}
	service, err := Service(cfg, ips)
	if err != nil {
		return nil, err
	}

	server, err := mdns.NewServer(&mdns.Config{Zone: service})
	if err != nil {
		return nil, fmt.Errorf("failed to create mdns server: %w", err)
	}

	a := &Advertiser{server: server, log: applog.Named("discovery")}
	a.log.Infof("advertising %s as %q on port %d", ServiceType, cfg.ServiceName, cfg.Port)
	return a, nil
}

// Close stops the responder.
func (a *Advertiser) Close() error {
	var err error
	a.once.Do(func() {
		err = a.server.Shutdown()
	})
	return err
}

// localIPs returns the host's non-loopback IPv4 addresses.
func localIPs() ([]net.IP, error) {
	var ips []net.IP

	ifaces, err := net.Interfaces()
	if err != nil {
		return nil, err
	}

	for _, iface := range ifaces {
		if iface.Flags&net.FlagUp == 0 || iface.Flags&net.FlagLoopback != 0 {
			continue
		}

		addrs, err := iface.Addrs()
		if err != nil {
			continue
		}

		for _, addr := range addrs {
			if ipnet, ok := addr.(*net.IPNet); ok && !ipnet.IP.IsLoopback() {
				if ipnet.IP.To4() != nil {
					ips = append(ips, ipnet.IP)
				}
			}
		}
	}

	return ips, nil
}
