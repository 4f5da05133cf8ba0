// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"sinplayer/internal/audio"
	"sinplayer/internal/transport"
)

// UDPPublisher sends every event as one binary packet and, while started,
// a heartbeat carrying the current device time so a receiver can map the
// device clock onto its own.
type UDPPublisher struct {
	sender   *UDPSender
	clock    func() audio.Timestamp // Device clock for heartbeats; nil disables them.
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sendMu       sync.Mutex // Serializes packing and sequence numbers.
	sequenceNum  uint32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher over sender. Heartbeats are sent
// every interval from clock; a non-positive interval defaults to one second.
func NewUDPPublisher(interval time.Duration, sender *UDPSender, clock func() audio.Timestamp) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}
	if interval <= 0 {
		interval = time.Second
		logger.Warnf("invalid heartbeat interval, defaulting to %s", interval)
	}
	return &UDPPublisher{
		sender:       sender,
		clock:        clock,
		interval:     interval,
		packetBuffer: bytes.NewBuffer(make([]byte, 0, PacketSize)),
	}, nil
}

// Start begins sending heartbeats. Calling Start again while running is a no-op.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil || p.clock == nil {
		p.mu.Unlock()
		return
	}
	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}
	ticker := p.ticker
	doneChan := p.doneChan
	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		logger.Debugf("heartbeat every %s", p.interval)
		for {
			select {
			case <-ticker.C:
				if err := p.Send(transport.Event{Kind: transport.KindHeartbeat, Time: p.clock()}); err != nil {
					logger.Debugf("heartbeat: %v", err)
				}
			case <-doneChan:
				return
			}
		}
	}()
}

// Stop ends heartbeats and waits for the goroutine to exit.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		return nil
	}
	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})
	p.mu.Unlock()

	p.wg.Wait()
	return nil
}

/*
UDP Packet Structure (BigEndian)

+--------------------------------------------------------------------------+
| Field           | Data Type | Size (Bytes) | Description                 |
|-----------------|-----------|--------------|-----------------------------|
| Sequence Number | uint32    | 4            | Monotonically increasing    |
| Kind            | uint8     | 1            | transport.Kind              |
| Timestamp       | int64     | 8            | Device time in nanoseconds  |
| Sample Offset   | uint32    | 4            | Frame offset within buffer  |
+--------------------------------------------------------------------------+
*/

// PacketSize is the length of every packet.
const PacketSize = 4 + 1 + 8 + 4

// Packet is a decoded packet.
type Packet struct {
	Sequence     uint32
	Kind         transport.Kind
	Time         audio.Timestamp
	SampleOffset uint32
}

// Send packs e with the next sequence number and sends it.
func (p *UDPPublisher) Send(e transport.Event) error {
	p.sendMu.Lock()
	defer p.sendMu.Unlock()

	p.sequenceNum++
	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, Packet{
		Sequence:     p.sequenceNum,
		Kind:         e.Kind,
		Time:         e.Time,
		SampleOffset: uint32(max(e.SampleOffset, 0)),
	})
	if err != nil {
		return fmt.Errorf("failed to pack %s: %w", e.Kind, err)
	}
	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		return err
	}
	logger.Debugf("sent packet %d (%s)", p.sequenceNum, e.Kind)
	return nil
}

// ParsePacket decodes a packet produced by Send.
func ParsePacket(data []byte) (Packet, error) {
	var pkt Packet
	if len(data) != PacketSize {
		return pkt, fmt.Errorf("packet is %d bytes, want %d", len(data), PacketSize)
	}
	err := binary.Read(bytes.NewReader(data), binary.BigEndian, &pkt)
	return pkt, err
}

// Close stops heartbeats and closes the sender.
func (p *UDPPublisher) Close() error {
	if err := p.Stop(); err != nil {
		return err
	}
	return p.sender.Close()
}

var _ transport.Transport = (*UDPPublisher)(nil)
