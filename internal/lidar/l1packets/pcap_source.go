//go:build pcap
// +build pcap

package l1packets

import (
	"context"
	"fmt"
	"io"

	"github.com/google/gopacket"
	"github.com/google/gopacket/layers"
	"github.com/google/gopacket/pcap"

	"github.com/banshee-data/lidar-samples/internal/lidar"
)

// PCAPSource replays JSON packets captured as UDP datagrams.
// This source is only available when building with the 'pcap' build tag.
type PCAPSource struct {
	handle  *pcap.Handle
	packets chan gopacket.Packet
	count   int
}

// NewPCAPSource opens a capture file and filters it to the given UDP port.
func NewPCAPSource(pcapFile string, udpPort int) (*PCAPSource, error) {
	handle, err := pcap.OpenOffline(pcapFile)
	if err != nil {
		return nil, fmt.Errorf("failed to open PCAP file %s: %w", pcapFile, err)
	}
	filterStr := fmt.Sprintf("udp port %d", udpPort)
	if err := handle.SetBPFFilter(filterStr); err != nil {
		handle.Close()
		return nil, fmt.Errorf("failed to set BPF filter '%s': %w", filterStr, err)
	}
	lidar.Opsf("PCAP BPF filter set: %s", filterStr)

	src := gopacket.NewPacketSource(handle, handle.LinkType())
	return &PCAPSource{handle: handle, packets: src.Packets()}, nil
}

// Next returns the next decoded packet from the capture or io.EOF.
func (s *PCAPSource) Next(ctx context.Context) (*Packet, error) {
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case raw, ok := <-s.packets:
			if !ok || raw == nil {
				lidar.Opsf("PCAP replay complete: %d packets", s.count)
				return nil, io.EOF
			}
			udpLayer := raw.Layer(layers.LayerTypeUDP)
			if udpLayer == nil {
				continue
			}
			udp, ok := udpLayer.(*layers.UDP)
			if !ok || len(udp.Payload) == 0 {
				continue
			}
			s.count++
			p, err := DecodeJSON(udp.Payload)
			if err != nil {
				return nil, fmt.Errorf("PCAP packet %d: %w", s.count, err)
			}
			return p, nil
		}
	}
}

// Close releases the capture handle.
func (s *PCAPSource) Close() error {
	s.handle.Close()
	return nil
}
