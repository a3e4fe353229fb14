//go:build !pcap
// +build !pcap

package l1packets

import (
	"context"
	"fmt"
)

// PCAPSource is a stub when PCAP support is disabled.
// Build with -tags=pcap to enable PCAP replay.
type PCAPSource struct{}

// NewPCAPSource always fails without the pcap build tag.
func NewPCAPSource(pcapFile string, udpPort int) (*PCAPSource, error) {
	return nil, fmt.Errorf("PCAP support not enabled: rebuild with -tags=pcap to replay %s", pcapFile)
}

// Next is never reached; NewPCAPSource cannot succeed.
func (s *PCAPSource) Next(ctx context.Context) (*Packet, error) {
	return nil, fmt.Errorf("PCAP support not enabled")
}

// Close is a no-op.
func (s *PCAPSource) Close() error { return nil }
