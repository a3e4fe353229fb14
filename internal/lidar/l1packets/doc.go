// Package l1packets owns Layer 1 (Packets) of the LiDAR sample model.
//
// Responsibilities: the Packet record delivered by the simulator once per
// tick, validation at the ingestion boundary, JSON decoding of packet
// files and datagrams, and the packet sources that feed the pipeline
// (episode directories, UDP, PCAP replay, in-memory slices).
//
// Dependency rule: L1 has no inward dependencies on higher layers.
package l1packets
