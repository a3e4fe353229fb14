package l2scans

import (
	"errors"
	"fmt"

	"github.com/banshee-data/lidar-samples/internal/lidar"
	"github.com/banshee-data/lidar-samples/internal/lidar/l1packets"
)

// ScanAccumulator collects packets until one revolution's worth of points
// has arrived. Completion is judged from channel 0's running count, on the
// assumption that the simulator advances every channel in lockstep; set
// ScanConfig.StrictChannelCounts to reject packets that break that
// assumption instead.
//
// Ingest is O(1): packets are retained as-is and reshaped by ScanEncoder
// only once the scan completes.
type ScanAccumulator struct {
	cfg    ScanConfig
	target int

	pending  []*l1packets.Packet
	captured int   // channel-0 points since the last reset
	seq      int64 // packets offered to Ingest over the accumulator's lifetime
}

// NewScanAccumulator validates cfg and returns an empty accumulator.
func NewScanAccumulator(cfg ScanConfig) (*ScanAccumulator, error) {
	target, err := cfg.TargetPointsPerChannel()
	if err != nil {
		return nil, err
	}
	return &ScanAccumulator{cfg: cfg, target: target}, nil
}

// Ingest validates p and adds it to the pending scan. It reports true once
// the captured channel-0 count has reached the per-channel target. A
// rejected packet leaves the accumulator unchanged and yields a
// *l1packets.MalformedPacketError.
func (a *ScanAccumulator) Ingest(p *l1packets.Packet) (bool, error) {
	seq := a.seq
	a.seq++

	if err := p.Validate(a.cfg.ChannelCount); err != nil {
		var me *l1packets.MalformedPacketError
		if errors.As(err, &me) {
			me.Seq = seq
		}
		return false, err
	}
	if a.cfg.StrictChannelCounts && !p.Uniform() {
		return false, &l1packets.MalformedPacketError{
			Seq:    seq,
			Reason: fmt.Sprintf("non-uniform per-channel counts %v", p.PointsCountByChannel),
		}
	}

	a.pending = append(a.pending, p)
	a.captured += p.PointsCountByChannel[0]

	lidar.Tracef("[ScanAccumulator] packet #%d: +%d points/channel, captured=%d/%d pending=%d",
		seq, p.PointsCountByChannel[0], a.captured, a.target, len(a.pending))

	return a.Ready(), nil
}

// Ready reports whether the pending packets cover a full revolution.
func (a *ScanAccumulator) Ready() bool {
	return a.captured >= a.target
}

// Reset discards the pending packets and zeroes the captured count.
func (a *ScanAccumulator) Reset() {
	for i := range a.pending {
		a.pending[i] = nil
	}
	a.pending = a.pending[:0]
	a.captured = 0
}

// Pending returns the packets accumulated since the last reset, in arrival
// order. The slice is owned by the accumulator and is invalidated by Reset.
func (a *ScanAccumulator) Pending() []*l1packets.Packet { return a.pending }

// Captured returns the channel-0 point count since the last reset.
func (a *ScanAccumulator) Captured() int { return a.captured }

// Target returns the per-channel point budget of one revolution.
func (a *ScanAccumulator) Target() int { return a.target }

// Config returns the scan configuration.
func (a *ScanAccumulator) Config() ScanConfig { return a.cfg }
