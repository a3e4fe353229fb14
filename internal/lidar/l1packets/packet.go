package l1packets

import (
	"errors"
	"fmt"
)

// ErrMalformedPacket is matched by every MalformedPacketError.
var ErrMalformedPacket = errors.New("malformed packet")

// MalformedPacketError reports a packet whose shape is inconsistent with
// its own per-channel counts or with the run configuration.
type MalformedPacketError struct {
	Seq    int64 // position of the packet in the source stream, -1 if unknown
	Reason string
}

func (e *MalformedPacketError) Error() string {
	if e.Seq < 0 {
		return fmt.Sprintf("malformed packet: %s", e.Reason)
	}
	return fmt.Sprintf("malformed packet #%d: %s", e.Seq, e.Reason)
}

func (e *MalformedPacketError) Unwrap() error { return ErrMalformedPacket }

func malformed(format string, args ...interface{}) *MalformedPacketError {
	return &MalformedPacketError{Seq: -1, Reason: fmt.Sprintf(format, args...)}
}

// Point is a single Cartesian return in sensor coordinates.
type Point struct {
	X, Y, Z float32
}

// Packet is one tick's worth of LiDAR returns. Points and Labels are laid
// out channel-major: channel 0's block first, then channel 1's, each block
// sized by PointsCountByChannel. A Packet is treated as immutable once it
// has been handed to a consumer.
type Packet struct {
	HorizontalAngle      float32
	PointsCountByChannel []int
	Points               []Point
	Labels               []int32
}

// ChannelCount returns the number of channels described by the packet.
func (p *Packet) ChannelCount() int {
	return len(p.PointsCountByChannel)
}

// TotalPoints returns the sum of the per-channel counts.
func (p *Packet) TotalPoints() int {
	n := 0
	for _, c := range p.PointsCountByChannel {
		n += c
	}
	return n
}

// Validate checks the packet against the configured channel count. It
// returns a *MalformedPacketError when the channel count differs, a
// per-channel count is negative, or the point/label lengths do not match
// the sum of the per-channel counts.
func (p *Packet) Validate(channelCount int) error {
	if p == nil {
		return malformed("nil packet")
	}
	if got := p.ChannelCount(); got != channelCount {
		return malformed("channel count %d, run configured for %d", got, channelCount)
	}
	total := 0
	for ch, c := range p.PointsCountByChannel {
		if c < 0 {
			return malformed("channel %d has negative point count %d", ch, c)
		}
		total += c
	}
	if len(p.Points) != total {
		return malformed("%d points, per-channel counts sum to %d", len(p.Points), total)
	}
	if len(p.Labels) != total {
		return malformed("%d labels, per-channel counts sum to %d", len(p.Labels), total)
	}
	return nil
}

// Uniform reports whether every channel carries the same number of points.
func (p *Packet) Uniform() bool {
	for _, c := range p.PointsCountByChannel {
		if c != p.PointsCountByChannel[0] {
			return false
		}
	}
	return true
}

// ChannelOffsets returns the start index of each channel's block within
// Points and Labels. The result has ChannelCount()+1 entries; the last one
// equals TotalPoints().
func (p *Packet) ChannelOffsets() []int {
	offsets := make([]int, len(p.PointsCountByChannel)+1)
	for ch, c := range p.PointsCountByChannel {
		offsets[ch+1] = offsets[ch] + c
	}
	return offsets
}
