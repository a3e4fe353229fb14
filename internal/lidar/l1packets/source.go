package l1packets

import (
	"context"
	"io"
)

// Source produces packets in arrival order. Next returns io.EOF once the
// stream is exhausted; exhaustion is end-of-stream, not a failure.
type Source interface {
	Next(ctx context.Context) (*Packet, error)
}

// SourceFunc adapts a function to Source.
type SourceFunc func(ctx context.Context) (*Packet, error)

// Next calls f.
func (f SourceFunc) Next(ctx context.Context) (*Packet, error) { return f(ctx) }

// SliceSource replays a fixed list of packets. It is used by tests and by
// callers that already hold decoded packets in memory.
type SliceSource struct {
	packets []*Packet
	pos     int
}

// NewSliceSource returns a source that yields packets in order.
func NewSliceSource(packets ...*Packet) *SliceSource {
	return &SliceSource{packets: packets}
}

// Next returns the next packet or io.EOF.
func (s *SliceSource) Next(ctx context.Context) (*Packet, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if s.pos >= len(s.packets) {
		return nil, io.EOF
	}
	p := s.packets[s.pos]
	s.pos++
	return p, nil
}

// Remaining returns the number of packets not yet consumed.
func (s *SliceSource) Remaining() int {
	return len(s.packets) - s.pos
}

// UniformPacket builds a packet with count points on each of channels
// channels. Point coordinates encode (seq, channel, index) so that tests can
// tell exactly which packet and slot a point came from: X=seq, Y=channel,
// Z=index. Labels are seq*1000+index.
func UniformPacket(seq, channels, count int) *Packet {
	counts := make([]int, channels)
	points := make([]Point, 0, channels*count)
	labels := make([]int32, 0, channels*count)
	for ch := 0; ch < channels; ch++ {
		counts[ch] = count
		for i := 0; i < count; i++ {
			points = append(points, Point{X: float32(seq), Y: float32(ch), Z: float32(i)})
			labels = append(labels, int32(seq*1000+i))
		}
	}
	return &Packet{PointsCountByChannel: counts, Points: points, Labels: labels}
}
