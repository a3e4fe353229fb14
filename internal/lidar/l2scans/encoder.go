package l2scans

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/lidar-samples/internal/lidar/l1packets"
)

// Sample layout: channels × points × FieldsPerPoint little-endian float32,
// row-major, no header. Field order is x, y, z, label, ring.
const (
	FieldsPerPoint = 5
	BytesPerField  = 4
	PointSize      = FieldsPerPoint * BytesPerField
)

// SampleSize returns the encoded size in bytes of one sample.
func SampleSize(channels, pointsPerChannel int) int {
	return channels * pointsPerChannel * PointSize
}

// ErrShapeMismatch is matched by every ShapeMismatchError.
var ErrShapeMismatch = errors.New("scan shape mismatch")

// ShapeMismatchError reports a channel that accumulated fewer points than
// one revolution requires. Such a scan is never padded or emitted.
type ShapeMismatchError struct {
	Channel int
	Got     int
	Want    int
}

func (e *ShapeMismatchError) Error() string {
	return fmt.Sprintf("scan shape mismatch: channel %d has %d points, want %d", e.Channel, e.Got, e.Want)
}

func (e *ShapeMismatchError) Unwrap() error { return ErrShapeMismatch }

// ScanEncoder turns a completed accumulation into one encoded sample. It
// holds no state between calls.
type ScanEncoder struct {
	channels int
	target   int
}

// NewScanEncoder validates cfg and returns an encoder for its shape.
func NewScanEncoder(cfg ScanConfig) (*ScanEncoder, error) {
	target, err := cfg.TargetPointsPerChannel()
	if err != nil {
		return nil, err
	}
	return &ScanEncoder{channels: cfg.ChannelCount, target: target}, nil
}

// SampleSize returns the encoded size in bytes of samples from this encoder.
func (e *ScanEncoder) SampleSize() int {
	return SampleSize(e.channels, e.target)
}

// Channels builds one ring buffer per channel from packets in arrival
// order, each retaining the most recent target entries.
func (e *ScanEncoder) Channels(packets []*l1packets.Packet) ([]*ChannelRingBuffer, error) {
	rings := make([]*ChannelRingBuffer, e.channels)
	for ch := range rings {
		rings[ch] = NewChannelRingBuffer(e.target)
	}
	for _, p := range packets {
		if err := p.Validate(e.channels); err != nil {
			return nil, err
		}
		offsets := p.ChannelOffsets()
		for ch := 0; ch < e.channels; ch++ {
			for i := offsets[ch]; i < offsets[ch+1]; i++ {
				pt := p.Points[i]
				rings[ch].Append(Entry{X: pt.X, Y: pt.Y, Z: pt.Z, Label: p.Labels[i]})
			}
		}
	}
	return rings, nil
}

// Encode keeps the last target points of every channel (older points
// belong to the previous, already delivered revolution), annotates each
// with its channel index as ring, and flattens the result.
func (e *ScanEncoder) Encode(packets []*l1packets.Packet) ([]byte, error) {
	rings, err := e.Channels(packets)
	if err != nil {
		return nil, err
	}
	for ch, r := range rings {
		if r.Len() < e.target {
			return nil, &ShapeMismatchError{Channel: ch, Got: r.Len(), Want: e.target}
		}
	}

	out := make([]byte, e.SampleSize())
	off := 0
	put := func(v float32) {
		binary.LittleEndian.PutUint32(out[off:], math.Float32bits(v))
		off += BytesPerField
	}
	for ch, r := range rings {
		ring := float32(ch)
		r.Do(func(en Entry) {
			put(en.X)
			put(en.Y)
			put(en.Z)
			put(float32(en.Label))
			put(ring)
		})
	}
	return out, nil
}
