package l1packets

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// wirePacket is the JSON shape written by the simulator client's
// save_to_disk: points may be flat [x,y,z,...] or nested [[x,y,z],...].
type wirePacket struct {
	HorizontalAngle      float32         `json:"horizontal_angle"`
	Channels             *int            `json:"channels,omitempty"`
	PointsCountByChannel []int           `json:"points_count_by_channel"`
	Points               json.RawMessage `json:"points"`
	Labels               []int32         `json:"labels"`
}

// DecodeJSON parses a single packet document. Shape errors in the points
// array are reported as *MalformedPacketError; JSON syntax errors are
// returned wrapped.
func DecodeJSON(data []byte) (*Packet, error) {
	var w wirePacket
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse packet JSON: %w", err)
	}
	if w.Channels != nil && *w.Channels != len(w.PointsCountByChannel) {
		return nil, malformed("channels=%d but points_count_by_channel has %d entries",
			*w.Channels, len(w.PointsCountByChannel))
	}

	points, err := decodePoints(w.Points)
	if err != nil {
		return nil, err
	}

	return &Packet{
		HorizontalAngle:      w.HorizontalAngle,
		PointsCountByChannel: w.PointsCountByChannel,
		Points:               points,
		Labels:               w.Labels,
	}, nil
}

func decodePoints(raw json.RawMessage) ([]Point, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return nil, nil
	}

	var nested [][]float32
	if err := json.Unmarshal(raw, &nested); err == nil {
		points := make([]Point, len(nested))
		for i, xyz := range nested {
			if len(xyz) != 3 {
				return nil, malformed("point %d has %d coordinates, want 3", i, len(xyz))
			}
			points[i] = Point{X: xyz[0], Y: xyz[1], Z: xyz[2]}
		}
		return points, nil
	}

	var flat []float32
	if err := json.Unmarshal(raw, &flat); err != nil {
		return nil, fmt.Errorf("failed to parse packet points: %w", err)
	}
	if len(flat)%3 != 0 {
		return nil, malformed("flat points array has %d values, not a multiple of 3", len(flat))
	}
	points := make([]Point, len(flat)/3)
	for i := range points {
		points[i] = Point{X: flat[3*i], Y: flat[3*i+1], Z: flat[3*i+2]}
	}
	return points, nil
}

// EncodeJSON renders a packet in the nested-points form accepted by
// DecodeJSON. Used by test fixtures and the UDP replay tooling.
func EncodeJSON(p *Packet) ([]byte, error) {
	nested := make([][3]float32, len(p.Points))
	for i, pt := range p.Points {
		nested[i] = [3]float32{pt.X, pt.Y, pt.Z}
	}
	channels := len(p.PointsCountByChannel)
	return json.Marshal(struct {
		HorizontalAngle      float32      `json:"horizontal_angle"`
		Channels             int          `json:"channels"`
		PointsCountByChannel []int        `json:"points_count_by_channel"`
		Points               [][3]float32 `json:"points"`
		Labels               []int32      `json:"labels"`
	}{p.HorizontalAngle, channels, p.PointsCountByChannel, nested, p.Labels})
}
