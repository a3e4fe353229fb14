package l2scans

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Record is one decoded point of a sample.
type Record struct {
	X, Y, Z float32
	Label   float32
	Ring    float32
}

// DecodeSample parses an encoded sample of the given shape. The returned
// slice is channel-major: record c*pointsPerChannel+i is point i of
// channel c.
func DecodeSample(data []byte, channels, pointsPerChannel int) ([]Record, error) {
	if channels <= 0 || pointsPerChannel <= 0 {
		return nil, fmt.Errorf("invalid sample shape %d×%d", channels, pointsPerChannel)
	}
	if want := SampleSize(channels, pointsPerChannel); len(data) != want {
		return nil, fmt.Errorf("sample is %d bytes, shape %d×%d×%d needs %d",
			len(data), channels, pointsPerChannel, FieldsPerPoint, want)
	}

	field := func(i int) float32 {
		return math.Float32frombits(binary.LittleEndian.Uint32(data[i*BytesPerField:]))
	}
	records := make([]Record, channels*pointsPerChannel)
	for i := range records {
		base := i * FieldsPerPoint
		records[i] = Record{
			X:     field(base),
			Y:     field(base + 1),
			Z:     field(base + 2),
			Label: field(base + 3),
			Ring:  field(base + 4),
		}
	}
	return records, nil
}
