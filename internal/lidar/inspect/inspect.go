// Package inspect decodes written samples and renders them for a quick
// visual and statistical sanity check before they go to training.
package inspect

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/lidar-samples/internal/fsutil"
	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
)

// Sample is a decoded sample file with its shape.
type Sample struct {
	Path             string
	Channels         int
	PointsPerChannel int
	Records          []l2scans.Record
}

// Channel returns the records of channel ch.
func (s *Sample) Channel(ch int) []l2scans.Record {
	start := ch * s.PointsPerChannel
	return s.Records[start : start+s.PointsPerChannel]
}

// DecodeFile reads a sample file from fsys, or the OS filesystem when fsys
// is nil. The shape is not stored in the file and must come from the run
// configuration; a size mismatch is an error.
func DecodeFile(fsys fsutil.FileSystem, path string, channels, pointsPerChannel int) (*Sample, error) {
	if fsys == nil {
		fsys = fsutil.OSFileSystem{}
	}
	data, err := fsys.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sample: %w", err)
	}
	records, err := l2scans.DecodeSample(data, channels, pointsPerChannel)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return &Sample{Path: path, Channels: channels, PointsPerChannel: pointsPerChannel, Records: records}, nil
}

// ChannelSummary describes the returns of one ring.
type ChannelSummary struct {
	Ring        int
	Points      int
	MeanRange   float64
	StdDevRange float64
	MaxRange    float64
	MeanZ       float64
	RingValid   bool // every record carries ring == channel index
}

// Summary describes a whole sample.
type Summary struct {
	Channels       []ChannelSummary
	LabelHistogram map[int]int
}

// Labels returns the distinct labels in ascending order.
func (s *Summary) Labels() []int {
	out := make([]int, 0, len(s.LabelHistogram))
	for l := range s.LabelHistogram {
		out = append(out, l)
	}
	sort.Ints(out)
	return out
}

// Summarize computes per-channel range statistics and the label histogram.
func Summarize(s *Sample) *Summary {
	sum := &Summary{
		Channels:       make([]ChannelSummary, s.Channels),
		LabelHistogram: make(map[int]int),
	}
	ranges := make([]float64, s.PointsPerChannel)
	zs := make([]float64, s.PointsPerChannel)
	for ch := 0; ch < s.Channels; ch++ {
		cs := ChannelSummary{Ring: ch, Points: s.PointsPerChannel, RingValid: true}
		for i, r := range s.Channel(ch) {
			x, y, z := float64(r.X), float64(r.Y), float64(r.Z)
			ranges[i] = math.Sqrt(x*x + y*y + z*z)
			zs[i] = z
			if int(r.Ring) != ch {
				cs.RingValid = false
			}
			sum.LabelHistogram[int(r.Label)]++
		}
		cs.MeanRange, cs.StdDevRange = stat.MeanStdDev(ranges, nil)
		cs.MaxRange = floats.Max(ranges)
		cs.MeanZ = stat.Mean(zs, nil)
		sum.Channels[ch] = cs
	}
	return sum
}
