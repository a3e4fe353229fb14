package l2scans

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidar-samples/internal/lidar/l1packets"
)

var trainingConfig = ScanConfig{ChannelCount: 32, PointsPerSecond: 640000, RevolutionFrequency: 10}

func TestNewScanAccumulator_RejectsBadConfig(t *testing.T) {
	_, err := NewScanAccumulator(ScanConfig{ChannelCount: 32, PointsPerSecond: 100000, RevolutionFrequency: 10})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConfiguration)
}

func TestScanAccumulator_ReadyAfterTarget(t *testing.T) {
	acc, err := NewScanAccumulator(trainingConfig)
	require.NoError(t, err)
	require.Equal(t, 2000, acc.Target())

	for i := 0; i < 9; i++ {
		ready, err := acc.Ingest(l1packets.UniformPacket(i, 32, 200))
		require.NoError(t, err)
		assert.False(t, ready, "packet %d should not complete the scan", i)
	}
	ready, err := acc.Ingest(l1packets.UniformPacket(9, 32, 200))
	require.NoError(t, err)
	assert.True(t, ready)
	assert.Equal(t, 2000, acc.Captured())
	assert.Len(t, acc.Pending(), 10)

	acc.Reset()
	assert.Equal(t, 0, acc.Captured())
	assert.Empty(t, acc.Pending())
	assert.False(t, acc.Ready())
}

func TestScanAccumulator_ZeroCountPacket(t *testing.T) {
	acc, err := NewScanAccumulator(ScanConfig{ChannelCount: 2, PointsPerSecond: 20, RevolutionFrequency: 1})
	require.NoError(t, err)

	for i := 0; i < 100; i++ {
		ready, err := acc.Ingest(l1packets.UniformPacket(i, 2, 0))
		require.NoError(t, err)
		require.False(t, ready)
	}
	assert.Equal(t, 0, acc.Captured())
	assert.Len(t, acc.Pending(), 100)
}

func TestScanAccumulator_MalformedPacketNotIngested(t *testing.T) {
	acc, err := NewScanAccumulator(ScanConfig{ChannelCount: 2, PointsPerSecond: 40, RevolutionFrequency: 1})
	require.NoError(t, err)

	// [10,10] promises 20 points but only 15 triples arrive.
	bad := l1packets.UniformPacket(0, 2, 10)
	bad.Points = bad.Points[:15]

	ready, err := acc.Ingest(bad)
	assert.False(t, ready)
	require.Error(t, err)
	assert.True(t, errors.Is(err, l1packets.ErrMalformedPacket))

	var me *l1packets.MalformedPacketError
	require.ErrorAs(t, err, &me)
	assert.Equal(t, int64(0), me.Seq)
	assert.Equal(t, 0, acc.Captured())
	assert.Empty(t, acc.Pending())
}

func TestScanAccumulator_ChannelCountMismatch(t *testing.T) {
	acc, err := NewScanAccumulator(trainingConfig)
	require.NoError(t, err)

	_, err = acc.Ingest(l1packets.UniformPacket(0, 16, 200))
	assert.ErrorIs(t, err, l1packets.ErrMalformedPacket)
	assert.Empty(t, acc.Pending())
}

func TestScanAccumulator_ChannelZeroProxy(t *testing.T) {
	acc, err := NewScanAccumulator(ScanConfig{ChannelCount: 2, PointsPerSecond: 8, RevolutionFrequency: 1})
	require.NoError(t, err)

	p := &l1packets.Packet{
		PointsCountByChannel: []int{4, 1},
		Points:               make([]l1packets.Point, 5),
		Labels:               make([]int32, 5),
	}
	ready, err := acc.Ingest(p)
	require.NoError(t, err)
	assert.True(t, ready, "channel 0 alone decides completion")
}

func TestScanAccumulator_StrictRejectsNonUniform(t *testing.T) {
	cfg := ScanConfig{ChannelCount: 2, PointsPerSecond: 8, RevolutionFrequency: 1, StrictChannelCounts: true}
	acc, err := NewScanAccumulator(cfg)
	require.NoError(t, err)

	p := &l1packets.Packet{
		PointsCountByChannel: []int{4, 1},
		Points:               make([]l1packets.Point, 5),
		Labels:               make([]int32, 5),
	}
	_, err = acc.Ingest(p)
	assert.ErrorIs(t, err, l1packets.ErrMalformedPacket)
	assert.Empty(t, acc.Pending())
}
