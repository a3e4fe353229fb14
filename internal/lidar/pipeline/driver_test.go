package pipeline

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/lidar-samples/internal/fsutil"
	"github.com/banshee-data/lidar-samples/internal/lidar/l1packets"
	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
	"github.com/banshee-data/lidar-samples/internal/lidar/samplestore"
	"github.com/banshee-data/lidar-samples/internal/timeutil"
)

var trainingScan = l2scans.ScanConfig{
	ChannelCount:        32,
	PointsPerSecond:     640000,
	RevolutionFrequency: 10,
}

// recordingWriter keeps every sample in memory and can be told to fail.
type recordingWriter struct {
	mu      sync.Mutex
	indices []int
	samples [][]byte
	fail    error
}

func (w *recordingWriter) WriteSample(_ context.Context, index int, payload []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fail != nil {
		return w.fail
	}
	w.indices = append(w.indices, index)
	w.samples = append(w.samples, append([]byte(nil), payload...))
	return nil
}

func packets(from, n, channels, count int) []*l1packets.Packet {
	out := make([]*l1packets.Packet, 0, n)
	for i := from; i < from+n; i++ {
		out = append(out, l1packets.UniformPacket(i, channels, count))
	}
	return out
}

func newDriver(t *testing.T, cfg Config) *Driver {
	t.Helper()
	d, err := NewDriver(cfg)
	require.NoError(t, err)
	return d
}

func TestDriver_TenPacketsMakeOneSample(t *testing.T) {
	clock := timeutil.NewMockClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	d := newDriver(t, Config{Scan: trainingScan, Clock: clock})
	w := &recordingWriter{}

	stats, err := d.Run(context.Background(), l1packets.NewSliceSource(packets(0, 10, 32, 200)...), w)
	require.NoError(t, err)

	require.Len(t, w.samples, 1)
	assert.Equal(t, []int{0}, w.indices)
	assert.Len(t, w.samples[0], 32*2000*5*4)

	assert.Equal(t, int64(10), stats.Packets)
	assert.Equal(t, 1, stats.Samples)
	assert.Equal(t, 1, stats.NextIndex)
	assert.Equal(t, 0, stats.PendingPackets)
	assert.Equal(t, 0, stats.DiscardedPackets)
	assert.Equal(t, 2000, stats.TargetPoints)
	assert.False(t, stats.Cancelled)
	assert.Equal(t, clock.Now(), stats.LastSampleAt)
}

func TestDriver_EleventhPacketStartsNextScan(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan})
	w := &recordingWriter{}

	stats, err := d.Run(context.Background(), l1packets.NewSliceSource(packets(0, 11, 32, 200)...), w)
	require.NoError(t, err)

	assert.Len(t, w.samples, 1)
	// The eleventh packet began a new scan that never completed.
	assert.Equal(t, 1, stats.DiscardedPackets)
	assert.Equal(t, 0, stats.PendingPackets)
}

func TestDriver_ConsecutiveSamplesAreIndependent(t *testing.T) {
	cfg := Config{
		Scan:       l2scans.ScanConfig{ChannelCount: 2, PointsPerSecond: 8, RevolutionFrequency: 1},
		StartIndex: 5,
	}
	d := newDriver(t, cfg)
	w := &recordingWriter{}

	// Target 4 per channel, 2 per packet: packets 0-1 form sample 5 and
	// packets 2-3 form sample 6.
	_, err := d.Run(context.Background(), l1packets.NewSliceSource(packets(0, 4, 2, 2)...), w)
	require.NoError(t, err)
	require.Equal(t, []int{5, 6}, w.indices)

	second, err := l2scans.DecodeSample(w.samples[1], 2, 4)
	require.NoError(t, err)
	for _, r := range second {
		assert.GreaterOrEqual(t, r.X, float32(2), "sample 6 contains a point from an earlier scan")
	}
}

func TestDriver_PartialScanIsNeverWritten(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan})
	w := &recordingWriter{}

	stats, err := d.Run(context.Background(), l1packets.NewSliceSource(packets(0, 9, 32, 200)...), w)
	require.NoError(t, err)
	assert.Empty(t, w.samples)
	assert.Equal(t, 9, stats.DiscardedPackets)
	assert.Equal(t, 0, stats.NextIndex)
}

func TestDriver_EmptySource(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan})
	w := &recordingWriter{}

	stats, err := d.Run(context.Background(), l1packets.NewSliceSource(), w)
	require.NoError(t, err)
	assert.Empty(t, w.samples)
	assert.Equal(t, int64(0), stats.Packets)
}

func TestDriver_MalformedPacketAbortsRun(t *testing.T) {
	d := newDriver(t, Config{Scan: l2scans.ScanConfig{ChannelCount: 2, PointsPerSecond: 40, RevolutionFrequency: 1}})
	w := &recordingWriter{}

	bad := &l1packets.Packet{
		PointsCountByChannel: []int{10, 10},
		Points:               make([]l1packets.Point, 15),
		Labels:               make([]int32, 15),
	}
	src := l1packets.NewSliceSource(l1packets.UniformPacket(0, 2, 5), bad, l1packets.UniformPacket(2, 2, 20))

	stats, err := d.Run(context.Background(), src, w)
	require.ErrorIs(t, err, l1packets.ErrMalformedPacket)

	var mp *l1packets.MalformedPacketError
	require.ErrorAs(t, err, &mp)
	assert.Equal(t, int64(1), mp.Seq)

	assert.Empty(t, w.samples)
	assert.Equal(t, 0, stats.PendingPackets, "accumulation should be discarded")
	assert.Equal(t, 1, src.Remaining(), "run should stop at the malformed packet")
}

func TestDriver_ShapeMismatchAbortsRun(t *testing.T) {
	d := newDriver(t, Config{Scan: l2scans.ScanConfig{ChannelCount: 2, PointsPerSecond: 8, RevolutionFrequency: 1}})
	w := &recordingWriter{}

	lopsided := &l1packets.Packet{
		PointsCountByChannel: []int{4, 1},
		Points:               make([]l1packets.Point, 5),
		Labels:               make([]int32, 5),
	}
	stats, err := d.Run(context.Background(), l1packets.NewSliceSource(lopsided), w)
	assert.ErrorIs(t, err, l2scans.ErrShapeMismatch)
	assert.Empty(t, w.samples)
	assert.Equal(t, 0, stats.PendingPackets)
	assert.Equal(t, 0, stats.NextIndex)
}

func TestDriver_StrictModeRejectsNonUniform(t *testing.T) {
	scan := l2scans.ScanConfig{ChannelCount: 2, PointsPerSecond: 8, RevolutionFrequency: 1, StrictChannelCounts: true}
	d := newDriver(t, Config{Scan: scan})

	lopsided := &l1packets.Packet{
		PointsCountByChannel: []int{4, 1},
		Points:               make([]l1packets.Point, 5),
		Labels:               make([]int32, 5),
	}
	_, err := d.Run(context.Background(), l1packets.NewSliceSource(lopsided), &recordingWriter{})
	assert.ErrorIs(t, err, l1packets.ErrMalformedPacket)
}

func TestDriver_WriteFailureThenRetry(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan, StartIndex: 3})
	diskFull := errors.New("no space left on device")
	w := &recordingWriter{fail: diskFull}

	src := l1packets.NewSliceSource(packets(0, 20, 32, 200)...)
	stats, err := d.Run(context.Background(), src, w)
	require.ErrorIs(t, err, ErrWriteFailure)
	require.ErrorIs(t, err, diskFull)

	var wf *WriteFailureError
	require.ErrorAs(t, err, &wf)
	assert.Equal(t, 3, wf.SampleIndex)
	assert.True(t, stats.RetryPending)
	assert.Equal(t, 3, stats.NextIndex, "index must not advance on failure")
	assert.Equal(t, 10, src.Remaining(), "run stops at the failed write")
	assert.True(t, d.HasPending())

	// Run refuses to continue until the pending sample is written.
	_, err = d.Run(context.Background(), src, w)
	require.ErrorIs(t, err, ErrSamplePending)
	assert.Equal(t, 10, src.Remaining())

	w.fail = nil
	require.NoError(t, d.RetryPending(context.Background(), w))
	assert.False(t, d.HasPending())
	assert.Equal(t, []int{3}, w.indices)

	stats, err = d.Run(context.Background(), src, w)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 4}, w.indices)
	assert.Equal(t, 2, stats.Samples)
	assert.Equal(t, 5, stats.NextIndex)
}

func TestDriver_RetryPendingNoop(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan})
	assert.NoError(t, d.RetryPending(context.Background(), &recordingWriter{}))
}

// blockingSource yields its packets and then blocks until ctx is done.
type blockingSource struct {
	inner   *l1packets.SliceSource
	drained chan struct{}
	once    sync.Once
}

func (s *blockingSource) Next(ctx context.Context) (*l1packets.Packet, error) {
	p, err := s.inner.Next(ctx)
	if !errors.Is(err, io.EOF) {
		return p, err
	}
	s.once.Do(func() { close(s.drained) })
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestDriver_CancellationReleasesBufferedPackets(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan})
	w := &recordingWriter{}
	src := &blockingSource{inner: l1packets.NewSliceSource(packets(0, 14, 32, 200)...), drained: make(chan struct{})}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		<-src.drained
		cancel()
	}()

	stats, err := d.Run(ctx, src, w)
	require.NoError(t, err)
	assert.True(t, stats.Cancelled)
	assert.Len(t, w.samples, 1)
	assert.Equal(t, 4, stats.DiscardedPackets)
	assert.Equal(t, 0, stats.PendingPackets)
}

func TestDriver_SourceErrorAborts(t *testing.T) {
	d := newDriver(t, Config{Scan: trainingScan})
	boom := errors.New("read failed")
	src := l1packets.NewSliceSource()
	failing := l1packets.SourceFunc(func(ctx context.Context) (*l1packets.Packet, error) {
		if src.Remaining() == 0 {
			return nil, boom
		}
		return src.Next(ctx)
	})

	_, err := d.Run(context.Background(), failing, &recordingWriter{})
	assert.ErrorIs(t, err, boom)
}

func TestNewDriver_RejectsBadConfig(t *testing.T) {
	_, err := NewDriver(Config{Scan: l2scans.ScanConfig{ChannelCount: 32, PointsPerSecond: 100000, RevolutionFrequency: 10}})
	assert.ErrorIs(t, err, l2scans.ErrConfiguration)
}

func TestDriver_CancelOnCompletingPacketWritesScanAndStops(t *testing.T) {
	// Target 2 points per channel, one point per packet.
	scan := l2scans.ScanConfig{ChannelCount: 2, PointsPerSecond: 4, RevolutionFrequency: 1}
	d := newDriver(t, Config{Scan: scan})
	fs := fsutil.NewMemoryFileSystem()
	w := samplestore.NewFileWriter(fs, "out")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	inner := l1packets.NewSliceSource(packets(0, 4, 2, 1)...)
	src := l1packets.SourceFunc(func(ctx context.Context) (*l1packets.Packet, error) {
		p, err := inner.Next(ctx)
		if inner.Remaining() == 2 {
			cancel()
		}
		return p, err
	})

	stats, err := d.Run(ctx, src, w)
	require.NoError(t, err)
	assert.True(t, stats.Cancelled)
	assert.False(t, stats.RetryPending)
	assert.False(t, d.HasPending())
	assert.Equal(t, 1, stats.Samples)
	assert.Equal(t, 1, stats.NextIndex)
	assert.True(t, fs.Exists(w.Path(0)), "completed scan should be written")
	assert.Equal(t, 2, inner.Remaining(), "no packet is read after cancellation")
}

func TestDriver_CancelDuringWriteIsCleanStop(t *testing.T) {
	scan := l2scans.ScanConfig{ChannelCount: 2, PointsPerSecond: 4, RevolutionFrequency: 1}
	d := newDriver(t, Config{Scan: scan})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	w := SampleWriterFunc(func(ctx context.Context, _ int, _ []byte) error {
		cancel()
		return ctx.Err()
	})

	stats, err := d.Run(ctx, l1packets.NewSliceSource(packets(0, 2, 2, 1)...), w)
	require.NoError(t, err)
	assert.True(t, stats.Cancelled)
	assert.False(t, d.HasPending())
	assert.Equal(t, 0, stats.Samples)
	assert.Equal(t, 0, stats.NextIndex, "an interrupted sample does not consume its index")
	assert.Equal(t, 2, stats.DiscardedPackets)

	// The driver is usable again after an interrupted write.
	stats, err = d.Run(context.Background(), l1packets.NewSliceSource(packets(2, 2, 2, 1)...), &recordingWriter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Samples)
}
