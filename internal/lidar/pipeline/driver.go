package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/banshee-data/lidar-samples/internal/lidar"
	"github.com/banshee-data/lidar-samples/internal/lidar/l1packets"
	"github.com/banshee-data/lidar-samples/internal/lidar/l2scans"
	"github.com/banshee-data/lidar-samples/internal/timeutil"
)

// SampleWriter persists encoded samples. Implementations must make each
// payload visible completely or not at all, and must not merge or reorder
// payloads from different calls.
type SampleWriter interface {
	WriteSample(ctx context.Context, index int, payload []byte) error
}

// SampleWriterFunc adapts a function to SampleWriter.
type SampleWriterFunc func(ctx context.Context, index int, payload []byte) error

// WriteSample calls f.
func (f SampleWriterFunc) WriteSample(ctx context.Context, index int, payload []byte) error {
	return f(ctx, index, payload)
}

// Config configures a Driver.
type Config struct {
	Scan       l2scans.ScanConfig
	StartIndex int            // index given to the first sample written
	Clock      timeutil.Clock // nil uses the wall clock
}

// RunStats summarises the work done by the driver. Counters accumulate
// across Run calls on the same Driver.
type RunStats struct {
	Packets          int64     `json:"packets"`
	Samples          int       `json:"samples"`
	NextIndex        int       `json:"next_index"`
	PendingPackets   int       `json:"pending_packets"`
	CapturedPoints   int       `json:"captured_points"`
	TargetPoints     int       `json:"target_points"`
	DiscardedPackets int       `json:"discarded_packets"`
	Cancelled        bool      `json:"cancelled"`
	RetryPending     bool      `json:"retry_pending"`
	LastSampleAt     time.Time `json:"last_sample_at"`
}

type pendingSample struct {
	index   int
	payload []byte
}

// Driver owns the accumulation state of one conversion run. It processes
// one packet at a time: each packet is fully ingested, and a completed
// scan is encoded and written, before the next packet is requested.
type Driver struct {
	acc   *l2scans.ScanAccumulator
	enc   *l2scans.ScanEncoder
	clock timeutil.Clock

	mu      sync.Mutex
	stats   RunStats
	pending *pendingSample
}

// NewDriver validates the scan configuration before any packet is read.
func NewDriver(cfg Config) (*Driver, error) {
	acc, err := l2scans.NewScanAccumulator(cfg.Scan)
	if err != nil {
		return nil, err
	}
	enc, err := l2scans.NewScanEncoder(cfg.Scan)
	if err != nil {
		return nil, err
	}
	d := &Driver{acc: acc, enc: enc, clock: timeutil.OrReal(cfg.Clock)}
	d.stats.NextIndex = cfg.StartIndex
	d.stats.TargetPoints = acc.Target()
	return d, nil
}

// Stats returns a snapshot of the run statistics. Safe to call from other
// goroutines while Run is in progress.
func (d *Driver) Stats() RunStats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Driver) update(fn func(s *RunStats)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.stats)
	d.stats.PendingPackets = len(d.acc.Pending())
	d.stats.CapturedPoints = d.acc.Captured()
	d.stats.RetryPending = d.pending != nil
}

// Run pulls packets from src until it is exhausted or ctx is cancelled.
// Every completed scan is encoded and handed to w with the next sample
// index. A trailing partial scan is discarded, never written. Cancellation
// is reported through RunStats.Cancelled rather than as an error, including
// when it interrupts a sample write.
//
// Errors: *l1packets.MalformedPacketError and *l2scans.ShapeMismatchError
// abort the run and discard the accumulation; *WriteFailureError aborts
// the run but keeps the encoded sample for RetryPending.
func (d *Driver) Run(ctx context.Context, src l1packets.Source, w SampleWriter) (RunStats, error) {
	if d.pending != nil {
		return d.Stats(), fmt.Errorf("%w: sample %d", ErrSamplePending, d.pending.index)
	}
	d.update(func(s *RunStats) { s.Cancelled = false })

	for {
		if ctx.Err() != nil {
			return d.cancelled(), nil
		}

		p, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			return d.exhausted(), nil
		}
		if err != nil {
			if ctx.Err() != nil {
				return d.cancelled(), nil
			}
			d.acc.Reset()
			d.update(func(*RunStats) {})
			return d.Stats(), fmt.Errorf("packet source: %w", err)
		}

		ready, err := d.acc.Ingest(p)
		d.update(func(s *RunStats) { s.Packets++ })
		if err != nil {
			lidar.Opsf("rejecting packet, aborting run: %v", err)
			d.acc.Reset()
			d.update(func(*RunStats) {})
			return d.Stats(), err
		}
		if !ready {
			continue
		}

		if err := d.emit(ctx, w); err != nil {
			if ctx.Err() != nil && errors.Is(err, ErrWriteFailure) {
				d.dropPending()
				return d.cancelled(), nil
			}
			return d.Stats(), err
		}
	}
}

// emit encodes the completed scan and writes it.
func (d *Driver) emit(ctx context.Context, w SampleWriter) error {
	packets := len(d.acc.Pending())
	payload, err := d.enc.Encode(d.acc.Pending())
	if err != nil {
		lidar.Opsf("discarding scan of %d packets: %v", packets, err)
		d.acc.Reset()
		d.update(func(*RunStats) {})
		return err
	}

	d.mu.Lock()
	index := d.stats.NextIndex
	d.pending = &pendingSample{index: index, payload: payload}
	d.mu.Unlock()

	lidar.Diagf("scan complete: sample=%d packets=%d captured=%d target=%d bytes=%d",
		index, packets, d.acc.Captured(), d.acc.Target(), len(payload))

	// A scan that completed before cancellation is still delivered; the
	// loop observes ctx on its next iteration.
	wctx := ctx
	if ctx.Err() != nil {
		wctx = context.WithoutCancel(ctx)
	}
	return d.writePending(wctx, w)
}

// dropPending abandons a sample whose write was interrupted by
// cancellation. Its packets are released by cancelled.
func (d *Driver) dropPending() {
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
}

// writePending writes the pending sample and, on success, resets the
// accumulator for the next scan.
func (d *Driver) writePending(ctx context.Context, w SampleWriter) error {
	ps := d.pending
	if err := w.WriteSample(ctx, ps.index, ps.payload); err != nil {
		d.update(func(*RunStats) {})
		lidar.Opsf("sample %d write failed, keeping it for retry: %v", ps.index, err)
		return &WriteFailureError{SampleIndex: ps.index, Err: err}
	}

	d.acc.Reset()
	d.mu.Lock()
	d.pending = nil
	d.mu.Unlock()
	d.update(func(s *RunStats) {
		s.Samples++
		s.NextIndex = ps.index + 1
		s.LastSampleAt = d.clock.Now()
	})
	return nil
}

// RetryPending re-attempts the write that last failed. It is a no-op when
// nothing is pending.
func (d *Driver) RetryPending(ctx context.Context, w SampleWriter) error {
	if d.pending == nil {
		return nil
	}
	return d.writePending(ctx, w)
}

// HasPending reports whether a failed write awaits RetryPending.
func (d *Driver) HasPending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

func (d *Driver) cancelled() RunStats {
	discarded := len(d.acc.Pending())
	d.acc.Reset()
	d.update(func(s *RunStats) {
		s.Cancelled = true
		s.DiscardedPackets += discarded
	})
	lidar.Opsf("run cancelled, released %d buffered packets", discarded)
	return d.Stats()
}

func (d *Driver) exhausted() RunStats {
	discarded := len(d.acc.Pending())
	if discarded > 0 {
		lidar.Diagf("source exhausted with partial scan (%d packets, %d/%d points), discarding",
			discarded, d.acc.Captured(), d.acc.Target())
	}
	d.acc.Reset()
	d.update(func(s *RunStats) { s.DiscardedPackets += discarded })
	return d.Stats()
}
