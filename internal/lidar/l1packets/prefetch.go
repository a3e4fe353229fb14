package l1packets

import (
	"context"
	"io"

	"golang.org/x/sync/errgroup"
)

type fetched struct {
	packet *Packet
	err    error
}

// PrefetchSource reads ahead from a slower source (typically DirSource)
// on a background goroutine. Packets are delivered in exactly the order
// the wrapped source produced them; the first error, including io.EOF,
// is delivered in-band after the packets preceding it.
type PrefetchSource struct {
	ch     chan fetched
	cancel context.CancelFunc
	g      *errgroup.Group
	done   error
}

// NewPrefetchSource starts reading src with up to depth packets buffered.
// Call Close to stop the reader and release buffered packets.
func NewPrefetchSource(ctx context.Context, src Source, depth int) *PrefetchSource {
	if depth < 1 {
		depth = 1
	}
	ctx, cancel := context.WithCancel(ctx)
	g, gctx := errgroup.WithContext(ctx)
	ps := &PrefetchSource{
		ch:     make(chan fetched, depth),
		cancel: cancel,
		g:      g,
	}
	g.Go(func() error {
		defer close(ps.ch)
		for {
			p, err := src.Next(gctx)
			select {
			case ps.ch <- fetched{packet: p, err: err}:
			case <-gctx.Done():
				return gctx.Err()
			}
			if err != nil {
				return nil
			}
		}
	})
	return ps
}

// Next returns the next prefetched packet.
func (ps *PrefetchSource) Next(ctx context.Context) (*Packet, error) {
	if ps.done != nil {
		return nil, ps.done
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case f, ok := <-ps.ch:
		if !ok {
			ps.done = io.EOF
			return nil, io.EOF
		}
		if f.err != nil {
			ps.done = f.err
		}
		return f.packet, f.err
	}
}

// Close stops the background reader and discards anything buffered.
func (ps *PrefetchSource) Close() error {
	ps.cancel()
	for range ps.ch {
	}
	if err := ps.g.Wait(); err != nil && err != context.Canceled {
		return err
	}
	return nil
}
