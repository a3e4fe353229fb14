package l1packets

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSource struct {
	inner Source
	err   error
}

func (f *failingSource) Next(ctx context.Context) (*Packet, error) {
	p, err := f.inner.Next(ctx)
	if errors.Is(err, io.EOF) {
		return nil, f.err
	}
	return p, err
}

func TestPrefetchSource_PreservesOrder(t *testing.T) {
	var packets []*Packet
	for i := 0; i < 50; i++ {
		packets = append(packets, UniformPacket(i, 1, 1))
	}
	ps := NewPrefetchSource(context.Background(), NewSliceSource(packets...), 4)
	defer ps.Close()

	want := make([]float32, 50)
	for i := range want {
		want[i] = float32(i)
	}
	assert.Equal(t, want, drain(t, ps))

	_, err := ps.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestPrefetchSource_DeliversErrorAfterPackets(t *testing.T) {
	boom := errors.New("disk on fire")
	src := &failingSource{inner: NewSliceSource(UniformPacket(0, 1, 1), UniformPacket(1, 1, 1)), err: boom}
	ps := NewPrefetchSource(context.Background(), src, 8)
	defer ps.Close()

	for i := 0; i < 2; i++ {
		p, err := ps.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, float32(i), p.Points[0].X)
	}
	_, err := ps.Next(context.Background())
	assert.ErrorIs(t, err, boom)
	_, err = ps.Next(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestPrefetchSource_CloseReleasesReader(t *testing.T) {
	var packets []*Packet
	for i := 0; i < 100; i++ {
		packets = append(packets, UniformPacket(i, 1, 1))
	}
	ps := NewPrefetchSource(context.Background(), NewSliceSource(packets...), 2)

	_, err := ps.Next(context.Background())
	require.NoError(t, err)
	assert.NoError(t, ps.Close())
}
