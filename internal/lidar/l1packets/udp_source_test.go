package l1packets

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUDPSource_ReceivesPackets(t *testing.T) {
	src, err := NewUDPSource(UDPSourceConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	defer src.Close()

	conn, err := net.Dial("udp", src.LocalAddr().String())
	require.NoError(t, err)
	defer conn.Close()

	data, err := EncodeJSON(UniformPacket(7, 2, 3))
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	p, err := src.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 3}, p.PointsCountByChannel)
	assert.Equal(t, float32(7), p.Points[0].X)

	packets, bytes := src.Stats()
	assert.Equal(t, int64(1), packets)
	assert.Equal(t, int64(len(data)), bytes)
}

func TestUDPSource_IdleTimeoutEndsStream(t *testing.T) {
	src, err := NewUDPSource(UDPSourceConfig{Address: "127.0.0.1:0", IdleTimeout: 150 * time.Millisecond})
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next(context.Background())
	assert.ErrorIs(t, err, io.EOF)
}

func TestUDPSource_Cancellation(t *testing.T) {
	src, err := NewUDPSource(UDPSourceConfig{Address: "127.0.0.1:0"})
	require.NoError(t, err)
	defer src.Close()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	_, err = src.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
