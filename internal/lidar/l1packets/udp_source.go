package l1packets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"

	"github.com/banshee-data/lidar-samples/internal/lidar"
)

// maxDatagram is the largest UDP payload; one JSON packet per datagram.
const maxDatagram = 65535

// UDPSourceConfig configures a UDPSource.
type UDPSourceConfig struct {
	Address     string        // bind address, e.g. ":2370"
	RcvBuf      int           // socket receive buffer in bytes (0 = OS default)
	IdleTimeout time.Duration // end the stream after this long without a datagram (0 = never)
}

// UDPSource receives live packets, one JSON document per datagram.
type UDPSource struct {
	cfg  UDPSourceConfig
	conn *net.UDPConn
	buf  []byte

	mu       sync.Mutex
	received int64
	bytes    int64
}

// NewUDPSource binds the configured address.
func NewUDPSource(cfg UDPSourceConfig) (*UDPSource, error) {
	addr, err := net.ResolveUDPAddr("udp", cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP address: %w", err)
	}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on UDP address: %w", err)
	}
	if cfg.RcvBuf > 0 {
		if err := conn.SetReadBuffer(cfg.RcvBuf); err != nil {
			lidar.Opsf("Warning: failed to set UDP receive buffer to %d bytes: %v", cfg.RcvBuf, err)
		}
	}
	lidar.Opsf("UDP packet source listening on %s", conn.LocalAddr())
	return &UDPSource{cfg: cfg, conn: conn, buf: make([]byte, maxDatagram)}, nil
}

// LocalAddr returns the bound address.
func (s *UDPSource) LocalAddr() net.Addr {
	return s.conn.LocalAddr()
}

// Next blocks until a datagram arrives and decodes it. It returns io.EOF
// when the idle timeout elapses and ctx.Err() when ctx is cancelled.
func (s *UDPSource) Next(ctx context.Context) (*Packet, error) {
	lastData := time.Now()
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		// Short deadlines let us observe ctx cancellation between reads.
		if err := s.conn.SetReadDeadline(time.Now().Add(100 * time.Millisecond)); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
		n, _, err := s.conn.ReadFromUDP(s.buf)
		if err != nil {
			var netErr net.Error
			if errors.As(err, &netErr) && netErr.Timeout() {
				if s.cfg.IdleTimeout > 0 && time.Since(lastData) >= s.cfg.IdleTimeout {
					lidar.Opsf("UDP packet source idle for %v, ending stream", s.cfg.IdleTimeout)
					return nil, io.EOF
				}
				continue
			}
			if errors.Is(err, net.ErrClosed) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("UDP read error: %w", err)
		}

		s.mu.Lock()
		s.received++
		s.bytes += int64(n)
		s.mu.Unlock()

		return DecodeJSON(s.buf[:n])
	}
}

// Stats returns the number of datagrams and bytes received so far.
func (s *UDPSource) Stats() (packets, bytes int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.received, s.bytes
}

// Close releases the socket.
func (s *UDPSource) Close() error {
	return s.conn.Close()
}
