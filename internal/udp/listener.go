// Package udp carries signals over datagrams: the inbound listener, the
// reply sender and a small client used by the CLI.
package udp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
)

// MaxBufferSize is the largest datagram payload the listener reads.
const MaxBufferSize = 65535

// Handler receives every inbound packet. *dispatch.Dispatcher satisfies it.
type Handler interface {
	OnSignal(ctx context.Context, addr net.Addr, raw []byte)
}

// Listener owns the inbound socket and forwards packets serially, in
// arrival order, to its Handler.
type Listener struct {
	conn    net.PacketConn
	bufSize int
	handler Handler
	logger  *slog.Logger

	closeOnce sync.Once
}

// Listen binds addr. Packets are not read until Serve is called, so the
// caller can finish wiring first.
func Listen(addr string, bufSize int, h Handler, logger *slog.Logger) (*Listener, error) {
	if h == nil {
		return nil, errors.New("udp: handler is required")
	}
	if bufSize <= 0 || bufSize > MaxBufferSize {
		return nil, fmt.Errorf("udp: buffer size %d out of range (1..%d)", bufSize, MaxBufferSize)
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := net.ListenPacket("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("udp: listen %s: %w", addr, err)
	}
	return &Listener{conn: conn, bufSize: bufSize, handler: h, logger: logger}, nil
}

// Addr returns the bound local address.
func (l *Listener) Addr() net.Addr { return l.conn.LocalAddr() }

// Serve reads packets until ctx is done or the listener is closed. It
// returns nil on a clean shutdown.
func (l *Listener) Serve(ctx context.Context) error {
	l.logger.Info("listening for signals", "addr", l.Addr().String(), "buffer", l.bufSize)
	defer l.logger.Info("listener stopped")

	stop := context.AfterFunc(ctx, func() { _ = l.Close() })
	defer stop()

	buf := make([]byte, l.bufSize)
	for {
		n, addr, err := l.conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				return nil
			}
			l.logger.Warn("read failed", "error", err)
			continue
		}
		packet := make([]byte, n)
		copy(packet, buf[:n])
		l.handler.OnSignal(ctx, addr, packet)
	}
}

// Close releases the socket. Safe to call more than once.
func (l *Listener) Close() error {
	var err error
	l.closeOnce.Do(func() { err = l.conn.Close() })
	return err
}
