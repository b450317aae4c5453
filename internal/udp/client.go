package udp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strconv"
	"time"

	"github.com/mattjoyce/feedbackd/internal/protocol"
)

// Replier answers query commands by sending to the origin host on a fixed
// reply port.
type Replier struct {
	codec  protocol.Codec
	port   int
	logger *slog.Logger
}

func NewReplier(codec protocol.Codec, port int, logger *slog.Logger) *Replier {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Replier{codec: codec, port: port, logger: logger}
}

// Reply encodes sig and sends it to origin's host on the reply port.
func (r *Replier) Reply(origin net.Addr, sig *protocol.Signal) error {
	host, err := hostOf(origin)
	if err != nil {
		return err
	}
	dest := net.JoinHostPort(host, strconv.Itoa(r.port))
	r.logger.Debug("sending reply", "dest", dest)
	return Send(dest, r.codec, sig)
}

func hostOf(a net.Addr) (string, error) {
	switch v := a.(type) {
	case nil:
		return "", errors.New("udp: reply origin is nil")
	case *net.UDPAddr:
		return v.IP.String(), nil
	default:
		host, _, err := net.SplitHostPort(a.String())
		if err != nil {
			return "", fmt.Errorf("udp: reply origin %q: %w", a.String(), err)
		}
		return host, nil
	}
}

// Send encodes sig and writes it as a single datagram to addr.
func Send(addr string, codec protocol.Codec, sig *protocol.Signal) error {
	b, err := codec.Encode(sig)
	if err != nil {
		return fmt.Errorf("udp: encode: %w", err)
	}
	if len(b) > MaxBufferSize {
		return fmt.Errorf("udp: encoded signal is %d bytes, max %d", len(b), MaxBufferSize)
	}
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return fmt.Errorf("udp: dial %s: %w", addr, err)
	}
	defer conn.Close()
	if _, err := conn.Write(b); err != nil {
		return fmt.Errorf("udp: write %s: %w", addr, err)
	}
	return nil
}

// Request sends sig to addr and waits on replyAddr for the first reply
// that decodes.
func Request(ctx context.Context, addr, replyAddr string, codec protocol.Codec, sig *protocol.Signal, timeout time.Duration) (*protocol.Signal, error) {
	conn, err := net.ListenPacket("udp", replyAddr)
	if err != nil {
		return nil, fmt.Errorf("udp: listen for reply on %s: %w", replyAddr, err)
	}
	defer conn.Close()

	if err := Send(addr, codec, sig); err != nil {
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, err
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.SetReadDeadline(time.Now()) })
	defer stop()

	buf := make([]byte, MaxBufferSize)
	for {
		n, _, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			return nil, fmt.Errorf("udp: waiting for reply: %w", err)
		}
		reply, err := codec.Decode(buf[:n])
		if err != nil {
			continue
		}
		return reply, nil
	}
}
