// Package transport is the byte-level link between the bootloader and its host.
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"time"
)

// NoTimeout makes Receive wait forever. It is the device default: a silent
// host stalls the bootloader until it speaks again.
const NoTimeout time.Duration = -1

// ErrTimeout is returned when Receive gives up before its buffer is full.
var ErrTimeout = errors.New("receive timeout")

// Transport moves raw bytes over a point-to-point link.
type Transport interface {
	// Receive blocks until buf is full, the timeout elapses or the link fails.
	Receive(buf []byte, timeout time.Duration) error
	// Transmit writes all of p.
	Transmit(p []byte) error
}

type readDeadliner interface {
	SetReadDeadline(t time.Time) error
}

// Stream adapts an io.ReadWriter. Timeouts are honoured when the stream
// supports read deadlines (net.Conn, net.Pipe); otherwise Receive blocks.
type Stream struct {
	rw io.ReadWriter
}

// NewStream wraps rw.
func NewStream(rw io.ReadWriter) *Stream {
	return &Stream{rw: rw}
}

// Receive fills buf from the stream.
func (s *Stream) Receive(buf []byte, timeout time.Duration) error {
	if d, ok := s.rw.(readDeadliner); ok {
		var deadline time.Time
		if timeout != NoTimeout {
			deadline = time.Now().Add(timeout)
		}
		if err := d.SetReadDeadline(deadline); err != nil {
			return fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	_, err := io.ReadFull(s.rw, buf)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
	return nil
}

// Transmit writes p to the stream.
func (s *Stream) Transmit(p []byte) error {
	n, err := s.rw.Write(p)
	if err != nil {
		return err
	}
	if n != len(p) {
		return io.ErrShortWrite
	}
	return nil
}

// Close closes the underlying stream if it is closable.
func (s *Stream) Close() error {
	if c, ok := s.rw.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
