// Package frame reads length-prefixed bootloader frames off a transport.
package frame

import (
	"errors"
	"fmt"
	"time"

	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/transport"
)

// BufferSize is the capacity of the receive buffer, length byte included.
const BufferSize = protocol.MaxFrameSize

// ErrFrameTooLarge is returned when a length byte announces more bytes than
// the buffer can hold. The link is out of sync once this happens.
var ErrFrameTooLarge = errors.New("frame exceeds receive buffer")

// Receiver owns the working buffer frames are assembled in.
type Receiver struct {
	t   transport.Transport
	buf [BufferSize]byte
}

// NewReceiver returns a Receiver reading from t.
func NewReceiver(t transport.Transport) *Receiver {
	return &Receiver{t: t}
}

// Next blocks for one length byte and then for exactly that many more bytes.
// The length byte wait uses idle; the body wait uses body. The returned
// packet aliases the receive buffer and is valid until the next call.
func (r *Receiver) Next(idle, body time.Duration) (protocol.Packet, error) {
	if err := r.t.Receive(r.buf[:1], idle); err != nil {
		return nil, err
	}

	length := int(r.buf[0])
	if 1+length > len(r.buf) {
		return nil, fmt.Errorf("%w: length byte %d, capacity %d", ErrFrameTooLarge, length, len(r.buf))
	}

	if length > 0 {
		if err := r.t.Receive(r.buf[1:1+length], body); err != nil {
			return nil, fmt.Errorf("frame body (%d bytes): %w", length, err)
		}
	}

	return protocol.Packet(r.buf[:1+length]), nil
}
