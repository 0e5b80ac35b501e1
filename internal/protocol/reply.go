package protocol

import (
	"errors"
	"fmt"
)

// ErrShortReply is returned when a reply ends before its announced length.
var ErrShortReply = errors.New("reply too short")

// Reply is the device's answer to one request: NACK alone, or ACK with a
// follow-length byte and that many payload bytes.
type Reply struct {
	Acked bool
	Data  []byte
}

// Status returns the first payload byte, which is the status for erase,
// write and go requests.
func (r *Reply) Status() (byte, bool) {
	if !r.Acked || len(r.Data) == 0 {
		return 0, false
	}
	return r.Data[0], true
}

// DecodeReply parses a complete reply.
func DecodeReply(b []byte) (*Reply, error) {
	if len(b) == 0 {
		return nil, ErrShortReply
	}

	switch b[0] {
	case Nack:
		return &Reply{}, nil
	case Ack:
		if len(b) < 2 {
			return nil, fmt.Errorf("%w: missing follow length", ErrShortReply)
		}
		n := int(b[1])
		if len(b) < 2+n {
			return nil, fmt.Errorf("%w: want %d payload bytes, have %d", ErrShortReply, n, len(b)-2)
		}
		return &Reply{Acked: true, Data: b[2 : 2+n]}, nil
	default:
		return nil, fmt.Errorf("unexpected reply byte 0x%02X", b[0])
	}
}
