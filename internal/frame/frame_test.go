package frame

import (
	"bytes"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/transport"
)

// scripted serves bytes from a fixed stream and records requested sizes.
type scripted struct {
	data     []byte
	requests []int
	timeouts []time.Duration
}

func (s *scripted) Receive(buf []byte, timeout time.Duration) error {
	s.requests = append(s.requests, len(buf))
	s.timeouts = append(s.timeouts, timeout)
	if len(s.data) == 0 {
		return transport.ErrTimeout
	}
	if len(s.data) < len(buf) {
		s.data = nil
		return io.ErrUnexpectedEOF
	}
	copy(buf, s.data)
	s.data = s.data[len(buf):]
	return nil
}

func (s *scripted) Transmit(p []byte) error { return nil }

func TestNext_ReadsLengthThenBody(t *testing.T) {
	frame := protocol.GetVersionRequest().Encode()
	src := &scripted{data: frame}

	p, err := NewReceiver(src).Next(transport.NoTimeout, time.Second)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if !bytes.Equal(p, frame) {
		t.Errorf("Next() = % X, want % X", []byte(p), frame)
	}
	if len(src.requests) != 2 || src.requests[0] != 1 || src.requests[1] != len(frame)-1 {
		t.Errorf("receive sizes = %v, want [1 %d]", src.requests, len(frame)-1)
	}
	if src.timeouts[0] != transport.NoTimeout || src.timeouts[1] != time.Second {
		t.Errorf("receive timeouts = %v, want [NoTimeout 1s]", src.timeouts)
	}
}

func TestNext_ConsecutiveFrames(t *testing.T) {
	first := protocol.GetVersionRequest().Encode()
	second := protocol.FlashEraseRequest(1, 2).Encode()
	src := &scripted{data: append(append([]byte{}, first...), second...)}
	r := NewReceiver(src)

	p, err := r.Next(transport.NoTimeout, time.Second)
	if err != nil || !bytes.Equal(p, first) {
		t.Fatalf("first Next() = (% X, %v), want % X", []byte(p), err, first)
	}
	p, err = r.Next(transport.NoTimeout, time.Second)
	if err != nil || !bytes.Equal(p, second) {
		t.Fatalf("second Next() = (% X, %v), want % X", []byte(p), err, second)
	}
}

func TestNext_LargestFrameFits(t *testing.T) {
	data := make([]byte, BufferSize)
	data[0] = BufferSize - 1
	src := &scripted{data: data}

	p, err := NewReceiver(src).Next(transport.NoTimeout, time.Second)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(p) != BufferSize {
		t.Errorf("len(Next()) = %d, want %d", len(p), BufferSize)
	}
}

func TestNext_OverflowIsRejected(t *testing.T) {
	for _, length := range []byte{BufferSize, 0xFF} {
		src := &scripted{data: append([]byte{length}, make([]byte, int(length))...)}

		_, err := NewReceiver(src).Next(transport.NoTimeout, time.Second)
		if !errors.Is(err, ErrFrameTooLarge) {
			t.Errorf("Next() with length %d error = %v, want ErrFrameTooLarge", length, err)
		}
		if len(src.requests) != 1 {
			t.Errorf("Next() with length %d made %d receives, want 1", length, len(src.requests))
		}
	}
}

func TestNext_ZeroLength(t *testing.T) {
	src := &scripted{data: []byte{0x00}}

	p, err := NewReceiver(src).Next(transport.NoTimeout, time.Second)
	if err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	if len(p) != 1 {
		t.Errorf("len(Next()) = %d, want 1", len(p))
	}
}

func TestNext_TimeoutPropagates(t *testing.T) {
	src := &scripted{}
	_, err := NewReceiver(src).Next(10*time.Millisecond, time.Second)
	if !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("Next() error = %v, want ErrTimeout", err)
	}

	// length byte arrives, body never does
	src = &scripted{data: []byte{0x05}}
	_, err = NewReceiver(src).Next(transport.NoTimeout, 10*time.Millisecond)
	if !errors.Is(err, transport.ErrTimeout) {
		t.Errorf("Next() with missing body error = %v, want ErrTimeout", err)
	}
}
