package bootloader

import (
	"context"
	"errors"
	"fmt"

	"github.com/bigbag/stm32-bootloader/internal/crc"
	"github.com/bigbag/stm32-bootloader/internal/flash"
	"github.com/bigbag/stm32-bootloader/internal/frame"
	"github.com/bigbag/stm32-bootloader/internal/handoff"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/transport"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

// Hardware bundles the peripherals the engine drives.
type Hardware struct {
	Flash  flash.Controller
	Memory handoff.Memory
	CPU    handoff.CPU
	CRC    crc.Accumulator
}

// Indicator is an activity light.
type Indicator interface {
	On()
	Off()
}

type nopIndicator struct{}

func (nopIndicator) On()  {}
func (nopIndicator) Off() {}

// Engine is the bootloader command loop. It is not safe for concurrent use;
// one engine serves one link.
type Engine struct {
	t      transport.Transport
	rx     *frame.Receiver
	hw     Hardware
	config Config
}

// New creates an Engine reading frames from t.
func New(t transport.Transport, hw Hardware, opts ...Option) *Engine {
	if t == nil {
		panic("transport cannot be nil")
	}
	if hw.Flash == nil || hw.Memory == nil || hw.CPU == nil || hw.CRC == nil {
		panic("hardware is incomplete")
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Engine{
		t:      t,
		rx:     frame.NewReceiver(t),
		hw:     hw,
		config: cfg,
	}
}

// Run serves frames until control is handed off (handoff.ErrTransferred),
// the transport fails, a frame overflows the receive buffer
// (frame.ErrFrameTooLarge) or ctx is done. Receive timeouts are not errors:
// a partial frame is dropped and the loop waits for the next one.
func (e *Engine) Run(ctx context.Context) error {
	util.LogDebug("bootloader mode, waiting for host")
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		pkt, err := e.rx.Next(e.config.IdleTimeout, e.config.FrameTimeout)
		if err != nil {
			if errors.Is(err, transport.ErrTimeout) {
				continue
			}
			if errors.Is(err, frame.ErrFrameTooLarge) {
				util.LogError("receive buffer overflow: %v", err)
			}
			return err
		}

		if err := e.Handle(pkt); err != nil {
			return err
		}
	}
}

// Handle processes one received frame. Integrity is checked before anything
// else: a frame whose checksum does not match is answered with NACK whatever
// its command code. It returns handoff.ErrTransferred after a jump and any
// transmit error.
func (e *Engine) Handle(pkt protocol.Packet) error {
	if err := pkt.Validate(); err != nil {
		util.LogDebug("rejecting frame: %v", err)
		return e.sendNack()
	}

	if !crc.Verify(e.hw.CRC, pkt.Covered(), pkt.Checksum()) {
		util.LogDebug("checksum fail for command 0x%02X", pkt.Command())
		return e.sendNack()
	}
	util.LogDebug("checksum success")

	cmd, err := protocol.Decode(pkt)
	if err != nil {
		util.LogDebug("rejecting %s: %v", protocol.CommandName(pkt.Command()), err)
		return e.sendNack()
	}

	switch c := cmd.(type) {
	case protocol.GetVersion:
		return e.getVersion()
	case protocol.FlashErase:
		return e.flashErase(c)
	case protocol.MemoryWrite:
		return e.memoryWrite(c)
	case protocol.GoToAddress:
		return e.goToAddress(c)
	case protocol.Unrecognized:
		util.LogWarning("invalid command code 0x%02X received from host", c.Command)
		return nil
	default:
		return fmt.Errorf("no handler for %T", cmd)
	}
}

func (e *Engine) sendAck(followLen byte) error {
	return e.t.Transmit([]byte{protocol.Ack, followLen})
}

func (e *Engine) sendNack() error {
	return e.t.Transmit([]byte{protocol.Nack})
}

func (e *Engine) reply(b byte) error {
	return e.t.Transmit([]byte{b})
}
