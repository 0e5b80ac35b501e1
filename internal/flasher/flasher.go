package flasher

import (
	"errors"
	"fmt"
	"time"

	"github.com/bigbag/stm32-bootloader/internal/image"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/transport"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

// DefaultTimeout bounds the wait for a reply. Mass erase is the slowest request.
const DefaultTimeout = 5 * time.Second

// ErrNACK is returned when the device rejects a request's checksum.
var ErrNACK = errors.New("device replied NACK")

// StatusError reports a request that was acknowledged but failed on the device.
type StatusError struct {
	Command byte
	Status  byte
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed: status 0x%02X (%s)", protocol.CommandName(e.Command), e.Status, e.message())
}

func (e *StatusError) message() string {
	if e.Status == protocol.StatusAddressInvalid {
		switch e.Command {
		case protocol.CmdGoToAddress:
			return "invalid address"
		case protocol.CmdMemoryWrite:
			return "invalid address or flash error"
		}
	}
	return protocol.StatusMessage(e.Status)
}

// ProgressCallback is called to report flash progress.
type ProgressCallback func(current, total int)

// Flasher drives the bootloader from the host side.
type Flasher struct {
	link     transport.Transport
	timeout  time.Duration
	progress ProgressCallback
}

// New creates a new Flasher talking over link.
func New(link transport.Transport) *Flasher {
	return &Flasher{link: link, timeout: DefaultTimeout}
}

// SetProgressCallback sets the progress callback function.
func (f *Flasher) SetProgressCallback(cb ProgressCallback) {
	f.progress = cb
}

// SetTimeout sets how long to wait for each reply.
func (f *Flasher) SetTimeout(d time.Duration) {
	f.timeout = d
}

// reportProgress calls the progress callback if set.
func (f *Flasher) reportProgress(current, total int) {
	if f.progress != nil {
		f.progress(current, total)
	}
}

// GetVersion returns the bootloader version.
func (f *Flasher) GetVersion() (byte, error) {
	resp, err := f.transact(protocol.GetVersionRequest())
	if err != nil {
		return 0, err
	}
	if len(resp.Data) != 1 {
		return 0, fmt.Errorf("GET_VER: expected 1 byte, got %d", len(resp.Data))
	}
	return resp.Data[0], nil
}

// Erase erases count sectors starting at start.
func (f *Flasher) Erase(start, count uint8) error {
	return f.sendCommand(protocol.FlashEraseRequest(start, count))
}

// MassErase erases the whole flash.
func (f *Flasher) MassErase() error {
	return f.sendCommand(protocol.FlashEraseRequest(protocol.MassEraseSector, 0))
}

// WriteMemory writes data at address in protocol.WriteChunkSize pieces,
// reporting progress in bytes.
func (f *Flasher) WriteMemory(address uint32, data []byte) error {
	img := &image.Image{Base: address, Data: data}
	written := 0

	for _, chunk := range img.Chunks(protocol.WriteChunkSize) {
		req, err := protocol.MemoryWriteRequest(chunk.Address, chunk.Data)
		if err != nil {
			return err
		}
		if err := f.sendCommand(req); err != nil {
			return fmt.Errorf("write at 0x%08X failed: %w", chunk.Address, err)
		}

		written += len(chunk.Data)
		f.reportProgress(written, len(data))
	}

	return nil
}

// GoTo asks the bootloader to branch to address. On success the bootloader
// has handed over control and no longer answers.
func (f *Flasher) GoTo(address uint32) error {
	return f.sendCommand(protocol.GoToAddressRequest(address))
}

// FlashImage runs the full download: version check, erase of the sectors the
// image covers, chunked write and, when start is set, a jump to the image's
// reset handler.
func (f *Flasher) FlashImage(img *image.Image, start bool) error {
	version, err := f.GetVersion()
	if err != nil {
		return fmt.Errorf("failed to get bootloader version: %w", err)
	}
	if version != protocol.Version {
		util.LogWarning("unexpected bootloader version 0x%02X, continuing", version)
	}

	first, count, err := img.Sectors()
	if err != nil {
		return err
	}
	util.LogDebug("erasing %d sector(s) from sector %d", count, first)
	if err := f.Erase(uint8(first), uint8(count)); err != nil {
		return fmt.Errorf("erase failed: %w", err)
	}

	if err := f.WriteMemory(img.Base, img.Data); err != nil {
		return err
	}

	if !start {
		return nil
	}

	_, reset, err := img.VectorTable()
	if err != nil {
		return err
	}
	util.LogDebug("starting application at 0x%08X", reset)
	if err := f.GoTo(reset); err != nil {
		return fmt.Errorf("go failed: %w", err)
	}
	return nil
}

// sendCommand sends a request whose reply is a single status byte and
// returns a *StatusError when the status is not OK.
func (f *Flasher) sendCommand(req *protocol.Request) error {
	resp, err := f.transact(req)
	if err != nil {
		return err
	}

	status, ok := resp.Status()
	if !ok {
		return fmt.Errorf("%s: reply carries no status", protocol.CommandName(req.Command))
	}
	if status != protocol.StatusOK {
		return &StatusError{Command: req.Command, Status: status}
	}
	return nil
}

// transact sends a request and reads the whole reply.
func (f *Flasher) transact(req *protocol.Request) (*protocol.Reply, error) {
	if err := f.link.Transmit(req.Encode()); err != nil {
		return nil, err
	}

	resp, err := f.readReply()
	if err != nil {
		return nil, fmt.Errorf("%s: %w", protocol.CommandName(req.Command), err)
	}
	return resp, nil
}

// readReply reads ACK, length and payload, or a lone NACK.
func (f *Flasher) readReply() (*protocol.Reply, error) {
	buf := make([]byte, 2, 2+255)
	if err := f.link.Receive(buf[:1], f.timeout); err != nil {
		return nil, fmt.Errorf("waiting for reply: %w", err)
	}
	if buf[0] != protocol.Ack {
		resp, err := protocol.DecodeReply(buf[:1])
		if err != nil {
			return nil, err
		}
		if !resp.Acked {
			return nil, ErrNACK
		}
	}

	if err := f.link.Receive(buf[1:2], f.timeout); err != nil {
		return nil, fmt.Errorf("reading reply length: %w", err)
	}
	n := int(buf[1])
	buf = buf[:2+n]
	if n > 0 {
		if err := f.link.Receive(buf[2:], f.timeout); err != nil {
			return nil, fmt.Errorf("reading %d reply bytes: %w", n, err)
		}
	}
	return protocol.DecodeReply(buf)
}
