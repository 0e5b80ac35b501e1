package protocol

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bigbag/stm32-bootloader/internal/crc"
)

// Frame geometry
const (
	// MaxFrameSize is the capacity of the device receive buffer, length byte included.
	MaxFrameSize = 200

	// ChecksumSize is the size of the trailing CRC32 field.
	ChecksumSize = 4

	// MinLength is the smallest legal value of the length byte: command + checksum.
	MinLength = 1 + ChecksumSize

	// MaxWritePayload is the largest MEM_WRITE payload that fits in one frame.
	MaxWritePayload = MaxFrameSize - 7 - ChecksumSize

	// WriteChunkSize is the payload size hosts use when streaming an image.
	WriteChunkSize = 128
)

var (
	// ErrShortPacket is returned for frames whose length byte is below MinLength.
	ErrShortPacket = errors.New("packet too short")

	// ErrTruncatedPayload is returned when a command's payload does not fit in its frame.
	ErrTruncatedPayload = errors.New("payload truncated")
)

// Packet is one received frame: [length][command][payload...][crc32 LE].
// A Packet handed out by a receiver aliases the receive buffer.
type Packet []byte

// Length returns the value of the length byte.
func (p Packet) Length() int {
	if len(p) == 0 {
		return 0
	}
	return int(p[0])
}

// Validate checks that the frame is large enough to carry a command and a checksum
// and that its size matches the length byte.
func (p Packet) Validate() error {
	if len(p) == 0 {
		return ErrShortPacket
	}
	if len(p) != p.Length()+1 {
		return fmt.Errorf("frame size %d does not match length byte %d", len(p), p.Length())
	}
	if p.Length() < MinLength {
		return fmt.Errorf("%w: length byte %d", ErrShortPacket, p.Length())
	}
	return nil
}

// Command returns the command code byte.
func (p Packet) Command() byte {
	if len(p) < 2 {
		return 0
	}
	return p[1]
}

// Covered returns the bytes protected by the checksum: everything but the trailing CRC.
func (p Packet) Covered() []byte {
	return p[:len(p)-ChecksumSize]
}

// Checksum returns the host-supplied CRC32 from the end of the frame.
func (p Packet) Checksum() uint32 {
	return binary.LittleEndian.Uint32(p[len(p)-ChecksumSize:])
}

// body returns the command payload between the command byte and the checksum.
func (p Packet) body() []byte {
	return p[2 : len(p)-ChecksumSize]
}

// Command is a decoded request. The set of variants is closed: GetVersion,
// FlashErase, MemoryWrite, GoToAddress and Unrecognized.
type Command interface {
	Code() byte
	command()
}

// GetVersion asks for the bootloader version.
type GetVersion struct{}

// FlashErase asks for a mass erase (StartSector == MassEraseSector) or a run of sectors.
type FlashErase struct {
	StartSector uint8
	SectorCount uint8
}

// MemoryWrite asks to program Data starting at Address.
type MemoryWrite struct {
	Address uint32
	Data    []byte
}

// GoToAddress asks the bootloader to branch to Address.
type GoToAddress struct {
	Address uint32
}

// Unrecognized carries any command code without a handler, reserved codes included.
type Unrecognized struct {
	Command byte
}

func (GetVersion) Code() byte     { return CmdGetVersion }
func (FlashErase) Code() byte     { return CmdFlashErase }
func (MemoryWrite) Code() byte    { return CmdMemoryWrite }
func (GoToAddress) Code() byte    { return CmdGoToAddress }
func (u Unrecognized) Code() byte { return u.Command }

func (GetVersion) command()   {}
func (FlashErase) command()   {}
func (MemoryWrite) command()  {}
func (GoToAddress) command()  {}
func (Unrecognized) command() {}

// Decode parses a validated packet into its command variant.
// MemoryWrite.Data aliases the packet.
func Decode(p Packet) (Command, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	body := p.body()

	switch p.Command() {
	case CmdGetVersion:
		return GetVersion{}, nil

	case CmdFlashErase:
		if len(body) < 2 {
			return nil, fmt.Errorf("%w: FLASH_ERASE needs 2 bytes, have %d", ErrTruncatedPayload, len(body))
		}
		return FlashErase{StartSector: body[0], SectorCount: body[1]}, nil

	case CmdMemoryWrite:
		if len(body) < 5 {
			return nil, fmt.Errorf("%w: MEM_WRITE header needs 5 bytes, have %d", ErrTruncatedPayload, len(body))
		}
		n := int(body[4])
		if n > len(body)-5 {
			return nil, fmt.Errorf("%w: MEM_WRITE declares %d bytes, have %d", ErrTruncatedPayload, n, len(body)-5)
		}
		return MemoryWrite{
			Address: binary.LittleEndian.Uint32(body[0:4]),
			Data:    body[5 : 5+n],
		}, nil

	case CmdGoToAddress:
		if len(body) < 4 {
			return nil, fmt.Errorf("%w: GO_TO_ADDR needs 4 bytes, have %d", ErrTruncatedPayload, len(body))
		}
		return GoToAddress{Address: binary.LittleEndian.Uint32(body[0:4])}, nil

	default:
		return Unrecognized{Command: p.Command()}, nil
	}
}

// Request represents a host-to-device request frame.
type Request struct {
	Command  byte
	Data     []byte
	Checksum uint32
}

// NewRequest creates a new request with calculated checksum.
func NewRequest(cmd byte, data []byte) *Request {
	r := &Request{
		Command: cmd,
		Data:    data,
	}
	r.Checksum = crc.Checksum(r.header())
	return r
}

// header returns the checksummed part of the frame: length, command and payload.
func (r *Request) header() []byte {
	buf := make([]byte, 2+len(r.Data))
	buf[0] = byte(1 + len(r.Data) + ChecksumSize)
	buf[1] = r.Command
	copy(buf[2:], r.Data)
	return buf
}

// Encode serializes the request to wire bytes.
func (r *Request) Encode() []byte {
	// Frame format:
	// 0: length of everything that follows
	// 1: command
	// 2..n: payload
	// n+1..n+4: CRC32 (little-endian) over bytes 0..n
	frame := r.header()
	frame = binary.LittleEndian.AppendUint32(frame, r.Checksum)
	return frame
}

// GetVersionRequest builds a GET_VER request.
func GetVersionRequest() *Request {
	return NewRequest(CmdGetVersion, nil)
}

// FlashEraseRequest builds a FLASH_ERASE request.
func FlashEraseRequest(startSector, count uint8) *Request {
	return NewRequest(CmdFlashErase, []byte{startSector, count})
}

// MemoryWriteRequest builds a MEM_WRITE request for one chunk of data.
func MemoryWriteRequest(address uint32, data []byte) (*Request, error) {
	if len(data) > MaxWritePayload {
		return nil, fmt.Errorf("write payload %d bytes exceeds %d", len(data), MaxWritePayload)
	}
	payload := make([]byte, 5+len(data))
	binary.LittleEndian.PutUint32(payload[0:4], address)
	payload[4] = byte(len(data))
	copy(payload[5:], data)
	return NewRequest(CmdMemoryWrite, payload), nil
}

// GoToAddressRequest builds a GO_TO_ADDR request.
func GoToAddressRequest(address uint32) *Request {
	payload := make([]byte, 4)
	binary.LittleEndian.PutUint32(payload, address)
	return NewRequest(CmdGoToAddress, payload)
}
