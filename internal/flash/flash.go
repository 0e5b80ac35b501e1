// Package flash executes erase and program requests against the flash
// controller. Every controller access is bracketed by Unlock and a deferred
// Lock, so the controller is re-locked on every return path.
package flash

import (
	"fmt"

	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
)

// Status is a flash controller status code. Values pass through to the host verbatim.
type Status byte

const (
	StatusOK            Status = protocol.FlashOK
	StatusError         Status = protocol.FlashError
	StatusBusy          Status = protocol.FlashBusy
	StatusTimeout       Status = protocol.FlashTimeout
	StatusInvalidSector Status = protocol.StatusInvalidSector
)

func (s Status) String() string {
	return fmt.Sprintf("0x%02X (%s)", byte(s), protocol.StatusMessage(byte(s)))
}

// ChunkSize bounds how many bytes are programmed per unlock/lock bracket.
const ChunkSize = 128

// EraseRequest is what the controller is asked to erase.
type EraseRequest struct {
	Mass   bool
	Sector uint8
	Count  uint8
}

// Controller is the flash peripheral.
type Controller interface {
	Unlock() Status
	Lock() Status
	Erase(req EraseRequest) Status
	// ProgramByte programs one byte; one byte is the programming granularity.
	ProgramByte(addr uint32, value byte) Status
}

// locked runs fn with the controller unlocked.
func locked(ctrl Controller, fn func() Status) Status {
	if st := ctrl.Unlock(); st != StatusOK {
		return st
	}
	defer ctrl.Lock()
	return fn()
}

// Erase erases count sectors from start, or the whole device when start is
// protocol.MassEraseSector. count is clamped to the sectors remaining after start.
func Erase(ctrl Controller, start, count uint8) Status {
	if count > memmap.MaxSector {
		return StatusInvalidSector
	}

	var req EraseRequest
	switch {
	case start == protocol.MassEraseSector:
		req = EraseRequest{Mass: true}
	case start < memmap.MaxSector:
		if remaining := memmap.MaxSector - start; count > remaining {
			count = remaining
		}
		req = EraseRequest{Sector: start, Count: count}
	default:
		return StatusInvalidSector
	}

	return locked(ctrl, func() Status {
		return ctrl.Erase(req)
	})
}

// Write programs src at addr in ChunkSize pieces. The first failing byte aborts
// the write and its status is returned; bytes already programmed stay programmed.
func Write(ctrl Controller, src []byte, addr uint32) Status {
	for written := 0; written < len(src); written += ChunkSize {
		end := written + ChunkSize
		if end > len(src) {
			end = len(src)
		}
		chunk := src[written:end]
		base := addr + uint32(written)

		st := locked(ctrl, func() Status {
			for i, b := range chunk {
				if st := ctrl.ProgramByte(base+uint32(i), b); st != StatusOK {
					return st
				}
			}
			return StatusOK
		})
		if st != StatusOK {
			return st
		}
	}
	return StatusOK
}
