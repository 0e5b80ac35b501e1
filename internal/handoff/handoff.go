// Package handoff contains the bootloader's terminal transitions: branching to
// a host-supplied address and starting the resident application. On hardware
// neither returns; with a simulated CPU they return ErrTransferred so callers
// can tell that the bootloader has given up control.
package handoff

import (
	"errors"
	"fmt"

	"github.com/bigbag/stm32-bootloader/internal/util"
)

// ThumbBit must be set in every branch target on Cortex-M.
const ThumbBit = 0x1

// ErrTransferred reports that control left the bootloader.
var ErrTransferred = errors.New("control transferred out of bootloader")

// CPU exposes the two core operations a hand-off needs.
type CPU interface {
	// SetStackPointer loads the main stack pointer.
	SetStackPointer(sp uint32)
	// Branch transfers execution to addr. It does not return on hardware.
	Branch(addr uint32)
}

// Memory reads words from the device address space.
type Memory interface {
	ReadWord(addr uint32) (uint32, error)
}

// Jump branches to addr with the Thumb bit forced on.
func Jump(cpu CPU, addr uint32) error {
	target := addr | ThumbBit
	util.LogDebug("jumping to go address 0x%08X", target)
	cpu.Branch(target)
	return ErrTransferred
}

// JumpToApplication starts the application whose vector table is at base:
// the word at base is the initial stack pointer, the word at base+4 the reset handler.
func JumpToApplication(mem Memory, cpu CPU, base uint32) error {
	sp, err := mem.ReadWord(base)
	if err != nil {
		return fmt.Errorf("failed to read initial stack pointer at 0x%08X: %w", base, err)
	}
	reset, err := mem.ReadWord(base + 4)
	if err != nil {
		return fmt.Errorf("failed to read reset handler at 0x%08X: %w", base+4, err)
	}

	util.LogDebug("MSP value: 0x%08X", sp)
	cpu.SetStackPointer(sp)
	util.LogDebug("app reset handler addr: 0x%08X", reset)
	cpu.Branch(reset)
	return ErrTransferred
}
