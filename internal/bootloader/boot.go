package bootloader

import (
	"context"

	"github.com/bigbag/stm32-bootloader/internal/handoff"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

// BootPin reports the state of the boot-mode selector sampled at reset.
type BootPin interface {
	BootloaderRequested() bool
}

// BootPinFunc adapts a function to BootPin.
type BootPinFunc func() bool

func (f BootPinFunc) BootloaderRequested() bool { return f() }

// Boot runs the engine when the pin asks for bootloader mode and otherwise
// starts the application at the configured vector table.
func Boot(ctx context.Context, pin BootPin, e *Engine) error {
	if pin.BootloaderRequested() {
		util.LogInfo("boot pin set, entering bootloader mode")
		return e.Run(ctx)
	}

	util.LogInfo("boot pin clear, starting application at 0x%08X", e.config.VectorTable)
	return handoff.JumpToApplication(e.hw.Memory, e.hw.CPU, e.config.VectorTable)
}
