package bootloader

import (
	"github.com/bigbag/stm32-bootloader/internal/flash"
	"github.com/bigbag/stm32-bootloader/internal/handoff"
	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

func (e *Engine) getVersion() error {
	util.LogDebug("BL_VER: %d 0x%02X", protocol.Version, protocol.Version)
	if err := e.sendAck(1); err != nil {
		return err
	}
	return e.reply(protocol.Version)
}

func (e *Engine) flashErase(c protocol.FlashErase) error {
	util.LogDebug("initial sector: %d sector count: %d", c.StartSector, c.SectorCount)
	if err := e.sendAck(1); err != nil {
		return err
	}

	e.config.Indicator.On()
	st := flash.Erase(e.hw.Flash, c.StartSector, c.SectorCount)
	e.config.Indicator.Off()

	util.LogDebug("flash erase status: %s", st)
	return e.reply(byte(st))
}

func (e *Engine) memoryWrite(c protocol.MemoryWrite) error {
	util.LogDebug("mem write address: 0x%08X (%d bytes)", c.Address, len(c.Data))
	if err := e.sendAck(1); err != nil {
		return err
	}

	if e.config.MemoryMap.Verify(c.Address) != memmap.Valid {
		util.LogDebug("invalid mem write address")
		return e.reply(protocol.StatusAddressInvalid)
	}

	e.config.Indicator.On()
	st := flash.Write(e.hw.Flash, c.Data, c.Address)
	e.config.Indicator.Off()

	if st != flash.StatusOK {
		util.LogWarning("mem write at 0x%08X failed: %s", c.Address, st)
	}
	return e.reply(byte(st))
}

func (e *Engine) goToAddress(c protocol.GoToAddress) error {
	util.LogDebug("GO addr: 0x%08X", c.Address)
	if err := e.sendAck(1); err != nil {
		return err
	}

	if e.config.MemoryMap.Verify(c.Address) != memmap.Valid {
		util.LogDebug("GO addr invalid")
		return e.reply(protocol.StatusAddressInvalid)
	}

	if err := e.reply(protocol.StatusAddressValid); err != nil {
		return err
	}
	return handoff.Jump(e.hw.CPU, c.Address)
}
