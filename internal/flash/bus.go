package flash

import (
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/bigbag/stm32-bootloader/internal/memmap"
)

// ErasedByte is the value of an erased flash cell.
const ErasedByte = 0xFF

// Stats counts controller operations seen by a Bus.
type Stats struct {
	Unlocks  int
	Locks    int
	Erases   int
	Programs int
}

type bank struct {
	base  uint32
	data  []byte
	flash bool
}

func (b *bank) offset(addr uint32) (int, bool) {
	if addr < b.base || addr-b.base >= uint32(len(b.data)) {
		return 0, false
	}
	return int(addr - b.base), true
}

// Bus simulates the device address space: program flash behind a lockable
// controller, plus SRAM1, SRAM2 and backup SRAM. Flash programming can only
// clear bits; RAM is written directly.
type Bus struct {
	mu       sync.Mutex
	banks    []*bank
	unlocked bool
	stats    Stats
	failures map[uint32]Status
}

// NewBus returns a Bus with erased flash and zeroed RAM.
func NewBus() *Bus {
	flash := make([]byte, memmap.FlashSize)
	for i := range flash {
		flash[i] = ErasedByte
	}
	return &Bus{
		banks: []*bank{
			{base: memmap.FlashBase, data: flash, flash: true},
			{base: memmap.SRAM1Base, data: make([]byte, memmap.SRAM1Size)},
			{base: memmap.SRAM2Base, data: make([]byte, memmap.SRAM2Size)},
			{base: memmap.BKPSRAMBase, data: make([]byte, memmap.BKPSRAMSize)},
		},
		failures: make(map[uint32]Status),
	}
}

func (b *Bus) find(addr uint32) (*bank, int, bool) {
	for _, bk := range b.banks {
		if off, ok := bk.offset(addr); ok {
			return bk, off, true
		}
	}
	return nil, 0, false
}

// Unlock grants write access to the flash controller.
func (b *Bus) Unlock() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Unlocks++
	b.unlocked = true
	return StatusOK
}

// Lock revokes write access to the flash controller.
func (b *Bus) Lock() Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Locks++
	b.unlocked = false
	return StatusOK
}

// Erase resets the requested sectors, or all of flash, to ErasedByte.
func (b *Bus) Erase(req EraseRequest) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Erases++

	if !b.unlocked {
		return StatusError
	}
	flash := b.banks[0].data
	if req.Mass {
		fill(flash, ErasedByte)
		return StatusOK
	}

	sectors := memmap.Sectors()
	if int(req.Sector)+int(req.Count) > len(sectors) {
		return StatusError
	}
	for _, s := range sectors[req.Sector : int(req.Sector)+int(req.Count)] {
		start := s.Base - memmap.FlashBase
		fill(flash[start:start+s.Size], ErasedByte)
	}
	return StatusOK
}

// ProgramByte stores value at addr.
func (b *Bus) ProgramByte(addr uint32, value byte) Status {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.Programs++

	if st, ok := b.failures[addr]; ok {
		return st
	}
	bk, off, ok := b.find(addr)
	if !ok {
		return StatusError
	}
	if bk.flash {
		if !b.unlocked {
			return StatusError
		}
		bk.data[off] &= value
		return StatusOK
	}
	bk.data[off] = value
	return StatusOK
}

// FailAt makes programming addr return st.
func (b *Bus) FailAt(addr uint32, st Status) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[addr] = st
}

// Locked reports whether the flash controller is locked.
func (b *Bus) Locked() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return !b.unlocked
}

// Stats returns the operation counters.
func (b *Bus) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

// Load copies data to addr without going through the controller, the way a
// debugger or a previous boot would have left memory.
func (b *Bus) Load(addr uint32, data []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, v := range data {
		bk, off, ok := b.find(addr + uint32(i))
		if !ok {
			return fmt.Errorf("load: address 0x%08X is not backed by memory", addr+uint32(i))
		}
		bk.data[off] = v
	}
	return nil
}

// Read returns n bytes starting at addr.
func (b *Bus) Read(addr uint32, n int) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]byte, n)
	for i := range out {
		bk, off, ok := b.find(addr + uint32(i))
		if !ok {
			return nil, fmt.Errorf("read: address 0x%08X is not backed by memory", addr+uint32(i))
		}
		out[i] = bk.data[off]
	}
	return out, nil
}

// ReadWord returns the little-endian word at addr.
func (b *Bus) ReadWord(addr uint32) (uint32, error) {
	data, err := b.Read(addr, 4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(data), nil
}

func fill(p []byte, v byte) {
	for i := range p {
		p[i] = v
	}
}
