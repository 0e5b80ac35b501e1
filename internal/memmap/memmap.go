// Package memmap describes the address space the bootloader accepts as
// write and jump targets, and the sector geometry of the program flash.
package memmap

import "fmt"

// STM32F446 memory regions.
const (
	SRAM1Base = 0x20000000
	SRAM1Size = 112 * 1024

	SRAM2Base = 0x2001C000
	SRAM2Size = 16 * 1024

	FlashBase = 0x08000000
	FlashSize = 512 * 1024

	BKPSRAMBase = 0x40024000
	BKPSRAMSize = 4 * 1024
)

// AppVectorTable is where the resident application's vector table starts (sector 2).
const AppVectorTable = 0x08008000

// Validity is the outcome of an address check.
type Validity byte

const (
	Valid   Validity = 0x00
	Invalid Validity = 0x01
)

func (v Validity) String() string {
	if v == Valid {
		return "valid"
	}
	return "invalid"
}

// Region is a contiguous address range. End is inclusive.
type Region struct {
	Name string
	Base uint32
	End  uint32
}

// Contains reports whether addr lies in [Base, End].
func (r Region) Contains(addr uint32) bool {
	return addr >= r.Base && addr <= r.End
}

// Size returns the number of addresses from Base to End, End excluded.
func (r Region) Size() uint32 {
	return r.End - r.Base
}

func (r Region) String() string {
	return fmt.Sprintf("%s [0x%08X, 0x%08X]", r.Name, r.Base, r.End)
}

// Map is a fixed set of disjoint regions.
type Map struct {
	regions []Region
}

// New returns a map over the given regions.
func New(regions ...Region) *Map {
	return &Map{regions: append([]Region(nil), regions...)}
}

var defaultMap = New(
	Region{Name: "SRAM1", Base: SRAM1Base, End: SRAM1Base + SRAM1Size},
	Region{Name: "SRAM2", Base: SRAM2Base, End: SRAM2Base + SRAM2Size},
	Region{Name: "FLASH", Base: FlashBase, End: FlashBase + FlashSize},
	Region{Name: "BKPSRAM", Base: BKPSRAMBase, End: BKPSRAMBase + BKPSRAMSize},
)

// Default returns the STM32F446 map: two SRAM regions, program flash and backup SRAM.
func Default() *Map {
	return defaultMap
}

// Regions returns a copy of the regions in declaration order.
func (m *Map) Regions() []Region {
	return append([]Region(nil), m.regions...)
}

// Lookup returns the region containing addr.
func (m *Map) Lookup(addr uint32) (Region, bool) {
	for _, r := range m.regions {
		if r.Contains(addr) {
			return r, true
		}
	}
	return Region{}, false
}

// Verify classifies addr. Only range membership is checked.
func (m *Map) Verify(addr uint32) Validity {
	if _, ok := m.Lookup(addr); ok {
		return Valid
	}
	return Invalid
}
