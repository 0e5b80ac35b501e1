package memmap

// MaxSector is the number of erase sectors in the program flash.
const MaxSector = 8

// Sector is one erase granule of the program flash.
type Sector struct {
	Index int
	Base  uint32
	Size  uint32
}

// End returns the first address past the sector.
func (s Sector) End() uint32 {
	return s.Base + s.Size
}

var sectors = func() []Sector {
	sizes := []uint32{
		16 * 1024, 16 * 1024, 16 * 1024, 16 * 1024,
		64 * 1024,
		128 * 1024, 128 * 1024, 128 * 1024,
	}
	out := make([]Sector, len(sizes))
	base := uint32(FlashBase)
	for i, size := range sizes {
		out[i] = Sector{Index: i, Base: base, Size: size}
		base += size
	}
	return out
}()

// Sectors returns the sector layout in address order.
func Sectors() []Sector {
	return append([]Sector(nil), sectors...)
}

// SectorOf returns the sector containing addr.
func SectorOf(addr uint32) (Sector, bool) {
	for _, s := range sectors {
		if addr >= s.Base && addr < s.End() {
			return s, true
		}
	}
	return Sector{}, false
}

// SectorSpan returns the first sector and the number of sectors touched by
// size bytes starting at addr. A zero size touches no sectors.
func SectorSpan(addr uint32, size int) (first, count int, ok bool) {
	if size <= 0 {
		return 0, 0, true
	}
	start, ok := SectorOf(addr)
	if !ok {
		return 0, 0, false
	}
	last, ok := SectorOf(addr + uint32(size) - 1)
	if !ok {
		return 0, 0, false
	}
	return start.Index, last.Index - start.Index + 1, true
}
