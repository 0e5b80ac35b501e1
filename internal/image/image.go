// Package image loads application images for download to the device.
// Raw binaries are placed at a caller-supplied base address; Intel HEX files
// carry their own addresses.
package image

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/marcinbor85/gohex"

	"github.com/bigbag/stm32-bootloader/internal/memmap"
)

// Fill is the value gaps between HEX segments are padded with, the erased flash value.
const Fill = 0xFF

// ErrEmpty is returned for images without data.
var ErrEmpty = errors.New("image is empty")

// Image is a contiguous block of bytes destined for Base.
type Image struct {
	Base uint32
	Data []byte
}

// Chunk is one write request's worth of an image.
type Chunk struct {
	Address uint32
	Data    []byte
}

// FromBinary places data at base.
func FromBinary(data []byte, base uint32) (*Image, error) {
	if len(data) == 0 {
		return nil, ErrEmpty
	}
	return &Image{Base: base, Data: data}, nil
}

// ParseHex reads an Intel HEX image. Segments are merged into one span from
// the lowest to the highest address, with gaps filled with Fill.
func ParseHex(r io.Reader) (*Image, error) {
	mem := gohex.NewMemory()
	if err := mem.ParseIntelHex(r); err != nil {
		return nil, fmt.Errorf("failed to parse intel hex: %w", err)
	}

	segments := mem.GetDataSegments()
	if len(segments) == 0 {
		return nil, ErrEmpty
	}

	low := segments[0].Address
	high := segments[0].Address + uint32(len(segments[0].Data))
	for _, s := range segments[1:] {
		if s.Address < low {
			low = s.Address
		}
		if end := s.Address + uint32(len(s.Data)); end > high {
			high = end
		}
	}

	return &Image{Base: low, Data: mem.ToBinary(low, high-low, Fill)}, nil
}

// Load reads an image file. Files ending in .hex or .ihex are parsed as Intel
// HEX; anything else is a raw binary placed at base.
func Load(path string, base uint32) (*Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".hex", ".ihex":
		return ParseHex(bytes.NewReader(data))
	default:
		return FromBinary(data, base)
	}
}

// End returns the address one past the last byte.
func (img *Image) End() uint32 {
	return img.Base + uint32(len(img.Data))
}

// VectorTable returns the initial stack pointer and reset handler from the
// first two words of the image.
func (img *Image) VectorTable() (sp, reset uint32, err error) {
	if len(img.Data) < 8 {
		return 0, 0, fmt.Errorf("image too small for a vector table (%d bytes)", len(img.Data))
	}
	return binary.LittleEndian.Uint32(img.Data[0:4]), binary.LittleEndian.Uint32(img.Data[4:8]), nil
}

// Sectors returns the flash sectors the image occupies.
func (img *Image) Sectors() (first, count int, err error) {
	first, count, ok := memmap.SectorSpan(img.Base, len(img.Data))
	if !ok {
		return 0, 0, fmt.Errorf("image 0x%08X-0x%08X does not fit in flash", img.Base, img.End())
	}
	return first, count, nil
}

// Check verifies that the whole image lies in device memory.
func (img *Image) Check(m *memmap.Map) error {
	if len(img.Data) == 0 {
		return ErrEmpty
	}
	for _, addr := range []uint32{img.Base, img.End() - 1} {
		if m.Verify(addr) != memmap.Valid {
			return fmt.Errorf("address 0x%08X is outside device memory", addr)
		}
	}
	return nil
}

// Chunks splits the image into pieces of at most size bytes.
func (img *Image) Chunks(size int) []Chunk {
	var chunks []Chunk
	for off := 0; off < len(img.Data); off += size {
		end := off + size
		if end > len(img.Data) {
			end = len(img.Data)
		}
		chunks = append(chunks, Chunk{
			Address: img.Base + uint32(off),
			Data:    img.Data[off:end],
		})
	}
	return chunks
}

// WriteHex writes the image as Intel HEX with 16-byte records.
func (img *Image) WriteHex(w io.Writer) error {
	mem := gohex.NewMemory()
	if err := mem.AddBinary(img.Base, img.Data); err != nil {
		return err
	}
	return mem.DumpIntelHex(w, 16)
}
