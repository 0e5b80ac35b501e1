// Package crc models the STM32 hardware CRC unit used to protect bootloader frames.
//
// The unit computes CRC-32/MPEG-2: polynomial 0x04C11DB7, seed 0xFFFFFFFF, no
// reflection and no final XOR, over 32-bit input words taken MSB first. The
// bootloader feeds every frame byte as its own zero-extended word, so a frame of
// n bytes is equivalent to a byte-wise CRC over 4n bytes.
package crc

import (
	"encoding/binary"

	"github.com/snksoft/crc"
)

// Seed is the accumulator value after a reset.
const Seed = 0xFFFFFFFF

// Params are the CRC parameters implemented by the hardware unit.
var Params = &crc.Parameters{
	Width:      32,
	Polynomial: 0x04C11DB7,
	ReflectIn:  false,
	ReflectOut: false,
	Init:       Seed,
	FinalXor:   0,
}

var table = crc.NewTable(Params)

// Accumulator is a running CRC over 32-bit words.
type Accumulator interface {
	// Accumulate folds one word into the running value and returns it.
	Accumulate(word uint32) uint32
	// Reset restores the seed.
	Reset()
}

// Unit is a software Accumulator with the same results as the hardware unit.
type Unit struct {
	h *crc.Hash
}

// NewUnit returns a reset Unit.
func NewUnit() *Unit {
	return &Unit{h: crc.NewHashWithTable(table)}
}

// Accumulate folds word into the running CRC.
func (u *Unit) Accumulate(word uint32) uint32 {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], word)
	u.h.Update(b[:])
	return u.h.CRC32()
}

// Reset restores the seed.
func (u *Unit) Reset() {
	u.h.Reset()
}

// Verify accumulates data one byte per word, resets acc for the next caller and
// reports whether the result equals host.
func Verify(acc Accumulator, data []byte, host uint32) bool {
	value := uint32(Seed)
	for _, b := range data {
		value = acc.Accumulate(uint32(b))
	}
	acc.Reset()
	return value == host
}

// Checksum returns the CRC a host must append to data.
func Checksum(data []byte) uint32 {
	u := NewUnit()
	value := uint32(Seed)
	for _, b := range data {
		value = u.Accumulate(uint32(b))
	}
	return value
}
