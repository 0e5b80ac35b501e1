package bootloader

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"io"
	"testing"

	"github.com/bigbag/stm32-bootloader/internal/handoff"
	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
)

func vectorTable(sp, reset uint32) []byte {
	out := make([]byte, 8)
	binary.LittleEndian.PutUint32(out[0:4], sp)
	binary.LittleEndian.PutUint32(out[4:8], reset)
	return out
}

func TestBoot_StartsApplication(t *testing.T) {
	r := newRig()
	if err := r.bus.Load(memmap.AppVectorTable, vectorTable(0x20020000, 0x08008199)); err != nil {
		t.Fatal(err)
	}
	l := newLink(protocol.GetVersionRequest().Encode())

	err := Boot(context.Background(), BootPinFunc(func() bool { return false }), r.engine(l))
	if !errors.Is(err, handoff.ErrTransferred) {
		t.Fatalf("Boot() error = %v, want ErrTransferred", err)
	}
	if sp, _ := r.cpu.StackPointer(); sp != 0x20020000 {
		t.Errorf("stack pointer = 0x%08X, want 0x20020000", sp)
	}
	if b := r.cpu.Branches(); len(b) != 1 || b[0] != 0x08008199 {
		t.Errorf("branches = %X, want [8008199]", b)
	}
	if l.tx.Len() != 0 {
		t.Error("bootloader answered while starting the application")
	}
}

func TestBoot_EntersBootloader(t *testing.T) {
	r := newRig()
	l := newLink(protocol.GetVersionRequest().Encode())

	err := Boot(context.Background(), BootPinFunc(func() bool { return true }), r.engine(l))
	if !errors.Is(err, io.EOF) {
		t.Fatalf("Boot() error = %v, want io.EOF", err)
	}
	if !bytes.Equal(l.tx.Bytes(), []byte{protocol.Ack, 0x01, protocol.Version}) {
		t.Errorf("reply = % X", l.tx.Bytes())
	}
	if len(r.cpu.Branches()) != 0 {
		t.Error("branched while in bootloader mode")
	}
}

func TestBoot_CustomVectorTable(t *testing.T) {
	r := newRig()
	base := uint32(memmap.FlashBase + 0x20000)
	r.bus.Load(base, vectorTable(0x2001FFF0, 0x08020101))

	e := r.engine(newLink(), WithVectorTable(base))
	Boot(context.Background(), BootPinFunc(func() bool { return false }), e)

	if b := r.cpu.Branches(); len(b) != 1 || b[0] != 0x08020101 {
		t.Errorf("branches = %X, want [8020101]", b)
	}
}
