package protocol

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"
)

func TestNewRequest_GetVersionFrame(t *testing.T) {
	encoded := GetVersionRequest().Encode()
	expected := []byte{0x05, CmdGetVersion, 0xE7, 0xE9, 0xAB, 0x7C}
	if !bytes.Equal(encoded, expected) {
		t.Errorf("GetVersionRequest().Encode() = % X, want % X", encoded, expected)
	}
}

func TestNewRequest_Fields(t *testing.T) {
	data := []byte{0x01, 0x02}
	req := NewRequest(CmdFlashErase, data)

	if req.Command != CmdFlashErase {
		t.Errorf("NewRequest Command = 0x%02X, want 0x%02X", req.Command, CmdFlashErase)
	}
	if !bytes.Equal(req.Data, data) {
		t.Errorf("NewRequest Data = %v, want %v", req.Data, data)
	}
}

func TestRequest_Encode_Format(t *testing.T) {
	req := FlashEraseRequest(MassEraseSector, 0)
	encoded := req.Encode()

	// length(1) + cmd(1) + payload(2) + crc(4)
	if len(encoded) != 8 {
		t.Fatalf("Encode() length = %d, want 8", len(encoded))
	}
	if encoded[0] != 7 {
		t.Errorf("Encode()[0] length = %d, want 7", encoded[0])
	}
	if encoded[1] != CmdFlashErase {
		t.Errorf("Encode()[1] command = 0x%02X, want 0x%02X", encoded[1], CmdFlashErase)
	}
	checksum := binary.LittleEndian.Uint32(encoded[4:8])
	if checksum != 0xAAE12F7D {
		t.Errorf("Encode() checksum = 0x%08X, want 0xAAE12F7D", checksum)
	}
}

func TestMemoryWriteRequest_Layout(t *testing.T) {
	data := []byte{0xDE, 0xAD, 0xBE, 0xEF}
	req, err := MemoryWriteRequest(0x08008000, data)
	if err != nil {
		t.Fatalf("MemoryWriteRequest() error = %v", err)
	}
	encoded := req.Encode()

	if int(encoded[0]) != len(encoded)-1 {
		t.Errorf("length byte = %d, want %d", encoded[0], len(encoded)-1)
	}
	if addr := binary.LittleEndian.Uint32(encoded[2:6]); addr != 0x08008000 {
		t.Errorf("address = 0x%08X, want 0x08008000", addr)
	}
	if encoded[6] != byte(len(data)) {
		t.Errorf("payload length = %d, want %d", encoded[6], len(data))
	}
	if !bytes.Equal(encoded[7:11], data) {
		t.Errorf("payload = % X, want % X", encoded[7:11], data)
	}
}

func TestMemoryWriteRequest_TooLarge(t *testing.T) {
	_, err := MemoryWriteRequest(0x08008000, make([]byte, MaxWritePayload+1))
	if err == nil {
		t.Error("MemoryWriteRequest() with oversized payload expected error, got nil")
	}

	req, err := MemoryWriteRequest(0x08008000, make([]byte, MaxWritePayload))
	if err != nil {
		t.Fatalf("MemoryWriteRequest() at max payload error = %v", err)
	}
	if n := len(req.Encode()); n != MaxFrameSize {
		t.Errorf("max write frame = %d bytes, want %d", n, MaxFrameSize)
	}
}

func TestPacket_CoveredExcludesChecksum(t *testing.T) {
	p := Packet(GoToAddressRequest(0x20000100).Encode())

	if len(p.Covered()) != p.Length()+1-ChecksumSize {
		t.Errorf("len(Covered()) = %d, want %d", len(p.Covered()), p.Length()+1-ChecksumSize)
	}
	if p.Checksum() != binary.LittleEndian.Uint32(p[len(p)-4:]) {
		t.Errorf("Checksum() = 0x%08X, want trailing word", p.Checksum())
	}
}

func TestPacket_Validate(t *testing.T) {
	tests := []struct {
		name    string
		packet  Packet
		wantErr bool
	}{
		{"empty", Packet{}, true},
		{"length zero", Packet{0x00}, true},
		{"length below minimum", Packet{0x04, 0x51, 0, 0, 0}, true},
		{"size mismatch", Packet{0x05, 0x51, 0, 0}, true},
		{"minimum", Packet{0x05, 0x51, 0, 0, 0, 0}, false},
	}

	for _, tc := range tests {
		err := tc.packet.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestDecode_Variants(t *testing.T) {
	write, _ := MemoryWriteRequest(0x08008000, []byte{1, 2, 3})

	tests := []struct {
		name     string
		frame    []byte
		expected Command
	}{
		{"get version", GetVersionRequest().Encode(), GetVersion{}},
		{"erase", FlashEraseRequest(2, 3).Encode(), FlashErase{StartSector: 2, SectorCount: 3}},
		{"go", GoToAddressRequest(0x20000101).Encode(), GoToAddress{Address: 0x20000101}},
		{"reserved", NewRequest(CmdMemoryRead, []byte{1, 2, 3, 4, 5}).Encode(), Unrecognized{Command: CmdMemoryRead}},
		{"unknown", NewRequest(0x42, nil).Encode(), Unrecognized{Command: 0x42}},
	}

	for _, tc := range tests {
		cmd, err := Decode(Packet(tc.frame))
		if err != nil {
			t.Errorf("%s: Decode() error = %v", tc.name, err)
			continue
		}
		if cmd != tc.expected {
			t.Errorf("%s: Decode() = %#v, want %#v", tc.name, cmd, tc.expected)
		}
	}

	cmd, err := Decode(Packet(write.Encode()))
	if err != nil {
		t.Fatalf("Decode(MEM_WRITE) error = %v", err)
	}
	mw, ok := cmd.(MemoryWrite)
	if !ok {
		t.Fatalf("Decode(MEM_WRITE) = %T, want MemoryWrite", cmd)
	}
	if mw.Address != 0x08008000 || !bytes.Equal(mw.Data, []byte{1, 2, 3}) {
		t.Errorf("Decode(MEM_WRITE) = {0x%08X % X}, want {0x08008000 01 02 03}", mw.Address, mw.Data)
	}
}

func TestDecode_TruncatedPayloads(t *testing.T) {
	frames := [][]byte{
		NewRequest(CmdFlashErase, []byte{0x01}).Encode(),
		NewRequest(CmdGoToAddress, []byte{0x00, 0x01}).Encode(),
		NewRequest(CmdMemoryWrite, []byte{0x00, 0x80, 0x00, 0x08}).Encode(),
		// declares 10 data bytes but carries 2
		NewRequest(CmdMemoryWrite, []byte{0x00, 0x80, 0x00, 0x08, 10, 0xAA, 0xBB}).Encode(),
	}

	for _, frame := range frames {
		_, err := Decode(Packet(frame))
		if !errors.Is(err, ErrTruncatedPayload) {
			t.Errorf("Decode(% X) error = %v, want ErrTruncatedPayload", frame, err)
		}
	}
}

func TestDecode_ShortPacket(t *testing.T) {
	_, err := Decode(Packet{0x02, CmdGetVersion, 0x00})
	if !errors.Is(err, ErrShortPacket) {
		t.Errorf("Decode() error = %v, want ErrShortPacket", err)
	}
}
