package protocol

import "testing"

func TestCommandName_KnownCommands(t *testing.T) {
	tests := []struct {
		code     byte
		expected string
	}{
		{CmdGetVersion, "GET_VER"},
		{CmdGetHelp, "GET_HELP"},
		{CmdGetChipID, "GET_CID"},
		{CmdGetRDPStatus, "GET_RDP_STATUS"},
		{CmdGoToAddress, "GO_TO_ADDR"},
		{CmdFlashErase, "FLASH_ERASE"},
		{CmdMemoryWrite, "MEM_WRITE"},
		{CmdEnableRWProtect, "EN_RW_PROTECT"},
		{CmdMemoryRead, "MEM_READ"},
		{CmdReadSectorStatus, "READ_SECTOR_P_STATUS"},
		{CmdOTPRead, "OTP_READ"},
		{CmdDisableRWProtect, "DIS_R_W_PROTECT"},
	}

	for _, tc := range tests {
		result := CommandName(tc.code)
		if result != tc.expected {
			t.Errorf("CommandName(0x%02X) = %q, want %q", tc.code, result, tc.expected)
		}
	}
}

func TestCommandName_Unknown(t *testing.T) {
	for _, code := range []byte{0x00, 0x50, 0x5D, 0x80, 0xFF} {
		result := CommandName(code)
		if result != "UNKNOWN" {
			t.Errorf("CommandName(0x%02X) = %q, want %q", code, result, "UNKNOWN")
		}
	}
}

func TestStatusMessage_AllCodes(t *testing.T) {
	tests := []struct {
		code     byte
		expected string
	}{
		{FlashOK, "ok"},
		{FlashError, "flash error"},
		{FlashBusy, "flash busy"},
		{FlashTimeout, "flash timeout"},
		{StatusInvalidSector, "invalid sector"},
		{0x99, "unknown error"},
	}

	for _, tc := range tests {
		result := StatusMessage(tc.code)
		if result != tc.expected {
			t.Errorf("StatusMessage(0x%02X) = %q, want %q", tc.code, result, tc.expected)
		}
	}
}

func TestSupportedCommands_Order(t *testing.T) {
	expected := []byte{CmdGetVersion, CmdFlashErase, CmdMemoryWrite, CmdGoToAddress}
	if len(SupportedCommands) != len(expected) {
		t.Fatalf("len(SupportedCommands) = %d, want %d", len(SupportedCommands), len(expected))
	}
	for i, code := range expected {
		if SupportedCommands[i] != code {
			t.Errorf("SupportedCommands[%d] = 0x%02X, want 0x%02X", i, SupportedCommands[i], code)
		}
	}
}

func TestConstants(t *testing.T) {
	if Ack != 0xA5 {
		t.Errorf("Ack = 0x%02X, want 0xA5", Ack)
	}
	if Nack != 0x7F {
		t.Errorf("Nack = 0x%02X, want 0x7F", Nack)
	}
	if Version != 0x10 {
		t.Errorf("Version = 0x%02X, want 0x10", Version)
	}
	if StatusAddressInvalid != 0x01 || StatusInvalidSector != 0x04 {
		t.Errorf("status bytes = (0x%02X, 0x%02X), want (0x01, 0x04)", StatusAddressInvalid, StatusInvalidSector)
	}
	if MaxWritePayload < WriteChunkSize {
		t.Errorf("MaxWritePayload = %d, smaller than WriteChunkSize %d", MaxWritePayload, WriteChunkSize)
	}
}
