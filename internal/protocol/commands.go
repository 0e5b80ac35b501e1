package protocol

// Bootloader command codes
const (
	CmdGetVersion       = 0x51
	CmdGetHelp          = 0x52
	CmdGetChipID        = 0x53
	CmdGetRDPStatus     = 0x54
	CmdGoToAddress      = 0x55
	CmdFlashErase       = 0x56
	CmdMemoryWrite      = 0x57
	CmdEnableRWProtect  = 0x58
	CmdMemoryRead       = 0x59
	CmdReadSectorStatus = 0x5A
	CmdOTPRead          = 0x5B
	CmdDisableRWProtect = 0x5C
)

// Acknowledgement bytes
const (
	Ack  = 0xA5
	Nack = 0x7F
)

// Version is the bootloader version reported by GET_VER.
const Version = 0x10

// Status bytes carried in reply payloads.
const (
	StatusOK             = 0x00
	StatusAddressValid   = 0x00
	StatusAddressInvalid = 0x01
	StatusInvalidSector  = 0x04
)

// Flash controller status codes, passed through verbatim by erase and write.
const (
	FlashOK      = 0x00
	FlashError   = 0x01
	FlashBusy    = 0x02
	FlashTimeout = 0x03
)

// MassEraseSector selects a full-device erase in a FLASH_ERASE request.
const MassEraseSector = 0xFF

// SupportedCommands lists the commands this bootloader implements, in the
// order reported to hosts. Dispatch does not consult it.
var SupportedCommands = []byte{
	CmdGetVersion,
	CmdFlashErase,
	CmdMemoryWrite,
	CmdGoToAddress,
}

// CommandName returns a human-readable name for a command code.
func CommandName(code byte) string {
	switch code {
	case CmdGetVersion:
		return "GET_VER"
	case CmdGetHelp:
		return "GET_HELP"
	case CmdGetChipID:
		return "GET_CID"
	case CmdGetRDPStatus:
		return "GET_RDP_STATUS"
	case CmdGoToAddress:
		return "GO_TO_ADDR"
	case CmdFlashErase:
		return "FLASH_ERASE"
	case CmdMemoryWrite:
		return "MEM_WRITE"
	case CmdEnableRWProtect:
		return "EN_RW_PROTECT"
	case CmdMemoryRead:
		return "MEM_READ"
	case CmdReadSectorStatus:
		return "READ_SECTOR_P_STATUS"
	case CmdOTPRead:
		return "OTP_READ"
	case CmdDisableRWProtect:
		return "DIS_R_W_PROTECT"
	default:
		return "UNKNOWN"
	}
}

// StatusMessage returns a human-readable message for a flash status byte.
func StatusMessage(code byte) string {
	switch code {
	case FlashOK:
		return "ok"
	case FlashError:
		return "flash error"
	case FlashBusy:
		return "flash busy"
	case FlashTimeout:
		return "flash timeout"
	case StatusInvalidSector:
		return "invalid sector"
	default:
		return "unknown error"
	}
}
