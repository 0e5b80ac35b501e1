// Package bootloader implements the device side of the UART bootloader
// protocol: frames are read from a transport, integrity-checked, decoded into
// a command and executed against the flash controller and CPU.
//
// Basic usage:
//
//	e := bootloader.New(port, bootloader.Hardware{
//	    Flash:  bus,
//	    Memory: bus,
//	    CPU:    cpu,
//	    CRC:    crc.NewUnit(),
//	})
//	err := e.Run(ctx)
//	if errors.Is(err, handoff.ErrTransferred) {
//	    // the host sent GO_TO_ADDR to a valid address
//	}
//
// Reply format: ACK (0xA5) followed by a follow-length byte and the reply
// payload, or NACK (0x7F) alone when the checksum does not match. Frames
// carrying an unrecognized command code are logged and get no reply.
package bootloader
