package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"

	"github.com/bigbag/stm32-bootloader/internal/transport"
)

// DefaultBaudRate matches the bootloader's command UART configuration.
const DefaultBaudRate = 115200

// Port wraps a serial port and implements transport.Transport.
type Port struct {
	port     serial.Port
	portName string
	baudRate int
}

// Open opens a serial port with the specified baud rate, 8N1.
func Open(portName string, baudRate int) (*Port, error) {
	mode := &serial.Mode{
		BaudRate: baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}

	port, err := serial.Open(portName, mode)
	if err != nil {
		return nil, fmt.Errorf("failed to open port %s: %w", portName, err)
	}

	return &Port{
		port:     port,
		portName: portName,
		baudRate: baudRate,
	}, nil
}

// Close closes the serial port.
func (p *Port) Close() error {
	if p.port != nil {
		return p.port.Close()
	}
	return nil
}

// Transmit writes all of data to the serial port.
func (p *Port) Transmit(data []byte) error {
	for len(data) > 0 {
		n, err := p.port.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Receive blocks until buf is full. A negative timeout (transport.NoTimeout)
// waits forever; otherwise the whole call is bounded by timeout.
func (p *Port) Receive(buf []byte, timeout time.Duration) error {
	var deadline time.Time
	if timeout != transport.NoTimeout {
		deadline = time.Now().Add(timeout)
	}

	filled := 0
	for filled < len(buf) {
		readTimeout := serial.NoTimeout
		if !deadline.IsZero() {
			readTimeout = time.Until(deadline)
			if readTimeout <= 0 {
				return transport.ErrTimeout
			}
		}
		if err := p.port.SetReadTimeout(readTimeout); err != nil {
			return fmt.Errorf("failed to set read timeout: %w", err)
		}

		n, err := p.port.Read(buf[filled:])
		if err != nil {
			return err
		}
		if n == 0 {
			// go.bug.st/serial reports an expired read timeout as 0 bytes, nil error.
			return transport.ErrTimeout
		}
		filled += n
	}
	return nil
}

// Flush discards any buffered input.
func (p *Port) Flush() error {
	return p.port.ResetInputBuffer()
}

// Reset pulses RTS, which drives NRST on boards with the usual auto-reset wiring.
func (p *Port) Reset() error {
	if err := p.port.SetRTS(true); err != nil {
		return err
	}
	time.Sleep(100 * time.Millisecond)
	if err := p.port.SetRTS(false); err != nil {
		return err
	}
	time.Sleep(50 * time.Millisecond)
	return p.Flush()
}

// PortName returns the port name.
func (p *Port) PortName() string {
	return p.portName
}

// BaudRate returns the current baud rate.
func (p *Port) BaudRate() int {
	return p.baudRate
}

// ListPorts returns a list of available serial ports.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, err
	}
	return ports, nil
}
