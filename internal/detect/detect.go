package detect

import (
	"fmt"
	"time"

	"github.com/bigbag/stm32-bootloader/internal/flasher"
	"github.com/bigbag/stm32-bootloader/internal/serial"
	"github.com/bigbag/stm32-bootloader/internal/transport"
)

// probeTimeout bounds the wait for a GET_VER reply on each port.
const probeTimeout = 300 * time.Millisecond

// Result represents a port with a bootloader answering on it.
type Result struct {
	Port    string
	Version byte
}

// DetectDevice tries to find a bootloader on the available ports.
// Returns the first one that answers, or an error.
func DetectDevice(baudRate int) (*Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	if len(ports) == 0 {
		return nil, fmt.Errorf("no serial ports found")
	}

	var lastErr error
	for _, portName := range ports {
		result, err := tryPort(portName, baudRate)
		if err != nil {
			lastErr = err
			continue
		}
		return result, nil
	}

	if lastErr != nil {
		return nil, fmt.Errorf("no bootloader found (last error: %w)", lastErr)
	}
	return nil, fmt.Errorf("no bootloader found")
}

// DetectOnPort probes a specific port.
func DetectOnPort(portName string, baudRate int) (*Result, error) {
	return tryPort(portName, baudRate)
}

// ListDevices scans all ports and returns every bootloader found.
func ListDevices(baudRate int) ([]Result, error) {
	ports, err := serial.ListPorts()
	if err != nil {
		return nil, fmt.Errorf("failed to list ports: %w", err)
	}

	var results []Result
	for _, portName := range ports {
		result, err := tryPort(portName, baudRate)
		if err == nil {
			results = append(results, *result)
		}
	}

	return results, nil
}

func tryPort(portName string, baudRate int) (*Result, error) {
	port, err := serial.Open(portName, baudRate)
	if err != nil {
		return nil, err
	}
	defer port.Close()

	// Drop anything the device printed before we connected
	port.Flush()

	result, err := Probe(port)
	if err != nil {
		return nil, err
	}
	result.Port = portName
	return result, nil
}

// Probe asks the device on link for its version. Stale bytes on the line can
// make the first attempt fail, so it is retried once.
func Probe(link transport.Transport) (*Result, error) {
	f := flasher.New(link)
	f.SetTimeout(probeTimeout)

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		version, err := f.GetVersion()
		if err == nil {
			return &Result{Version: version}, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("no reply to GET_VER: %w", lastErr)
}
