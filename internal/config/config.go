// Package config holds the settings shared by the host tool and the simulator.
package config

import (
	"fmt"
	"time"

	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/serial"
)

// Config is the link and target configuration.
type Config struct {
	// Port is the serial device; empty means autodetect.
	Port string

	// BaudRate of the UART link.
	BaudRate int

	// Timeout bounds the wait for each device reply.
	Timeout time.Duration

	// VectorBase is where application images are written and started from.
	VectorBase uint32

	// Debug enables debug logging.
	Debug bool
}

// Default returns the configuration matching the stock firmware.
func Default() Config {
	return Config{
		BaudRate:   serial.DefaultBaudRate,
		Timeout:    5 * time.Second,
		VectorBase: memmap.AppVectorTable,
	}
}

// Validate checks the configuration for values the link cannot use.
func (c Config) Validate() error {
	if c.BaudRate <= 0 {
		return fmt.Errorf("invalid baud rate %d", c.BaudRate)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("invalid reply timeout %s", c.Timeout)
	}
	if memmap.Default().Verify(c.VectorBase) != memmap.Valid {
		return fmt.Errorf("vector base 0x%08X is outside device memory", c.VectorBase)
	}
	return nil
}
