package bootloader

import (
	"time"

	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/transport"
)

// Config holds the engine configuration.
type Config struct {
	// IdleTimeout bounds the wait for the first byte of a frame.
	IdleTimeout time.Duration

	// FrameTimeout bounds the wait for the rest of a frame once its length byte arrived.
	FrameTimeout time.Duration

	// MemoryMap decides which addresses MEM_WRITE and GO_TO_ADDR accept.
	MemoryMap *memmap.Map

	// VectorTable is where Boot looks for the application's stack pointer and reset handler.
	VectorTable uint32

	// Indicator is switched on for the duration of erase and write operations (optional).
	Indicator Indicator
}

func defaultConfig() Config {
	return Config{
		IdleTimeout:  transport.NoTimeout,
		FrameTimeout: transport.NoTimeout,
		MemoryMap:    memmap.Default(),
		VectorTable:  memmap.AppVectorTable,
		Indicator:    nopIndicator{},
	}
}

// Option is a functional option for configuring the Engine.
type Option func(*Config)

// WithReceiveTimeout sets the idle wait between frames. Between waits Run
// checks its context, so a finite timeout is what makes Run cancellable.
//
// Example:
//
//	e := bootloader.New(port, hw, bootloader.WithReceiveTimeout(100*time.Millisecond))
func WithReceiveTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.IdleTimeout = timeout
	}
}

// WithFrameTimeout sets how long a frame body may take to arrive. A frame
// that times out is dropped.
func WithFrameTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.FrameTimeout = timeout
	}
}

// WithMemoryMap replaces the default STM32F446 memory map.
func WithMemoryMap(m *memmap.Map) Option {
	return func(c *Config) {
		if m != nil {
			c.MemoryMap = m
		}
	}
}

// WithVectorTable sets the application vector table base used by Boot.
func WithVectorTable(base uint32) Option {
	return func(c *Config) {
		c.VectorTable = base
	}
}

// WithIndicator sets the activity indicator, usually a status LED.
func WithIndicator(ind Indicator) Option {
	return func(c *Config) {
		if ind != nil {
			c.Indicator = ind
		}
	}
}
