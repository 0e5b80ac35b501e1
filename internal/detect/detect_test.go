package detect

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/bigbag/stm32-bootloader/internal/bootloader"
	"github.com/bigbag/stm32-bootloader/internal/crc"
	"github.com/bigbag/stm32-bootloader/internal/flash"
	"github.com/bigbag/stm32-bootloader/internal/handoff"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/transport"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

func init() {
	util.Silence()
}

func TestProbe_Bootloader(t *testing.T) {
	devConn, hostConn := net.Pipe()
	defer devConn.Close()
	defer hostConn.Close()

	bus := flash.NewBus()
	hw := bootloader.Hardware{Flash: bus, Memory: bus, CPU: handoff.NewSimCPU(), CRC: crc.NewUnit()}
	go bootloader.New(transport.NewStream(devConn), hw).Run(context.Background())

	result, err := Probe(transport.NewStream(hostConn))
	if err != nil {
		t.Fatalf("Probe() error = %v", err)
	}
	if result.Version != protocol.Version {
		t.Errorf("Version = 0x%02X, want 0x%02X", result.Version, protocol.Version)
	}
}

type silent struct{}

func (silent) Transmit(p []byte) error { return nil }

func (silent) Receive(buf []byte, timeout time.Duration) error {
	return transport.ErrTimeout
}

func TestProbe_Silent(t *testing.T) {
	if _, err := Probe(silent{}); err == nil {
		t.Error("Probe() on a silent link = nil error")
	}
}
