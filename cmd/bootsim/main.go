package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/spf13/cobra"

	"github.com/bigbag/stm32-bootloader/embedded"
	"github.com/bigbag/stm32-bootloader/internal/bootloader"
	"github.com/bigbag/stm32-bootloader/internal/config"
	"github.com/bigbag/stm32-bootloader/internal/crc"
	"github.com/bigbag/stm32-bootloader/internal/flash"
	"github.com/bigbag/stm32-bootloader/internal/handoff"
	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/serial"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

var (
	cfg = config.Default()

	enterBootloaderFlag bool
	preloadDemoFlag     bool
	pollFlag            time.Duration
	logFileFlag         string
)

// ledLogger reports indicator changes in the log.
type ledLogger struct{}

func (ledLogger) On()  { util.LogDebug("LED on") }
func (ledLogger) Off() { util.LogDebug("LED off") }

func main() {
	rootCmd := &cobra.Command{
		Use:   "bootsim",
		Short: "Run a simulated STM32 bootloader on a serial port",
		Long: `bootsim serves the bootloader protocol on a serial port against simulated
flash and RAM, so host tools can be exercised without a board.

Connect it to stm32boot through a null-modem pair (for example two ends of
a socat pty link).`,
		Args:         cobra.NoArgs,
		SilenceUsage: true,
		RunE:         runSim,
	}
	rootCmd.Flags().StringVarP(&cfg.Port, "port", "p", "", "Serial port to serve on")
	rootCmd.Flags().IntVarP(&cfg.BaudRate, "baud", "b", cfg.BaudRate, "Baud rate")
	rootCmd.Flags().Uint32Var(&cfg.VectorBase, "vector-table", cfg.VectorBase, "Application vector table address")
	rootCmd.Flags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	rootCmd.Flags().BoolVar(&enterBootloaderFlag, "enter-bootloader", true, "Boot into the bootloader instead of the application")
	rootCmd.Flags().BoolVar(&preloadDemoFlag, "preload-demo", false, "Preload the demo application into flash")
	rootCmd.Flags().StringVar(&logFileFlag, "log-file", "", "Write the debug console to a file instead of stderr")
	rootCmd.Flags().DurationVar(&pollFlag, "poll", 100*time.Millisecond, "Idle receive timeout between shutdown checks")
	rootCmd.MarkFlagRequired("port")

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runSim(cmd *cobra.Command, args []string) error {
	if cfg.Debug {
		util.EnableDebug()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if logFileFlag != "" {
		f, err := os.Create(logFileFlag)
		if err != nil {
			return fmt.Errorf("failed to create log file: %w", err)
		}
		defer f.Close()
		util.SetOutput(f)
	}
	for _, r := range memmap.Default().Regions() {
		util.LogDebug("region %s, %d KiB", r, r.Size()/1024)
	}

	bus := flash.NewBus()
	cpu := handoff.NewSimCPU()

	if preloadDemoFlag {
		if err := preloadDemo(bus, cpu); err != nil {
			return err
		}
	}

	port, err := serial.Open(cfg.Port, cfg.BaudRate)
	if err != nil {
		return fmt.Errorf("failed to open port: %w", err)
	}
	defer port.Close()

	e := bootloader.New(port, bootloader.Hardware{
		Flash:  bus,
		Memory: bus,
		CPU:    cpu,
		CRC:    crc.NewUnit(),
	},
		bootloader.WithReceiveTimeout(pollFlag),
		bootloader.WithFrameTimeout(time.Second),
		bootloader.WithVectorTable(cfg.VectorBase),
		bootloader.WithIndicator(ledLogger{}),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	util.LogInfo("serving on %s @ %d baud", cfg.Port, cfg.BaudRate)
	err = bootloader.Boot(ctx, bootloader.BootPinFunc(func() bool { return enterBootloaderFlag }), e)

	switch {
	case errors.Is(err, handoff.ErrTransferred):
		branches := cpu.Branches()
		util.LogInfo("control transferred to 0x%08X", branches[len(branches)-1])
		return nil
	case errors.Is(err, context.Canceled):
		util.LogInfo("stopped")
		return nil
	default:
		return err
	}
}

// preloadDemo loads the embedded demo application and marks its reset handler
// so a jump into it is visible in the log.
func preloadDemo(bus *flash.Bus, cpu *handoff.SimCPU) error {
	img, err := embedded.DemoImage()
	if err != nil {
		return err
	}
	if err := bus.Load(img.Base, img.Data); err != nil {
		return err
	}

	_, reset, err := img.VectorTable()
	if err != nil {
		return err
	}
	cpu.Place(reset, func() {
		util.LogInfo("demo application running")
	})

	util.LogInfo("preloaded demo application at 0x%08X (%d bytes)", img.Base, len(img.Data))
	return nil
}
