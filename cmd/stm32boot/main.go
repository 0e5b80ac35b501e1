package main

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/bigbag/stm32-bootloader/internal/config"
	"github.com/bigbag/stm32-bootloader/internal/detect"
	"github.com/bigbag/stm32-bootloader/internal/flasher"
	"github.com/bigbag/stm32-bootloader/internal/image"
	"github.com/bigbag/stm32-bootloader/internal/memmap"
	"github.com/bigbag/stm32-bootloader/internal/protocol"
	"github.com/bigbag/stm32-bootloader/internal/serial"
	"github.com/bigbag/stm32-bootloader/internal/util"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	cfg = config.Default()

	noStartFlag  bool
	addressFlag  uint32
	sectorFlag   uint8
	countFlag    uint8
	massFlag     bool
	writeAddress uint32
	resetFlag    bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "stm32boot",
		Short: "Talk to the STM32 UART bootloader",
		Long: `stm32boot downloads application images to an STM32F446 running the UART
bootloader, and exposes the individual bootloader commands.

Images are .bin files (placed at --base) or Intel HEX files (.hex), which
carry their own addresses.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Debug {
				util.EnableDebug()
			}
			return cfg.Validate()
		},
	}
	rootCmd.PersistentFlags().StringVarP(&cfg.Port, "port", "p", "", "Serial port (auto-detect if not specified)")
	rootCmd.PersistentFlags().IntVarP(&cfg.BaudRate, "baud", "b", cfg.BaudRate, "Baud rate")
	rootCmd.PersistentFlags().DurationVar(&cfg.Timeout, "timeout", cfg.Timeout, "Reply timeout")
	rootCmd.PersistentFlags().BoolVar(&cfg.Debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&resetFlag, "reset", false, "Pulse RTS to reset the board before talking to it")

	// Flash command
	flashCmd := &cobra.Command{
		Use:   "flash <image>",
		Short: "Erase, write and start an application",
		Long: `Flash an application image.

This runs the full download:
  - GET_VER to check the bootloader answers
  - FLASH_ERASE of the sectors the image covers
  - MEM_WRITE in 128-byte chunks
  - GO_TO_ADDR to the image's reset handler (unless --no-start)`,
		Args: cobra.ExactArgs(1),
		RunE: runFlash,
	}
	flashCmd.Flags().Uint32Var(&cfg.VectorBase, "base", cfg.VectorBase, "Load address for .bin images")
	flashCmd.Flags().BoolVar(&noStartFlag, "no-start", false, "Do not start the application after writing")

	// Info command
	infoCmd := &cobra.Command{
		Use:     "info",
		Aliases: []string{"get-version"},
		Short:   "Show bootloader version",
		Long:    "Detect connected bootloaders and show their version.",
		RunE:    runInfo,
	}

	// Erase command
	eraseCmd := &cobra.Command{
		Use:   "erase",
		Short: "Erase flash sectors",
		RunE:  runErase,
	}
	eraseCmd.Flags().Uint8Var(&sectorFlag, "sector", 2, "First sector to erase")
	eraseCmd.Flags().Uint8Var(&countFlag, "count", 1, "Number of sectors to erase")
	eraseCmd.Flags().BoolVar(&massFlag, "mass", false, "Erase the whole flash")

	// Write command
	writeCmd := &cobra.Command{
		Use:   "write <image>",
		Short: "Write an image without erasing",
		Args:  cobra.ExactArgs(1),
		RunE:  runWrite,
	}
	writeCmd.Flags().Uint32Var(&writeAddress, "address", memmap.AppVectorTable, "Load address for .bin images")

	// Go command
	goCmd := &cobra.Command{
		Use:   "go",
		Short: "Jump to an address",
		RunE:  runGo,
	}
	goCmd.Flags().Uint32Var(&addressFlag, "address", 0, "Jump target")
	goCmd.MarkFlagRequired("address")

	// Commands command
	commandsCmd := &cobra.Command{
		Use:   "commands",
		Short: "List the commands the bootloader supports",
		Run: func(cmd *cobra.Command, args []string) {
			for _, c := range protocol.SupportedCommands {
				fmt.Printf("  0x%02X  %s\n", c, protocol.CommandName(c))
			}
		},
	}

	// Version command
	versionCmd := &cobra.Command{
		Use:   "version",
		Short: "Show version info",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("stm32boot %s\n", version)
			fmt.Printf("  commit: %s\n", commit)
			fmt.Printf("  built:  %s\n", date)
		},
	}

	// List command
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List available serial ports",
		RunE:  runList,
	}

	rootCmd.AddCommand(flashCmd, infoCmd, eraseCmd, writeCmd, goCmd, commandsCmd, versionCmd, listCmd)

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// connect opens the configured port, detecting one when none is given.
func connect() (*flasher.Flasher, *serial.Port, error) {
	portName := cfg.Port
	if portName == "" {
		fmt.Println("Detecting device...")
		result, err := detect.DetectDevice(cfg.BaudRate)
		if err != nil {
			return nil, nil, fmt.Errorf("device detection failed: %w", err)
		}
		portName = result.Port
		fmt.Printf("Found bootloader v0x%02X on %s\n", result.Version, result.Port)
	}

	port, err := serial.Open(portName, cfg.BaudRate)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open port: %w", err)
	}
	fmt.Printf("Port: %s @ %d baud\n", port.PortName(), port.BaudRate())

	if resetFlag {
		fmt.Println("Resetting board...")
		if err := port.Reset(); err != nil {
			port.Close()
			return nil, nil, fmt.Errorf("failed to reset board: %w", err)
		}
	}

	f := flasher.New(port)
	f.SetTimeout(cfg.Timeout)
	return f, port, nil
}

func newProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionThrottle(100),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
}

func loadImage(path string, base uint32) (*image.Image, error) {
	img, err := image.Load(path, base)
	if err != nil {
		return nil, err
	}
	if err := img.Check(memmap.Default()); err != nil {
		return nil, err
	}
	fmt.Printf("Image: %s (%d bytes at 0x%08X)\n", path, len(img.Data), img.Base)
	return img, nil
}

func runFlash(cmd *cobra.Command, args []string) error {
	img, err := loadImage(args[0], cfg.VectorBase)
	if err != nil {
		return err
	}

	f, port, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	bar := newProgressBar(len(img.Data), "Flashing")
	f.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	if err := f.FlashImage(img, !noStartFlag); err != nil {
		return err
	}

	bar.Finish()
	fmt.Println("\nFlash complete!")
	if !noStartFlag {
		fmt.Println("Application started")
	}
	return nil
}

func runInfo(cmd *cobra.Command, args []string) error {
	if cfg.Port != "" {
		result, err := detect.DetectOnPort(cfg.Port, cfg.BaudRate)
		if err != nil {
			return fmt.Errorf("failed to detect bootloader on %s: %w", cfg.Port, err)
		}
		printDeviceInfo(result)
		return nil
	}

	fmt.Println("Scanning for bootloaders...")
	devices, err := detect.ListDevices(cfg.BaudRate)
	if err != nil {
		return err
	}

	if len(devices) == 0 {
		fmt.Println("No bootloader found")
		return nil
	}

	fmt.Printf("Found %d device(s):\n\n", len(devices))
	for i, d := range devices {
		fmt.Printf("Device %d:\n", i+1)
		printDeviceInfo(&d)
		fmt.Println()
	}

	return nil
}

func printDeviceInfo(d *detect.Result) {
	fmt.Printf("  Port:        %s\n", d.Port)
	fmt.Printf("  Bootloader:  v0x%02X\n", d.Version)
}

func runErase(cmd *cobra.Command, args []string) error {
	f, port, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	if massFlag {
		fmt.Println("Erasing whole flash...")
		err = f.MassErase()
	} else {
		fmt.Printf("Erasing %d sector(s) from sector %d...\n", countFlag, sectorFlag)
		err = f.Erase(sectorFlag, countFlag)
	}
	if err != nil {
		return err
	}

	fmt.Println("Erase complete!")
	return nil
}

func runWrite(cmd *cobra.Command, args []string) error {
	img, err := loadImage(args[0], writeAddress)
	if err != nil {
		return err
	}

	f, port, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	bar := newProgressBar(len(img.Data), "Writing")
	f.SetProgressCallback(func(current, total int) {
		bar.Set(current)
	})

	if err := f.WriteMemory(img.Base, img.Data); err != nil {
		return err
	}

	bar.Finish()
	fmt.Println("\nWrite complete!")
	return nil
}

func runGo(cmd *cobra.Command, args []string) error {
	f, port, err := connect()
	if err != nil {
		return err
	}
	defer port.Close()

	if err := f.GoTo(addressFlag); err != nil {
		return err
	}

	fmt.Printf("Jumped to 0x%08X\n", addressFlag)
	return nil
}

func runList(cmd *cobra.Command, args []string) error {
	ports, err := serial.ListPorts()
	if err != nil {
		return err
	}

	if len(ports) == 0 {
		fmt.Println("No serial ports found")
		return nil
	}

	fmt.Println("Available serial ports:")
	for _, p := range ports {
		fmt.Printf("  %s\n", p)
	}

	return nil
}
