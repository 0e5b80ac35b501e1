package embedded

import (
	"bytes"
	_ "embed"

	"github.com/bigbag/stm32-bootloader/internal/image"
)

// demo_app.hex is a minimal application linked at 0x08008000: a vector table
// followed by a reset handler that spins incrementing r0.
//
//go:embed demo_app.hex
var demoApp []byte

// DemoApp returns the embedded demo application as Intel HEX.
func DemoApp() []byte {
	return demoApp
}

// DemoImage returns the parsed demo application.
func DemoImage() (*image.Image, error) {
	return image.ParseHex(bytes.NewReader(demoApp))
}
