package embedded

import (
	"testing"

	"github.com/bigbag/stm32-bootloader/internal/memmap"
)

func TestDemoImage(t *testing.T) {
	img, err := DemoImage()
	if err != nil {
		t.Fatalf("DemoImage() error = %v", err)
	}
	if img.Base != memmap.AppVectorTable {
		t.Errorf("Base = 0x%08X, want 0x%08X", img.Base, memmap.AppVectorTable)
	}

	sp, reset, err := img.VectorTable()
	if err != nil {
		t.Fatalf("VectorTable() error = %v", err)
	}
	if sp != 0x20020000 {
		t.Errorf("initial SP = 0x%08X, want 0x20020000", sp)
	}
	if reset&1 == 0 {
		t.Errorf("reset handler 0x%08X lacks the Thumb bit", reset)
	}
	if reset&^1 < img.Base || reset&^1 >= img.End() {
		t.Errorf("reset handler 0x%08X is outside the image", reset)
	}

	if first, count, err := img.Sectors(); err != nil || first != 2 || count != 1 {
		t.Errorf("Sectors() = (%d, %d, %v), want (2, 1, nil)", first, count, err)
	}
}
