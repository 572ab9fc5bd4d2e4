package sysconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/labwired/labwired-go/internal/uart"
)

func TestParseSize(t *testing.T) {
	cases := map[string]uint64{
		"128KB": 128 * 1024,
		"1MB":   1024 * 1024,
		"64B":   64,
		"256":   256,
	}
	for in, want := range cases {
		got, err := ParseSize(in)
		if err != nil {
			t.Fatalf("ParseSize(%q): %v", in, err)
		}
		if got != want {
			t.Errorf("ParseSize(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestParseSizeInvalid(t *testing.T) {
	if _, err := ParseSize("not-a-size"); err == nil {
		t.Fatal("expected an error for an unparseable size")
	}
}

const sampleChipYAML = `
name: stm32f103
arch: cortex-m3
flash:
  base: 0
  size: "64KB"
ram:
  base: 536870912
  size: "20KB"
peripherals:
  - id: uart1
    type: uart
    base_address: 1073831936
    size: "1KB"
  - id: systick
    type: systick
    base_address: 3758161936
    size: "16B"
  - id: rcc
    type: rcc
    base_address: 1074003968
    size: "1KB"
`

func TestLoadAndBuildChipDescriptor(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stm32f103.yaml")
	if err := os.WriteFile(path, []byte(sampleChipYAML), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	chip, err := LoadChipDescriptor(path)
	if err != nil {
		t.Fatalf("LoadChipDescriptor: %v", err)
	}
	if chip.Name != "stm32f103" || len(chip.Peripherals) != 3 {
		t.Fatalf("chip = %+v, unexpected shape", chip)
	}

	sink := &uart.Sink{}
	b, shared, err := BuildBus(chip, UARTOptions{Sink: sink})
	if err != nil {
		t.Fatalf("BuildBus: %v", err)
	}
	if shared.NVIC == nil || shared.VTOR == nil {
		t.Fatal("BuildBus did not wire shared NVIC/VTOR state")
	}

	if err := b.WriteByte(1073831936, 'X'); err != nil {
		t.Fatalf("WriteByte to uart1: %v", err)
	}
	if got := sink.Bytes(); len(got) != 1 || got[0] != 'X' {
		t.Fatalf("sink = %v, want [X]", got)
	}
}

func TestLoadSystemManifest(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "system.yaml")
	content := "name: demo-board\nchip: stm32f103\nexternal_devices:\n  - id: term\n    type: terminal\n    connection: uart1\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	manifest, err := LoadSystemManifest(path)
	if err != nil {
		t.Fatalf("LoadSystemManifest: %v", err)
	}
	if manifest.Chip != "stm32f103" || len(manifest.ExternalDevices) != 1 {
		t.Fatalf("manifest = %+v, unexpected shape", manifest)
	}
}

func TestLoadChipDescriptorMissingFile(t *testing.T) {
	if _, err := LoadChipDescriptor("/no/such/file.yaml"); err == nil {
		t.Fatal("expected a ConfigError for a missing file")
	}
}
