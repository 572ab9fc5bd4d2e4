// Package sysconfig parses the YAML chip descriptor and system manifest
// that describe a target board, and assembles the corresponding bus with
// a type switch over each peripheral's type string. A chip descriptor is data; turning
// it into a running internal/bus.SystemBus is this package's job.
package sysconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/labwired/labwired-go/internal/bus"
	"github.com/labwired/labwired-go/internal/gpio"
	"github.com/labwired/labwired-go/internal/memory"
	"github.com/labwired/labwired-go/internal/nvic"
	"github.com/labwired/labwired-go/internal/peripheral"
	"github.com/labwired/labwired-go/internal/scb"
	"github.com/labwired/labwired-go/internal/simerr"
	"github.com/labwired/labwired-go/internal/systick"
	"github.com/labwired/labwired-go/internal/uart"
	"gopkg.in/yaml.v3"
)

// MemoryRange describes one linear region: a base address and a
// human-readable size like "128KB".
type MemoryRange struct {
	Base uint64 `yaml:"base"`
	Size string `yaml:"size"`
}

// PeripheralConfig describes one peripheral instance in a chip
// descriptor: its bus type, base address, optional size/IRQ override, and
// a free-form config bag for device-specific knobs.
type PeripheralConfig struct {
	ID          string         `yaml:"id"`
	Type        string         `yaml:"type"`
	BaseAddress uint64         `yaml:"base_address"`
	Size        string         `yaml:"size,omitempty"`
	IRQ         *uint32        `yaml:"irq,omitempty"`
	Config      map[string]any `yaml:"config,omitempty"`
}

// ChipDescriptor is the YAML document describing one microcontroller
// target: its architecture, flash/RAM layout, and peripheral set.
type ChipDescriptor struct {
	Name        string             `yaml:"name"`
	Arch        string             `yaml:"arch"`
	Flash       MemoryRange        `yaml:"flash"`
	RAM         MemoryRange        `yaml:"ram"`
	Peripherals []PeripheralConfig `yaml:"peripherals"`
}

// ExternalDevice describes a host-side device attached to one of the
// chip's peripherals (e.g. a terminal attached to uart1). Wiring an
// ExternalDevice beyond its connection name is a host-integration detail
// outside the simulator core's scope; SystemManifest only records it.
type ExternalDevice struct {
	ID         string         `yaml:"id"`
	Type       string         `yaml:"type"`
	Connection string         `yaml:"connection"`
	Config     map[string]any `yaml:"config,omitempty"`
}

// SystemManifest is the YAML document describing one simulated system: a
// chip reference plus memory overrides and attached external devices.
type SystemManifest struct {
	Name            string            `yaml:"name"`
	Chip            string            `yaml:"chip"`
	MemoryOverrides map[string]string `yaml:"memory_overrides,omitempty"`
	ExternalDevices []ExternalDevice  `yaml:"external_devices,omitempty"`
}

// LoadChipDescriptor reads and parses a chip descriptor YAML file.
func LoadChipDescriptor(path string) (*ChipDescriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("reading chip descriptor %s: %v", path, err)}
	}
	var d ChipDescriptor
	if err := yaml.Unmarshal(data, &d); err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("parsing chip descriptor %s: %v", path, err)}
	}
	return &d, nil
}

// LoadSystemManifest reads and parses a system manifest YAML file.
func LoadSystemManifest(path string) (*SystemManifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("reading system manifest %s: %v", path, err)}
	}
	var m SystemManifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, &simerr.ConfigError{Msg: fmt.Sprintf("parsing system manifest %s: %v", path, err)}
	}
	return &m, nil
}

// ParseSize parses a human size string like "128KB" or "1MB" into a byte
// count. Only the binary-adjacent suffixes the standard chip descriptors
// use are recognized: B, KB, MB (each taken as a power of 1024, the
// convention silicon datasheets use for flash/RAM sizes).
func ParseSize(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	upper := strings.ToUpper(s)
	var mul uint64 = 1
	var numPart string
	switch {
	case strings.HasSuffix(upper, "MB"):
		mul = 1024 * 1024
		numPart = s[:len(s)-2]
	case strings.HasSuffix(upper, "KB"):
		mul = 1024
		numPart = s[:len(s)-2]
	case strings.HasSuffix(upper, "B"):
		numPart = s[:len(s)-1]
	default:
		numPart = s
	}
	numPart = strings.TrimSpace(numPart)
	n, err := strconv.ParseUint(numPart, 10, 64)
	if err != nil {
		return 0, &simerr.ConfigError{Msg: fmt.Sprintf("invalid size %q: %v", s, err)}
	}
	return n * mul, nil
}

// UARTOptions configures the host side of any uart-typed peripheral a
// descriptor names — where captured bytes go and whether they also echo
// to the host's own stdout.
type UARTOptions struct {
	Sink   *uart.Sink
	Echo   bool
	EchoFn func(b byte)
}

// BuildBus assembles a bus from a chip descriptor: flash and RAM sized
// per the descriptor, and one peripheral per PeripheralConfig entry built
// by buildPeripheral's type switch below. An unrecognized peripheral type
// becomes an inert stub rather than a ConfigError, matching the tolerance
// internal/bus.NewDefault already extends to RCC/TIM/I2C/SPI: firmware
// built for the real chip often pokes registers this simulator does not
// model behavior for.
func BuildBus(chip *ChipDescriptor, uartOpts UARTOptions) (*bus.SystemBus, *bus.Shared, error) {
	flashSize, err := ParseSize(chip.Flash.Size)
	if err != nil {
		return nil, nil, err
	}
	ramSize, err := ParseSize(chip.RAM.Size)
	if err != nil {
		return nil, nil, err
	}

	b := bus.New(
		memory.New(uint32(chip.Flash.Base), uint32(flashSize)),
		memory.New(uint32(chip.RAM.Base), uint32(ramSize)),
	)

	shared := &bus.Shared{NVIC: nvic.NewState(), VTOR: scb.NewVTOR()}
	b.SetNVIC(shared.NVIC)

	for _, pc := range chip.Peripherals {
		entry, err := buildPeripheral(pc, shared, uartOpts)
		if err != nil {
			return nil, nil, err
		}
		b.AddPeripheral(entry)
	}
	return b, shared, nil
}

// LoadBus builds the bus a run executes against: the standard default
// memory map when systemPath is empty, or the chip descriptor named by
// the system manifest at systemPath otherwise. The manifest's chip field
// is resolved relative to the manifest's own directory, matching a
// system manifest and its chip descriptor living side by side.
func LoadBus(systemPath string, uartOpts UARTOptions) (*bus.SystemBus, *bus.Shared, error) {
	if systemPath == "" {
		b, shared := bus.NewDefault(uartOpts.Sink, uartOpts.Echo, uartOpts.EchoFn)
		return b, shared, nil
	}
	manifest, err := LoadSystemManifest(systemPath)
	if err != nil {
		return nil, nil, err
	}
	chipPath := filepath.Join(filepath.Dir(systemPath), manifest.Chip)
	chip, err := LoadChipDescriptor(chipPath)
	if err != nil {
		return nil, nil, err
	}
	return BuildBus(chip, uartOpts)
}

func buildPeripheral(pc PeripheralConfig, shared *bus.Shared, uartOpts UARTOptions) (*peripheral.Entry, error) {
	size := uint32(bus.GPIOSize)
	if pc.Size != "" {
		n, err := ParseSize(pc.Size)
		if err != nil {
			return nil, err
		}
		size = uint32(n)
	}

	entry := &peripheral.Entry{Name: pc.ID, Base: uint32(pc.BaseAddress), Size: size, IRQ: pc.IRQ}

	switch pc.Type {
	case "uart":
		entry.Dev = uart.New(uartOpts.Sink, uartOpts.Echo, uartOpts.EchoFn)
	case "systick":
		entry.Dev = systick.New()
		if entry.IRQ == nil {
			irq := systick.IRQ
			entry.IRQ = &irq
		}
	case "gpio":
		entry.Dev = gpio.New()
	case "nvic":
		entry.Dev = nvic.New(shared.NVIC)
	case "scb":
		entry.Dev = scb.New(shared.VTOR)
	default:
		entry.Dev = newStub(size)
	}
	return entry, nil
}

// stub is a register window present in the address space so access does
// not fault, with no behavior beyond read-as-written. Used for chip
// descriptor peripheral types this simulator does not model.
type stub struct {
	regs []byte
}

func newStub(size uint32) *stub {
	return &stub{regs: make([]byte, size)}
}

func (s *stub) ReadByte(offset uint32) uint8 {
	if int(offset) < len(s.regs) {
		return s.regs[offset]
	}
	return 0
}

func (s *stub) WriteByte(offset uint32, v uint8) {
	if int(offset) < len(s.regs) {
		s.regs[offset] = v
	}
}

func (s *stub) Tick() (bool, int) { return false, 0 }
