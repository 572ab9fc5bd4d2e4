package bus

import (
	"github.com/labwired/labwired-go/internal/gpio"
	"github.com/labwired/labwired-go/internal/memory"
	"github.com/labwired/labwired-go/internal/nvic"
	"github.com/labwired/labwired-go/internal/peripheral"
	"github.com/labwired/labwired-go/internal/scb"
	"github.com/labwired/labwired-go/internal/systick"
	"github.com/labwired/labwired-go/internal/uart"
)

// Standard memory map (spec §6): flash and RAM sizes/bases, and the
// documented STM32F1-shaped peripheral offsets.
const (
	FlashBase = 0x0000_0000
	FlashSize = 1 * 1024 * 1024
	RAMBase   = 0x2000_0000
	RAMSize   = 1 * 1024 * 1024

	SysTickBase = 0xE000_E010
	SysTickSize = 0x10
	UART1Base   = 0x4000_C000
	UART1Size   = 0x400
	NVICBase    = 0xE000_E100
	NVICSize    = 0x400
	SCBBase     = 0xE000_ED00
	SCBSize     = 0x40

	GPIOABase = 0x4001_0800
	GPIOBBase = 0x4001_0C00
	GPIOCBase = 0x4001_1000
	GPIOSize  = 0x400

	RCCBase  = 0x4002_1000
	RCCSize  = 0x400
	TIM2Base = 0x4000_0000
	TIM3Base = 0x4000_0400
	TimSize  = 0x400
	I2C1Base = 0x4000_5400
	I2C2Base = 0x4000_5800
	I2CSize  = 0x400
	SPI1Base = 0x4001_3000
	SPI2Base = 0x4000_3800
	SPISize  = 0x400
)

// stubEntry is a register window that is present in the standard memory
// map (so it does not fault) but has no behavior beyond read-as-written.
// RCC/TIM2/TIM3/I2C/SPI are listed in spec §6's standard map but have no
// component of their own in §4.4; firmware built for real STM32F1 parts
// that merely pokes them during clock/peripheral setup should not trip a
// MemoryViolation.
type stubEntry struct {
	regs [0x400]byte
}

func (s *stubEntry) ReadByte(offset uint32) uint8 {
	if int(offset) < len(s.regs) {
		return s.regs[offset]
	}
	return 0
}

func (s *stubEntry) WriteByte(offset uint32, v uint8) {
	if int(offset) < len(s.regs) {
		s.regs[offset] = v
	}
}

func (s *stubEntry) Tick() (bool, int) { return false, 0 }

// Shared holds the atomic state NVIC/SCB peripheral entries wrap, and
// that the CPU core consults directly (VTOR) or that Machine applies
// pending IRQs through (NVIC).
type Shared struct {
	NVIC *nvic.State
	VTOR *scb.VTOR
}

// NewDefault builds the bus described in spec §6: flash and RAM at their
// standard bases/sizes, SysTick/UART1/NVIC/SCB/GPIOA-C wired to real
// devices, and RCC/TIM2/TIM3/I2C1-2/SPI1-2 present as inert stubs.
func NewDefault(sink *uart.Sink, echo bool, echoFn func(byte)) (*SystemBus, *Shared) {
	b := New(memory.New(FlashBase, FlashSize), memory.New(RAMBase, RAMSize))

	shared := &Shared{NVIC: nvic.NewState(), VTOR: scb.NewVTOR()}
	b.SetNVIC(shared.NVIC)

	systickIRQ := systick.IRQ
	b.AddPeripheral(&peripheral.Entry{Name: "systick", Base: SysTickBase, Size: SysTickSize, IRQ: &systickIRQ, Dev: systick.New()})
	b.AddPeripheral(&peripheral.Entry{Name: "uart1", Base: UART1Base, Size: UART1Size, Dev: uart.New(sink, echo, echoFn)})
	b.AddPeripheral(&peripheral.Entry{Name: "nvic", Base: NVICBase, Size: NVICSize, Dev: nvic.New(shared.NVIC)})
	b.AddPeripheral(&peripheral.Entry{Name: "scb", Base: SCBBase, Size: SCBSize, Dev: scb.New(shared.VTOR)})
	b.AddPeripheral(&peripheral.Entry{Name: "gpioa", Base: GPIOABase, Size: GPIOSize, Dev: gpio.New()})
	b.AddPeripheral(&peripheral.Entry{Name: "gpiob", Base: GPIOBBase, Size: GPIOSize, Dev: gpio.New()})
	b.AddPeripheral(&peripheral.Entry{Name: "gpioc", Base: GPIOCBase, Size: GPIOSize, Dev: gpio.New()})

	for _, s := range []struct {
		name string
		base uint32
	}{
		{"rcc", RCCBase}, {"tim2", TIM2Base}, {"tim3", TIM3Base},
		{"i2c1", I2C1Base}, {"i2c2", I2C2Base}, {"spi1", SPI1Base}, {"spi2", SPI2Base},
	} {
		b.AddPeripheral(&peripheral.Entry{Name: s.name, Base: s.base, Size: 0x400, Dev: &stubEntry{}})
	}

	return b, shared
}
