package bus

import (
	"github.com/scottjcrouch/ScootNES/apu"
	"github.com/scottjcrouch/ScootNES/cartridge"
	"github.com/scottjcrouch/ScootNES/controller"
	"github.com/scottjcrouch/ScootNES/cpu"
	"github.com/scottjcrouch/ScootNES/mapper"
	"github.com/scottjcrouch/ScootNES/ppu"
)

// dmaCycles is the CPU time an OAM DMA steals, not counting the
// alignment cycle taken when it starts on an odd cycle.
const dmaCycles = 513

// Bus represents the system bus. It owns system RAM and the open-bus
// latch, decodes CPU addresses and runs the master clock.
type Bus struct {
	CPU         *cpu.CPU
	PPU         *ppu.PPU
	APU         *apu.APU
	Controller1 *controller.Controller
	Controller2 *controller.Controller

	cart    *cartridge.Cartridge
	counter mapper.ScanlineCounter

	ram     [2048]byte
	openBus byte

	// SystemClocks counts master ticks since reset.
	SystemClocks uint64
}

// New creates a new Bus instance with every device attached and no
// cartridge.
func New() *Bus {
	b := &Bus{
		CPU:         cpu.New(),
		PPU:         ppu.New(),
		APU:         apu.New(),
		Controller1: controller.New(),
		Controller2: controller.New(),
	}
	b.CPU.ConnectBus(b)
	b.APU.ConnectBus(b)
	return b
}

// LoadCartridge swaps in cart and resets the machine.
func (b *Bus) LoadCartridge(cart *cartridge.Cartridge) {
	b.cart = cart
	b.counter = nil
	if sc, ok := cart.Mapper.(mapper.ScanlineCounter); ok {
		b.counter = sc
	}
	b.PPU.ConnectCartridge(cart)
	b.PPU.ConnectCounter(b.counter)
	b.Reset()
}

// HasCartridge reports whether a cartridge is loaded.
func (b *Bus) HasCartridge() bool {
	return b.cart != nil
}

// Cartridge returns the loaded cartridge, or nil.
func (b *Bus) Cartridge() *cartridge.Cartridge {
	return b.cart
}

// Reset resets every device. RAM keeps its contents.
func (b *Bus) Reset() {
	b.PPU.Reset()
	b.APU.Reset()
	b.CPU.Reset()
	b.SystemClocks = 0
}

// SetController1State sets the buttons held on the first controller.
func (b *Bus) SetController1State(buttons [8]bool) {
	b.Controller1.SetButtons(buttons)
}

// SetController2State sets the buttons held on the second controller.
func (b *Bus) SetController2State(buttons [8]bool) {
	b.Controller2.SetButtons(buttons)
}

// Clock advances the machine by one master tick: the PPU every tick, the
// CPU and APU every third. A halted CPU is no longer clocked but the PPU
// keeps running.
func (b *Bus) Clock() {
	b.PPU.Clock()
	if b.PPU.NMI {
		b.PPU.NMI = false
		b.CPU.NMI()
	}

	if b.SystemClocks%3 == 0 {
		if !b.CPU.Halted() {
			b.CPU.Clock()
		}
		b.APU.Clock()
		b.CPU.SetIRQ(b.APU.IRQ() || (b.counter != nil && b.counter.IRQ()))
	}
	b.SystemClocks++
}

// RunFrame clocks until the PPU completes the current frame.
func (b *Bus) RunFrame() {
	start := b.PPU.FrameCount()
	for b.PPU.FrameCount() == start {
		b.Clock()
	}
}

// StepInstruction clocks until the CPU finishes its current instruction,
// or the next one if it is between instructions.
func (b *Bus) StepInstruction() {
	start := b.CPU.Cycles()
	for !b.CPU.Halted() && (b.CPU.Cycles() == start || b.CPU.Pending() > 0) {
		b.Clock()
	}
}

// Read reads a byte from the bus. Every value read becomes the new
// open-bus value.
func (b *Bus) Read(addr uint16) byte {
	var data byte
	switch {
	case addr < 0x2000:
		data = b.ram[addr&0x07FF]
	case addr < 0x4000:
		switch addr & 7 {
		case 2, 4, 7:
			data = b.PPU.ReadRegister(addr & 7)
		default:
			data = b.openBus
		}
	case addr == 0x4015:
		data = b.APU.CPURead(addr) | b.openBus&0x20
	case addr == 0x4016:
		data = b.openBus&0xE0 | b.Controller1.Read()
	case addr == 0x4017:
		data = b.openBus&0xE0 | b.Controller2.Read()
	case addr < 0x6000:
		data = b.openBus
	default:
		data = b.readCartridge(addr)
	}
	b.openBus = data
	return data
}

// Write writes a byte to the bus. The open-bus latch takes the value
// before it is dispatched.
func (b *Bus) Write(addr uint16, data byte) {
	b.openBus = data
	switch {
	case addr < 0x2000:
		b.ram[addr&0x07FF] = data
	case addr < 0x4000:
		b.PPU.WriteRegister(addr&7, data)
	case addr == 0x4014:
		b.oamDMA(data)
	case addr == 0x4016:
		b.Controller1.Write(data)
		b.Controller2.Write(data)
	case addr < 0x4018:
		b.APU.CPUWrite(addr, data)
	case addr < 0x6000:
	default:
		if b.cart != nil {
			b.cart.WritePRG(addr, data)
		}
	}
}

// Peek reads a byte without side effects. Device ports read as the
// open-bus value.
func (b *Bus) Peek(addr uint16) byte {
	switch {
	case addr < 0x2000:
		return b.ram[addr&0x07FF]
	case addr < 0x6000:
		return b.openBus
	}
	return b.readCartridge(addr)
}

// OpenBus returns the last value driven onto the data bus.
func (b *Bus) OpenBus() byte {
	return b.openBus
}

func (b *Bus) readCartridge(addr uint16) byte {
	if b.cart == nil {
		return b.openBus
	}
	if data, ok := b.cart.ReadPRG(addr); ok {
		return data
	}
	return b.openBus
}

// oamDMA copies page into OAM and suspends the CPU for the transfer.
func (b *Bus) oamDMA(page byte) {
	base := uint16(page) << 8
	for i := uint16(0); i < 256; i++ {
		b.PPU.WriteOAM(b.Read(base | i))
	}
	stall := dmaCycles
	if b.CPU.Cycles()%2 == 1 {
		stall++
	}
	b.CPU.Stall(stall)
}
