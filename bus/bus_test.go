package bus

import (
	"bytes"
	"errors"
	"testing"

	"github.com/scottjcrouch/ScootNES/cartridge"
	"github.com/scottjcrouch/ScootNES/controller"
)

// romImage builds a 32KB NROM image with code placed at the given CPU
// addresses. Reset enters at 0x8000, NMI at 0x9000 and IRQ at 0xA000.
func romImage(mapperID byte, code map[uint16][]byte) []byte {
	prg := make([]byte, 0x8000)
	for addr, b := range code {
		copy(prg[addr-0x8000:], b)
	}
	copy(prg[0x7FFA:], []byte{0x00, 0x90, 0x00, 0x80, 0x00, 0xA0})

	header := []byte{'N', 'E', 'S', 0x1A, 2, 1, mapperID << 4, mapperID & 0xF0, 0, 0, 0, 0, 0, 0, 0, 0}
	data := append(header, prg...)
	return append(data, make([]byte, 0x2000)...)
}

func loadBus(t *testing.T, image []byte) *Bus {
	t.Helper()
	cart, err := cartridge.FromBytes(image)
	if err != nil {
		t.Fatal(err)
	}
	b := New()
	b.LoadCartridge(cart)
	return b
}

// idle is a program that spins at 0x8000.
var idle = map[uint16][]byte{0x8000: {0x4C, 0x00, 0x80}}

func TestRAMMirroring(t *testing.T) {
	b := New()
	b.Write(0x0001, 0x42)
	for _, addr := range []uint16{0x0801, 0x1001, 0x1801} {
		if v := b.Read(addr); v != 0x42 {
			t.Errorf("%04X = %02X, want 42", addr, v)
		}
	}
}

func TestOpenBus(t *testing.T) {
	b := New()

	b.Write(0x2000, 0x5A)
	if v := b.Read(0x2000); v != 0x5A {
		t.Errorf("write-only PPU port read %02X, want last written 5A", v)
	}

	b.Write(0x0010, 0x99)
	b.Read(0x0010)
	for _, addr := range []uint16{0x4018, 0x401F, 0x5000, 0x4014, 0x8000} {
		if v := b.Read(addr); v != 0x99 {
			t.Errorf("%04X read %02X, want open bus 99", addr, v)
		}
	}
	b.Write(0x4018, 0x11)
	if b.OpenBus() != 0x11 {
		t.Error("write to an unmapped port should still drive the bus")
	}
}

func TestPPURegisterMirroring(t *testing.T) {
	b := loadBus(t, romImage(0, idle))
	b.Write(0x3FFE, 0x21) // ADDR
	b.Write(0x3FFE, 0x08)
	b.Write(0x200F, 0x77) // DATA
	if v := b.PPU.Peek(0x2108); v != 0x77 {
		t.Errorf("nametable byte = %02X, want 77", v)
	}
}

func TestControllerPort(t *testing.T) {
	b := New()
	b.SetController1State([8]bool{controller.ButtonA: true})
	b.SetController2State([8]bool{controller.ButtonB: true})
	b.Write(0x4016, 1)
	b.Write(0x4016, 0)

	if v := b.Read(0x4016); v != 0x01 {
		t.Errorf("controller 1 A = %02X, want 01", v)
	}
	if v := b.Read(0x4017); v != 0x00 {
		t.Errorf("controller 2 A = %02X, want 00", v)
	}
	if v := b.Read(0x4017); v != 0x01 {
		t.Errorf("controller 2 B = %02X, want 01", v)
	}

	b.Write(0x0000, 0xE0)
	b.Read(0x0000)
	if v := b.Read(0x4016); v != 0xE0 {
		t.Errorf("controller 1 B = %02X, upper bits should come from open bus", v)
	}
}

func TestOAMDMA(t *testing.T) {
	b := loadBus(t, romImage(0, idle))
	for i := 0; i < 256; i++ {
		b.Write(0x0200+uint16(i), byte(i))
	}

	before := b.CPU.Pending()
	b.Write(0x4014, 0x02)
	oam := b.PPU.PeekOAM()
	for i := range oam {
		if oam[i] != byte(i) {
			t.Fatalf("OAM[%d] = %02X", i, oam[i])
		}
	}
	if got := b.CPU.Pending() - before; got != 513 {
		t.Errorf("DMA on an even cycle stalled %d cycles, want 513", got)
	}

	b.CPU.Clock()
	before = b.CPU.Pending()
	b.Write(0x4014, 0x02)
	if got := b.CPU.Pending() - before; got != 514 {
		t.Errorf("DMA on an odd cycle stalled %d cycles, want 514", got)
	}
}

func TestStepInstruction(t *testing.T) {
	b := loadBus(t, romImage(0, map[uint16][]byte{0x8000: {0xA9, 0x01, 0x4C, 0x02, 0x80}}))

	b.StepInstruction() // reset sequence
	if b.CPU.PC != 0x8000 {
		t.Fatalf("PC = %04X after reset", b.CPU.PC)
	}
	b.StepInstruction()
	if b.CPU.A != 0x01 || b.CPU.PC != 0x8002 {
		t.Errorf("after LDA: A=%02X PC=%04X", b.CPU.A, b.CPU.PC)
	}
	if b.CPU.Pending() != 0 {
		t.Error("step should stop on an instruction boundary")
	}
}

func TestFrameTiming(t *testing.T) {
	// LDA #$08; STA $2001 turns background rendering on, then spin.
	b := loadBus(t, romImage(0, map[uint16][]byte{
		0x8000: {0xA9, 0x08, 0x8D, 0x01, 0x20, 0x4C, 0x05, 0x80},
	}))

	start := b.SystemClocks
	b.RunFrame()
	if got := b.SystemClocks - start; got != 89342 {
		t.Errorf("even frame took %d ticks, want 89342", got)
	}
	start = b.SystemClocks
	b.RunFrame()
	if got := b.SystemClocks - start; got != 89341 {
		t.Errorf("odd frame took %d ticks, want 89341", got)
	}

	if want := (b.SystemClocks + 2) / 3; b.CPU.Cycles() != want {
		t.Errorf("CPU ran %d cycles in %d ticks, want %d", b.CPU.Cycles(), b.SystemClocks, want)
	}
}

func TestNMIOncePerFrame(t *testing.T) {
	b := loadBus(t, romImage(0, map[uint16][]byte{
		// LDA #$80; STA $2000; loop: JMP loop
		0x8000: {0xA9, 0x80, 0x8D, 0x00, 0x20, 0x4C, 0x05, 0x80},
		// INC $10; RTI
		0x9000: {0xE6, 0x10, 0x40},
	}))

	for i := 0; i < 3; i++ {
		b.RunFrame()
	}
	if v := b.Peek(0x0010); v != 3 {
		t.Errorf("NMI handler ran %d times in 3 frames", v)
	}
}

func TestFrameIRQReachesCPU(t *testing.T) {
	b := loadBus(t, romImage(0, map[uint16][]byte{
		// CLI; loop: JMP loop
		0x8000: {0x58, 0x4C, 0x01, 0x80},
		// INC $11; LDA $4015; RTI
		0xA000: {0xE6, 0x11, 0xAD, 0x15, 0x40, 0x40},
	}))

	for i := 0; i < 3; i++ {
		b.RunFrame()
	}
	if v := b.Peek(0x0011); v == 0 {
		t.Error("APU frame IRQ was never taken")
	}
}

func TestHaltKeepsPPURunning(t *testing.T) {
	b := loadBus(t, romImage(0, map[uint16][]byte{0x8000: {0x02}}))

	b.RunFrame()
	if !b.CPU.Halted() {
		t.Fatal("JAM should halt the CPU")
	}
	cycles := b.CPU.Cycles()
	frames := b.PPU.FrameCount()
	b.RunFrame()
	if b.PPU.FrameCount() != frames+1 {
		t.Error("PPU stopped with the CPU")
	}
	if b.CPU.Cycles() != cycles {
		t.Error("halted CPU was clocked")
	}

	b.StepInstruction() // must not spin forever
}

func TestPeekHasNoSideEffects(t *testing.T) {
	b := loadBus(t, romImage(0, idle))
	for !b.PPU.InVBlank() {
		b.Clock()
	}

	b.Peek(0x2002)
	if !b.PPU.InVBlank() {
		t.Fatal("Peek cleared vblank")
	}
	if v := b.Peek(0x8000); v != 0x4C {
		t.Errorf("Peek program = %02X, want 4C", v)
	}
	if b.Read(0x2002)&0x80 == 0 {
		t.Error("status read should report vblank")
	}
	if b.PPU.InVBlank() {
		t.Error("status read should clear vblank")
	}
}

func TestSaveRAMThroughBus(t *testing.T) {
	b := loadBus(t, romImage(0, idle))
	b.Write(0x6000, 0xAB)
	if v := b.Read(0x6000); v != 0xAB {
		t.Errorf("save RAM read %02X", v)
	}
	b.Write(0x8000, 0x00)
	if v := b.Read(0x8000); v != 0x4C {
		t.Error("program ROM was written")
	}
}

func TestStateRoundTrip(t *testing.T) {
	image := romImage(0, map[uint16][]byte{
		// loop: INC $10; JMP loop
		0x8000: {0xE6, 0x10, 0x4C, 0x00, 0x80},
	})
	b := loadBus(t, image)
	b.RunFrame()

	var buf bytes.Buffer
	if err := b.WriteState(&buf); err != nil {
		t.Fatal(err)
	}

	other := loadBus(t, image)
	if err := other.ReadState(&buf); err != nil {
		t.Fatal(err)
	}
	b.RunFrame()
	other.RunFrame()
	if b.Peek(0x0010) != other.Peek(0x0010) || b.CPU.PC != other.CPU.PC || b.SystemClocks != other.SystemClocks {
		t.Errorf("restored machine diverged: %02X/%02X", b.Peek(0x0010), other.Peek(0x0010))
	}
}

func TestRestoreRejectsOtherBoard(t *testing.T) {
	b := loadBus(t, romImage(0, idle))
	s, err := b.Snapshot()
	if err != nil {
		t.Fatal(err)
	}

	mmc1 := loadBus(t, romImage(1, idle))
	mmc1.Write(0x0000, 0x55)
	if err := mmc1.Restore(s); err == nil {
		t.Fatal("restoring an NROM snapshot onto MMC1 should fail")
	}
	if mmc1.Peek(0x0000) != 0x55 {
		t.Error("failed restore modified RAM")
	}

	if _, err := New().Snapshot(); !errors.Is(err, ErrNoCartridge) {
		t.Errorf("empty slot snapshot: %v", err)
	}
}
