package console

import (
	"bytes"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/cartridge"
	"github.com/scottjcrouch/ScootNES/controller"
)

// writeROM writes a 32KB NROM image that runs code from 0x8000.
func writeROM(t *testing.T, name string, flags6 byte, code []byte) string {
	t.Helper()
	prg := make([]byte, 0x8000)
	copy(prg, code)
	copy(prg[0x7FFA:], []byte{0x00, 0x80, 0x00, 0x80, 0x00, 0x80})

	image := append([]byte{'N', 'E', 'S', 0x1A, 2, 1, flags6, 0, 0, 0, 0, 0, 0, 0, 0, 0}, prg...)
	image = append(image, make([]byte, 0x2000)...)

	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, image, 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

var spin = []byte{0x4C, 0x00, 0x80}

func newConsole(t *testing.T, code []byte) *Console {
	t.Helper()
	c := New(bus.New())
	if err := c.LoadROM(writeROM(t, "game.nes", 0, code)); err != nil {
		t.Fatal(err)
	}
	return c
}

func TestLoadROMFailureKeepsCartridge(t *testing.T) {
	c := newConsole(t, spin)

	bad := filepath.Join(t.TempDir(), "bad.nes")
	if err := os.WriteFile(bad, []byte("not a rom"), 0o644); err != nil {
		t.Fatal(err)
	}
	err := c.LoadROM(bad)
	if !errors.Is(err, cartridge.ErrInvalidContainer) {
		t.Fatalf("LoadROM(bad) = %v", err)
	}
	if !c.HasCartridge() || c.Read(0x8000) != 0x4C {
		t.Error("failed load replaced the cartridge")
	}
}

func TestBatterySaveRAM(t *testing.T) {
	// LDA #$5A; STA $6000; loop
	code := []byte{0xA9, 0x5A, 0x8D, 0x00, 0x60, 0x4C, 0x05, 0x80}
	rom := writeROM(t, "zelda.nes", 0x02, code)

	c := New(bus.New())
	if err := c.LoadROM(rom); err != nil {
		t.Fatal(err)
	}
	c.RunFrame()
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	sav, err := os.ReadFile(strings.TrimSuffix(rom, ".nes") + ".sav")
	if err != nil {
		t.Fatal(err)
	}
	if len(sav) != 0x2000 || sav[0] != 0x5A {
		t.Fatalf("save file: %d bytes, first %02X", len(sav), sav[0])
	}

	again := New(bus.New())
	if err := again.LoadROM(rom); err != nil {
		t.Fatal(err)
	}
	if v := again.Read(0x6000); v != 0x5A {
		t.Errorf("save RAM after reload = %02X, want 5A", v)
	}
}

func TestNoSaveFileWithoutBattery(t *testing.T) {
	rom := writeROM(t, "smb.nes", 0, spin)
	c := New(bus.New())
	if err := c.LoadROM(rom); err != nil {
		t.Fatal(err)
	}
	c.RunFrame()
	c.Close()
	if _, err := os.Stat(strings.TrimSuffix(rom, ".nes") + ".sav"); !os.IsNotExist(err) {
		t.Error("wrote a save file for a cartridge without a battery")
	}
}

func TestPauseAndStep(t *testing.T) {
	// LDX #$00; INX; INX; INX; loop
	c := newConsole(t, []byte{0xA2, 0x00, 0xE8, 0xE8, 0xE8, 0x4C, 0x05, 0x80})
	c.Step() // reset sequence

	c.SetPaused(true)
	before := c.GetCPUState()
	if c.RunFrame() {
		t.Fatal("paused console ran a frame")
	}
	if c.GetCPUState() != before {
		t.Fatal("paused console advanced")
	}

	c.RequestStep()
	c.RequestStep()
	c.RunFrame()
	s := c.GetCPUState()
	if s.PC != 0x8003 || s.X != 0x01 {
		t.Errorf("after two steps PC=%04X X=%02X", s.PC, s.X)
	}

	c.SetPaused(false)
	if !c.RunFrame() {
		t.Error("resumed console did not run")
	}
}

func TestHaltLoggedOnce(t *testing.T) {
	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	c := newConsole(t, []byte{0xEA, 0x02})
	c.RunFrame()
	c.RunFrame()

	if n := strings.Count(buf.String(), "halted"); n != 1 {
		t.Errorf("halt logged %d times:\n%s", n, buf.String())
	}
	s := c.GetCPUState()
	if !s.Halted || s.PC != 0x8001 {
		t.Errorf("state = %+v", s)
	}

	c.Reset()
	c.RunFrame()
	if n := strings.Count(buf.String(), "halted"); n != 2 {
		t.Error("halt after reset was not logged")
	}
}

func TestMemoryBlock(t *testing.T) {
	c := newConsole(t, spin)
	block := c.GetMemoryBlock(0xFFFE, 4)
	want := []byte{0x00, 0x80, 0x00, 0x00}
	if !bytes.Equal(block, want) {
		t.Errorf("block = % X, want % X", block, want)
	}

	lines := c.Disassemble(0x8000, 1)
	if len(lines) != 1 || lines[0] != "8000  JMP $8000" {
		t.Errorf("disassembly = %q", lines)
	}
}

func TestInputCombined(t *testing.T) {
	c := newConsole(t, spin)
	c.SetButtons(0, [8]bool{controller.ButtonA: true})
	c.SetRemoteButtons(0, [8]bool{controller.ButtonStart: true})
	got := c.Buttons(0)
	if !got[controller.ButtonA] || !got[controller.ButtonStart] || got[controller.ButtonB] {
		t.Errorf("buttons = %v", got)
	}
	if c.Buttons(1) != [8]bool{} {
		t.Error("player 2 picked up player 1 input")
	}
}

func TestStateFile(t *testing.T) {
	// loop: INC $10; JMP loop
	c := newConsole(t, []byte{0xE6, 0x10, 0x4C, 0x00, 0x80})
	c.RunFrame()
	path := filepath.Join(t.TempDir(), "slot1.state")
	if err := c.SaveState(path); err != nil {
		t.Fatal(err)
	}
	saved := c.Read(0x0010)

	c.RunFrame()
	if err := c.LoadState(path); err != nil {
		t.Fatal(err)
	}
	if c.Read(0x0010) != saved {
		t.Error("state file did not restore RAM")
	}
}
