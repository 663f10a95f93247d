package main

import (
	"bufio"
	"bytes"
	"strings"
	"testing"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/cartridge"
)

func loadProgram(t *testing.T, code []byte) *bus.Bus {
	t.Helper()
	prg := make([]byte, 0x4000)
	copy(prg, code)
	copy(prg[0x3FFA:], []byte{0x00, 0xC0, 0x00, 0xC0, 0x00, 0xC0})
	image := append([]byte{'N', 'E', 'S', 0x1A, 1, 1, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}, prg...)
	image = append(image, make([]byte, 0x2000)...)

	cart, err := cartridge.FromBytes(image)
	if err != nil {
		t.Fatal(err)
	}
	b := bus.New()
	b.LoadCartridge(cart)
	return b
}

func TestTrace(t *testing.T) {
	// JMP $C005; NOP $A9 (undocumented); JAM
	b := loadProgram(t, []byte{0x4C, 0x05, 0xC0, 0xEA, 0xEA, 0x04, 0xA9, 0x02})

	var out bytes.Buffer
	w := bufio.NewWriter(&out)
	run(b, 0xC000, 10, w)
	w.Flush()

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("got %d lines:\n%s", len(lines), out.String())
	}
	if !strings.HasPrefix(lines[0], "C000  4C 05 C0  JMP $C005") {
		t.Errorf("line 0 = %q", lines[0])
	}
	if !strings.HasSuffix(lines[0], "CYC:7") || !strings.Contains(lines[0], "A:00 X:00 Y:00 P:24 SP:FD") {
		t.Errorf("line 0 state = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "C005  04 A9    *NOP $A9") {
		t.Errorf("line 1 = %q", lines[1])
	}
	if !strings.HasSuffix(lines[1], "CYC:10") {
		t.Errorf("line 1 cycles = %q", lines[1])
	}
	if !b.CPU.Halted() {
		t.Error("trace should stop on JAM")
	}
}
