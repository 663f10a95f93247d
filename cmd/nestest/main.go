// Command nestest runs the nestest ROM in automation mode and prints a
// trace in the nestest.log layout, one line per instruction.
package main

import (
	"bufio"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/cartridge"
	"github.com/scottjcrouch/ScootNES/cpu"
)

// trace formats the instruction at the CPU's PC together with the
// machine state before it runs.
func trace(b *bus.Bus) string {
	c := b.CPU
	text, size := cpu.Disassemble(b, c.PC)

	raw := make([]string, size)
	for i := range raw {
		raw[i] = fmt.Sprintf("%02X", b.Peek(c.PC+uint16(i)))
	}

	mark := " "
	if !cpu.Documented(b.Peek(c.PC)) {
		mark = "*"
	}
	return fmt.Sprintf("%04X  %-8s %s%-31s A:%02X X:%02X Y:%02X P:%02X SP:%02X PPU:%3d,%3d CYC:%d",
		c.PC, strings.Join(raw, " "), mark, text,
		c.A, c.X, c.Y, c.P, c.SP,
		b.PPU.Scanline(), b.PPU.Dot(), c.Cycles())
}

// run traces up to limit instructions from start. It stops early if the
// CPU halts.
func run(b *bus.Bus, start uint16, limit int, w *bufio.Writer) {
	b.StepInstruction() // reset sequence
	b.CPU.PC = start
	for i := 0; i < limit && !b.CPU.Halted(); i++ {
		fmt.Fprintln(w, trace(b))
		b.StepInstruction()
	}
}

func main() {
	romPath := flag.String("rom", "testdata/nestest.nes", "path to nestest.nes")
	limit := flag.Int("n", 8991, "number of instructions to trace")
	start := flag.Uint("pc", 0xC000, "start address (0xC000 is automation mode)")
	flag.Parse()

	cart, err := cartridge.New(*romPath)
	if err != nil {
		log.Fatalf("Error loading nestest ROM from %s: %v", *romPath, err)
	}

	b := bus.New()
	b.LoadCartridge(cart)

	w := bufio.NewWriter(os.Stdout)
	defer w.Flush()
	run(b, uint16(*start), *limit, w)

	// nestest leaves its result codes in 0x02 and 0x03.
	if r2, r3 := b.Peek(0x02), b.Peek(0x03); r2 != 0 || r3 != 0 {
		log.Printf("nestest reported failure codes %02X %02X", r2, r3)
	}
}
