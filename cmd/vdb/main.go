// Command vdb is a command-line debugger for a running emulator. It talks
// to the emulator's gRPC API.
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"image"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"

	"github.com/scottjcrouch/ScootNES/console"
	"github.com/scottjcrouch/ScootNES/ppu"
	"github.com/scottjcrouch/ScootNES/screenshot"
	"github.com/scottjcrouch/ScootNES/server"
)

const prompt = "(vdb) "

type debugger struct {
	client *server.Client
	out    io.Writer
	ctx    context.Context
}

func main() {
	addr := flag.String("addr", "localhost:50051", "emulator gRPC address")
	flag.Parse()

	fmt.Println("VDB - ScootNES DeBugger")
	fmt.Printf("Connecting to emulator on %s...\n", *addr)

	client, err := server.Dial(*addr)
	if err != nil {
		log.Fatalf("did not connect: %v", err)
	}
	defer client.Close()

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		// Scripted input: no line editing, no prompt.
		d := &debugger{client: client, out: os.Stdout, ctx: context.Background()}
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			if !d.exec(scanner.Text()) {
				return
			}
		}
		return
	}

	oldState, err := term.MakeRaw(fd)
	if err != nil {
		log.Fatalf("terminal: %v", err)
	}
	defer term.Restore(fd, oldState)

	t := term.NewTerminal(struct {
		io.Reader
		io.Writer
	}{os.Stdin, os.Stdout}, prompt)
	d := &debugger{client: client, out: t, ctx: context.Background()}
	fmt.Fprintln(t, "Connected. Type 'help' for commands.")
	for {
		line, err := t.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				fmt.Fprintf(t, "Error: %v\n", err)
			}
			return
		}
		if !d.exec(line) {
			return
		}
	}
}

// exec runs one command line. It returns false when the session should
// end.
func (d *debugger) exec(line string) bool {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return true
	}
	cmd, args := parts[0], parts[1:]

	var err error
	switch {
	case cmd == "help" || cmd == "h":
		d.help()
	case cmd == "quit" || cmd == "q" || cmd == "exit":
		return false
	case cmd == "pause" || cmd == "p":
		if err = d.client.Pause(d.ctx); err == nil {
			fmt.Fprintln(d.out, "Emulator paused.")
			err = d.printRegs()
		}
	case cmd == "run" || cmd == "c" || cmd == "continue":
		if err = d.client.Resume(d.ctx); err == nil {
			fmt.Fprintln(d.out, "Emulator running...")
		}
	case cmd == "step" || cmd == "s":
		err = d.step(args)
	case cmd == "regs" || (cmd == "i" && len(args) > 0 && args[0] == "r"):
		err = d.printRegs()
	case cmd == "x" || strings.HasPrefix(cmd, "x/"):
		err = d.examine(cmd, args)
	case cmd == "dis" || cmd == "d":
		err = d.disassemble(args)
	case cmd == "reset":
		if err = d.client.Reset(d.ctx); err == nil {
			err = d.printRegs()
		}
	case cmd == "save" && len(args) == 1:
		if err = d.client.SaveState(d.ctx, args[0]); err == nil {
			fmt.Fprintf(d.out, "State saved to %s\n", args[0])
		}
	case cmd == "load" && len(args) == 1:
		if err = d.client.LoadState(d.ctx, args[0]); err == nil {
			fmt.Fprintf(d.out, "State loaded from %s\n", args[0])
		}
	case cmd == "frame" && len(args) == 1:
		err = d.saveFrame(args[0])
	default:
		fmt.Fprintf(d.out, "Unknown command: %s\n", line)
	}
	if err != nil {
		fmt.Fprintf(d.out, "Error: %v\n", err)
	}
	return true
}

func (d *debugger) help() {
	fmt.Fprintln(d.out, "Commands:")
	fmt.Fprintln(d.out, "  run, c          - Resume execution")
	fmt.Fprintln(d.out, "  pause, p        - Pause execution")
	fmt.Fprintln(d.out, "  step, s [n]     - Step n instructions")
	fmt.Fprintln(d.out, "  regs, i r       - Print CPU registers")
	fmt.Fprintln(d.out, "  x[/n] <addr>    - Examine memory (e.g. x 0000 or x/16 0000)")
	fmt.Fprintln(d.out, "  dis [addr] [n]  - Disassemble (default: 8 from PC)")
	fmt.Fprintln(d.out, "  reset           - Press reset")
	fmt.Fprintln(d.out, "  save|load <f>   - Save or load a state file on the emulator host")
	fmt.Fprintln(d.out, "  frame <f.png>   - Save the current frame")
	fmt.Fprintln(d.out, "  quit, q         - Exit debugger")
}

func parseAddr(s string) (uint16, error) {
	s = strings.TrimPrefix(strings.TrimPrefix(strings.ToLower(s), "0x"), "$")
	v, err := strconv.ParseUint(s, 16, 16)
	if err != nil {
		return 0, fmt.Errorf("invalid address %q", s)
	}
	return uint16(v), nil
}

func formatRegs(st console.CPUState) string {
	flags := []byte("nv-bdizc")
	for i := range flags {
		if st.P&(0x80>>i) != 0 && flags[i] != '-' {
			flags[i] -= 'a' - 'A'
		}
	}
	s := fmt.Sprintf("A: %02X  X: %02X  Y: %02X  SP: %02X  PC: %04X  P: %02X [%s]  CYC: %d",
		st.A, st.X, st.Y, st.SP, st.PC, st.P, flags, st.Cycles)
	if st.Halted {
		s += "  HALTED"
	}
	return s
}

func (d *debugger) printRegs() error {
	st, err := d.client.GetCPUState(d.ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(d.out, formatRegs(st))
	return nil
}

func (d *debugger) step(args []string) error {
	n := 1
	if len(args) > 0 {
		v, err := strconv.Atoi(args[0])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid step count %q", args[0])
		}
		n = v
	}
	for i := 0; i < n; i++ {
		if err := d.client.Step(d.ctx); err != nil {
			return err
		}
	}
	return d.printRegs()
}

func (d *debugger) examine(cmd string, args []string) error {
	count := 1
	if c, ok := strings.CutPrefix(cmd, "x/"); ok {
		v, err := strconv.Atoi(c)
		if err != nil || v < 1 {
			return fmt.Errorf("invalid count %q", c)
		}
		count = v
	}
	if len(args) != 1 {
		return errors.New("usage: x <addr> or x/<count> <addr>")
	}
	addr, err := parseAddr(args[0])
	if err != nil {
		return err
	}
	data, err := d.client.ReadMemoryBlock(d.ctx, addr, count)
	if err != nil {
		return err
	}
	printHexDump(d.out, addr, data)
	return nil
}

func (d *debugger) disassemble(args []string) error {
	count := 8
	var addr uint16
	if len(args) > 0 {
		a, err := parseAddr(args[0])
		if err != nil {
			return err
		}
		addr = a
	} else {
		st, err := d.client.GetCPUState(d.ctx)
		if err != nil {
			return err
		}
		addr = st.PC
	}
	if len(args) > 1 {
		v, err := strconv.Atoi(args[1])
		if err != nil || v < 1 {
			return fmt.Errorf("invalid count %q", args[1])
		}
		count = v
	}
	lines, err := d.client.Disassemble(d.ctx, addr, count)
	if err != nil {
		return err
	}
	for _, l := range lines {
		fmt.Fprintln(d.out, l)
	}
	return nil
}

func (d *debugger) saveFrame(path string) error {
	pix, err := d.client.GetFrame(d.ctx)
	if err != nil {
		return err
	}
	if len(pix) != ppu.Width*ppu.Height*4 {
		return fmt.Errorf("unexpected frame size %d", len(pix))
	}
	img := &image.RGBA{Pix: pix, Stride: ppu.Width * 4, Rect: image.Rect(0, 0, ppu.Width, ppu.Height)}
	if err := screenshot.Save(path, img, 2); err != nil {
		return err
	}
	fmt.Fprintf(d.out, "Frame saved to %s\n", path)
	return nil
}

func printHexDump(w io.Writer, startAddr uint16, data []byte) {
	for i := 0; i < len(data); i += 16 {
		fmt.Fprintf(w, "%04X:", startAddr+uint16(i))
		end := min(i+16, len(data))
		for j := i; j < end; j++ {
			fmt.Fprintf(w, " %02X", data[j])
		}
		fmt.Fprintln(w)
	}
}
