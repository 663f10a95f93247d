// Package console wraps the machine for callers on other goroutines: the
// window, the audio player and the debugger service all go through a
// Console rather than touching the bus directly.
package console

import (
	"errors"
	"fmt"
	"image"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/scottjcrouch/ScootNES/bus"
	"github.com/scottjcrouch/ScootNES/cartridge"
	"github.com/scottjcrouch/ScootNES/cpu"
)

// CPUState is a snapshot of the processor registers.
type CPUState struct {
	A, X, Y, SP, P byte
	PC             uint16
	Cycles         uint64
	Halted         bool
}

// Console serialises access to a bus.
type Console struct {
	mu  sync.Mutex
	bus *bus.Bus

	romPath string
	paused  bool
	steps   int
	halted  bool
	verbose bool

	local  [2][8]bool
	remote [2][8]bool
}

// New creates a Console around b.
func New(b *bus.Bus) *Console {
	return &Console{bus: b}
}

// SetVerbose enables logging of every frame stepped while paused.
func (c *Console) SetVerbose(v bool) {
	c.mu.Lock()
	c.verbose = v
	c.mu.Unlock()
}

// LoadROM loads the cartridge at path and resets the machine. On error
// the current cartridge stays in place. Battery-backed save RAM of the
// outgoing cartridge is written out, and that of the new one read in.
func (c *Console) LoadROM(path string) error {
	cart, err := cartridge.New(path)
	if err != nil {
		return fmt.Errorf("loading %s: %w", path, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.flushSaveRAM(); err != nil {
		log.Printf("console: %v", err)
	}
	if cart.Header.Battery {
		if err := readSaveRAM(cart, savePath(path)); err != nil {
			log.Printf("console: %v", err)
		}
	}
	c.bus.LoadCartridge(cart)
	c.romPath = path
	c.halted = false
	log.Printf("console: loaded %s (mapper %d, %s mirroring)", filepath.Base(path), cart.Header.Mapper, cart.Header.Mirroring)
	return nil
}

// ROMPath returns the path of the loaded cartridge.
func (c *Console) ROMPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.romPath
}

// Close writes out battery-backed save RAM.
func (c *Console) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.flushSaveRAM()
}

func savePath(rom string) string {
	return strings.TrimSuffix(rom, filepath.Ext(rom)) + ".sav"
}

func readSaveRAM(cart *cartridge.Cartridge, path string) error {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	defer f.Close()
	return cart.ReadSaveRAM(f)
}

func (c *Console) flushSaveRAM() error {
	cart := c.bus.Cartridge()
	if cart == nil || !cart.Header.Battery {
		return nil
	}
	f, err := os.Create(savePath(c.romPath))
	if err != nil {
		return err
	}
	if err := cart.WriteSaveRAM(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// HasCartridge reports whether a cartridge is loaded.
func (c *Console) HasCartridge() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.HasCartridge()
}

// Reset presses the reset button.
func (c *Console) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bus.Reset()
	c.halted = false
}

// SetPaused pauses or resumes emulation. Pending steps are dropped on
// resume.
func (c *Console) SetPaused(paused bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.paused = paused
	if !paused {
		c.steps = 0
	}
}

// Paused reports whether emulation is paused.
func (c *Console) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// RequestStep queues one instruction to run on the next frame while
// paused.
func (c *Console) RequestStep() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.steps++
}

// Step runs one instruction immediately.
func (c *Console) Step() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.step()
}

func (c *Console) step() {
	if !c.bus.HasCartridge() {
		return
	}
	c.applyInput()
	c.bus.StepInstruction()
	if c.verbose {
		s := c.cpuState()
		log.Printf("console: step PC:%04X A:%02X X:%02X Y:%02X P:%02X SP:%02X", s.PC, s.A, s.X, s.Y, s.P, s.SP)
	}
	c.checkHalt()
}

// SetButtons sets the buttons held locally on controller player (0 or 1).
func (c *Console) SetButtons(player int, buttons [8]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.local[player&1] = buttons
}

// SetRemoteButtons sets the buttons held over the network on controller
// player. They are combined with the local buttons.
func (c *Console) SetRemoteButtons(player int, buttons [8]bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.remote[player&1] = buttons
}

// Buttons returns the combined input applied to controller player.
func (c *Console) Buttons(player int) [8]bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.buttons(player & 1)
}

func (c *Console) buttons(player int) [8]bool {
	var b [8]bool
	for i := range b {
		b[i] = c.local[player][i] || c.remote[player][i]
	}
	return b
}

func (c *Console) applyInput() {
	c.bus.SetController1State(c.buttons(0))
	c.bus.SetController2State(c.buttons(1))
}

// RunFrame runs one video frame, or the queued steps while paused. It
// reports whether a frame was completed.
func (c *Console) RunFrame() bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.bus.HasCartridge() {
		return false
	}
	if c.paused {
		for ; c.steps > 0; c.steps-- {
			c.step()
		}
		return false
	}
	c.applyInput()
	c.bus.RunFrame()
	c.checkHalt()
	return true
}

func (c *Console) checkHalt() {
	if c.bus.CPU.Halted() && !c.halted {
		c.halted = true
		log.Printf("console: CPU halted on opcode %02X at %04X", c.bus.CPU.Opcode(), c.bus.CPU.PC)
	}
}

// GetCPUState returns the processor registers.
func (c *Console) GetCPUState() CPUState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cpuState()
}

func (c *Console) cpuState() CPUState {
	p := c.bus.CPU
	return CPUState{
		A: p.A, X: p.X, Y: p.Y, SP: p.SP, P: p.P,
		PC:     p.PC,
		Cycles: p.Cycles(),
		Halted: p.Halted(),
	}
}

// Read returns the byte at addr without side effects.
func (c *Console) Read(addr uint16) byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.Peek(addr)
}

// GetMemoryBlock returns size bytes starting at addr, wrapping at the top
// of the address space. Device ports read as open bus.
func (c *Console) GetMemoryBlock(addr uint16, size int) []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	block := make([]byte, size)
	for i := range block {
		block[i] = c.bus.Peek(addr + uint16(i))
	}
	return block
}

// Disassemble decodes count instructions starting at addr.
func (c *Console) Disassemble(addr uint16, count int) []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	lines := make([]string, 0, count)
	for i := 0; i < count; i++ {
		text, size := cpu.Disassemble(c.bus, addr)
		lines = append(lines, fmt.Sprintf("%04X  %s", addr, text))
		addr += uint16(size)
	}
	return lines
}

// Frame returns a copy of the last completed frame.
func (c *Console) Frame() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.PPU.GetFrame()
}

// GetFramePixels returns the last completed frame as packed RGBA bytes.
func (c *Console) GetFramePixels() []byte {
	return c.Frame().Pix
}

// PatternTable renders pattern table i with palette pal.
func (c *Console) PatternTable(i int, pal byte) *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.PPU.PatternTable(i, pal)
}

// ReadSamples drains audio into p. The sample buffer has its own lock so
// the audio goroutine does not wait on a running frame.
func (c *Console) ReadSamples(p []byte) (int, error) {
	return c.bus.APU.ReadSamples(p)
}

// SampleRate returns the audio output rate.
func (c *Console) SampleRate() int {
	return c.bus.APU.SampleRate()
}

// SaveState writes a snapshot of the machine to filename.
func (c *Console) SaveState(filename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.bus.SaveState(filename)
}

// LoadState restores the machine from filename.
func (c *Console) LoadState(filename string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.bus.LoadState(filename); err != nil {
		return err
	}
	c.halted = c.bus.CPU.Halted()
	return nil
}
