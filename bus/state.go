package bus

import (
	"encoding/gob"
	"errors"
	"io"
	"os"

	"github.com/scottjcrouch/ScootNES/apu"
	"github.com/scottjcrouch/ScootNES/cartridge"
	"github.com/scottjcrouch/ScootNES/controller"
	"github.com/scottjcrouch/ScootNES/cpu"
	"github.com/scottjcrouch/ScootNES/ppu"
)

// ErrNoCartridge is returned when saving or loading state with nothing
// in the slot.
var ErrNoCartridge = errors.New("no cartridge loaded")

// State is a whole-machine snapshot.
type State struct {
	Ram          [2048]byte
	OpenBus      byte
	SystemClocks uint64
	CPU          cpu.State
	PPU          ppu.State
	APU          apu.State
	Controller1  controller.State
	Controller2  controller.State
	Cartridge    cartridge.State
}

// Snapshot captures the machine state.
func (b *Bus) Snapshot() (State, error) {
	if b.cart == nil {
		return State{}, ErrNoCartridge
	}
	return State{
		Ram:          b.ram,
		OpenBus:      b.openBus,
		SystemClocks: b.SystemClocks,
		CPU:          b.CPU.SaveState(),
		PPU:          b.PPU.SaveState(),
		APU:          b.APU.SaveState(),
		Controller1:  b.Controller1.SaveState(),
		Controller2:  b.Controller2.SaveState(),
		Cartridge:    b.cart.SaveState(),
	}, nil
}

// Restore applies a snapshot. A snapshot taken with a different board
// type is rejected before anything is changed.
func (b *Bus) Restore(s State) error {
	if b.cart == nil {
		return ErrNoCartridge
	}
	if err := b.cart.LoadState(s.Cartridge); err != nil {
		return err
	}
	b.ram = s.Ram
	b.openBus = s.OpenBus
	b.SystemClocks = s.SystemClocks
	b.CPU.LoadState(s.CPU)
	b.PPU.LoadState(s.PPU)
	b.APU.LoadState(s.APU)
	b.Controller1.LoadState(s.Controller1)
	b.Controller2.LoadState(s.Controller2)
	return nil
}

// WriteState gob-encodes the machine state to w.
func (b *Bus) WriteState(w io.Writer) error {
	s, err := b.Snapshot()
	if err != nil {
		return err
	}
	return gob.NewEncoder(w).Encode(s)
}

// ReadState decodes a gob-encoded snapshot from r and applies it.
func (b *Bus) ReadState(r io.Reader) error {
	var s State
	if err := gob.NewDecoder(r).Decode(&s); err != nil {
		return err
	}
	return b.Restore(s)
}

// SaveState saves the entire emulator state to a file.
func (b *Bus) SaveState(filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	if err := b.WriteState(file); err != nil {
		file.Close()
		return err
	}
	return file.Close()
}

// LoadState loads the emulator state from a file.
func (b *Bus) LoadState(filename string) error {
	file, err := os.Open(filename)
	if err != nil {
		return err
	}
	defer file.Close()
	return b.ReadState(file)
}
