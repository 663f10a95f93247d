package mapper

import (
	"errors"
	"fmt"
)

// Mirroring selects how the four logical nametables map onto the
// console's two physical 1KB banks.
type Mirroring byte

// Mirroring modes
const (
	Horizontal Mirroring = iota
	Vertical
	SingleLower
	SingleUpper
	FourScreen
)

func (m Mirroring) String() string {
	switch m {
	case Horizontal:
		return "horizontal"
	case Vertical:
		return "vertical"
	case SingleLower:
		return "single-lower"
	case SingleUpper:
		return "single-upper"
	case FourScreen:
		return "four-screen"
	}
	return fmt.Sprintf("Mirroring(%d)", byte(m))
}

// ErrUnsupported is returned by New for board numbers without an
// implementation.
var ErrUnsupported = errors.New("unsupported mapper")

// Bank sizes used by the boards in this package.
const (
	PRGBankSize = 0x4000
	CHRBankSize = 0x2000
	RAMBankSize = 0x2000
)

// Memory is the set of byte stores a board translates addresses into.
type Memory struct {
	PRG       []byte
	CHR       []byte
	RAM       []byte
	CHRIsRAM  bool
	Mirroring Mirroring
}

// prg, chr and ram take every offset modulo the store size so a bank
// register can never index outside its store.

func (m *Memory) prg(offset int) byte {
	return m.PRG[offset%len(m.PRG)]
}

func (m *Memory) chr(offset int) byte {
	return m.CHR[offset%len(m.CHR)]
}

func (m *Memory) setCHR(offset int, data byte) {
	if m.CHRIsRAM {
		m.CHR[offset%len(m.CHR)] = data
	}
}

func (m *Memory) ram(addr uint16) byte {
	return m.RAM[int(addr-0x6000)%len(m.RAM)]
}

func (m *Memory) setRAM(addr uint16, data byte) {
	m.RAM[int(addr-0x6000)%len(m.RAM)] = data
}

// Mapper is a cartridge board. The set of boards is closed: only the
// types in this package implement it.
type Mapper interface {
	// ReadPRG reads CPU space 0x4020-0xFFFF. A false return means the
	// board did not drive the bus.
	ReadPRG(addr uint16) (byte, bool)
	// WritePRG handles save RAM stores and bank register writes.
	WritePRG(addr uint16, data byte)
	// ReadCHR reads PPU pattern space 0x0000-0x1FFF.
	ReadCHR(addr uint16) byte
	// WriteCHR stores into pattern RAM; ignored for ROM boards.
	WriteCHR(addr uint16, data byte)
	Mirroring() Mirroring
	ID() byte

	// Save and Load serialise the board's registers for save states.
	Save() []byte
	Load(data []byte) error

	board()
}

// ScanlineCounter is implemented by boards that count rendered
// scanlines and raise an IRQ, such as MMC3.
type ScanlineCounter interface {
	Scanline()
	IRQ() bool
}

// New builds the board numbered id over mem. Missing pattern or save
// stores are allocated as RAM.
func New(id byte, mem *Memory) (Mapper, error) {
	if len(mem.PRG) == 0 {
		return nil, fmt.Errorf("mapper %d: empty program store", id)
	}
	if len(mem.CHR) == 0 {
		mem.CHR = make([]byte, CHRBankSize)
		mem.CHRIsRAM = true
	}
	if len(mem.RAM) == 0 {
		mem.RAM = make([]byte, RAMBankSize)
	}

	switch id {
	case 0:
		return newNROM(mem), nil
	case 1:
		return newMMC1(mem), nil
	case 2:
		return newUxROM(mem), nil
	case 3:
		return newCNROM(mem), nil
	case 4:
		return newMMC3(mem), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnsupported, id)
}
