package cartridge

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/scottjcrouch/ScootNES/mapper"
)

// Load errors. Callers test them with errors.Is.
var (
	ErrInvalidContainer  = errors.New("invalid iNES container")
	ErrUnsupportedMapper = mapper.ErrUnsupported
	ErrTruncated         = errors.New("truncated iNES image")
)

const (
	headerSize  = 16
	trainerSize = 512
)

// Header is the decoded 16-byte iNES header.
type Header struct {
	PRGBanks  int // 16KB units
	CHRBanks  int // 8KB units, 0 means pattern RAM
	RAMBanks  int // 8KB units, never 0 once parsed
	Mapper    byte
	Mirroring mapper.Mirroring
	Battery   bool
	Trainer   bool
}

// ParseHeader decodes the iNES header at the start of b.
func ParseHeader(b []byte) (Header, error) {
	if len(b) < headerSize {
		return Header{}, fmt.Errorf("%w: %d byte header", ErrInvalidContainer, len(b))
	}
	if b[0] != 'N' || b[1] != 'E' || b[2] != 'S' || b[3] != 0x1A {
		return Header{}, fmt.Errorf("%w: missing signature", ErrInvalidContainer)
	}

	h := Header{
		PRGBanks: int(b[4]),
		CHRBanks: int(b[5]),
		RAMBanks: int(b[8]),
		Mapper:   (b[6] >> 4) | (b[7] & 0xF0),
		Battery:  b[6]&0x02 != 0,
		Trainer:  b[6]&0x04 != 0,
	}
	if h.PRGBanks == 0 {
		return Header{}, fmt.Errorf("%w: no program banks", ErrInvalidContainer)
	}
	if h.RAMBanks == 0 {
		h.RAMBanks = 1
	}

	switch {
	case b[6]&0x08 != 0:
		h.Mirroring = mapper.FourScreen
	case b[6]&0x01 != 0:
		h.Mirroring = mapper.Vertical
	default:
		h.Mirroring = mapper.Horizontal
	}
	return h, nil
}

// Cartridge is a loaded game: its header, its byte stores and the board
// that translates addresses into them.
type Cartridge struct {
	mapper.Mapper

	Header Header
	mem    *mapper.Memory
}

// New loads the iNES image at path.
func New(path string) (*Cartridge, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads an iNES image from r.
func Load(r io.Reader) (*Cartridge, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return FromBytes(data)
}

// FromBytes builds a cartridge from an in-memory iNES image. Nothing is
// returned unless the whole image is valid.
func FromBytes(data []byte) (*Cartridge, error) {
	h, err := ParseHeader(data)
	if err != nil {
		return nil, err
	}

	offset := headerSize
	if h.Trainer {
		offset += trainerSize
	}
	prgSize := h.PRGBanks * mapper.PRGBankSize
	chrSize := h.CHRBanks * mapper.CHRBankSize
	if need := offset + prgSize + chrSize; len(data) < need {
		return nil, fmt.Errorf("%w: have %d bytes, header declares %d", ErrTruncated, len(data), need)
	}

	mem := &mapper.Memory{
		PRG:       make([]byte, prgSize),
		RAM:       make([]byte, h.RAMBanks*mapper.RAMBankSize),
		Mirroring: h.Mirroring,
	}
	copy(mem.PRG, data[offset:offset+prgSize])
	offset += prgSize

	if chrSize > 0 {
		mem.CHR = make([]byte, chrSize)
		copy(mem.CHR, data[offset:offset+chrSize])
	} else {
		mem.CHR = make([]byte, mapper.CHRBankSize)
		mem.CHRIsRAM = true
	}

	m, err := mapper.New(h.Mapper, mem)
	if err != nil {
		return nil, err
	}
	return &Cartridge{Mapper: m, Header: h, mem: mem}, nil
}

// CHRIsRAM reports whether pattern memory is writable.
func (c *Cartridge) CHRIsRAM() bool {
	return c.mem.CHRIsRAM
}

// SaveRAM returns a copy of the 0x6000-0x7FFF store.
func (c *Cartridge) SaveRAM() []byte {
	return append([]byte(nil), c.mem.RAM...)
}

// WriteSaveRAM writes the save RAM to w, typically a battery .sav file.
func (c *Cartridge) WriteSaveRAM(w io.Writer) error {
	_, err := w.Write(c.mem.RAM)
	return err
}

// ReadSaveRAM fills the save RAM from r. Short input leaves the
// remaining bytes untouched.
func (c *Cartridge) ReadSaveRAM(r io.Reader) error {
	var buf bytes.Buffer
	if _, err := io.CopyN(&buf, r, int64(len(c.mem.RAM))); err != nil && err != io.EOF {
		return err
	}
	copy(c.mem.RAM, buf.Bytes())
	return nil
}
