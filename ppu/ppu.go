package ppu

import (
	"github.com/scottjcrouch/ScootNES/mapper"
)

// Frame geometry and timing
const (
	Width  = 256
	Height = 240

	DotsPerLine   = 341
	LinesPerFrame = 262

	vblankLine    = 241
	preRenderLine = 261

	// counterDot is where the scanline counter of boards such as MMC3
	// sees the sprite pattern fetches begin.
	counterDot = 260
)

// Control register bits
const (
	ctrlIncrement32   = 0x04
	ctrlSpriteTable   = 0x08
	ctrlBackgroundTbl = 0x10
	ctrlSprite16      = 0x20
	ctrlNMI           = 0x80
)

// Mask register bits
const (
	maskGreyscale      = 0x01
	maskBackgroundLeft = 0x02
	maskSpritesLeft    = 0x04
	maskBackground     = 0x08
	maskSprites        = 0x10
)

// Status register bits
const (
	statusOverflow = 0x20
	statusHit      = 0x40
	statusVBlank   = 0x80
)

// Cartridge is the pattern side of PPU address space.
type Cartridge interface {
	ReadCHR(addr uint16) byte
	WriteCHR(addr uint16, data byte)
	Mirroring() mapper.Mirroring
}

// sprite is one OAM entry found to cover the current scanline.
type sprite struct {
	x, y int
	tile byte
	attr byte
}

// PPU represents the Picture Processing Unit.
type PPU struct {
	cart    Cartridge
	counter mapper.ScanlineCounter

	// NMI is raised on vblank entry when enabled. The bus forwards it to
	// the CPU and clears it.
	NMI bool

	ctrl byte
	mask byte

	vblank         bool
	spriteZeroHit  bool
	spriteOverflow bool
	hitLatch       bool
	hitDot         int // dot of the pending sprite-zero hit on this line, or 0

	oamAddr byte
	oam     [256]byte
	vram    [4096]byte
	palette [32]byte

	v      uint16 // current VRAM address
	t      uint16 // temporary VRAM address, holds the scroll
	fineX  byte
	w      bool // write-twice latch shared by SCROLL and ADDR
	buffer byte // DATA read-ahead
	latch  byte // last value written to any register

	scrollY int // vertical scroll, latched on the pre-render line

	scanline int
	dot      int
	frame    uint64
	oddFrame bool

	lineSprites [64]sprite
	back        [Width * Height]byte
	front       [Width * Height]byte
}

// New creates a new PPU instance.
func New() *PPU {
	return &PPU{}
}

// ConnectCartridge attaches the pattern memory and mirroring source.
func (p *PPU) ConnectCartridge(cart Cartridge) {
	p.cart = cart
}

// ConnectCounter attaches the scanline counter of boards that have one.
// A nil counter detaches it.
func (p *PPU) ConnectCounter(sc mapper.ScanlineCounter) {
	p.counter = sc
}

// Reset returns the registers and timing to their power-on state. OAM,
// nametable and palette memory are left as they are.
func (p *PPU) Reset() {
	p.ctrl, p.mask = 0, 0
	p.vblank, p.spriteZeroHit, p.spriteOverflow, p.hitLatch = false, false, false, false
	p.oamAddr = 0
	p.v, p.t, p.fineX, p.w = 0, 0, 0, false
	p.buffer, p.latch = 0, 0
	p.scrollY = 0
	p.scanline, p.dot = 0, 0
	p.frame, p.oddFrame = 0, false
	p.NMI = false
}

// Scanline returns the current scanline, 0-261.
func (p *PPU) Scanline() int {
	return p.scanline
}

// Dot returns the current dot within the scanline, 0-340.
func (p *PPU) Dot() int {
	return p.dot
}

// FrameCount returns the number of completed frames.
func (p *PPU) FrameCount() uint64 {
	return p.frame
}

// InVBlank reports whether the vblank status bit is set.
func (p *PPU) InVBlank() bool {
	return p.vblank
}

func (p *PPU) rendering() bool {
	return p.mask&(maskBackground|maskSprites) != 0
}

// Clock advances the PPU by one dot.
func (p *PPU) Clock() {
	switch {
	case p.scanline < Height:
		if p.dot == 1 {
			p.hitDot = p.spriteZeroDot(p.scanline)
		}
		if p.hitDot != 0 && p.dot == p.hitDot {
			p.spriteZeroHit = true
			p.hitLatch = true
			p.hitDot = 0
		}
		if p.dot == Width {
			p.renderLine()
		}
		if p.dot == counterDot && p.rendering() {
			p.clockCounter()
		}

	case p.scanline == vblankLine:
		if p.dot == 1 {
			p.front = p.back
			p.vblank = true
			if p.ctrl&ctrlNMI != 0 {
				p.NMI = true
			}
		}

	case p.scanline == preRenderLine:
		switch p.dot {
		case 1:
			p.vblank = false
			p.spriteZeroHit = false
			p.spriteOverflow = false
			p.hitLatch = false
			p.hitDot = 0
		case counterDot:
			if p.rendering() {
				p.clockCounter()
			}
		case 304:
			p.scrollY = p.latchedScrollY()
		}
	}

	p.dot++
	if p.scanline == preRenderLine && p.dot == DotsPerLine-1 && p.oddFrame && p.rendering() {
		p.dot++
	}
	if p.dot == DotsPerLine {
		p.dot = 0
		p.scanline++
		if p.scanline == LinesPerFrame {
			p.scanline = 0
			p.frame++
			p.oddFrame = !p.oddFrame
		}
	}
}

func (p *PPU) clockCounter() {
	if p.counter != nil {
		p.counter.Scanline()
	}
}

// scrollX is the horizontal origin on the 512x480 background plane.
func (p *PPU) scrollX() int {
	x := int(p.t&0x1F)<<3 | int(p.fineX)
	if p.t&0x0400 != 0 {
		x += Width
	}
	return x
}

func (p *PPU) latchedScrollY() int {
	y := int(p.t>>5&0x1F)<<3 | int(p.t>>12&0x07)
	if p.t&0x0800 != 0 {
		y += Height
	}
	return y
}

// ReadRegister reads one of the eight CPU-visible ports. Write-only
// ports are handled by the bus and read here as the I/O latch.
func (p *PPU) ReadRegister(reg uint16) byte {
	switch reg & 7 {
	case 2:
		status := p.latch & 0x1F
		if p.spriteOverflow {
			status |= statusOverflow
		}
		if p.spriteZeroHit {
			status |= statusHit
		}
		if p.vblank {
			status |= statusVBlank
		}
		p.vblank = false
		p.w = false
		p.latch = status
		return status
	case 4:
		p.latch = p.oam[p.oamAddr]
		return p.latch
	case 7:
		addr := p.v & 0x3FFF
		var data byte
		if addr < 0x3F00 {
			data = p.buffer
			p.buffer = p.read(addr)
		} else {
			data = p.read(addr)
			p.buffer = p.read(addr - 0x1000)
		}
		p.increment()
		p.latch = data
		return data
	}
	return p.latch
}

// WriteRegister writes one of the eight CPU-visible ports.
func (p *PPU) WriteRegister(reg uint16, data byte) {
	p.latch = data
	switch reg & 7 {
	case 0:
		wasEnabled := p.ctrl&ctrlNMI != 0
		p.ctrl = data
		p.t = p.t&0xF3FF | uint16(data&0x03)<<10
		if !wasEnabled && data&ctrlNMI != 0 && p.vblank {
			p.NMI = true
		}
	case 1:
		p.mask = data
	case 3:
		p.oamAddr = data
	case 4:
		p.WriteOAM(data)
	case 5:
		if !p.w {
			p.t = p.t&0xFFE0 | uint16(data>>3)
			p.fineX = data & 0x07
		} else {
			p.t = p.t&0x8C1F | uint16(data&0x07)<<12 | uint16(data&0xF8)<<2
		}
		p.w = !p.w
	case 6:
		if !p.w {
			p.t = p.t&0x80FF | uint16(data&0x3F)<<8
		} else {
			p.t = p.t&0xFF00 | uint16(data)
			p.v = p.t
		}
		p.w = !p.w
	case 7:
		p.write(p.v&0x3FFF, data)
		p.increment()
	}
}

// WriteOAM stores one byte at OAMADDR and advances it, as OAMDATA
// writes and OAM DMA do.
func (p *PPU) WriteOAM(data byte) {
	p.oam[p.oamAddr] = data
	p.oamAddr++
}

func (p *PPU) increment() {
	if p.ctrl&ctrlIncrement32 != 0 {
		p.v += 32
	} else {
		p.v++
	}
	p.v &= 0x7FFF
}

func (p *PPU) read(addr uint16) byte {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if p.cart == nil {
			return 0
		}
		return p.cart.ReadCHR(addr)
	case addr < 0x3F00:
		return p.vram[p.nametableIndex(addr)]
	}
	return p.palette[paletteIndex(addr)]
}

func (p *PPU) write(addr uint16, data byte) {
	addr &= 0x3FFF
	switch {
	case addr < 0x2000:
		if p.cart != nil {
			p.cart.WriteCHR(addr, data)
		}
	case addr < 0x3F00:
		p.vram[p.nametableIndex(addr)] = data
	default:
		i := paletteIndex(addr)
		if i&0x03 == 0 {
			// backdrop slots are one colour
			for j := 0; j < len(p.palette); j += 4 {
				p.palette[j] = data
			}
			return
		}
		p.palette[i] = data
	}
}

// nametableIndex maps 0x2000-0x3EFF onto vram according to the
// cartridge's mirroring mode.
func (p *PPU) nametableIndex(addr uint16) int {
	table := int(addr-0x2000) / 0x400 & 3
	offset := int(addr & 0x03FF)

	mode := mapper.Horizontal
	if p.cart != nil {
		mode = p.cart.Mirroring()
	}
	var bank int
	switch mode {
	case mapper.Horizontal:
		bank = table >> 1
	case mapper.Vertical:
		bank = table & 1
	case mapper.SingleLower:
		bank = 0
	case mapper.SingleUpper:
		bank = 1
	case mapper.FourScreen:
		bank = table
	}
	return bank*0x400 + offset
}

// paletteIndex folds 0x3F10/14/18/1C onto their backdrop aliases.
func paletteIndex(addr uint16) int {
	i := int(addr & 0x1F)
	if i&0x13 == 0x10 {
		i &^= 0x10
	}
	return i
}
