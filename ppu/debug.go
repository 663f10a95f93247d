package ppu

import (
	"image"
	"image/color"
)

// Peek reads PPU address space without touching the read buffer or any
// register.
func (p *PPU) Peek(addr uint16) byte {
	return p.read(addr)
}

// PeekOAM returns a copy of object attribute memory.
func (p *PPU) PeekOAM() [256]byte {
	return p.oam
}

// PatternTable renders pattern table i (0 or 1) as a 128x128 image of
// 16x16 tiles, coloured with palette pal (0-7).
func (p *PPU) PatternTable(i int, pal byte) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 128, 128))
	table := uint16(i&1) * 0x1000
	for tileY := 0; tileY < 16; tileY++ {
		for tileX := 0; tileX < 16; tileX++ {
			tile := byte(tileY*16 + tileX)
			for row := 0; row < 8; row++ {
				for col := 0; col < 8; col++ {
					bits := p.patternBits(table, tile, row, col)
					// Index 0 is drawn black so the tiles stand out.
					c := color.RGBA{0, 0, 0, 0xFF}
					if bits != 0 {
						c = SystemPalette[p.colour((pal&7)<<2|bits)]
					}
					img.SetRGBA(tileX*8+col, tileY*8+row, c)
				}
			}
		}
	}
	return img
}
