package ppu

import (
	"image"
	"image/color"
)

// SystemPalette is the fixed table the 6-bit colour indices in palette
// RAM resolve through.
var SystemPalette = [64]color.RGBA{
	rgb(0x757575), rgb(0x271B8F), rgb(0x0000AB), rgb(0x47009F), rgb(0x8F0077), rgb(0xAB0013), rgb(0xA70000), rgb(0x7F0B00),
	rgb(0x432F00), rgb(0x004700), rgb(0x005100), rgb(0x003F17), rgb(0x1B3F5F), rgb(0x000000), rgb(0x000000), rgb(0x000000),
	rgb(0xBCBCBC), rgb(0x0073EF), rgb(0x233BEF), rgb(0x8300F3), rgb(0xBF00BF), rgb(0xE7005B), rgb(0xDB2B00), rgb(0xCB4F0F),
	rgb(0x8B7300), rgb(0x009700), rgb(0x00AB00), rgb(0x00933B), rgb(0x00838B), rgb(0x000000), rgb(0x000000), rgb(0x000000),
	rgb(0xFFFFFF), rgb(0x3FBFFF), rgb(0x5F97FF), rgb(0xA78BFD), rgb(0xF77BFF), rgb(0xFF77B7), rgb(0xFF7763), rgb(0xFF9B3B),
	rgb(0xF3BF3F), rgb(0x83D313), rgb(0x4FDF4B), rgb(0x58F898), rgb(0x00EBDB), rgb(0x444444), rgb(0x000000), rgb(0x000000),
	rgb(0xFFFFFF), rgb(0xABE7FF), rgb(0xC7D7FF), rgb(0xD7CBFF), rgb(0xFFC7FF), rgb(0xFFC7DB), rgb(0xFFBFB3), rgb(0xFFDBAB),
	rgb(0xFFE7A3), rgb(0xE3FFA3), rgb(0xABF3BF), rgb(0xB3FFCF), rgb(0x9FFFF3), rgb(0xAAAAAA), rgb(0x000000), rgb(0x000000),
}

func rgb(v uint32) color.RGBA {
	return color.RGBA{byte(v >> 16), byte(v >> 8), byte(v), 0xFF}
}

// colour resolves a palette RAM index to a system colour index.
func (p *PPU) colour(i byte) byte {
	c := p.palette[paletteIndex(0x3F00+uint16(i))] & 0x3F
	if p.mask&maskGreyscale != 0 {
		c &= 0x30
	}
	return c
}

// Frame returns the last completed frame as 256x240 packed 0xAARRGGBB
// values.
func (p *PPU) Frame() []uint32 {
	out := make([]uint32, Width*Height)
	for i, idx := range p.front {
		c := SystemPalette[idx&0x3F]
		out[i] = 0xFF000000 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
	}
	return out
}

// GetFrame returns the last completed frame as an image.
func (p *PPU) GetFrame() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	for i, idx := range p.front {
		c := SystemPalette[idx&0x3F]
		img.Pix[i*4] = c.R
		img.Pix[i*4+1] = c.G
		img.Pix[i*4+2] = c.B
		img.Pix[i*4+3] = 0xFF
	}
	return img
}
