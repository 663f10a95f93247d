package ppu

// renderLine resolves all 256 pixels of the current scanline into the
// back buffer as system colour indices, using the palette and greyscale
// mask in effect now.
func (p *PPU) renderLine() {
	line := p.scanline
	row := p.back[line*Width : (line+1)*Width]
	if !p.rendering() {
		backdrop := p.colour(0)
		for x := range row {
			row[x] = backdrop
		}
		return
	}

	sprites := p.evaluateSprites(line)
	originX := p.scrollX()
	for x := 0; x < Width; x++ {
		bg := p.backgroundPixel(originX+x, p.scrollY+line)
		if p.mask&maskBackground == 0 || (x < 8 && p.mask&maskBackgroundLeft == 0) {
			bg = 0
		}

		var spr byte
		var behind bool
		if p.mask&maskSprites != 0 && (x >= 8 || p.mask&maskSpritesLeft != 0) {
			spr, behind = p.spritePixel(sprites, x, line)
		}

		switch {
		case spr&0x03 != 0 && (!behind || bg&0x03 == 0):
			row[x] = p.colour(spr)
		case bg&0x03 != 0:
			row[x] = p.colour(bg)
		default:
			row[x] = p.colour(0)
		}
	}
}

// spriteZeroDot finds the first pixel of line where an opaque sprite 0
// overlaps opaque background and returns the dot that outputs it, or 0
// when there is no hit.
func (p *PPU) spriteZeroDot(line int) int {
	if p.hitLatch || p.mask&maskBackground == 0 || p.mask&maskSprites == 0 {
		return 0
	}
	y := int(p.oam[0]) + 1
	if line < y || line >= y+p.spriteHeight() {
		return 0
	}
	s := [1]sprite{{x: int(p.oam[3]), y: y, tile: p.oam[1], attr: p.oam[2]}}
	originX := p.scrollX()
	for x := s[0].x; x < s[0].x+8 && x < Width-1; x++ {
		if x < 8 && p.mask&(maskBackgroundLeft|maskSpritesLeft) != maskBackgroundLeft|maskSpritesLeft {
			continue
		}
		if spr, _ := p.spritePixel(s[:], x, line); spr&0x03 == 0 {
			continue
		}
		if p.backgroundPixel(originX+x, p.scrollY+line)&0x03 != 0 {
			return x + 1
		}
	}
	return 0
}

// backgroundPixel returns the palette RAM index of the background at
// plane coordinates (px, py); the low two bits are zero when the pixel
// is transparent.
func (p *PPU) backgroundPixel(px, py int) byte {
	px %= 2 * Width
	py %= 2 * Height

	table := px/Width + 2*(py/Height)
	tx, ty := px%Width/8, py%Height/8
	base := 0x2000 + uint16(table)*0x400

	tile := p.read(base + uint16(ty*32+tx))
	attr := p.read(base + 0x3C0 + uint16(ty/4*8+tx/4))
	shift := (ty%4/2)*4 + (tx%4/2)*2
	palette := attr >> shift & 0x03

	bits := p.patternBits(p.backgroundTable(), tile, py%8, px%8)
	if bits == 0 {
		return 0
	}
	return palette<<2 | bits
}

func (p *PPU) backgroundTable() uint16 {
	if p.ctrl&ctrlBackgroundTbl != 0 {
		return 0x1000
	}
	return 0
}

func (p *PPU) spriteHeight() int {
	if p.ctrl&ctrlSprite16 != 0 {
		return 16
	}
	return 8
}

// evaluateSprites collects the OAM entries covering line, in OAM order.
func (p *PPU) evaluateSprites(line int) []sprite {
	height := p.spriteHeight()
	n := 0
	for i := 0; i < 64; i++ {
		e := p.oam[i*4 : i*4+4]
		y := int(e[0]) + 1
		if line < y || line >= y+height {
			continue
		}
		p.lineSprites[n] = sprite{x: int(e[3]), y: y, tile: e[1], attr: e[2]}
		n++
	}
	if n > 8 {
		p.spriteOverflow = true
	}
	return p.lineSprites[:n]
}

// spritePixel finds the first sprite with an opaque pixel at x. It
// returns the palette RAM index and whether the sprite sits behind the
// background.
func (p *PPU) spritePixel(sprites []sprite, x, line int) (byte, bool) {
	height := p.spriteHeight()
	for _, s := range sprites {
		col := x - s.x
		if col < 0 || col > 7 {
			continue
		}
		row := line - s.y
		if s.attr&0x80 != 0 {
			row = height - 1 - row
		}
		if s.attr&0x40 != 0 {
			col = 7 - col
		}

		table := uint16(0)
		tile := s.tile
		if height == 16 {
			table = uint16(tile&1) * 0x1000
			tile &^= 1
			if row >= 8 {
				tile++
				row -= 8
			}
		} else if p.ctrl&ctrlSpriteTable != 0 {
			table = 0x1000
		}

		bits := p.patternBits(table, tile, row, col)
		if bits == 0 {
			continue
		}
		return 0x10 | (s.attr&0x03)<<2 | bits, s.attr&0x20 != 0
	}
	return 0, false
}

// patternBits returns the two-bit colour of one pixel of a tile.
func (p *PPU) patternBits(table uint16, tile byte, row, col int) byte {
	addr := table + uint16(tile)*16 + uint16(row)
	lo := p.read(addr)
	hi := p.read(addr + 8)
	shift := 7 - col
	return (lo>>shift)&1 | (hi>>shift&1)<<1
}
