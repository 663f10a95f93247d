package ppu

import (
	"image/color"
	"testing"

	"github.com/scottjcrouch/ScootNES/mapper"
)

// mockCartridge is a flat 8KB pattern RAM with a fixed mirroring mode.
type mockCartridge struct {
	chr       [0x2000]byte
	mirroring mapper.Mirroring
}

func (m *mockCartridge) ReadCHR(addr uint16) byte        { return m.chr[addr&0x1FFF] }
func (m *mockCartridge) WriteCHR(addr uint16, data byte) { m.chr[addr&0x1FFF] = data }
func (m *mockCartridge) Mirroring() mapper.Mirroring     { return m.mirroring }

type mockCounter struct {
	ticks int
}

func (m *mockCounter) Scanline() { m.ticks++ }
func (m *mockCounter) IRQ() bool { return false }

func setupPPU(t *testing.T) (*PPU, *mockCartridge) {
	t.Helper()
	p := New()
	cart := &mockCartridge{mirroring: mapper.Vertical}
	// Tile 1 is solid colour 1.
	for row := 0; row < 8; row++ {
		cart.chr[16+row] = 0xFF
	}
	p.ConnectCartridge(cart)
	return p, cart
}

func clockUntil(p *PPU, scanline, dot int) {
	for p.scanline != scanline || p.dot != dot {
		p.Clock()
	}
}

func runFrame(p *PPU) int {
	start := p.FrameCount()
	n := 0
	for p.FrameCount() == start {
		p.Clock()
		n++
	}
	return n
}

func setAddr(p *PPU, addr uint16) {
	p.WriteRegister(6, byte(addr>>8))
	p.WriteRegister(6, byte(addr))
}

func packed(c color.RGBA) uint32 {
	return 0xFF000000 | uint32(c.R)<<16 | uint32(c.G)<<8 | uint32(c.B)
}

func TestFrameLength(t *testing.T) {
	p, _ := setupPPU(t)

	if n := runFrame(p); n != 89342 {
		t.Errorf("blank even frame: %d dots", n)
	}
	if n := runFrame(p); n != 89342 {
		t.Errorf("blank odd frame: %d dots, no dot is skipped without rendering", n)
	}

	p.WriteRegister(1, maskBackground)
	if n := runFrame(p); n != 89342 {
		t.Errorf("rendering even frame: %d dots, want 89342", n)
	}
	if n := runFrame(p); n != 89341 {
		t.Errorf("rendering odd frame: %d dots, want 89341", n)
	}
}

func TestVBlankAndNMI(t *testing.T) {
	p, _ := setupPPU(t)
	p.WriteRegister(0, ctrlNMI)

	clockUntil(p, vblankLine, 1)
	if p.InVBlank() || p.NMI {
		t.Fatal("vblank set before scanline 241 dot 1")
	}
	p.Clock()
	if !p.InVBlank() || !p.NMI {
		t.Fatal("vblank entry did not set the flag and raise NMI")
	}
	p.NMI = false

	if p.ReadRegister(2)&statusVBlank == 0 {
		t.Error("first status read should see vblank")
	}
	if p.ReadRegister(2)&statusVBlank != 0 {
		t.Error("status read should clear vblank")
	}
	for i := 0; i < 100; i++ {
		p.ReadRegister(2)
		p.Clock()
	}
	if p.NMI {
		t.Error("NMI raised twice in one vblank")
	}

	// Finish this frame, then watch three whole ones.
	nmis := 0
	for f := 0; f < 4; f++ {
		for start := p.FrameCount(); p.FrameCount() == start; {
			p.Clock()
			if p.scanline > vblankLine {
				p.ReadRegister(2)
			}
			if p.NMI {
				nmis++
				p.NMI = false
			}
		}
	}
	if nmis != 3 {
		t.Errorf("%d NMIs in 3 frames", nmis)
	}
}

func TestEnableNMIDuringVBlank(t *testing.T) {
	p, _ := setupPPU(t)
	clockUntil(p, vblankLine, 10)
	if p.NMI {
		t.Fatal("NMI raised while disabled")
	}
	p.WriteRegister(0, ctrlNMI)
	if !p.NMI {
		t.Error("enabling NMI inside vblank should raise it")
	}
}

func TestPreRenderClearsFlags(t *testing.T) {
	p, _ := setupPPU(t)
	clockUntil(p, vblankLine, 2)
	p.spriteZeroHit, p.spriteOverflow, p.hitLatch = true, true, true

	clockUntil(p, preRenderLine, 2)
	if p.vblank || p.spriteZeroHit || p.spriteOverflow || p.hitLatch {
		t.Error("pre-render line should clear vblank, hit, overflow and the latch")
	}
}

func TestStatusReadResetsLatch(t *testing.T) {
	p, _ := setupPPU(t)
	p.WriteRegister(6, 0x21)
	p.ReadRegister(2)
	setAddr(p, 0x2005)
	if p.v != 0x2005 {
		t.Errorf("v = %04X, want 2005", p.v)
	}
}

func TestDataReadBuffer(t *testing.T) {
	p, _ := setupPPU(t)
	setAddr(p, 0x2000)
	p.WriteRegister(7, 0xAA)
	p.WriteRegister(7, 0xBB)

	setAddr(p, 0x2000)
	p.ReadRegister(7) // stale buffer
	if v := p.ReadRegister(7); v != 0xAA {
		t.Errorf("second read %02X, want AA", v)
	}
	if v := p.ReadRegister(7); v != 0xBB {
		t.Errorf("third read %02X, want BB", v)
	}

	// Palette reads are immediate and refill the buffer from below.
	p.vram[p.nametableIndex(0x2F01)] = 0x5C
	setAddr(p, 0x3F01)
	p.WriteRegister(7, 0x21)
	setAddr(p, 0x3F01)
	if v := p.ReadRegister(7); v != 0x21 {
		t.Errorf("palette read %02X, want 21", v)
	}
	if p.buffer != 0x5C {
		t.Errorf("buffer = %02X, want nametable byte 5C", p.buffer)
	}
}

func TestIncrement(t *testing.T) {
	p, _ := setupPPU(t)
	setAddr(p, 0x2000)
	p.WriteRegister(7, 1)
	if p.v != 0x2001 {
		t.Errorf("v = %04X after +1 write", p.v)
	}
	p.WriteRegister(0, ctrlIncrement32)
	p.WriteRegister(7, 1)
	if p.v != 0x2021 {
		t.Errorf("v = %04X after +32 write", p.v)
	}
}

func TestMirroring(t *testing.T) {
	tests := []struct {
		mode mapper.Mirroring
		same [][2]uint16
		diff [][2]uint16
	}{
		{mapper.Horizontal, [][2]uint16{{0x2000, 0x2400}, {0x2800, 0x2C00}}, [][2]uint16{{0x2000, 0x2800}}},
		{mapper.Vertical, [][2]uint16{{0x2000, 0x2800}, {0x2400, 0x2C00}}, [][2]uint16{{0x2000, 0x2400}}},
		{mapper.SingleLower, [][2]uint16{{0x2000, 0x2400}, {0x2000, 0x2C00}}, nil},
		{mapper.SingleUpper, [][2]uint16{{0x2000, 0x2800}, {0x2400, 0x2C00}}, nil},
		{mapper.FourScreen, nil, [][2]uint16{{0x2000, 0x2400}, {0x2000, 0x2800}, {0x2400, 0x2C00}}},
	}
	for _, tc := range tests {
		t.Run(tc.mode.String(), func(t *testing.T) {
			p, cart := setupPPU(t)
			cart.mirroring = tc.mode
			for _, pair := range tc.same {
				if p.nametableIndex(pair[0]+5) != p.nametableIndex(pair[1]+5) {
					t.Errorf("%04X and %04X should share a bank", pair[0], pair[1])
				}
			}
			for _, pair := range tc.diff {
				if p.nametableIndex(pair[0]+5) == p.nametableIndex(pair[1]+5) {
					t.Errorf("%04X and %04X should not share a bank", pair[0], pair[1])
				}
			}
		})
	}

	// 0x3000-0x3EFF mirrors 0x2000-0x2EFF.
	p, _ := setupPPU(t)
	if p.nametableIndex(0x3123) != p.nametableIndex(0x2123) {
		t.Error("0x3123 should mirror 0x2123")
	}
}

func TestPaletteBackdrop(t *testing.T) {
	p, _ := setupPPU(t)
	p.write(0x3F00, 0x0F)
	for _, addr := range []uint16{0x3F04, 0x3F08, 0x3F0C, 0x3F10, 0x3F14, 0x3F18, 0x3F1C} {
		if v := p.Peek(addr); v != 0x0F {
			t.Errorf("%04X = %02X, want backdrop 0F", addr, v)
		}
	}

	p.write(0x3F10, 0x30)
	if v := p.Peek(0x3F00); v != 0x30 {
		t.Errorf("0x3F00 = %02X after writing 0x3F10", v)
	}

	p.write(0x3F05, 0x16)
	if p.Peek(0x3F01) == 0x16 || p.Peek(0x3F15) == 0x16 {
		t.Error("non-backdrop entries should not mirror")
	}
	if p.Peek(0x3F25) != 0x16 {
		t.Error("palette RAM should repeat every 32 bytes")
	}
}

func TestOAMData(t *testing.T) {
	p, _ := setupPPU(t)
	p.WriteRegister(3, 0x10)
	for _, v := range []byte{1, 2, 3} {
		p.WriteRegister(4, v)
	}
	if p.oam[0x10] != 1 || p.oam[0x12] != 3 || p.oamAddr != 0x13 {
		t.Errorf("OAM = % X, addr %02X", p.oam[0x10:0x13], p.oamAddr)
	}
	p.WriteRegister(3, 0x11)
	if v := p.ReadRegister(4); v != 2 {
		t.Errorf("OAMDATA read %02X, want 02", v)
	}
}

func TestRenderBackground(t *testing.T) {
	p, _ := setupPPU(t)
	p.write(0x2000, 0x01) // tile 1 at the top-left
	p.write(0x3F00, 0x0F)
	p.write(0x3F01, 0x16)
	p.WriteRegister(1, maskBackground|maskBackgroundLeft)

	runFrame(p)
	frame := p.Frame()
	if got, want := frame[0], packed(SystemPalette[0x16]); got != want {
		t.Errorf("pixel (0,0) = %08X, want %08X", got, want)
	}
	if got, want := frame[7*Width+7], packed(SystemPalette[0x16]); got != want {
		t.Errorf("pixel (7,7) = %08X, want %08X", got, want)
	}
	if got, want := frame[8], packed(SystemPalette[0x0F]); got != want {
		t.Errorf("pixel (8,0) = %08X, want backdrop %08X", got, want)
	}

	img := p.GetFrame()
	if c := img.RGBAAt(0, 0); c != SystemPalette[0x16] {
		t.Errorf("image pixel (0,0) = %v", c)
	}
}

func TestPaletteResolvedAtRender(t *testing.T) {
	p, _ := setupPPU(t)
	p.write(0x2000, 0x01)
	p.write(0x3F01, 0x16)
	p.WriteRegister(1, maskBackground|maskBackgroundLeft)

	// Vblank palette and greyscale writes belong to the next frame.
	clockUntil(p, vblankLine, 2)
	p.write(0x3F01, 0x2A)
	p.WriteRegister(1, maskBackground|maskBackgroundLeft|maskGreyscale)
	runFrame(p)
	if got, want := p.Frame()[0], packed(SystemPalette[0x16]); got != want {
		t.Errorf("completed frame pixel = %08X, want %08X", got, want)
	}
	if c := p.GetFrame().RGBAAt(0, 0); c != SystemPalette[0x16] {
		t.Errorf("completed frame image pixel = %v", c)
	}

	runFrame(p)
	if got, want := p.Frame()[0], packed(SystemPalette[0x20]); got != want {
		t.Errorf("next frame pixel = %08X, want greyscale %08X", got, want)
	}
}

func TestPaletteChangeMidFrame(t *testing.T) {
	p, _ := setupPPU(t)
	fillBackground(p)
	p.write(0x3F01, 0x16)
	p.WriteRegister(1, maskBackground|maskBackgroundLeft)

	clockUntil(p, 100, Width+1)
	p.write(0x3F01, 0x2A)
	clockUntil(p, vblankLine, 2)

	frame := p.Frame()
	if got, want := frame[100*Width], packed(SystemPalette[0x16]); got != want {
		t.Errorf("line 100 = %08X, want %08X", got, want)
	}
	if got, want := frame[101*Width], packed(SystemPalette[0x2A]); got != want {
		t.Errorf("line 101 = %08X, want %08X", got, want)
	}
}

func TestRenderScroll(t *testing.T) {
	p, _ := setupPPU(t)
	p.write(0x2001, 0x01) // second tile of the first row
	p.write(0x3F01, 0x16)
	p.WriteRegister(5, 8) // X
	p.WriteRegister(5, 0) // Y
	p.WriteRegister(1, maskBackground|maskBackgroundLeft)

	runFrame(p)
	if got, want := p.Frame()[0], packed(SystemPalette[0x16]); got != want {
		t.Errorf("scrolled pixel (0,0) = %08X, want %08X", got, want)
	}
}

// fillBackground puts tile 1 everywhere on the first nametable.
func fillBackground(p *PPU) {
	for i := uint16(0); i < 960; i++ {
		p.write(0x2000+i, 0x01)
	}
}

func TestSpriteZeroHit(t *testing.T) {
	p, _ := setupPPU(t)
	fillBackground(p)
	p.oam[0], p.oam[1], p.oam[2], p.oam[3] = 9, 0x01, 0x00, 20
	p.WriteRegister(1, maskBackground|maskSprites|maskBackgroundLeft|maskSpritesLeft)

	clockUntil(p, 9, Width+1)
	if p.spriteZeroHit {
		t.Fatal("hit before the sprite's first line")
	}
	clockUntil(p, 10, Width+1)
	if !p.spriteZeroHit {
		t.Fatal("no hit on the sprite's first line")
	}
	if p.ReadRegister(2)&statusHit == 0 {
		t.Error("status should report the hit")
	}
	if p.ReadRegister(2)&statusHit == 0 {
		t.Error("status read must not clear the hit")
	}

	clockUntil(p, preRenderLine, 2)
	if p.spriteZeroHit {
		t.Fatal("hit should clear at pre-render")
	}
	clockUntil(p, 10, Width+1)
	if !p.spriteZeroHit {
		t.Error("hit should fire again next frame")
	}
}

func TestSpriteZeroHitDot(t *testing.T) {
	p, _ := setupPPU(t)
	fillBackground(p)
	p.oam[0], p.oam[1], p.oam[2], p.oam[3] = 9, 0x01, 0x00, 20
	p.WriteRegister(1, maskBackground|maskSprites|maskBackgroundLeft|maskSpritesLeft)

	// Pixel 20 is output on dot 21.
	clockUntil(p, 10, 21)
	if p.ReadRegister(2)&statusHit != 0 {
		t.Fatal("hit reported before the overlapping pixel")
	}
	p.Clock()
	if p.ReadRegister(2)&statusHit == 0 {
		t.Error("hit not reported at the overlapping pixel")
	}
}

func TestSpriteZeroHitOncePerFrame(t *testing.T) {
	p, _ := setupPPU(t)
	fillBackground(p)
	p.oam[0], p.oam[1], p.oam[2], p.oam[3] = 9, 0x01, 0x00, 20
	p.WriteRegister(1, maskBackground|maskSprites|maskBackgroundLeft|maskSpritesLeft)

	clockUntil(p, 10, Width+1)
	p.spriteZeroHit = false
	clockUntil(p, 17, Width+1)
	if p.spriteZeroHit {
		t.Error("hit fired twice in one frame")
	}
}

func TestSpriteZeroHitExclusions(t *testing.T) {
	tests := []struct {
		name string
		x    byte
		mask byte
	}{
		{"column 255", 255, maskBackground | maskSprites | maskBackgroundLeft | maskSpritesLeft},
		{"left columns masked", 0, maskBackground | maskSprites},
		{"sprites off", 20, maskBackground | maskBackgroundLeft},
		{"background off", 20, maskSprites | maskSpritesLeft},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, _ := setupPPU(t)
			fillBackground(p)
			p.oam[0], p.oam[1], p.oam[2], p.oam[3] = 9, 0x01, 0x00, tc.x
			p.WriteRegister(1, tc.mask)

			clockUntil(p, 20, Width+1)
			if p.spriteZeroHit {
				t.Error("unexpected sprite-zero hit")
			}
		})
	}
}

func TestSpritePriority(t *testing.T) {
	p, _ := setupPPU(t)
	p.write(0x2000, 0x01) // opaque background in the first tile only
	p.write(0x3F01, 0x16)
	p.write(0x3F11, 0x2A)
	// Sprite 1 sits behind the background across the first two tiles.
	p.oam[4], p.oam[5], p.oam[6], p.oam[7] = 0xFF, 0x01, 0x00, 0 // off screen
	p.oam[8], p.oam[9], p.oam[10], p.oam[11] = 0, 0x01, 0x20, 4
	p.WriteRegister(1, maskBackground|maskSprites|maskBackgroundLeft|maskSpritesLeft)

	runFrame(p)
	frame := p.Frame()
	if got, want := frame[1*Width+5], packed(SystemPalette[0x16]); got != want {
		t.Errorf("opaque background should win over a behind sprite: %08X", got)
	}
	if got, want := frame[1*Width+9], packed(SystemPalette[0x2A]); got != want {
		t.Errorf("behind sprite should show over transparent background: %08X", got)
	}
}

func TestSpriteFlip(t *testing.T) {
	p, cart := setupPPU(t)
	cart.chr[32] = 0x80 // tile 2: single pixel top-left
	p.write(0x3F11, 0x2A)
	p.oam[0], p.oam[1], p.oam[2], p.oam[3] = 9, 0x02, 0xC0, 16 // both flips
	p.WriteRegister(1, maskSprites|maskSpritesLeft)

	runFrame(p)
	frame := p.Frame()
	if got, want := frame[17*Width+23], packed(SystemPalette[0x2A]); got != want {
		t.Errorf("flipped pixel missing at (23,17): %08X", got)
	}
	if got := frame[10*Width+16]; got == packed(SystemPalette[0x2A]) {
		t.Error("unflipped position should be empty")
	}
}

func TestTallSprites(t *testing.T) {
	type point struct{ x, y int }
	tests := []struct {
		name  string
		tile  byte
		attr  byte
		lit   []point
		unlit []point
	}{
		{
			name:  "odd tile uses the upper bank",
			tile:  0x03,
			lit:   []point{{16, 10}, {23, 25}},
			unlit: []point{{17, 10}, {16, 25}},
		},
		{
			name:  "even tile uses the lower bank",
			tile:  0x02,
			lit:   []point{{16, 10}, {17, 10}},
			unlit: []point{{23, 25}},
		},
		{
			name:  "vertical flip swaps the halves",
			tile:  0x03,
			attr:  0x80,
			lit:   []point{{16, 25}, {23, 10}},
			unlit: []point{{16, 10}, {23, 25}},
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			p, cart := setupPPU(t)
			cart.chr[0x0020] = 0xC0   // lower bank tile 2: two pixels on row 0
			cart.chr[0x1020] = 0x80   // upper bank tile 2: top-left pixel
			cart.chr[0x1030+7] = 0x01 // upper bank tile 3: bottom-right pixel
			p.write(0x3F11, 0x2A)
			p.oam[0], p.oam[1], p.oam[2], p.oam[3] = 9, tc.tile, tc.attr, 16
			for i := 1; i < 64; i++ {
				p.oam[i*4] = 0xFF
			}
			p.WriteRegister(0, ctrlSprite16)
			p.WriteRegister(1, maskSprites|maskSpritesLeft)

			runFrame(p)
			frame := p.Frame()
			want := packed(SystemPalette[0x2A])
			for _, pt := range tc.lit {
				if frame[pt.y*Width+pt.x] != want {
					t.Errorf("pixel (%d,%d) not drawn", pt.x, pt.y)
				}
			}
			for _, pt := range tc.unlit {
				if frame[pt.y*Width+pt.x] == want {
					t.Errorf("pixel (%d,%d) should be empty", pt.x, pt.y)
				}
			}
		})
	}
}

func TestSpriteOverflow(t *testing.T) {
	p, _ := setupPPU(t)
	for i := 0; i < 9; i++ {
		p.oam[i*4] = 49
	}
	for i := 9; i < 64; i++ {
		p.oam[i*4] = 0xFF
	}
	p.WriteRegister(1, maskSprites)

	clockUntil(p, 50, Width+1)
	if p.ReadRegister(2)&statusOverflow == 0 {
		t.Error("nine sprites on a line should set overflow")
	}
}

func TestScanlineCounter(t *testing.T) {
	p, _ := setupPPU(t)
	counter := &mockCounter{}
	p.ConnectCounter(counter)

	runFrame(p)
	if counter.ticks != 0 {
		t.Errorf("counter clocked %d times with rendering off", counter.ticks)
	}
	p.WriteRegister(1, maskBackground)
	runFrame(p)
	if counter.ticks != Height+1 {
		t.Errorf("counter clocked %d times, want %d", counter.ticks, Height+1)
	}
}

func TestPatternTable(t *testing.T) {
	p, _ := setupPPU(t)
	p.write(0x3F01, 0x16)
	img := p.PatternTable(0, 0)
	if img.Bounds().Dx() != 128 || img.Bounds().Dy() != 128 {
		t.Fatalf("bounds %v", img.Bounds())
	}
	if c := img.RGBAAt(8, 0); c != SystemPalette[0x16] {
		t.Errorf("tile 1 pixel = %v", c)
	}
	if c := img.RGBAAt(0, 0); c != (color.RGBA{0, 0, 0, 0xFF}) {
		t.Errorf("tile 0 pixel = %v", c)
	}
}

func TestStateRoundTrip(t *testing.T) {
	p, cart := setupPPU(t)
	p.write(0x2000, 0x01)
	p.write(0x3F01, 0x16)
	p.WriteRegister(1, maskBackground|maskBackgroundLeft)
	runFrame(p)
	clockUntil(p, 100, 17)
	s := p.SaveState()

	other := New()
	other.ConnectCartridge(cart)
	other.LoadState(s)
	if other.Scanline() != 100 || other.Dot() != 17 {
		t.Errorf("restored at %d/%d", other.Scanline(), other.Dot())
	}
	if other.Frame()[0] != p.Frame()[0] {
		t.Error("frame buffer not restored")
	}
	runFrame(p)
	runFrame(other)
	if p.SaveState().Frame != other.SaveState().Frame || other.Frame()[0] != p.Frame()[0] {
		t.Error("restored PPU diverged")
	}
}
