package ppu

// State is a snapshot of the PPU, excluding the cartridge.
type State struct {
	Ctrl, Mask                                      byte
	VBlank, SpriteZeroHit, SpriteOverflow, HitLatch bool
	NMI                                             bool
	HitDot                                          int
	OAMAddr                                         byte
	OAM                                             [256]byte
	VRAM                                            [4096]byte
	Palette                                         [32]byte
	V, T                                            uint16
	FineX                                           byte
	W                                               bool
	Buffer, Latch                                   byte
	ScrollY                                         int
	Scanline, Dot                                   int
	Frame                                           uint64
	OddFrame                                        bool
	Pixels                                          []byte
}

func (p *PPU) SaveState() State {
	return State{
		Ctrl: p.ctrl, Mask: p.mask,
		VBlank: p.vblank, SpriteZeroHit: p.spriteZeroHit, SpriteOverflow: p.spriteOverflow, HitLatch: p.hitLatch,
		NMI: p.NMI, HitDot: p.hitDot,
		OAMAddr: p.oamAddr, OAM: p.oam, VRAM: p.vram, Palette: p.palette,
		V: p.v, T: p.t, FineX: p.fineX, W: p.w,
		Buffer: p.buffer, Latch: p.latch,
		ScrollY: p.scrollY,
		Scanline: p.scanline, Dot: p.dot, Frame: p.frame, OddFrame: p.oddFrame,
		Pixels: append([]byte(nil), p.front[:]...),
	}
}

func (p *PPU) LoadState(s State) {
	p.ctrl, p.mask = s.Ctrl, s.Mask
	p.vblank, p.spriteZeroHit, p.spriteOverflow, p.hitLatch = s.VBlank, s.SpriteZeroHit, s.SpriteOverflow, s.HitLatch
	p.NMI, p.hitDot = s.NMI, s.HitDot
	p.oamAddr, p.oam, p.vram, p.palette = s.OAMAddr, s.OAM, s.VRAM, s.Palette
	p.v, p.t, p.fineX, p.w = s.V, s.T, s.FineX, s.W
	p.buffer, p.latch = s.Buffer, s.Latch
	p.scrollY = s.ScrollY
	p.scanline, p.dot, p.frame, p.oddFrame = s.Scanline, s.Dot, s.Frame, s.OddFrame

	if len(s.Pixels) == len(p.front) {
		copy(p.front[:], s.Pixels)
		p.back = p.front
	}
}
