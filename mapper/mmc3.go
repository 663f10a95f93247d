package mapper

// MMC3 (mapper 4) switches program memory in 8KB windows and pattern
// memory in 1KB/2KB windows, and counts rendered scanlines to raise an
// IRQ.
type MMC3 struct {
	mem *Memory

	target    byte // register selected by the next 0x8001 write
	prgMode   bool // false: 0x8000 switchable, 0xC000 fixed to second last
	chrInvert bool // false: 2KB windows at 0x0000
	registers [8]byte
	mirroring Mirroring

	prgOffsets [4]int
	chrOffsets [8]int

	irqLatch   byte
	irqCounter byte
	irqReload  bool
	irqEnabled bool
	irqPending bool
}

func newMMC3(mem *Memory) *MMC3 {
	m := &MMC3{mem: mem, mirroring: mem.Mirroring}
	m.updateOffsets()
	return m
}

func (m *MMC3) board() {}

// ID returns 4.
func (m *MMC3) ID() byte { return 4 }

func (m *MMC3) updateOffsets() {
	const prgWindow = 0x2000
	banks := len(m.mem.PRG) / prgWindow
	if banks < 2 {
		banks = 2
	}
	secondLast := (banks - 2) * prgWindow
	last := (banks - 1) * prgWindow
	r6 := int(m.registers[6]&0x3F) * prgWindow
	r7 := int(m.registers[7]&0x3F) * prgWindow

	if m.prgMode {
		m.prgOffsets = [4]int{secondLast, r7, r6, last}
	} else {
		m.prgOffsets = [4]int{r6, r7, secondLast, last}
	}

	r := m.registers
	pair := [4]int{
		int(r[0] &^ 1), int(r[0] | 1),
		int(r[1] &^ 1), int(r[1] | 1),
	}
	single := [4]int{int(r[2]), int(r[3]), int(r[4]), int(r[5])}
	var banked [8]int
	if m.chrInvert {
		copy(banked[:4], single[:])
		copy(banked[4:], pair[:])
	} else {
		copy(banked[:4], pair[:])
		copy(banked[4:], single[:])
	}
	for i, b := range banked {
		m.chrOffsets[i] = (b * 0x400) % len(m.mem.CHR)
	}
	for i := range m.prgOffsets {
		m.prgOffsets[i] %= len(m.mem.PRG)
	}
}

// ReadPRG implements Mapper.
func (m *MMC3) ReadPRG(addr uint16) (byte, bool) {
	switch {
	case addr >= 0x8000:
		window := (addr - 0x8000) >> 13
		return m.mem.prg(m.prgOffsets[window] + int(addr&0x1FFF)), true
	case addr >= 0x6000:
		return m.mem.ram(addr), true
	}
	return 0, false
}

// WritePRG implements Mapper. Registers are decoded from the address
// range and its low bit.
func (m *MMC3) WritePRG(addr uint16, data byte) {
	if addr < 0x6000 {
		return
	}
	if addr < 0x8000 {
		m.mem.setRAM(addr, data)
		return
	}

	even := addr&1 == 0
	switch {
	case addr < 0xA000:
		if even {
			m.target = data & 0x07
			m.prgMode = data&0x40 != 0
			m.chrInvert = data&0x80 != 0
		} else {
			m.registers[m.target] = data
		}
		m.updateOffsets()
	case addr < 0xC000:
		if even && m.mem.Mirroring != FourScreen {
			if data&1 == 0 {
				m.mirroring = Vertical
			} else {
				m.mirroring = Horizontal
			}
		}
	case addr < 0xE000:
		if even {
			m.irqLatch = data
		} else {
			m.irqCounter = 0
			m.irqReload = true
		}
	default:
		if even {
			m.irqEnabled = false
			m.irqPending = false
		} else {
			m.irqEnabled = true
		}
	}
}

func (m *MMC3) chrIndex(addr uint16) int {
	window := (addr >> 10) & 7
	return m.chrOffsets[window] + int(addr&0x03FF)
}

// ReadCHR implements Mapper.
func (m *MMC3) ReadCHR(addr uint16) byte {
	return m.mem.chr(m.chrIndex(addr))
}

// WriteCHR implements Mapper.
func (m *MMC3) WriteCHR(addr uint16, data byte) {
	m.mem.setCHR(m.chrIndex(addr), data)
}

// Mirroring implements Mapper.
func (m *MMC3) Mirroring() Mirroring {
	return m.mirroring
}

// Scanline clocks the IRQ counter once per rendered scanline.
func (m *MMC3) Scanline() {
	if m.irqCounter == 0 || m.irqReload {
		m.irqCounter = m.irqLatch
		m.irqReload = false
	} else {
		m.irqCounter--
	}
	if m.irqCounter == 0 && m.irqEnabled {
		m.irqPending = true
	}
}

// IRQ reports whether the board is asserting the IRQ line.
func (m *MMC3) IRQ() bool {
	return m.irqPending
}
