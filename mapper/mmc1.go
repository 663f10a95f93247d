package mapper

// MMC1 (mapper 1) is loaded one bit at a time through a 5-bit serial
// shift register. The fifth write commits the assembled value into the
// register selected by the address of that write.
type MMC1 struct {
	mem *Memory

	// Shift register. Bit 4 starts as a marker; when the marker reaches
	// bit 0 the next write completes the value.
	shift byte

	control  byte
	chrBank0 byte
	chrBank1 byte
	prgBank  byte

	// Base offsets into PRG (16KB windows) and CHR (4KB windows),
	// recomputed on every register load.
	prgOffsets [2]int
	chrOffsets [2]int
}

const mmc1ShiftReset = 0x10

func newMMC1(mem *Memory) *MMC1 {
	m := &MMC1{
		mem:     mem,
		shift:   mmc1ShiftReset,
		control: 0x0C,
	}
	m.updateOffsets()
	return m
}

func (m *MMC1) board() {}

// ID returns 1.
func (m *MMC1) ID() byte { return 1 }

func (m *MMC1) ramEnabled() bool {
	return m.prgBank&0x10 == 0
}

// ReadPRG implements Mapper. Save RAM reads return nothing while the
// RAM is disabled.
func (m *MMC1) ReadPRG(addr uint16) (byte, bool) {
	switch {
	case addr >= 0x8000:
		window := (addr >> 14) & 1
		return m.mem.prg(m.prgOffsets[window] + int(addr&0x3FFF)), true
	case addr >= 0x6000:
		if !m.ramEnabled() {
			return 0, false
		}
		return m.mem.ram(addr), true
	}
	return 0, false
}

// WritePRG implements Mapper.
func (m *MMC1) WritePRG(addr uint16, data byte) {
	switch {
	case addr >= 0x8000:
		m.writeSerial(addr, data)
	case addr >= 0x6000:
		if m.ramEnabled() {
			m.mem.setRAM(addr, data)
		}
	}
}

func (m *MMC1) writeSerial(addr uint16, data byte) {
	if data&0x80 != 0 {
		m.shift = mmc1ShiftReset
		m.control |= 0x0C
		m.updateOffsets()
		return
	}

	done := m.shift&1 != 0
	m.shift = (m.shift >> 1) | ((data & 1) << 4)
	if done {
		m.loadRegister(addr, m.shift)
		m.shift = mmc1ShiftReset
	}
}

func (m *MMC1) loadRegister(addr uint16, value byte) {
	switch {
	case addr >= 0xE000:
		m.prgBank = value & 0x1F
	case addr >= 0xC000:
		m.chrBank1 = value & 0x1F
	case addr >= 0xA000:
		m.chrBank0 = value & 0x1F
	default:
		m.control = value & 0x1F
	}
	m.updateOffsets()
}

func (m *MMC1) updateOffsets() {
	bank := int(m.prgBank & 0x0F)
	switch (m.control >> 2) & 3 {
	case 0, 1:
		// 32KB, low bit of the bank number ignored
		m.prgOffsets[0] = (bank &^ 1) * PRGBankSize
		m.prgOffsets[1] = (bank | 1) * PRGBankSize
	case 2:
		m.prgOffsets[0] = 0
		m.prgOffsets[1] = bank * PRGBankSize
	case 3:
		m.prgOffsets[0] = bank * PRGBankSize
		m.prgOffsets[1] = len(m.mem.PRG) - PRGBankSize
	}

	if m.control&0x10 == 0 {
		bank := int(m.chrBank0)
		m.chrOffsets[0] = (bank &^ 1) * 0x1000
		m.chrOffsets[1] = (bank | 1) * 0x1000
	} else {
		m.chrOffsets[0] = int(m.chrBank0) * 0x1000
		m.chrOffsets[1] = int(m.chrBank1) * 0x1000
	}

	for i := range m.prgOffsets {
		m.prgOffsets[i] %= len(m.mem.PRG)
		if m.prgOffsets[i] < 0 {
			m.prgOffsets[i] = 0
		}
	}
	for i := range m.chrOffsets {
		m.chrOffsets[i] %= len(m.mem.CHR)
	}
}

func (m *MMC1) chrIndex(addr uint16) int {
	window := (addr >> 12) & 1
	return m.chrOffsets[window] + int(addr&0x0FFF)
}

// ReadCHR implements Mapper.
func (m *MMC1) ReadCHR(addr uint16) byte {
	return m.mem.chr(m.chrIndex(addr))
}

// WriteCHR implements Mapper.
func (m *MMC1) WriteCHR(addr uint16, data byte) {
	m.mem.setCHR(m.chrIndex(addr), data)
}

// Mirroring implements Mapper.
func (m *MMC1) Mirroring() Mirroring {
	switch m.control & 3 {
	case 0:
		return SingleLower
	case 1:
		return SingleUpper
	case 2:
		return Vertical
	}
	return Horizontal
}
