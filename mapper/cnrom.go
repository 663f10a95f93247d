package mapper

// CNROM (mapper 3) has fixed program memory and switches the whole 8KB
// pattern window.
type CNROM struct {
	mem  *Memory
	bank byte
}

func newCNROM(mem *Memory) *CNROM {
	return &CNROM{mem: mem}
}

func (c *CNROM) board() {}

// ID returns 3.
func (c *CNROM) ID() byte { return 3 }

// ReadPRG implements Mapper.
func (c *CNROM) ReadPRG(addr uint16) (byte, bool) {
	switch {
	case addr >= 0x8000:
		return c.mem.prg(int(addr - 0x8000)), true
	case addr >= 0x6000:
		return c.mem.ram(addr), true
	}
	return 0, false
}

// WritePRG implements Mapper.
func (c *CNROM) WritePRG(addr uint16, data byte) {
	switch {
	case addr >= 0x8000:
		c.bank = data & 0x03
	case addr >= 0x6000:
		c.mem.setRAM(addr, data)
	}
}

func (c *CNROM) chrIndex(addr uint16) int {
	return int(c.bank)*CHRBankSize + int(addr&0x1FFF)
}

// ReadCHR implements Mapper.
func (c *CNROM) ReadCHR(addr uint16) byte {
	return c.mem.chr(c.chrIndex(addr))
}

// WriteCHR implements Mapper.
func (c *CNROM) WriteCHR(addr uint16, data byte) {
	c.mem.setCHR(c.chrIndex(addr), data)
}

// Mirroring implements Mapper.
func (c *CNROM) Mirroring() Mirroring {
	return c.mem.Mirroring
}
