package mapper

// NROM (mapper 0) has no bank switching. A 16KB program store is
// mirrored across the whole 0x8000-0xFFFF window.
type NROM struct {
	mem *Memory
}

func newNROM(mem *Memory) *NROM {
	return &NROM{mem: mem}
}

func (n *NROM) board() {}

// ID returns 0.
func (n *NROM) ID() byte { return 0 }

// ReadPRG implements Mapper.
func (n *NROM) ReadPRG(addr uint16) (byte, bool) {
	switch {
	case addr >= 0x8000:
		return n.mem.prg(int(addr - 0x8000)), true
	case addr >= 0x6000:
		return n.mem.ram(addr), true
	}
	return 0, false
}

// WritePRG implements Mapper. Only save RAM is writable.
func (n *NROM) WritePRG(addr uint16, data byte) {
	if addr >= 0x6000 && addr < 0x8000 {
		n.mem.setRAM(addr, data)
	}
}

// ReadCHR implements Mapper.
func (n *NROM) ReadCHR(addr uint16) byte {
	return n.mem.chr(int(addr))
}

// WriteCHR implements Mapper.
func (n *NROM) WriteCHR(addr uint16, data byte) {
	n.mem.setCHR(int(addr), data)
}

// Mirroring implements Mapper.
func (n *NROM) Mirroring() Mirroring {
	return n.mem.Mirroring
}
