package mapper

// UxROM (mapper 2) switches a 16KB program bank at 0x8000 and fixes the
// last bank at 0xC000. Pattern memory is normally RAM.
type UxROM struct {
	mem  *Memory
	bank byte
}

func newUxROM(mem *Memory) *UxROM {
	return &UxROM{mem: mem}
}

func (u *UxROM) board() {}

// ID returns 2.
func (u *UxROM) ID() byte { return 2 }

// ReadPRG implements Mapper.
func (u *UxROM) ReadPRG(addr uint16) (byte, bool) {
	switch {
	case addr >= 0xC000:
		last := len(u.mem.PRG) - PRGBankSize
		if last < 0 {
			last = 0
		}
		return u.mem.prg(last + int(addr&0x3FFF)), true
	case addr >= 0x8000:
		return u.mem.prg(int(u.bank)*PRGBankSize + int(addr&0x3FFF)), true
	case addr >= 0x6000:
		return u.mem.ram(addr), true
	}
	return 0, false
}

// WritePRG implements Mapper. Any write to 0x8000-0xFFFF selects the
// switchable bank.
func (u *UxROM) WritePRG(addr uint16, data byte) {
	switch {
	case addr >= 0x8000:
		u.bank = data
	case addr >= 0x6000:
		u.mem.setRAM(addr, data)
	}
}

// ReadCHR implements Mapper.
func (u *UxROM) ReadCHR(addr uint16) byte {
	return u.mem.chr(int(addr))
}

// WriteCHR implements Mapper.
func (u *UxROM) WriteCHR(addr uint16, data byte) {
	u.mem.setCHR(int(addr), data)
}

// Mirroring implements Mapper.
func (u *UxROM) Mirroring() Mirroring {
	return u.mem.Mirroring
}
