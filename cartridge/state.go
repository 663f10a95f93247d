package cartridge

import "fmt"

// State is the part of a cartridge that changes at run time.
type State struct {
	CHRRAM      []byte
	SaveRAM     []byte
	MapperID    byte
	MapperState []byte
}

func (c *Cartridge) SaveState() State {
	s := State{
		SaveRAM:     c.SaveRAM(),
		MapperID:    c.ID(),
		MapperState: c.Save(),
	}
	if c.mem.CHRIsRAM {
		s.CHRRAM = append([]byte(nil), c.mem.CHR...)
	}
	return s
}

func (c *Cartridge) LoadState(s State) error {
	if s.MapperID != c.ID() {
		return fmt.Errorf("state is for mapper %d, cartridge uses mapper %d", s.MapperID, c.ID())
	}
	if c.mem.CHRIsRAM && len(s.CHRRAM) > 0 {
		copy(c.mem.CHR, s.CHRRAM)
	}
	copy(c.mem.RAM, s.SaveRAM)
	return c.Load(s.MapperState)
}
