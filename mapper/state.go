package mapper

import (
	"bytes"
	"encoding/gob"
)

func encode(v interface{}) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil
	}
	return buf.Bytes()
}

func decode(b []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(b)).Decode(v)
}

// NROM

func (n *NROM) Save() []byte        { return nil }
func (n *NROM) Load(b []byte) error { return nil }

// UxROM

func (u *UxROM) Save() []byte { return []byte{u.bank} }
func (u *UxROM) Load(b []byte) error {
	if len(b) > 0 {
		u.bank = b[0]
	}
	return nil
}

// CNROM

func (c *CNROM) Save() []byte { return []byte{c.bank} }
func (c *CNROM) Load(b []byte) error {
	if len(b) > 0 {
		c.bank = b[0] & 0x03
	}
	return nil
}

// MMC1State is the serialised register file of an MMC1 board.
type MMC1State struct {
	Shift, Control, CHRBank0, CHRBank1, PRGBank byte
}

func (m *MMC1) Save() []byte {
	return encode(MMC1State{m.shift, m.control, m.chrBank0, m.chrBank1, m.prgBank})
}

func (m *MMC1) Load(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	var s MMC1State
	if err := decode(b, &s); err != nil {
		return err
	}
	m.shift, m.control, m.chrBank0, m.chrBank1, m.prgBank = s.Shift, s.Control, s.CHRBank0, s.CHRBank1, s.PRGBank
	m.updateOffsets()
	return nil
}

// MMC3State is the serialised register file of an MMC3 board.
type MMC3State struct {
	Target                                     byte
	PRGMode, CHRInvert                         bool
	Registers                                  [8]byte
	Mirroring                                  Mirroring
	IRQLatch, IRQCounter                       byte
	IRQReload, IRQEnabled, IRQPending          bool
}

func (m *MMC3) Save() []byte {
	return encode(MMC3State{m.target, m.prgMode, m.chrInvert, m.registers, m.mirroring, m.irqLatch, m.irqCounter, m.irqReload, m.irqEnabled, m.irqPending})
}

func (m *MMC3) Load(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	var s MMC3State
	if err := decode(b, &s); err != nil {
		return err
	}
	m.target, m.prgMode, m.chrInvert, m.registers, m.mirroring = s.Target, s.PRGMode, s.CHRInvert, s.Registers, s.Mirroring
	m.irqLatch, m.irqCounter, m.irqReload, m.irqEnabled, m.irqPending = s.IRQLatch, s.IRQCounter, s.IRQReload, s.IRQEnabled, s.IRQPending
	m.updateOffsets()
	return nil
}
