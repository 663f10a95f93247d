package cpu

// State is a snapshot of the CPU's registers and timing.
type State struct {
	PC                          uint16
	SP, A, X, Y, P, Opcode      byte
	Addr                        uint16
	Cycles                      int
	Total                       uint64
	NMIPending, IRQLine, Halted bool
}

func (c *CPU) SaveState() State {
	return State{
		PC: c.PC, SP: c.SP, A: c.A, X: c.X, Y: c.Y, P: c.P,
		Opcode: c.opcode, Addr: c.addr,
		Cycles: c.cycles, Total: c.total,
		NMIPending: c.nmiPending, IRQLine: c.irqLine, Halted: c.halted,
	}
}

func (c *CPU) LoadState(s State) {
	c.PC, c.SP, c.A, c.X, c.Y, c.P = s.PC, s.SP, s.A, s.X, s.Y, s.P
	c.opcode, c.addr = s.Opcode, s.Addr
	c.cycles, c.total = s.Cycles, s.Total
	c.nmiPending, c.irqLine, c.halted = s.NMIPending, s.IRQLine, s.Halted
}
