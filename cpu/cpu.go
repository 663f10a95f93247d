package cpu

// Bus defines the interface for the CPU to interact with the bus.
type Bus interface {
	Read(addr uint16) byte
	Write(addr uint16, data byte)
}

// Processor status flags
const (
	C byte = 1 << iota // carry
	Z                  // zero
	I                  // interrupt disable
	D                  // decimal, stored but has no effect
	B                  // break, only exists on the stack
	U                  // unused, always set in P
	V                  // overflow
	N                  // negative
)

const (
	nmiVector   = 0xFFFA
	resetVector = 0xFFFC
	irqVector   = 0xFFFE

	interruptCycles = 7
)

// CPU represents the 6502 CPU.
type CPU struct {
	// Program Counter
	PC uint16

	// Stack Pointer, offset into page 0x0100
	SP byte

	// Accumulator
	A byte

	// Index Register X
	X byte

	// Index Register Y
	Y byte

	// Processor Status
	P byte

	bus Bus

	opcode byte
	addr   uint16 // effective address of the instruction in flight
	cycles int    // ticks left before the next fetch
	total  uint64 // ticks since reset

	nmiPending bool
	irqLine    bool
	halted     bool
}

// New creates a new CPU instance.
func New() *CPU {
	return &CPU{}
}

// ConnectBus connects the CPU to the bus.
func (c *CPU) ConnectBus(bus Bus) {
	c.bus = bus
}

// Reset loads PC from the reset vector and puts the registers in their
// power-on state. The reset sequence itself takes 7 cycles.
func (c *CPU) Reset() {
	c.PC = c.read16(resetVector)
	c.A, c.X, c.Y = 0, 0, 0
	c.SP = 0xFD
	c.P = I | U

	c.cycles = interruptCycles
	c.total = 0
	c.nmiPending = false
	c.irqLine = false
	c.halted = false
}

// Clock performs one clock cycle. A new instruction is fetched and
// executed on the first tick after the previous one has used up its
// cycles; interrupts are only taken at that boundary. They are polled
// against the flags the instruction left behind, so a pending IRQ is
// entered straight after CLI with no one-instruction delay.
func (c *CPU) Clock() {
	if c.halted {
		return
	}
	if c.cycles == 0 {
		c.execute()
		if !c.halted {
			c.interrupt()
		}
	}
	c.cycles--
	c.total++
}

// Step clocks the CPU until the current instruction, or the next one if
// the CPU is between instructions, has completed. It returns the number
// of ticks taken.
func (c *CPU) Step() int {
	n := 0
	for {
		if c.halted {
			return n
		}
		c.Clock()
		n++
		if c.cycles == 0 {
			return n
		}
	}
}

// NMI latches a non-maskable interrupt. It is taken at the next
// instruction boundary.
func (c *CPU) NMI() {
	c.nmiPending = true
}

// SetIRQ drives the level-triggered IRQ line.
func (c *CPU) SetIRQ(asserted bool) {
	c.irqLine = asserted
}

// Stall suspends instruction fetch for n more cycles, as OAM DMA does.
func (c *CPU) Stall(n int) {
	c.cycles += n
}

// Halted reports whether a JAM opcode has locked the CPU. Only Reset
// recovers from it.
func (c *CPU) Halted() bool {
	return c.halted
}

// Cycles returns the number of ticks since reset.
func (c *CPU) Cycles() uint64 {
	return c.total
}

// Pending returns the ticks left before the next instruction fetch.
func (c *CPU) Pending() int {
	return c.cycles
}

// Opcode returns the most recently fetched opcode.
func (c *CPU) Opcode() byte {
	return c.opcode
}

func (c *CPU) interrupt() {
	switch {
	case c.nmiPending:
		c.nmiPending = false
		c.enter(nmiVector)
	case c.irqLine && c.P&I == 0:
		c.enter(irqVector)
	}
}

func (c *CPU) enter(vector uint16) {
	c.push16(c.PC)
	c.push(c.P &^ (B | U))
	c.P |= I
	c.PC = c.read16(vector)
	c.cycles += interruptCycles
}

func (c *CPU) execute() {
	c.opcode = c.fetch()
	in := instructions[c.opcode]
	c.cycles += in.Cycles
	if c.resolve(in) {
		c.cycles++
	}
	c.run(in)
}

// resolve computes the effective address for the mode and advances PC
// past the operand. It reports whether a page-crossing cycle is owed.
func (c *CPU) resolve(in Instruction) bool {
	switch in.Mode {
	case IMM:
		c.addr = c.PC
		c.PC++
	case ZP0:
		c.addr = uint16(c.fetch())
	case ZPX:
		c.addr = uint16(c.fetch() + c.X)
	case ZPY:
		c.addr = uint16(c.fetch() + c.Y)
	case REL:
		offset := int8(c.fetch())
		c.addr = c.PC + uint16(offset)
	case ABS:
		c.addr = c.fetch16()
	case ABX:
		return c.indexed(c.fetch16(), c.X, in.PageCycle)
	case ABY:
		return c.indexed(c.fetch16(), c.Y, in.PageCycle)
	case IND:
		c.addr = c.readPageWrapped(c.fetch16())
	case IZX:
		c.addr = c.readZeroPage16(c.fetch() + c.X)
	case IZY:
		return c.indexed(c.readZeroPage16(c.fetch()), c.Y, in.PageCycle)
	}
	return false
}

// indexed adds an index to base. The hardware first reads from the
// address before the carry into the high byte is applied: read forms
// only do so when a page is crossed, stores and read-modify-write forms
// always do.
func (c *CPU) indexed(base uint16, index byte, pageCycle bool) bool {
	c.addr = base + uint16(index)
	crossed := base&0xFF00 != c.addr&0xFF00
	if crossed || !pageCycle {
		c.read(base&0xFF00 | c.addr&0x00FF)
	}
	return crossed && pageCycle
}

func (c *CPU) run(in Instruction) {
	switch in.Op {
	// Loads and stores
	case LDA:
		c.A = c.read(c.addr)
		c.setZN(c.A)
	case LDX:
		c.X = c.read(c.addr)
		c.setZN(c.X)
	case LDY:
		c.Y = c.read(c.addr)
		c.setZN(c.Y)
	case STA:
		c.write(c.addr, c.A)
	case STX:
		c.write(c.addr, c.X)
	case STY:
		c.write(c.addr, c.Y)

	// Transfers
	case TAX:
		c.X = c.A
		c.setZN(c.X)
	case TAY:
		c.Y = c.A
		c.setZN(c.Y)
	case TXA:
		c.A = c.X
		c.setZN(c.A)
	case TYA:
		c.A = c.Y
		c.setZN(c.A)
	case TSX:
		c.X = c.SP
		c.setZN(c.X)
	case TXS:
		c.SP = c.X

	// Stack
	case PHA:
		c.push(c.A)
	case PHP:
		c.push(c.P | B | U)
	case PLA:
		c.A = c.pull()
		c.setZN(c.A)
	case PLP:
		c.P = c.pull()&^B | U

	// Arithmetic and logic
	case ADC:
		c.adc(c.read(c.addr))
	case SBC:
		c.adc(^c.read(c.addr))
	case AND:
		c.A &= c.read(c.addr)
		c.setZN(c.A)
	case ORA:
		c.A |= c.read(c.addr)
		c.setZN(c.A)
	case EOR:
		c.A ^= c.read(c.addr)
		c.setZN(c.A)
	case BIT:
		v := c.read(c.addr)
		c.setFlag(Z, c.A&v == 0)
		c.setFlag(V, v&0x40 != 0)
		c.setFlag(N, v&0x80 != 0)
	case CMP:
		c.compare(c.A, c.read(c.addr))
	case CPX:
		c.compare(c.X, c.read(c.addr))
	case CPY:
		c.compare(c.Y, c.read(c.addr))

	// Increments and shifts
	case INC:
		c.modify(in.Mode, c.inc)
	case DEC:
		c.modify(in.Mode, c.dec)
	case INX:
		c.X++
		c.setZN(c.X)
	case INY:
		c.Y++
		c.setZN(c.Y)
	case DEX:
		c.X--
		c.setZN(c.X)
	case DEY:
		c.Y--
		c.setZN(c.Y)
	case ASL:
		c.modify(in.Mode, c.asl)
	case LSR:
		c.modify(in.Mode, c.lsr)
	case ROL:
		c.modify(in.Mode, c.rol)
	case ROR:
		c.modify(in.Mode, c.ror)

	// Control flow
	case JMP:
		c.PC = c.addr
	case JSR:
		c.push16(c.PC - 1)
		c.PC = c.addr
	case RTS:
		c.PC = c.pull16() + 1
	case RTI:
		c.P = c.pull()&^B | U
		c.PC = c.pull16()
	case BRK:
		c.PC++
		c.push16(c.PC)
		c.push(c.P | B | U)
		c.P |= I
		c.PC = c.read16(irqVector)
	case BCC:
		c.branch(c.P&C == 0)
	case BCS:
		c.branch(c.P&C != 0)
	case BNE:
		c.branch(c.P&Z == 0)
	case BEQ:
		c.branch(c.P&Z != 0)
	case BPL:
		c.branch(c.P&N == 0)
	case BMI:
		c.branch(c.P&N != 0)
	case BVC:
		c.branch(c.P&V == 0)
	case BVS:
		c.branch(c.P&V != 0)

	// Flags
	case CLC:
		c.P &^= C
	case SEC:
		c.P |= C
	case CLI:
		c.P &^= I
	case SEI:
		c.P |= I
	case CLD:
		c.P &^= D
	case SED:
		c.P |= D
	case CLV:
		c.P &^= V

	case NOP:
		if in.Mode != IMP {
			c.read(c.addr)
		}

	// Undocumented
	case SLO:
		c.A |= c.modify(in.Mode, c.asl)
		c.setZN(c.A)
	case RLA:
		c.A &= c.modify(in.Mode, c.rol)
		c.setZN(c.A)
	case SRE:
		c.A ^= c.modify(in.Mode, c.lsr)
		c.setZN(c.A)
	case RRA:
		c.adc(c.modify(in.Mode, c.ror))
	case DCP:
		c.compare(c.A, c.modify(in.Mode, c.dec))
	case ISC:
		c.adc(^c.modify(in.Mode, c.inc))
	case SAX:
		c.write(c.addr, c.A&c.X)
	case LAX:
		c.A = c.read(c.addr)
		c.X = c.A
		c.setZN(c.A)
	case ANC:
		c.A &= c.read(c.addr)
		c.setZN(c.A)
		c.setFlag(C, c.A&0x80 != 0)
	case ALR:
		c.A = c.lsr(c.A & c.read(c.addr))
	case ARR:
		c.A &= c.read(c.addr)
		c.A = c.A>>1 | (c.P&C)<<7
		c.setZN(c.A)
		c.setFlag(C, c.A&0x40 != 0)
		c.setFlag(V, (c.A>>6^c.A>>5)&1 != 0)
	case AXS:
		v := c.read(c.addr)
		t := c.A & c.X
		c.setFlag(C, t >= v)
		c.X = t - v
		c.setZN(c.X)
	case XAA:
		c.A = (c.A | 0xEE) & c.X & c.read(c.addr)
		c.setZN(c.A)
	case LAS:
		v := c.read(c.addr) & c.SP
		c.A, c.X, c.SP = v, v, v
		c.setZN(v)
	case AHX:
		c.write(c.addr, c.A&c.X&c.highPlusOne())
	case SHX:
		c.write(c.addr, c.X&c.highPlusOne())
	case SHY:
		c.write(c.addr, c.Y&c.highPlusOne())
	case TAS:
		c.SP = c.A & c.X
		c.write(c.addr, c.SP&c.highPlusOne())

	case JAM:
		c.halted = true
		c.PC--
	}
}

func (c *CPU) highPlusOne() byte {
	return byte(c.addr>>8) + 1
}

func (c *CPU) branch(taken bool) {
	if !taken {
		return
	}
	c.cycles++
	if c.PC&0xFF00 != c.addr&0xFF00 {
		c.cycles++
	}
	c.PC = c.addr
}

// adc adds v and the carry into A. SBC passes the one's complement of
// its operand.
func (c *CPU) adc(v byte) {
	sum := uint16(c.A) + uint16(v) + uint16(c.P&C)
	r := byte(sum)
	c.setFlag(C, sum > 0xFF)
	c.setFlag(V, (c.A^r)&(v^r)&0x80 != 0)
	c.A = r
	c.setZN(r)
}

func (c *CPU) compare(reg, v byte) {
	c.setFlag(C, reg >= v)
	c.setZN(reg - v)
}

// modify applies f to the accumulator or to memory and returns the new
// value.
func (c *CPU) modify(mode Mode, f func(byte) byte) byte {
	if mode == ACC {
		c.A = f(c.A)
		return c.A
	}
	v := f(c.read(c.addr))
	c.write(c.addr, v)
	return v
}

func (c *CPU) inc(v byte) byte {
	v++
	c.setZN(v)
	return v
}

func (c *CPU) dec(v byte) byte {
	v--
	c.setZN(v)
	return v
}

func (c *CPU) asl(v byte) byte {
	c.setFlag(C, v&0x80 != 0)
	v <<= 1
	c.setZN(v)
	return v
}

func (c *CPU) lsr(v byte) byte {
	c.setFlag(C, v&0x01 != 0)
	v >>= 1
	c.setZN(v)
	return v
}

func (c *CPU) rol(v byte) byte {
	carry := c.P & C
	c.setFlag(C, v&0x80 != 0)
	v = v<<1 | carry
	c.setZN(v)
	return v
}

func (c *CPU) ror(v byte) byte {
	carry := c.P & C
	c.setFlag(C, v&0x01 != 0)
	v = v>>1 | carry<<7
	c.setZN(v)
	return v
}

func (c *CPU) setFlag(f byte, on bool) {
	if on {
		c.P |= f
	} else {
		c.P &^= f
	}
}

func (c *CPU) setZN(v byte) {
	c.setFlag(Z, v == 0)
	c.setFlag(N, v&0x80 != 0)
}

func (c *CPU) read(addr uint16) byte {
	return c.bus.Read(addr)
}

func (c *CPU) write(addr uint16, data byte) {
	c.bus.Write(addr, data)
}

func (c *CPU) read16(addr uint16) uint16 {
	return uint16(c.read(addr)) | uint16(c.read(addr+1))<<8
}

// readPageWrapped reproduces the JMP ($xxFF) bug: the high byte is read
// from the start of the same page.
func (c *CPU) readPageWrapped(ptr uint16) uint16 {
	hi := ptr&0xFF00 | uint16(byte(ptr)+1)
	return uint16(c.read(ptr)) | uint16(c.read(hi))<<8
}

func (c *CPU) readZeroPage16(zp byte) uint16 {
	return uint16(c.read(uint16(zp))) | uint16(c.read(uint16(zp+1)))<<8
}

func (c *CPU) fetch() byte {
	v := c.read(c.PC)
	c.PC++
	return v
}

func (c *CPU) fetch16() uint16 {
	v := c.read16(c.PC)
	c.PC += 2
	return v
}

func (c *CPU) push(v byte) {
	c.write(0x0100|uint16(c.SP), v)
	c.SP--
}

func (c *CPU) pull() byte {
	c.SP++
	return c.read(0x0100 | uint16(c.SP))
}

func (c *CPU) push16(v uint16) {
	c.push(byte(v >> 8))
	c.push(byte(v))
}

func (c *CPU) pull16() uint16 {
	lo := uint16(c.pull())
	return lo | uint16(c.pull())<<8
}
