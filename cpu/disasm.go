package cpu

import "fmt"

// Peeker reads memory without side effects.
type Peeker interface {
	Peek(addr uint16) byte
}

// Disassemble decodes the instruction at pc. It returns the text and the
// instruction length in bytes.
func Disassemble(mem Peeker, pc uint16) (string, int) {
	in := instructions[mem.Peek(pc)]
	lo := mem.Peek(pc + 1)
	abs := uint16(mem.Peek(pc+2))<<8 | uint16(lo)

	var operand string
	switch in.Mode {
	case ACC:
		operand = "A"
	case IMM:
		operand = fmt.Sprintf("#$%02X", lo)
	case ZP0:
		operand = fmt.Sprintf("$%02X", lo)
	case ZPX:
		operand = fmt.Sprintf("$%02X,X", lo)
	case ZPY:
		operand = fmt.Sprintf("$%02X,Y", lo)
	case REL:
		operand = fmt.Sprintf("$%04X", pc+2+uint16(int8(lo)))
	case ABS:
		operand = fmt.Sprintf("$%04X", abs)
	case ABX:
		operand = fmt.Sprintf("$%04X,X", abs)
	case ABY:
		operand = fmt.Sprintf("$%04X,Y", abs)
	case IND:
		operand = fmt.Sprintf("($%04X)", abs)
	case IZX:
		operand = fmt.Sprintf("($%02X,X)", lo)
	case IZY:
		operand = fmt.Sprintf("($%02X),Y", lo)
	}

	text := in.Op.String()
	if operand != "" {
		text += " " + operand
	}
	return text, in.Mode.Size()
}
