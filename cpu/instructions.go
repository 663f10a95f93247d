package cpu

// Mode is an addressing mode.
type Mode byte

// Addressing modes
const (
	IMP Mode = iota // implied
	ACC             // accumulator
	IMM             // immediate
	ZP0             // zero page
	ZPX             // zero page,X
	ZPY             // zero page,Y
	REL             // relative (branches)
	ABS             // absolute
	ABX             // absolute,X
	ABY             // absolute,Y
	IND             // (indirect), JMP only
	IZX             // (zero page,X)
	IZY             // (zero page),Y
)

var modeNames = [...]string{"imp", "acc", "imm", "zp0", "zpx", "zpy", "rel", "abs", "abx", "aby", "ind", "izx", "izy"}

func (m Mode) String() string {
	if int(m) < len(modeNames) {
		return modeNames[m]
	}
	return "???"
}

// Size returns the instruction length in bytes for the mode.
func (m Mode) Size() int {
	switch m {
	case IMP, ACC:
		return 1
	case ABS, ABX, ABY, IND:
		return 3
	}
	return 2
}

// Op is an operation.
type Op byte

// Documented operations
const (
	ADC Op = iota
	AND
	ASL
	BCC
	BCS
	BEQ
	BIT
	BMI
	BNE
	BPL
	BRK
	BVC
	BVS
	CLC
	CLD
	CLI
	CLV
	CMP
	CPX
	CPY
	DEC
	DEX
	DEY
	EOR
	INC
	INX
	INY
	JMP
	JSR
	LDA
	LDX
	LDY
	LSR
	NOP
	ORA
	PHA
	PHP
	PLA
	PLP
	ROL
	ROR
	RTI
	RTS
	SBC
	SEC
	SED
	SEI
	STA
	STX
	STY
	TAX
	TAY
	TSX
	TXA
	TXS
	TYA

	// Undocumented combined operations
	SLO // ASL + ORA
	RLA // ROL + AND
	SRE // LSR + EOR
	RRA // ROR + ADC
	SAX // store A&X
	LAX // LDA + LDX
	DCP // DEC + CMP
	ISC // INC + SBC
	ANC // AND, carry from bit 7
	ALR // AND + LSR A
	ARR // AND + ROR A
	AXS // X = A&X - operand
	XAA
	LAS
	AHX
	SHX
	SHY
	TAS

	// JAM locks the processor until reset.
	JAM
)

var opNames = [...]string{
	"ADC", "AND", "ASL", "BCC", "BCS", "BEQ", "BIT", "BMI", "BNE", "BPL", "BRK", "BVC", "BVS", "CLC",
	"CLD", "CLI", "CLV", "CMP", "CPX", "CPY", "DEC", "DEX", "DEY", "EOR", "INC", "INX", "INY", "JMP",
	"JSR", "LDA", "LDX", "LDY", "LSR", "NOP", "ORA", "PHA", "PHP", "PLA", "PLP", "ROL", "ROR", "RTI",
	"RTS", "SBC", "SEC", "SED", "SEI", "STA", "STX", "STY", "TAX", "TAY", "TSX", "TXA", "TXS", "TYA",
	"SLO", "RLA", "SRE", "RRA", "SAX", "LAX", "DCP", "ISC", "ANC", "ALR", "ARR", "AXS", "XAA", "LAS",
	"AHX", "SHX", "SHY", "TAS", "JAM",
}

func (o Op) String() string {
	if int(o) < len(opNames) {
		return opNames[o]
	}
	return "???"
}

// Instruction represents a 6502 instruction.
type Instruction struct {
	Op     Op
	Mode   Mode
	Cycles int
	// PageCycle marks read forms that take one more cycle when indexing
	// crosses a page. Indexed stores and read-modify-write forms always
	// pay that cycle and have it folded into Cycles.
	PageCycle bool
}

// Documented reports whether opcode belongs to the official instruction
// set. Aliases such as 0xEB (SBC) and the multi-byte NOPs do not.
func Documented(opcode byte) bool {
	op := instructions[opcode].Op
	switch {
	case op >= SLO:
		return false
	case op == NOP:
		return opcode == 0xEA
	}
	return opcode != 0xEB
}

// Lookup returns the table entry for an opcode.
func Lookup(opcode byte) Instruction {
	return instructions[opcode]
}

var instructions = [256]Instruction{
	0x00: {BRK, IMP, 7, false}, 0x01: {ORA, IZX, 6, false}, 0x02: {JAM, IMP, 2, false}, 0x03: {SLO, IZX, 8, false},
	0x04: {NOP, ZP0, 3, false}, 0x05: {ORA, ZP0, 3, false}, 0x06: {ASL, ZP0, 5, false}, 0x07: {SLO, ZP0, 5, false},
	0x08: {PHP, IMP, 3, false}, 0x09: {ORA, IMM, 2, false}, 0x0A: {ASL, ACC, 2, false}, 0x0B: {ANC, IMM, 2, false},
	0x0C: {NOP, ABS, 4, false}, 0x0D: {ORA, ABS, 4, false}, 0x0E: {ASL, ABS, 6, false}, 0x0F: {SLO, ABS, 6, false},

	0x10: {BPL, REL, 2, false}, 0x11: {ORA, IZY, 5, true}, 0x12: {JAM, IMP, 2, false}, 0x13: {SLO, IZY, 8, false},
	0x14: {NOP, ZPX, 4, false}, 0x15: {ORA, ZPX, 4, false}, 0x16: {ASL, ZPX, 6, false}, 0x17: {SLO, ZPX, 6, false},
	0x18: {CLC, IMP, 2, false}, 0x19: {ORA, ABY, 4, true}, 0x1A: {NOP, IMP, 2, false}, 0x1B: {SLO, ABY, 7, false},
	0x1C: {NOP, ABX, 4, true}, 0x1D: {ORA, ABX, 4, true}, 0x1E: {ASL, ABX, 7, false}, 0x1F: {SLO, ABX, 7, false},

	0x20: {JSR, ABS, 6, false}, 0x21: {AND, IZX, 6, false}, 0x22: {JAM, IMP, 2, false}, 0x23: {RLA, IZX, 8, false},
	0x24: {BIT, ZP0, 3, false}, 0x25: {AND, ZP0, 3, false}, 0x26: {ROL, ZP0, 5, false}, 0x27: {RLA, ZP0, 5, false},
	0x28: {PLP, IMP, 4, false}, 0x29: {AND, IMM, 2, false}, 0x2A: {ROL, ACC, 2, false}, 0x2B: {ANC, IMM, 2, false},
	0x2C: {BIT, ABS, 4, false}, 0x2D: {AND, ABS, 4, false}, 0x2E: {ROL, ABS, 6, false}, 0x2F: {RLA, ABS, 6, false},

	0x30: {BMI, REL, 2, false}, 0x31: {AND, IZY, 5, true}, 0x32: {JAM, IMP, 2, false}, 0x33: {RLA, IZY, 8, false},
	0x34: {NOP, ZPX, 4, false}, 0x35: {AND, ZPX, 4, false}, 0x36: {ROL, ZPX, 6, false}, 0x37: {RLA, ZPX, 6, false},
	0x38: {SEC, IMP, 2, false}, 0x39: {AND, ABY, 4, true}, 0x3A: {NOP, IMP, 2, false}, 0x3B: {RLA, ABY, 7, false},
	0x3C: {NOP, ABX, 4, true}, 0x3D: {AND, ABX, 4, true}, 0x3E: {ROL, ABX, 7, false}, 0x3F: {RLA, ABX, 7, false},

	0x40: {RTI, IMP, 6, false}, 0x41: {EOR, IZX, 6, false}, 0x42: {JAM, IMP, 2, false}, 0x43: {SRE, IZX, 8, false},
	0x44: {NOP, ZP0, 3, false}, 0x45: {EOR, ZP0, 3, false}, 0x46: {LSR, ZP0, 5, false}, 0x47: {SRE, ZP0, 5, false},
	0x48: {PHA, IMP, 3, false}, 0x49: {EOR, IMM, 2, false}, 0x4A: {LSR, ACC, 2, false}, 0x4B: {ALR, IMM, 2, false},
	0x4C: {JMP, ABS, 3, false}, 0x4D: {EOR, ABS, 4, false}, 0x4E: {LSR, ABS, 6, false}, 0x4F: {SRE, ABS, 6, false},

	0x50: {BVC, REL, 2, false}, 0x51: {EOR, IZY, 5, true}, 0x52: {JAM, IMP, 2, false}, 0x53: {SRE, IZY, 8, false},
	0x54: {NOP, ZPX, 4, false}, 0x55: {EOR, ZPX, 4, false}, 0x56: {LSR, ZPX, 6, false}, 0x57: {SRE, ZPX, 6, false},
	0x58: {CLI, IMP, 2, false}, 0x59: {EOR, ABY, 4, true}, 0x5A: {NOP, IMP, 2, false}, 0x5B: {SRE, ABY, 7, false},
	0x5C: {NOP, ABX, 4, true}, 0x5D: {EOR, ABX, 4, true}, 0x5E: {LSR, ABX, 7, false}, 0x5F: {SRE, ABX, 7, false},

	0x60: {RTS, IMP, 6, false}, 0x61: {ADC, IZX, 6, false}, 0x62: {JAM, IMP, 2, false}, 0x63: {RRA, IZX, 8, false},
	0x64: {NOP, ZP0, 3, false}, 0x65: {ADC, ZP0, 3, false}, 0x66: {ROR, ZP0, 5, false}, 0x67: {RRA, ZP0, 5, false},
	0x68: {PLA, IMP, 4, false}, 0x69: {ADC, IMM, 2, false}, 0x6A: {ROR, ACC, 2, false}, 0x6B: {ARR, IMM, 2, false},
	0x6C: {JMP, IND, 5, false}, 0x6D: {ADC, ABS, 4, false}, 0x6E: {ROR, ABS, 6, false}, 0x6F: {RRA, ABS, 6, false},

	0x70: {BVS, REL, 2, false}, 0x71: {ADC, IZY, 5, true}, 0x72: {JAM, IMP, 2, false}, 0x73: {RRA, IZY, 8, false},
	0x74: {NOP, ZPX, 4, false}, 0x75: {ADC, ZPX, 4, false}, 0x76: {ROR, ZPX, 6, false}, 0x77: {RRA, ZPX, 6, false},
	0x78: {SEI, IMP, 2, false}, 0x79: {ADC, ABY, 4, true}, 0x7A: {NOP, IMP, 2, false}, 0x7B: {RRA, ABY, 7, false},
	0x7C: {NOP, ABX, 4, true}, 0x7D: {ADC, ABX, 4, true}, 0x7E: {ROR, ABX, 7, false}, 0x7F: {RRA, ABX, 7, false},

	0x80: {NOP, IMM, 2, false}, 0x81: {STA, IZX, 6, false}, 0x82: {NOP, IMM, 2, false}, 0x83: {SAX, IZX, 6, false},
	0x84: {STY, ZP0, 3, false}, 0x85: {STA, ZP0, 3, false}, 0x86: {STX, ZP0, 3, false}, 0x87: {SAX, ZP0, 3, false},
	0x88: {DEY, IMP, 2, false}, 0x89: {NOP, IMM, 2, false}, 0x8A: {TXA, IMP, 2, false}, 0x8B: {XAA, IMM, 2, false},
	0x8C: {STY, ABS, 4, false}, 0x8D: {STA, ABS, 4, false}, 0x8E: {STX, ABS, 4, false}, 0x8F: {SAX, ABS, 4, false},

	0x90: {BCC, REL, 2, false}, 0x91: {STA, IZY, 6, false}, 0x92: {JAM, IMP, 2, false}, 0x93: {AHX, IZY, 6, false},
	0x94: {STY, ZPX, 4, false}, 0x95: {STA, ZPX, 4, false}, 0x96: {STX, ZPY, 4, false}, 0x97: {SAX, ZPY, 4, false},
	0x98: {TYA, IMP, 2, false}, 0x99: {STA, ABY, 5, false}, 0x9A: {TXS, IMP, 2, false}, 0x9B: {TAS, ABY, 5, false},
	0x9C: {SHY, ABX, 5, false}, 0x9D: {STA, ABX, 5, false}, 0x9E: {SHX, ABY, 5, false}, 0x9F: {AHX, ABY, 5, false},

	0xA0: {LDY, IMM, 2, false}, 0xA1: {LDA, IZX, 6, false}, 0xA2: {LDX, IMM, 2, false}, 0xA3: {LAX, IZX, 6, false},
	0xA4: {LDY, ZP0, 3, false}, 0xA5: {LDA, ZP0, 3, false}, 0xA6: {LDX, ZP0, 3, false}, 0xA7: {LAX, ZP0, 3, false},
	0xA8: {TAY, IMP, 2, false}, 0xA9: {LDA, IMM, 2, false}, 0xAA: {TAX, IMP, 2, false}, 0xAB: {LAX, IMM, 2, false},
	0xAC: {LDY, ABS, 4, false}, 0xAD: {LDA, ABS, 4, false}, 0xAE: {LDX, ABS, 4, false}, 0xAF: {LAX, ABS, 4, false},

	0xB0: {BCS, REL, 2, false}, 0xB1: {LDA, IZY, 5, true}, 0xB2: {JAM, IMP, 2, false}, 0xB3: {LAX, IZY, 5, true},
	0xB4: {LDY, ZPX, 4, false}, 0xB5: {LDA, ZPX, 4, false}, 0xB6: {LDX, ZPY, 4, false}, 0xB7: {LAX, ZPY, 4, false},
	0xB8: {CLV, IMP, 2, false}, 0xB9: {LDA, ABY, 4, true}, 0xBA: {TSX, IMP, 2, false}, 0xBB: {LAS, ABY, 4, true},
	0xBC: {LDY, ABX, 4, true}, 0xBD: {LDA, ABX, 4, true}, 0xBE: {LDX, ABY, 4, true}, 0xBF: {LAX, ABY, 4, true},

	0xC0: {CPY, IMM, 2, false}, 0xC1: {CMP, IZX, 6, false}, 0xC2: {NOP, IMM, 2, false}, 0xC3: {DCP, IZX, 8, false},
	0xC4: {CPY, ZP0, 3, false}, 0xC5: {CMP, ZP0, 3, false}, 0xC6: {DEC, ZP0, 5, false}, 0xC7: {DCP, ZP0, 5, false},
	0xC8: {INY, IMP, 2, false}, 0xC9: {CMP, IMM, 2, false}, 0xCA: {DEX, IMP, 2, false}, 0xCB: {AXS, IMM, 2, false},
	0xCC: {CPY, ABS, 4, false}, 0xCD: {CMP, ABS, 4, false}, 0xCE: {DEC, ABS, 6, false}, 0xCF: {DCP, ABS, 6, false},

	0xD0: {BNE, REL, 2, false}, 0xD1: {CMP, IZY, 5, true}, 0xD2: {JAM, IMP, 2, false}, 0xD3: {DCP, IZY, 8, false},
	0xD4: {NOP, ZPX, 4, false}, 0xD5: {CMP, ZPX, 4, false}, 0xD6: {DEC, ZPX, 6, false}, 0xD7: {DCP, ZPX, 6, false},
	0xD8: {CLD, IMP, 2, false}, 0xD9: {CMP, ABY, 4, true}, 0xDA: {NOP, IMP, 2, false}, 0xDB: {DCP, ABY, 7, false},
	0xDC: {NOP, ABX, 4, true}, 0xDD: {CMP, ABX, 4, true}, 0xDE: {DEC, ABX, 7, false}, 0xDF: {DCP, ABX, 7, false},

	0xE0: {CPX, IMM, 2, false}, 0xE1: {SBC, IZX, 6, false}, 0xE2: {NOP, IMM, 2, false}, 0xE3: {ISC, IZX, 8, false},
	0xE4: {CPX, ZP0, 3, false}, 0xE5: {SBC, ZP0, 3, false}, 0xE6: {INC, ZP0, 5, false}, 0xE7: {ISC, ZP0, 5, false},
	0xE8: {INX, IMP, 2, false}, 0xE9: {SBC, IMM, 2, false}, 0xEA: {NOP, IMP, 2, false}, 0xEB: {SBC, IMM, 2, false},
	0xEC: {CPX, ABS, 4, false}, 0xED: {SBC, ABS, 4, false}, 0xEE: {INC, ABS, 6, false}, 0xEF: {ISC, ABS, 6, false},

	0xF0: {BEQ, REL, 2, false}, 0xF1: {SBC, IZY, 5, true}, 0xF2: {JAM, IMP, 2, false}, 0xF3: {ISC, IZY, 8, false},
	0xF4: {NOP, ZPX, 4, false}, 0xF5: {SBC, ZPX, 4, false}, 0xF6: {INC, ZPX, 6, false}, 0xF7: {ISC, ZPX, 6, false},
	0xF8: {SED, IMP, 2, false}, 0xF9: {SBC, ABY, 4, true}, 0xFA: {NOP, IMP, 2, false}, 0xFB: {ISC, ABY, 7, false},
	0xFC: {NOP, ABX, 4, true}, 0xFD: {SBC, ABX, 4, true}, 0xFE: {INC, ABX, 7, false}, 0xFF: {ISC, ABX, 7, false},
}
