// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"fmt"
	"strings"

	"github.com/ezrec/mmxi/memory"
)

// Opcode is the operation selected by bits 15:12 of an instruction word.
type Opcode int

//go:generate go tool stringer -linecomment -type=Opcode,Ccr
const (
	OP_BR   = Opcode(0)  // BR
	OP_ADD  = Opcode(1)  // ADD
	OP_LD   = Opcode(2)  // LD
	OP_ST   = Opcode(3)  // ST
	OP_JSR  = Opcode(4)  // JSR
	OP_AND  = Opcode(5)  // AND
	OP_LDR  = Opcode(6)  // LDR
	OP_STR  = Opcode(7)  // STR
	OP_DBUG = Opcode(8)  // DBUG
	OP_NOT  = Opcode(9)  // NOT
	OP_LDI  = Opcode(10) // LDI
	OP_STI  = Opcode(11) // STI
	OP_JSRR = Opcode(12) // JSRR
	OP_RET  = Opcode(13) // RET
	OP_LEA  = Opcode(14) // LEA
	OP_TRAP = Opcode(15) // TRAP
)

// Ccr is the condition code register. Exactly one bit is ever set, so the
// register is represented by which one. The zero value is CCR_Z.
type Ccr int

const (
	CCR_Z = Ccr(0) // Z
	CCR_N = Ccr(1) // N
	CCR_P = Ccr(2) // P
)

// TrapVector selects a trap routine.
type TrapVector uint8

const (
	TRAP_OUT  = TrapVector(0x21) // Write the character in R0.
	TRAP_PUTS = TrapVector(0x22) // Write the zero terminated string at R0.
	TRAP_IN   = TrapVector(0x23) // Read a character into R0.
	TRAP_HALT = TrapVector(0x25) // Halt the machine.
	TRAP_OUTN = TrapVector(0x31) // Write R0 as a signed decimal.
	TRAP_INN  = TrapVector(0x33) // Read a signed decimal into R0.
	TRAP_RND  = TrapVector(0x43) // Set R0 to a random value.
)

var _trap_names = map[TrapVector]string{
	TRAP_OUT:  "OUT",
	TRAP_PUTS: "PUTS",
	TRAP_IN:   "IN",
	TRAP_HALT: "HALT",
	TRAP_OUTN: "OUTN",
	TRAP_INN:  "INN",
	TRAP_RND:  "RND",
}

// String returns the trap routine name, or the vector in hex.
func (tv TrapVector) String() string {
	name, ok := _trap_names[tv]
	if ok {
		return name
	}
	return fmt.Sprintf("x%02X", uint8(tv))
}

// Instruction is a decoded instruction word. Only the fields used by the
// opcode are set.
type Instruction struct {
	Word   uint16
	Opcode Opcode

	Dr        int        // Destination register, bits 11:9.
	Sr        int        // Store source register, bits 11:9.
	Sr1       int        // First source register, bits 8:6.
	Sr2       int        // Second source register, bits 2:0.
	BaseR     int        // Base register, bits 8:6.
	Immediate bool       // Addressing mode, bit 5. Imm5 replaces Sr2.
	Imm5      int16      // Sign extended immediate, bits 4:0.
	PgOffset9 uint16     // Offset into the current page, bits 8:0.
	Index6    uint16     // Unsigned index, bits 5:0.
	Link      bool       // Save the return address in R7, bit 11.
	N, Z, P   bool       // Branch conditions, bits 11:9.
	Vector    TrapVector // Trap vector, bits 7:0.
}

// bitRange returns bits hi:lo of word, shifted down to bit 0.
func bitRange(word uint16, hi, lo uint) uint16 {
	return (word >> lo) & (1<<(hi-lo+1) - 1)
}

// signExtend interprets the low n bits of value as two's complement.
func signExtend(value uint16, n uint) int16 {
	return int16(value<<(16-n)) >> (16 - n)
}

// Decode splits an instruction word into its fields.
func Decode(word uint16) (ins Instruction) {
	ins = Instruction{
		Word:   word,
		Opcode: Opcode(bitRange(word, 15, 12)),
	}

	dr := int(bitRange(word, 11, 9))
	r86 := int(bitRange(word, 8, 6))

	switch ins.Opcode {
	case OP_BR:
		ins.N = bitRange(word, 11, 11) == 1
		ins.Z = bitRange(word, 10, 10) == 1
		ins.P = bitRange(word, 9, 9) == 1
		ins.PgOffset9 = bitRange(word, 8, 0)
	case OP_ADD, OP_AND:
		ins.Dr = dr
		ins.Sr1 = r86
		ins.Immediate = bitRange(word, 5, 5) == 1
		if ins.Immediate {
			ins.Imm5 = signExtend(bitRange(word, 4, 0), 5)
		} else {
			ins.Sr2 = int(bitRange(word, 2, 0))
		}
	case OP_LD, OP_LDI, OP_LEA:
		ins.Dr = dr
		ins.PgOffset9 = bitRange(word, 8, 0)
	case OP_ST, OP_STI:
		ins.Sr = dr
		ins.PgOffset9 = bitRange(word, 8, 0)
	case OP_JSR:
		ins.Link = bitRange(word, 11, 11) == 1
		ins.PgOffset9 = bitRange(word, 8, 0)
	case OP_LDR:
		ins.Dr = dr
		ins.BaseR = r86
		ins.Index6 = bitRange(word, 5, 0)
	case OP_STR:
		ins.Sr = dr
		ins.BaseR = r86
		ins.Index6 = bitRange(word, 5, 0)
	case OP_JSRR:
		ins.Link = bitRange(word, 11, 11) == 1
		ins.BaseR = r86
		ins.Index6 = bitRange(word, 5, 0)
	case OP_NOT:
		ins.Dr = dr
		ins.Sr1 = r86
	case OP_TRAP:
		ins.Vector = TrapVector(bitRange(word, 7, 0))
	case OP_RET, OP_DBUG:
		// No operands.
	}

	return
}

// Encode packs the instruction fields into an instruction word.
// Bits not used by the opcode are zero.
func (ins Instruction) Encode() (word uint16) {
	bit := func(b bool, pos uint) uint16 {
		if b {
			return 1 << pos
		}
		return 0
	}
	reg := func(r int, pos uint) uint16 {
		return uint16(r&7) << pos
	}

	word = uint16(ins.Opcode&0xf) << 12

	switch ins.Opcode {
	case OP_BR:
		word |= bit(ins.N, 11) | bit(ins.Z, 10) | bit(ins.P, 9) | ins.PgOffset9&0x1ff
	case OP_ADD, OP_AND:
		word |= reg(ins.Dr, 9) | reg(ins.Sr1, 6)
		if ins.Immediate {
			word |= 1<<5 | uint16(ins.Imm5)&0x1f
		} else {
			word |= reg(ins.Sr2, 0)
		}
	case OP_LD, OP_LDI, OP_LEA:
		word |= reg(ins.Dr, 9) | ins.PgOffset9&0x1ff
	case OP_ST, OP_STI:
		word |= reg(ins.Sr, 9) | ins.PgOffset9&0x1ff
	case OP_JSR:
		word |= bit(ins.Link, 11) | ins.PgOffset9&0x1ff
	case OP_LDR:
		word |= reg(ins.Dr, 9) | reg(ins.BaseR, 6) | ins.Index6&0x3f
	case OP_STR:
		word |= reg(ins.Sr, 9) | reg(ins.BaseR, 6) | ins.Index6&0x3f
	case OP_JSRR:
		word |= bit(ins.Link, 11) | reg(ins.BaseR, 6) | ins.Index6&0x3f
	case OP_NOT:
		word |= reg(ins.Dr, 9) | reg(ins.Sr1, 6)
	case OP_TRAP:
		word |= uint16(ins.Vector)
	}

	return
}

// Address returns the page-relative address of the instruction, given the
// incremented program counter.
func (ins Instruction) Address(pc uint16) uint16 {
	return (pc & memory.PAGE_MASK) | ins.PgOffset9
}

// Disassemble returns the instruction in assembly syntax. Page-relative
// operands are resolved against pc, the already incremented program counter.
func (ins Instruction) Disassemble(pc uint16) string {
	switch ins.Opcode {
	case OP_BR:
		if !(ins.N || ins.Z || ins.P) {
			return "NOP"
		}
		var cond strings.Builder
		for _, c := range []struct {
			set  bool
			name string
		}{{ins.N, "n"}, {ins.Z, "z"}, {ins.P, "p"}} {
			if c.set {
				cond.WriteString(c.name)
			}
		}
		return fmt.Sprintf("BR%v 0x%04x", cond.String(), ins.Address(pc))
	case OP_ADD, OP_AND:
		if ins.Immediate {
			return fmt.Sprintf("%v R%d,R%d,#%d", ins.Opcode, ins.Dr, ins.Sr1, ins.Imm5)
		}
		return fmt.Sprintf("%v R%d,R%d,R%d", ins.Opcode, ins.Dr, ins.Sr1, ins.Sr2)
	case OP_LD, OP_LDI, OP_LEA:
		return fmt.Sprintf("%v R%d,0x%04x", ins.Opcode, ins.Dr, ins.Address(pc))
	case OP_ST, OP_STI:
		return fmt.Sprintf("%v R%d,0x%04x", ins.Opcode, ins.Sr, ins.Address(pc))
	case OP_JSR:
		if ins.Link {
			return fmt.Sprintf("JSR 0x%04x", ins.Address(pc))
		}
		return fmt.Sprintf("JMP 0x%04x", ins.Address(pc))
	case OP_LDR:
		return fmt.Sprintf("LDR R%d,R%d,#%d", ins.Dr, ins.BaseR, ins.Index6)
	case OP_STR:
		return fmt.Sprintf("STR R%d,R%d,#%d", ins.Sr, ins.BaseR, ins.Index6)
	case OP_JSRR:
		if ins.Link {
			return fmt.Sprintf("JSRR R%d,#%d", ins.BaseR, ins.Index6)
		}
		return fmt.Sprintf("JMPR R%d,#%d", ins.BaseR, ins.Index6)
	case OP_NOT:
		return fmt.Sprintf("NOT R%d,R%d", ins.Dr, ins.Sr1)
	case OP_TRAP:
		return fmt.Sprintf("TRAP x%02X", uint8(ins.Vector))
	}

	// RET, DBUG
	return ins.Opcode.String()
}
