// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"errors"
	"fmt"
	"iter"
	"log"
	"maps"
	"math/rand/v2"

	"github.com/ezrec/mmxi/io"
	"github.com/ezrec/mmxi/memory"
)

// Random is the source of the RND trap.
type Random interface {
	// IntN returns a uniform value in [0, n).
	IntN(n int) int
}

type globalRandom struct{}

func (globalRandom) IntN(n int) int {
	return rand.IntN(n)
}

var _cpu_defines = map[string]string{
	"TRAP_OUT":  fmt.Sprintf("0x%02x", uint8(TRAP_OUT)),
	"TRAP_PUTS": fmt.Sprintf("0x%02x", uint8(TRAP_PUTS)),
	"TRAP_IN":   fmt.Sprintf("0x%02x", uint8(TRAP_IN)),
	"TRAP_HALT": fmt.Sprintf("0x%02x", uint8(TRAP_HALT)),
	"TRAP_OUTN": fmt.Sprintf("0x%02x", uint8(TRAP_OUTN)),
	"TRAP_INN":  fmt.Sprintf("0x%02x", uint8(TRAP_INN)),
	"TRAP_RND":  fmt.Sprintf("0x%02x", uint8(TRAP_RND)),
}

// Cpu is the simulation context for the MMXI processor.
type Cpu struct {
	Verbose bool // Set to enable verbose logging.

	Memory    *memory.Memory // Address space. Created on first use if nil.
	Channel   io.Channel     // Trap I/O. If nil, output is discarded and input is empty.
	Random    Random         // RND trap source. If nil, math/rand/v2 is used.
	DebugDump func(*Cpu)     // Called by the DBUG opcode, if set.

	Pc              uint16    // Program counter.
	Ccr             Ccr       // Condition code register.
	Register        [8]uint16 // Register bank.
	Halted          bool      // Set by the HALT trap.
	LastInstruction string    // Disassembly of the last executed instruction.
	Ticks           int       // Instructions executed since reset.

	diagnostics []error // Diagnostics raised by the executing instruction.
}

// NewCpu creates a new CPU attached to an address space.
func NewCpu(mem *memory.Memory) (cpu *Cpu) {
	if mem == nil {
		mem = memory.NewMemory()
	}

	cpu = &Cpu{
		Memory: mem,
	}

	return
}

// Defines for the cpu
func (cpu *Cpu) Defines() iter.Seq2[string, string] {
	return maps.All(_cpu_defines)
}

// String returns the current CPU state as a string.
func (cpu *Cpu) String() (text string) {
	regs := []string{
		"pc",
		"ccr",
		"r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7",
		"halt",
	}
	for _, reg := range regs {
		var strval string
		switch reg {
		case "pc":
			strval = fmt.Sprintf("%04X", cpu.Pc)
		case "ccr":
			strval = cpu.Ccr.String()
		case "r0", "r1", "r2", "r3", "r4", "r5", "r6", "r7":
			val := cpu.Register[byte(reg[1]-'0')]
			strval = fmt.Sprintf("%04X %6d", val, int16(val))
		case "halt":
			strval = "false"
			if cpu.Halted {
				strval = "true"
			}
		}
		text += fmt.Sprintf("% 5s: %v\n", reg, strval)
	}

	return
}

// Reset the CPU state.
// - Clears the registers and the halted flag.
// - Sets the PC to 0 and the CCR to Z.
// - Zeros the tick counter.
//
// Memory is not modified.
func (cpu *Cpu) Reset() {
	if cpu.Verbose {
		log.Printf("cpu: reset")
	}

	cpu.Pc = 0
	cpu.Ccr = CCR_Z
	clear(cpu.Register[:])
	cpu.Halted = false
	cpu.LastInstruction = ""
	cpu.Ticks = 0
	cpu.diagnostics = nil
}

func (cpu *Cpu) memory() *memory.Memory {
	if cpu.Memory == nil {
		cpu.Memory = memory.NewMemory()
	}
	return cpu.Memory
}

func (cpu *Cpu) channel() io.Channel {
	if cpu.Channel == nil {
		return &io.Tape{}
	}
	return cpu.Channel
}

func (cpu *Cpu) random() Random {
	if cpu.Random == nil {
		return globalRandom{}
	}
	return cpu.Random
}

// GetMemory returns the word at addr.
func (cpu *Cpu) GetMemory(addr uint16) uint16 {
	return cpu.memory().Read(addr)
}

// SetMemory sets the word at addr.
func (cpu *Cpu) SetMemory(addr uint16, value uint16) {
	cpu.memory().Write(addr, int(value))
}

// SetPc sets the program counter.
func (cpu *Cpu) SetPc(pc uint16) {
	cpu.Pc = pc
}

// report records a diagnostic against the executing instruction.
func (cpu *Cpu) report(code int, err error) {
	diag := &Diagnostic{Code: code, Pc: cpu.Pc - 1, Err: err}
	if cpu.Verbose {
		log.Printf("cpu: %v", diag)
	}
	cpu.diagnostics = append(cpu.diagnostics, diag)
}

// Step executes a single instruction cycle. The returned error, if any,
// joins the Diagnostic errors raised by the instruction; the instruction
// has still taken full effect.
//
// Step panics with ErrHalted if the machine is halted.
func (cpu *Cpu) Step() (err error) {
	if cpu.Halted {
		panic(ErrHalted)
	}

	cpu.diagnostics = nil

	word := cpu.memory().Read(cpu.Pc)
	cpu.Pc++
	if cpu.Pc == 0 {
		cpu.report(DIAG_PC_WRAP, ErrPcWrap)
	}

	ins := Decode(word)
	if cpu.Verbose {
		log.Printf("cpu: %04x: %04x %v", cpu.Pc-1, word, ins.Disassemble(cpu.Pc))
	}

	cpu.execute(ins)
	cpu.Ticks++

	err = errors.Join(cpu.diagnostics...)
	cpu.diagnostics = nil

	return
}

// Execute executes a single decoded instruction, as if it had just been
// fetched from the address before the PC.
func (cpu *Cpu) Execute(ins Instruction) (err error) {
	cpu.diagnostics = nil
	cpu.execute(ins)
	err = errors.Join(cpu.diagnostics...)
	cpu.diagnostics = nil
	return
}

func (cpu *Cpu) execute(ins Instruction) {
	mem := cpu.memory()

	cpu.LastInstruction = ins.Disassemble(cpu.Pc)

	switch ins.Opcode {
	case OP_BR:
		if (ins.N && cpu.Ccr == CCR_N) || (ins.Z && cpu.Ccr == CCR_Z) || (ins.P && cpu.Ccr == CCR_P) {
			cpu.Pc = cpu.offsetAddress(ins)
		} else {
			cpu.LastInstruction = "NOP"
		}
	case OP_ADD:
		a := cpu.Register[ins.Sr1]
		b := cpu.operand(ins)
		sum := a + b
		if (a^b)&0x8000 == 0 && (a^sum)&0x8000 != 0 {
			cpu.report(DIAG_OVERFLOW, ErrOverflow)
		}
		cpu.setRegister(ins.Dr, sum)
	case OP_AND:
		cpu.setRegister(ins.Dr, cpu.Register[ins.Sr1]&cpu.operand(ins))
	case OP_NOT:
		cpu.setRegister(ins.Dr, ^cpu.Register[ins.Sr1])
	case OP_LD:
		cpu.setRegister(ins.Dr, mem.Read(cpu.offsetAddress(ins)))
	case OP_LDI:
		cpu.setRegister(ins.Dr, mem.Read(mem.Read(cpu.offsetAddress(ins))))
	case OP_LDR:
		cpu.setRegister(ins.Dr, mem.Read(cpu.Register[ins.BaseR]+ins.Index6))
	case OP_LEA:
		cpu.setRegister(ins.Dr, cpu.offsetAddress(ins))
	case OP_ST:
		mem.Write(cpu.offsetAddress(ins), int(cpu.Register[ins.Sr]))
	case OP_STI:
		mem.Write(mem.Read(cpu.offsetAddress(ins)), int(cpu.Register[ins.Sr]))
	case OP_STR:
		mem.Write(cpu.Register[ins.BaseR]+ins.Index6, int(cpu.Register[ins.Sr]))
	case OP_JSR:
		addr := cpu.offsetAddress(ins)
		if ins.Link {
			cpu.Register[7] = cpu.Pc
		}
		cpu.Pc = addr
	case OP_JSRR:
		if ins.Link {
			cpu.Register[7] = cpu.Pc
		}
		cpu.Pc = cpu.Register[ins.BaseR] + ins.Index6
	case OP_RET:
		cpu.Pc = cpu.Register[7]
	case OP_TRAP:
		cpu.trap(ins.Vector)
	case OP_DBUG:
		if cpu.DebugDump != nil {
			cpu.DebugDump(cpu)
		}
	}
}

// operand returns the second source of ADD and AND.
func (cpu *Cpu) operand(ins Instruction) uint16 {
	if ins.Immediate {
		return uint16(ins.Imm5)
	}
	return cpu.Register[ins.Sr2]
}

// offsetAddress returns the page-relative address of the instruction,
// reporting when the PC has moved off the page of the instruction.
func (cpu *Cpu) offsetAddress(ins Instruction) uint16 {
	if memory.PageNumber(cpu.Pc) != memory.PageNumber(cpu.Pc-1) {
		cpu.report(DIAG_PAGE_BOUNDARY, ErrPageBoundary)
	}
	return ins.Address(cpu.Pc)
}

// setRegister sets a register, and the CCR from its signed value.
func (cpu *Cpu) setRegister(reg int, value uint16) {
	cpu.Register[reg] = value
	cpu.setCcr(reg)
}

func (cpu *Cpu) setCcr(reg int) {
	value := int16(cpu.Register[reg])
	switch {
	case value < 0:
		cpu.Ccr = CCR_N
	case value == 0:
		cpu.Ccr = CCR_Z
	default:
		cpu.Ccr = CCR_P
	}
}

// trap executes a trap routine. R7 is always set to the PC afterwards.
func (cpu *Cpu) trap(vector TrapVector) {
	ch := cpu.channel()

	switch vector {
	case TRAP_OUT:
		err := ch.EmitChar(byte(cpu.Register[0]))
		if err != nil {
			cpu.report(DIAG_OUTPUT, errors.Join(ErrOutput, err))
		}
	case TRAP_PUTS:
		var text []byte
		addr := cpu.Register[0]
		for range memory.MAX_ADDR + 1 {
			c := byte(cpu.memory().Read(addr))
			if c == 0 {
				break
			}
			text = append(text, c)
			addr++
		}
		err := ch.EmitString(string(text))
		if err != nil {
			cpu.report(DIAG_OUTPUT, errors.Join(ErrOutput, err))
		}
	case TRAP_IN:
		c, err := ch.ReadChar()
		if err != nil {
			if !errors.Is(err, io.ErrInputCharacter) {
				err = errors.Join(io.ErrInputCharacter, err)
			}
			cpu.report(DIAG_INPUT_CHARACTER, err)
		} else {
			cpu.Register[0] = uint16(c)
		}
		cpu.setCcr(0)
	case TRAP_HALT:
		cpu.Halted = true
	case TRAP_OUTN:
		err := ch.EmitDecimal(int16(cpu.Register[0]))
		if err != nil {
			cpu.report(DIAG_OUTPUT, errors.Join(ErrOutput, err))
		}
	case TRAP_INN:
		value, err := ch.ReadInt16()
		switch {
		case errors.Is(err, io.ErrInputRange):
			cpu.report(DIAG_INPUT_INTEGER, err)
			cpu.setRegister(0, uint16(value))
		case err != nil:
			if !errors.Is(err, io.ErrInputInteger) {
				err = errors.Join(io.ErrInputInteger, err)
			}
			cpu.report(DIAG_INPUT_INTEGER, err)
		default:
			cpu.setRegister(0, uint16(value))
		}
	case TRAP_RND:
		cpu.setRegister(0, uint16(cpu.random().IntN(memory.MAX_VALUE+1)-(memory.MAX_VALUE+1)/2))
	default:
		cpu.report(DIAG_TRAP_VECTOR, ErrTrapVector)
	}

	cpu.Register[7] = cpu.Pc
}
