package cpu

import (
	"bytes"
	stdio "io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ezrec/mmxi/io"
)

// fixedRandom always returns the same value.
type fixedRandom struct {
	value int
	n     int
}

func (fr *fixedRandom) IntN(n int) int {
	fr.n = n
	return fr.value
}

// newTestCpu creates a CPU with words loaded at origin, and the PC at origin.
func newTestCpu(origin uint16, words ...uint16) (cpu *Cpu) {
	cpu = NewCpu(nil)
	for n, word := range words {
		cpu.SetMemory(origin+uint16(n), word)
	}
	cpu.SetPc(origin)
	return
}

func diagCodes(err error) (codes []int) {
	for _, diag := range Diagnostics(err) {
		codes = append(codes, diag.Code)
	}
	return
}

func TestNewCpu(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	assert.NotNil(cpu.Memory)
	assert.Equal(uint16(0), cpu.Pc)
	assert.Equal(CCR_Z, cpu.Ccr)
	assert.Equal([8]uint16{}, cpu.Register)
	assert.False(cpu.Halted)
	assert.Equal("", cpu.LastInstruction)

	defines := map[string]string{}
	for key, value := range cpu.Defines() {
		defines[key] = value
	}
	assert.Equal("0x25", defines["TRAP_HALT"])
	assert.Equal("0x43", defines["TRAP_RND"])
}

func TestZeroCpu(t *testing.T) {
	assert := assert.New(t)

	cpu := &Cpu{}
	cpu.SetMemory(0, Instruction{Opcode: OP_ADD, Dr: 0, Sr1: 0, Immediate: true, Imm5: 3}.Encode())
	assert.NoError(cpu.Step())
	assert.Equal(uint16(3), cpu.Register[0])
	assert.Equal(CCR_P, cpu.Ccr)
	assert.Equal(1, cpu.Ticks)
}

func TestNotTwice(t *testing.T) {
	assert := assert.New(t)

	not := Instruction{Opcode: OP_NOT, Dr: 0, Sr1: 0}.Encode()
	cpu := newTestCpu(0x3000, not, not)

	for n := range 0x10000 {
		cpu.SetPc(0x3000)
		cpu.Register[0] = uint16(n)
		assert.NoError(cpu.Step())
		assert.Equal(^uint16(n), cpu.Register[0])
		assert.NoError(cpu.Step())
		if !assert.Equal(uint16(n), cpu.Register[0]) {
			return
		}
	}
}

func TestNotZero(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_NOT, Dr: 1, Sr1: 0}.Encode())
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0xffff), cpu.Register[1])
	assert.Equal(CCR_N, cpu.Ccr)
	assert.Equal("NOT R1,R0", cpu.LastInstruction)
}

func TestCcr(t *testing.T) {
	assert := assert.New(t)

	// ADD R1,R0,#0 copies R0 to R1.
	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_ADD, Dr: 1, Sr1: 0, Immediate: true}.Encode())

	for n := range 0x10000 {
		cpu.SetPc(0x3000)
		cpu.Register[0] = uint16(n)
		assert.NoError(cpu.Step())

		value := int16(n)
		expect := CCR_P
		switch {
		case value < 0:
			expect = CCR_N
		case value == 0:
			expect = CCR_Z
		}
		if !assert.Equal(expect, cpu.Ccr, "%d", value) {
			return
		}
	}
}

func TestAddOverflow(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		a, b     uint16
		sum      uint16
		overflow bool
	}){
		{1, 2, 3, false},
		{0x7fff, 0x0001, 0x8000, true},
		{0x8000, 0xffff, 0x7fff, true},
		{0x8000, 0x8000, 0x0000, true},
		{0x7fff, 0xffff, 0x7ffe, false},
		{0xffff, 0xffff, 0xfffe, false},
		{0x4000, 0x4000, 0x8000, true},
		{0x8000, 0x7fff, 0xffff, false},
	}

	add := Instruction{Opcode: OP_ADD, Dr: 0, Sr1: 1, Sr2: 2}.Encode()
	for _, entry := range table {
		cpu := newTestCpu(0x3000, add)
		cpu.Register[1] = entry.a
		cpu.Register[2] = entry.b
		err := cpu.Step()
		assert.Equal(entry.sum, cpu.Register[0])
		if entry.overflow {
			assert.ErrorIs(err, ErrOverflow)
			assert.Equal([]int{DIAG_OVERFLOW}, diagCodes(err))
		} else {
			assert.NoError(err)
		}
	}
}

func TestAddOverflowMixedSigns(t *testing.T) {
	assert := assert.New(t)

	add := Instruction{Opcode: OP_ADD, Dr: 0, Sr1: 1, Sr2: 2}.Encode()
	cpu := newTestCpu(0x3000, add)
	for a := 0; a < 0x8000; a += 61 {
		for b := 0x8000; b < 0x10000; b += 67 {
			cpu.SetPc(0x3000)
			cpu.Register[1] = uint16(a)
			cpu.Register[2] = uint16(b)
			if !assert.NoError(cpu.Step()) {
				return
			}
		}
	}
}

func TestAddImmediate(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000,
		Instruction{Opcode: OP_ADD, Dr: 2, Sr1: 1, Immediate: true, Imm5: 1}.Encode(),
		Instruction{Opcode: OP_ADD, Dr: 3, Sr1: 4, Immediate: true, Imm5: -16}.Encode(),
	)
	cpu.Register[1] = 0x7fff
	cpu.Register[4] = 0x8000

	err := cpu.Step()
	assert.ErrorIs(err, ErrOverflow)
	assert.Equal(uint16(0x8000), cpu.Register[2])
	assert.Equal(CCR_N, cpu.Ccr)
	assert.Equal("ADD R2,R1,#1", cpu.LastInstruction)

	err = cpu.Step()
	assert.ErrorIs(err, ErrOverflow)
	assert.Equal(uint16(0x7ff0), cpu.Register[3])
	assert.Equal(CCR_P, cpu.Ccr)
}

func TestAnd(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000,
		Instruction{Opcode: OP_AND, Dr: 0, Sr1: 1, Sr2: 2}.Encode(),
		Instruction{Opcode: OP_AND, Dr: 0, Sr1: 1, Immediate: true, Imm5: -2}.Encode(),
		Instruction{Opcode: OP_AND, Dr: 0, Sr1: 1, Immediate: true, Imm5: 0}.Encode(),
	)
	cpu.Register[1] = 0xf0f3
	cpu.Register[2] = 0x0ff0

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x00f0), cpu.Register[0])
	assert.Equal(CCR_P, cpu.Ccr)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0xf0f2), cpu.Register[0])
	assert.Equal(CCR_N, cpu.Ccr)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0), cpu.Register[0])
	assert.Equal(CCR_Z, cpu.Ccr)
}

func TestLoadStore(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000,
		Instruction{Opcode: OP_LD, Dr: 1, PgOffset9: 0x10}.Encode(),
		Instruction{Opcode: OP_LDI, Dr: 2, PgOffset9: 0x11}.Encode(),
		Instruction{Opcode: OP_LEA, Dr: 3, PgOffset9: 0x12}.Encode(),
		Instruction{Opcode: OP_LDR, Dr: 4, BaseR: 3, Index6: 1}.Encode(),
		Instruction{Opcode: OP_ST, Sr: 1, PgOffset9: 0x20}.Encode(),
		Instruction{Opcode: OP_STI, Sr: 1, PgOffset9: 0x11}.Encode(),
		Instruction{Opcode: OP_STR, Sr: 4, BaseR: 3, Index6: 2}.Encode(),
	)
	cpu.SetMemory(0x3010, 0x8001)
	cpu.SetMemory(0x3011, 0x4000)
	cpu.SetMemory(0x3013, 0x1234)
	cpu.SetMemory(0x4000, 0x0055)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x8001), cpu.Register[1])
	assert.Equal(CCR_N, cpu.Ccr)
	assert.Equal("LD R1,0x3010", cpu.LastInstruction)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0055), cpu.Register[2])
	assert.Equal(CCR_P, cpu.Ccr)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3012), cpu.Register[3])
	assert.Equal(CCR_P, cpu.Ccr)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x1234), cpu.Register[4])

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x8001), cpu.GetMemory(0x3020))

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x8001), cpu.GetMemory(0x4000))

	ccr := cpu.Ccr
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x1234), cpu.GetMemory(0x3014))
	assert.Equal(ccr, cpu.Ccr)
	assert.Equal(uint16(0x3007), cpu.Pc)
}

func TestBaseIndexWraps(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_LDR, Dr: 0, BaseR: 1, Index6: 2}.Encode())
	cpu.Register[1] = 0xffff
	cpu.SetMemory(0x0001, 0x0777)

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x0777), cpu.Register[0])
}

func TestBranch(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		ccr     Ccr
		n, z, p bool
		taken   bool
	}){
		{CCR_N, true, false, false, true},
		{CCR_N, false, true, true, false},
		{CCR_Z, false, true, false, true},
		{CCR_Z, true, false, true, false},
		{CCR_P, false, false, true, true},
		{CCR_P, true, true, false, false},
		{CCR_P, false, false, false, false},
		{CCR_Z, true, true, true, true},
	}

	for _, entry := range table {
		ins := Instruction{Opcode: OP_BR, N: entry.n, Z: entry.z, P: entry.p, PgOffset9: 0x40}
		cpu := newTestCpu(0x3000, ins.Encode())
		cpu.Ccr = entry.ccr
		assert.NoError(cpu.Step())
		if entry.taken {
			assert.Equal(uint16(0x3040), cpu.Pc, "%+v", entry)
			assert.Equal(ins.Disassemble(0x3001), cpu.LastInstruction)
		} else {
			assert.Equal(uint16(0x3001), cpu.Pc, "%+v", entry)
			assert.Equal("NOP", cpu.LastInstruction)
		}
		assert.Equal(entry.ccr, cpu.Ccr)
	}
}

func TestJsr(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_JSR, Link: true, PgOffset9: 0x80}.Encode())
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3001), cpu.Register[7])
	assert.Equal(uint16(0x3080), cpu.Pc)
	assert.Equal("JSR 0x3080", cpu.LastInstruction)

	cpu = newTestCpu(0x3000, Instruction{Opcode: OP_JSR, PgOffset9: 0x80}.Encode())
	cpu.Register[7] = 0xbeef
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0xbeef), cpu.Register[7])
	assert.Equal(uint16(0x3080), cpu.Pc)
	assert.Equal("JMP 0x3080", cpu.LastInstruction)
}

func TestJsrr(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_JSRR, Link: true, BaseR: 2, Index6: 4}.Encode())
	cpu.Register[2] = 0x5000
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3001), cpu.Register[7])
	assert.Equal(uint16(0x5004), cpu.Pc)

	cpu = newTestCpu(0x3000, Instruction{Opcode: OP_JSRR, BaseR: 2, Index6: 4}.Encode())
	cpu.Register[2] = 0x5000
	cpu.Register[7] = 0xbeef
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0xbeef), cpu.Register[7])
	assert.Equal(uint16(0x5004), cpu.Pc)

	// The link is stored before the base register is read.
	cpu = newTestCpu(0x3000, Instruction{Opcode: OP_JSRR, Link: true, BaseR: 7, Index6: 2}.Encode())
	cpu.Register[7] = 0x5000
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3001), cpu.Register[7])
	assert.Equal(uint16(0x3003), cpu.Pc)
}

func TestRet(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_RET}.Encode())
	cpu.Register[7] = 0x1234
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x1234), cpu.Pc)
	assert.Equal("RET", cpu.LastInstruction)
}

func TestDbug(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_DBUG}.Encode())
	cpu.Register[3] = 0x42
	cpu.Ccr = CCR_P

	var dumped *Cpu
	cpu.DebugDump = func(c *Cpu) { dumped = c }

	assert.NoError(cpu.Step())
	assert.Equal(cpu, dumped)
	assert.Equal("DBUG", cpu.LastInstruction)
	assert.Equal(uint16(0x42), cpu.Register[3])
	assert.Equal(CCR_P, cpu.Ccr)
	assert.Equal(uint16(0x3001), cpu.Pc)
}

func TestPageBoundary(t *testing.T) {
	assert := assert.New(t)

	ld := Instruction{Opcode: OP_LD, Dr: 0, PgOffset9: 5}.Encode()

	cpu := newTestCpu(0x31ff, ld)
	cpu.SetMemory(0x3205, 0x0099)
	err := cpu.Step()
	assert.ErrorIs(err, ErrPageBoundary)
	diags := Diagnostics(err)
	if assert.Len(diags, 1) {
		assert.Equal(DIAG_PAGE_BOUNDARY, diags[0].Code)
		assert.Equal(uint16(0x31ff), diags[0].Pc)
	}
	assert.Equal(uint16(0x0099), cpu.Register[0])

	cpu = newTestCpu(0x31fe, ld)
	assert.NoError(cpu.Step())

	// An untaken branch never forms its address.
	cpu = newTestCpu(0x31ff, Instruction{Opcode: OP_BR, N: true, PgOffset9: 5}.Encode())
	assert.NoError(cpu.Step())

	cpu = newTestCpu(0x31ff, Instruction{Opcode: OP_BR, Z: true, PgOffset9: 5}.Encode())
	assert.ErrorIs(cpu.Step(), ErrPageBoundary)
	assert.Equal(uint16(0x3205), cpu.Pc)
}

func TestPcWrap(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0xffff)
	err := cpu.Step()
	assert.ErrorIs(err, ErrPcWrap)
	assert.Equal([]int{DIAG_PC_WRAP}, diagCodes(err))
	assert.Equal(uint16(0), cpu.Pc)
	assert.Equal("NOP", cpu.LastInstruction)

	cpu = newTestCpu(0xffff, Instruction{Opcode: OP_LEA, Dr: 1, PgOffset9: 7}.Encode())
	err = cpu.Step()
	assert.Equal([]int{DIAG_PC_WRAP, DIAG_PAGE_BOUNDARY}, diagCodes(err))
	assert.Equal(uint16(7), cpu.Register[1])
	for _, diag := range Diagnostics(err) {
		assert.Equal(uint16(0xffff), diag.Pc)
		assert.Contains(diag.Error(), "0xffff")
	}
}

func TestTrapOutput(t *testing.T) {
	assert := assert.New(t)

	output := &bytes.Buffer{}
	cpu := newTestCpu(0x3000,
		Instruction{Opcode: OP_TRAP, Vector: TRAP_OUT}.Encode(),
		Instruction{Opcode: OP_TRAP, Vector: TRAP_PUTS}.Encode(),
		Instruction{Opcode: OP_TRAP, Vector: TRAP_OUTN}.Encode(),
	)
	cpu.Channel = &io.Tape{Output: output}

	cpu.Register[0] = 0x0141
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3001), cpu.Register[7])
	assert.Equal("TRAP x21", cpu.LastInstruction)

	for n, c := range []uint16{'h', 'i', 0x0100, 'x'} {
		cpu.SetMemory(0x4000+uint16(n), c)
	}
	cpu.Register[0] = 0x4000
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3002), cpu.Register[7])

	cpu.Register[0] = 0xfff6
	assert.NoError(cpu.Step())
	assert.Equal(uint16(0x3003), cpu.Register[7])

	assert.Equal("Ahi-10", output.String())
}

func TestTrapIn(t *testing.T) {
	assert := assert.New(t)

	in := Instruction{Opcode: OP_TRAP, Vector: TRAP_IN}.Encode()
	cpu := newTestCpu(0x3000, in, in, in)
	cpu.Channel = &io.Tape{Input: strings.NewReader("Zed\n\n")}

	assert.NoError(cpu.Step())
	assert.Equal(uint16('Z'), cpu.Register[0])
	assert.Equal(CCR_P, cpu.Ccr)
	assert.Equal(uint16(0x3001), cpu.Register[7])

	cpu.Register[0] = 0xffff
	err := cpu.Step()
	assert.ErrorIs(err, io.ErrInputCharacter)
	assert.Equal([]int{DIAG_INPUT_CHARACTER}, diagCodes(err))
	assert.Equal(uint16(0xffff), cpu.Register[0])
	assert.Equal(CCR_N, cpu.Ccr)
	assert.Equal(uint16(0x3002), cpu.Register[7])

	err = cpu.Step()
	assert.ErrorIs(err, io.ErrInputCharacter)
	assert.ErrorIs(err, stdio.EOF)
}

func TestTrapInn(t *testing.T) {
	assert := assert.New(t)

	inn := Instruction{Opcode: OP_TRAP, Vector: TRAP_INN}.Encode()
	cpu := newTestCpu(0x3000, inn, inn, inn, inn)
	cpu.Channel = &io.Tape{Input: strings.NewReader("-5\nabc\n40000\n")}

	assert.NoError(cpu.Step())
	assert.Equal(uint16(0xfffb), cpu.Register[0])
	assert.Equal(CCR_N, cpu.Ccr)

	cpu.Register[0] = 7
	err := cpu.Step()
	assert.ErrorIs(err, io.ErrInputInteger)
	assert.Equal([]int{DIAG_INPUT_INTEGER}, diagCodes(err))
	assert.Equal(uint16(7), cpu.Register[0])
	assert.Equal(CCR_N, cpu.Ccr)

	err = cpu.Step()
	assert.ErrorIs(err, io.ErrInputRange)
	assert.Equal([]int{DIAG_INPUT_INTEGER}, diagCodes(err))
	assert.Equal(uint16(40000), cpu.Register[0])
	assert.Equal(CCR_N, cpu.Ccr)

	err = cpu.Step()
	assert.ErrorIs(err, io.ErrInputInteger)
	assert.ErrorIs(err, stdio.EOF)
	assert.Equal(uint16(0x3004), cpu.Register[7])
}

func TestTrapRnd(t *testing.T) {
	assert := assert.New(t)

	table := [](struct {
		value int
		r0    uint16
		ccr   Ccr
	}){
		{0, 0x8000, CCR_N},
		{32768, 0, CCR_Z},
		{65535, 0x7fff, CCR_P},
	}

	for _, entry := range table {
		random := &fixedRandom{value: entry.value}
		cpu := newTestCpu(0x3000, Instruction{Opcode: OP_TRAP, Vector: TRAP_RND}.Encode())
		cpu.Random = random
		assert.NoError(cpu.Step())
		assert.Equal(65536, random.n)
		assert.Equal(entry.r0, cpu.Register[0])
		assert.Equal(entry.ccr, cpu.Ccr)
	}

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_TRAP, Vector: TRAP_RND}.Encode())
	assert.NoError(cpu.Step())
}

func TestTrapUnsupported(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_TRAP, Vector: 0x99}.Encode())
	cpu.Register[0] = 0x1234
	err := cpu.Step()
	assert.ErrorIs(err, ErrTrapVector)
	assert.Equal([]int{DIAG_TRAP_VECTOR}, diagCodes(err))
	assert.Equal(uint16(0x1234), cpu.Register[0])
	assert.Equal(uint16(0x3001), cpu.Register[7])
	assert.False(cpu.Halted)
	assert.Equal("TRAP x99", cpu.LastInstruction)
}

func TestHalt(t *testing.T) {
	assert := assert.New(t)

	cpu := newTestCpu(0x3000, Instruction{Opcode: OP_TRAP, Vector: TRAP_HALT}.Encode())
	assert.NoError(cpu.Step())
	assert.True(cpu.Halted)
	assert.Equal(uint16(0x3001), cpu.Register[7])
	assert.Equal("TRAP x25", cpu.LastInstruction)

	assert.PanicsWithValue(ErrHalted, func() { _ = cpu.Step() })

	cpu.Reset()
	assert.False(cpu.Halted)
	assert.Equal(uint16(0), cpu.Pc)
	assert.Equal(uint16(0), cpu.Register[7])
	assert.Equal(0, cpu.Ticks)
	assert.Equal(uint16(0xf025), cpu.GetMemory(0x3000))
}

func TestExecute(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.SetPc(0x3201)
	err := cpu.Execute(Instruction{Opcode: OP_LEA, Dr: 2, PgOffset9: 9})
	assert.NoError(err)
	assert.Equal(uint16(0x3209), cpu.Register[2])
	assert.Equal(0, cpu.Ticks)

	cpu.SetPc(0x3200)
	err = cpu.Execute(Instruction{Opcode: OP_LEA, Dr: 2, PgOffset9: 9})
	assert.ErrorIs(err, ErrPageBoundary)
}

func TestString(t *testing.T) {
	assert := assert.New(t)

	cpu := NewCpu(nil)
	cpu.Pc = 0x3000
	cpu.Register[5] = 0xfffe
	text := cpu.String()
	assert.Contains(text, "   pc: 3000\n")
	assert.Contains(text, "  ccr: Z\n")
	assert.Contains(text, "   r5: FFFE     -2\n")
	assert.Contains(text, " halt: false\n")
}
