// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package cpu

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/ezrec/mmxi/memory"
)

// Predefined system equates
var sysEquate = map[string]int{
	"LINENO": 0,
}

// Trap routine aliases.
var trapAlias = map[string]TrapVector{
	"OUT":  TRAP_OUT,
	"PUTS": TRAP_PUTS,
	"IN":   TRAP_IN,
	"HALT": TRAP_HALT,
	"OUTN": TRAP_OUTN,
	"INN":  TRAP_INN,
	"RND":  TRAP_RND,
}

// Assembler is a two pass assembler for the MMXI machine.
//
// The first pass assigns addresses to labels and evaluates .EQU, .ORIG and
// .BLKW; the second pass encodes every statement. Symbols and predefines
// may be used as operands, and inside $(...) Starlark expressions.
type Assembler struct {
	Verbose bool // If set, verbosely logs the assembler actions.

	predefine map[string]string // Predefines
	Symbol    map[string]int    // Map of labels and equates to values.

	defined map[string]bool // Labels and equates defined by the source.

	lineNo int
	line   string
}

// Predefine defines a new equate or redefines an existing equate.
// Values that are not integers are ignored.
func (asm *Assembler) Predefine(equ string, value string) {
	if asm.predefine == nil {
		asm.predefine = map[string]string{equ: value}
	} else {
		asm.predefine[equ] = value
	}
}

// source is a parsed source line.
type source struct {
	lineNo int
	text   string
	line   *asmLine
	addr   int
	size   int
}

// Parse parses an input stream into a Program.
func (asm *Assembler) Parse(input io.Reader) (prog *Program, err error) {
	defer func() {
		if err != nil {
			prog = nil
			err = &ErrSyntax{LineNo: asm.lineNo, Line: asm.line, Err: err}
		}
	}()

	asm.lineNo = 0
	asm.line = ""
	asm.Symbol = map[string]int{}

	var lines []*source

	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		asm.lineNo++
		asm.line = scanner.Text()

		if asm.Verbose {
			log.Printf("asm: %v: %v", asm.lineNo, asm.line)
		}

		trimmed := strings.TrimSpace(asm.line)
		if len(trimmed) == 0 || trimmed[0] == ';' {
			continue
		}

		var line *asmLine
		line, err = asmParser.ParseString("", asm.line)
		if err != nil {
			return
		}

		if line.empty() {
			continue
		}

		lines = append(lines, &source{lineNo: asm.lineNo, text: asm.line, line: line})
	}
	err = scanner.Err()
	if err != nil {
		return
	}

	prog, err = asm.pass1(lines)
	if err != nil {
		return
	}

	err = asm.pass2(prog, lines)
	if err != nil {
		return
	}

	return
}

// at selects the line for error reporting and LINENO.
func (asm *Assembler) at(src *source) {
	asm.lineNo = src.lineNo
	asm.line = src.text
	asm.Symbol["LINENO"] = src.lineNo
}

// define adds a label or equate. Predefines may be shadowed once.
func (asm *Assembler) define(name string, value int) (err error) {
	if asm.defined[name] {
		err = ErrLabelDuplicate
		return
	}

	if asm.Verbose {
		log.Printf("asm: %v = 0x%04x", name, value)
	}

	asm.defined[name] = true
	asm.Symbol[name] = value
	return
}

// pass1 assigns addresses to every line, and defines every symbol.
func (asm *Assembler) pass1(lines []*source) (prog *Program, err error) {
	for key, str := range asm.predefine {
		value, perr := strconv.ParseInt(str, 0, 64)
		if perr != nil {
			// Ignore non-integer predefines.
			continue
		}
		asm.Symbol[key] = int(value)
	}

	asm.defined = map[string]bool{}
	for key, value := range sysEquate {
		asm.Symbol[key] = value
		asm.defined[key] = true
	}

	prog = &Program{}

	var addr int
	var orig, end bool

	for _, src := range lines {
		asm.at(src)
		line := src.line
		op := strings.ToUpper(line.Op)

		if end {
			err = ErrAfterEnd
			return
		}

		if !orig && op != ".ORIG" {
			err = ErrOrigMissing
			return
		}

		src.addr = addr

		switch op {
		case ".ORIG":
			if len(line.Labels) > 1 {
				err = ErrLabelMisplaced
				return
			}
		case ".EQU", ".END":
			if len(line.Labels) != 0 {
				err = ErrLabelMisplaced
				return
			}
		default:
			for _, label := range line.labels() {
				err = asm.define(label, addr)
				if err != nil {
					return
				}
			}
		}

		var size int
		switch op {
		case "":
			// Labels only, naming the next statement.
			if len(line.Operands) != 0 {
				err = ErrOpcodeInvalid
				return
			}
		case ".ORIG":
			if orig {
				err = ErrOrigDuplicate
				return
			}
			if len(line.Operands) != 1 {
				err = ErrOperandCount
				return
			}
			var value int
			value, err = asm.value(line.Operands[0])
			if err != nil {
				return
			}
			if value < 0 || value > memory.MAX_ADDR {
				err = ErrValueRange
				return
			}
			orig = true
			addr = value
			src.addr = addr
			prog.Origin = uint16(addr)
			if labels := line.labels(); len(labels) == 1 {
				prog.Name = labels[0]
				err = asm.define(labels[0], addr)
				if err != nil {
					return
				}
			}
		case ".EQU":
			if len(line.Operands) != 2 || line.Operands[0].Symbol == nil {
				err = ErrEquateSyntax
				return
			}
			name := *line.Operands[0].Symbol
			var value int
			value, err = asm.value(line.Operands[1])
			if err != nil {
				return
			}
			err = asm.define(name, value)
			if err != nil {
				return
			}
		case ".END":
			end = true
		case ".FILL":
			size = 1
		case ".STRZ":
			if len(line.Operands) != 1 {
				err = ErrOperandCount
				return
			}
			var text string
			text, err = asm.text(line.Operands[0])
			if err != nil {
				return
			}
			size = len(text) + 1
		case ".BLKW":
			if len(line.Operands) < 1 || len(line.Operands) > 2 {
				err = ErrOperandCount
				return
			}
			size, err = asm.value(line.Operands[0])
			if err != nil {
				return
			}
			if size < 0 {
				err = ErrValueRange
				return
			}
		default:
			size = 1
		}

		src.size = size
		addr += size
		if addr > memory.MAX_ADDR+1 || addr-int(prog.Origin) > memory.MAX_VALUE {
			err = ErrSegmentOverflow
			return
		}
	}

	if !orig {
		err = ErrOrigMissing
		return
	}

	if !end {
		err = ErrEndMissing
		return
	}

	prog.Length = addr - int(prog.Origin)
	if prog.Length == 0 {
		err = ErrSegmentEmpty
		return
	}

	return
}

// pass2 encodes every line.
func (asm *Assembler) pass2(prog *Program, lines []*source) (err error) {
	prog.Entry = prog.Origin

	for _, src := range lines {
		asm.at(src)
		line := src.line
		op := strings.ToUpper(line.Op)

		var words []uint16
		switch op {
		case "", ".ORIG", ".EQU":
			continue
		case ".END":
			if len(line.Operands) > 1 {
				err = ErrOperandCount
				return
			}
			if len(line.Operands) == 1 {
				var entry int
				entry, err = asm.value(line.Operands[0])
				if err != nil {
					return
				}
				if entry < int(prog.Origin) || entry >= int(prog.Origin)+prog.Length {
					err = ErrValueRange
					return
				}
				prog.Entry = uint16(entry)
			}
			continue
		case ".FILL":
			if len(line.Operands) != 1 {
				err = ErrOperandCount
				return
			}
			var value int
			value, err = asm.value(line.Operands[0])
			if err != nil {
				return
			}
			if value < -32768 || value > memory.MAX_VALUE {
				err = ErrValueRange
				return
			}
			words = []uint16{uint16(value)}
		case ".STRZ":
			var text string
			text, err = asm.text(line.Operands[0])
			if err != nil {
				return
			}
			for _, c := range []byte(text) {
				words = append(words, uint16(c))
			}
			words = append(words, 0)
		case ".BLKW":
			var fill int
			if len(line.Operands) == 2 {
				fill, err = asm.value(line.Operands[1])
				if err != nil {
					return
				}
				if fill < -32768 || fill > memory.MAX_VALUE {
					err = ErrValueRange
					return
				}
			}
			words = make([]uint16, src.size)
			for n := range words {
				words[n] = uint16(fill)
			}
		default:
			var ins Instruction
			ins, err = asm.instruction(op, line.Operands, uint16(src.addr+1))
			if err != nil {
				return
			}
			words = []uint16{ins.Encode()}
		}

		prog.Statements = append(prog.Statements, Statement{
			LineNo: src.lineNo,
			Line:   src.text,
			Addr:   uint16(src.addr),
			Words:  words,
		})
	}

	return
}

// instruction encodes a mnemonic and its operands. next is the address
// following the instruction, used for page-relative operands.
func (asm *Assembler) instruction(op string, operands []*asmOperand, next uint16) (ins Instruction, err error) {
	count := func(min, max int) bool {
		if len(operands) < min || len(operands) > max {
			err = ErrOperandCount
			return false
		}
		return true
	}

	if vector, ok := trapAlias[op]; ok {
		if count(0, 0) {
			ins = Instruction{Opcode: OP_TRAP, Vector: vector}
		}
		return
	}

	if strings.HasPrefix(op, "BR") {
		ins = Instruction{Opcode: OP_BR}
		conds := op[2:]
		if len(conds) == 0 {
			conds = "NZP"
		}
		for _, c := range conds {
			switch c {
			case 'N':
				ins.N = true
			case 'Z':
				ins.Z = true
			case 'P':
				ins.P = true
			default:
				err = ErrOpcodeInvalid
				return
			}
		}
		if !count(1, 1) {
			return
		}
		ins.PgOffset9, err = asm.pageOffset(operands[0], next)
		return
	}

	switch op {
	case "NOP":
		if count(0, 0) {
			ins = Instruction{Opcode: OP_BR}
		}
	case "ADD", "AND":
		ins.Opcode = OP_ADD
		if op == "AND" {
			ins.Opcode = OP_AND
		}
		if !count(3, 3) {
			return
		}
		ins.Dr, err = asm.register(operands[0])
		if err != nil {
			return
		}
		ins.Sr1, err = asm.register(operands[1])
		if err != nil {
			return
		}
		if operands[2].Register != nil {
			ins.Sr2, err = asm.register(operands[2])
			return
		}
		var imm int
		imm, err = asm.value(operands[2])
		if err != nil {
			return
		}
		if imm < -16 || imm > 15 {
			err = ErrValueRange
			return
		}
		ins.Immediate = true
		ins.Imm5 = int16(imm)
	case "NOT":
		ins.Opcode = OP_NOT
		if !count(2, 2) {
			return
		}
		ins.Dr, err = asm.register(operands[0])
		if err != nil {
			return
		}
		ins.Sr1, err = asm.register(operands[1])
	case "LD", "LDI", "LEA", "ST", "STI":
		ins.Opcode = map[string]Opcode{
			"LD":  OP_LD,
			"LDI": OP_LDI,
			"LEA": OP_LEA,
			"ST":  OP_ST,
			"STI": OP_STI,
		}[op]
		if !count(2, 2) {
			return
		}
		var reg int
		reg, err = asm.register(operands[0])
		if err != nil {
			return
		}
		if ins.Opcode == OP_ST || ins.Opcode == OP_STI {
			ins.Sr = reg
		} else {
			ins.Dr = reg
		}
		ins.PgOffset9, err = asm.pageOffset(operands[1], next)
	case "LDR", "STR":
		if !count(3, 3) {
			return
		}
		var reg int
		reg, err = asm.register(operands[0])
		if err != nil {
			return
		}
		if op == "LDR" {
			ins.Opcode = OP_LDR
			ins.Dr = reg
		} else {
			ins.Opcode = OP_STR
			ins.Sr = reg
		}
		ins.BaseR, err = asm.register(operands[1])
		if err != nil {
			return
		}
		ins.Index6, err = asm.index6(operands[2])
	case "JSR", "JMP":
		ins = Instruction{Opcode: OP_JSR, Link: op == "JSR"}
		if !count(1, 1) {
			return
		}
		ins.PgOffset9, err = asm.pageOffset(operands[0], next)
	case "JSRR", "JMPR":
		ins = Instruction{Opcode: OP_JSRR, Link: op == "JSRR"}
		if !count(1, 2) {
			return
		}
		ins.BaseR, err = asm.register(operands[0])
		if err != nil {
			return
		}
		if len(operands) == 2 {
			ins.Index6, err = asm.index6(operands[1])
		}
	case "RET":
		if count(0, 0) {
			ins = Instruction{Opcode: OP_RET}
		}
	case "DBUG":
		if count(0, 0) {
			ins = Instruction{Opcode: OP_DBUG}
		}
	case "TRAP":
		ins.Opcode = OP_TRAP
		if !count(1, 1) {
			return
		}
		var vector int
		vector, err = asm.value(operands[0])
		if err != nil {
			return
		}
		if vector < 0 || vector > 0xff {
			err = ErrValueRange
			return
		}
		ins.Vector = TrapVector(vector)
	default:
		err = ErrOpcodeInvalid
	}

	return
}

// register returns the register index of an operand.
func (asm *Assembler) register(operand *asmOperand) (reg int, err error) {
	if operand.Register == nil {
		err = ErrRegisterInvalid
		return
	}

	reg = int((*operand.Register)[1] - '0')
	return
}

// index6 returns an unsigned 6-bit index operand.
func (asm *Assembler) index6(operand *asmOperand) (index uint16, err error) {
	value, err := asm.value(operand)
	if err != nil {
		return
	}

	if value < 0 || value > 0x3f {
		err = ErrValueRange
		return
	}

	index = uint16(value)
	return
}

// pageOffset returns the 9-bit page offset of an address operand, which must
// be on the same page as next.
func (asm *Assembler) pageOffset(operand *asmOperand, next uint16) (offset uint16, err error) {
	value, err := asm.value(operand)
	if err != nil {
		return
	}

	if value < 0 || value > memory.MAX_ADDR {
		err = ErrValueRange
		return
	}

	addr := uint16(value)
	if memory.PageNumber(addr) != memory.PageNumber(next) {
		err = ErrPageOffset
		return
	}

	offset = addr &^ memory.PAGE_MASK
	return
}

// text returns the contents of a string literal operand.
func (asm *Assembler) text(operand *asmOperand) (text string, err error) {
	if operand.String == nil {
		err = ErrStringInvalid
		return
	}

	text, err = strconv.Unquote(*operand.String)
	if err != nil {
		err = ErrStringInvalid
		return
	}

	for _, c := range []byte(text) {
		if c == 0 || c > 0x7f {
			err = ErrStringInvalid
			return
		}
	}

	return
}

// value returns the integer value of an operand.
func (asm *Assembler) value(operand *asmOperand) (value int, err error) {
	switch {
	case operand.Number != nil:
		value, err = valueOf(*operand.Number)
	case operand.Char != nil:
		var text string
		text, err = strconv.Unquote(*operand.Char)
		if err != nil || len(text) != 1 {
			err = ErrParseNumber(*operand.Char)
			return
		}
		value = int(text[0])
	case operand.Expr != nil:
		expr := *operand.Expr
		value, err = asm.parenEval(expr[2 : len(expr)-1])
	case operand.Symbol != nil:
		var ok bool
		value, ok = asm.Symbol[*operand.Symbol]
		if !ok {
			err = ErrLabelMissing(*operand.Symbol)
		}
	default:
		err = ErrOperandType
	}

	return
}

// valueOf returns the value of a numeric literal.
//
//	#-12  #x1F  x1F  0x1F  -12
func valueOf(word string) (value int, err error) {
	text := strings.TrimPrefix(word, "#")

	var v64 int64
	switch {
	case strings.HasPrefix(text, "0x"), strings.HasPrefix(text, "0X"):
		v64, err = strconv.ParseInt(text[2:], 16, 32)
	case strings.HasPrefix(text, "x"), strings.HasPrefix(text, "X"):
		v64, err = strconv.ParseInt(text[1:], 16, 32)
	default:
		v64, err = strconv.ParseInt(text, 10, 32)
	}
	if err != nil {
		err = ErrParseNumber(word)
		return
	}

	value = int(v64)
	return
}

// parenEval does compile-time $(...) evaluations
func (asm *Assembler) parenEval(expr string) (value int, err error) {
	thread := starlark.Thread{}
	opts := syntax.FileOptions{}
	pred := starlark.StringDict{}
	for key, val := range asm.Symbol {
		pred[key] = starlark.MakeInt(val)
	}
	prog := "rc=" + expr + "\n"
	dict, err := starlark.ExecFileOptions(&opts, &thread, "expr", prog, pred)
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrParseExpression(expr), err)
		return
	}
	st_rc, ok := dict["rc"]
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int, ok := st_rc.(starlark.Int)
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	st_int64, ok := st_int.Int64()
	if !ok {
		err = ErrParseExpression(expr)
		return
	}
	value = int(st_int64)
	return
}
