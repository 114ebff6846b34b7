package cpu

import (
	"errors"

	"github.com/ezrec/mmxi/translate"
)

var f = translate.From

// Diagnostic codes.
const (
	DIAG_INPUT_CHARACTER = 1  // IN trap did not receive a character.
	DIAG_INPUT_INTEGER   = 2  // INN trap did not receive a 16-bit integer.
	DIAG_TRAP_VECTOR     = 3  // Unsupported trap vector.
	DIAG_OUTPUT          = 4  // Output channel write failed.
	DIAG_PAGE_BOUNDARY   = 50 // Page-relative operand crosses into the next page.
	DIAG_PC_WRAP         = 51 // PC incremented past the highest address.
	DIAG_OVERFLOW        = 52 // Signed overflow during addition.
)

var (
	// Cpu errors
	ErrHalted = errors.New(f("machine halted"))

	// Cpu diagnostics
	ErrPageBoundary = errors.New(f("instruction is the last word of its page, operand address is on the next page"))
	ErrPcWrap       = errors.New(f("maximum address exceeded, PC reset to 0"))
	ErrOverflow     = errors.New(f("overflow during addition"))
	ErrTrapVector   = errors.New(f("unsupported trap vector"))
	ErrOutput       = errors.New(f("output failed"))

	// Assembler errors
	ErrEquateSyntax    = errors.New(f(".EQU syntax"))
	ErrLabelDuplicate  = errors.New(f("label duplicated"))
	ErrLabelMisplaced  = errors.New(f("label not permitted here"))
	ErrOrigMissing     = errors.New(f(".ORIG missing"))
	ErrOrigDuplicate   = errors.New(f(".ORIG duplicated"))
	ErrEndMissing      = errors.New(f(".END missing"))
	ErrAfterEnd        = errors.New(f("statement after .END"))
	ErrOpcodeInvalid   = errors.New(f("opcode invalid"))
	ErrOperandCount    = errors.New(f("wrong number of operands"))
	ErrRegisterInvalid = errors.New(f("register invalid"))
	ErrValueRange      = errors.New(f("value out of range"))
	ErrPageOffset      = errors.New(f("address not on the current page"))
	ErrSegmentOverflow = errors.New(f("segment exceeds the address space"))
	ErrSegmentEmpty    = errors.New(f("segment is empty"))
	ErrStringInvalid   = errors.New(f("string invalid"))
	ErrOperandType     = errors.New(f("operand type invalid"))
)

// Diagnostic is a non-fatal condition raised while executing an instruction.
type Diagnostic struct {
	Code int    // Diagnostic code, one of DIAG_*.
	Pc   uint16 // Address of the instruction.
	Err  error
}

func (diag *Diagnostic) Error() string {
	return f("warning %03d at 0x%04x: %v", diag.Code, diag.Pc, diag.Err)
}

func (diag *Diagnostic) Unwrap() error {
	return diag.Err
}

// Diagnostics splits an error returned by Step into its diagnostics.
func Diagnostics(err error) (diags []*Diagnostic) {
	if err == nil {
		return
	}

	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, err := range joined.Unwrap() {
			diags = append(diags, Diagnostics(err)...)
		}
		return
	}

	var diag *Diagnostic
	if errors.As(err, &diag) {
		diags = append(diags, diag)
	}

	return
}

type ErrLabelMissing string

func (el ErrLabelMissing) Error() string {
	return f("label %v missing", string(el))
}

type ErrParseNumber string

func (err ErrParseNumber) Error() string {
	return f("'%v' is not a number", string(err))
}

type ErrParseExpression string

func (err ErrParseExpression) Error() string {
	return f("$(%v) is not a valid expression", string(err))
}

// ErrSyntax indicates the source line of an assembler error.
type ErrSyntax struct {
	LineNo int
	Line   string
	Err    error
}

func (err *ErrSyntax) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Line, err.Err)
}

func (err *ErrSyntax) Unwrap() error {
	return err.Err
}
