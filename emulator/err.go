package emulator

import (
	"github.com/ezrec/mmxi/translate"
)

var f = translate.From

// ErrEmulator is a fatal emulator error code.
type ErrEmulator int

const (
	ERR_FILE_MISSING   = ErrEmulator(200)
	ERR_FILE_READ      = ErrEmulator(201)
	ERR_HEADER_MISSING = ErrEmulator(203)
	ERR_STEP_LIMIT     = ErrEmulator(204)
	ERR_END_MISSING    = ErrEmulator(205)
)

var _emulator_messages = map[ErrEmulator]string{
	ERR_FILE_MISSING:   "input file does not exist",
	ERR_FILE_READ:      "could not read input file",
	ERR_HEADER_MISSING: "object file missing header record",
	ERR_STEP_LIMIT:     "maximum instruction count reached",
	ERR_END_MISSING:    "no end record found",
}

func (err ErrEmulator) Error() string {
	return f("error %03d: %v", int(err), f(_emulator_messages[err]))
}

// ErrObject indicates the object file record that failed to load.
type ErrObject struct {
	LineNo int
	Record string
	Err    error
}

func (err *ErrObject) Error() string {
	return f("line %d '%v' %v", err.LineNo, err.Record, err.Err)
}

func (err *ErrObject) Unwrap() error {
	return err.Err
}
