package loader

import (
	"github.com/ezrec/mmxi/translate"
)

var f = translate.From

// ErrLoad is a fatal object record error. Each cause has a distinct code.
type ErrLoad int

const (
	ERR_ADDRESS_BOUNDS     = ErrLoad(100) // Text or End address outside the segment.
	ERR_TEXT_BEFORE_HEADER = ErrLoad(101) // Text record before the Header record.
	ERR_HEADER_DUPLICATE   = ErrLoad(102) // Second Header record.
	ERR_END_BEFORE_HEADER  = ErrLoad(103) // End record before the Header record.
	ERR_MALFORMED          = ErrLoad(104) // Field is not hexadecimal.
	ERR_SHORT              = ErrLoad(105) // Record shorter than its fields.
	ERR_ENTRY_BOUNDS       = ErrLoad(106) // End record address outside the segment.
)

var _load_messages = map[ErrLoad]string{
	ERR_ADDRESS_BOUNDS:     "instruction address outside of the segment set in the header",
	ERR_TEXT_BEFORE_HEADER: "text record found before header",
	ERR_HEADER_DUPLICATE:   "too many header records",
	ERR_END_BEFORE_HEADER:  "end record found before header",
	ERR_MALFORMED:          "malformed record encountered",
	ERR_SHORT:              "malformed record encountered, record length requirements not met",
	ERR_ENTRY_BOUNDS:       "end record execution address outside of the segment set in the header",
}

func (err ErrLoad) Error() string {
	msg, ok := _load_messages[err]
	if !ok {
		msg = "unknown load error"
	}
	return f("error %03d: %v", int(err), f(msg))
}

// Is matches the code itself. ERR_ENTRY_BOUNDS also matches
// ERR_ADDRESS_BOUNDS.
func (err ErrLoad) Is(target error) bool {
	code, ok := target.(ErrLoad)
	if !ok {
		return false
	}

	return code == err || (err == ERR_ENTRY_BOUNDS && code == ERR_ADDRESS_BOUNDS)
}
