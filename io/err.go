package io

import (
	"errors"

	"github.com/ezrec/mmxi/translate"
)

var f = translate.From

var (
	// Channel input errors
	ErrInputCharacter = errors.New(f("invalid ASCII character"))
	ErrInputInteger   = errors.New(f("invalid 16-bit integer"))
	ErrInputRange     = errors.New(f("16-bit integer out of range"))
)
