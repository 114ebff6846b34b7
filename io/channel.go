// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package io provides the character I/O channels used by MMXI trap
// routines. The CPU depends only on the Channel interface; Tape adapts any
// io.Reader and io.Writer pair, and NewConsole binds a Tape to a terminal.
package io

// Channel defines the interface for the trap routine I/O collaborator.
// Output methods write synchronously; input methods block until a full
// line of input is available.
type Channel interface {
	// EmitChar writes a single character.
	EmitChar(c byte) error
	// EmitString writes a run of characters.
	EmitString(s string) error
	// EmitDecimal writes a signed decimal integer.
	EmitDecimal(value int16) error
	// ReadChar reads one character.
	ReadChar() (c byte, err error)
	// ReadInt16 reads a signed decimal integer. When the integer is outside
	// the 16-bit range, the truncated value is returned with ErrInputRange.
	ReadInt16() (value int16, err error)
}
