package io

import (
	"bufio"
	"errors"
	"io"
	"strconv"
	"strings"
)

// Tape provides line-oriented character I/O over an io.Reader for input
// and an io.Writer for output. Each read consumes one line of input.
type Tape struct {
	Input  io.Reader // Source of input lines.
	Output io.Writer // Destination of emitted characters. Nil discards output.
	Prompt io.Writer // If set, input prompts are written here before each read.

	reader *bufio.Reader
}

var _ Channel = (*Tape)(nil)

// Rewind drops any buffered input. Call it after replacing Input.
func (tc *Tape) Rewind() {
	tc.reader = nil
}

func (tc *Tape) output() io.Writer {
	if tc.Output == nil {
		return io.Discard
	}
	return tc.Output
}

// ReadLine writes prompt (if prompting is enabled) and reads one line,
// without its line terminator. A final unterminated line is returned
// without error; io.EOF is returned only when no input remains.
func (tc *Tape) ReadLine(prompt string) (line string, err error) {
	if tc.Input == nil {
		err = io.EOF
		return
	}

	if tc.reader == nil {
		tc.reader = bufio.NewReader(tc.Input)
	}

	if tc.Prompt != nil && len(prompt) != 0 {
		_, err = io.WriteString(tc.Prompt, prompt)
		if err != nil {
			return
		}
	}

	line, err = tc.reader.ReadString('\n')
	if errors.Is(err, io.EOF) && len(line) != 0 {
		err = nil
	}
	line = strings.TrimRight(line, "\r\n")

	return
}

// EmitChar writes a single character.
func (tc *Tape) EmitChar(c byte) (err error) {
	_, err = tc.output().Write([]byte{c})
	return
}

// EmitString writes a run of characters.
func (tc *Tape) EmitString(s string) (err error) {
	_, err = io.WriteString(tc.output(), s)
	return
}

// EmitDecimal writes a signed decimal integer.
func (tc *Tape) EmitDecimal(value int16) (err error) {
	_, err = io.WriteString(tc.output(), strconv.Itoa(int(value)))
	return
}

// ReadChar reads a line and returns its first character. Any further
// characters on the line are ignored.
func (tc *Tape) ReadChar() (c byte, err error) {
	line, err := tc.ReadLine(f("\nPlease enter ASCII character: "))
	if err != nil {
		return
	}

	if len(line) == 0 || line[0] > 0x7f {
		err = ErrInputCharacter
		return
	}

	c = line[0]
	return
}

// ReadInt16 reads a line holding a signed decimal integer.
func (tc *Tape) ReadInt16() (value int16, err error) {
	line, err := tc.ReadLine(f("\nPlease enter 16-bit integer: "))
	if err != nil {
		return
	}

	v, err := strconv.Atoi(strings.TrimSpace(line))
	if err != nil {
		err = ErrInputInteger
		return
	}

	value = int16(v)
	if v < -32768 || v > 32767 {
		err = ErrInputRange
	}

	return
}

// WaitEnter writes prompt and waits for a line of input.
func (tc *Tape) WaitEnter(prompt string) (err error) {
	_, err = tc.ReadLine(prompt)
	return
}
