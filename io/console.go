package io

import (
	"os"

	"golang.org/x/term"
)

// NewConsole creates a Tape bound to a pair of files, normally the process
// standard input and output. Input prompts are only enabled when the input
// is an interactive terminal, so piped input stays silent.
func NewConsole(input *os.File, output *os.File) (tc *Tape) {
	tc = &Tape{
		Input:  input,
		Output: output,
	}

	if IsTerminal(input) {
		tc.Prompt = output
	}

	return
}

// IsTerminal returns true if the file is an interactive terminal.
func IsTerminal(file *os.File) bool {
	if file == nil {
		return false
	}
	return term.IsTerminal(int(file.Fd()))
}
