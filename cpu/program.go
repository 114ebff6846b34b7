package cpu

import (
	"fmt"
	"io"
	"iter"
)

// Statement is an assembled source line.
type Statement struct {
	LineNo int      // Source line number.
	Line   string   // Source line text.
	Addr   uint16   // Address of the first word.
	Words  []uint16 // Assembled words.
}

// Program is an assembled segment.
type Program struct {
	Name       string // Segment name, from the .ORIG label.
	Origin     uint16 // Address of the first word.
	Length     int    // Words in the segment.
	Entry      uint16 // Entry point.
	Statements []Statement
}

// Debug is the statement that assembled an address.
type Debug struct {
	*Statement
	Index int // Index of the word in the statement.
}

// Debug finds the statement which assembled the word at addr.
func (prog *Program) Debug(addr uint16) (dbg Debug) {
	for n, st := range prog.Statements {
		if int(addr) >= int(st.Addr) && int(addr) < int(st.Addr)+len(st.Words) {
			dbg = Debug{
				Statement: &prog.Statements[n],
				Index:     int(addr - st.Addr),
			}
			break
		}
	}

	return
}

// Codes iterates over every assembled word, by address.
func (prog *Program) Codes() iter.Seq2[uint16, uint16] {
	return func(yield func(addr uint16, word uint16) bool) {
		for _, st := range prog.Statements {
			for n, word := range st.Words {
				if !yield(st.Addr+uint16(n), word) {
					return
				}
			}
		}
	}
}

// Records iterates over the object records of the program.
// Zero words are omitted, as unwritten memory reads as zero.
func (prog *Program) Records() iter.Seq[string] {
	return func(yield func(record string) bool) {
		header := fmt.Sprintf("H%-6.6s%04X%04X", prog.Name, prog.Origin, uint16(prog.Length))
		if !yield(header) {
			return
		}

		for addr, word := range prog.Codes() {
			if word == 0 {
				continue
			}
			if !yield(fmt.Sprintf("T%04X%04X", addr, word)) {
				return
			}
		}

		yield(fmt.Sprintf("E%04X", prog.Entry))
	}
}

// WriteTo writes the object records of the program, one per line.
func (prog *Program) WriteTo(w io.Writer) (n int64, err error) {
	for record := range prog.Records() {
		var count int
		count, err = fmt.Fprintln(w, record)
		n += int64(count)
		if err != nil {
			return
		}
	}

	return
}
