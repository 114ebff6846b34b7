// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package emulator

import (
	"bufio"
	"errors"
	"fmt"
	stdio "io"
	"iter"
	"log"
	"maps"
	"strings"

	"github.com/ezrec/mmxi/cpu"
	"github.com/ezrec/mmxi/internal"
	"github.com/ezrec/mmxi/io"
	"github.com/ezrec/mmxi/loader"
	"github.com/ezrec/mmxi/memory"
	"github.com/ezrec/mmxi/translate"
)

// Mode selects how much of the machine state is shown while running.
type Mode int

//go:generate go tool stringer -linecomment -type=Mode
const (
	MODE_QUIET = Mode(0) // quiet
	MODE_TRACE = Mode(1) // trace
	MODE_STEP  = Mode(2) // step
)

const (
	DEFAULT_MAX_STEPS = 1000 // Default limit on instructions executed by Run.

	PAGE_DUMP_ROWS = 32 // Rows per page dump chunk.
	PAGE_DUMP_COLS = 8  // Words per page dump row.
)

var _emulator_defines = map[string]string{
	"DEFAULT_MAX_STEPS": fmt.Sprintf("%d", DEFAULT_MAX_STEPS),
}

// Emulator state. CPU + memory + tape.
type Emulator struct {
	Verbose  bool         // If set, enables verbose logging.
	*cpu.Cpu              // Reference to the CPU simulation.
	Program  *cpu.Program // Source listing of the loaded program, if known.

	Tape     io.Tape        // Trap I/O channel.
	Mode     Mode           // Run mode.
	MaxSteps int            // Instruction limit. Negative for no limit.
	Trace    stdio.Writer   // Trace and dump output. If nil, Tape.Output is used.
	Pause    func() error   // Called before each step in step mode, if set.
	Segment  loader.Segment // Segment of the loaded object file.
}

// NewEmulator creates a new emulator.
func NewEmulator() (emu *Emulator) {
	emu = &Emulator{
		Cpu:      cpu.NewCpu(memory.NewMemory()),
		MaxSteps: DEFAULT_MAX_STEPS,
	}

	emu.Cpu.Channel = &emu.Tape
	emu.Cpu.DebugDump = func(*cpu.Cpu) {
		emu.PrintState(emu.trace())
	}

	return
}

// Defines returns an iterator over all of the defines
func (emu *Emulator) Defines() iter.Seq2[string, string] {
	return internal.IterSeq2Concat(maps.All(_emulator_defines),
		emu.Cpu.Defines(),
		emu.Cpu.Memory.Defines(),
	)
}

func (emu *Emulator) trace() stdio.Writer {
	if emu.Trace != nil {
		return emu.Trace
	}
	if emu.Tape.Output != nil {
		return emu.Tape.Output
	}
	return stdio.Discard
}

// Load resets the machine and loads an object file, one record per line.
// The object file must declare a segment and an entry point.
func (emu *Emulator) Load(input stdio.Reader) (err error) {
	emu.Cpu.Verbose = emu.Verbose
	emu.Cpu.Memory.Reset()
	emu.Cpu.Reset()
	emu.Segment = loader.Segment{}

	ld := loader.NewLoader(emu.Cpu)
	ld.Verbose = emu.Verbose

	lineNo := 0
	scanner := bufio.NewScanner(input)
	for scanner.Scan() {
		lineNo++
		record := scanner.Text()
		err = ld.ParseString(record)
		if err != nil {
			err = &ErrObject{LineNo: lineNo, Record: record, Err: err}
			return
		}
	}
	err = scanner.Err()
	if err != nil {
		err = errors.Join(ERR_FILE_READ, err)
		return
	}

	seg, ok := ld.Segment()
	if !ok {
		err = ERR_HEADER_MISSING
		return
	}
	emu.Segment = seg

	_, ok = ld.Entry()
	if !ok {
		err = ERR_END_MISSING
		return
	}

	if emu.Verbose {
		log.Printf("emulator: loaded %q, entry 0x%04x", seg.Name, emu.Cpu.Pc)
	}

	return
}

// LoadProgram loads the object records of an assembled program, and keeps
// the program as the source listing.
func (emu *Emulator) LoadProgram(prog *cpu.Program) (err error) {
	var records strings.Builder
	_, err = prog.WriteTo(&records)
	if err != nil {
		return
	}

	err = emu.Load(strings.NewReader(records.String()))
	if err != nil {
		return
	}

	emu.Program = prog

	return
}

// Tick performs a single step of the emulator. done is set once the machine
// has halted, or the instruction limit has been reached.
func (emu *Emulator) Tick() (done bool, err error) {
	if emu.Cpu.Halted {
		done = true
		return
	}

	if emu.MaxSteps >= 0 && emu.Cpu.Ticks >= emu.MaxSteps {
		done = true
		err = ERR_STEP_LIMIT
		return
	}

	if emu.Mode == MODE_STEP && emu.Pause != nil {
		err = emu.Pause()
		if err != nil {
			return
		}
	}

	// Set CPU verbosity
	emu.Cpu.Verbose = emu.Verbose

	pc := emu.Cpu.Pc
	diags := emu.Cpu.Step()
	for _, diag := range cpu.Diagnostics(diags) {
		log.Print(diag)
	}

	if emu.Cpu.Halted {
		err = emu.Tape.EmitString(f("\nExecution halted.\n"))
		if err != nil {
			return
		}
		done = true
	}

	if emu.Mode != MODE_QUIET {
		w := emu.trace()
		fmt.Fprintln(w)
		if emu.Program != nil {
			dbg := emu.Program.Debug(pc)
			if dbg.Statement != nil {
				translate.Fprint(w, "Line %v: %v\n", dbg.LineNo, strings.TrimSpace(dbg.Line))
			}
		}
		emu.PrintState(w)
	}

	return
}

// Run executes until the machine halts, or the instruction limit is reached.
// In trace and step modes the current page is dumped before and after.
func (emu *Emulator) Run() (err error) {
	if emu.Mode != MODE_QUIET {
		emu.PrintPage(emu.trace())
	}

	for done := false; !done; {
		done, err = emu.Tick()
		if err != nil {
			break
		}
	}

	if emu.Mode != MODE_QUIET {
		emu.PrintPage(emu.trace())
	}

	return
}

// PrintState writes the last executed instruction, the registers, the CCR
// and the PC.
func (emu *Emulator) PrintState(w stdio.Writer) {
	translate.Fprint(w, "Last instruction: %v\n", emu.Cpu.LastInstruction)

	for n := range emu.Cpu.Register {
		fmt.Fprintf(w, "  R%x ", n)
	}
	fmt.Fprintln(w)

	for _, reg := range emu.Cpu.Register {
		fmt.Fprintf(w, "%04x ", reg)
	}
	fmt.Fprintln(w)

	translate.Fprint(w, "CCR: %v\n", emu.Cpu.Ccr)
	translate.Fprint(w, "PC: %04x\n", emu.Cpu.Pc)
}

// PrintPage writes the page holding the PC as hex, in two chunks with row
// and column guides.
func (emu *Emulator) PrintPage(w stdio.Writer) {
	words := emu.Cpu.Memory.Page(memory.PageNumber(emu.Cpu.Pc))

	offset := 0
	for range len(words) / (PAGE_DUMP_ROWS * PAGE_DUMP_COLS) {
		fmt.Fprint(w, "    ")
		for col := range PAGE_DUMP_COLS {
			fmt.Fprintf(w, "%4x ", col)
		}
		fmt.Fprintln(w)

		for range PAGE_DUMP_ROWS {
			fmt.Fprintf(w, "%03x ", offset)
			for range PAGE_DUMP_COLS {
				fmt.Fprintf(w, "%04x ", words[offset])
				offset++
			}
			fmt.Fprintln(w)
		}

		fmt.Fprintln(w)
	}
}
