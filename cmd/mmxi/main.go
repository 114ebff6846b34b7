// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

package main

import (
	"errors"
	"flag"
	"log"
	"maps"
	"os"

	"github.com/ezrec/mmxi/cpu"
	"github.com/ezrec/mmxi/emulator"
	"github.com/ezrec/mmxi/internal"
	"github.com/ezrec/mmxi/io"
	"github.com/ezrec/mmxi/translate"
)

var f = translate.From

func usage() {
	out := flag.CommandLine.Output()
	translate.Fprint(out, "Usage: %v [options]\n", os.Args[0])
	translate.Fprint(out, "  (Only one of -q, -t or -s may be selected)\n")
	flag.PrintDefaults()
}

func main() {
	var object string
	var compile string
	var write string
	var quiet, trace, step bool
	var maxSteps int
	var noexec bool
	var verbose bool

	flag.Usage = usage
	flag.StringVar(&object, "f", "", "Object file to execute")
	flag.StringVar(&compile, "c", "", "Assembly source file to compile")
	flag.StringVar(&write, "w", "", "Write the compiled object file")
	flag.BoolVar(&quiet, "q", false, "Run in quiet mode (default)")
	flag.BoolVar(&trace, "t", false, "Run in trace mode")
	flag.BoolVar(&step, "s", false, "Run in step mode")
	flag.IntVar(&maxSteps, "M", emulator.DEFAULT_MAX_STEPS, "Stop execution after N steps")
	flag.BoolVar(&noexec, "n", false, "Do not execute")
	flag.BoolVar(&verbose, "v", false, "Verbose mode")

	flag.Parse()

	if flag.NArg() != 0 {
		log.Fatalf("%v: Unknown arguments: %v", os.Args[0], flag.Args())
	}

	modes := 0
	mode := emulator.MODE_QUIET
	for _, opt := range []struct {
		set  bool
		mode emulator.Mode
	}{
		{quiet, emulator.MODE_QUIET},
		{trace, emulator.MODE_TRACE},
		{step, emulator.MODE_STEP},
	} {
		if opt.set {
			modes++
			mode = opt.mode
		}
	}
	if modes > 1 {
		flag.Usage()
		log.Fatal(f("Please select exactly one execution mode."))
	}

	if len(object) == 0 && len(compile) == 0 {
		flag.Usage()
		log.Fatal(f("Please specify an input file using -f or -c."))
	}

	emu := emulator.NewEmulator()
	emu.Verbose = verbose
	emu.Mode = mode
	emu.MaxSteps = maxSteps
	emu.Tape = *io.NewConsole(os.Stdin, os.Stdout)

	if mode == emulator.MODE_STEP && io.IsTerminal(os.Stdin) {
		emu.Pause = func() error {
			return emu.Tape.WaitEnter(f("Press ENTER to continue"))
		}
	}

	if verbose {
		for key, value := range internal.IterSorted(maps.Collect(emu.Defines())) {
			log.Printf("define %v = %v", key, value)
		}
	}

	if len(compile) != 0 {
		inf, err := os.Open(compile)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}
		defer inf.Close()

		asm := &cpu.Assembler{Verbose: verbose}
		for key, value := range emu.Defines() {
			asm.Predefine(key, value)
		}

		prog, err := asm.Parse(inf)
		if err != nil {
			log.Fatalf("%v: %v", compile, err)
		}

		if len(write) != 0 {
			ouf, err := os.Create(write)
			if err != nil {
				log.Fatalf("%v: %v", write, err)
			}
			_, err = prog.WriteTo(ouf)
			if err == nil {
				err = ouf.Close()
			}
			if err != nil {
				log.Fatalf("%v: %v", write, err)
			}
		}

		if len(object) == 0 {
			err = emu.LoadProgram(prog)
			if err != nil {
				log.Fatalf("%v: %v", compile, err)
			}
		}
	}

	if len(object) != 0 {
		inf, err := os.Open(object)
		if errors.Is(err, os.ErrNotExist) {
			log.Fatalf("%v: %v", object, emulator.ERR_FILE_MISSING)
		}
		if err != nil {
			log.Fatalf("%v: %v", object, errors.Join(emulator.ERR_FILE_READ, err))
		}
		defer inf.Close()

		err = emu.Load(inf)
		if err != nil {
			log.Fatalf("%v: %v", object, err)
		}
	}

	if noexec {
		return
	}

	err := emu.Run()
	if err != nil {
		log.Fatal(err)
	}
}
