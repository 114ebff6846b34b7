// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package loader reads MMXI object records into a machine.
//
// An object file is a sequence of one-line records:
//
//	H<name:6><start:4hex><length:4hex>   Header, declares the segment.
//	T<addr:4hex><value:4hex>             Text, sets one memory word.
//	E<addr:4hex>                         End, sets the entry point.
//
// Lines starting with any other character are ignored. Every record error is
// fatal to the load.
package loader

import (
	"log"
	"strconv"
)

// Machine is the state written by a load.
type Machine interface {
	SetMemory(addr uint16, value uint16)
	SetPc(pc uint16)
}

// Record types, the first character of a record.
const (
	RECORD_HEADER = 'H'
	RECORD_TEXT   = 'T'
	RECORD_END    = 'E'
)

// Record field widths.
const (
	NAME_LEN   = 6
	HEX_LEN    = 4
	HEADER_LEN = 1 + NAME_LEN + HEX_LEN + HEX_LEN
	TEXT_LEN   = 1 + HEX_LEN + HEX_LEN
	END_LEN    = 1 + HEX_LEN
)

// State of a load.
type State int

//go:generate go tool stringer -linecomment -type=State
const (
	STATE_AWAITING_HEADER = State(0) // awaiting-header
	STATE_SEGMENT_OPEN    = State(1) // segment-open
	STATE_CLOSED          = State(2) // closed
	STATE_FAILED          = State(3) // failed
)

// Segment is the address range declared by the Header record.
type Segment struct {
	Name string // Segment name, exactly as in the record.
	Min  int    // Lowest address.
	Max  int    // Highest address, inclusive. Less than Min for an empty segment.
}

// Contains returns true if addr is within the segment.
func (seg Segment) Contains(addr int) bool {
	return seg.Min <= addr && addr <= seg.Max
}

// Loader applies object records to a Machine, one record at a time.
type Loader struct {
	Verbose bool // Set to enable verbose logging.

	machine Machine
	state   State // Progress of the load, never STATE_FAILED.
	segment Segment
	entry   uint16
	err     error // Sticky load error.
}

// NewLoader creates a loader writing to machine.
func NewLoader(machine Machine) *Loader {
	return &Loader{
		machine: machine,
		state:   STATE_AWAITING_HEADER,
	}
}

// State returns the state of the load.
func (ld *Loader) State() State {
	if ld.err != nil {
		return STATE_FAILED
	}
	return ld.state
}

// Err returns the error that failed the load, if any.
func (ld *Loader) Err() error {
	return ld.err
}

// Segment returns the segment, once the Header record has been read.
func (ld *Loader) Segment() (seg Segment, ok bool) {
	switch ld.state {
	case STATE_SEGMENT_OPEN, STATE_CLOSED:
		seg, ok = ld.segment, true
	}
	return
}

// SegmentName returns the segment name, once the Header record has been read.
func (ld *Loader) SegmentName() (name string, ok bool) {
	seg, ok := ld.Segment()
	if ok {
		name = seg.Name
	}
	return
}

// Entry returns the entry point, once an End record has been read.
func (ld *Loader) Entry() (pc uint16, ok bool) {
	if ld.state == STATE_CLOSED {
		pc, ok = ld.entry, true
	}
	return
}

// hexField parses the 4 hex digit field at offset in record.
func hexField(record string, offset int) (value uint16, err error) {
	if len(record) < offset+HEX_LEN {
		err = ERR_SHORT
		return
	}

	v, perr := strconv.ParseUint(record[offset:offset+HEX_LEN], 16, 16)
	if perr != nil {
		err = ERR_MALFORMED
		return
	}

	value = uint16(v)
	return
}

// ParseString applies one record. Once a record has failed, every later call
// returns the same error without modifying the machine.
func (ld *Loader) ParseString(record string) (err error) {
	if ld.err != nil {
		return ld.err
	}

	defer func() {
		if err != nil {
			if ld.Verbose {
				log.Printf("loader: %q: %v", record, err)
			}
			ld.err = err
		}
	}()

	if len(record) == 0 {
		return
	}

	kind := record[0]

	switch ld.state {
	case STATE_AWAITING_HEADER:
		switch kind {
		case RECORD_HEADER:
			err = ld.parseHeader(record)
		case RECORD_TEXT:
			err = ERR_TEXT_BEFORE_HEADER
		case RECORD_END:
			err = ERR_END_BEFORE_HEADER
		}
	case STATE_SEGMENT_OPEN, STATE_CLOSED:
		switch kind {
		case RECORD_HEADER:
			err = ERR_HEADER_DUPLICATE
		case RECORD_TEXT:
			err = ld.parseText(record)
		case RECORD_END:
			err = ld.parseEnd(record)
		}
	}

	// Records of any other kind are comments.

	return
}

func (ld *Loader) parseHeader(record string) (err error) {
	if len(record) < HEADER_LEN {
		err = ERR_SHORT
		return
	}

	start, err := hexField(record, 1+NAME_LEN)
	if err != nil {
		return
	}

	length, err := hexField(record, 1+NAME_LEN+HEX_LEN)
	if err != nil {
		return
	}

	ld.segment = Segment{
		Name: record[1 : 1+NAME_LEN],
		Min:  int(start),
		Max:  int(start) + int(length) - 1,
	}
	ld.state = STATE_SEGMENT_OPEN

	if ld.Verbose {
		log.Printf("loader: segment %q 0x%04x-0x%04x", ld.segment.Name, ld.segment.Min, ld.segment.Max)
	}

	return
}

func (ld *Loader) parseText(record string) (err error) {
	addr, err := hexField(record, 1)
	if err != nil {
		return
	}

	if !ld.segment.Contains(int(addr)) {
		err = ERR_ADDRESS_BOUNDS
		return
	}

	value, err := hexField(record, 1+HEX_LEN)
	if err != nil {
		return
	}

	ld.machine.SetMemory(addr, value)

	return
}

func (ld *Loader) parseEnd(record string) (err error) {
	addr, err := hexField(record, 1)
	if err != nil {
		return
	}

	if !ld.segment.Contains(int(addr)) {
		err = ERR_ENTRY_BOUNDS
		return
	}

	ld.machine.SetPc(addr)
	ld.entry = addr
	ld.state = STATE_CLOSED

	if ld.Verbose {
		log.Printf("loader: entry 0x%04x", addr)
	}

	return
}
