// Copyright 2025, Jason S. McMullan <jason.mcmullan@gmail.com>

// Package memory implements the MMXI address space: 2^16 words of 16 bits,
// all zero until written.
//
// The address space is divided into 128 pages of 512 words. Page-relative
// instructions may only address the page holding the program counter.
package memory

import (
	"fmt"
	"iter"
	"maps"
)

const (
	WORD_LEN   = 16                                // Bits per word and per address.
	PAGE_LEN   = 7                                 // Bits of an address selecting the page.
	PAGE_SHIFT = WORD_LEN - PAGE_LEN               // Bits of an address selecting the word in a page.
	PAGE_SIZE  = 1 << PAGE_SHIFT                   // Words per page.
	PAGE_COUNT = 1 << PAGE_LEN                     // Pages in the address space.
	PAGE_MASK  = uint16(0xffff &^ (PAGE_SIZE - 1)) // Mask of the page bits of an address.
	MAX_ADDR   = 1<<WORD_LEN - 1                   // Highest address.
	MAX_VALUE  = 1<<WORD_LEN - 1                   // Highest unsigned word value.
)

var _memory_defines = map[string]string{
	"PAGE_SIZE":  fmt.Sprintf("%d", PAGE_SIZE),
	"PAGE_COUNT": fmt.Sprintf("%d", PAGE_COUNT),
	"MAX_ADDR":   fmt.Sprintf("0x%x", MAX_ADDR),
}

// Memory is a sparse address space. Cells never written, or last written
// with zero, are absent from the map.
type Memory struct {
	cells map[uint16]uint16
}

// NewMemory creates an empty address space.
func NewMemory() *Memory {
	return &Memory{cells: make(map[uint16]uint16)}
}

// Defines for the address space.
func (mem *Memory) Defines() iter.Seq2[string, string] {
	return maps.All(_memory_defines)
}

// PageNumber returns the page holding addr.
func PageNumber(addr uint16) int {
	return int(addr >> PAGE_SHIFT)
}

// PageBase returns the first address of a page.
func PageBase(page int) uint16 {
	return uint16(page << PAGE_SHIFT)
}

// Read returns M[addr].
func (mem *Memory) Read(addr uint16) uint16 {
	return mem.cells[addr]
}

// ReadSigned returns M[addr] as a two's complement value.
func (mem *Memory) ReadSigned(addr uint16) int16 {
	return int16(mem.cells[addr])
}

// Write sets M[addr] to value truncated to 16 bits.
func (mem *Memory) Write(addr uint16, value int) {
	word := uint16(value)
	if word == 0 {
		delete(mem.cells, addr)
		return
	}

	if mem.cells == nil {
		mem.cells = make(map[uint16]uint16)
	}
	mem.cells[addr] = word
}

// Page returns a copy of the words in a page.
func (mem *Memory) Page(page int) (words []uint16) {
	base := PageBase(page)
	words = make([]uint16, PAGE_SIZE)
	for n := range words {
		words[n] = mem.Read(base + uint16(n))
	}
	return
}

// Len returns the number of non-zero cells.
func (mem *Memory) Len() int {
	return len(mem.cells)
}

// Reset zeros the whole address space.
func (mem *Memory) Reset() {
	clear(mem.cells)
}
