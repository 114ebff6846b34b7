// Package cpu implements the MMXI processor and its assembler.
//
// The processor has a 16-bit program counter (PC), a condition code
// register (CCR) holding one of N, Z or P, eight 16-bit general-purpose
// registers (R0-R7) and a halted flag. Each Step fetches the word at PC,
// increments PC, decodes the word into an Instruction and executes it
// against the attached memory and I/O channel.
//
// Conditions such as arithmetic overflow or an unsupported trap vector
// do not stop the machine. They are returned from Step as Diagnostic
// errors after the instruction has taken full effect.
//
// The assembler translates MMXI assembly into a Program, which renders as
// the text object-file format read by the loader package.
package cpu
