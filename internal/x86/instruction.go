// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package x86 describes the decoder-shaped input to the REIL translator:
// decoded x86 instructions, their operands, and the architecture-description
// tables (register sizes and aliasing) the translator consults. The decoder
// itself, and the full instruction-set tables behind ArchInfo, are external
// collaborators; this package names only the interfaces the translator
// needs and a minimal general-purpose-register table sufficient to drive
// it.
package x86

// OperandKind distinguishes the three forms of a decoded x86 operand.
type OperandKind uint8

const (
	// OperandImmediate is a constant encoded in the instruction.
	OperandImmediate OperandKind = iota
	// OperandRegister names an architectural register.
	OperandRegister
	// OperandMemory is a base+index*scale+displacement addressing form.
	OperandMemory
)

// Operand is a decoded x86 instruction operand.
type Operand struct {
	Kind  OperandKind
	Width uint8 // bits; for OperandMemory, the width of the referenced data

	// OperandImmediate
	Value int64

	// OperandRegister
	Name string

	// OperandMemory: Base and Index are register names, empty if absent.
	Base         string
	Index        string
	Scale        int
	Displacement int64
}

// Imm returns an immediate operand.
func Imm(value int64, width uint8) Operand {
	return Operand{Kind: OperandImmediate, Value: value, Width: width}
}

// Reg returns a register operand.
func Reg(name string, width uint8) Operand {
	return Operand{Kind: OperandRegister, Name: name, Width: width}
}

// Mem returns a memory operand.
func Mem(base, index string, scale int, displacement int64, width uint8) Operand {
	return Operand{
		Kind:         OperandMemory,
		Width:        width,
		Base:         base,
		Index:        index,
		Scale:        scale,
		Displacement: displacement,
	}
}

// Instruction is a single decoded x86/x86-64 machine instruction, as
// produced by the (out of scope) decoder.
type Instruction struct {
	Mnemonic string
	Operands []Operand
	Address  uint64
	Size     uint8
	Bytes    []byte
}

// Operand returns the i-th operand, or the zero Operand if the instruction
// has fewer than i+1 operands.
func (in Instruction) Operand(i int) Operand {
	if i < 0 || i >= len(in.Operands) {
		return Operand{}
	}
	return in.Operands[i]
}
