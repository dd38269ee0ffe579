// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package translate holds the one lowering routine per x86 mnemonic that
// the translator façade dispatches to, plus the condition-code algebra they
// share.
package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

// Context carries the translator façade's mutable configuration into a
// lowering routine: the CPU mode fixing register/word sizes, and whether
// result-dependent flag micro-programs should be emitted.
type Context struct {
	Mode int  // 32 or 64
	Full bool // true for FULL translation mode, false for LITE
}

// WordSize returns the mode's word size in bytes.
func (c Context) WordSize() uint8 { return x86.WordSize(c.Mode) }

// StackRegister, BaseRegister and InstructionPointer return the
// mode-appropriate register name.
func (c Context) StackRegister() string       { return x86.StackRegister(c.Mode) }
func (c Context) BaseRegister() string        { return x86.BaseRegister(c.Mode) }
func (c Context) InstructionPointer() string  { return x86.InstructionPointer(c.Mode) }
func (c Context) CounterRegister() string {
	if c.Mode == 64 {
		return "rcx"
	}
	return "ecx"
}

// LowerFunc lowers one decoded instruction's semantics into buf.
type LowerFunc func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error

// Dispatch returns the mnemonic -> LowerFunc table used by the translator
// façade. Mnemonics are matched case-sensitively in their canonical
// lower-case form (spec.md §6).
func Dispatch() map[string]LowerFunc {
	d := make(map[string]LowerFunc, 96)
	registerDataMove(d)
	registerArithmetic(d)
	registerLogical(d)
	registerShiftRotate(d)
	registerControl(d)
	registerFlagControl(d)
	registerSetcc(d)
	registerCondMove(d)
	registerBitTest(d)
	registerMisc(d)
	return d
}
