// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

// Package translator is the façade spec.md §6 names: it turns a decoded
// x86 instruction into its REIL micro-op sequence, dispatching to the
// per-mnemonic lowering routines in internal/translate and enforcing the
// translation contract (panic containment, finalization, validation)
// around whichever routine handles the instruction.
package translator

import (
	"encoding/hex"
	"fmt"
	"log"

	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/translate"
	"firefly-os.dev/reil/internal/x86"
)

// Translator lowers decoded x86 instructions to REIL. A Translator is not
// safe for concurrent use: its Namer assigns temporary names sequentially,
// and the determinism property of spec.md §8 depends on a single
// translation session driving one Namer. Construct one Translator per
// goroutine, or serialize calls to Translate externally.
type Translator struct {
	archMode int
	mode     Mode
	logger   *log.Logger

	namer    *reil.Namer
	dispatch map[string]translate.LowerFunc
}

// New constructs a Translator in 32-bit, FULL mode by default; opts
// override that.
func New(opts ...Option) *Translator {
	t := &Translator{
		archMode: 32,
		mode:     Full,
		logger:   defaultLogger(),
		namer:    &reil.Namer{},
		dispatch: translate.Dispatch(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Reset returns the Translator's Namer to its initial state, so the next
// Translate call's temporaries again start at t0 (spec.md §8's
// determinism property is defined relative to calls following a Reset).
func (t *Translator) Reset() {
	t.namer.Reset()
}

func (t *Translator) arch() x86.ArchInfo {
	if t.archMode == 64 {
		return x86.Arch64
	}
	return x86.Arch32
}

// Translate lowers one decoded instruction into its REIL micro-op
// sequence, implementing the full per-instruction contract of spec.md
// §4.1:
//
//  1. look up instr.Mnemonic in the dispatch table; an unknown mnemonic is
//     logged at INFO and translated to a single UNKN rather than failing;
//  2. invoke the lowering routine with panics contained and rewrapped as
//     ErrInternalLowering;
//  3. finalize the buffer, resolving labels to packed addresses;
//  4. validate the finalized sequence against the operand-size rules.
//
// Any failure in steps 2-4 is logged at ERROR and returned; the caller
// sees no partial micro-op sequence on error.
func (t *Translator) Translate(instr x86.Instruction) ([]reil.MicroOp, error) {
	arch := t.arch()

	lower, ok := t.dispatch[instr.Mnemonic]
	if !ok {
		t.logger.Printf("INFO: unsupported mnemonic %q at %#x, emitting UNKN", instr.Mnemonic, instr.Address)
		buf := reil.NewBuffer(t.namer, arch)
		buf.Add(reil.Unkn())
		return buf.Finalize(instr.Address)
	}

	buf := reil.NewBuffer(t.namer, arch)
	ctx := translate.Context{Mode: t.archMode, Full: t.mode == Full}

	if err := t.invoke(lower, buf, instr, ctx); err != nil {
		t.logger.Printf("ERROR: lowering %q at %#x (bytes %s): %v", instr.Mnemonic, instr.Address, hex.EncodeToString(instr.Bytes), err)
		return nil, err
	}

	ops, err := buf.Finalize(instr.Address)
	if err != nil {
		t.logger.Printf("ERROR: finalizing %q at %#x (bytes %s): %v", instr.Mnemonic, instr.Address, hex.EncodeToString(instr.Bytes), err)
		return nil, err
	}

	if err := reil.Validate(ops, arch.AddressSize()); err != nil {
		t.logger.Printf("ERROR: validating %q at %#x (bytes %s): %v", instr.Mnemonic, instr.Address, hex.EncodeToString(instr.Bytes), err)
		return nil, err
	}

	return ops, nil
}

// invoke calls lower, converting any panic into an error wrapping
// ErrInternalLowering rather than letting it escape to the caller. A
// lowering routine should never panic in practice; this is a last-resort
// containment boundary, not a substitute for returning errors normally.
func (t *Translator) invoke(lower translate.LowerFunc, buf *reil.Buffer, instr x86.Instruction, ctx translate.Context) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: panic lowering %q: %v", reil.ErrInternalLowering, instr.Mnemonic, r)
		}
	}()
	return lower(buf, instr, ctx)
}
