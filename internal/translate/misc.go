// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

// registerMisc wires nop and the handful of instructions whose effects are
// deliberately not modeled: cpuid and rdtsc write implementation-defined
// register state the translator does not track, and hlt has no data-flow
// effect to express in REIL at all (SPEC_FULL.md's supplemented-mnemonics
// note on unmodeled instructions). All three lower to a single UNKN.
func registerMisc(d map[string]LowerFunc) {
	d["nop"] = lowerNop
	d["hlt"] = lowerUnknown
	d["cpuid"] = lowerUnknown
	d["rdtsc"] = lowerUnknown
}

func lowerNop(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	buf.Add(reil.Nop())
	return nil
}

func lowerUnknown(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	buf.Add(reil.Unkn())
	return nil
}
