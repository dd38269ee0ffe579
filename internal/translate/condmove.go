// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

// registerCondMove wires the cmov<cc> family, one of SPEC_FULL.md's
// supplemented mnemonic families: not in spec.md's representative table,
// and not present in original_source/ either (it has no conditional-move
// lowering), but an ordinary x86 instruction of the same register/flags
// shape as the rest of the table (see SPEC_FULL.md's supplemented-
// mnemonics section).
func registerCondMove(d map[string]LowerFunc) {
	for _, cc := range conditionSuffixes {
		d["cmov"+cc] = cmovLowerer(cc)
	}
}

// cmovLowerer builds a branch-free conditional move: cc's 1-bit condition
// is widened into an all-ones-or-all-zeros mask, then the destination's
// new value is selected as (src & mask) | (orig & ~mask), the same
// bitmask-select technique datamove.go's signExtendValue uses for its fill
// computation. This sidesteps needing an intra-instruction label whose
// sole purpose would be skipping a single STR.
func cmovLowerer(cc string) LowerFunc {
	return func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
		cond, err := condition(buf, cc)
		if err != nil {
			return err
		}
		dst, srcOp := instr.Operand(0), instr.Operand(1)
		width := dst.Width

		orig, err := buf.Read(dst)
		if err != nil {
			return err
		}
		src, err := buf.Read(srcOp)
		if err != nil {
			return err
		}

		condWide := buf.Temporal(width)
		buf.Add(reil.Str(cond, condWide))
		mask := buf.Temporal(width)
		buf.Add(reil.Mul(condWide, reil.Imm(widthMask(width), width), mask))
		notMask := buf.Temporal(width)
		buf.Add(reil.Xor(mask, reil.Imm(widthMask(width), width), notMask))

		srcMasked := buf.Temporal(width)
		buf.Add(reil.And(src, mask, srcMasked))
		origMasked := buf.Temporal(width)
		buf.Add(reil.And(orig, notMask, origMasked))
		result := buf.Temporal(width)
		buf.Add(reil.Or(srcMasked, origMasked, result))

		return buf.Write(dst, result)
	}
}
