// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

// registerBitTest wires bt/bts/btr/btc, one of SPEC_FULL.md's supplemented
// mnemonic families (beyond spec.md's representative table, not an
// original_source/ feature): each extracts bit (index mod width) of the
// destination into CF, then optionally sets, clears or complements that
// bit in place.
func registerBitTest(d map[string]LowerFunc) {
	d["bt"] = bitTestLowerer(bitTestNone)
	d["bts"] = bitTestLowerer(bitTestSet)
	d["btr"] = bitTestLowerer(bitTestClear)
	d["btc"] = bitTestLowerer(bitTestComplement)
}

type bitTestOp int

const (
	bitTestNone bitTestOp = iota
	bitTestSet
	bitTestClear
	bitTestComplement
)

func bitTestLowerer(op bitTestOp) LowerFunc {
	return func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
		dst, idxOp := instr.Operand(0), instr.Operand(1)
		width := dst.Width

		a, err := buf.Read(dst)
		if err != nil {
			return err
		}
		idx, err := buf.Read(idxOp)
		if err != nil {
			return err
		}

		idxWide := buf.Temporal(width)
		buf.Add(reil.Str(idx, idxWide))
		idxMod := buf.Temporal(width)
		buf.Add(reil.Mod(idxWide, reil.Imm(int64(width), width), idxMod))

		negShift := buf.Temporal(width)
		buf.Add(reil.Sub(reil.Imm(0, width), idxMod, negShift))
		shifted := buf.Temporal(width)
		buf.Add(reil.Bsh(a, negShift, shifted))
		bit := buf.Temporal(width)
		buf.Add(reil.And(shifted, reil.Imm(1, width), bit))
		buf.Add(reil.Str(bit, reil.Reg(reil.FlagCF, 1)))

		if op == bitTestNone {
			return nil
		}

		bitMask := buf.Temporal(width)
		buf.Add(reil.Bsh(reil.Imm(1, width), idxMod, bitMask))

		var result reil.Value
		switch op {
		case bitTestSet:
			result = buf.Temporal(width)
			buf.Add(reil.Or(a, bitMask, result))
		case bitTestClear:
			notMask := buf.Temporal(width)
			buf.Add(reil.Xor(bitMask, reil.Imm(widthMask(width), width), notMask))
			result = buf.Temporal(width)
			buf.Add(reil.And(a, notMask, result))
		case bitTestComplement:
			result = buf.Temporal(width)
			buf.Add(reil.Xor(a, bitMask, result))
		}
		return buf.Write(dst, result)
	}
}
