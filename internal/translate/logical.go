// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

func registerLogical(d map[string]LowerFunc) {
	d["and"] = lowerAnd
	d["or"] = lowerOr
	d["xor"] = lowerXor
	d["test"] = lowerTest
	d["not"] = lowerNot
}

func emitBitwiseFlags(buf *reil.Buffer, result reil.Value, width uint8) {
	reil.Clear(buf, reil.FlagOF)
	reil.Clear(buf, reil.FlagCF)
	reil.SF(buf, result, width)
	reil.ZF(buf, result, width)
	reil.StubAF(buf)
	reil.StubPF(buf)
}

func lowerBitwise(buf *reil.Buffer, instr x86.Instruction, ctx Context, build func(a, b, result reil.Value) reil.MicroOp) error {
	dst, src := instr.Operand(0), instr.Operand(1)
	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	b, err := buf.Read(src)
	if err != nil {
		return err
	}

	result := buf.Temporal(dst.Width)
	buf.Add(build(a, b, result))
	if err := buf.Write(dst, result); err != nil {
		return err
	}

	if ctx.Full {
		emitBitwiseFlags(buf, result, dst.Width)
	}
	return nil
}

func lowerAnd(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	return lowerBitwise(buf, instr, ctx, reil.And)
}

func lowerOr(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	return lowerBitwise(buf, instr, ctx, reil.Or)
}

func lowerXor(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	return lowerBitwise(buf, instr, ctx, reil.Xor)
}

// lowerTest computes AND and discards the result, updating flags
// unconditionally in both FULL and LITE, mirroring cmp (spec.md §4.5).
func lowerTest(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, src := instr.Operand(0), instr.Operand(1)
	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	b, err := buf.Read(src)
	if err != nil {
		return err
	}

	result := buf.Temporal(dst.Width)
	buf.Add(reil.And(a, b, result))
	emitBitwiseFlags(buf, result, dst.Width)
	return nil
}

func lowerNot(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst := instr.Operand(0)
	a, err := buf.Read(dst)
	if err != nil {
		return err
	}

	result := buf.Temporal(dst.Width)
	buf.Add(reil.Xor(a, reil.Imm(widthMask(dst.Width), dst.Width), result))
	return buf.Write(dst, result)
}
