// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

// conditionSuffixes lists every j<cc> suffix condition understands; some
// names are aliases of the same flag test (ae/nc, b/c, e/z, ne/nz).
var conditionSuffixes = []string{
	"a", "ae", "nc", "b", "c", "be",
	"e", "z", "ne", "nz",
	"g", "ge", "l", "le",
	"o", "no", "s", "ns",
}

func registerControl(d map[string]LowerFunc) {
	d["jmp"] = lowerJmp
	for _, cc := range conditionSuffixes {
		d["j"+cc] = jccLowerer(cc)
	}
	d["jecxz"] = lowerJecxz
	d["jrcxz"] = lowerJecxz
	d["call"] = lowerCall
	d["ret"] = lowerRet
	d["loop"] = loopLowerer("")
	d["loope"] = loopLowerer("e")
	d["loopz"] = loopLowerer("e")
	d["loopne"] = loopLowerer("ne")
	d["loopnz"] = loopLowerer("ne")
}

// targetWidth is the width tagged onto a packed-address JCC target Value:
// a 64-bit native address plus the 8-bit sub-instruction index (spec.md
// §3's packed address format).
const targetWidth = 72

// jumpTarget lowers a jmp/call/j<cc> operand into a packed-address Value
// suitable as a JCC target. An immediate operand's native address is
// packed directly (sub-index 0, per spec.md §4.5); a register or memory
// operand's runtime value is widened and shifted left by 8 to make room
// for that sub-index.
func jumpTarget(buf *reil.Buffer, op x86.Operand) (reil.Value, error) {
	if op.Kind == x86.OperandImmediate {
		packed := reil.PackAddress(uint64(op.Value), 0)
		return reil.Imm(int64(packed), targetWidth), nil
	}

	v, err := buf.Read(op)
	if err != nil {
		return reil.Value{}, err
	}
	return packNativeAddress(buf, v), nil
}

// packNativeAddress widens a runtime address value and shifts it left by
// 8, producing the packed-address encoding a JCC target expects.
func packNativeAddress(buf *reil.Buffer, v reil.Value) reil.Value {
	wide := v.Width + 8
	extended := buf.Temporal(wide)
	buf.Add(reil.Str(v, extended))
	shifted := buf.Temporal(wide)
	buf.Add(reil.Bsh(extended, reil.Imm(8, wide), shifted))
	return shifted
}

func lowerJmp(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	target, err := jumpTarget(buf, instr.Operand(0))
	if err != nil {
		return err
	}
	buf.Add(reil.Jcc(reil.Imm(1, 1), target))
	return nil
}

func jccLowerer(cc string) LowerFunc {
	return func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
		cond, err := condition(buf, cc)
		if err != nil {
			return err
		}
		target, err := jumpTarget(buf, instr.Operand(0))
		if err != nil {
			return err
		}
		buf.Add(reil.Jcc(cond, target))
		return nil
	}
}

func lowerJecxz(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	cond := conditionECXZ(buf, ctx)
	target, err := jumpTarget(buf, instr.Operand(0))
	if err != nil {
		return err
	}
	buf.Add(reil.Jcc(cond, target))
	return nil
}

// lowerCall pushes the return address (the address of the instruction
// immediately following this call) and branches to the target, mirroring
// push's stack-pointer bookkeeping (datamove.go's lowerPush).
func lowerCall(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	addrWidth := wordWidth(ctx)
	spReg := reil.Reg(ctx.StackRegister(), addrWidth)

	newSP := buf.Temporal(addrWidth)
	buf.Add(reil.Sub(spReg, reil.Imm(int64(ctx.WordSize()), addrWidth), newSP))
	buf.Add(reil.Str(newSP, spReg))

	retAddr := instr.Address + uint64(instr.Size)
	buf.Add(reil.Stm(reil.Imm(int64(retAddr), addrWidth), spReg))

	target, err := jumpTarget(buf, instr.Operand(0))
	if err != nil {
		return err
	}
	buf.Add(reil.Jcc(reil.Imm(1, 1), target))
	return nil
}

// lowerRet pops the return address (adjusting the stack pointer, plus any
// immediate operand's extra adjustment for a "ret imm16"), then emits RET.
// The pop's control-transfer effect is left to RET itself rather than a
// second explicit JCC, since RET already marks "return from subroutine"
// with no operands (spec.md §3 GLOSSARY).
func lowerRet(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	addrWidth := wordWidth(ctx)
	spReg := reil.Reg(ctx.StackRegister(), addrWidth)

	popped := buf.Temporal(addrWidth)
	buf.Add(reil.Ldm(spReg, popped))

	newSP := buf.Temporal(addrWidth)
	buf.Add(reil.Add(spReg, reil.Imm(int64(ctx.WordSize()), addrWidth), newSP))
	buf.Add(reil.Str(newSP, spReg))

	if len(instr.Operands) > 0 {
		adj, err := buf.Read(instr.Operand(0))
		if err != nil {
			return err
		}
		adjWide := buf.Temporal(addrWidth)
		buf.Add(reil.Str(adj, adjWide))
		newSP2 := buf.Temporal(addrWidth)
		buf.Add(reil.Add(spReg, adjWide, newSP2))
		buf.Add(reil.Str(newSP2, spReg))
	}

	buf.Add(reil.Ret())
	return nil
}

// loopLowerer builds the lowering routine for loop/loope/loopne: decrement
// the counter register, then branch to the target when it is non-zero and
// (for loope/loopne) the named flag condition also holds.
func loopLowerer(extraCC string) LowerFunc {
	return func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
		width := wordWidth(ctx)
		counter := reil.Reg(ctx.CounterRegister(), width)

		dec := buf.Temporal(width)
		buf.Add(reil.Sub(counter, reil.Imm(1, width), dec))
		buf.Add(reil.Str(dec, counter))

		isZero := buf.Temporal(1)
		buf.Add(reil.Bisz(counter, isZero))
		cond := notBit(buf, isZero)

		if extraCC != "" {
			extra, err := condition(buf, extraCC)
			if err != nil {
				return err
			}
			cond = andBit(buf, cond, extra)
		}

		target, err := jumpTarget(buf, instr.Operand(0))
		if err != nil {
			return err
		}
		buf.Add(reil.Jcc(cond, target))

		// REIL is side-effect-explicit: the fall-through edge when the
		// branch above isn't taken must be its own unconditional JCC to
		// the packed end-of-instruction address (spec.md §4.5/§8, the
		// loop family's worked scenario in §8 depends on this edge
		// existing as a distinct micro-op).
		end := reil.PackAddress(instr.Address+uint64(instr.Size), 0)
		buf.Add(reil.Jcc(reil.Imm(1, 1), reil.Imm(int64(end), targetWidth)))
		return nil
	}
}
