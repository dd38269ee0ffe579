// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

func registerDataMove(d map[string]LowerFunc) {
	d["mov"] = lowerMov
	d["movzx"] = lowerMov // REIL STR zero-extends on a widening store; see spec.md §4.2.
	d["movsx"] = lowerMovsx
	d["xchg"] = lowerXchg
	d["push"] = lowerPush
	d["pop"] = lowerPop
	d["lea"] = lowerLea
	d["leave"] = lowerLeave
}

func lowerMov(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	src, err := buf.Read(instr.Operand(1))
	if err != nil {
		return err
	}
	return buf.Write(instr.Operand(0), src)
}

// signExtendValue widens v (srcWidth bits) to dstWidth bits, replicating its
// sign bit into the new high bits, using only the three-operand REIL
// mnemonics: zero-extend via STR, then OR in a fill computed as
// sign-bit * (mask of the new high bits).
func signExtendValue(buf *reil.Buffer, v reil.Value, srcWidth, dstWidth uint8) reil.Value {
	if dstWidth <= srcWidth {
		return v
	}

	zext := buf.Temporal(dstWidth)
	buf.Add(reil.Str(v, zext))

	shifted := buf.Temporal(srcWidth)
	buf.Add(reil.Bsh(v, reil.Imm(-(int64(srcWidth) - 1), srcWidth), shifted))
	sign := buf.Temporal(srcWidth)
	buf.Add(reil.And(shifted, reil.Imm(1, srcWidth), sign))

	signWide := buf.Temporal(dstWidth)
	buf.Add(reil.Str(sign, signWide))

	fillMask := ((int64(1) << (dstWidth - srcWidth)) - 1) << srcWidth
	fill := buf.Temporal(dstWidth)
	buf.Add(reil.Mul(signWide, reil.Imm(fillMask, dstWidth), fill))

	result := buf.Temporal(dstWidth)
	buf.Add(reil.Or(zext, fill, result))
	return result
}

func lowerMovsx(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	src := instr.Operand(1)
	dst := instr.Operand(0)

	srcVal, err := buf.Read(src)
	if err != nil {
		return err
	}

	extended := signExtendValue(buf, srcVal, src.Width, dst.Width)
	return buf.Write(dst, extended)
}

func lowerXchg(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	a, b := instr.Operand(0), instr.Operand(1)

	va, err := buf.Read(a)
	if err != nil {
		return err
	}
	vb, err := buf.Read(b)
	if err != nil {
		return err
	}

	tmp := buf.Temporal(va.Width)
	buf.Add(reil.Str(va, tmp))

	if err := buf.Write(a, vb); err != nil {
		return err
	}
	return buf.Write(b, tmp)
}

func lowerPush(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	addrWidth := wordWidth(ctx)
	spReg := reil.Reg(ctx.StackRegister(), addrWidth)

	src, err := buf.Read(instr.Operand(0))
	if err != nil {
		return err
	}

	newSP := buf.Temporal(addrWidth)
	buf.Add(reil.Sub(spReg, reil.Imm(int64(ctx.WordSize()), addrWidth), newSP))
	buf.Add(reil.Str(newSP, spReg))
	buf.Add(reil.Stm(src, spReg))
	return nil
}

func lowerPop(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	addrWidth := wordWidth(ctx)
	spReg := reil.Reg(ctx.StackRegister(), addrWidth)
	dst := instr.Operand(0)

	tmp := buf.Temporal(dst.Width)
	buf.Add(reil.Ldm(spReg, tmp))
	if err := buf.Write(dst, tmp); err != nil {
		return err
	}

	newSP := buf.Temporal(addrWidth)
	buf.Add(reil.Add(spReg, reil.Imm(int64(ctx.WordSize()), addrWidth), newSP))
	buf.Add(reil.Str(newSP, spReg))
	return nil
}

func lowerLea(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	addr, err := buf.EffectiveAddress(instr.Operand(1))
	if err != nil {
		return err
	}
	return buf.Write(instr.Operand(0), addr)
}

func lowerLeave(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	addrWidth := wordWidth(ctx)
	spReg := reil.Reg(ctx.StackRegister(), addrWidth)
	bpReg := reil.Reg(ctx.BaseRegister(), addrWidth)

	buf.Add(reil.Str(bpReg, spReg))

	tmp := buf.Temporal(addrWidth)
	buf.Add(reil.Ldm(spReg, tmp))
	buf.Add(reil.Str(tmp, bpReg))

	newSP := buf.Temporal(addrWidth)
	buf.Add(reil.Add(spReg, reil.Imm(int64(ctx.WordSize()), addrWidth), newSP))
	buf.Add(reil.Str(newSP, spReg))
	return nil
}
