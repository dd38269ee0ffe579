// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

func registerShiftRotate(d map[string]LowerFunc) {
	d["shr"] = lowerShr
	d["shl"] = lowerShl
	d["sal"] = lowerShl // sal is shl's mnemonic alias.
	d["sar"] = lowerSar
	d["rol"] = lowerRol
	d["ror"] = lowerRor
	d["rcl"] = lowerRcl
	d["rcr"] = lowerRcr
}

// rotateMaskBits returns the mask applied to a rotate count: its low 6 bits
// in 64-bit mode, its low 5 bits otherwise.
func rotateMaskBits(mode int) int64 {
	if mode == 64 {
		return 0x3f
	}
	return 0x1f
}

// lowerShr lowers a logical right shift. CF is the last bit shifted out;
// it is part of the semantic result and is emitted regardless of
// translation mode (spec.md §4.1 calls out SHR explicitly as an example).
// OF for 1-bit shifts is a documented TODO (spec.md §9) and is not emitted.
func lowerShr(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}
	countWide := buf.Temporal(width)
	buf.Add(reil.Str(count, countWide))

	countMinus1 := buf.Temporal(width)
	buf.Add(reil.Sub(countWide, reil.Imm(1, width), countMinus1))
	negCFShift := buf.Temporal(width)
	buf.Add(reil.Sub(reil.Imm(0, width), countMinus1, negCFShift))
	cfShifted := buf.Temporal(width)
	buf.Add(reil.Bsh(a, negCFShift, cfShifted))
	cfBit := buf.Temporal(width)
	buf.Add(reil.And(cfShifted, reil.Imm(1, width), cfBit))
	buf.Add(reil.Str(cfBit, reil.Reg(reil.FlagCF, 1)))

	negShift := buf.Temporal(width)
	buf.Add(reil.Sub(reil.Imm(0, width), countWide, negShift))
	result := buf.Temporal(width)
	buf.Add(reil.Bsh(a, negShift, result))
	if err := buf.Write(dst, result); err != nil {
		return err
	}

	if ctx.Full {
		reil.SF(buf, result, width)
		reil.ZF(buf, result, width)
		reil.StubAF(buf)
		reil.StubPF(buf)
	}
	return nil
}

// lowerShl lowers a logical left shift (shl and its sal alias). CF is the
// last bit shifted out of the top, emitted unconditionally like SHR's.
func lowerShl(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}
	countWide := buf.Temporal(width)
	buf.Add(reil.Str(count, countWide))

	// The bit shifted into CF was at position (width - count) of a. Since
	// count - width is already negative for any count < width, it can be
	// fed straight to BSH as a right-shift amount.
	cfShiftAmt := buf.Temporal(width)
	buf.Add(reil.Sub(countWide, reil.Imm(int64(width), width), cfShiftAmt))
	cfShifted := buf.Temporal(width)
	buf.Add(reil.Bsh(a, cfShiftAmt, cfShifted))
	cfBit := buf.Temporal(width)
	buf.Add(reil.And(cfShifted, reil.Imm(1, width), cfBit))
	buf.Add(reil.Str(cfBit, reil.Reg(reil.FlagCF, 1)))

	result := buf.Temporal(width)
	buf.Add(reil.Bsh(a, countWide, result))
	if err := buf.Write(dst, result); err != nil {
		return err
	}

	if ctx.Full {
		reil.SF(buf, result, width)
		reil.ZF(buf, result, width)
		reil.StubAF(buf)
		reil.StubPF(buf)
	}
	return nil
}

// lowerSar lowers an arithmetic right shift as an intra-instruction
// mini-FSM: a label marks the loop head, a JCC tests the remaining count
// and branches to the fall-through label, and an unconditional JCC closes
// the back-edge (spec.md §4.6). Each iteration shifts right by one,
// reinjecting the preserved sign bit, and records the shifted-out bit into
// CF; the final CF value left standing is the one from the last iteration
// executed, matching real SAR.
func lowerSar(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}

	signMask := reil.Imm(int64(1)<<(width-1), width)
	sign := buf.Temporal(width)
	buf.Add(reil.And(a, signMask, sign))

	cur := buf.Temporal(width)
	buf.Add(reil.Str(a, cur))
	cnt := buf.Temporal(width)
	buf.Add(reil.Str(count, cnt))

	head := buf.NewLabel("sar.head")
	end := buf.NewLabel("sar.end")

	buf.Mark(head)
	isZero := buf.Temporal(1)
	buf.Add(reil.Bisz(cnt, isZero))
	buf.Add(reil.Jcc(isZero, reil.LabelTarget(end, 64)))

	lsb := buf.Temporal(width)
	buf.Add(reil.And(cur, reil.Imm(1, width), lsb))
	buf.Add(reil.Str(lsb, reil.Reg(reil.FlagCF, 1)))

	shifted := buf.Temporal(width)
	buf.Add(reil.Bsh(cur, reil.Imm(-1, width), shifted))
	newCur := buf.Temporal(width)
	buf.Add(reil.Or(shifted, sign, newCur))
	buf.Add(reil.Str(newCur, cur))

	newCnt := buf.Temporal(width)
	buf.Add(reil.Sub(cnt, reil.Imm(1, width), newCnt))
	buf.Add(reil.Str(newCnt, cnt))

	buf.Add(reil.Jcc(reil.Imm(1, 1), reil.LabelTarget(head, 64)))
	buf.Mark(end)

	if err := buf.Write(dst, cur); err != nil {
		return err
	}

	if ctx.Full {
		reil.SF(buf, cur, width)
		reil.ZF(buf, cur, width)
		reil.StubAF(buf)
		reil.StubPF(buf)
	}
	return nil
}

// rotateViaDoubleWidth builds D = (a << width) | a in a double-width
// temporary: a value with two back-to-back copies of a. Shifting D right
// by (width-n) mod (width+1)-free arithmetic yields ROL(a,n) in the low
// width bits; shifting D right by n yields ROR(a,n) (spec.md §4.5
// "emulate rotate via double-width shift + or of the halves").
func rotateViaDoubleWidth(buf *reil.Buffer, a reil.Value, width uint8) reil.Value {
	double := width * 2
	aDouble := buf.Temporal(double)
	buf.Add(reil.Str(a, aDouble))
	aShiftedUp := buf.Temporal(double)
	buf.Add(reil.Bsh(aDouble, reil.Imm(int64(width), double), aShiftedUp))
	replicated := buf.Temporal(double)
	buf.Add(reil.Or(aShiftedUp, aDouble, replicated))
	return replicated
}

func maskedRotateCount(buf *reil.Buffer, count reil.Value, width uint8, ctx Context) reil.Value {
	countWide := buf.Temporal(width)
	buf.Add(reil.Str(count, countWide))
	masked := buf.Temporal(width)
	buf.Add(reil.And(countWide, reil.Imm(rotateMaskBits(ctx.Mode), width), masked))
	mod := buf.Temporal(width)
	buf.Add(reil.Mod(masked, reil.Imm(int64(width), width), mod))
	return mod
}

// lowerRol and lowerRor share the double-width shift+or technique; OF is
// computed but the source then unconditionally undefines it (spec.md §9's
// documented ror behavior, extended here to rol for consistency), so its
// net effect on the OF register is always to clear it, even though the
// would-be value remains visible earlier in the stream for inspection.
func lowerRol(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}
	countMod := maskedRotateCount(buf, count, width, ctx)

	double := width * 2
	replicated := rotateViaDoubleWidth(buf, a, width)

	shiftAmt := buf.Temporal(width)
	buf.Add(reil.Sub(reil.Imm(int64(width), width), countMod, shiftAmt))
	shiftAmtWide := buf.Temporal(double)
	buf.Add(reil.Str(shiftAmt, shiftAmtWide))
	negShift := buf.Temporal(double)
	buf.Add(reil.Sub(reil.Imm(0, double), shiftAmtWide, negShift))

	resultWide := buf.Temporal(double)
	buf.Add(reil.Bsh(replicated, negShift, resultWide))
	result := buf.Temporal(width)
	buf.Add(reil.Str(resultWide, result))
	if err := buf.Write(dst, result); err != nil {
		return err
	}

	if ctx.Full {
		cfBit := buf.Temporal(width)
		buf.Add(reil.And(result, reil.Imm(1, width), cfBit))
		buf.Add(reil.Str(cfBit, reil.Reg(reil.FlagCF, 1)))

		signA := buf.Temporal(width)
		buf.Add(reil.Bsh(a, reil.Imm(-(int64(width) - 1), width), signA))
		signR := buf.Temporal(width)
		buf.Add(reil.Bsh(result, reil.Imm(-(int64(width) - 1), width), signR))
		ofComputed := buf.Temporal(width)
		buf.Add(reil.Xor(signA, signR, ofComputed))
		_ = ofComputed // the computed value is left in the stream but unused by OF
		reil.Undefine(buf, reil.FlagOF)
	}
	return nil
}

func lowerRor(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}
	countMod := maskedRotateCount(buf, count, width, ctx)

	double := width * 2
	replicated := rotateViaDoubleWidth(buf, a, width)

	shiftAmtWide := buf.Temporal(double)
	buf.Add(reil.Str(countMod, shiftAmtWide))
	negShift := buf.Temporal(double)
	buf.Add(reil.Sub(reil.Imm(0, double), shiftAmtWide, negShift))

	resultWide := buf.Temporal(double)
	buf.Add(reil.Bsh(replicated, negShift, resultWide))
	result := buf.Temporal(width)
	buf.Add(reil.Str(resultWide, result))
	if err := buf.Write(dst, result); err != nil {
		return err
	}

	if ctx.Full {
		cfBit := buf.Temporal(width)
		buf.Add(reil.Bsh(result, reil.Imm(-(int64(width) - 1), width), cfBit))
		buf.Add(reil.And(cfBit, reil.Imm(1, width), cfBit))
		buf.Add(reil.Str(cfBit, reil.Reg(reil.FlagCF, 1)))

		signA := buf.Temporal(width)
		buf.Add(reil.Bsh(a, reil.Imm(-(int64(width) - 1), width), signA))
		signR := buf.Temporal(width)
		buf.Add(reil.Bsh(result, reil.Imm(-(int64(width) - 1), width), signR))
		ofComputed := buf.Temporal(width)
		buf.Add(reil.Xor(signA, signR, ofComputed))
		_ = ofComputed
		reil.Undefine(buf, reil.FlagOF)
	}
	return nil
}

// rotateThroughCarry implements rcl/rcr: concatenate CF as bit `width` of a
// (width+1)-bit value, rotate that using the same double-width shift
// technique with modulus width+1, then split the result back into the
// register and CF (spec.md §4.5).
func rotateThroughCarry(buf *reil.Buffer, a reil.Value, width uint8, shiftAmt reil.Value) (result reil.Value, cf reil.Value) {
	double := width * 2
	big := width*2 + 16

	cfWide := buf.Temporal(double)
	buf.Add(reil.Str(reil.Reg(reil.FlagCF, 1), cfWide))
	cfShifted := buf.Temporal(double)
	buf.Add(reil.Bsh(cfWide, reil.Imm(int64(width), double), cfShifted))
	aWide := buf.Temporal(double)
	buf.Add(reil.Str(a, aWide))
	combined := buf.Temporal(double)
	buf.Add(reil.Or(cfShifted, aWide, combined))

	combinedBig := buf.Temporal(big)
	buf.Add(reil.Str(combined, combinedBig))
	shiftedBig := buf.Temporal(big)
	buf.Add(reil.Bsh(combinedBig, reil.Imm(int64(width)+1, big), shiftedBig))
	replicatedBig := buf.Temporal(big)
	buf.Add(reil.Or(shiftedBig, combinedBig, replicatedBig))

	shiftAmtBig := buf.Temporal(big)
	buf.Add(reil.Str(shiftAmt, shiftAmtBig))
	negShiftBig := buf.Temporal(big)
	buf.Add(reil.Sub(reil.Imm(0, big), shiftAmtBig, negShiftBig))
	resultBig := buf.Temporal(big)
	buf.Add(reil.Bsh(replicatedBig, negShiftBig, resultBig))

	resultCombined := buf.Temporal(double)
	buf.Add(reil.Str(resultBig, resultCombined))
	result = buf.Temporal(width)
	buf.Add(reil.Str(resultCombined, result))

	cfShiftedOut := buf.Temporal(double)
	buf.Add(reil.Bsh(resultCombined, reil.Imm(-int64(width), double), cfShiftedOut))
	cfBit := buf.Temporal(double)
	buf.Add(reil.And(cfShiftedOut, reil.Imm(1, double), cfBit))
	cf = buf.Temporal(1)
	buf.Add(reil.Str(cfBit, cf))
	return result, cf
}

// rotateCarryOverflow emits RCL/RCR's OF update. Real RCL/RCR only define
// OF for a masked rotate count of exactly 1 (OF = the result's sign bit
// XOR the new CF); for any other count OF must be left explicitly
// undefined, never untouched, matching x86translator.py's
// _translate_rcl/_translate_rcr (each builds a label, conditionally
// computes OF when the masked count is 1, and otherwise falls through to
// undefine it). spec.md §4.6 names the rotate family as an
// intra-instruction control-flow user, so this reuses the label/JCC
// shape sar's loop already establishes rather than introducing a new one.
func rotateCarryOverflow(buf *reil.Buffer, result, cf, mod reil.Value, width uint8) {
	notOneAmount := buf.Temporal(width)
	buf.Add(reil.Sub(mod, reil.Imm(1, width), notOneAmount))
	isOne := buf.Temporal(1)
	buf.Add(reil.Bisz(notOneAmount, isOne))
	notOne := buf.Temporal(1)
	buf.Add(reil.Xor(isOne, reil.Imm(1, 1), notOne))

	undef := buf.NewLabel("rotate.of.undef")
	end := buf.NewLabel("rotate.of.end")
	buf.Add(reil.Jcc(notOne, reil.LabelTarget(undef, 64)))

	signR := buf.Temporal(width)
	buf.Add(reil.Bsh(result, reil.Imm(-(int64(width)-1), width), signR))
	signRBit := buf.Temporal(width)
	buf.Add(reil.And(signR, reil.Imm(1, width), signRBit))
	cfWide := buf.Temporal(width)
	buf.Add(reil.Str(cf, cfWide))
	ofBit := buf.Temporal(width)
	buf.Add(reil.Xor(signRBit, cfWide, ofBit))
	buf.Add(reil.Str(ofBit, reil.Reg(reil.FlagOF, 1)))
	buf.Add(reil.Jcc(reil.Imm(1, 1), reil.LabelTarget(end, 64)))

	buf.Mark(undef)
	reil.Undefine(buf, reil.FlagOF)

	buf.Mark(end)
}

func lowerRcl(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}
	countWide := buf.Temporal(width)
	buf.Add(reil.Str(count, countWide))
	masked := buf.Temporal(width)
	buf.Add(reil.And(countWide, reil.Imm(rotateMaskBits(ctx.Mode), width), masked))
	mod := buf.Temporal(width)
	buf.Add(reil.Mod(masked, reil.Imm(int64(width)+1, width), mod))

	shiftAmt := buf.Temporal(width)
	buf.Add(reil.Sub(reil.Imm(int64(width)+1, width), mod, shiftAmt))

	result, cf := rotateThroughCarry(buf, a, width, shiftAmt)
	buf.Add(reil.Str(cf, reil.Reg(reil.FlagCF, 1)))
	rotateCarryOverflow(buf, result, cf, mod, width)
	if err := buf.Write(dst, result); err != nil {
		return err
	}
	return nil
}

func lowerRcr(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	dst, countOp := instr.Operand(0), instr.Operand(1)
	width := dst.Width

	a, err := buf.Read(dst)
	if err != nil {
		return err
	}
	count, err := buf.Read(countOp)
	if err != nil {
		return err
	}
	countWide := buf.Temporal(width)
	buf.Add(reil.Str(count, countWide))
	masked := buf.Temporal(width)
	buf.Add(reil.And(countWide, reil.Imm(rotateMaskBits(ctx.Mode), width), masked))
	mod := buf.Temporal(width)
	buf.Add(reil.Mod(masked, reil.Imm(int64(width)+1, width), mod))

	result, cf := rotateThroughCarry(buf, a, width, mod)
	buf.Add(reil.Str(cf, reil.Reg(reil.FlagCF, 1)))
	rotateCarryOverflow(buf, result, cf, mod, width)
	if err := buf.Write(dst, result); err != nil {
		return err
	}
	return nil
}
