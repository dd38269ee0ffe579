// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

// Flag register names. All are single-bit registers.
const (
	FlagAF = "af"
	FlagCF = "cf"
	FlagDF = "df"
	FlagOF = "of"
	FlagPF = "pf"
	FlagSF = "sf"
	FlagZF = "zf"
)

func flagReg(name string) Value { return Reg(name, 1) }

// SF emits the micro-ops that extract the sign bit of result, restricted to
// width, into the SF register.
func SF(buf *Buffer, result Value, width uint8) {
	shifted := buf.Temporal(width)
	buf.Add(Bsh(result, Imm(-(int64(width) - 1), width), shifted))
	masked := buf.Temporal(width)
	buf.Add(And(shifted, Imm(1, width), masked))
	buf.Add(Str(masked, flagReg(FlagSF)))
}

// ZF emits the micro-ops that mask result to its low width bits and set ZF
// to whether that masked value is zero. A result wider than width (such as
// a double-width sum) is first truncated to width with STR, so that both
// AND operands have the same width.
func ZF(buf *Buffer, result Value, width uint8) {
	mask := widthMask(width)
	if result.Width != width {
		low := buf.Temporal(width)
		buf.Add(Str(result, low))
		result = low
	}
	masked := buf.Temporal(width)
	buf.Add(And(result, Imm(mask, width), masked))
	buf.Add(Bisz(masked, flagReg(FlagZF)))
}

// CFAdd emits the micro-ops that extract bit operandWidth of the
// double-width result (the carry position) into CF. result must be at
// least operandWidth+1 bits wide, as produced by a double-width ADD/ADC.
func CFAdd(buf *Buffer, result Value, operandWidth uint8) {
	shifted := buf.Temporal(result.Width)
	buf.Add(Bsh(result, Imm(-int64(operandWidth), result.Width), shifted))
	masked := buf.Temporal(result.Width)
	buf.Add(And(shifted, Imm(1, result.Width), masked))
	buf.Add(Str(masked, flagReg(FlagCF)))
}

// signBit emits the micro-ops that isolate v's sign bit at width, returning
// a width-wide temporary holding 0 or 1.
func signBit(buf *Buffer, v Value, width uint8) Value {
	shifted := buf.Temporal(width)
	buf.Add(Bsh(v, Imm(-(int64(width) - 1), width), shifted))
	masked := buf.Temporal(width)
	buf.Add(And(shifted, Imm(1, width), masked))
	return masked
}

func notBit(buf *Buffer, v Value, width uint8) Value {
	out := buf.Temporal(width)
	buf.Add(Xor(v, Imm(1, width), out))
	return out
}

// overflow emits (sa XOR sb XOR 1) AND (sa XOR sr), the shared algebra
// behind both OFAdd and OFSub (spec.md §4.4).
func overflow(buf *Buffer, sa, sb, sr Value, width uint8) Value {
	xorAB := buf.Temporal(width)
	buf.Add(Xor(sa, sb, xorAB))
	notXorAB := notBit(buf, xorAB, width)

	xorAR := buf.Temporal(width)
	buf.Add(Xor(sa, sr, xorAR))

	of := buf.Temporal(width)
	buf.Add(And(notXorAB, xorAR, of))
	return of
}

// OFAdd emits the micro-ops computing the add-style overflow flag from
// operands a, b and their (possibly double-width, low bits significant)
// result, storing it into OF.
func OFAdd(buf *Buffer, a, b, result Value, width uint8) {
	sa := signBit(buf, a, width)
	sb := signBit(buf, b, width)
	sr := signBit(buf, result, width)
	of := overflow(buf, sa, sb, sr, width)
	buf.Add(Str(of, flagReg(FlagOF)))
}

// OFSub emits the micro-ops computing the sub-style overflow flag: as
// OFAdd, but with b's sign bit inverted before combining.
func OFSub(buf *Buffer, a, b, result Value, width uint8) {
	sa := signBit(buf, a, width)
	sb := signBit(buf, b, width)
	sbInv := notBit(buf, sb, width)
	sr := signBit(buf, result, width)
	of := overflow(buf, sa, sbInv, sr, width)
	buf.Add(Str(of, flagReg(FlagOF)))
}

// Clear emits STR(0, flag).
func Clear(buf *Buffer, flag string) {
	buf.Add(Str(Imm(0, 1), flagReg(flag)))
}

// Set emits STR(1, flag).
func Set(buf *Buffer, flag string) {
	buf.Add(Str(Imm(1, 1), flagReg(flag)))
}

// Undefine marks flag as undefined. The translator's source of truth
// (barf's x86translator.py) treats "undefined" as "cleared to 0"; this is a
// documented design choice, preserved here rather than "fixed", since
// downstream consumers may depend on the resulting determinism.
func Undefine(buf *Buffer, flag string) {
	buf.Add(Str(Imm(0, 1), flagReg(flag)))
}

// StubAF and StubPF are no-ops: AF and PF derivation is not implemented
// (spec.md Non-goals), matching the source's behavior of silently omitting
// any micro-op for these two flags rather than clearing or undefining them.
// TODO: AF (adjust flag, BCD carry out of bit 3) and PF (parity of the low
// byte) still need real micro-programs for full flag parity.
func StubAF(*Buffer) {}
func StubPF(*Buffer) {}

func widthMask(width uint8) int64 {
	if width >= 64 {
		return -1
	}
	return (int64(1) << width) - 1
}
