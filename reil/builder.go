// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

// The functions below are the sole constructors of well-formed MicroOp
// values used by the per-mnemonic lowering rules and flag micro-programs.
// Each places its operands in the slots the mnemonic's semantics expect,
// leaving the rest Empty, so that callers never have to remember slot
// conventions by hand.

// Nop builds a NOP micro-op.
func Nop() MicroOp {
	return MicroOp{Mnemonic: NOP}
}

// Str builds a STR (assignment) micro-op: dst := src.
func Str(src, dst Value) MicroOp {
	return MicroOp{Mnemonic: STR, Op0: src, Op2: dst}
}

// Ldm builds a LDM (load from memory) micro-op: dst := [addr].
func Ldm(addr, dst Value) MicroOp {
	return MicroOp{Mnemonic: LDM, Op0: addr, Op2: dst}
}

// Stm builds a STM (store to memory) micro-op: [addr] := src.
func Stm(src, addr Value) MicroOp {
	return MicroOp{Mnemonic: STM, Op0: src, Op2: addr}
}

func binary(op Op, a, b, result Value) MicroOp {
	return MicroOp{Mnemonic: op, Op0: a, Op1: b, Op2: result}
}

// Add builds an ADD micro-op: result := a + b.
func Add(a, b, result Value) MicroOp { return binary(ADD, a, b, result) }

// Sub builds a SUB micro-op: result := a - b.
func Sub(a, b, result Value) MicroOp { return binary(SUB, a, b, result) }

// Mul builds a MUL micro-op: result := a * b.
func Mul(a, b, result Value) MicroOp { return binary(MUL, a, b, result) }

// Div builds a DIV micro-op: result := a / b.
func Div(a, b, result Value) MicroOp { return binary(DIV, a, b, result) }

// Mod builds a MOD micro-op: result := a % b.
func Mod(a, b, result Value) MicroOp { return binary(MOD, a, b, result) }

// And builds an AND micro-op: result := a & b.
func And(a, b, result Value) MicroOp { return binary(AND, a, b, result) }

// Or builds an OR micro-op: result := a | b.
func Or(a, b, result Value) MicroOp { return binary(OR, a, b, result) }

// Xor builds an XOR micro-op: result := a ^ b.
func Xor(a, b, result Value) MicroOp { return binary(XOR, a, b, result) }

// Bsh builds a BSH micro-op: result := a shifted by shift, where positive
// shift shifts left and negative shifts right.
func Bsh(a, shift, result Value) MicroOp { return binary(BSH, a, shift, result) }

// Bisz builds a BISZ micro-op: result := (a == 0).
func Bisz(a, result Value) MicroOp {
	return MicroOp{Mnemonic: BISZ, Op0: a, Op2: result}
}

// Jcc builds a JCC micro-op: if cond != 0, branch to target.
func Jcc(cond, target Value) MicroOp {
	return MicroOp{Mnemonic: JCC, Op0: cond, Op2: target}
}

// Undef builds an UNDEF micro-op marking dst's value unspecified.
func Undef(dst Value) MicroOp {
	return MicroOp{Mnemonic: UNDEF, Op2: dst}
}

// Unkn builds an UNKN micro-op.
func Unkn() MicroOp {
	return MicroOp{Mnemonic: UNKN}
}

// Ret builds a RET micro-op.
func Ret() MicroOp {
	return MicroOp{Mnemonic: RET}
}
