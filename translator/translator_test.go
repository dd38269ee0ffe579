// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translator

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

var diffOpts = cmp.Options{
	cmpopts.IgnoreFields(reil.MicroOp{}, "Address"),
	cmpopts.IgnoreUnexported(reil.Value{}),
}

func TestTranslateMov(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "mov",
		Operands: []x86.Operand{x86.Reg("eax", 32), x86.Imm(0x12345678, 32)},
		Address:  0x1000,
		Size:     5,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	want := []reil.MicroOp{
		reil.Str(reil.Imm(0x12345678, 32), reil.Reg("eax", 32)),
	}
	if diff := cmp.Diff(want, got, diffOpts); diff != "" {
		t.Fatalf("Translate(mov eax, 0x12345678): (-want, +got)\n%s", diff)
	}
}

func TestTranslatePush(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "push",
		Operands: []x86.Operand{x86.Reg("ebp", 32)},
		Address:  0x1004,
		Size:     1,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	want := []reil.MicroOp{
		reil.Sub(reil.Reg("esp", 32), reil.Imm(4, 32), reil.Reg("t0", 32)),
		reil.Str(reil.Reg("t0", 32), reil.Reg("esp", 32)),
		reil.Stm(reil.Reg("ebp", 32), reil.Reg("esp", 32)),
	}
	if diff := cmp.Diff(want, got, diffOpts); diff != "" {
		t.Fatalf("Translate(push ebp): (-want, +got)\n%s", diff)
	}
}

func TestTranslateXorSelfClearsAndFlags(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "xor",
		Operands: []x86.Operand{x86.Reg("eax", 32), x86.Reg("eax", 32)},
		Address:  0x1008,
		Size:     2,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	if !hasStrInto(got, "eax") {
		t.Errorf("xor eax, eax: no STR into eax found in %v", got)
	}
	if !hasClearOrStrZero(got, reil.FlagOF) {
		t.Errorf("xor eax, eax: OF not cleared in %v", got)
	}
	if !hasClearOrStrZero(got, reil.FlagCF) {
		t.Errorf("xor eax, eax: CF not cleared in %v", got)
	}
	if !hasOp(got, reil.BISZ) {
		t.Errorf("xor eax, eax: no BISZ computing ZF in %v", got)
	}
}

func TestTranslateAddSetsArithmeticFlags(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "add",
		Operands: []x86.Operand{x86.Reg("al", 8), x86.Imm(1, 8)},
		Address:  0x100c,
		Size:     2,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	if !hasStrInto(got, "al") {
		t.Errorf("add al, 1: no STR into al found in %v", got)
	}
	for _, flag := range []string{reil.FlagCF, reil.FlagOF, reil.FlagSF} {
		if !hasStrInto(got, flag) {
			t.Errorf("add al, 1: flag %s never written in %v", flag, got)
		}
	}
	// ZF is written by BISZ rather than STR.
	if !hasBiszInto(got, reil.FlagZF) {
		t.Errorf("add al, 1: flag %s never written in %v", reil.FlagZF, got)
	}
}

func TestTranslateMov64BitZeroExtendsBeforeNarrowWrite(t *testing.T) {
	tr := New(WithArchitectureMode(64))
	instr := x86.Instruction{
		Mnemonic: "mov",
		Operands: []x86.Operand{x86.Reg("eax", 32), x86.Imm(1, 32)},
		Address:  0x1010,
		Size:     5,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	want := []reil.MicroOp{
		reil.Str(reil.Imm(0, 64), reil.Reg("rax", 64)),
		reil.Str(reil.Imm(1, 32), reil.Reg("eax", 32)),
	}
	if diff := cmp.Diff(want, got, diffOpts); diff != "" {
		t.Fatalf("Translate(mov eax, 1) in 64-bit mode: (-want, +got)\n%s", diff)
	}
}

func TestTranslateJneBranchesOnNotZeroToPackedTarget(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "jne",
		Operands: []x86.Operand{x86.Imm(0x400100, 32)},
		Address:  0x1014,
		Size:     6,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	last := got[len(got)-1]
	if last.Mnemonic != reil.JCC {
		t.Fatalf("jne: last micro-op is %s, want jcc", last.Mnemonic)
	}
	const wantTargetWidth = 72 // packed-address width: 64-bit native address + 8-bit sub-index
	wantTarget := int64(reil.PackAddress(0x400100, 0))
	if last.Op2.Imm != wantTarget || last.Op2.Width != wantTargetWidth {
		t.Fatalf("jne: branch target = %#x:%d, want %#x:%d", last.Op2.Imm, last.Op2.Width, wantTarget, wantTargetWidth)
	}
}

func TestTranslateLoopDecrementsCounterAndBranches(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "loop",
		Operands: []x86.Operand{x86.Imm(0x400000, 32)},
		Address:  0x1020,
		Size:     2,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	if !hasStrInto(got, "ecx") {
		t.Errorf("loop: counter register ecx never written in %v", got)
	}
	if !hasOp(got, reil.BISZ) {
		t.Errorf("loop: no BISZ testing the counter in %v", got)
	}
	if len(got) < 2 {
		t.Fatalf("loop: want at least a back-edge and a fall-through jcc, got %v", got)
	}

	backEdge := got[len(got)-2]
	if backEdge.Mnemonic != reil.JCC {
		t.Fatalf("loop: second-to-last micro-op is %s, want jcc (the back-edge)", backEdge.Mnemonic)
	}
	wantBackEdge := int64(reil.PackAddress(0x400000, 0))
	if backEdge.Op2.Imm != wantBackEdge {
		t.Fatalf("loop: back-edge target = %#x, want %#x", backEdge.Op2.Imm, wantBackEdge)
	}

	fallThrough := got[len(got)-1]
	if fallThrough.Mnemonic != reil.JCC {
		t.Fatalf("loop: last micro-op is %s, want jcc (the fall-through)", fallThrough.Mnemonic)
	}
	if fallThrough.Op0.Imm != 1 {
		t.Fatalf("loop: fall-through jcc condition = %#x, want unconditional (1)", fallThrough.Op0.Imm)
	}
	wantEnd := int64(reil.PackAddress(instr.Address+uint64(instr.Size), 0))
	if fallThrough.Op2.Imm != wantEnd {
		t.Fatalf("loop: fall-through target = %#x, want %#x", fallThrough.Op2.Imm, wantEnd)
	}
}

func TestTranslateSarBuildsAnIntraInstructionLoop(t *testing.T) {
	tr := New()
	instr := x86.Instruction{
		Mnemonic: "sar",
		Operands: []x86.Operand{x86.Reg("eax", 32), x86.Reg("cl", 8)},
		Address:  0x1030,
		Size:     2,
	}

	got, err := tr.Translate(instr)
	if err != nil {
		t.Fatalf("Translate() = %v", err)
	}

	jccCount := 0
	for _, op := range got {
		if op.Mnemonic == reil.JCC {
			jccCount++
		}
	}
	// One conditional branch to the loop's exit label, one unconditional
	// back-edge to its head.
	if jccCount < 2 {
		t.Errorf("sar eax, cl: found %d JCCs, want at least 2 (loop exit + back-edge)", jccCount)
	}

	// Every target must stay within this instruction: the loop is entirely
	// intra-instruction.
	for _, op := range got {
		if op.Mnemonic != reil.JCC {
			continue
		}
		if op.Op2.Imm>>8 != int64(instr.Address) {
			t.Errorf("sar eax, cl: JCC target %#x leaves the instruction's own address", op.Op2.Imm)
		}
	}

	if !hasStrInto(got, "eax") {
		t.Errorf("sar eax, cl: no final STR into eax in %v", got)
	}
}

func hasOp(ops []reil.MicroOp, mnemonic reil.Op) bool {
	for _, op := range ops {
		if op.Mnemonic == mnemonic {
			return true
		}
	}
	return false
}

func hasStrInto(ops []reil.MicroOp, name string) bool {
	for _, op := range ops {
		if op.Mnemonic == reil.STR && op.Op2.Kind == reil.Register && op.Op2.Name == name {
			return true
		}
	}
	return false
}

func hasBiszInto(ops []reil.MicroOp, name string) bool {
	for _, op := range ops {
		if op.Mnemonic == reil.BISZ && op.Op2.Kind == reil.Register && op.Op2.Name == name {
			return true
		}
	}
	return false
}

func hasClearOrStrZero(ops []reil.MicroOp, flag string) bool {
	for _, op := range ops {
		if op.Mnemonic == reil.STR && op.Op2.Kind == reil.Register && op.Op2.Name == flag {
			if op.Op0.Kind == reil.Immediate && op.Op0.Imm == 0 {
				return true
			}
		}
	}
	return false
}
