// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"firefly-os.dev/reil/internal/x86"
)

func TestValidateOperandWidth(t *testing.T) {
	tests := []struct {
		name    string
		ops     []MicroOp
		wantErr bool
	}{
		{
			name: "well-formed add",
			ops: []MicroOp{
				Add(Reg("t0", 32), Reg("t1", 32), Reg("t2", 32)),
			},
		},
		{
			name: "mismatched and widths",
			ops: []MicroOp{
				And(Reg("t0", 32), Reg("t1", 8), Reg("t2", 32)),
			},
			wantErr: true,
		},
		{
			name: "ldm address width must match architecture",
			ops: []MicroOp{
				Ldm(Reg("ax", 16), Reg("t0", 32)),
			},
			wantErr: true,
		},
		{
			name: "ldm address width matching architecture is fine",
			ops: []MicroOp{
				Ldm(Reg("esp", 32), Reg("t0", 32)),
			},
		},
		{
			name: "str tolerates mismatched widths (truncation/extension)",
			ops: []MicroOp{
				Str(Reg("t0", 64), Reg("eax", 32)),
			},
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			err := Validate(test.ops, 32)
			if (err != nil) != test.wantErr {
				t.Fatalf("Validate() = %v, wantErr %v", err, test.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidOperandWidth) {
				t.Fatalf("Validate() error %v does not wrap ErrInvalidOperandWidth", err)
			}
		})
	}
}

func TestNamerTemporalUniquenessAndReset(t *testing.T) {
	n := &Namer{}

	first := n.Temporal(32)
	second := n.Temporal(32)
	if first.Name == second.Name {
		t.Fatalf("Temporal() returned duplicate names: %q", first.Name)
	}

	n.Reset()
	afterReset := n.Temporal(32)
	if afterReset.Name != first.Name {
		t.Fatalf("Temporal() after Reset() = %q, want %q", afterReset.Name, first.Name)
	}
}

func TestBufferFinalizeResolvesLabels(t *testing.T) {
	namer := &Namer{}
	buf := NewBuffer(namer, x86.Arch32)

	end := buf.NewLabel("end")
	buf.Add(Str(Imm(1, 1), Reg("t0", 1)))
	buf.Add(Jcc(Reg("t0", 1), LabelTarget(end, 64)))
	buf.Mark(end)
	buf.Add(Nop())

	ops, err := buf.Finalize(0x1000)
	if err != nil {
		t.Fatalf("Finalize() = %v", err)
	}

	if ops[1].Op2.hasPendingLabel() {
		t.Fatalf("Finalize() left an unresolved label in %s", ops[1])
	}
	wantTarget := PackAddress(0x1000, 2) // the label resolves to Nop, the micro-op right after Mark
	if ops[1].Op2.Imm != int64(wantTarget) {
		t.Fatalf("Finalize() resolved label to %#x, want %#x", ops[1].Op2.Imm, wantTarget)
	}
}

func TestBufferFinalizeUnresolvedLabelIsAnError(t *testing.T) {
	namer := &Namer{}
	buf := NewBuffer(namer, x86.Arch32)

	dangling := buf.NewLabel("dangling")
	buf.Add(Nop())
	buf.Mark(dangling)
	// No micro-op follows the mark: Finalize must reject this.

	if _, err := buf.Finalize(0x1000); !errors.Is(err, ErrInternalLowering) {
		t.Fatalf("Finalize() = %v, want an error wrapping ErrInternalLowering", err)
	}
}

func TestBufferWriteZeroExtendsOn64BitParentWrite(t *testing.T) {
	namer := &Namer{}
	buf := NewBuffer(namer, x86.Arch64)

	if err := buf.Write(x86.Reg("eax", 32), Imm(1, 32)); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	ops, err := buf.Finalize(0x2000)
	if err != nil {
		t.Fatalf("Finalize() = %v", err)
	}

	want := []MicroOp{
		Str(Imm(0, 64), Reg("rax", 64)),
		Str(Imm(1, 32), Reg("eax", 32)),
	}
	opts := cmp.Options{
		cmpopts.IgnoreFields(MicroOp{}, "Address"),
		cmpopts.IgnoreUnexported(Value{}),
	}
	if diff := cmp.Diff(want, ops, opts); diff != "" {
		t.Fatalf("Finalize(): (-want, +got)\n%s", diff)
	}
}

func TestBufferWriteDoesNotZeroExtendIn32BitMode(t *testing.T) {
	namer := &Namer{}
	buf := NewBuffer(namer, x86.Arch32)

	if err := buf.Write(x86.Reg("eax", 32), Imm(1, 32)); err != nil {
		t.Fatalf("Write() = %v", err)
	}

	ops, err := buf.Finalize(0x2000)
	if err != nil {
		t.Fatalf("Finalize() = %v", err)
	}
	if len(ops) != 1 {
		t.Fatalf("Finalize() produced %d micro-ops, want 1 (no zero-extension in 32-bit mode): %v", len(ops), ops)
	}
}

func TestPackAddress(t *testing.T) {
	got := PackAddress(0x400000, 3)
	want := uint64(0x400000<<8 | 3)
	if got != want {
		t.Fatalf("PackAddress() = %#x, want %#x", got, want)
	}
}
