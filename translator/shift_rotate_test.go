// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translator

import (
	"testing"

	"firefly-os.dev/reil/internal/x86"
)

// TestTranslateShiftRotateFamilyIsWellFormed exercises every shift/rotate
// mnemonic across both count forms (an immediate and the implicit cl
// register) and both CPU modes. Translate runs reil.Validate internally
// (translator.go), so a nil error here already confirms every emitted
// micro-op's operand widths satisfy spec.md §4.8 for these mnemonics.
func TestTranslateShiftRotateFamilyIsWellFormed(t *testing.T) {
	mnemonics := []string{"shr", "shl", "sal", "sar", "rol", "ror", "rcl", "rcr"}
	widths := []uint8{8, 16, 32, 64}
	archModes := []int{32, 64}

	for _, mnemonic := range mnemonics {
		for _, width := range widths {
			for _, archMode := range archModes {
				for _, useRegisterCount := range []bool{false, true} {
					name := mnemonic
					t.Run(name, func(t *testing.T) {
						dst := widthRegister(width)
						count := x86.Imm(3, 8)
						if useRegisterCount {
							count = x86.Reg("cl", 8)
						}

						tr := New(WithArchitectureMode(archMode))
						instr := x86.Instruction{
							Mnemonic: mnemonic,
							Operands: []x86.Operand{dst, count},
							Address:  0x3000,
							Size:     3,
						}

						if _, err := tr.Translate(instr); err != nil {
							t.Fatalf("Translate(%s width=%d archMode=%d registerCount=%v) = %v",
								mnemonic, width, archMode, useRegisterCount, err)
						}
					})
				}
			}
		}
	}
}

func widthRegister(width uint8) x86.Operand {
	switch width {
	case 8:
		return x86.Reg("al", 8)
	case 16:
		return x86.Reg("ax", 16)
	case 32:
		return x86.Reg("eax", 32)
	default:
		return x86.Reg("rax", 64)
	}
}
