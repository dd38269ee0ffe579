// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

// ArchInfo is the architecture-description interface the translator reads
// register widths and parent-register relationships from. The full x86
// instruction-set tables this would draw on in a production decoder are out
// of scope for the translator core (spec.md §1); ArchInfo names only the
// shape of interface it needs.
type ArchInfo interface {
	// Mode reports the CPU mode, 32 or 64.
	Mode() int

	// AddressSize reports the width, in bits, of an effective address in
	// this mode. Equal to ArchitectureSize in this design.
	AddressSize() uint8

	// ArchitectureSize reports the general-purpose word size in bits.
	ArchitectureSize() uint8

	// RegisterSize reports the declared width of the named register.
	RegisterSize(name string) (bits uint8, ok bool)

	// RegisterParent reports the 64-bit-mode parent register a 32-bit (or
	// narrower) register zero-extends into, along with the parent's bit
	// offset of the child within it. ok is false for registers with no
	// known wider parent (e.g. rax itself, or flags).
	RegisterParent(name string) (parent string, offsetBits uint8, ok bool)
}

// StackRegister, BaseRegister and InstructionPointer return the
// mode-appropriate names for esp/rsp, ebp/rbp and eip/rip.
func StackRegister(mode int) string {
	if mode == 64 {
		return "rsp"
	}
	return "esp"
}

func BaseRegister(mode int) string {
	if mode == 64 {
		return "rbp"
	}
	return "ebp"
}

func InstructionPointer(mode int) string {
	if mode == 64 {
		return "rip"
	}
	return "eip"
}

// WordSize returns the mode's word size in bytes: 4 for 32-bit mode, 8 for
// 64-bit mode. Used to size push/pop/call/ret stack adjustments.
func WordSize(mode int) uint8 {
	if mode == 64 {
		return 8
	}
	return 4
}
