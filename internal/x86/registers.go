// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package x86

// register describes one general-purpose register: its width and, for
// sub-64-bit forms, the 64-bit parent it is a view onto.
type register struct {
	bits   uint8
	parent string // 64-bit parent name, empty if this register has none
}

// registers is a minimal general-purpose/flag/pointer register table,
// grounded on the same name/width/aliasing shape used throughout the x86
// instruction tables this package's sibling packages describe. It is
// intentionally smaller than a full decoder's architecture description
// (no segment, control, debug, x87, or vector registers) because the
// translator's flag and GPR lowering rules are the only consumers.
var registers = map[string]register{
	// 8-bit.
	"al": {8, "rax"}, "cl": {8, "rcx"}, "dl": {8, "rdx"}, "bl": {8, "rbx"},
	"spl": {8, "rsp"}, "bpl": {8, "rbp"}, "sil": {8, "rsi"}, "dil": {8, "rdi"},
	"r8b": {8, "r8"}, "r9b": {8, "r9"}, "r10b": {8, "r10"}, "r11b": {8, "r11"},
	"r12b": {8, "r12"}, "r13b": {8, "r13"}, "r14b": {8, "r14"}, "r15b": {8, "r15"},
	// High-byte legacy registers have no 64-bit parent relation the
	// zero-extension rule applies to (they are not valid in REX-prefixed
	// instructions alongside a 64-bit parent write).
	"ah": {8, ""}, "ch": {8, ""}, "dh": {8, ""}, "bh": {8, ""},

	// 16-bit.
	"ax": {16, "rax"}, "cx": {16, "rcx"}, "dx": {16, "rdx"}, "bx": {16, "rbx"},
	"sp": {16, "rsp"}, "bp": {16, "rbp"}, "si": {16, "rsi"}, "di": {16, "rdi"},
	"r8w": {16, "r8"}, "r9w": {16, "r9"}, "r10w": {16, "r10"}, "r11w": {16, "r11"},
	"r12w": {16, "r12"}, "r13w": {16, "r13"}, "r14w": {16, "r14"}, "r15w": {16, "r15"},

	// 32-bit. Every one of these zero-extends its 64-bit parent on write
	// in 64-bit mode (spec.md §3 invariant); parent is always set.
	"eax": {32, "rax"}, "ecx": {32, "rcx"}, "edx": {32, "rdx"}, "ebx": {32, "rbx"},
	"esp": {32, "rsp"}, "ebp": {32, "rbp"}, "esi": {32, "rsi"}, "edi": {32, "rdi"},
	"r8d": {32, "r8"}, "r9d": {32, "r9"}, "r10d": {32, "r10"}, "r11d": {32, "r11"},
	"r12d": {32, "r12"}, "r13d": {32, "r13"}, "r14d": {32, "r14"}, "r15d": {32, "r15"},

	// 64-bit: no parent.
	"rax": {64, ""}, "rcx": {64, ""}, "rdx": {64, ""}, "rbx": {64, ""},
	"rsp": {64, ""}, "rbp": {64, ""}, "rsi": {64, ""}, "rdi": {64, ""},
	"r8": {64, ""}, "r9": {64, ""}, "r10": {64, ""}, "r11": {64, ""},
	"r12": {64, ""}, "r13": {64, ""}, "r14": {64, ""}, "r15": {64, ""},

	// Instruction pointer.
	"ip": {16, ""}, "eip": {32, "rip"}, "rip": {64, ""},

	// Single-bit flag registers.
	"af": {1, ""}, "cf": {1, ""}, "df": {1, ""}, "of": {1, ""},
	"pf": {1, ""}, "sf": {1, ""}, "zf": {1, ""},
}

// staticArch is a fixed ArchInfo backed by the registers table above,
// parameterised only by CPU mode.
type staticArch struct {
	mode int
}

// Arch32 is the 32-bit-mode architecture description.
var Arch32 ArchInfo = staticArch{mode: 32}

// Arch64 is the 64-bit-mode architecture description.
var Arch64 ArchInfo = staticArch{mode: 64}

func (a staticArch) Mode() int { return a.mode }

func (a staticArch) AddressSize() uint8 {
	if a.mode == 64 {
		return 64
	}
	return 32
}

func (a staticArch) ArchitectureSize() uint8 {
	return a.AddressSize()
}

func (a staticArch) RegisterSize(name string) (uint8, bool) {
	r, ok := registers[name]
	if !ok {
		return 0, false
	}
	return r.bits, true
}

func (a staticArch) RegisterParent(name string) (string, uint8, bool) {
	r, ok := registers[name]
	if !ok || r.parent == "" {
		return "", 0, false
	}
	// Every register with a parent in the table sits at bit offset 0 of
	// that parent. The high-byte registers ah/ch/dh/bh, which sit at
	// offset 8, have no parent recorded here since they cannot be combined
	// with a REX prefix.
	return r.parent, 0, true
}
