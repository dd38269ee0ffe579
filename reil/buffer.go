// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

import (
	"fmt"

	"firefly-os.dev/reil/internal/x86"
)

type item struct {
	label *Label // set if this item is a label marker
	op    MicroOp
}

// Buffer accumulates the micro-op sequence for a single x86 instruction. A
// Buffer is constructed per instruction by Translator.Translate, mutated
// only by the one per-mnemonic lowering routine invoked for that
// instruction, then finalized and discarded; it is never reused across
// instructions.
type Buffer struct {
	namer  *Namer
	arch   x86.ArchInfo
	items  []item
	labels int
}

// NewBuffer constructs an empty Buffer. namer is shared across the
// translation session (see Namer); arch describes the target CPU mode's
// register widths and aliasing.
func NewBuffer(namer *Namer, arch x86.ArchInfo) *Buffer {
	return &Buffer{namer: namer, arch: arch}
}

// Add appends a micro-op to the buffer.
func (b *Buffer) Add(op MicroOp) {
	b.items = append(b.items, item{op: op})
}

// NewLabel returns a fresh label handle, not yet inserted into the buffer.
// name is a diagnostic label only; uniqueness is guaranteed by identity,
// not by name.
func (b *Buffer) NewLabel(name string) *Label {
	b.labels++
	return &Label{id: b.labels, name: name}
}

// Mark inserts l's marker at the current position. Finalize resolves l to
// the packed address of the next micro-op Add appends after this call.
func (b *Buffer) Mark(l *Label) {
	b.items = append(b.items, item{label: l})
}

// Temporal allocates a fresh uniquely-named temporary register.
func (b *Buffer) Temporal(width uint8) Value {
	return b.namer.Temporal(width)
}

// Immediate returns an Immediate value. A negative v is meaningful only as
// a BSH shift count, where it denotes a right shift.
func (b *Buffer) Immediate(v int64, width uint8) Value {
	return Imm(v, width)
}

// Arch returns the architecture description this buffer was constructed
// with.
func (b *Buffer) Arch() x86.ArchInfo {
	return b.arch
}

// Read lowers an x86 operand to a REIL value usable as a micro-op source.
// Register and Immediate operands translate directly; a Memory operand
// computes its effective address, loads it into a fresh temporary with
// LDM, and returns that temporary.
func (b *Buffer) Read(op x86.Operand) (Value, error) {
	switch op.Kind {
	case x86.OperandImmediate:
		return Imm(op.Value, op.Width), nil
	case x86.OperandRegister:
		return Reg(op.Name, op.Width), nil
	case x86.OperandMemory:
		addr, err := b.EffectiveAddress(op)
		if err != nil {
			return Value{}, err
		}
		tmp := b.Temporal(op.Width)
		b.Add(Ldm(addr, tmp))
		return tmp, nil
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrUnsupportedOperandKind, op.Kind)
	}
}

// Write lowers a store of value into an x86 destination operand.
//
// For a Register destination in 64-bit mode whose width is 32 bits and
// which has a known 64-bit parent, Write first zero-extends the parent
// (STR(0, parent)) before writing the 32-bit register, preserving x86's
// implicit zero-extension semantics (spec.md §3 invariant).
//
// For a Memory destination whose width does not match value's width, Write
// first truncates or extends value into a same-width temporary before the
// store.
func (b *Buffer) Write(op x86.Operand, value Value) error {
	switch op.Kind {
	case x86.OperandRegister:
		if b.arch.Mode() == 64 && op.Width == 32 {
			if parent, _, ok := b.arch.RegisterParent(op.Name); ok {
				b.Add(Str(Imm(0, 64), Reg(parent, 64)))
			}
		}
		b.Add(Str(value, Reg(op.Name, op.Width)))
		return nil
	case x86.OperandMemory:
		addr, err := b.EffectiveAddress(op)
		if err != nil {
			return err
		}
		if value.Width != op.Width {
			tmp := b.Temporal(op.Width)
			b.Add(Str(value, tmp))
			b.Add(Stm(tmp, addr))
		} else {
			b.Add(Stm(value, addr))
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnsupportedOperandKind, op.Kind)
	}
}

// EffectiveAddress lowers a Memory operand's base+index*scale+displacement
// into a width-consistent chain of temporaries, per spec.md §4.3. lea uses
// this directly, without the LDM that Read would add.
func (b *Buffer) EffectiveAddress(op x86.Operand) (Value, error) {
	if op.Kind != x86.OperandMemory {
		return Value{}, fmt.Errorf("%w: effective address of non-memory operand", ErrUnsupportedOperandKind)
	}

	addrSize := b.arch.AddressSize()
	var addr Value
	have := false

	if op.Base != "" {
		addr = Reg(op.Base, addrSize)
		have = true
	}

	if op.Index != "" && op.Scale != 0 {
		scaled := b.Temporal(addrSize)
		b.Add(Mul(Reg(op.Index, addrSize), Imm(int64(op.Scale), addrSize), scaled))
		if have {
			sum := b.Temporal(addrSize)
			b.Add(Add(addr, scaled, sum))
			addr = sum
		} else {
			addr = scaled
			have = true
		}
	}

	if op.Displacement != 0 {
		if have {
			sum := b.Temporal(addrSize)
			b.Add(Add(addr, Imm(op.Displacement, addrSize), sum))
			addr = sum
		} else {
			addr = Imm(op.Displacement, addrSize)
			have = true
		}
	}

	if !have {
		addr = Imm(0, addrSize)
	}

	return addr, nil
}

// Finalize assigns each emitted micro-op its packed (instrAddress<<8)|k
// address in emission order, resolves every Label reference to the packed
// address of the micro-op immediately following its Mark, and returns the
// finished sequence. A label with no following micro-op is an internal
// lowering bug and is reported as such.
func (b *Buffer) Finalize(instrAddress uint64) ([]MicroOp, error) {
	ops := make([]MicroOp, 0, len(b.items))
	addresses := make(map[*Label]uint64)

	var pending []*Label
	sub := 0
	for _, it := range b.items {
		if it.label != nil {
			pending = append(pending, it.label)
			continue
		}

		addr := PackAddress(instrAddress, uint8(sub))
		for _, l := range pending {
			addresses[l] = addr
		}
		pending = nil

		op := it.op
		op.Address = addr
		ops = append(ops, op)
		sub++
	}

	if len(pending) > 0 {
		return nil, fmt.Errorf("%w: label %q has no following micro-op", ErrInternalLowering, pending[0].Name())
	}

	for i := range ops {
		resolved, err := resolveLabels(ops[i], addresses)
		if err != nil {
			return nil, err
		}
		ops[i] = resolved
	}

	return ops, nil
}

func resolveLabels(op MicroOp, addresses map[*Label]uint64) (MicroOp, error) {
	var err error
	op.Op0, err = resolveLabel(op.Op0, addresses)
	if err != nil {
		return op, err
	}
	op.Op1, err = resolveLabel(op.Op1, addresses)
	if err != nil {
		return op, err
	}
	op.Op2, err = resolveLabel(op.Op2, addresses)
	if err != nil {
		return op, err
	}
	return op, nil
}

func resolveLabel(v Value, addresses map[*Label]uint64) (Value, error) {
	if !v.hasPendingLabel() {
		return v, nil
	}

	addr, ok := addresses[v.label]
	if !ok {
		return v, fmt.Errorf("%w: unresolved label %q", ErrInternalLowering, v.label.Name())
	}

	return Imm(int64(addr), v.Width), nil
}
