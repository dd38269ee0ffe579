// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

import "errors"

// Sentinel errors matching the failure taxonomy of spec.md §7. Callers use
// errors.Is to classify a failed translation; all three are fatal and
// propagate out of Translator.Translate, unlike an unsupported mnemonic,
// which is handled locally and never produces one of these.
var (
	// ErrUnsupportedOperandKind is returned when an x86 operand is not one
	// of Immediate, Register or Memory, or when a write target is not a
	// valid destination kind.
	ErrUnsupportedOperandKind = errors.New("reil: unsupported operand kind")

	// ErrInvalidOperandWidth is returned by the operand-size validator when
	// an emitted micro-op violates spec.md §4.8's per-mnemonic width rule.
	ErrInvalidOperandWidth = errors.New("reil: invalid operand width")

	// ErrInternalLowering wraps any other unexpected failure inside a
	// per-mnemonic lowering routine, such as an unresolved label.
	ErrInternalLowering = errors.New("reil: internal lowering error")
)
