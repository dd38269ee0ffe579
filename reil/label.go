// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

// Label is a symbolic branch target used by lowering rules that need
// intra-instruction control flow (sar's loop and the OF update of
// rcl/rcr). It is never exposed outside a single Translate call: by the
// time Buffer.Finalize returns, every Label reference has been rewritten
// to a packed address.
type Label struct {
	id   int
	name string
}

// Name returns the label's diagnostic name, as passed to Buffer.NewLabel.
func (l *Label) Name() string { return l.name }

// LabelTarget returns a Value that stands in for l's eventual packed
// address, for use as the target operand of a JCC emitted before l has
// been marked with Buffer.Mark. Buffer.Finalize resolves it; a MicroOp
// returned from Translator.Translate never carries one of these.
func LabelTarget(l *Label, width uint8) Value {
	return Value{Kind: Immediate, Width: width, label: l}
}
