// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package reil

import "fmt"

// Namer generates unique temporary register names. It is the only
// component of the translator with mutable state that persists across
// calls to Translator.Translate; callers that need deterministic output
// (see the determinism property in spec.md §8) call Reset between
// translation batches.
//
// A Namer is not safe for concurrent use; confine it to one goroutine or
// guard it externally, matching the translator façade's own thread-safety
// contract.
type Namer struct {
	next int
}

// Temporal allocates a fresh, uniquely-named temporary register of the
// given bit width.
func (n *Namer) Temporal(width uint8) Value {
	name := fmt.Sprintf("t%d", n.next)
	n.next++
	return Reg(name, width)
}

// Reset returns the namer to its initial state, so the next Temporal call
// produces "t0" again.
func (n *Namer) Reset() {
	n.next = 0
}
