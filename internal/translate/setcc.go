// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

func registerSetcc(d map[string]LowerFunc) {
	for _, cc := range conditionSuffixes {
		d["set"+cc] = setccLowerer(cc)
	}
}

// setccLowerer builds the lowering routine for set<cc>: write the 8-bit
// destination to 1 or 0 depending on whether cc's condition holds,
// reusing the same flag algebra j<cc> and loop use (conditions.go).
func setccLowerer(cc string) LowerFunc {
	return func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
		cond, err := condition(buf, cc)
		if err != nil {
			return err
		}
		dst := instr.Operand(0)
		wide := buf.Temporal(dst.Width)
		buf.Add(reil.Str(cond, wide))
		return buf.Write(dst, wide)
	}
}
