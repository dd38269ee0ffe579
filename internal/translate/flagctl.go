// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

func registerFlagControl(d map[string]LowerFunc) {
	d["clc"] = flagLowerer(reil.Clear, reil.FlagCF)
	d["stc"] = flagLowerer(reil.Set, reil.FlagCF)
	d["cmc"] = lowerCmc
	d["cld"] = flagLowerer(reil.Clear, reil.FlagDF)
	d["std"] = flagLowerer(reil.Set, reil.FlagDF)
}

func flagLowerer(op func(*reil.Buffer, string), flag string) LowerFunc {
	return func(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
		op(buf, flag)
		return nil
	}
}

// lowerCmc complements CF: the one flag-control instruction that is not a
// plain Clear or Set.
func lowerCmc(buf *reil.Buffer, instr x86.Instruction, ctx Context) error {
	cf := reil.Reg(reil.FlagCF, 1)
	flipped := buf.Temporal(1)
	buf.Add(reil.Xor(cf, reil.Imm(1, 1), flipped))
	buf.Add(reil.Str(flipped, cf))
	return nil
}
