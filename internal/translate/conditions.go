// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"fmt"

	"firefly-os.dev/reil/reil"
)

func notBit(buf *reil.Buffer, v reil.Value) reil.Value {
	out := buf.Temporal(1)
	buf.Add(reil.Xor(v, reil.Imm(1, 1), out))
	return out
}

func andBit(buf *reil.Buffer, a, b reil.Value) reil.Value {
	out := buf.Temporal(1)
	buf.Add(reil.And(a, b, out))
	return out
}

func orBit(buf *reil.Buffer, a, b reil.Value) reil.Value {
	out := buf.Temporal(1)
	buf.Add(reil.Or(a, b, out))
	return out
}

func xorBit(buf *reil.Buffer, a, b reil.Value) reil.Value {
	out := buf.Temporal(1)
	buf.Add(reil.Xor(a, b, out))
	return out
}

func eqBit(buf *reil.Buffer, a, b reil.Value) reil.Value {
	return notBit(buf, xorBit(buf, a, b))
}

// condition lowers an x86 condition-code suffix (as used by j<cc> and
// set<cc>) into the flag algebra of spec.md §4.5, returning a 1-bit Value
// that is 1 when the condition holds.
func condition(buf *reil.Buffer, cc string) (reil.Value, error) {
	cf := reil.Reg(reil.FlagCF, 1)
	zf := reil.Reg(reil.FlagZF, 1)
	sf := reil.Reg(reil.FlagSF, 1)
	of := reil.Reg(reil.FlagOF, 1)

	switch cc {
	case "a":
		return andBit(buf, notBit(buf, cf), notBit(buf, zf)), nil
	case "ae", "nc":
		return notBit(buf, cf), nil
	case "b", "c":
		return cf, nil
	case "be":
		return orBit(buf, cf, zf), nil
	case "e", "z":
		return zf, nil
	case "ne", "nz":
		return notBit(buf, zf), nil
	case "g":
		return andBit(buf, notBit(buf, zf), eqBit(buf, sf, of)), nil
	case "ge":
		return eqBit(buf, sf, of), nil
	case "l":
		return xorBit(buf, sf, of), nil
	case "le":
		return orBit(buf, zf, xorBit(buf, sf, of)), nil
	case "o":
		return of, nil
	case "no":
		return notBit(buf, of), nil
	case "s":
		return sf, nil
	case "ns":
		return notBit(buf, sf), nil
	default:
		return reil.Value{}, fmt.Errorf("%w: unknown condition code %q", reil.ErrInternalLowering, cc)
	}
}

// conditionECXZ lowers the ecxz/rcxz condition used by the jecxz/jrcxz and
// (implicitly) loop family: true when the counter register is zero.
func conditionECXZ(buf *reil.Buffer, ctx Context) reil.Value {
	out := buf.Temporal(1)
	buf.Add(reil.Bisz(reil.Reg(ctx.CounterRegister(), wordWidth(ctx)), out))
	return out
}

func wordWidth(ctx Context) uint8 {
	return ctx.WordSize() * 8
}
