// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translate

import (
	"errors"
	"testing"

	"firefly-os.dev/reil/reil"
	"firefly-os.dev/reil/internal/x86"
)

func TestConditionProducesOneBitValue(t *testing.T) {
	codes := []string{
		"a", "ae", "nc", "b", "c", "be",
		"e", "z", "ne", "nz",
		"g", "ge", "l", "le",
		"o", "no", "s", "ns",
	}

	for _, cc := range codes {
		t.Run(cc, func(t *testing.T) {
			buf := reil.NewBuffer(&reil.Namer{}, x86.Arch32)
			v, err := condition(buf, cc)
			if err != nil {
				t.Fatalf("condition(%q) = %v", cc, err)
			}
			if v.Width != 1 {
				t.Fatalf("condition(%q) returned width %d, want 1", cc, v.Width)
			}
		})
	}
}

func TestConditionRejectsUnknownCode(t *testing.T) {
	buf := reil.NewBuffer(&reil.Namer{}, x86.Arch32)
	if _, err := condition(buf, "bogus"); !errors.Is(err, reil.ErrInternalLowering) {
		t.Fatalf("condition(%q) = %v, want an error wrapping ErrInternalLowering", "bogus", err)
	}
}

func TestConditionAeAndNcAgree(t *testing.T) {
	// ae and nc are documented aliases for the same flag test (CF == 0);
	// condition must lower them identically.
	bufAe := reil.NewBuffer(&reil.Namer{}, x86.Arch32)
	ae, err := condition(bufAe, "ae")
	if err != nil {
		t.Fatalf("condition(ae) = %v", err)
	}

	bufNc := reil.NewBuffer(&reil.Namer{}, x86.Arch32)
	nc, err := condition(bufNc, "nc")
	if err != nil {
		t.Fatalf("condition(nc) = %v", err)
	}

	opsAe, err := bufAe.Finalize(0)
	if err != nil {
		t.Fatalf("Finalize(ae) = %v", err)
	}
	opsNc, err := bufNc.Finalize(0)
	if err != nil {
		t.Fatalf("Finalize(nc) = %v", err)
	}

	if len(opsAe) != len(opsNc) {
		t.Fatalf("ae produced %d micro-ops, nc produced %d; expected identical lowering", len(opsAe), len(opsNc))
	}
	if ae.Name != nc.Name {
		t.Fatalf("ae result %s != nc result %s", ae.Name, nc.Name)
	}
}
