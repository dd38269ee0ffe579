// Copyright 2023 The Firefly Authors.
//
// Use of this source code is governed by a BSD 3-clause
// license that can be found in the LICENSE file.

package translator

import "log"

// Mode selects between the two translation fidelities spec.md §5 defines:
// FULL, which emits the complete flag micro-programs, and LITE, which
// emits only the flags that are part of an instruction's semantic result
// (e.g. the CF produced by SHR or NEG).
type Mode int

const (
	Full Mode = iota
	Lite
)

func (m Mode) String() string {
	if m == Lite {
		return "lite"
	}
	return "full"
}

// Option configures a Translator constructed by New.
type Option func(*Translator)

// WithArchitectureMode selects the CPU mode: 32 or 64. The default is 32.
// Translator does not validate the value: anything other than 64 is
// translated as 32-bit mode.
func WithArchitectureMode(bits int) Option {
	return func(t *Translator) { t.archMode = bits }
}

// WithTranslationMode selects FULL or LITE flag fidelity. The default is
// Full.
func WithTranslationMode(m Mode) Option {
	return func(t *Translator) { t.mode = m }
}

// WithLogger overrides the logger Translate reports unsupported mnemonics
// and lowering failures to. The default is log.Default().
func WithLogger(logger *log.Logger) Option {
	return func(t *Translator) { t.logger = logger }
}

func defaultLogger() *log.Logger {
	return log.Default()
}
