// Phytium E2000 IOPAD support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package iopad implements pin-multiplex configuration for the Phytium
// E2000 IOPAD controller: per-pin function, pull and drive selection (REG0)
// and input/output delay tuning (REG1).
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package iopad

import "github.com/usbarmory/tamago-phytium-mci/internal/reg"

// REG0 bit fields: function, drive strength, pull resistor.
const (
	REG0_FUNC  = 0 // 3 bits
	REG0_DRIVE = 4 // 4 bits
	REG0_PULL  = 8 // 2 bits
)

// REG1 bit fields: input/output delay enable, fine and coarse tuning.
const (
	REG1_IN_DELAY_EN      = 0
	REG1_IN_DELAY_FINE    = 1 // 3 bits
	REG1_IN_DELAY_COARSE  = 4 // 3 bits
	REG1_OUT_DELAY_EN     = 8
	REG1_OUT_DELAY_FINE   = 9  // 3 bits
	REG1_OUT_DELAY_COARSE = 12 // 3 bits
)

// Func selects the peripheral function multiplexed onto a pin.
type Func uint32

const (
	Func0 Func = iota
	Func1
	Func2
	Func3
	Func4
	Func5
	Func6
	Func7
)

// Pull selects the pin's internal pull resistor.
type Pull uint32

const (
	PullNone Pull = iota
	PullDown
	PullUp
)

// Drive selects the pin's output drive strength, 0 (weakest) to 15
// (strongest).
type Drive uint32

// DelayDir distinguishes input-path from output-path delay tuning.
type DelayDir int

const (
	InputDelay DelayDir = iota
	OutputDelay
)

// DelayKind distinguishes fine from coarse delay tuning.
type DelayKind int

const (
	DelayFine DelayKind = iota
	DelayCoarse
)

// Pad identifies one pin's REG0/REG1 offsets from the IOPAD base address.
// Reg1 is 0 for pins with no delay-tuning register.
type Pad struct {
	Name string
	Reg0 uint64
	Reg1 uint64
}

// Controller is a bound view over one IOPAD register block.
type Controller struct {
	Base uint64
}

// Configure sets function, pull and drive in a single REG0 read-modify-
// write.
func (c *Controller) Configure(p *Pad, fn Func, pull Pull, drive Drive) {
	addr := c.Base + p.Reg0

	reg.SetN(addr, REG0_FUNC, 0b111, uint32(fn))
	reg.SetN(addr, REG0_DRIVE, 0b1111, uint32(drive))
	reg.SetN(addr, REG0_PULL, 0b11, uint32(pull))
}

// Func reads back the pin's configured function.
func (c *Controller) Func(p *Pad) Func {
	return Func(reg.Get(c.Base+p.Reg0, REG0_FUNC, 0b111))
}

// SetDelay programs the fine or coarse delay value for the input or output
// path. Panics-free no-op when the pad has no REG1 (Reg1 == 0).
func (c *Controller) SetDelay(p *Pad, dir DelayDir, kind DelayKind, value uint32) {
	if p.Reg1 == 0 {
		return
	}

	addr := c.Base + p.Reg1

	pos := REG1_IN_DELAY_FINE

	switch {
	case dir == InputDelay && kind == DelayFine:
		pos = REG1_IN_DELAY_FINE
	case dir == InputDelay && kind == DelayCoarse:
		pos = REG1_IN_DELAY_COARSE
	case dir == OutputDelay && kind == DelayFine:
		pos = REG1_OUT_DELAY_FINE
	case dir == OutputDelay && kind == DelayCoarse:
		pos = REG1_OUT_DELAY_COARSE
	}

	reg.SetN(addr, pos, 0b111, value)
}

// EnableDelay enables or disables delay tuning for the input or output
// path.
func (c *Controller) EnableDelay(p *Pad, dir DelayDir, enable bool) {
	if p.Reg1 == 0 {
		return
	}

	addr := c.Base + p.Reg1

	pos := REG1_IN_DELAY_EN

	if dir == OutputDelay {
		pos = REG1_OUT_DELAY_EN
	}

	reg.SetTo(addr, pos, enable)
}
