// Phytium E2000 IOPAD support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iopad

import (
	"testing"
	"unsafe"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()

	regs := make([]byte, 0x300)
	base := uint64(uintptr(unsafe.Pointer(&regs[0])))

	return &Controller{Base: base}
}

func TestConfigure(t *testing.T) {
	c := newTestController(t)
	p := &Pad{Reg0: 0x10, Reg1: 0x14}

	c.Configure(p, Func3, PullUp, 9)

	if got := c.Func(p); got != Func3 {
		t.Fatalf("Func: got %v, want Func3", got)
	}
}

func TestDelay(t *testing.T) {
	c := newTestController(t)
	p := &Pad{Reg0: 0x10, Reg1: 0x14}

	c.EnableDelay(p, OutputDelay, true)
	c.SetDelay(p, OutputDelay, DelayFine, 5)
}

func TestDelayNoopWithoutReg1(t *testing.T) {
	c := newTestController(t)
	p := &Pad{Reg0: 0x10}

	// must not panic: Reg1 is zero.
	c.EnableDelay(p, InputDelay, true)
	c.SetDelay(p, InputDelay, DelayCoarse, 3)
}

func TestConfigureSD0(t *testing.T) {
	c := newTestController(t)

	// must not panic across the whole pin group.
	ConfigureSD0(c)
}
