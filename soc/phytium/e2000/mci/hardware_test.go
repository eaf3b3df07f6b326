// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mci

import (
	"testing"
	"unsafe"

	"github.com/usbarmory/tamago-phytium-mci/internal/reg"
)

// newTestController binds an MCI to a plain heap-backed byte slice standing
// in for a register block, and self-clears the bits a real controller
// would clear asynchronously (START, the soft-reset bits).
func newTestController(t *testing.T) (*MCI, []byte) {
	t.Helper()

	regs := make([]byte, 0x300)
	base := uint64(uintptr(unsafe.Pointer(&regs[0])))

	m := &MCI{Base: base}
	m.init()

	go func() {
		for i := 0; i < 1000; i++ {
			reg.Clear(m.cmdReg, CMD_START)
			reg.Clear(m.busMode, BUS_MODE_SWR)
			reg.Clear(m.cntrl, CNTRL_FIFO_RESET)
			reg.Clear(m.cntrl, CNTRL_DMA_RESET)
		}
	}()

	return m, regs
}

func TestSetBusWidth(t *testing.T) {
	m, _ := newTestController(t)

	if err := m.SetBusWidth(4); err != nil {
		t.Fatal(err)
	}

	if reg.Read(m.ctype) != CTYPE_4BIT {
		t.Fatalf("expected CTYPE_4BIT, got %#x", reg.Read(m.ctype))
	}

	if err := m.SetBusWidth(3); err == nil {
		t.Fatal("expected error for unsupported bus width")
	}
}

func TestSetVoltage(t *testing.T) {
	m, _ := newTestController(t)

	m.SetVoltage(true)

	if reg.Get(m.uhsReg, UHS_VOLT, 1) != 1 {
		t.Fatal("expected UHS_VOLT set for 1.8V")
	}

	m.SetVoltage(false)

	if reg.Get(m.uhsReg, UHS_VOLT, 1) != 0 {
		t.Fatal("expected UHS_VOLT clear for 3.3V")
	}
}

func TestInterruptMask(t *testing.T) {
	m, _ := newTestController(t)

	m.InterruptMask(GeneralInterrupt, 1<<INT_CMD_BIT, true)

	if reg.Read(m.intMask)&(1<<INT_CMD_BIT) == 0 {
		t.Fatal("expected general interrupt mask bit set")
	}

	m.InterruptMask(GeneralInterrupt, 1<<INT_CMD_BIT, false)

	if reg.Read(m.intMask)&(1<<INT_CMD_BIT) != 0 {
		t.Fatal("expected general interrupt mask bit cleared")
	}
}

func TestLookupTiming(t *testing.T) {
	if _, ok := lookupTiming(400000, true); !ok {
		t.Fatal("expected a 400kHz removable timing profile")
	}

	if _, ok := lookupTiming(1234567, true); ok {
		t.Fatal("expected no timing profile for an arbitrary frequency")
	}
}
