// Phytium E2000 initialization
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package e2000 brings up the processor core (MMU, caches, generic timers)
// and the DMA region shared by the reference platform's peripheral drivers.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package e2000

import (
	"runtime"

	"github.com/usbarmory/tamago-phytium-mci/arm64"
	"github.com/usbarmory/tamago-phytium-mci/dma"
)

// System Counter base address and reference clock frequency.
const (
	CNTCTL_BASE = 0x32a20000
	TIMER_FREQ  = 50000000
)

// DMA region: a carve-out reserved by the application's runtime.ramSize
// configuration, never touched by the Go allocator.
const (
	DMA_START = 0x90000000
	DMA_SIZE  = 0x00100000
)

// ARM64 is the core instance brought up by Init.
var ARM64 = &arm64.CPU{}

// Init takes care of the lower level core initialization (MMU, caches,
// generic timers); the board package calls it from its package init().
func Init() {
	ramStart, _ := runtime.MemRegion()
	ARM64.Init(ramStart)

	// MMU initialization is required to take advantage of the data cache
	ARM64.InitMMU()
	ARM64.EnableCache()

	ARM64.InitGenericTimers(CNTCTL_BASE, TIMER_FREQ)
}

func init() {
	dma.Init(DMA_START, DMA_SIZE)
}
