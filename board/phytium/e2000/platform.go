// Phytium E2000 reference platform support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package e2000

import (
	"time"
	"unsafe"

	"github.com/usbarmory/tamago-phytium-mci/dma"
)

// Platform implements mci.Platform on top of the DMA region and generic
// timers already brought up by runtime initialization: the DMA region is
// identity-mapped and marked non-cacheable, so PhysOf is a pass-through
// and cache maintenance is a no-op.
type platform struct{}

func (platform) Sleep(d time.Duration) {
	time.Sleep(d)
}

func (platform) PhysOf(buf []byte) uint64 {
	if len(buf) == 0 {
		return 0
	}

	if r := dma.Default(); r != nil {
		if res, addr := r.Reserved(buf); res {
			return uint64(addr)
		}
	}

	return uint64(uintptr(unsafe.Pointer(&buf[0])))
}

func (platform) CacheClean(buf []byte) {}

func (platform) CacheInvalidate(buf []byte) {}
