// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mci

import "time"

// Platform is the set of services the driver consumes from its board, but
// does not implement itself: sleeping, DMA physical-address translation and
// cache maintenance. A board package supplies one instance per controller.
type Platform interface {
	// Sleep blocks the calling goroutine for the given duration.
	Sleep(d time.Duration)

	// PhysOf translates a DMA-capable buffer into the bus address the
	// controller must use to reach it.
	PhysOf(buf []byte) uint64

	// CacheClean writes back any dirty cache lines covering buf so that a
	// subsequent DMA write by the controller observes CPU writes.
	CacheClean(buf []byte)

	// CacheInvalidate discards cache lines covering buf so that a
	// subsequent CPU read observes a DMA write by the controller.
	CacheInvalidate(buf []byte)
}

// Debug, when non-nil, receives free-form diagnostic messages from the
// driver. It stands in for a log call site without forcing a logging
// dependency on callers that don't want one.
var Debug func(format string, args ...interface{})

func debugf(format string, args ...interface{}) {
	if Debug != nil {
		Debug(format, args...)
	}
}
