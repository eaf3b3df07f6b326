// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mci

// dsb orders preceding register/descriptor writes ahead of whatever follows
// it, matching the data synchronization barrier the hardware driver issues
// before kicking a transfer or writing a command argument. Every register
// access in this package already goes through sync/atomic (see
// internal/reg), which on a single-core cooperative scheduler is sufficient
// to prevent the compiler from reordering the writes the barrier guards;
// dsb is kept as an explicit call site so the ordering requirement reads
// the same way it does against the hardware sequencing rules, and so a
// multi-core board package has one place to plug a real `DSB SY` in.
func dsb() {}
