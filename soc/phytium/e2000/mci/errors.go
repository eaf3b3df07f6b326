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
	"errors"
	"fmt"
)

// Error is a hardware-layer error, wrapping one of the sentinel values below
// with the register state that produced it.
type Error struct {
	Sentinel error
	Detail   string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return e.Sentinel.Error()
	}

	return fmt.Sprintf("%s: %s", e.Sentinel.Error(), e.Detail)
}

func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Hardware-layer sentinel errors, matched with errors.Is.
var (
	ErrTimeout       = errors.New("timeout")
	ErrNotInit       = errors.New("controller not initialized")
	ErrShortBuf      = errors.New("buffer too short")
	ErrNotSupport    = errors.New("not supported")
	ErrInvalidState  = errors.New("invalid state")
	ErrTransTimeout  = errors.New("data transfer timeout")
	ErrCmdTimeout    = errors.New("command timeout")
	ErrNoCard        = errors.New("no card present")
	ErrBusy          = errors.New("controller busy")
	ErrDmaBufUnalign = errors.New("DMA buffer unaligned")
	ErrInvalidTiming = errors.New("invalid timing profile")
	ErrCrcError      = errors.New("CRC error")
	ErrInvalidParam  = errors.New("invalid parameter")
	ErrBadMalloc     = errors.New("descriptor allocation failed")
)

func wrapErr(sentinel error, format string, args ...interface{}) error {
	return &Error{Sentinel: sentinel, Detail: fmt.Sprintf(format, args...)}
}
