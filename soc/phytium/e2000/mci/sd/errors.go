// Phytium E2000 SD protocol driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sd

import (
	"errors"
	"fmt"
)

// Error is a protocol-layer error, wrapping one of the sentinel values below
// with the identification/transfer step that produced it.
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

// Protocol-layer sentinel errors, matched with errors.Is.
var (
	ErrFail                               = errors.New("sd: operation failed")
	ErrTimeout                            = errors.New("sd: timeout")
	ErrNotSupportYet                      = errors.New("sd: not supported yet")
	ErrTransferFailed                     = errors.New("sd: transfer failed")
	ErrHostNotReady                       = errors.New("sd: host not ready")
	ErrCardDetectFailed                   = errors.New("sd: card detect failed")
	ErrCardInitFailed                     = errors.New("sd: card init failed")
	ErrSendCsdFailed                      = errors.New("sd: send CSD failed")
	ErrSendRelativeAddressFailed          = errors.New("sd: send relative address failed")
	ErrAllSendCidFailed                   = errors.New("sd: all send CID failed")
	ErrSelectCardFailed                   = errors.New("sd: select card failed")
	ErrSendScrFailed                      = errors.New("sd: send SCR failed")
	ErrSetDataBusWidthFailed              = errors.New("sd: set data bus width failed")
	ErrGoIdleFailed                       = errors.New("sd: go idle failed")
	ErrHandShakeOperationConditionFailed  = errors.New("sd: handshake operation condition failed")
	ErrSendApplicationCommandFailed       = errors.New("sd: send application command failed")
	ErrSwitchFailed                       = errors.New("sd: switch failed")
	ErrSwitchBusTimingFailed              = errors.New("sd: switch bus timing failed")
	ErrSetCardBlockSizeFailed             = errors.New("sd: set card block size failed")
	ErrPollingCardIdleFailed              = errors.New("sd: polling card idle failed")
	ErrSwitchVoltageFail                  = errors.New("sd: switch voltage failed")
	ErrSwitchVoltage18VFail33VSuccess     = errors.New("sd: 1.8V switch failed, 3.3V intact")
	ErrTuningFail                         = errors.New("sd: tuning failed")
	ErrReTuningRequest                    = errors.New("sd: re-tuning requested")
	ErrCardStatusIdle                     = errors.New("sd: card status idle")
	ErrCardStatusBusy                     = errors.New("sd: card status busy")
)

func wrapErr(sentinel error, format string, args ...interface{}) error {
	return &Error{Sentinel: sentinel, Detail: fmt.Sprintf(format, args...)}
}
