// Phytium E2000 SD protocol driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sd

import "github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/mci"

const (
	switchModeCheck = 0
	switchModeSet   = 1

	groupTimingMode = 0

	funcSDR12  = 0
	funcSDR25  = 1
	funcSDR50  = 2
	funcSDR104 = 3
	funcDDR50  = 4
)

// switchFunction issues the two-phase CMD6 function switch: mode=check
// reads the function-support bitmap, and if the requested function is
// supported and ready, mode=set issues the switch. The return payload is a
// 64-byte wide-register read, MSB-first on the wire.
func (c *Card) switchFunction(mode int, group int, fn int) ([]byte, error) {
	// bits[23:0]: six 4-bit group fields, 0xF leaves a group unchanged.
	arg := uint32(0xffffff) &^ (uint32(0xf) << uint(group*4))
	arg |= uint32(fn) << uint(group*4)

	if mode == switchModeSet {
		arg |= 1 << 31
	}

	buf := make([]byte, 64)
	data := &mci.Data{BlockSize: 64, BlockCount: 1, Buf: buf, Direction: mci.DirRead}
	cmd := mci.BuildCommand(6, arg, mci.RespR1, data)

	if err := c.MCI.Transfer(cmd); err != nil {
		return nil, wrapErr(ErrSwitchFailed, "%v", err)
	}

	words := make([]uint32, 16)

	for i := 0; i < 16; i++ {
		words[i] = uint32(buf[i*4])<<24 | uint32(buf[i*4+1])<<16 | uint32(buf[i*4+2])<<8 | uint32(buf[i*4+3])
	}

	fixed := mci.FixByteOrder(words, false)

	out := make([]byte, 64)

	for i, w := range fixed {
		out[i*4] = byte(w)
		out[i*4+1] = byte(w >> 8)
		out[i*4+2] = byte(w >> 16)
		out[i*4+3] = byte(w >> 24)
	}

	if mode == switchModeSet && !functionSelected(out, group, fn) {
		return out, wrapErr(ErrSwitchFailed, "function %d not selected in group %d", fn, group)
	}

	return out, nil
}

// functionSupported reports whether fn is marked supported in the support
// bitmap of the given function group of a mode=check CMD6 response.
func functionSupported(status []byte, group int, fn int) bool {
	// group 1 (timing mode) support bitmap sits at bytes 12..13; each
	// higher-numbered group sits two bytes earlier, MSB first within the
	// group.
	off := 12 - 2*group

	if off < 0 || off+1 >= len(status) {
		return false
	}

	mask := uint16(status[off])<<8 | uint16(status[off+1])

	return mask&(1<<fn) != 0
}

// functionSelected reports whether bits 379..376 (the echoed function
// number for group 1) of a mode=set response equal fn.
func functionSelected(status []byte, group int, fn int) bool {
	// group 1 (timing mode) selection nibble sits at byte 16, low nibble.
	if len(status) < 17 {
		return false
	}

	selected := status[16] & 0xf

	return int(selected) == fn && group == groupTimingMode
}

// selectBusTiming implements §4.8.1: at 3.3V attempt CMD6 high-speed; at
// 1.8V try SDR104 -> SDR50 -> SDR25 with tuning and demotion on failure.
func (c *Card) selectBusTiming() error {
	if c.Feature&Supports18V == 0 {
		return c.selectHighSpeed()
	}

	return c.selectUHS()
}

func (c *Card) selectHighSpeed() error {
	status, err := c.switchFunction(switchModeCheck, groupTimingMode, funcSDR25)

	if err != nil || !functionSupported(status, groupTimingMode, funcSDR25) {
		// not supported: remain at 25MHz, success.
		return nil
	}

	if _, err := c.switchFunction(switchModeSet, groupTimingMode, funcSDR25); err != nil {
		return wrapErr(ErrSwitchBusTimingFailed, "%v", err)
	}

	hz := c.Caps.MaxClockHz

	if hz == 0 || hz > 50000000 {
		hz = 50000000
	}

	if err := c.MCI.SetClock(hz); err != nil {
		return wrapErr(ErrSwitchBusTimingFailed, "%v", err)
	}

	c.Timing = SDR25

	return nil
}

func (c *Card) selectUHS() error {
	type tier struct {
		fn     int
		timing Timing
		hz     uint32
		tune   bool
		ok     bool
	}

	tiers := []tier{
		{funcSDR104, SDR104, 208000000, true, c.Caps.SupportsSDR104},
		{funcSDR50, SDR50, 100000000, true, c.Caps.SupportsSDR50},
		{funcSDR25, SDR25, 50000000, false, true},
	}

	for _, tr := range tiers {
		if !tr.ok {
			continue
		}

		status, err := c.switchFunction(switchModeCheck, groupTimingMode, tr.fn)

		if err != nil || !functionSupported(status, groupTimingMode, tr.fn) {
			continue
		}

		if _, err := c.switchFunction(switchModeSet, groupTimingMode, tr.fn); err != nil {
			continue
		}

		if err := c.MCI.SetClock(tr.hz); err != nil {
			continue
		}

		if tr.tune {
			if err := c.executeTuning(); err != nil {
				// demote to the next tier.
				continue
			}
		}

		c.Timing = tr.timing

		return nil
	}

	// fall back to SDR12, no tuning.
	if err := c.MCI.SetClock(25000000); err != nil {
		return wrapErr(ErrSwitchBusTimingFailed, "%v", err)
	}

	c.Timing = SDR12

	return nil
}

// executeTuning issues a single CMD19 (send tuning block, 64-byte data
// block) and reports whether it completed. It does not step through
// sampling phases: the phase programmed by SetClock is left unchanged.
func (c *Card) executeTuning() error {
	buf := make([]byte, 64)
	data := &mci.Data{BlockSize: 64, BlockCount: 1, Buf: buf, Direction: mci.DirRead}
	cmd := mci.BuildCommand(19, 0, mci.RespR1, data)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrTuningFail, "%v", err)
	}

	return nil
}

// reTune re-executes tuning up to three times, the retry budget §4.8
// specifies for the block-read/write retry path.
func (c *Card) reTune() error {
	var err error

	for i := 0; i < 3; i++ {
		if err = c.executeTuning(); err == nil {
			return nil
		}
	}

	return wrapErr(ErrReTuningRequest, "%v", err)
}
