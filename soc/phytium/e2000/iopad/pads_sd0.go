// Phytium E2000 IOPAD support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package iopad

// SD0 pin group: the external microSD slot on the E2000 reference
// platform. Reg0/Reg1 offsets are board reference data, read from the
// platform's pad manifest rather than derived.
var (
	SD0_CLK  = &Pad{Name: "AN59", Reg0: 0x0254, Reg1: 0x0258}
	SD0_CMD  = &Pad{Name: "AJ49", Reg0: 0x025c, Reg1: 0x0260}
	SD0_DAT0 = &Pad{Name: "BA57", Reg0: 0x0264, Reg1: 0x0268}
	SD0_DAT1 = &Pad{Name: "AY57", Reg0: 0x026c, Reg1: 0x0270}
	SD0_DAT2 = &Pad{Name: "AW57", Reg0: 0x0274, Reg1: 0x0278}
	SD0_DAT3 = &Pad{Name: "AU57", Reg0: 0x027c, Reg1: 0x0280}
	SD0_CD   = &Pad{Name: "J53", Reg0: 0x0284}
)

// ConfigureSD0 multiplexes the SD0 pin group onto the MCI0 controller
// function and applies the pull/drive combination the reference platform
// uses for a 3.3V, 4-bit removable slot.
func ConfigureSD0(c *Controller) {
	c.Configure(SD0_CLK, Func1, PullNone, 8)
	c.Configure(SD0_CMD, Func1, PullUp, 8)
	c.Configure(SD0_DAT0, Func1, PullUp, 8)
	c.Configure(SD0_DAT1, Func1, PullUp, 8)
	c.Configure(SD0_DAT2, Func1, PullUp, 8)
	c.Configure(SD0_DAT3, Func1, PullUp, 8)
	c.Configure(SD0_CD, Func0, PullUp, 4)
}
