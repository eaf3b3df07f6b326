// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mci

import "testing"

func TestBuildCommandFlags(t *testing.T) {
	cmd := BuildCommand(9, 0x10000, RespR2, nil)

	if cmd.Flags&ExpResp == 0 || cmd.Flags&ExpLongResp == 0 {
		t.Fatal("R2 response must set EXP_RESP and EXP_LONG_RESP")
	}

	if cmd.Flags&NeedRespCrc == 0 {
		t.Fatal("R2 response must require CRC")
	}
}

func TestBuildCommandSuppressesCrcForR3(t *testing.T) {
	cmd := BuildCommand(41, 0, RespR3, nil)

	if cmd.Flags&NeedRespCrc != 0 {
		t.Fatal("R3 response must not require CRC")
	}
}

func TestBuildCommandGoIdleSetsInit(t *testing.T) {
	cmd := GoIdle()

	if cmd.Flags&NeedInit == 0 {
		t.Fatal("CMD0 must set NEED_INIT")
	}
}

func TestBuildCommandVoltageSwitch(t *testing.T) {
	cmd := BuildCommand(11, 0, RespR1, nil)

	if cmd.Flags&SwitchVoltage == 0 {
		t.Fatal("CMD11 must set SWITCH_VOLTAGE")
	}
}

func TestBuildCommandDataFlags(t *testing.T) {
	data := &Data{BlockSize: 512, BlockCount: 4, Buf: make([]byte, 512*4), Direction: DirWrite}
	cmd := BuildCommand(25, 0, RespR1, data)

	if cmd.Flags&ExpData == 0 || cmd.Flags&WriteData == 0 {
		t.Fatal("write transfer must set EXP_DATA and WRITE_DATA")
	}

	if cmd.Flags&NeedAutoStop == 0 {
		t.Fatal("multi-block transfer must set NEED_AUTO_STOP")
	}
}

func TestFixByteOrder(t *testing.T) {
	in := []uint32{0x01020304}
	out := FixByteOrder(in, false)

	if out[0] != 0x04030201 {
		t.Fatalf("byte swap: got %#x", out[0])
	}

	outHW := FixByteOrder(in, true)

	if outHW[0] != 0x03040102 {
		t.Fatalf("half-word swap: got %#x", outHW[0])
	}
}
