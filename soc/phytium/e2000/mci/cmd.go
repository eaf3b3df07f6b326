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
	"github.com/usbarmory/tamago-phytium-mci/bits"
	"github.com/usbarmory/tamago-phytium-mci/internal/reg"
)

// RespType enumerates the SD/MMC response formats a Command may expect.
type RespType int

const (
	RespNone RespType = iota
	RespR1
	RespR1b
	RespR2
	RespR3
	RespR4
	RespR5
	RespR5b
	RespR6
	RespR7
)

// Flag is a protocol-level command behavior flag.
type Flag uint32

const (
	NeedInit      Flag = 1 << 0
	ExpResp       Flag = 1 << 1
	ExpLongResp   Flag = 1 << 2
	NeedRespCrc   Flag = 1 << 3
	ExpData       Flag = 1 << 4
	WriteData     Flag = 1 << 5
	ReadData      Flag = 1 << 6
	NeedAutoStop  Flag = 1 << 7
	Adtc          Flag = 1 << 8
	SwitchVoltage Flag = 1 << 9
	Abort         Flag = 1 << 10
	AutoCmd12     Flag = 1 << 11
)

// Direction is the data-transfer direction of an attached Data descriptor.
type Direction int

const (
	DirRead Direction = iota
	DirWrite
)

// Data is a protocol-level data descriptor attached to a Command.
//
// Buf holds either a DMA-capable buffer or, for PIO transfers, a plain
// caller buffer; the two are never both set on the same Data. datalen
// (len(Buf)) must equal BlockSize*BlockCount, BlockSize must be a
// multiple of 4 and must not exceed the host's maximum block size.
type Data struct {
	BlockSize   int
	BlockCount  int
	Buf         []byte
	Direction   Direction
	AutoCmd12   bool
	AutoCmd23   bool
	IgnoreError bool
}

// Command is a protocol-level command descriptor: built per request,
// consumed by one Issue/CollectResponse round trip, response copied back
// to the caller.
type Command struct {
	Index    uint32
	Arg      uint32
	Resp     RespType
	Flags    Flag
	Data     *Data
	Response [4]uint32
	Success  bool
}

// Transfer translates cmd to a hardware command word, issues it (through
// the CMD11 path when SwitchVoltage is set) and collects the response.
//
// cmd.Data is always carried over the IDMAC DMA data path (prepareData);
// ReadPIO/WritePIO are standalone and never invoked from here, so
// collectResponse does not drain the FIFO itself. A caller driving the PIO
// path directly must call ReadPIO before reading the response.
func (m *MCI) Transfer(cmd *Command) error {
	hwCmd := m.translate(cmd)

	if cmd.Data != nil {
		if err := m.prepareData(cmd.Data); err != nil {
			return err
		}
	}

	dsb()

	var err error

	if cmd.Flags&SwitchVoltage != 0 {
		err = m.issueCMD11(hwCmd, cmd.Arg)
	} else {
		err = m.issue(hwCmd, cmd.Arg)
	}

	if err != nil {
		return err
	}

	if err := m.waitDone(cmd); err != nil {
		return err
	}

	if m.dataDone != nil {
		m.dataDone()
		m.dataDone = nil
	}

	m.collectResponse(cmd)
	m.prevCmd = cmd.Index

	return nil
}

// issue is the Command Engine's Issue operation: retry-for !DATA_BUSY,
// write CMDARG, barrier, write CMD with START set, retry-for START to
// self-clear.
func (m *MCI) issue(hwCmd uint32, arg uint32) error {
	if !reg.RetryFor(func() bool {
		return !m.CheckCardBusy()
	}, retriesTimeout) {
		return wrapErr(ErrBusy, "CMD%d: card data busy", hwCmd&0x3f)
	}

	reg.Write(m.cmdArg, arg)
	dsb()
	reg.Write(m.cmdReg, hwCmd|1<<CMD_START)

	if !reg.RetryFor(func() bool {
		return reg.Get(m.cmdReg, CMD_START, 1) == 0
	}, retriesTimeout) {
		return wrapErr(ErrCmdTimeout, "CMD%d: START did not self-clear", hwCmd&0x3f)
	}

	return nil
}

// issueCMD11 is identical to issue but skips the data-busy gate: the CMD11
// restart path follows a voltage switch where the card is intentionally
// holding the line low.
func (m *MCI) issueCMD11(hwCmd uint32, arg uint32) error {
	reg.Write(m.cmdArg, arg)
	dsb()
	reg.Write(m.cmdReg, hwCmd|1<<CMD_START)

	if !reg.RetryFor(func() bool {
		return reg.Get(m.cmdReg, CMD_START, 1) == 0
	}, retriesTimeout) {
		return wrapErr(ErrCmdTimeout, "CMD11: START did not self-clear")
	}

	return nil
}

// translate ORs together hardware command bits according to cmd's flag set
// and encodes the 6-bit command index in the low bits.
func (m *MCI) translate(cmd *Command) uint32 {
	var hw uint32

	bits.SetN(&hw, CMD_INDEX, 0x3f, cmd.Index)

	bits.SetTo(&hw, CMD_SEND_INIT, cmd.Flags&NeedInit != 0)
	bits.SetTo(&hw, CMD_STOP_ABORT, cmd.Flags&Abort != 0)
	bits.SetTo(&hw, CMD_VOLT_SWITCH, cmd.Flags&SwitchVoltage != 0)

	bits.SetTo(&hw, CMD_DAT_EXP, cmd.Flags&ExpData != 0)
	bits.SetTo(&hw, CMD_DAT_WRITE, cmd.Flags&ExpData != 0 && cmd.Flags&WriteData != 0)

	bits.SetTo(&hw, CMD_RESP_CRC, cmd.Flags&NeedRespCrc != 0)
	bits.SetTo(&hw, CMD_RESP_EXP, cmd.Flags&ExpResp != 0)
	bits.SetTo(&hw, CMD_RESP_LONG, cmd.Flags&ExpResp != 0 && cmd.Flags&ExpLongResp != 0)

	bits.SetTo(&hw, CMD_USE_HOLD_REG, m.timing.UseHoldReg)

	return hw
}

// waitDone polls the raw interrupt status for command completion (and data
// transfer completion, when cmd carries attached data) with a bounded
// budget.
func (m *MCI) waitDone(cmd *Command) error {
	want := uint32(1 << INT_CMD_BIT)

	if cmd.Data != nil {
		want |= 1 << INT_DTO_BIT
	}

	if !reg.RetryFor(func() bool {
		return reg.Read(m.rintSts)&want == want
	}, retriesTimeout) {
		status := reg.Read(m.rintSts)
		debugf("CMD%d: timeout, raw_ints %#x", cmd.Index, status)
		return wrapErr(ErrCmdTimeout, "CMD%d: raw_ints %#x", cmd.Index, status)
	}

	status := reg.Read(m.rintSts)

	if status&ALL_ERROR_FLAG != 0 {
		reg.Write(m.rintSts, status)
		return wrapErr(ErrCrcError, "CMD%d: raw_ints %#x", cmd.Index, status)
	}

	reg.Write(m.rintSts, status)

	return nil
}

// collectResponse reads RESP0 (and, for long responses, RESP1..3) into
// cmd.Response, marks cmd successful and disables the command/data/DMAC
// interrupt masks.
func (m *MCI) collectResponse(cmd *Command) {
	if cmd.Flags&ExpResp != 0 {
		cmd.Response[0] = reg.Read(m.resp0)

		if cmd.Flags&ExpLongResp != 0 {
			cmd.Response[1] = reg.Read(m.resp0 + 4)
			cmd.Response[2] = reg.Read(m.resp0 + 8)
			cmd.Response[3] = reg.Read(m.resp0 + 12)
		}
	}

	cmd.Success = true

	m.InterruptMask(GeneralInterrupt, 1<<INT_CMD_BIT|1<<INT_DTO_BIT, false)
	m.InterruptMask(DmaInterrupt, 0xffffffff, false)
}
