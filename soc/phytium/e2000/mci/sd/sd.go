// Phytium E2000 SD protocol driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package sd implements the SD protocol state machine layered above the
// Phytium E2000 MCI hardware driver: the card identification sequence
// (CMD0 -> ACMD41 -> CMD2 -> CMD3 -> CMD9 -> CMD7 -> ACMD51 -> ...), UHS-I
// voltage switching, bus-width and timing-mode negotiation, and block
// read/write with retry-on-timeout and re-tuning.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package sd

import (
	"time"

	"github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/mci"
)

// Feature is a bitmask of card/host capability flags discovered during
// identification.
type Feature uint32

const (
	HighCapacity Feature = 1 << iota
	SDHC
	SDXC
	Supports18V
	SupportsSetBlockCount
	SupportsSpeedClassControl
	Supports4BitWidth
)

// Timing is the current bus timing mode.
type Timing int

const (
	SDR12 Timing = iota
	SDR25
	SDR50
	SDR104
	DDR50
)

const (
	ocrBusy            = 1 << 31
	ocrCCS             = 1 << 30
	ocrSwitch18Accept  = 1 << 24
	ocrSwitch18Request = 1 << 24
	ocrHCS             = 1 << 30
	ocrVoltageWindow   = 0x00ff8000 // 2.7-3.6V
)

const (
	cmd8Pattern = 0x1aa
	cmd8Echo    = 0xaa
)

const cmd13RetryTimes = 10

// HostCaps describes what the MCI hardware / board combination supports,
// independent of what the inserted card supports.
type HostCaps struct {
	Supports18V       bool
	SupportsSDR50     bool
	SupportsSDR104    bool
	SupportsDDR50     bool
	MaxBlockCount     int
	MaxBlockSize      int
	MaxClockHz        uint32
}

// Card is the SD protocol driver bound to one MCI controller instance.
type Card struct {
	MCI  *mci.MCI
	Caps HostCaps

	RCA     uint32
	CID     CID
	CSD     CSD
	SCR     SCR
	Feature Feature
	Timing  Timing

	blockCount uint32
	blockSize  uint32

	prevCmd uint32
}

// BlockSize returns the card's block size in bytes (always 512 post
// identification).
func (c *Card) BlockSize() uint32 { return c.blockSize }

// BlockCount returns the card's total block count.
func (c *Card) BlockCount() uint32 { return c.blockCount }

// Init runs the full SD card identification sequence (spec §4.8):
// hardware reset, bus-voltage probe, GO_IDLE, SEND_IF_COND, the ACMD41
// handshake loop (with an optional 1.8V switch attempt), ALL_SEND_CID,
// SEND_RELATIVE_ADDR, SEND_CSD, SELECT_CARD, SEND_SCR, bus-width
// negotiation, SET_BLOCKLEN and bus-timing selection.
func (c *Card) Init() error {
	if err := c.MCI.Reset(); err != nil {
		return wrapErr(ErrCardInitFailed, "hardware reset: %v", err)
	}

	if err := c.MCI.SetClock(400000); err != nil {
		return wrapErr(ErrCardInitFailed, "set clock: %v", err)
	}

	if err := c.MCI.SetBusWidth(1); err != nil {
		return wrapErr(ErrCardInitFailed, "set bus width: %v", err)
	}

	if err := c.MCI.SetVoltage(false); err != nil {
		return wrapErr(ErrCardInitFailed, "set voltage: %v", err)
	}

	if !c.MCI.CheckCardPresent() {
		return wrapErr(ErrCardDetectFailed, "no card detected")
	}

	want18V := c.Caps.Supports18V && (c.Caps.SupportsSDR104 || c.Caps.SupportsSDR50 || c.Caps.SupportsDDR50)

	if err := c.goIdle(); err != nil {
		return err
	}

	sdhc := c.probeInterfaceCondition()

	for {
		ocrArg := uint32(ocrVoltageWindow)

		if sdhc {
			ocrArg |= ocrHCS
		}

		if want18V {
			ocrArg |= ocrSwitch18Request
		}

		ocr, err := c.sendOperationCondition(ocrArg)

		if err != nil {
			return wrapErr(ErrHandShakeOperationConditionFailed, "%v", err)
		}

		if ocr&ocrBusy == 0 {
			continue
		}

		if ocr&ocrCCS != 0 {
			c.Feature |= HighCapacity | SDHC
		}

		switched18V := false

		if want18V && ocr&ocrSwitch18Accept != 0 {
			var err error

			switched18V, err = c.switchTo18V()

			if err != nil {
				// remain at 3.3V, drop the 1.8V request and
				// re-enter the ACMD41 loop.
				want18V = false
				continue
			}
		}

		if switched18V {
			c.Feature |= Supports18V
		}

		break
	}

	if err := c.allSendCID(); err != nil {
		return err
	}

	if err := c.sendRelativeAddress(); err != nil {
		return err
	}

	if err := c.sendCSD(); err != nil {
		return err
	}

	if err := c.selectCard(); err != nil {
		return err
	}

	if err := c.MCI.SetClock(25000000); err != nil {
		return wrapErr(ErrCardInitFailed, "raise clock to 25MHz: %v", err)
	}

	if err := c.sendSCR(); err != nil {
		return err
	}

	if c.SCR.Support4BitWidth {
		if err := c.setBusWidth4(); err != nil {
			return err
		}
	}

	if c.SCR.SupportSetBlockCnt {
		c.Feature |= SupportsSetBlockCount
	}

	if c.SCR.SupportSpeedClass {
		c.Feature |= SupportsSpeedClassControl
	}

	// ACMD13 (SD_STATUS) is stubbed per upstream: retained as a no-op,
	// not fabricated.

	if err := c.setBlockLen(defaultBlockSize); err != nil {
		return err
	}

	return c.selectBusTiming()
}

func (c *Card) goIdle() error {
	cmd := mci.GoIdle()

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrGoIdleFailed, "%v", err)
	}

	return nil
}

// probeInterfaceCondition issues CMD8 up to 10 times; on success it
// verifies the echo pattern and reports the card as SDHC-capable.
// Refusal (timeout) falls back to the legacy SDSC path.
func (c *Card) probeInterfaceCondition() (sdhc bool) {
	for i := 0; i < 10; i++ {
		cmd := mci.BuildCommand(8, cmd8Pattern, mci.RespR7, nil)

		if err := c.MCI.Transfer(cmd); err != nil {
			continue
		}

		if cmd.Response[0]&0xff == cmd8Echo {
			return true
		}
	}

	// CMD8 refused: SDSC path, restart identification with CMD0.
	c.goIdle()

	return false
}

func (c *Card) sendOperationCondition(arg uint32) (uint32, error) {
	app := mci.AppCmd(0)

	if err := c.MCI.Transfer(app); err != nil {
		return 0, wrapErr(ErrSendApplicationCommandFailed, "%v", err)
	}

	cmd := mci.BuildCommand(41, arg, mci.RespR3, nil)

	if err := c.MCI.Transfer(cmd); err != nil {
		return 0, err
	}

	return cmd.Response[0], nil
}

// switchTo18V executes the CMD11 voltage switch: verify the card pulls CMD
// and DAT low, gate the clock for >=10ms, switch IO voltage, restart the
// clock, verify the card releases the lines.
func (c *Card) switchTo18V() (bool, error) {
	cmd := mci.BuildCommand(11, 0, mci.RespR1, nil)

	if err := c.MCI.Transfer(cmd); err != nil {
		return false, wrapErr(ErrSwitchVoltageFail, "CMD11: %v", err)
	}

	if !waitBusyLow(c.MCI, time.Millisecond) {
		return false, wrapErr(ErrSwitchVoltage18VFail33VSuccess, "lines not pulled low")
	}

	if err := c.MCI.SetClock(0); err != nil {
		return false, err
	}

	sleep(10 * time.Millisecond)

	if err := c.MCI.SetVoltage(true); err != nil {
		return false, err
	}

	if err := c.MCI.SetClock(400000); err != nil {
		return false, err
	}

	if !waitReleased(c.MCI, time.Millisecond) {
		c.MCI.SetVoltage(false)
		return false, wrapErr(ErrSwitchVoltage18VFail33VSuccess, "lines not released")
	}

	return true, nil
}

func waitBusyLow(m *mci.MCI, timeout time.Duration) bool {
	start := time.Now()

	for !m.CheckCardBusy() {
		if time.Since(start) >= timeout {
			return false
		}
	}

	return true
}

func waitReleased(m *mci.MCI, timeout time.Duration) bool {
	start := time.Now()

	for m.CheckCardBusy() {
		if time.Since(start) >= timeout {
			return false
		}
	}

	return true
}

func sleep(d time.Duration) {
	time.Sleep(d)
}

func (c *Card) allSendCID() error {
	cmd := mci.BuildCommand(2, 0, mci.RespR2, nil)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrAllSendCidFailed, "%v", err)
	}

	c.CID = decodeCID(cmd.Response)

	return nil
}

func (c *Card) sendRelativeAddress() error {
	cmd := mci.BuildCommand(3, 0, mci.RespR6, nil)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrSendRelativeAddressFailed, "%v", err)
	}

	c.RCA = cmd.Response[0] >> 16

	return nil
}

func (c *Card) sendCSD() error {
	cmd := mci.BuildCommand(9, c.RCA<<16, mci.RespR2, nil)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrSendCsdFailed, "%v", err)
	}

	c.CSD = decodeCSD(cmd.Response)
	c.blockCount = c.CSD.BlockCount
	c.blockSize = c.CSD.BlockSize

	if c.CSD.Structure == 1 && c.blockCount >= 0xffff {
		c.Feature |= SDXC
	}

	return nil
}

func (c *Card) selectCard() error {
	cmd := mci.SelectCard(c.RCA)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrSelectCardFailed, "%v", err)
	}

	return nil
}

func (c *Card) sendSCR() error {
	app := mci.AppCmd(c.RCA)

	if err := c.MCI.Transfer(app); err != nil {
		return wrapErr(ErrSendApplicationCommandFailed, "%v", err)
	}

	buf := make([]byte, 8)
	data := &mci.Data{BlockSize: 8, BlockCount: 1, Buf: buf, Direction: mci.DirRead}
	cmd := mci.BuildCommand(51, 0, mci.RespR1, data)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrSendScrFailed, "%v", err)
	}

	var raw [2]uint32
	raw[0] = uint32(buf[3])<<24 | uint32(buf[2])<<16 | uint32(buf[1])<<8 | uint32(buf[0])
	raw[1] = uint32(buf[7])<<24 | uint32(buf[6])<<16 | uint32(buf[5])<<8 | uint32(buf[4])
	fixed := mci.FixByteOrder(raw[:], false)

	c.SCR = decodeSCR([2]uint32{fixed[0], fixed[1]})

	return nil
}

func (c *Card) setBusWidth4() error {
	app := mci.AppCmd(c.RCA)

	if err := c.MCI.Transfer(app); err != nil {
		return wrapErr(ErrSendApplicationCommandFailed, "%v", err)
	}

	cmd := mci.BuildCommand(6, 2, mci.RespR1, nil)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrSetDataBusWidthFailed, "%v", err)
	}

	if err := c.MCI.SetBusWidth(4); err != nil {
		return wrapErr(ErrSetDataBusWidthFailed, "%v", err)
	}

	c.Feature |= Supports4BitWidth

	return nil
}

func (c *Card) setBlockLen(size uint32) error {
	cmd := mci.SetBlockLen(size)

	if err := c.MCI.Transfer(cmd); err != nil {
		return wrapErr(ErrSetCardBlockSizeFailed, "%v", err)
	}

	return nil
}

// pollIdle polls CMD13 until the card reports the transfer state, or
// timeout elapses.
func (c *Card) pollIdle(timeout time.Duration) error {
	start := time.Now()

	const (
		statusCurrentState = 9
		stateTransfer       = 4
	)

	for {
		cmd := mci.SendStatus(c.RCA)

		if err := c.MCI.Transfer(cmd); err != nil {
			if time.Since(start) >= timeout {
				return wrapErr(ErrPollingCardIdleFailed, "%v", err)
			}

			continue
		}

		state := (cmd.Response[0] >> statusCurrentState) & 0xf

		if state == stateTransfer {
			return nil
		}

		if time.Since(start) >= timeout {
			return wrapErr(ErrPollingCardIdleFailed, "card state %d, want %d", state, stateTransfer)
		}
	}
}
