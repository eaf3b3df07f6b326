// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package mci implements a driver for the Phytium E2000 series Memory Card
// Interface (MCI), a memory-mapped SD/MMC/SDIO host controller with an
// integrated descriptor-based internal DMA engine (IDMAC).
//
// The package covers command dispatch, FIFO/DMA data path, clock and
// voltage management, reset sequencing and the descriptor ring for
// scatter-gather DMA. Pin-multiplex configuration, DMA physical-address
// translation, cache maintenance and sleep are provided by a board package
// through the Platform interface.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package mci

import (
	"sync"
	"time"

	"github.com/usbarmory/tamago-phytium-mci/internal/reg"
)

// Timing is an opaque platform-tuned clock profile: divider, clock-source
// selector, sample/drive phase shift and whether the hold register is used.
// These are board-specific constants, not derivable from first principles.
type Timing struct {
	ClkDiv     uint32
	ClkSrc     uint32
	Phase      uint32
	UseHoldReg bool
}

type timingEntry struct {
	hz        uint32
	removable bool
	t         Timing
}

// timingTable covers 400kHz through 100/208MHz across removable (SD) and
// non-removable (eMMC) media.
var timingTable = []timingEntry{
	{400000, true, Timing{ClkDiv: 0x7f, ClkSrc: 0, Phase: 0, UseHoldReg: true}},
	{25000000, true, Timing{ClkDiv: 0x02, ClkSrc: 0, Phase: 0, UseHoldReg: true}},
	{50000000, true, Timing{ClkDiv: 0x01, ClkSrc: 1, Phase: 1, UseHoldReg: false}},
	{100000000, true, Timing{ClkDiv: 0x00, ClkSrc: 2, Phase: 2, UseHoldReg: false}},
	{208000000, true, Timing{ClkDiv: 0x00, ClkSrc: 3, Phase: 3, UseHoldReg: false}},
	{26000000, false, Timing{ClkDiv: 0x02, ClkSrc: 0, Phase: 0, UseHoldReg: true}},
	{52000000, false, Timing{ClkDiv: 0x01, ClkSrc: 1, Phase: 1, UseHoldReg: false}},
	{66000000, false, Timing{ClkDiv: 0x00, ClkSrc: 1, Phase: 1, UseHoldReg: false}},
}

func lookupTiming(hz uint32, removable bool) (Timing, bool) {
	for _, e := range timingTable {
		if e.hz == hz && e.removable == removable {
			return e.t, true
		}
	}

	return Timing{}, false
}

// MCI is a bound view over one Phytium E2000 MCI register block.
type MCI struct {
	sync.Mutex

	// Base is the controller's MMIO base address.
	Base uint64
	// Index distinguishes multiple controller instances (MCI0, MCI1, ...).
	Index int
	// Removable is false for non-removable (soldered eMMC) media.
	Removable bool
	// Platform supplies sleep, DMA address translation and cache
	// maintenance.
	Platform Platform

	// Timeout defaults to 500ms when left zero. No polling loop in this
	// package reads it: they are bounded by retriesTimeout attempts.
	Timeout time.Duration

	width   int
	timing  Timing
	prevCmd uint32
	ready   bool

	ring Ring

	// dataDone, when non-nil, is invoked once after a data-bearing
	// transfer completes to drain (for reads) and release the DMA
	// bounce buffer allocated by prepareData.
	dataDone func()

	// cached register addresses
	cntrl, pwren, clkdiv, clkena, tmout, ctype, blkSiz, bytCnt, intMask     uint64
	cmdArg, cmdReg, resp0, mintSts, rintSts, status, fifoth, cd, wrtprt    uint64
	cksts, uhsReg, cardRst, busMode, descLadl, descLadh, dmacSts, dmacIe   uint64
	cardThrCtl, clkSrc, emmcDdr, enaShift, data                           uint64
}

const defaultTimeout = 500 * time.Millisecond

// init binds the cached register addresses to Base; called once from Reset.
func (m *MCI) init() {
	base := m.Base

	m.cntrl = base + MCI_CNTRL
	m.pwren = base + MCI_PWREN
	m.clkdiv = base + MCI_CLKDIV
	m.clkena = base + MCI_CLKENA
	m.tmout = base + MCI_TMOUT
	m.ctype = base + MCI_CTYPE
	m.blkSiz = base + MCI_BLK_SIZ
	m.bytCnt = base + MCI_BYT_CNT
	m.intMask = base + MCI_INT_MASK
	m.cmdArg = base + MCI_CMD_ARG
	m.cmdReg = base + MCI_CMD
	m.resp0 = base + MCI_RESP0
	m.mintSts = base + MCI_MINT_STS
	m.rintSts = base + MCI_RINT_STS
	m.status = base + MCI_STATUS
	m.fifoth = base + MCI_FIFOTH
	m.cd = base + MCI_CD
	m.wrtprt = base + MCI_WRTPRT
	m.cksts = base + MCI_CKSTS
	m.uhsReg = base + MCI_UHS_REG
	m.cardRst = base + MCI_CARD_RST
	m.busMode = base + MCI_BUS_MODE
	m.descLadl = base + MCI_DESC_LADL
	m.descLadh = base + MCI_DESC_LADH
	m.dmacSts = base + MCI_DMAC_STS
	m.dmacIe = base + MCI_DMAC_IE
	m.cardThrCtl = base + MCI_CARDTHRCT
	m.clkSrc = base + MCI_CLK_SRC
	m.emmcDdr = base + MCI_EMMC_DDR
	m.enaShift = base + MCI_ENA_SHIFT
	m.data = base + MCI_DATA

	if m.Timeout == 0 {
		m.Timeout = defaultTimeout
	}
}

// Reset performs the controller bring-up sequence: thresholds, clock
// gating, power-on, 3.3V/1-bit defaults, FIFO and DMA reset, interrupt
// state clearing and DMAC enablement.
func (m *MCI) Reset() error {
	m.Lock()
	defer m.Unlock()

	m.init()

	// set FIFO threshold: 8 words per burst, matching watermark levels
	// used by the command engine's DMA kick.
	reg.Write(m.fifoth, (8<<16)|8)

	// set card threshold control
	reg.Write(m.cardThrCtl, 0)

	// gate the clock
	reg.Clear(m.clkena, CLKENA_CCLK_ENABLE)

	// write external clock source
	reg.Write(m.clkSrc, 0)

	// power on
	reg.Set(m.pwren, 0)

	// enable clock
	reg.Set(m.clkena, CLKENA_CCLK_ENABLE)

	if err := m.SetVoltage(false); err != nil {
		return err
	}

	if err := m.SetBusWidth(1); err != nil {
		return err
	}

	resetMask := uint32(1<<CNTRL_FIFO_RESET | 1<<CNTRL_DMA_RESET)

	if err := m.ctrlReset(resetMask); err != nil {
		return err
	}

	if err := m.updateClock(false); err != nil {
		return err
	}

	// configure card reset per removability: non-removable (eMMC) media
	// is held in reset across the driver's own reset sequence.
	reg.SetTo(m.cardRst, 0, !m.Removable)

	m.clearInterruptStatus()

	// enable controller and internal DMAC
	reg.Set(m.cntrl, CNTRL_INT_ENABLE)
	reg.Set(m.cntrl, CNTRL_USE_INTERNAL_DMAC)

	// program data/response timeout to maximum
	reg.Write(m.tmout, 0xffffffff)

	// zero the descriptor list address and soft-reset the DMAC
	reg.Write(m.descLadl, 0)
	reg.Write(m.descLadh, 0)

	reg.Set(m.busMode, BUS_MODE_SWR)

	if !reg.RetryFor(func() bool {
		return reg.Get(m.busMode, BUS_MODE_SWR, 1) == 0
	}, retriesTimeout) {
		return wrapErr(ErrTimeout, "DMAC soft reset did not self-clear")
	}

	m.ready = true

	return nil
}

// IsReady reports whether Reset has completed successfully.
func (m *MCI) IsReady() bool {
	return m.ready
}

func (m *MCI) clearInterruptStatus() {
	reg.Write(m.intMask, 0)
	reg.Write(m.rintSts, reg.Read(m.rintSts))
	reg.Write(m.dmacIe, 0)
	reg.Write(m.dmacSts, reg.Read(m.dmacSts))
}

// SetClock looks up the timing profile for hz and programs the divider,
// clock source and phase shift in one group, gating the clock around the
// change. Hz=0 only gates the clock and clears the external-clock enable.
func (m *MCI) SetClock(hz uint32) error {
	if hz == 0 {
		reg.Clear(m.clkena, CLKENA_CCLK_ENABLE)
		reg.Clear(m.clkSrc, 0)
		return nil
	}

	t, ok := lookupTiming(hz, m.Removable)

	if !ok {
		return wrapErr(ErrInvalidTiming, "no timing profile for %d Hz removable=%v", hz, m.Removable)
	}

	// gate the clock
	reg.Clear(m.clkena, CLKENA_CCLK_ENABLE)

	// write the clock source
	reg.Write(m.clkSrc, t.ClkSrc)

	if err := m.updateClock(m.prevCmd == 11); err != nil {
		return err
	}

	// program the divider and phase shift
	reg.Write(m.clkdiv, t.ClkDiv)
	reg.Write(m.enaShift, t.Phase)

	// ungate
	reg.Set(m.clkena, CLKENA_CCLK_ENABLE)

	if err := m.updateClock(m.prevCmd == 11); err != nil {
		return err
	}

	m.timing = t

	return nil
}

// SetVoltage flips the UHS voltage selector between 3.3V (false) and 1.8V
// (true).
func (m *MCI) SetVoltage(low bool) error {
	reg.SetTo(m.uhsReg, UHS_VOLT, low)
	return nil
}

// SetBusWidth maps a bus width in bits to the controller's card-type
// register encoding.
func (m *MCI) SetBusWidth(width int) error {
	var v uint32

	switch width {
	case 1:
		v = CTYPE_1BIT
	case 4:
		v = CTYPE_4BIT
	case 8:
		v = CTYPE_8BIT
	default:
		return wrapErr(ErrInvalidParam, "unsupported bus width %d", width)
	}

	reg.Write(m.ctype, v)
	m.width = width

	return nil
}

// ctrlReset ORs in the passed reset bits, polls for their self-clear and
// issues two back-to-back update-clock commands. When FIFO_RESET is among
// the bits it additionally polls for FIFO_EMPTY.
func (m *MCI) ctrlReset(mask uint32) error {
	reg.Or(m.cntrl, mask)

	if !reg.RetryFor(func() bool {
		return reg.Read(m.cntrl)&mask == 0
	}, retriesTimeout) {
		return wrapErr(ErrTimeout, "controller reset %#x did not self-clear", mask)
	}

	if err := m.updateClock(false); err != nil {
		return err
	}

	if err := m.updateClock(false); err != nil {
		return err
	}

	if mask&(1<<CNTRL_FIFO_RESET) != 0 {
		if !reg.RetryFor(func() bool {
			return reg.Get(m.status, STATUS_FIFO_EMPTY, 1) == 1
		}, retriesTimeout) {
			return wrapErr(ErrTimeout, "FIFO did not empty after reset")
		}
	}

	return nil
}

// InterruptKind distinguishes the general interrupt-enable register from
// the DMAC interrupt-enable register.
type InterruptKind int

const (
	GeneralInterrupt InterruptKind = iota
	DmaInterrupt
)

// InterruptMask performs a read-modify-write of the general or DMAC
// interrupt-enable register, setting or clearing the passed bits.
func (m *MCI) InterruptMask(kind InterruptKind, mask uint32, enable bool) {
	addr := m.intMask

	if kind == DmaInterrupt {
		addr = m.dmacIe
	}

	if enable {
		reg.Or(addr, mask)
	} else {
		reg.Write(addr, reg.Read(addr)&^mask)
	}
}

// updateClock issues the controller-specific CMD-less "update clock"
// private command used after any clock change. volt adds the voltage-
// switch bit, set when the last issued command index was CMD11.
func (m *MCI) updateClock(volt bool) error {
	cmd := uint32(1<<CMD_START | 1<<CMD_UPD_CLK)

	if volt {
		cmd |= 1 << CMD_VOLT_SWITCH
	}

	reg.Write(m.cmdArg, 0)
	dsb()
	reg.Write(m.cmdReg, cmd)

	if !reg.RetryFor(func() bool {
		return reg.Get(m.cmdReg, CMD_START, 1) == 0
	}, retriesTimeout) {
		return wrapErr(ErrTimeout, "update-clock command did not self-clear")
	}

	return nil
}

// CheckCardPresent reports whether the card-detect register indicates a
// card is present (active-low on this controller).
func (m *MCI) CheckCardPresent() bool {
	return reg.Get(m.cd, 0, 1) == 0
}

// CheckCardBusy reports whether the controller's status register shows the
// SD interface asserting DATA_BUSY.
func (m *MCI) CheckCardBusy() bool {
	return reg.Get(m.status, STATUS_DATA_BUSY, 1) == 1
}
