// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mci

// MCI registers, offsets from the controller base address.
const (
	MCI_CNTRL     = 0x00 // controller config
	MCI_PWREN     = 0x04 // power enable
	MCI_CLKDIV    = 0x08 // clock divider
	MCI_CLKENA    = 0x10 // clock enable
	MCI_TMOUT     = 0x14 // data/response timeout
	MCI_CTYPE     = 0x18 // card type (bus width)
	MCI_BLK_SIZ   = 0x1c // block size
	MCI_BYT_CNT   = 0x20 // byte count
	MCI_INT_MASK  = 0x24 // general interrupt mask
	MCI_CMD_ARG   = 0x28 // command argument
	MCI_CMD       = 0x2c // command
	MCI_RESP0     = 0x30 // response 0
	MCI_RESP1     = 0x34 // response 1
	MCI_RESP2     = 0x38 // response 2
	MCI_RESP3     = 0x3c // response 3
	MCI_MINT_STS  = 0x40 // masked interrupt status
	MCI_RINT_STS  = 0x44 // raw interrupt status
	MCI_STATUS    = 0x48 // status
	MCI_FIFOTH    = 0x4c // FIFO threshold watermark
	MCI_CD        = 0x50 // card detect
	MCI_WRTPRT    = 0x54 // card write protect
	MCI_CKSTS     = 0x58 // clock status (ciu ready)
	MCI_UHS_REG   = 0x74 // UHS-I (1.8V select)
	MCI_CARD_RST  = 0x78 // card reset
	MCI_BUS_MODE  = 0x80 // bus mode (DMA enable)
	MCI_DESC_LADL = 0x88 // descriptor list address, low
	MCI_DESC_LADH = 0x8c // descriptor list address, high
	MCI_DMAC_STS  = 0x90 // internal DMAC status
	MCI_DMAC_IE   = 0x94 // internal DMAC interrupt enable
	MCI_CUR_DESCL = 0x98 // current host descriptor address, low
	MCI_CUR_DESCH = 0x9c // current host descriptor address, high
	MCI_CUR_BUFL  = 0xa0 // current buffer address, low
	MCI_CUR_BUFH  = 0xa4 // current buffer address, high
	MCI_CARDTHRCT = 0x100 // card threshold control
	MCI_CLK_SRC   = 0x108 // clock source (UHS extension)
	MCI_EMMC_DDR  = 0x10c // eMMC DDR
	MCI_ENA_SHIFT = 0x110 // enable phase shift
	MCI_DATA      = 0x200 // FIFO data port
)

// CNTRL bits.
const (
	CNTRL_CONTROLLER_RESET = 0
	CNTRL_FIFO_RESET       = 1
	CNTRL_DMA_RESET        = 2
	CNTRL_INT_ENABLE       = 4
	CNTRL_DMA_ENABLE       = 5
	CNTRL_USE_INTERNAL_DMAC = 25
)

// CLKENA bits.
const (
	CLKENA_CCLK_ENABLE    = 0
	CLKENA_CCLK_LOW_POWER = 16
)

// CTYPE (card type / bus width) values.
const (
	CTYPE_1BIT = 0x0
	CTYPE_4BIT = 0x1
	CTYPE_8BIT = 0x10000
)

// CMD register bits.
const (
	CMD_INDEX        = 0  // 6-bit command index
	CMD_RESP_EXP      = 6
	CMD_RESP_LONG     = 7
	CMD_RESP_CRC      = 8
	CMD_DAT_EXP       = 9
	CMD_DAT_WRITE     = 10
	CMD_TRANS_MODE    = 11
	CMD_STOP_ABORT    = 14
	CMD_WAIT_PRVDATA  = 13
	CMD_SEND_INIT     = 15
	CMD_UPD_CLK       = 21
	CMD_USE_HOLD_REG  = 29
	CMD_VOLT_SWITCH   = 28
	CMD_START         = 31
)

// RINT_STS / MINT_STS bits.
const (
	INT_CD_BIT   = 0  // card detect
	INT_RE_BIT   = 1  // response error
	INT_CMD_BIT  = 2  // command done
	INT_DTO_BIT  = 3  // data transfer over
	INT_TXDR_BIT = 4  // transmit FIFO data request
	INT_RXDR_BIT = 5  // receive FIFO data request
	INT_RCRC_BIT = 6  // response CRC error
	INT_DCRC_BIT = 7  // data CRC error
	INT_RTO_BIT  = 8  // response timeout
	INT_DRTO_BIT = 9  // data read timeout
	INT_HTO_BIT  = 10 // data starvation-by-host timeout
	INT_FRUN_BIT = 11 // FIFO underrun/overrun
	INT_HLE_BIT  = 12 // hardware locked write error
	INT_SBE_BIT  = 13 // start-bit error
	INT_ACD_BIT  = 14 // auto command done
	INT_EBE_BIT  = 15 // end-bit error

	ALL_ERROR_FLAG = 0xbfc2
)

// STATUS bits.
const (
	STATUS_FIFO_EMPTY = 2
	STATUS_FIFO_FULL  = 3
	STATUS_DATA_BUSY  = 9
)

// UHS_REG bits.
const (
	UHS_VOLT  = 0 // 0: 3.3V 1: 1.8V
	UHS_DDR   = 16
)

// BUS_MODE bits.
const (
	BUS_MODE_SWR = 0 // software reset, self-clearing
	BUS_MODE_FB  = 1 // fixed burst
	BUS_MODE_DE  = 7 // IDMAC enable
)

// DMAC_STS / DMAC_IE bits.
const (
	DMAC_TI  = 0 // transmit interrupt
	DMAC_RI  = 1 // receive interrupt
	DMAC_FBE = 2 // fatal bus error
	DMAC_DU  = 4 // descriptor unavailable
	DMAC_CES = 5 // card error summary
	DMAC_NIS = 8 // normal interrupt summary
	DMAC_AIS = 9 // abnormal interrupt summary
)

// IDMAC descriptor attribute bits (word 0 of the hardware descriptor).
const (
	DES0_DIC = 1 << 1  // disable completion interrupt for this descriptor
	DES0_LD  = 1 << 2  // last descriptor of the data
	DES0_FD  = 1 << 3  // first descriptor of the data
	DES0_CH  = 1 << 4  // chained, linked via the next-descriptor field
	DES0_ER  = 1 << 5  // end of ring
	DES0_CES = 1 << 30 // card error summary
	DES0_OWN = 1 << 31 // owned by the DMA engine
)

// IdmacMaxBufSize is the maximum number of bytes a single IDMAC descriptor
// can describe in chained mode.
const IdmacMaxBufSize = 0x1000

// retriesTimeout bounds the spin-poll budget used throughout the driver for
// register fields that self-clear or settle within a small number of bus
// cycles (e.g. START, the reset bits, FIFO_EMPTY).
const retriesTimeout = 50000
