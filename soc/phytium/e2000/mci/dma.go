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
	"unsafe"

	"github.com/usbarmory/tamago-phytium-mci/dma"
	"github.com/usbarmory/tamago-phytium-mci/internal/reg"
)

// prepareData implements the Data Path (DMA) Prepare operation: enable the
// general data-interrupt mask and the DMAC error/normal/abnormal
// interrupts, populate the descriptor ring and program the descriptor-list
// address, byte count and block size registers.
//
// It also performs the Kick sequence that must precede it: FIFO+DMA reset,
// clearing raw interrupt status, and enabling USE_INTERNAL_DMAC and the
// bus-mode DMA-enable bit.
func (m *MCI) prepareData(data *Data) error {
	if len(data.Buf) != data.BlockSize*data.BlockCount {
		return wrapErr(ErrInvalidParam, "datalen %d != block_size %d * block_count %d",
			len(data.Buf), data.BlockSize, data.BlockCount)
	}

	if data.BlockSize%4 != 0 {
		return wrapErr(ErrInvalidParam, "block size %d not a multiple of 4", data.BlockSize)
	}

	if err := m.ctrlReset(1<<CNTRL_FIFO_RESET | 1<<CNTRL_DMA_RESET); err != nil {
		return err
	}

	// clear raw interrupt status
	reg.Write(m.rintSts, 0xfffe)

	// enable general data-interrupt mask
	m.InterruptMask(GeneralInterrupt, 1<<INT_DTO_BIT, true)

	// enable DMAC error/normal/abnormal interrupts
	m.InterruptMask(DmaInterrupt, 1<<DMAC_NIS|1<<DMAC_AIS|1<<DMAC_FBE, true)

	// enable internal DMAC and bus-mode DMA enable
	reg.Set(m.cntrl, CNTRL_USE_INTERNAL_DMAC)
	reg.Set(m.busMode, BUS_MODE_DE)

	if data.Direction == DirWrite && m.Platform != nil {
		m.Platform.CacheClean(data.Buf)
	}

	addr := dma.Alloc(data.Buf, data.BlockSize)

	if addr == 0 {
		return wrapErr(ErrBadMalloc, "DMA buffer allocation failed")
	}

	phys := uint64(addr)

	if m.Platform != nil {
		// the IDMAC moves data to/from the bounce buffer at addr
		bounce := unsafe.Slice((*byte)(unsafe.Add(nil, addr)), len(data.Buf))
		phys = m.Platform.PhysOf(bounce)
	}

	if err := m.ring.Populate(phys, len(data.Buf), data.BlockSize); err != nil {
		dma.Free(addr)
		return err
	}

	reg.Write(m.descLadl, uint32(m.ring.Addr()))
	reg.Write(m.descLadh, uint32(uint64(m.ring.Addr())>>32))
	reg.Write(m.bytCnt, uint32(len(data.Buf)))
	reg.Write(m.blkSiz, uint32(data.BlockSize))

	dsb()

	m.dataDone = func() {
		if data.Direction == DirRead {
			dma.Read(addr, 0, data.Buf)

			if m.Platform != nil {
				m.Platform.CacheInvalidate(data.Buf)
			}
		}

		dma.Free(addr)
	}

	return nil
}
