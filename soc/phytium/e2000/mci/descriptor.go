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
	"encoding/binary"

	"github.com/usbarmory/tamago-phytium-mci/dma"
)

// descSize is the packed size, in bytes, of a single IDMAC descriptor: eight
// 32-bit little-endian words (attribute, reserved, length, reserved, buffer
// address lo/hi, next descriptor address lo/hi).
const descSize = 32

// Descriptor is a single entry of the IDMAC chained descriptor ring.
//
// It is owned by the DMA engine while Attribute carries DES0_OWN; the
// driver must not touch an entry until OWN clears or the transfer
// completes.
type Descriptor struct {
	Attribute uint32
	Length    uint32
	BufAddr   uint64
	NextAddr  uint64
}

// Bytes packs the descriptor into its wire representation.
func (d *Descriptor) Bytes() []byte {
	buf := make([]byte, descSize)

	binary.LittleEndian.PutUint32(buf[0:4], d.Attribute)
	binary.LittleEndian.PutUint32(buf[8:12], d.Length)
	binary.LittleEndian.PutUint32(buf[16:20], uint32(d.BufAddr))
	binary.LittleEndian.PutUint32(buf[20:24], uint32(d.BufAddr>>32))
	binary.LittleEndian.PutUint32(buf[24:28], uint32(d.NextAddr))
	binary.LittleEndian.PutUint32(buf[28:32], uint32(d.NextAddr>>32))

	return buf
}

// Ring is a DMA-coherent array of chained IDMAC descriptors.
type Ring struct {
	addr uint
	buf  []byte
	len  int
}

// EnsureCapacity (re)allocates the ring's backing storage if it is absent or
// shorter than required, never shrinking an existing allocation.
// Old storage is released. Allocation failure is fatal for the transfer.
func (r *Ring) EnsureCapacity(required int) error {
	if r.len >= required && r.addr != 0 {
		return nil
	}

	if r.addr != 0 {
		dma.Release(r.addr)
	}

	addr, buf := dma.Reserve(required*descSize, descSize)

	if addr == 0 {
		return wrapErr(ErrBadMalloc, "descriptor ring of %d entries", required)
	}

	r.addr = addr
	r.buf = buf
	r.len = required

	return nil
}

// Free releases the ring's backing storage.
func (r *Ring) Free() {
	if r.addr == 0 {
		return
	}

	dma.Release(r.addr)
	r.addr = 0
	r.buf = nil
	r.len = 0
}

// Addr returns the bus address of the first descriptor, the value programmed
// into MCI_DESC_LADL/MCI_DESC_LADH.
func (r *Ring) Addr() uint {
	return r.addr
}

// Populate lays out the descriptor ring to describe a transfer of
// totalBytes starting at bufAddr, chunked into at most IdmacMaxBufSize
// (rounded down to a multiple of blockSize) bytes per entry.
func (r *Ring) Populate(bufAddr uint64, totalBytes int, blockSize int) error {
	maxPerDesc := (IdmacMaxBufSize / blockSize) * blockSize

	if maxPerDesc == 0 {
		return wrapErr(ErrInvalidParam, "block size %d exceeds descriptor capacity", blockSize)
	}

	count := (totalBytes + maxPerDesc - 1) / maxPerDesc
	if count == 0 {
		count = 1
	}

	if err := r.EnsureCapacity(count); err != nil {
		return err
	}

	remaining := totalBytes
	running := bufAddr
	descAddr := uint64(r.addr)

	for i := 0; i < count; i++ {
		length := maxPerDesc
		if remaining < length {
			length = remaining
		}

		attr := uint32(DES0_CH | DES0_OWN)

		if i == 0 {
			attr |= DES0_FD
		}

		next := descAddr + uint64((i+1)*descSize)

		if i == count-1 {
			attr |= DES0_LD | DES0_ER
			next = 0
		}

		if running%uint64(blockSize) != 0 {
			return wrapErr(ErrDmaBufUnalign, "buffer address %#x not aligned to block size %d", running, blockSize)
		}

		if next != 0 && next%descSize != 0 {
			return wrapErr(ErrInvalidParam, "descriptor address %#x not aligned", next)
		}

		d := &Descriptor{
			Attribute: attr,
			Length:    uint32(length),
			BufAddr:   running,
			NextAddr:  next,
		}

		dma.Write(r.addr, i*descSize, d.Bytes())

		running += uint64(length)
		remaining -= length
	}

	return nil
}
