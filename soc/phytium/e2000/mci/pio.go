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

	"github.com/usbarmory/tamago-phytium-mci/internal/reg"
)

// maxPioTransfer bounds word-stream PIO transfers to the controller's FIFO
// depth; larger requests must go through the DMA data path.
const maxPioTransfer = 0x800

// ReadPIO drains datalen bytes from the FIFO data register into buf,
// clearing buf first. It rejects transfers above maxPioTransfer as
// unsupported.
func (m *MCI) ReadPIO(buf []byte) error {
	datalen := len(buf)

	if datalen > maxPioTransfer {
		return wrapErr(ErrNotSupport, "PIO read of %d bytes exceeds %d", datalen, maxPioTransfer)
	}

	for i := range buf {
		buf[i] = 0
	}

	for off := 0; off < datalen; off += 4 {
		w := reg.Read(m.data)
		binary.LittleEndian.PutUint32(buf[off:], w)
	}

	return nil
}

// WritePIO writes buf to the FIFO data register, one 32-bit word at a time.
func (m *MCI) WritePIO(buf []byte) error {
	if len(buf) > maxPioTransfer {
		return wrapErr(ErrNotSupport, "PIO write of %d bytes exceeds %d", len(buf), maxPioTransfer)
	}

	for off := 0; off < len(buf); off += 4 {
		reg.Write(m.data, binary.LittleEndian.Uint32(buf[off:]))
	}

	return nil
}
