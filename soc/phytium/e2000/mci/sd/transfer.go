// Phytium E2000 SD protocol driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sd

import (
	"time"

	"github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/mci"
)

const transferRetries = 3

// maxBlockCount returns the largest number of blocks a single CMD18/CMD25
// transfer may cover, bounded by the host's chunking limit.
func (c *Card) maxBlockCount() int {
	if c.Caps.MaxBlockCount > 0 {
		return c.Caps.MaxBlockCount
	}

	return 65535
}

// ReadBlocks reads count blocks of BlockSize() bytes starting at block addr
// into buf, chunking the transfer to the host's max_block_count and making
// up to three attempts per chunk (abort and poll-idle after a failed
// attempt and, on SDR50 / SDR104, re-tune before the final attempt).
func (c *Card) ReadBlocks(addr uint32, count int, buf []byte) error {
	blockSize := int(c.BlockSize())

	if len(buf) < count*blockSize {
		return wrapErr(ErrTransferFailed, "buffer too small for %d blocks", count)
	}

	chunk := c.maxBlockCount()

	for done := 0; done < count; {
		n := count - done

		if n > chunk {
			n = chunk
		}

		off := done * blockSize

		if err := c.readChunk(addr+uint32(done), n, buf[off:off+n*blockSize]); err != nil {
			return err
		}

		done += n
	}

	return nil
}

// WriteBlocks writes count blocks of BlockSize() bytes from buf to the card
// starting at block addr, with the same chunking and retry discipline as
// ReadBlocks, confirming the written block count with ACMD22 after a
// multi-block write. It returns the number of blocks the card confirmed as
// written, which may be less than count if a chunk fails.
func (c *Card) WriteBlocks(addr uint32, count int, buf []byte) (int, error) {
	blockSize := int(c.BlockSize())

	if len(buf) < count*blockSize {
		return 0, wrapErr(ErrTransferFailed, "buffer too small for %d blocks", count)
	}

	chunk := c.maxBlockCount()
	written := 0

	for done := 0; done < count; {
		n := count - done

		if n > chunk {
			n = chunk
		}

		off := done * blockSize

		n2, err := c.writeChunk(addr+uint32(done), n, buf[off:off+n*blockSize])
		written += n2

		if err != nil {
			return written, err
		}

		done += n
	}

	return written, nil
}

func (c *Card) readChunk(addr uint32, count int, buf []byte) error {
	var err error

	for attempt := 0; attempt < transferRetries; attempt++ {
		if attempt == transferRetries-1 {
			c.retuneIfNeeded()
		}

		if err = c.transferChunk(addr, count, buf, mci.DirRead); err == nil {
			return nil
		}

		c.recoverFromFailedTransfer()
	}

	return wrapErr(ErrTransferFailed, "read: %v", err)
}

func (c *Card) writeChunk(addr uint32, count int, buf []byte) (int, error) {
	var err error

	for attempt := 0; attempt < transferRetries; attempt++ {
		if attempt == transferRetries-1 {
			c.retuneIfNeeded()
		}

		if err = c.transferChunk(addr, count, buf, mci.DirWrite); err == nil {
			if count > 1 {
				written, werr := c.confirmBlocksWritten(count)

				if werr != nil {
					err = werr
					c.recoverFromFailedTransfer()
					continue
				}

				return written, nil
			}

			return count, nil
		}

		c.recoverFromFailedTransfer()
	}

	return 0, wrapErr(ErrTransferFailed, "write: %v", err)
}

func (c *Card) transferChunk(addr uint32, count int, buf []byte, dir mci.Direction) error {
	arg := addr

	if c.Feature&HighCapacity == 0 {
		arg = addr * c.BlockSize()
	}

	index := uint32(17)

	if count > 1 {
		index = 18
	}

	if dir == mci.DirWrite {
		index = 24

		if count > 1 {
			index = 25
		}
	}

	data := &mci.Data{
		BlockSize:   int(c.BlockSize()),
		BlockCount:  count,
		Buf:         buf,
		Direction:   dir,
		AutoCmd12:   count > 1,
		IgnoreError: false,
	}

	cmd := mci.BuildCommand(index, arg, mci.RespR1, data)

	return c.MCI.Transfer(cmd)
}

// confirmBlocksWritten issues ACMD22 (SEND_NUM_WR_BLOCKS) and returns the
// number of blocks the card reports having written, erroring if it falls
// short of want.
func (c *Card) confirmBlocksWritten(want int) (int, error) {
	app := mci.AppCmd(c.RCA)

	if err := c.MCI.Transfer(app); err != nil {
		return 0, wrapErr(ErrSendApplicationCommandFailed, "%v", err)
	}

	buf := make([]byte, 4)
	data := &mci.Data{BlockSize: 4, BlockCount: 1, Buf: buf, Direction: mci.DirRead}
	cmd := mci.BuildCommand(22, 0, mci.RespR1, data)

	if err := c.MCI.Transfer(cmd); err != nil {
		return 0, wrapErr(ErrTransferFailed, "ACMD22: %v", err)
	}

	written := uint32(buf[0])<<24 | uint32(buf[1])<<16 | uint32(buf[2])<<8 | uint32(buf[3])

	if written != uint32(want) {
		return int(written), wrapErr(ErrTransferFailed, "ACMD22: wrote %d of %d blocks", written, want)
	}

	return int(written), nil
}

// retuneIfNeeded re-executes tuning before the final retry attempt at
// SDR50/SDR104, demoting the timing mode on repeated failure.
func (c *Card) retuneIfNeeded() {
	if c.Timing != SDR50 && c.Timing != SDR104 {
		return
	}

	if err := c.reTune(); err != nil {
		c.demoteTiming()
	}
}

func (c *Card) demoteTiming() {
	switch c.Timing {
	case SDR104:
		c.Timing = SDR50
		c.MCI.SetClock(100000000)
	case SDR50:
		c.Timing = SDR25
		c.MCI.SetClock(50000000)
	case SDR25:
		c.Timing = SDR12
		c.MCI.SetClock(25000000)
	}
}

// recoverFromFailedTransfer aborts the in-flight command with CMD12 and
// waits for the card to return to the transfer state before a retry.
func (c *Card) recoverFromFailedTransfer() {
	abort := mci.StopTransmission()
	c.MCI.Transfer(abort)

	c.pollIdle(100 * time.Millisecond)
}
