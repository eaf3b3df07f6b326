// Phytium E2000 SD protocol driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package sd

// defaultBlockSize is the block size assumed for all SD cards once
// identification completes (512 bytes, SD-PL-7.10 p107).
const defaultBlockSize = 512

// CID is the decoded Card Identification register (CMD2/CMD10 response,
// 128 bits).
type CID struct {
	ManufacturerID   uint8
	OEMApplicationID uint16
	ProductName      [5]byte
	ProductRevision  uint8
	SerialNumber     uint32
	ManufacturingDate uint16
}

func decodeCID(raw [4]uint32) CID {
	var c CID

	c.ManufacturerID = uint8(raw[3] >> 24)
	c.OEMApplicationID = uint16((raw[3] >> 8) & 0xffff)

	c.ProductName[0] = byte(raw[3])
	c.ProductName[1] = byte(raw[2] >> 24)
	c.ProductName[2] = byte(raw[2] >> 16)
	c.ProductName[3] = byte(raw[2] >> 8)
	c.ProductName[4] = byte(raw[2])

	c.ProductRevision = uint8(raw[1] >> 24)
	c.SerialNumber = ((raw[1] & 0xffffff) << 8) | (raw[0] >> 24)
	c.ManufacturingDate = uint16((raw[0] >> 8) & 0xfff)

	return c
}

// CSD is the decoded Card Specific Data register (CMD9 response, 128 bits),
// normalized so BlockSize is always 512 regardless of CSD version or the
// card's native block length.
type CSD struct {
	Structure         uint8
	CommandClasses    uint16
	TransferSpeed     uint8
	BlockCount        uint32
	BlockSize         uint32
}

func decodeCSD(raw [4]uint32) CSD {
	var c CSD

	c.Structure = uint8(raw[3] >> 30)
	c.TransferSpeed = uint8(raw[3])
	c.CommandClasses = uint16((raw[2] >> 20) & 0xfff)

	readBlockLength := uint8((raw[2] >> 16) & 0xf)

	switch c.Structure {
	case 0:
		// CSD v1.0
		deviceSize := ((raw[2] & 0x3ff) << 2) | ((raw[1] >> 30) & 0x3)
		deviceSizeMultiplier := uint8((raw[1] >> 15) & 0x7)

		blockCount := (deviceSize + 1) << (deviceSizeMultiplier + 2)
		blockSize := uint32(1) << readBlockLength

		if blockSize > defaultBlockSize {
			blockCount = blockCount * blockSize / defaultBlockSize
			blockSize = defaultBlockSize
		}

		c.BlockCount = blockCount
		c.BlockSize = blockSize
	case 1:
		// CSD v2.0 (SDHC/SDXC)
		deviceSize := ((raw[2] & 0x3f) << 16) | ((raw[1] >> 16) & 0xffff)

		c.BlockCount = (deviceSize + 1) * 1024
		c.BlockSize = defaultBlockSize
	}

	return c
}

// SCR is the decoded SD Configuration Register (ACMD51 response, 64 bits).
type SCR struct {
	SpecVersion        uint8
	Support4BitWidth   bool
	SupportSetBlockCnt bool
	SupportSpeedClass  bool
}

func decodeSCR(raw [2]uint32) SCR {
	var s SCR

	s.SpecVersion = uint8((raw[0] >> 24) & 0xf)
	s.Support4BitWidth = (raw[0]>>16)&0xf&0x4 != 0
	s.SupportSetBlockCnt = raw[0]&0x2 != 0
	s.SupportSpeedClass = raw[0]&0x1 != 0

	return s
}
