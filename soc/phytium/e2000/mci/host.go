// Phytium E2000 Memory Card Interface (MCI) driver
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package mci

import "encoding/binary"

// BuildCommand translates a protocol-level request into a Command,
// deriving the behavior flags from the response type and attached data the
// same way the card's command classes require: EXP_RESP and EXP_LONG_RESP
// (for R2) are set whenever a response is expected; NEED_RESP_CRC is set
// unless the response type is R3 or R4, whose CRC field is undefined.
func BuildCommand(index uint32, arg uint32, resp RespType, data *Data) *Command {
	cmd := &Command{
		Index: index,
		Arg:   arg,
		Resp:  resp,
		Data:  data,
	}

	if resp != RespNone {
		cmd.Flags |= ExpResp

		if resp == RespR2 {
			cmd.Flags |= ExpLongResp
		}

		if resp != RespR3 && resp != RespR4 {
			cmd.Flags |= NeedRespCrc
		}
	}

	if index == 0 {
		cmd.Flags |= NeedInit
	}

	if index == 11 {
		cmd.Flags |= SwitchVoltage
	}

	if index == 12 {
		cmd.Flags |= Abort
	}

	if data != nil {
		cmd.Flags |= ExpData

		if data.Direction == DirWrite {
			cmd.Flags |= WriteData
		}

		if data.AutoCmd12 {
			cmd.Flags |= AutoCmd12
		}

		if data.BlockCount > 1 {
			cmd.Flags |= NeedAutoStop
		}
	}

	return cmd
}

// GoIdle builds CMD0 (GO_IDLE_STATE).
func GoIdle() *Command {
	return BuildCommand(0, 0, RespNone, nil)
}

// SelectCard builds CMD7 (SELECT/DESELECT_CARD).
func SelectCard(rca uint32) *Command {
	return BuildCommand(7, rca<<16, RespR1b, nil)
}

// StopTransmission builds CMD12 (STOP_TRANSMISSION).
func StopTransmission() *Command {
	return BuildCommand(12, 0, RespR1b, nil)
}

// SendStatus builds CMD13 (SEND_STATUS).
func SendStatus(rca uint32) *Command {
	return BuildCommand(13, rca<<16, RespR1, nil)
}

// SetBlockLen builds CMD16 (SET_BLOCKLEN).
func SetBlockLen(blockSize uint32) *Command {
	return BuildCommand(16, blockSize, RespR1, nil)
}

// SetBlockCount builds CMD23 (SET_BLOCK_COUNT).
func SetBlockCount(count uint32) *Command {
	return BuildCommand(23, count, RespR1, nil)
}

// AppCmd builds CMD55 (APP_CMD), required before every application-specific
// command.
func AppCmd(rca uint32) *Command {
	return BuildCommand(55, rca<<16, RespR1, nil)
}

// FixByteOrder converts a wide-register payload (SCR, switch-function
// status) from the card's MSB-first wire order to the host's logical
// little-endian ordering by reversing the bytes of each word. When
// halfWordBig is set (the half-word big-endian host mode) each word instead
// has its two 16-bit halves swapped, the byte order within each half kept.
func FixByteOrder(words []uint32, halfWordBig bool) []uint32 {
	out := make([]uint32, len(words))

	for i, w := range words {
		var b [4]byte
		binary.BigEndian.PutUint32(b[:], w)

		if halfWordBig {
			b[0], b[1], b[2], b[3] = b[1], b[0], b[3], b[2]
		}

		out[i] = binary.LittleEndian.Uint32(b[:])
	}

	return out
}
