// Phytium E2000 reference platform support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

// Package e2000 wires the Phytium E2000 MCI hardware driver and SD
// protocol driver to the reference platform's pin mux, DMA region and
// timers, exposing a single SdCard instance per controller.
//
// This package is only meant to be used with `GOOS=tamago GOARCH=arm64` as
// supported by the TamaGo framework for bare metal Go on ARM SoCs, see
// https://github.com/usbarmory/tamago.
package e2000

import (
	"sync"

	e2000soc "github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000"
	"github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/iopad"
	"github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/mci"
	"github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/mci/sd"
)

// Base addresses on the reference platform.
const (
	IOPAD_BASE = 0x32b30000
	MCI0_BASE  = 0x28000000
	MCI1_BASE  = 0x28010000
)

func init() {
	e2000soc.Init()
}

// SdCard is the public driver surface for one MCI controller instance:
// identification, block read/write and geometry queries.
type SdCard struct {
	mu sync.Mutex

	mci  *mci.MCI
	card *sd.Card
}

var iopadController = &iopad.Controller{Base: IOPAD_BASE}

// New configures the IOPAD pin group and MCI controller at base_addr and
// returns an uninitialized SdCard; call Init to run identification.
func New(baseAddr uint64) *SdCard {
	iopadController.Base = IOPAD_BASE

	iopad.ConfigureSD0(iopadController)

	m := &mci.MCI{
		Base:      baseAddr,
		Removable: true,
		Platform:  platform{},
	}

	c := &sd.Card{
		MCI: m,
		Caps: sd.HostCaps{
			Supports18V:    true,
			SupportsSDR50:  true,
			SupportsSDR104: true,
			MaxBlockCount:  4096,
			MaxBlockSize:   512,
			MaxClockHz:     208000000,
		},
	}

	return &SdCard{mci: m, card: c}
}

// Init is idempotent bring-up: pin mux is already applied by New, Init runs
// (or re-runs) card identification.
func (s *SdCard) Init() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.card.Init()
}

// ReadBlocks reads count blocks of BlockSize() bytes starting at block addr
// into buf.
func (s *SdCard) ReadBlocks(addr uint32, count int, buf []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.card.ReadBlocks(addr, count, buf)
}

// WriteBlocks writes count blocks of BlockSize() bytes from buf to the card
// starting at block addr, returning the number of blocks the card confirmed
// as written.
func (s *SdCard) WriteBlocks(addr uint32, count int, buf []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.card.WriteBlocks(addr, count, buf)
}

// BlockSize returns the card's block size in bytes.
func (s *SdCard) BlockSize() uint32 {
	return s.card.BlockSize()
}

// BlockCount returns the card's total block count.
func (s *SdCard) BlockCount() uint32 {
	return s.card.BlockCount()
}
