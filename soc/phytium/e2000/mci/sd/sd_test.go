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
	"testing"
	"unsafe"

	"github.com/usbarmory/tamago-phytium-mci/internal/reg"
	"github.com/usbarmory/tamago-phytium-mci/soc/phytium/e2000/mci"
)

// newLoopbackMCI backs an MCI with a plain heap byte slice and a goroutine
// that self-clears the bits a real controller clears asynchronously, just
// enough for Reset and SetClock to complete.
func newLoopbackMCI(t *testing.T) *mci.MCI {
	t.Helper()

	regs := make([]byte, 0x300)
	base := uint64(uintptr(unsafe.Pointer(&regs[0])))

	m := &mci.MCI{Base: base}

	stop := make(chan struct{})
	t.Cleanup(func() { close(stop) })

	go func() {
		for {
			select {
			case <-stop:
				return
			default:
			}

			reg.Clear(base+mci.MCI_CMD, mci.CMD_START)
			reg.Clear(base+mci.MCI_BUS_MODE, mci.BUS_MODE_SWR)
			reg.Clear(base+mci.MCI_CNTRL, mci.CNTRL_FIFO_RESET)
			reg.Clear(base+mci.MCI_CNTRL, mci.CNTRL_DMA_RESET)
			reg.Set(base+mci.MCI_STATUS, mci.STATUS_FIFO_EMPTY)
		}
	}()

	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}

	return m
}

func TestDecodeCID(t *testing.T) {
	var raw [4]uint32

	raw[3] = 0x03<<24 | 0x1234<<8 | 'S'
	raw[2] = uint32('D')<<24 | uint32('X')<<16 | uint32('1')<<8 | '6'
	raw[1] = 0x07<<24 | 0x00abcdef
	raw[0] = 0x123<<8

	cid := decodeCID(raw)

	if cid.ManufacturerID != 0x03 {
		t.Fatalf("ManufacturerID: got %#x", cid.ManufacturerID)
	}

	if cid.OEMApplicationID != 0x1234 {
		t.Fatalf("OEMApplicationID: got %#x", cid.OEMApplicationID)
	}

	if cid.ProductRevision != 0x07 {
		t.Fatalf("ProductRevision: got %#x", cid.ProductRevision)
	}

	if cid.ManufacturingDate != 0x123 {
		t.Fatalf("ManufacturingDate: got %#x", cid.ManufacturingDate)
	}
}

func TestDecodeCSDVersion2(t *testing.T) {
	var raw [4]uint32

	raw[3] = 1 << 30

	deviceSize := uint32(1000)
	raw[2] = deviceSize >> 16
	raw[1] = deviceSize << 16

	csd := decodeCSD(raw)

	if csd.Structure != 1 {
		t.Fatalf("Structure: got %d", csd.Structure)
	}

	if csd.BlockSize != defaultBlockSize {
		t.Fatalf("BlockSize: got %d, want %d", csd.BlockSize, defaultBlockSize)
	}

	want := (deviceSize + 1) * 1024

	if csd.BlockCount != want {
		t.Fatalf("BlockCount: got %d, want %d", csd.BlockCount, want)
	}
}

func TestDecodeCSDVersion1NormalizesBlockSize(t *testing.T) {
	var raw [4]uint32

	raw[2] = 10 << 16 // READ_BL_LEN = 1024

	csd := decodeCSD(raw)

	if csd.BlockSize != defaultBlockSize {
		t.Fatalf("BlockSize: got %d, want %d (renormalized)", csd.BlockSize, defaultBlockSize)
	}
}

func TestDecodeSCR(t *testing.T) {
	raw := [2]uint32{0x02<<24 | 0x4<<16 | 0x3, 0}

	scr := decodeSCR(raw)

	if scr.SpecVersion != 2 {
		t.Fatalf("SpecVersion: got %d", scr.SpecVersion)
	}

	if !scr.Support4BitWidth {
		t.Fatal("expected 4-bit bus width support")
	}

	if !scr.SupportSetBlockCnt || !scr.SupportSpeedClass {
		t.Fatal("expected SET_BLOCK_COUNT and speed class support")
	}
}

func TestFunctionSupportBitmap(t *testing.T) {
	status := make([]byte, 64)

	// group 1 (timing mode) support bitmap at bytes 12-13: function 3
	// (SDR104) supported.
	status[13] = 1 << 3

	if !functionSupported(status, groupTimingMode, funcSDR104) {
		t.Fatal("expected SDR104 reported supported")
	}

	if functionSupported(status, groupTimingMode, funcDDR50) {
		t.Fatal("expected DDR50 reported unsupported")
	}
}

func TestFunctionSelected(t *testing.T) {
	status := make([]byte, 64)
	status[16] = funcSDR50

	if !functionSelected(status, groupTimingMode, funcSDR50) {
		t.Fatal("expected SDR50 reported selected")
	}

	if functionSelected(status, groupTimingMode, funcSDR104) {
		t.Fatal("expected SDR104 not reported selected")
	}
}

func TestMaxBlockCountDefaultsWhenHostCapUnset(t *testing.T) {
	c := &Card{}

	if got := c.maxBlockCount(); got != 65535 {
		t.Fatalf("got %d, want 65535", got)
	}

	c.Caps.MaxBlockCount = 128

	if got := c.maxBlockCount(); got != 128 {
		t.Fatalf("got %d, want 128", got)
	}
}

func TestDemoteTimingLadder(t *testing.T) {
	c := &Card{MCI: newLoopbackMCI(t), Timing: SDR104}

	c.demoteTiming()

	if c.Timing != SDR50 {
		t.Fatalf("got %v, want SDR50", c.Timing)
	}

	c.demoteTiming()

	if c.Timing != SDR25 {
		t.Fatalf("got %v, want SDR25", c.Timing)
	}

	c.demoteTiming()

	if c.Timing != SDR12 {
		t.Fatalf("got %v, want SDR12", c.Timing)
	}
}
