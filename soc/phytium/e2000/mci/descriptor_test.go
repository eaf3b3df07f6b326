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
	"testing"
	"unsafe"

	"github.com/usbarmory/tamago-phytium-mci/dma"
)

func initTestDMA(t *testing.T) {
	t.Helper()

	region := make([]byte, 1<<20)
	start := uint(uintptr(unsafe.Pointer(&region[0])))

	dma.Init(start, uint(len(region)))
}

func TestRingPopulate(t *testing.T) {
	initTestDMA(t)

	var r Ring
	defer r.Free()

	blockSize := 512
	totalBytes := IdmacMaxBufSize*3 + 512 // forces four descriptors

	if err := r.Populate(0x1000, totalBytes, blockSize); err != nil {
		t.Fatalf("Populate: %v", err)
	}

	if r.len != 4 {
		t.Fatalf("expected 4 descriptors, got %d", r.len)
	}

	var sum uint32
	var firstCount, lastCount int

	for i := 0; i < r.len; i++ {
		entry := r.buf[i*descSize : (i+1)*descSize]
		attr := binary.LittleEndian.Uint32(entry[0:4])
		length := binary.LittleEndian.Uint32(entry[8:12])

		sum += length

		if attr&DES0_FD != 0 {
			firstCount++

			if i != 0 {
				t.Fatalf("FD set on non-first descriptor %d", i)
			}
		}

		if attr&(DES0_LD|DES0_ER) == (DES0_LD | DES0_ER) {
			lastCount++

			if i != r.len-1 {
				t.Fatalf("LD|ER set on non-last descriptor %d", i)
			}
		} else if i != r.len-1 && attr&DES0_CH == 0 {
			t.Fatalf("interior descriptor %d missing CH", i)
		}

		addrLo := binary.LittleEndian.Uint32(entry[16:20])

		if addrLo%uint32(blockSize) != 0 {
			t.Fatalf("descriptor %d buffer address %#x not aligned to block size", i, addrLo)
		}
	}

	if firstCount != 1 {
		t.Fatalf("expected exactly one FD descriptor, got %d", firstCount)
	}

	if lastCount != 1 {
		t.Fatalf("expected exactly one LD|ER descriptor, got %d", lastCount)
	}

	if int(sum) != totalBytes {
		t.Fatalf("sum of lengths %d != total bytes %d", sum, totalBytes)
	}
}

func TestRingEnsureCapacityNeverShrinks(t *testing.T) {
	initTestDMA(t)

	var r Ring
	defer r.Free()

	if err := r.EnsureCapacity(4); err != nil {
		t.Fatal(err)
	}

	addr := r.addr

	if err := r.EnsureCapacity(2); err != nil {
		t.Fatal(err)
	}

	if r.addr != addr || r.len < 4 {
		t.Fatalf("EnsureCapacity shrank the ring: addr %#x->%#x len %d", addr, r.addr, r.len)
	}
}
