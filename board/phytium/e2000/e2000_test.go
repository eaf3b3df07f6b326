// Phytium E2000 reference platform support
// https://github.com/usbarmory/tamago
//
// Copyright (c) WithSecure Corporation
// https://foundry.withsecure.com
//
// Use of this source code is governed by the license
// that can be found in the LICENSE file.

package e2000

import "testing"

func TestNewWiresCardToController(t *testing.T) {
	s := New(MCI0_BASE)

	if s.mci == nil || s.card == nil {
		t.Fatal("expected a wired MCI and Card")
	}

	if s.card.MCI != s.mci {
		t.Fatal("expected Card.MCI to reference the same MCI instance")
	}

	if !s.mci.Removable {
		t.Fatal("expected the reference platform's slot to be removable")
	}

	if s.BlockSize() != 0 || s.BlockCount() != 0 {
		t.Fatal("expected zero geometry before identification")
	}
}

func TestPlatformPhysOfFallsBackToVirtualAddress(t *testing.T) {
	buf := make([]byte, 16)

	p := platform{}

	if got := p.PhysOf(buf); got == 0 {
		t.Fatal("expected a non-zero address for a non-empty buffer")
	}

	if got := p.PhysOf(nil); got != 0 {
		t.Fatalf("expected 0 for an empty buffer, got %#x", got)
	}
}
