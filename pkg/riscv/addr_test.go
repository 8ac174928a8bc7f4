// Copyright 2026 The rvos Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package riscv

import (
	"testing"
)

func TestMasking(t *testing.T) {
	if got, want := NewPhysAddr(^uint64(0)), PhysAddr(1<<56-1); got != want {
		t.Errorf("NewPhysAddr(max) = %v, want %v", got, want)
	}
	if got, want := NewVirtAddr(Trampoline), VirtAddr(0x7ffffff000); got != want {
		t.Errorf("NewVirtAddr(Trampoline) = %v, want %v", got, want)
	}
	if got, want := NewPhysPageNum(^uint64(0)), PhysPageNum(1<<44-1); got != want {
		t.Errorf("NewPhysPageNum(max) = %v, want %v", got, want)
	}
	if got, want := NewVirtPageNum(^uint64(0)), VirtPageNum(1<<27-1); got != want {
		t.Errorf("NewVirtPageNum(max) = %v, want %v", got, want)
	}
}

func TestFloorCeilRoundTrip(t *testing.T) {
	for _, v := range []uint64{0, 1, 0xfff, 0x1000, 0x1001, 0x80200000, 0x80200abc, 0x7ffffff123} {
		va := NewVirtAddr(v)
		if got := uint64(va.Floor().Addr()) | va.PageOffset(); got != uint64(va) {
			t.Errorf("floor round trip of %#x = %#x", v, got)
		}
		ceil := uint64(va.Ceil().Addr())
		want := v
		if !va.Aligned() {
			want = (v &^ PageMask) + PageSize
		}
		if ceil != want {
			t.Errorf("ceil(%#x) = %#x, want %#x", v, ceil, want)
		}

		pa := NewPhysAddr(v)
		if got := uint64(pa.Floor().Addr()) | pa.PageOffset(); got != uint64(pa) {
			t.Errorf("physical floor round trip of %#x = %#x", v, got)
		}
		if got := uint64(pa.Ceil().Addr()); got != want {
			t.Errorf("physical ceil(%#x) = %#x, want %#x", v, got, want)
		}
	}
}

func TestPageNumRequiresAlignment(t *testing.T) {
	if got := VirtAddr(0x3000).PageNum(); got != 3 {
		t.Errorf("PageNum(0x3000) = %v, want 3", got)
	}
	defer func() {
		if recover() == nil {
			t.Errorf("PageNum of an unaligned address did not panic")
		}
	}()
	PhysAddr(0x3001).PageNum()
}

func TestIndexes(t *testing.T) {
	for _, tc := range []struct {
		vpn  VirtPageNum
		want [Levels]uint64
	}{
		{0, [Levels]uint64{0, 0, 0}},
		{1, [Levels]uint64{0, 0, 1}},
		{512, [Levels]uint64{0, 1, 0}},
		{NewVirtAddr(Trampoline).Floor(), [Levels]uint64{511, 511, 511}},
		{VirtPageNum(0x80200), [Levels]uint64{2, 1, 0}},
	} {
		if got := tc.vpn.Indexes(); got != tc.want {
			t.Errorf("%v.Indexes() = %v, want %v", tc.vpn, got, tc.want)
		}
	}
}

func TestVPNRange(t *testing.T) {
	r := NewVPNRange(2, 5)
	var seen []VirtPageNum
	r.ForEach(func(v VirtPageNum) { seen = append(seen, v) })
	if len(seen) != 3 || seen[0] != 2 || seen[2] != 4 {
		t.Errorf("ForEach visited %v", seen)
	}
	if !r.Overlaps(NewVPNRange(4, 9)) {
		t.Errorf("%v should overlap [4, 9)", r)
	}
	if r.Overlaps(NewVPNRange(5, 9)) {
		t.Errorf("%v should not overlap [5, 9)", r)
	}
}

func TestSatp(t *testing.T) {
	satp := MakeSatp(0x80321)
	if got := SatpMode(satp); got != SatpModeSv39 {
		t.Errorf("mode = %d, want %d", got, SatpModeSv39)
	}
	if got := SatpRoot(satp); got != 0x80321 {
		t.Errorf("root = %v, want 0x80321", got)
	}
}

func TestCauseString(t *testing.T) {
	if got := SupervisorTimer.String(); got != "SupervisorTimer" {
		t.Errorf("SupervisorTimer.String() = %q", got)
	}
	if !SupervisorTimer.IsInterrupt() || StorePageFault.IsInterrupt() {
		t.Errorf("interrupt classification is wrong")
	}
	if got := Cause(11).String(); got != "Exception(11)" {
		t.Errorf("Cause(11).String() = %q", got)
	}
}
