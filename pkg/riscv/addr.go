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
	"fmt"
)

// PhysAddr is a physical address, masked to PAWidth bits.
type PhysAddr uint64

// VirtAddr is a virtual address, masked to VAWidth bits.
type VirtAddr uint64

// PhysPageNum is a physical page number.
type PhysPageNum uint64

// VirtPageNum is a virtual page number.
type VirtPageNum uint64

// NewPhysAddr masks v to a physical address.
func NewPhysAddr(v uint64) PhysAddr {
	return PhysAddr(v & (1<<PAWidth - 1))
}

// NewVirtAddr masks v to a virtual address.
func NewVirtAddr(v uint64) VirtAddr {
	return VirtAddr(v & (1<<VAWidth - 1))
}

// NewPhysPageNum masks v to a physical page number.
func NewPhysPageNum(v uint64) PhysPageNum {
	return PhysPageNum(v & (1<<PPNWidth - 1))
}

// NewVirtPageNum masks v to a virtual page number.
func NewVirtPageNum(v uint64) VirtPageNum {
	return VirtPageNum(v & (1<<VPNWidth - 1))
}

// Floor returns the page containing a.
func (a PhysAddr) Floor() PhysPageNum {
	return PhysPageNum(a / PageSize)
}

// Ceil returns the first page at or above a.
func (a PhysAddr) Ceil() PhysPageNum {
	return PhysPageNum((a + PageSize - 1) / PageSize)
}

// PageOffset returns the offset of a within its page.
func (a PhysAddr) PageOffset() uint64 {
	return uint64(a) & PageMask
}

// Aligned returns true iff a is page aligned.
func (a PhysAddr) Aligned() bool {
	return a.PageOffset() == 0
}

// PageNum converts a page-aligned address to its page number.
//
// Precondition: a must be aligned. Violations panic.
func (a PhysAddr) PageNum() PhysPageNum {
	if !a.Aligned() {
		panic(fmt.Sprintf("physical address %v is not page aligned", a))
	}
	return a.Floor()
}

// String implements fmt.Stringer.
func (a PhysAddr) String() string {
	return fmt.Sprintf("PA:%#x", uint64(a))
}

// Floor returns the page containing a.
func (a VirtAddr) Floor() VirtPageNum {
	return VirtPageNum(a / PageSize)
}

// Ceil returns the first page at or above a.
func (a VirtAddr) Ceil() VirtPageNum {
	return VirtPageNum((a + PageSize - 1) / PageSize)
}

// PageOffset returns the offset of a within its page.
func (a VirtAddr) PageOffset() uint64 {
	return uint64(a) & PageMask
}

// Aligned returns true iff a is page aligned.
func (a VirtAddr) Aligned() bool {
	return a.PageOffset() == 0
}

// PageNum converts a page-aligned address to its page number.
//
// Precondition: a must be aligned. Violations panic.
func (a VirtAddr) PageNum() VirtPageNum {
	if !a.Aligned() {
		panic(fmt.Sprintf("virtual address %v is not page aligned", a))
	}
	return a.Floor()
}

// String implements fmt.Stringer.
func (a VirtAddr) String() string {
	return fmt.Sprintf("VA:%#x", uint64(a))
}

// Addr returns the address of the first byte of the page.
func (p PhysPageNum) Addr() PhysAddr {
	return PhysAddr(uint64(p) << PageShift)
}

// String implements fmt.Stringer.
func (p PhysPageNum) String() string {
	return fmt.Sprintf("PPN:%#x", uint64(p))
}

// Addr returns the address of the first byte of the page.
func (v VirtPageNum) Addr() VirtAddr {
	return VirtAddr(uint64(v) << PageShift)
}

// Indexes decomposes v into its page table indices, highest level first.
func (v VirtPageNum) Indexes() [Levels]uint64 {
	var idx [Levels]uint64
	vpn := uint64(v)
	for i := Levels - 1; i >= 0; i-- {
		idx[i] = vpn & (EntriesPerTable - 1)
		vpn >>= IndexBits
	}
	return idx
}

// String implements fmt.Stringer.
func (v VirtPageNum) String() string {
	return fmt.Sprintf("VPN:%#x", uint64(v))
}

// VPNRange is a half-open range [Start, End) of virtual pages.
type VPNRange struct {
	Start VirtPageNum
	End   VirtPageNum
}

// NewVPNRange returns a range. It panics if start > end.
func NewVPNRange(start, end VirtPageNum) VPNRange {
	if start > end {
		panic(fmt.Sprintf("start %v > end %v", start, end))
	}
	return VPNRange{Start: start, End: end}
}

// Len returns the number of pages in r.
func (r VPNRange) Len() uint64 {
	return uint64(r.End - r.Start)
}

// Contains returns true iff v lies within r.
func (r VPNRange) Contains(v VirtPageNum) bool {
	return r.Start <= v && v < r.End
}

// Overlaps returns true iff r and o share at least one page.
func (r VPNRange) Overlaps(o VPNRange) bool {
	return r.Start < o.End && o.Start < r.End
}

// ForEach calls fn for every page in r, in ascending order.
func (r VPNRange) ForEach(fn func(VirtPageNum)) {
	for v := r.Start; v != r.End; v++ {
		fn(v)
	}
}

// String implements fmt.Stringer.
func (r VPNRange) String() string {
	return fmt.Sprintf("[%#x, %#x)", uint64(r.Start), uint64(r.End))
}
